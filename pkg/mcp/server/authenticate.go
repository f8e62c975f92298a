package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// Authenticate runs the device-authorization flow and installs the
// resulting credential bundle. This blocks until the operator approves in
// a browser, the provider reports a terminal failure, or the poll budget
// runs out.
func (h *Handler) Authenticate(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	creds, err := h.flow.Authenticate(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Authentication failed: %v", err)), nil
	}

	h.adoptCredentials(creds)

	var out strings.Builder
	fmt.Fprintf(&out, "Authenticated as %s (%s)\n", creds.User.Name, creds.User.Email)
	fmt.Fprintf(&out, "Organization: %s (role: %s)\n", creds.Org.Name, creds.Org.Role)
	fmt.Fprintf(&out, "Session valid until %s\n", creds.ExpiresAt.Format(time.RFC1123))
	return mcp.NewToolResultText(out.String()), nil
}

// CheckAuthStatus reports whether a usable credential bundle is present.
// Never requires authentication itself.
func (h *Handler) CheckAuthStatus(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.creds == nil {
		return mcp.NewToolResultText("Not authenticated. Run the 'authenticate' tool to log in to StackPilot."), nil
	}
	if h.creds.Expired() {
		return mcp.NewToolResultText(fmt.Sprintf(
			"Session expired at %s. Run the 'authenticate' tool to log in again.",
			h.creds.ExpiresAt.Format(time.RFC1123))), nil
	}

	var out strings.Builder
	fmt.Fprintf(&out, "Authenticated as %s (%s)\n", h.creds.User.Name, h.creds.User.Email)
	fmt.Fprintf(&out, "Organization: %s (role: %s)\n", h.creds.Org.Name, h.creds.Org.Role)
	fmt.Fprintf(&out, "Session valid until %s\n", h.creds.ExpiresAt.Format(time.RFC1123))
	return mcp.NewToolResultText(out.String()), nil
}

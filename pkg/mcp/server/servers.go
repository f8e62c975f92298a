package server

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// ListServers refreshes and lists the backend servers of the authenticated
// organization.
func (h *Handler) ListServers(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if failed := h.requireAuth(); failed != nil {
		return failed, nil
	}

	servers, err := h.cache.ListServers(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list servers: %v", err)), nil
	}

	if len(servers) == 0 {
		return mcp.NewToolResultText("No servers found for this organization."), nil
	}

	var out strings.Builder
	fmt.Fprintf(&out, "%d server(s):\n\n", len(servers))
	w := tabwriter.NewWriter(&out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SLUG\tURL\tCREATED")
	for _, srv := range servers {
		created := ""
		if !srv.CreatedAt.IsZero() {
			created = srv.CreatedAt.Format(time.DateOnly)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", srv.Slug, srv.BaseURL(), created)
	}
	_ = w.Flush()
	return mcp.NewToolResultText(out.String()), nil
}

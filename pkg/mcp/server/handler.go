// Package server provides the MCP (Model Context Protocol) server that
// exposes StackPilot deployment operations as tools.
package server

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/stackpilot-hq/stackpilot-mcp/pkg/api"
	"github.com/stackpilot-hq/stackpilot-mcp/pkg/auth"
	"github.com/stackpilot-hq/stackpilot-mcp/pkg/config"
	"github.com/stackpilot-hq/stackpilot-mcp/pkg/routing"
)

// deviceAuthenticator runs the interactive device-authorization flow.
// Satisfied by *auth.DeviceFlow; replaced by a fake in tests.
type deviceAuthenticator interface {
	Authenticate(ctx context.Context) (*auth.Credentials, error)
}

// apiClient is the slice of the API gateway the handler uses. Satisfied by
// *api.Client; replaced by a fake in tests.
type apiClient interface {
	Get(ctx context.Context, baseURL, path string) ([]byte, error)
	Post(ctx context.Context, baseURL, path string, body any) ([]byte, error)
	UploadFile(ctx context.Context, baseURL, path string, data []byte, filename string) ([]byte, error)
	SetToken(token string)
}

// Handler handles MCP tool requests against the StackPilot platform. It
// owns the process-wide credential bundle and routing cache; the MCP host
// serializes tool calls, so no locking is involved.
type Handler struct {
	settings config.Settings
	creds    *auth.Credentials
	client   apiClient
	cache    *routing.Cache
	flow     deviceAuthenticator
}

// NewHandler creates a handler, loading any persisted credentials. A
// missing or expired credential bundle is not an error; tools that need
// authentication will ask the caller to run 'authenticate'.
func NewHandler(settings config.Settings) (*Handler, error) {
	creds, err := auth.Load()
	if err != nil {
		return nil, err
	}

	token := ""
	orgID := ""
	if creds != nil {
		token = creds.AccessToken
		orgID = creds.Org.ID
	}

	client := api.NewClient(token)
	return &Handler{
		settings: settings,
		creds:    creds,
		client:   client,
		cache:    routing.NewCache(client, settings.APIBaseURL, orgID),
		flow:     auth.NewDeviceFlow(settings.AuthBaseURL),
	}, nil
}

// requireAuth returns an error result when no usable credential bundle is
// present. Returns nil when the call may proceed.
func (h *Handler) requireAuth() *mcp.CallToolResult {
	if h.creds == nil || h.creds.Expired() {
		return mcp.NewToolResultError("Not authenticated. Run the 'authenticate' tool to log in to StackPilot.")
	}
	return nil
}

// adoptCredentials installs a fresh credential bundle: the bearer token is
// swapped and every cached routing structure is dropped, since the new
// identity may see a different server topology.
func (h *Handler) adoptCredentials(creds *auth.Credentials) {
	h.creds = creds
	h.client.SetToken(creds.AccessToken)
	h.cache.SetOrg(creds.Org.ID)
}

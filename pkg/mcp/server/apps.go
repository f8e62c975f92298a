package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/pkg/browser"

	"github.com/stackpilot-hq/stackpilot-mcp/pkg/logger"
)

// ListApps refreshes the app listing across all known servers and reports
// the per-server grouping. One unreachable server does not fail the
// listing; its error is shown inline.
func (h *Handler) ListApps(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if failed := h.requireAuth(); failed != nil {
		return failed, nil
	}

	listing, err := h.cache.ListApps(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list applications: %v", err)), nil
	}

	if len(listing.Groups) == 0 {
		return mcp.NewToolResultText("No servers found for this organization, so there are no applications to list."), nil
	}

	var out strings.Builder
	fmt.Fprintf(&out, "%d application(s) across %d server(s):\n", listing.Total, len(listing.Groups))
	for _, group := range listing.Groups {
		fmt.Fprintf(&out, "\nServer %s (%s):\n", group.Slug, group.ServerURL)
		switch {
		case group.Err != nil:
			fmt.Fprintf(&out, "  unavailable: %v\n", group.Err)
		case len(group.Apps) == 0:
			fmt.Fprintf(&out, "  no applications\n")
		default:
			for _, app := range group.Apps {
				if app.Status != "" {
					fmt.Fprintf(&out, "  %s (%s)\n", app.Name, app.Status)
				} else {
					fmt.Fprintf(&out, "  %s\n", app.Name)
				}
			}
		}
	}
	return mcp.NewToolResultText(out.String()), nil
}

// appDetail is the per-app detail payload. Servers older than the detail
// endpoint omit most fields; everything here is optional except the name.
type appDetail struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	URL       string `json:"url"`
	GitURL    string `json:"git_url"`
	GitBranch string `json:"git_branch"`
	Builder   string `json:"builder"`
	CreatedAt string `json:"created_at"`
}

type appNameArgs struct {
	AppName string `json:"app_name"`
}

// GetAppInfo fetches detail for one application from its owning server.
func (h *Handler) GetAppInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if failed := h.requireAuth(); failed != nil {
		return failed, nil
	}

	args := &appNameArgs{}
	if err := request.BindArguments(args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse arguments: %v", err)), nil
	}

	route, err := h.cache.ResolveApp(ctx, args.AppName)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	raw, err := h.client.Get(ctx, route.ServerURL, "/apps/"+args.AppName)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch application info: %v", err)), nil
	}

	var detail appDetail
	if err := json.Unmarshal(raw, &detail); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Server returned an undecodable application payload: %v", err)), nil
	}
	if detail.Name == "" {
		detail.Name = args.AppName
	}

	var out strings.Builder
	w := tabwriter.NewWriter(&out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Name:\t%s\n", detail.Name)
	fmt.Fprintf(w, "Server:\t%s (%s)\n", route.ServerSlug, route.ServerURL)
	if detail.Status != "" {
		fmt.Fprintf(w, "Status:\t%s\n", detail.Status)
	}
	if detail.URL != "" {
		fmt.Fprintf(w, "URL:\t%s\n", detail.URL)
	}
	if detail.GitURL != "" {
		fmt.Fprintf(w, "Git:\t%s (%s)\n", detail.GitURL, detail.GitBranch)
	}
	if detail.Builder != "" {
		fmt.Fprintf(w, "Builder:\t%s\n", detail.Builder)
	}
	if detail.CreatedAt != "" {
		fmt.Fprintf(w, "Created:\t%s\n", detail.CreatedAt)
	}
	_ = w.Flush()
	return mcp.NewToolResultText(out.String()), nil
}

// OpenAppURL resolves the application's public URL, attempts to open it in
// the operator's browser, and returns it. A headless environment only
// downgrades the browser step to a warning.
func (h *Handler) OpenAppURL(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if failed := h.requireAuth(); failed != nil {
		return failed, nil
	}

	args := &appNameArgs{}
	if err := request.BindArguments(args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse arguments: %v", err)), nil
	}

	route, err := h.cache.ResolveApp(ctx, args.AppName)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	appURL := ""
	if raw, err := h.client.Get(ctx, route.ServerURL, "/apps/"+args.AppName); err == nil {
		var detail appDetail
		if json.Unmarshal(raw, &detail) == nil {
			appURL = detail.URL
		}
	}
	if appURL == "" {
		// Apps are served on a subdomain of their server.
		domain := strings.TrimPrefix(route.ServerURL, "https://")
		appURL = fmt.Sprintf("https://%s.%s", args.AppName, domain)
	}

	if err := browser.OpenURL(appURL); err != nil {
		logger.Warnf("could not open browser: %v", err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("Application %s is available at %s", args.AppName, appURL)), nil
}

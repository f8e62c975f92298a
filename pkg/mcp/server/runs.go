package server

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/stackpilot-hq/stackpilot-mcp/pkg/core"
)

type runIDArgs struct {
	RunID string `json:"run_id"`
}

// GetDeploymentStatus reports the status of a deployment run, including
// its per-step progress and any step logs.
func (h *Handler) GetDeploymentStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if failed := h.requireAuth(); failed != nil {
		return failed, nil
	}

	args := &runIDArgs{}
	if err := request.BindArguments(args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse arguments: %v", err)), nil
	}

	serverURL, err := h.cache.ResolveRun(ctx, args.RunID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	raw, err := h.client.Get(ctx, serverURL, "/runs/"+args.RunID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch deployment status: %v", err)), nil
	}

	run, err := core.ParseRun(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Server returned an undecodable run payload: %v", err)), nil
	}

	return mcp.NewToolResultText(formatRun(run)), nil
}

// ListDeploymentRuns lists the deployment runs of an application, newest
// first as reported by the server.
func (h *Handler) ListDeploymentRuns(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
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

	raw, err := h.client.Get(ctx, route.ServerURL, "/apps/"+args.AppName+"/runs")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list deployment runs: %v", err)), nil
	}

	runs, err := core.ParseRuns(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Server returned an undecodable run list: %v", err)), nil
	}

	// Every run the server reports is owned by this server; remember that
	// so later status lookups skip the probe.
	for _, run := range runs {
		h.cache.NoteRun(run.ID, route.ServerURL)
	}

	if len(runs) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No deployment runs found for %s.", args.AppName)), nil
	}

	var out strings.Builder
	fmt.Fprintf(&out, "%d deployment run(s) for %s:\n\n", len(runs), args.AppName)
	w := tabwriter.NewWriter(&out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tSTATUS\tSOURCE\tCREATED")
	for _, run := range runs {
		created := ""
		if !run.CreatedAt.IsZero() {
			created = run.CreatedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", run.ID, run.Status, run.Source, created)
	}
	_ = w.Flush()
	return mcp.NewToolResultText(out.String()), nil
}

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/stackpilot-hq/stackpilot-mcp/pkg/archive"
	"github.com/stackpilot-hq/stackpilot-mcp/pkg/core"
	"github.com/stackpilot-hq/stackpilot-mcp/pkg/logger"
)

var validBuilders = map[string]bool{
	"auto":       true,
	"nixpacks":   true,
	"dockerfile": true,
}

func normalizeBuilder(builder string) (string, error) {
	if builder == "" {
		return "auto", nil
	}
	if !validBuilders[builder] {
		return "", fmt.Errorf("invalid builder %q (valid: auto, nixpacks, dockerfile)", builder)
	}
	return builder, nil
}

type deployFromGitArgs struct {
	AppName   string `json:"app_name"`
	GitURL    string `json:"git_url"`
	GitBranch string `json:"git_branch"`
	Builder   string `json:"builder"`
}

// DeployFromGit triggers a deployment of the application from a git
// repository on its owning server.
func (h *Handler) DeployFromGit(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if failed := h.requireAuth(); failed != nil {
		return failed, nil
	}

	args := &deployFromGitArgs{}
	if err := request.BindArguments(args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse arguments: %v", err)), nil
	}
	if args.GitBranch == "" {
		args.GitBranch = "main"
	}
	builder, err := normalizeBuilder(args.Builder)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	route, err := h.cache.ResolveApp(ctx, args.AppName)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	raw, err := h.client.Post(ctx, route.ServerURL, "/apps/"+args.AppName+"/deploy", map[string]string{
		"git_url":    args.GitURL,
		"git_branch": args.GitBranch,
		"builder":    builder,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Deploy failed: %v", err)), nil
	}

	run, err := core.ParseRun(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Deploy accepted but the response was undecodable: %v", err)), nil
	}
	h.cache.NoteRun(run.ID, route.ServerURL)

	return mcp.NewToolResultText(fmt.Sprintf(
		"Deployment of %s started from %s (branch %s) on server %s.\nRun ID: %s\nUse 'get_deployment_status' to follow progress.",
		args.AppName, args.GitURL, args.GitBranch, route.ServerSlug, run.ID)), nil
}

type deployFromLocalArgs struct {
	AppName       string `json:"app_name"`
	DirectoryPath string `json:"directory_path"`
	Builder       string `json:"builder"`
}

// DeployFromLocal archives a local directory, uploads it to the
// application's owning server, and triggers a deployment of the uploaded
// artifact. The temporary archive is removed whether or not the upload
// succeeds.
func (h *Handler) DeployFromLocal(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if failed := h.requireAuth(); failed != nil {
		return failed, nil
	}

	args := &deployFromLocalArgs{}
	if err := request.BindArguments(args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse arguments: %v", err)), nil
	}
	builder, err := normalizeBuilder(args.Builder)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	route, err := h.cache.ResolveApp(ctx, args.AppName)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	archivePath, err := archive.Build(args.DirectoryPath)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to archive %s: %v", args.DirectoryPath, err)), nil
	}
	defer func() {
		if err := os.Remove(archivePath); err != nil {
			logger.Warnf("failed to remove temporary archive %s: %v", archivePath, err)
		}
	}()

	data, err := os.ReadFile(archivePath) // #nosec G304 - temp file we just created
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to read archive: %v", err)), nil
	}

	raw, err := h.client.UploadFile(ctx, route.ServerURL, "/apps/"+args.AppName+"/upload", data, filepath.Base(archivePath))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Upload failed: %v", err)), nil
	}

	var upload struct {
		ArtifactID string `json:"artifact_id"`
	}
	if err := json.Unmarshal(raw, &upload); err != nil || upload.ArtifactID == "" {
		return mcp.NewToolResultError("Upload succeeded but the server did not return an artifact id."), nil
	}

	raw, err = h.client.Post(ctx, route.ServerURL, "/apps/"+args.AppName+"/deploy-local", map[string]string{
		"artifact_id": upload.ArtifactID,
		"builder":     builder,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Deploy failed: %v", err)), nil
	}

	run, err := core.ParseRun(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Deploy accepted but the response was undecodable: %v", err)), nil
	}
	h.cache.NoteRun(run.ID, route.ServerURL)

	return mcp.NewToolResultText(fmt.Sprintf(
		"Deployment of %s started from local upload (%d KiB) on server %s.\nRun ID: %s\nUse 'get_deployment_status' to follow progress.",
		args.AppName, len(data)/1024, route.ServerSlug, run.ID)), nil
}

package server

import (
	"context"
	_ "embed"

	"github.com/mark3labs/mcp-go/mcp"
)

// instructionsURI is the fixed URI the instructions resource is served
// under.
const instructionsURI = "stackpilot://instructions"

//go:embed instructions.md
var instructionsText string

// GetInstructions returns the usage instructions document. Never requires
// authentication.
func (*Handler) GetInstructions(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(instructionsText), nil
}

// readInstructionsResource serves the same document as an MCP resource.
func readInstructionsResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      instructionsURI,
			MIMEType: "text/markdown",
			Text:     instructionsText,
		},
	}, nil
}

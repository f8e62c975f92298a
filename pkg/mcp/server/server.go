package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/stackpilot-hq/stackpilot-mcp/pkg/config"
	"github.com/stackpilot-hq/stackpilot-mcp/pkg/logger"
	"github.com/stackpilot-hq/stackpilot-mcp/pkg/versions"
)

const (
	// TransportStdio serves MCP over stdin/stdout. This is the default:
	// assistant hosts usually launch the agent as a child process.
	TransportStdio = "stdio"

	// TransportStreamableHTTP serves MCP over streamable HTTP.
	TransportStreamableHTTP = "streamable-http"

	// DefaultMCPPort is the default port for the streamable HTTP transport.
	DefaultMCPPort = "7478"
)

// Config holds the configuration for the MCP server.
type Config struct {
	Transport string
	Host      string
	Port      string
	Settings  config.Settings
}

// Server represents the StackPilot MCP server.
type Server struct {
	config     *Config
	mcpServer  *server.MCPServer
	httpServer *http.Server
	handler    *Handler
}

// New creates a new StackPilot MCP server.
func New(ctx context.Context, cfg *Config) (*Server, error) {
	versionInfo := versions.GetVersionInfo()
	mcpServer := server.NewMCPServer(
		"stackpilot-mcp",
		versionInfo.Version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithLogging(),
	)

	handler, err := NewHandler(cfg.Settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create StackPilot handler: %w", err)
	}

	registerTools(mcpServer, handler)
	registerResources(mcpServer)

	s := &Server{
		config:    cfg,
		mcpServer: mcpServer,
		handler:   handler,
	}

	if cfg.Transport == TransportStreamableHTTP {
		streamableServer := server.NewStreamableHTTPServer(
			mcpServer,
			server.WithEndpointPath("/mcp"),
			server.WithHTTPContextFunc(func(_ context.Context, _ *http.Request) context.Context {
				return ctx
			}),
		)
		s.httpServer = &http.Server{
			Addr:              fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
			Handler:           streamableServer,
			ReadHeaderTimeout: 10 * time.Second, // Prevent Slowloris attacks
		}
	}

	return s, nil
}

// Start starts the MCP server on the configured transport and blocks until
// it stops.
func (s *Server) Start() error {
	if s.httpServer != nil {
		logger.Infof("Starting StackPilot MCP server on http://%s:%s/mcp", s.config.Host, s.config.Port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("MCP server error: %w", err)
		}
		return nil
	}

	logger.Info("Starting StackPilot MCP server on stdio")
	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the MCP server.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("Shutting down MCP server...")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// GetAddress returns the server address for the HTTP transport, or a
// transport label for stdio.
func (s *Server) GetAddress() string {
	if s.httpServer != nil {
		return fmt.Sprintf("http://%s:%s/mcp", s.config.Host, s.config.Port)
	}
	return TransportStdio
}

// registerResources registers the static instructions document.
func registerResources(mcpServer *server.MCPServer) {
	mcpServer.AddResource(mcp.NewResource(
		instructionsURI,
		"StackPilot usage instructions",
		mcp.WithResourceDescription("How to authenticate and deploy applications with this agent"),
		mcp.WithMIMEType("text/markdown"),
	), readInstructionsResource)
}

// registerTools registers all MCP tools with the server.
func registerTools(mcpServer *server.MCPServer, handler *Handler) {
	mcpServer.AddTool(mcp.Tool{
		Name:        "authenticate",
		Description: "Log in to StackPilot via device authorization. Blocks until the operator approves in a browser.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, handler.Authenticate)

	mcpServer.AddTool(mcp.Tool{
		Name:        "check_auth_status",
		Description: "Check whether the agent is authenticated and report the current user and organization",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, handler.CheckAuthStatus)

	mcpServer.AddTool(mcp.Tool{
		Name:        "list_servers",
		Description: "List the organization's backend servers",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, handler.ListServers)

	mcpServer.AddTool(mcp.Tool{
		Name:        "list_apps",
		Description: "List all applications, grouped by the server that hosts them",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, handler.ListApps)

	mcpServer.AddTool(mcp.Tool{
		Name:        "get_app_info",
		Description: "Get details for one application",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"app_name": map[string]interface{}{
					"type":        "string",
					"description": "Name of the application",
				},
			},
			Required: []string{"app_name"},
		},
	}, handler.GetAppInfo)

	mcpServer.AddTool(mcp.Tool{
		Name:        "deploy_from_git",
		Description: "Deploy an application from a git repository",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"app_name": map[string]interface{}{
					"type":        "string",
					"description": "Name of the application to deploy",
				},
				"git_url": map[string]interface{}{
					"type":        "string",
					"description": "URL of the git repository",
				},
				"git_branch": map[string]interface{}{
					"type":        "string",
					"description": "Branch to deploy (default: main)",
				},
				"builder": map[string]interface{}{
					"type":        "string",
					"description": "Build strategy: auto, nixpacks, or dockerfile (default: auto)",
					"enum":        []string{"auto", "nixpacks", "dockerfile"},
				},
			},
			Required: []string{"app_name", "git_url"},
		},
	}, handler.DeployFromGit)

	mcpServer.AddTool(mcp.Tool{
		Name:        "deploy_from_local",
		Description: "Archive a local directory and deploy it to an application",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"app_name": map[string]interface{}{
					"type":        "string",
					"description": "Name of the application to deploy",
				},
				"directory_path": map[string]interface{}{
					"type":        "string",
					"description": "Path of the local source directory",
				},
				"builder": map[string]interface{}{
					"type":        "string",
					"description": "Build strategy: auto, nixpacks, or dockerfile (default: auto)",
					"enum":        []string{"auto", "nixpacks", "dockerfile"},
				},
			},
			Required: []string{"app_name", "directory_path"},
		},
	}, handler.DeployFromLocal)

	mcpServer.AddTool(mcp.Tool{
		Name:        "get_deployment_status",
		Description: "Get the status of a deployment run, including step progress and logs",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"run_id": map[string]interface{}{
					"type":        "string",
					"description": "Identifier of the deployment run",
				},
			},
			Required: []string{"run_id"},
		},
	}, handler.GetDeploymentStatus)

	mcpServer.AddTool(mcp.Tool{
		Name:        "list_deployment_runs",
		Description: "List the deployment runs of an application",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"app_name": map[string]interface{}{
					"type":        "string",
					"description": "Name of the application",
				},
			},
			Required: []string{"app_name"},
		},
	}, handler.ListDeploymentRuns)

	mcpServer.AddTool(mcp.Tool{
		Name:        "open_app_url",
		Description: "Return an application's public URL and try to open it in the operator's browser",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"app_name": map[string]interface{}{
					"type":        "string",
					"description": "Name of the application",
				},
			},
			Required: []string{"app_name"},
		},
	}, handler.OpenAppURL)

	mcpServer.AddTool(mcp.Tool{
		Name:        "get_instructions",
		Description: "Get usage instructions for this agent",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, handler.GetInstructions)
}

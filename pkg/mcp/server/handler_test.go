package server

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackpilot-hq/stackpilot-mcp/pkg/api"
	"github.com/stackpilot-hq/stackpilot-mcp/pkg/auth"
	"github.com/stackpilot-hq/stackpilot-mcp/pkg/config"
	"github.com/stackpilot-hq/stackpilot-mcp/pkg/routing"
)

// fakePlatform stands in for the whole platform: the central API and every
// backend server. Responses are scripted per method, base URL, and path;
// anything unscripted answers 404.
type fakePlatform struct {
	responses map[string]string
	failures  map[string]error
	calls     []string
	posted    map[string]any
	token     string
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		responses: make(map[string]string),
		failures:  make(map[string]error),
		posted:    make(map[string]any),
	}
}

func (f *fakePlatform) respond(method, baseURL, path string) ([]byte, error) {
	key := method + " " + baseURL + " " + path
	f.calls = append(f.calls, key)
	if err, ok := f.failures[key]; ok {
		return nil, err
	}
	if resp, ok := f.responses[key]; ok {
		return []byte(resp), nil
	}
	return nil, api.NewHTTPError(404, baseURL+path, "not found")
}

func (f *fakePlatform) Get(_ context.Context, baseURL, path string) ([]byte, error) {
	return f.respond("GET", baseURL, path)
}

func (f *fakePlatform) Post(_ context.Context, baseURL, path string, body any) ([]byte, error) {
	f.posted[path] = body
	return f.respond("POST", baseURL, path)
}

func (f *fakePlatform) UploadFile(_ context.Context, baseURL, path string, _ []byte, _ string) ([]byte, error) {
	return f.respond("POST", baseURL, path)
}

func (f *fakePlatform) SetToken(token string) {
	f.token = token
}

// seedFleet scripts two discovered servers, with apps on the first one.
func (f *fakePlatform) seedFleet() {
	f.responses["GET https://api.test /servers?org_id=org-1"] = `[
		{"id": "srv-1", "slug": "s1", "domain": "s1.example.com", "org_id": "org-1"},
		{"id": "srv-2", "slug": "s2", "domain": "s2.example.com", "org_id": "org-1"}
	]`
	f.responses["GET https://s1.example.com /apps"] = `[{"name": "blog", "status": "running"}, "shop"]`
	f.responses["GET https://s2.example.com /apps"] = `[]`
}

type stubAuthenticator struct {
	creds *auth.Credentials
	err   error
}

func (s *stubAuthenticator) Authenticate(_ context.Context) (*auth.Credentials, error) {
	return s.creds, s.err
}

func validCreds() *auth.Credentials {
	return &auth.Credentials{
		AccessToken: "tok-123",
		TokenType:   "Bearer",
		ExpiresAt:   time.Now().Add(time.Hour),
		User:        auth.Identity{ID: "u1", Email: "dev@example.com", Name: "Dev One"},
		Org:         auth.Organization{ID: "org-1", Name: "Acme", Role: "admin"},
	}
}

func newTestHandler(platform *fakePlatform, creds *auth.Credentials) *Handler {
	orgID := ""
	if creds != nil {
		orgID = creds.Org.ID
	}
	return &Handler{
		settings: config.Settings{APIBaseURL: "https://api.test", AuthBaseURL: "https://auth.test"},
		creds:    creds,
		client:   platform,
		cache:    routing.NewCache(platform, "https://api.test", orgID),
		flow:     &stubAuthenticator{},
	}
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	request := mcp.CallToolRequest{}
	request.Params.Arguments = args
	return request
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func TestHandler_RequireAuth(t *testing.T) {
	t.Parallel()

	type toolFunc func(*Handler, context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
	tools := map[string]toolFunc{
		"list_servers":          (*Handler).ListServers,
		"list_apps":             (*Handler).ListApps,
		"get_app_info":          (*Handler).GetAppInfo,
		"open_app_url":          (*Handler).OpenAppURL,
		"deploy_from_git":       (*Handler).DeployFromGit,
		"deploy_from_local":     (*Handler).DeployFromLocal,
		"get_deployment_status": (*Handler).GetDeploymentStatus,
		"list_deployment_runs":  (*Handler).ListDeploymentRuns,
	}

	for name, tool := range tools {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			platform := newFakePlatform()
			handler := newTestHandler(platform, nil)

			result, err := tool(handler, context.Background(), callRequest(map[string]any{}))

			require.NoError(t, err)
			assert.True(t, result.IsError)
			assert.Contains(t, resultText(t, result), "Not authenticated")
			assert.Empty(t, platform.calls, "unauthenticated call must not reach the platform")
		})
	}

	t.Run("expired credentials", func(t *testing.T) {
		t.Parallel()
		creds := validCreds()
		creds.ExpiresAt = time.Now().Add(-time.Minute)
		handler := newTestHandler(newFakePlatform(), creds)

		result, err := handler.ListServers(context.Background(), callRequest(nil))

		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Contains(t, resultText(t, result), "Not authenticated")
	})
}

func TestHandler_Authenticate(t *testing.T) {
	t.Parallel()

	t.Run("success installs credentials and resets routing", func(t *testing.T) {
		t.Parallel()
		platform := newFakePlatform()
		platform.seedFleet()
		handler := newTestHandler(platform, validCreds())

		// Warm the server cache under the old identity.
		_, err := handler.cache.ListServers(context.Background())
		require.NoError(t, err)
		require.Len(t, handler.cache.Servers(), 2)

		fresh := validCreds()
		fresh.AccessToken = "tok-456"
		fresh.Org = auth.Organization{ID: "org-2", Name: "Globex", Role: "member"}
		handler.flow = &stubAuthenticator{creds: fresh}

		result, err := handler.Authenticate(context.Background(), callRequest(nil))

		require.NoError(t, err)
		assert.False(t, result.IsError)
		text := resultText(t, result)
		assert.Contains(t, text, "Authenticated as Dev One (dev@example.com)")
		assert.Contains(t, text, "Organization: Globex (role: member)")

		assert.Equal(t, "tok-456", platform.token)
		assert.Empty(t, handler.cache.Servers(), "re-authentication must drop cached routing state")
	})

	t.Run("flow failure", func(t *testing.T) {
		t.Parallel()
		handler := newTestHandler(newFakePlatform(), nil)
		handler.flow = &stubAuthenticator{err: assert.AnError}

		result, err := handler.Authenticate(context.Background(), callRequest(nil))

		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Contains(t, resultText(t, result), "Authentication failed")
	})
}

func TestHandler_CheckAuthStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		creds *auth.Credentials
		want  string
	}{
		{
			name:  "not authenticated",
			creds: nil,
			want:  "Not authenticated",
		},
		{
			name: "expired session",
			creds: func() *auth.Credentials {
				c := validCreds()
				c.ExpiresAt = time.Now().Add(-time.Hour)
				return c
			}(),
			want: "Session expired",
		},
		{
			name:  "authenticated",
			creds: validCreds(),
			want:  "Authenticated as Dev One (dev@example.com)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			handler := newTestHandler(newFakePlatform(), tt.creds)

			result, err := handler.CheckAuthStatus(context.Background(), callRequest(nil))

			require.NoError(t, err)
			assert.False(t, result.IsError)
			assert.Contains(t, resultText(t, result), tt.want)
		})
	}
}

func TestHandler_ListServers(t *testing.T) {
	t.Parallel()

	t.Run("lists the fleet", func(t *testing.T) {
		t.Parallel()
		platform := newFakePlatform()
		platform.seedFleet()
		handler := newTestHandler(platform, validCreds())

		result, err := handler.ListServers(context.Background(), callRequest(nil))

		require.NoError(t, err)
		assert.False(t, result.IsError)
		text := resultText(t, result)
		assert.Contains(t, text, "2 server(s)")
		assert.Contains(t, text, "s1")
		assert.Contains(t, text, "https://s2.example.com")
	})

	t.Run("no servers", func(t *testing.T) {
		t.Parallel()
		platform := newFakePlatform()
		platform.responses["GET https://api.test /servers?org_id=org-1"] = `[]`
		handler := newTestHandler(platform, validCreds())

		result, err := handler.ListServers(context.Background(), callRequest(nil))

		require.NoError(t, err)
		assert.Contains(t, resultText(t, result), "No servers found")
	})

	t.Run("discovery failure", func(t *testing.T) {
		t.Parallel()
		handler := newTestHandler(newFakePlatform(), validCreds())

		result, err := handler.ListServers(context.Background(), callRequest(nil))

		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Contains(t, resultText(t, result), "Failed to list servers")
	})
}

func TestHandler_ListApps(t *testing.T) {
	t.Parallel()
	platform := newFakePlatform()
	platform.seedFleet()
	platform.failures["GET https://s2.example.com /apps"] = assert.AnError
	handler := newTestHandler(platform, validCreds())

	result, err := handler.ListApps(context.Background(), callRequest(nil))

	require.NoError(t, err)
	assert.False(t, result.IsError)
	text := resultText(t, result)
	assert.Contains(t, text, "2 application(s) across 2 server(s)")
	assert.Contains(t, text, "blog (running)")
	assert.Contains(t, text, "shop")
	assert.Contains(t, text, "unavailable:")
}

func TestHandler_GetAppInfo(t *testing.T) {
	t.Parallel()

	t.Run("known app", func(t *testing.T) {
		t.Parallel()
		platform := newFakePlatform()
		platform.seedFleet()
		platform.responses["GET https://s1.example.com /apps/blog"] = `{
			"name": "blog", "status": "running", "url": "https://blog.s1.example.com",
			"git_url": "https://github.com/acme/blog", "git_branch": "main", "builder": "nixpacks"
		}`
		handler := newTestHandler(platform, validCreds())

		result, err := handler.GetAppInfo(context.Background(), callRequest(map[string]any{"app_name": "blog"}))

		require.NoError(t, err)
		assert.False(t, result.IsError)
		text := resultText(t, result)
		assert.Contains(t, text, "blog")
		assert.Contains(t, text, "s1 (https://s1.example.com)")
		assert.Contains(t, text, "https://github.com/acme/blog (main)")
		assert.Contains(t, text, "nixpacks")
	})

	t.Run("unknown app", func(t *testing.T) {
		t.Parallel()
		platform := newFakePlatform()
		platform.seedFleet()
		handler := newTestHandler(platform, validCreds())

		result, err := handler.GetAppInfo(context.Background(), callRequest(map[string]any{"app_name": "ghost"}))

		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Contains(t, resultText(t, result), "not found")
	})
}

func TestHandler_DeployFromGit(t *testing.T) {
	t.Parallel()

	t.Run("defaults branch and builder", func(t *testing.T) {
		t.Parallel()
		platform := newFakePlatform()
		platform.seedFleet()
		platform.responses["POST https://s1.example.com /apps/blog/deploy"] = `{"id": "run-1", "status": "queued"}`
		handler := newTestHandler(platform, validCreds())

		result, err := handler.DeployFromGit(context.Background(), callRequest(map[string]any{
			"app_name": "blog",
			"git_url":  "https://github.com/acme/blog",
		}))

		require.NoError(t, err)
		assert.False(t, result.IsError)
		assert.Contains(t, resultText(t, result), "Run ID: run-1")

		body, ok := platform.posted["/apps/blog/deploy"].(map[string]string)
		require.True(t, ok)
		assert.Equal(t, "main", body["git_branch"])
		assert.Equal(t, "auto", body["builder"])
	})

	t.Run("noted run skips the probe", func(t *testing.T) {
		t.Parallel()
		platform := newFakePlatform()
		platform.seedFleet()
		platform.responses["POST https://s2.example.com /apps/api/deploy"] = `{"id": "run-9", "status": "queued"}`
		platform.responses["GET https://s2.example.com /apps"] = `["api"]`
		platform.responses["GET https://s2.example.com /runs/run-9"] = `{"id": "run-9", "status": "running"}`
		handler := newTestHandler(platform, validCreds())

		_, err := handler.DeployFromGit(context.Background(), callRequest(map[string]any{
			"app_name": "api",
			"git_url":  "https://github.com/acme/api",
		}))
		require.NoError(t, err)

		result, err := handler.GetDeploymentStatus(context.Background(), callRequest(map[string]any{"run_id": "run-9"}))
		require.NoError(t, err)
		assert.False(t, result.IsError)
		assert.Contains(t, resultText(t, result), "run-9")
		assert.NotContains(t, platform.calls, "GET https://s1.example.com /runs/run-9")
	})

	t.Run("invalid builder", func(t *testing.T) {
		t.Parallel()
		handler := newTestHandler(newFakePlatform(), validCreds())

		result, err := handler.DeployFromGit(context.Background(), callRequest(map[string]any{
			"app_name": "blog",
			"git_url":  "https://github.com/acme/blog",
			"builder":  "buildpacks",
		}))

		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Contains(t, resultText(t, result), "invalid builder")
	})
}

func TestHandler_DeployFromLocal(t *testing.T) {
	t.Parallel()

	sourceDir := func(t *testing.T) string {
		t.Helper()
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "main.py"), []byte("print('hi')\n"), 0600))
		return dir
	}

	t.Run("uploads then deploys the artifact", func(t *testing.T) {
		t.Parallel()
		platform := newFakePlatform()
		platform.seedFleet()
		platform.responses["POST https://s1.example.com /apps/blog/upload"] = `{"artifact_id": "art-9"}`
		platform.responses["POST https://s1.example.com /apps/blog/deploy-local"] = `{"id": "run-7", "status": "queued"}`
		handler := newTestHandler(platform, validCreds())

		result, err := handler.DeployFromLocal(context.Background(), callRequest(map[string]any{
			"app_name":       "blog",
			"directory_path": sourceDir(t),
		}))

		require.NoError(t, err)
		assert.False(t, result.IsError)
		assert.Contains(t, resultText(t, result), "Run ID: run-7")

		body, ok := platform.posted["/apps/blog/deploy-local"].(map[string]string)
		require.True(t, ok)
		assert.Equal(t, "art-9", body["artifact_id"])
		assert.Equal(t, "auto", body["builder"])
	})

	t.Run("missing artifact id", func(t *testing.T) {
		t.Parallel()
		platform := newFakePlatform()
		platform.seedFleet()
		platform.responses["POST https://s1.example.com /apps/blog/upload"] = `{}`
		handler := newTestHandler(platform, validCreds())

		result, err := handler.DeployFromLocal(context.Background(), callRequest(map[string]any{
			"app_name":       "blog",
			"directory_path": sourceDir(t),
		}))

		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Contains(t, resultText(t, result), "artifact id")
	})
}

func TestHandler_GetDeploymentStatus(t *testing.T) {
	t.Parallel()
	platform := newFakePlatform()
	platform.seedFleet()
	platform.responses["GET https://s1.example.com /runs/run-5"] = `{
		"id": "run-5", "app": "blog", "status": "failed", "source": "git",
		"steps": [
			{"name": "build", "status": "completed"},
			{"name": "deploy", "status": "failed", "log": "port already in use\nexit 1"}
		]
	}`
	handler := newTestHandler(platform, validCreds())

	result, err := handler.GetDeploymentStatus(context.Background(), callRequest(map[string]any{"run_id": "run-5"}))

	require.NoError(t, err)
	assert.False(t, result.IsError)
	text := resultText(t, result)
	assert.Contains(t, text, "Deployment run run-5 (app: blog)")
	assert.Contains(t, text, "Status: failed")
	assert.Contains(t, text, "[ok] build")
	assert.Contains(t, text, "[failed] deploy")
	assert.Contains(t, text, "port already in use")
}

func TestHandler_GetDeploymentStatus_UnknownRun(t *testing.T) {
	t.Parallel()
	platform := newFakePlatform()
	platform.seedFleet()
	handler := newTestHandler(platform, validCreds())

	result, err := handler.GetDeploymentStatus(context.Background(), callRequest(map[string]any{"run_id": "run-404"}))

	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "run-404")
	assert.Contains(t, resultText(t, result), "not found")
}

func TestHandler_ListDeploymentRuns(t *testing.T) {
	t.Parallel()

	t.Run("lists and notes runs", func(t *testing.T) {
		t.Parallel()
		platform := newFakePlatform()
		platform.seedFleet()
		platform.responses["GET https://s1.example.com /apps/blog/runs"] = `[
			{"id": "run-1", "status": "completed", "source": "git"},
			{"id": "run-2", "status": "running", "source": "local"}
		]`
		platform.responses["GET https://s1.example.com /runs/run-2"] = `{"id": "run-2", "status": "running"}`
		handler := newTestHandler(platform, validCreds())

		result, err := handler.ListDeploymentRuns(context.Background(), callRequest(map[string]any{"app_name": "blog"}))

		require.NoError(t, err)
		assert.False(t, result.IsError)
		text := resultText(t, result)
		assert.Contains(t, text, "2 deployment run(s) for blog")
		assert.Contains(t, text, "run-1")
		assert.Contains(t, text, "run-2")

		// The listing noted run ownership; a status lookup goes straight to s1.
		probeBaseline := len(platform.calls)
		_, err = handler.GetDeploymentStatus(context.Background(), callRequest(map[string]any{"run_id": "run-2"}))
		require.NoError(t, err)
		assert.Equal(t, probeBaseline+1, len(platform.calls))
	})

	t.Run("no runs", func(t *testing.T) {
		t.Parallel()
		platform := newFakePlatform()
		platform.seedFleet()
		platform.responses["GET https://s1.example.com /apps/blog/runs"] = `[]`
		handler := newTestHandler(platform, validCreds())

		result, err := handler.ListDeploymentRuns(context.Background(), callRequest(map[string]any{"app_name": "blog"}))

		require.NoError(t, err)
		assert.Contains(t, resultText(t, result), "No deployment runs found for blog")
	})
}

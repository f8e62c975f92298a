// Package routing answers "which backend server do I talk to" for
// applications and deployment runs. It keeps three in-memory structures:
// the discovered server set, an app-name to server mapping rebuilt on every
// listing, and a grow-only run-id to server mapping filled opportunistically.
//
// Resolution is cache-first. An app miss triggers exactly one bulk listing
// refresh; a run miss triggers one linear probe across the known servers.
// The platform exposes no global run lookup, so the probe is the only way
// to locate a cold run, and its cost is bounded by the (small) fleet size.
package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/stackpilot-hq/stackpilot-mcp/pkg/core"
	"github.com/stackpilot-hq/stackpilot-mcp/pkg/logger"
)

// Getter is the slice of the API gateway the cache needs.
type Getter interface {
	Get(ctx context.Context, baseURL, path string) ([]byte, error)
}

// AppRoute is an application together with the server that owns it.
type AppRoute struct {
	App        core.App
	ServerURL  string
	ServerSlug string
}

// ServerApps is the listing outcome for a single server. Err is set when
// that server's listing call failed; its apps are then absent from the
// aggregate, but the overall listing still succeeds.
type ServerApps struct {
	Slug      string
	ServerURL string
	Apps      []core.App
	Err       error
}

// AppListing is the aggregate result of a fan-out listing across servers.
type AppListing struct {
	Total  int
	Groups []ServerApps
}

// Cache owns the server/app/run routing state for one agent process. It is
// not safe for concurrent use; the MCP host serializes tool calls, so no
// locking is needed.
type Cache struct {
	client     Getter
	apiBaseURL string
	orgID      string

	servers []core.Server
	apps    map[string]AppRoute
	runs    map[string]string
}

// NewCache creates a routing cache that discovers servers for the given
// organization through the platform API at apiBaseURL.
func NewCache(client Getter, apiBaseURL, orgID string) *Cache {
	return &Cache{
		client:     client,
		apiBaseURL: apiBaseURL,
		orgID:      orgID,
		apps:       make(map[string]AppRoute),
		runs:       make(map[string]string),
	}
}

// ListServers calls the discovery endpoint and replaces the in-memory
// server set with the result.
func (c *Cache) ListServers(ctx context.Context) ([]core.Server, error) {
	raw, err := c.client.Get(ctx, c.apiBaseURL, "/servers?org_id="+url.QueryEscape(c.orgID))
	if err != nil {
		return nil, fmt.Errorf("server discovery failed: %w", err)
	}

	var servers []core.Server
	if err := json.Unmarshal(raw, &servers); err != nil {
		return nil, fmt.Errorf("failed to decode server list: %w", err)
	}

	c.servers = servers
	return servers, nil
}

// ensureServers populates the server set only when it is empty. Once
// servers are known they are served stale until an explicit ListServers.
func (c *Cache) ensureServers(ctx context.Context) error {
	if len(c.servers) > 0 {
		return nil
	}
	_, err := c.ListServers(ctx)
	return err
}

// ListApps refreshes the app-to-server mapping from scratch: the old map is
// cleared, then every known server is asked for its apps. A server whose
// listing call fails is logged and skipped; its failure is retained in the
// returned grouping for display.
func (c *Cache) ListApps(ctx context.Context) (*AppListing, error) {
	if err := c.ensureServers(ctx); err != nil {
		return nil, err
	}

	c.apps = make(map[string]AppRoute)

	listing := &AppListing{}
	for _, srv := range c.servers {
		group := ServerApps{Slug: srv.Slug, ServerURL: srv.BaseURL()}

		raw, err := c.client.Get(ctx, srv.BaseURL(), "/apps")
		if err != nil {
			logger.Warnf("listing apps on server %s failed: %v", srv.Slug, err)
			group.Err = err
			listing.Groups = append(listing.Groups, group)
			continue
		}

		var apps []core.App
		if err := json.Unmarshal(raw, &apps); err != nil {
			logger.Warnf("server %s returned an undecodable app list: %v", srv.Slug, err)
			group.Err = err
			listing.Groups = append(listing.Groups, group)
			continue
		}

		for _, app := range apps {
			c.apps[app.Name] = AppRoute{App: app, ServerURL: srv.BaseURL(), ServerSlug: srv.Slug}
		}
		group.Apps = apps
		listing.Total += len(apps)
		listing.Groups = append(listing.Groups, group)
	}

	return listing, nil
}

// ResolveApp returns the route for the named application. A cache hit costs
// zero remote calls; a miss triggers one listing refresh and one retry.
func (c *Cache) ResolveApp(ctx context.Context, name string) (AppRoute, error) {
	if route, ok := c.apps[name]; ok {
		return route, nil
	}

	if _, err := c.ListApps(ctx); err != nil {
		return AppRoute{}, err
	}

	if route, ok := c.apps[name]; ok {
		return route, nil
	}
	return AppRoute{}, &AppNotFoundError{Name: name}
}

// ResolveRun returns the base URL of the server that owns the given
// deployment run. A cache miss probes every known server in order and
// memoizes the first one that recognizes the run. Per-server probe
// failures are swallowed; only a fully exhausted probe fails.
func (c *Cache) ResolveRun(ctx context.Context, runID string) (string, error) {
	if serverURL, ok := c.runs[runID]; ok {
		return serverURL, nil
	}

	if err := c.ensureServers(ctx); err != nil {
		return "", err
	}

	for _, srv := range c.servers {
		if _, err := c.client.Get(ctx, srv.BaseURL(), "/runs/"+url.PathEscape(runID)); err != nil {
			logger.Debugf("run %s not on server %s: %v", runID, srv.Slug, err)
			continue
		}
		c.runs[runID] = srv.BaseURL()
		return srv.BaseURL(), nil
	}

	return "", &RunNotFoundError{RunID: runID}
}

// NoteRun records the server that accepted or reported a run, so later
// status lookups skip the probe.
func (c *Cache) NoteRun(runID, serverURL string) {
	if runID == "" || serverURL == "" {
		return
	}
	c.runs[runID] = serverURL
}

// Servers returns the currently cached server set without remote calls.
func (c *Cache) Servers() []core.Server {
	return c.servers
}

// SetOrg points the cache at a different organization and drops all
// cached state.
func (c *Cache) SetOrg(orgID string) {
	c.orgID = orgID
	c.Reset()
}

// Reset drops all cached state. Called after re-authentication: the new
// identity may see a different server topology, so nothing is trusted.
func (c *Cache) Reset() {
	c.servers = nil
	c.apps = make(map[string]AppRoute)
	c.runs = make(map[string]string)
}

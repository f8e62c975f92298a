// Package core defines the StackPilot platform data model as seen by the
// agent. The platform's JSON payloads are loosely typed in places (app
// entries may be bare strings, run steps use several field-name variants
// across server versions), so deserialization normalizes everything into
// the canonical shapes defined here.
package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// Server describes one backend server of the authenticated organization,
// as returned by the platform's discovery endpoint.
type Server struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	Domain    string    `json:"domain"`
	OrgID     string    `json:"org_id"`
	CreatedAt time.Time `json:"created_at"`
}

// BaseURL derives the HTTPS base URL for API calls against this server.
func (s Server) BaseURL() string {
	return "https://" + s.Domain
}

// App is one application entry from a server's app listing. The wire shape
// is either a bare name string or an object carrying name and status.
type App struct {
	Name   string
	Status string
}

// UnmarshalJSON accepts both wire shapes for an app entry.
func (a *App) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		a.Name = name
		a.Status = ""
		return nil
	}

	var obj struct {
		Name    string `json:"name"`
		App     string `json:"app"`
		AppName string `json:"app_name"`
		Status  string `json:"status"`
		State   string `json:"state"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("app entry is neither a string nor an object: %w", err)
	}

	a.Name = firstNonEmpty(obj.Name, obj.App, obj.AppName)
	a.Status = firstNonEmpty(obj.Status, obj.State)
	if a.Name == "" {
		return fmt.Errorf("app entry has no name field")
	}
	return nil
}

// Package auth handles StackPilot credentials: the persisted bearer-token
// bundle and the device-authorization flow that produces it.
package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/stackpilot-hq/stackpilot-mcp/pkg/logger"
)

// Identity describes the authenticated user.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Organization describes the user's organization membership.
type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// Credentials is the bearer-token bundle persisted between sessions. A new
// bundle always fully replaces the old one; nothing is ever merged.
type Credentials struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        Identity     `json:"user"`
	Org         Organization `json:"org"`
}

// Expired reports whether the bundle's expiry instant has passed.
func (c *Credentials) Expired() bool {
	return !time.Now().Before(c.ExpiresAt)
}

// defaultPathGenerator generates the default credentials path using xdg.
var defaultPathGenerator = func() (string, error) {
	return filepath.Join(xdg.ConfigHome, "stackpilot", "credentials.json"), nil
}

// getCredentialsPath is the current path generator, can be replaced in tests.
var getCredentialsPath = defaultPathGenerator

// Load reads the persisted credential bundle. It returns nil without an
// error when the file is absent, unreadable, malformed, or expired; an
// expired bundle only emits a notice so the caller can re-authenticate.
func Load() (*Credentials, error) {
	path, err := getCredentialsPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve credentials path: %w", err)
	}

	raw, err := os.ReadFile(path) // #nosec G304 - fixed per-user config path
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Debugf("credentials file unreadable: %v", err)
		}
		return nil, nil
	}

	var creds Credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		logger.Debugf("credentials file malformed: %v", err)
		return nil, nil
	}

	if creds.Expired() {
		logger.Infof("stored credentials expired at %s, re-authentication required", creds.ExpiresAt.Format(time.RFC3339))
		return nil, nil
	}

	return &creds, nil
}

// Save persists the credential bundle, overwriting any previous one. The
// parent directory and the file itself are owner-only.
func Save(creds *Credentials) error {
	path, err := getCredentialsPath()
	if err != nil {
		return fmt.Errorf("failed to resolve credentials path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}

	raw, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	if err := os.WriteFile(path, raw, 0600); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	return nil
}

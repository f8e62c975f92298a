// Package config contains the endpoint configuration for the agent and the
// logic to resolve it from the environment.
package config

import (
	"strings"

	"github.com/spf13/viper"
)

const (
	// DefaultAPIBaseURL is the StackPilot platform API used for server
	// discovery. Per-application calls go to the server that owns the
	// application, not to this URL.
	DefaultAPIBaseURL = "https://api.stackpilot.dev"

	// DefaultAuthBaseURL is the identity provider used for the device
	// authorization flow.
	DefaultAuthBaseURL = "https://auth.stackpilot.dev"
)

// Settings holds the resolved endpoint configuration.
type Settings struct {
	// APIBaseURL is the base URL for the deployment platform API.
	APIBaseURL string

	// AuthBaseURL is the base URL for the identity provider.
	AuthBaseURL string
}

// Load resolves settings from the environment, falling back to the built-in
// endpoints. Overrides: STACKPILOT_API_URL, STACKPILOT_AUTH_URL.
func Load() Settings {
	v := viper.New()
	v.SetEnvPrefix("STACKPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("api_url", DefaultAPIBaseURL)
	v.SetDefault("auth_url", DefaultAuthBaseURL)

	return Settings{
		APIBaseURL:  strings.TrimRight(v.GetString("api_url"), "/"),
		AuthBaseURL: strings.TrimRight(v.GetString("auth_url"), "/"),
	}
}

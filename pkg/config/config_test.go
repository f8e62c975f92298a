package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) { //nolint:paralleltest // reads env
	t.Setenv("STACKPILOT_API_URL", "")
	t.Setenv("STACKPILOT_AUTH_URL", "")

	settings := Load()
	assert.Equal(t, DefaultAPIBaseURL, settings.APIBaseURL)
	assert.Equal(t, DefaultAuthBaseURL, settings.AuthBaseURL)
}

func TestLoadEnvOverrides(t *testing.T) { //nolint:paralleltest // mutates env
	t.Setenv("STACKPILOT_API_URL", "https://api.staging.example.com/")
	t.Setenv("STACKPILOT_AUTH_URL", "https://auth.staging.example.com")

	settings := Load()
	assert.Equal(t, "https://api.staging.example.com", settings.APIBaseURL)
	assert.Equal(t, "https://auth.staging.example.com", settings.AuthBaseURL)
}

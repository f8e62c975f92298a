package auth

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setCredentialsPathForTest points the store at a temp location and
// restores the default generator when the test completes.
func setCredentialsPathForTest(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stackpilot", "credentials.json")
	prev := getCredentialsPath
	getCredentialsPath = func() (string, error) { return path, nil }
	t.Cleanup(func() { getCredentialsPath = prev })
	return path
}

func validCredentials() *Credentials {
	return &Credentials{
		AccessToken: "tok-123",
		TokenType:   "Bearer",
		ExpiresAt:   time.Now().Add(time.Hour),
		User:        Identity{ID: "u1", Email: "dev@example.com", Name: "Dev"},
		Org:         Organization{ID: "org1", Name: "Acme", Role: "admin"},
	}
}

func TestSaveLoadRoundtrip(t *testing.T) { //nolint:paralleltest // swaps path generator
	path := setCredentialsPathForTest(t)

	want := validCredentials()
	require.NoError(t, Save(want))

	got, err := Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.AccessToken, got.AccessToken)
	assert.Equal(t, want.User, got.User)
	assert.Equal(t, want.Org, got.Org)
	assert.WithinDuration(t, want.ExpiresAt, got.ExpiresAt, time.Second)

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

		dirInfo, err := os.Stat(filepath.Dir(path))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0700), dirInfo.Mode().Perm())
	}
}

func TestLoadAbsentReturnsNil(t *testing.T) { //nolint:paralleltest // swaps path generator
	setCredentialsPathForTest(t)

	got, err := Load()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLoadMalformedReturnsNil(t *testing.T) { //nolint:paralleltest // swaps path generator
	path := setCredentialsPathForTest(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	got, err := Load()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLoadExpiredTreatedAsAbsent(t *testing.T) { //nolint:paralleltest // swaps path generator
	setCredentialsPathForTest(t)

	expired := validCredentials()
	expired.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, Save(expired))

	got, err := Load()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSaveOverwritesFully(t *testing.T) { //nolint:paralleltest // swaps path generator
	setCredentialsPathForTest(t)

	first := validCredentials()
	require.NoError(t, Save(first))

	second := validCredentials()
	second.AccessToken = "tok-456"
	second.Org = Organization{ID: "org2", Name: "Beta", Role: "member"}
	require.NoError(t, Save(second))

	got, err := Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "tok-456", got.AccessToken)
	assert.Equal(t, "org2", got.Org.ID)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:3333", cfg.API.URL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, "Accepted", cfg.Hook.RefStates["refs/heads/master"])
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pthook.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api:
  url: https://patches.example.com
  token: file-token
  timeout: 5s
hook:
  ref_states:
    refs/heads/main: Accepted
    refs/heads/next: Under Review
  git_dir: /srv/git/linux.git
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://patches.example.com", cfg.API.URL)
	assert.Equal(t, "file-token", cfg.API.Token)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, "/srv/git/linux.git", cfg.Hook.GitDir)
	assert.Equal(t, "Under Review", cfg.Hook.RefStates["refs/heads/next"])
	// The file's map replaces the default one entirely.
	assert.NotContains(t, cfg.Hook.RefStates, "refs/heads/master")
}

func TestLoadEnvTokenOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pthook.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api:\n  token: file-token\n"), 0o600))

	t.Setenv("PTHOOK_TOKEN", "env-token")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.API.Token)
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pthook.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api: [not a map"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "http://localhost:8000/api", cfg.Backend.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Backend.StaleTime)
	assert.Equal(t, 1, cfg.Backend.Retry)
	assert.True(t, cfg.Backend.AutoNextRound)
	assert.True(t, cfg.Backend.SignedURLs)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 256, cfg.Session.MaxSessions)
	assert.True(t, cfg.Security.RequireToken)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
backend:
  base_url: "https://banquiz.example/api"
  stale_time: 10s
session:
  max_sessions: 4
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("BANQUIZ_BACKEND_RETRY", "3")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "https://banquiz.example/api", cfg.Backend.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Backend.StaleTime)
	assert.Equal(t, 4, cfg.Session.MaxSessions)
	assert.Equal(t, 3, cfg.Backend.Retry)
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Server:  ServerConfig{Port: 8080},
		Backend: BackendConfig{BaseURL: "http://x"},
		Session: SessionConfig{MaxSessions: 1},
	}
	assert.NoError(t, cfg.Validate())

	cfg.Backend.BaseURL = ""
	assert.Error(t, cfg.Validate())

	cfg.Backend.BaseURL = "http://x"
	cfg.Server.Port = 70000
	assert.Error(t, cfg.Validate())

	cfg.Server.Port = 8080
	cfg.Session.MaxSessions = 0
	assert.Error(t, cfg.Validate())
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadDotEnv_Missing(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))
}

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("BANQUIZ_TEST_KEEP=from_file\nBANQUIZ_TEST_NEW=new\n"), 0o644))

	t.Setenv("BANQUIZ_TEST_KEEP", "from_env")
	t.Setenv("BANQUIZ_TEST_NEW", "")
	os.Unsetenv("BANQUIZ_TEST_NEW")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from_env", os.Getenv("BANQUIZ_TEST_KEEP"))
	assert.Equal(t, "new", os.Getenv("BANQUIZ_TEST_NEW"))
}

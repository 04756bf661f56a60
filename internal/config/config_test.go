package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "HS256", cfg.Auth.JWTAlgorithm)
	assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, time.Hour, cfg.Cache.ProjectTTL)
	assert.Equal(t, int64(10<<20), cfg.Storage.MaxUploadBytes)
	assert.Equal(t, 1000, cfg.List.MaxLimit)
	assert.Equal(t, 3, cfg.AI.MaxAttempts)

	assert.Error(t, cfg.Validate(), "a signing secret is mandatory")
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "intellitest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
auth:
  jwt_secret: from-file
  token_ttl: 45m
cache:
  redis_addr: localhost:6379
list:
  max_limit: 50
`), 0o600))

	t.Setenv("INTELLITEST_AUTH_JWT_SECRET", "from-env")
	t.Setenv("INTELLITEST_AI_API_KEY", "sk-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, 45*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, "localhost:6379", cfg.Cache.RedisAddr)
	assert.Equal(t, 50, cfg.List.MaxLimit)
	assert.Equal(t, "sk-env", cfg.AI.APIKey)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

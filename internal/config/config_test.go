package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(t.TempDir(), "missing")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "in-memory", cfg.Storage.Driver)
	assert.Equal(t, 10, cfg.Pagination.PageSize)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 20*time.Second, cfg.Cache.TTL)
	assert.Equal(t, "./media", cfg.Media.Local.BasePath)
	assert.Equal(t, "/auth/login/", cfg.Auth.LoginURL)
	assert.Equal(t, cfg.Redis.Address, cfg.Events.Redis.Address)
}

func TestLoadFrom_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
server:
  port: 9000
cache:
  backend: redis
  ttl: 45s
pagination:
  page_size: 5
database:
  driver: sqlite
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blog.yaml"), yaml, 0o644))

	t.Setenv("PAGE_SIZE", "7")
	t.Setenv("MEDIA_ROOT", "/srv/media")

	cfg, err := LoadFrom(dir, "blog")
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, 45*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 7, cfg.Pagination.PageSize, "env overrides file")
	assert.Equal(t, "/srv/media", cfg.Media.Local.BasePath)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr())
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/ini.v1"
)

func TestDefaults(t *testing.T) {
	cfg := FromFile(ini.Empty())

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, Range{1, 100, 10}, cfg.Grid.Defaults["pressure"])
	assert.Equal(t, Range{0, 100, 5}, cfg.Grid.Defaults["temperature"])
	assert.Equal(t, "x_major", cfg.Flash.Traversal)
	assert.Equal(t, "wilson", cfg.Engine.Driver)
	assert.Equal(t, 8, cfg.Phase.ProbesX)
	assert.Equal(t, 10*time.Second, cfg.Engine.Timeout)
	assert.Equal(t, 5.0, cfg.Grid.EnhancementFactor)
	assert.Zero(t, cfg.Grid.BoundaryZoneWidth)
}

func TestFromFile(t *testing.T) {
	file, err := ini.Load([]byte(`
[log]
format = json
level = debug

[grid]
pressure_to = 50

[flash]
parallel = true
workers = 8
point_timeout = 250ms
traversal = sideways

[engine]
driver = remote
url = http://engine:9000
`))
	require.NoError(t, err)
	cfg := FromFile(file)

	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, Range{1, 50, 10}, cfg.Grid.Defaults["pressure"])
	assert.True(t, cfg.Flash.Parallel)
	assert.Equal(t, 8, cfg.Flash.Workers)
	assert.Equal(t, 250*time.Millisecond, cfg.Flash.PointTimeout)
	assert.Equal(t, "x_major", cfg.Flash.Traversal, "unknown values fall back")
	assert.Equal(t, "remote", cfg.Engine.Driver)
}

func TestLoadWithEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "svc.ini")
	require.NoError(t, os.WriteFile(path, []byte("[server]\naddr = :9000\n"), 0o600))

	t.Setenv("FLASHGRID_ADDR", ":7000")
	t.Setenv("TOKEN_KEY", "secret")
	t.Setenv("ENGINE_URL", "http://engine/")
	t.Setenv("DATABASE_URL", "postgres://x")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, "secret", cfg.Server.TokenKey)
	assert.Equal(t, "http://engine", cfg.Engine.URL)
	assert.Equal(t, "remote", cfg.Engine.Driver)
	assert.Equal(t, "postgres://x", cfg.Limits.DatabaseURL)
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.ini"))
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Limits.HistoryLimit)
}

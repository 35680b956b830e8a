package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, Validate(cfg))
	assert.Equal(t, 30*time.Second, cfg.Runtime.Timeout)
	assert.Equal(t, []string{"run", "main"}, cfg.Runtime.EntryPoints)
}

func TestLoadNonExistentReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workspace.yaml")
	data := `
log:
  level: debug
  format: json
runtime:
  timeout: 5s
  memory_limit_pages: 256
database:
  checkpoint_path: /var/lib/workspace/checkpoints.db
bookmarks:
  file: /home/user/Bookmarks
  resync: "@every 1m"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 5*time.Second, cfg.Runtime.Timeout)
	assert.Equal(t, uint32(256), cfg.Runtime.MemoryLimitPages)
	assert.Equal(t, []string{"run", "main"}, cfg.Runtime.EntryPoints, "unset fields keep defaults")
	assert.Equal(t, "/var/lib/workspace/checkpoints.db", cfg.Database.CheckpointPath)
	assert.Equal(t, "@every 1m", cfg.Bookmarks.Resync)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workspace.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: loud\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Level")
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workspace.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log: [unterminated"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("WORKSPACE_LOG_LEVEL", "warn")
	t.Setenv("WORKSPACE_RUNTIME_TIMEOUT", "0s")
	t.Setenv("WORKSPACE_RUNTIME_ENTRY_POINTS", "start, run")
	t.Setenv("WORKSPACE_TRACING_ENABLED", "true")
	t.Setenv("WORKSPACE_SERVER_ADDR", "0.0.0.0:9000")

	cfg := Defaults()
	require.NoError(t, ApplyEnvOverrides(cfg))
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, time.Duration(0), cfg.Runtime.Timeout)
	assert.Equal(t, []string{"start", "run"}, cfg.Runtime.EntryPoints)
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	require.NoError(t, Validate(cfg))
}

func TestEnvOverridesBadValues(t *testing.T) {
	tests := map[string]string{
		"WORKSPACE_RUNTIME_TIMEOUT":            "soon",
		"WORKSPACE_RUNTIME_MEMORY_LIMIT_PAGES": "-1",
		"WORKSPACE_TRACING_ENABLED":            "maybe",
	}
	for key, val := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			assert.Error(t, ApplyEnvOverrides(Defaults()))
		})
	}
}

func TestValidateRules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no entry points", func(c *Config) { c.Runtime.EntryPoints = nil }},
		{"blank entry point", func(c *Config) { c.Runtime.EntryPoints = []string{""} }},
		{"negative timeout", func(c *Config) { c.Runtime.Timeout = -time.Second }},
		{"too many pages", func(c *Config) { c.Runtime.MemoryLimitPages = 70000 }},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }},
		{"bad addr", func(c *Config) { c.Server.Addr = "nowhere" }},
		{"bad exporter", func(c *Config) { c.Tracing.Exporter = "jaeger" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}

func TestSchema(t *testing.T) {
	data, err := Schema()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(data, &schema))
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok, "expanded schema has top-level properties")
	for _, key := range []string{"log", "runtime", "database", "bookmarks", "server", "tracing"} {
		assert.Contains(t, props, key)
	}
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		logger, err := LogConfig{Level: "debug", Format: format}.NewLogger()
		require.NoError(t, err)
		assert.NotNil(t, logger)
	}
	_, err := LogConfig{Level: "chatty", Format: "json"}.NewLogger()
	assert.Error(t, err)
}

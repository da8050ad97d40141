package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("nil map yields empty config", func(t *testing.T) {
		cfg := New(nil)
		assert.Equal(t, "fallback", cfg.String("anything", "fallback"))
	})
}

func TestConfig_String(t *testing.T) {
	cfg := New(map[string]any{
		"log_level": "debug",
		"number":    42,
	})

	assert.Equal(t, "debug", cfg.String("log_level", "info"))
	assert.Equal(t, "info", cfg.String("missing", "info"))
	assert.Equal(t, "info", cfg.String("number", "info"), "wrong type falls back to default")
}

func TestConfig_Bool(t *testing.T) {
	cfg := New(map[string]any{
		"tracing": true,
		"metrics": false,
		"name":    "orders",
	})

	assert.True(t, cfg.Bool("tracing", false))
	assert.False(t, cfg.Bool("metrics", true))
	assert.True(t, cfg.Bool("missing", true))
	assert.False(t, cfg.Bool("name", false), "wrong type falls back to default")
}

func TestConfig_Int(t *testing.T) {
	cfg := New(map[string]any{
		"workers":   4,
		"queue":     int64(128),
		"from_json": float64(16),
		"fraction":  1.5,
		"name":      "orders",
	})

	assert.Equal(t, 4, cfg.Int("workers", 0))
	assert.Equal(t, 128, cfg.Int("queue", 0), "int64 values convert")
	assert.Equal(t, 16, cfg.Int("from_json", 0), "whole float64 values convert")
	assert.Equal(t, 0, cfg.Int("fraction", 0), "fractional values fall back to default")
	assert.Equal(t, 8, cfg.Int("missing", 8))
	assert.Equal(t, 8, cfg.Int("name", 8), "wrong type falls back to default")
}

func TestFromYAML(t *testing.T) {
	t.Run("parses valid yaml", func(t *testing.T) {
		cfg, err := FromYAML([]byte("tracing: true\nparallel_workers: 4\nlog_level: debug\n"))
		require.NoError(t, err)

		assert.True(t, cfg.Bool("tracing", false))
		assert.Equal(t, 4, cfg.Int("parallel_workers", 0))
		assert.Equal(t, "debug", cfg.String("log_level", ""))
	})

	t.Run("rejects invalid yaml", func(t *testing.T) {
		_, err := FromYAML([]byte(":\n  - ]["))
		assert.Error(t, err)
	})
}

func TestFromJSON(t *testing.T) {
	t.Run("parses valid json", func(t *testing.T) {
		cfg, err := FromJSON([]byte(`{"metrics": true, "parallel_workers": 8}`))
		require.NoError(t, err)

		assert.True(t, cfg.Bool("metrics", false))
		assert.Equal(t, 8, cfg.Int("parallel_workers", 0), "JSON numbers decode as float64")
	})

	t.Run("rejects invalid json", func(t *testing.T) {
		_, err := FromJSON([]byte("{not json"))
		assert.Error(t, err)
	})
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()

	writeFile := func(t *testing.T, name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	t.Run("yaml extension", func(t *testing.T) {
		path := writeFile(t, "config.yaml", "tracing: true\n")
		cfg, err := FromFile(path)
		require.NoError(t, err)
		assert.True(t, cfg.Bool("tracing", false))
	})

	t.Run("yml extension", func(t *testing.T) {
		path := writeFile(t, "config.yml", "log_level: warn\n")
		cfg, err := FromFile(path)
		require.NoError(t, err)
		assert.Equal(t, "warn", cfg.String("log_level", ""))
	})

	t.Run("json extension", func(t *testing.T) {
		path := writeFile(t, "config.json", `{"parallel_workers": 2}`)
		cfg, err := FromFile(path)
		require.NoError(t, err)
		assert.Equal(t, 2, cfg.Int("parallel_workers", 0))
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := writeFile(t, "config.toml", "tracing = true\n")
		_, err := FromFile(path)
		assert.ErrorContains(t, err, "unsupported config file extension")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := FromFile(filepath.Join(dir, "does-not-exist.yaml"))
		assert.Error(t, err)
	})
}

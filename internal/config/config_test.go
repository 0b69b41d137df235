package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	require.Equal(t, "127.0.0.1", cfg.Host)
	require.Equal(t, 3000, cfg.Port)
	require.Equal(t, ".data/streams", cfg.DataDir)
}

func TestLoadAppliesYAMLThenFlags(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("host: 0.0.0.0\nport: 4000\n"), 0644))

	cfg, err := Load(yamlPath, "", []string{"-port", "5000"})
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0", cfg.Host)
	require.Equal(t, 5000, cfg.Port)
}

func TestLoadMissingYAMLIsNotAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "", nil)
	require.NoError(t, err)
	require.Equal(t, Defaults().Host, cfg.Host)
}

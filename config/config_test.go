package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wudi/magpie/config"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"core", "io", "net"}, cfg.NativeNamespaces)
	assert.Zero(t, cfg.GCThresholdBytes)
}

func TestLoadParsesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "magpie.yaml")
	content := "gc_threshold_bytes: 4194304\ncore_lib_path: /opt/magpie/core\nnative_namespaces: [core, io]\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(4194304), cfg.GCThresholdBytes)
	assert.Equal(t, "/opt/magpie/core", cfg.CoreLibPath)
	assert.Equal(t, []string{"core", "io"}, cfg.NativeNamespaces)
}

func TestLoadMalformedFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "magpie.yaml")
	require.NoError(t, os.WriteFile(path, []byte("not: [valid: yaml"), 0o644))

	_, err := config.Load(path)
	assert.Error(t, err)
}

package sprender

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Valid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestParseConfig_OverridesDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
debug = true
min_uniform_alignment = 512

[window]
width = 800
title = "demo"

[pools]
render_meshes = 4
`))
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.Equal(t, uint32(512), cfg.MinUniformAlignment)
	assert.Equal(t, 800, cfg.Window.Width)
	assert.Equal(t, 720, cfg.Window.Height)
	assert.Equal(t, "demo", cfg.Window.Title)
	assert.Equal(t, uint32(4), cfg.Pools.RenderMeshes)
	assert.Equal(t, DefaultConfig().Pools.Meshes, cfg.Pools.Meshes)
}

func TestParseConfig_RejectsUnknownKeys(t *testing.T) {
	_, err := ParseConfig([]byte("[pools]\nmeshs = 3\n"))
	require.Error(t, err)
}

func TestParseConfig_Validates(t *testing.T) {
	_, err := ParseConfig([]byte("min_uniform_alignment = 300\n"))
	assert.ErrorContains(t, err, "power of two")

	_, err = ParseConfig([]byte("[pools]\nlights = 0\n"))
	assert.ErrorContains(t, err, "non-zero")
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sprender.toml")
	require.NoError(t, os.WriteFile(path, []byte("[shadow]\nmap_size = 1024\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(1024), cfg.Shadow.MapSize)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

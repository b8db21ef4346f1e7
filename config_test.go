package strata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testConfig = `
[world]
entity_capacity = 64
debug = true

[tree]
min_leaf_size = 32.0
max_depth = 4

[draw]
lower_pixel_radius = 1.0
upper_pixel_radius = 3.0

[camera]
width = 640
height = 360
zoom = 2.0

[logging]
level = "debug"
format = "json"

[[layers]]
name = "far"
side_length = 8000.0
wrapped = true
z_depth = 2000.0

[[layers]]
name = "field"
side_length = 4000.0
wrapped = true
main = true
`

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(testConfig))
	require.NoError(t, err)

	require.Equal(t, 64, cfg.World.EntityCapacity)
	require.True(t, cfg.World.Debug)
	require.Equal(t, TreeConfig{MinLeafSize: 32, MaxDepth: 4}, cfg.Tree)
	require.Equal(t, DrawConfig{LowerPixelRadius: 1, UpperPixelRadius: 3}, cfg.Draw)
	require.Equal(t, 640, cfg.Camera.Width)
	require.Equal(t, 2.0, cfg.Camera.Zoom)
	require.Equal(t, float64(DefaultFocalDepth), cfg.Camera.FocalDepth, "unset keys keep their defaults")
	require.Equal(t, LoggingConfig{Level: "debug", Format: "json"}, cfg.Logging)
	require.Equal(t, []LayerConfig{
		{Name: "far", SideLength: 8000, Wrapped: true, ZDepth: 2000},
		{Name: "field", SideLength: 4000, Wrapped: true, Main: true},
	}, cfg.Layers)
}

func TestParseConfigEmptyGivesDefaults(t *testing.T) {
	cfg, err := ParseConfig(nil)
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestParseConfigErrors(t *testing.T) {
	cases := map[string]string{
		"syntax":         "[world\n",
		"capacity":       "[world]\nentity_capacity = 70000\n",
		"leaf":           "[tree]\nmin_leaf_size = 0.0\n",
		"thresholds":     "[draw]\nlower_pixel_radius = 3.0\nupper_pixel_radius = 1.0\n",
		"zoom":           "[camera]\nzoom = 0.0\n",
		"unnamed layer":  "[[layers]]\nside_length = 10.0\n",
		"duplicate name": "[[layers]]\nname = \"a\"\nside_length = 10.0\n[[layers]]\nname = \"a\"\nside_length = 10.0\n",
		"side":           "[[layers]]\nname = \"a\"\nside_length = -1.0\n",
		"two mains":      "[[layers]]\nname = \"a\"\nside_length = 10.0\nmain = true\n[[layers]]\nname = \"b\"\nside_length = 10.0\nmain = true\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfig([]byte(data))
			require.Error(t, err)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.toml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Layers, 2)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.ErrorIs(t, err, os.ErrNotExist)
	require.Contains(t, err.Error(), "missing.toml")
}

func TestConfigBuildsWorld(t *testing.T) {
	cfg, err := ParseConfig([]byte(testConfig))
	require.NoError(t, err)

	w, err := cfg.NewWorld(nil, WithLogger(zap.NewNop()))
	require.NoError(t, err)
	require.Equal(t, 64, w.Capacity())
	require.Len(t, w.Layers(), 2)
	require.Equal(t, "field", w.MainLayer().Name)
	require.True(t, w.MainLayer().IsWrapped())
	require.Equal(t, 4, w.Layers()[0].Root().Depth(), "tree depth is capped by max_depth")
	require.True(t, w.debug)

	cam := cfg.NewCamera()
	require.Equal(t, Rect{Width: 640, Height: 360}, cam.Viewport)
	require.Equal(t, 2.0, cam.Zoom)
	require.Equal(t, cfg.Draw, cfg.NewDrawCollector().Config())

	cfg.World.EntityCapacity = 0
	_, err = cfg.NewWorld(nil)
	require.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	log, err := NewLogger(LoggingConfig{Level: "debug", Format: "json"})
	require.NoError(t, err)
	require.True(t, log.Core().Enabled(zap.DebugLevel))

	log, err = NewLogger(LoggingConfig{Level: "warn"})
	require.NoError(t, err)
	require.False(t, log.Core().Enabled(zap.InfoLevel))
	require.True(t, log.Core().Enabled(zap.WarnLevel))

	log, err = NewLogger(LoggingConfig{Level: "chatty"})
	require.NoError(t, err)
	require.True(t, log.Core().Enabled(zap.InfoLevel))
	require.False(t, log.Core().Enabled(zap.DebugLevel))
}

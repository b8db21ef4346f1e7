package strata

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the TOML description of a World, its camera and its logging.
//
//	[world]
//	entity_capacity = 1024
//
//	[[layers]]
//	name = "field"
//	side_length = 4000.0
//	wrapped = true
//	main = true
type Config struct {
	World   WorldConfig   `toml:"world"`
	Tree    TreeConfig    `toml:"tree"`
	Draw    DrawConfig    `toml:"draw"`
	Camera  CameraConfig  `toml:"camera"`
	Logging LoggingConfig `toml:"logging"`
	Layers  []LayerConfig `toml:"layers"`
}

type WorldConfig struct {
	EntityCapacity int  `toml:"entity_capacity"`
	Debug          bool `toml:"debug"` // validate every frame
}

type CameraConfig struct {
	Width      int     `toml:"width"`
	Height     int     `toml:"height"`
	Zoom       float64 `toml:"zoom"` // pixels per main-layer unit
	FocalDepth float64 `toml:"focal_depth"`
}

// DefaultConfig returns a Config with every default filled in and no layers.
func DefaultConfig() *Config {
	return &Config{
		World: WorldConfig{
			EntityCapacity: DefaultEntityCapacity,
		},
		Tree: DefaultTreeConfig(),
		Draw: DefaultDrawConfig(),
		Camera: CameraConfig{
			Width:      1280,
			Height:     720,
			Zoom:       1,
			FocalDepth: DefaultFocalDepth,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig reads and parses a TOML config file over the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig parses TOML data over the defaults and validates the result.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and layer consistency.
func (c *Config) Validate() error {
	if c.World.EntityCapacity <= 0 || c.World.EntityCapacity >= MaxEntityCapacity {
		return fmt.Errorf("world.entity_capacity %d out of range (1..%d)", c.World.EntityCapacity, MaxEntityCapacity-1)
	}
	if c.Tree.MinLeafSize <= 0 {
		return fmt.Errorf("tree.min_leaf_size must be positive, got %v", c.Tree.MinLeafSize)
	}
	if c.Tree.MaxDepth < 0 {
		return fmt.Errorf("tree.max_depth must not be negative, got %d", c.Tree.MaxDepth)
	}
	if c.Draw.LowerPixelRadius < 0 || c.Draw.UpperPixelRadius < c.Draw.LowerPixelRadius {
		return fmt.Errorf("draw thresholds lower=%v upper=%v invalid", c.Draw.LowerPixelRadius, c.Draw.UpperPixelRadius)
	}
	if c.Camera.Zoom <= 0 || c.Camera.FocalDepth <= 0 {
		return fmt.Errorf("camera zoom and focal_depth must be positive")
	}
	seen := make(map[string]bool, len(c.Layers))
	mains := 0
	for i, l := range c.Layers {
		if l.Name == "" {
			return fmt.Errorf("layers[%d]: missing name", i)
		}
		if seen[l.Name] {
			return fmt.Errorf("layers[%d]: duplicate name %q", i, l.Name)
		}
		seen[l.Name] = true
		if !(l.SideLength > 0) {
			return fmt.Errorf("layer %q: side_length must be positive, got %v", l.Name, l.SideLength)
		}
		if l.Main {
			mains++
		}
	}
	if mains > 1 {
		return fmt.Errorf("%d layers marked main, want at most one", mains)
	}
	return nil
}

// NewWorld builds a World with the configured capacity, tree shape and
// layers. Options are applied after the config-derived ones.
func (c *Config) NewWorld(physics PhysicsHandler, opts ...WorldOption) (*World, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	base := []WorldOption{WithTreeConfig(c.Tree), WithDebug(c.World.Debug)}
	w := NewWorld(c.World.EntityCapacity, physics, append(base, opts...)...)
	for _, lc := range c.Layers {
		w.NewLayer(lc)
	}
	return w, nil
}

// NewCamera creates a camera sized and zoomed per the config.
func (c *Config) NewCamera() *Camera {
	cam := NewCamera(Rect{Width: float64(c.Camera.Width), Height: float64(c.Camera.Height)})
	cam.Zoom = c.Camera.Zoom
	cam.FocalDepth = c.Camera.FocalDepth
	return cam
}

// NewDrawCollector creates a collector with the configured thresholds.
func (c *Config) NewDrawCollector() *DrawCollector {
	return NewDrawCollector(c.Draw)
}

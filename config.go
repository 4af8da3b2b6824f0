package sprender

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config holds everything the renderer sizes up front. Pools never grow,
// so the capacities here are hard limits for the lifetime of an Engine.
type Config struct {
	Window  WindowConfig  `toml:"window"`
	Pools   PoolConfig    `toml:"pools"`
	Staging StagingConfig `toml:"staging"`
	Shadow  ShadowConfig  `toml:"shadow"`

	// MinUniformAlignment raises the device-reported dynamic offset alignment.
	// Zero keeps the device value.
	MinUniformAlignment uint32     `toml:"min_uniform_alignment"`
	ClearColor          [4]float64 `toml:"clear_color"`
	FontPath            string     `toml:"font_path"`
	Debug               bool       `toml:"debug"`
}

type WindowConfig struct {
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
	Title  string `toml:"title"`
}

type PoolConfig struct {
	Meshes       uint32 `toml:"meshes"`
	Materials    uint32 `toml:"materials"`
	Lights       uint32 `toml:"lights"`
	Nodes        uint32 `toml:"nodes"`
	RenderMeshes uint32 `toml:"render_meshes"`
}

type StagingConfig struct {
	// MaxIdle is how many mapped staging buffers are kept around for reuse.
	MaxIdle int `toml:"max_idle"`
}

type ShadowConfig struct {
	MapSize uint32 `toml:"map_size"`
}

func DefaultConfig() Config {
	return Config{
		Window: WindowConfig{Width: 1280, Height: 720, Title: "sprender"},
		Pools: PoolConfig{
			Meshes:       256,
			Materials:    64,
			Lights:       16,
			Nodes:        4096,
			RenderMeshes: 2048,
		},
		Staging:    StagingConfig{MaxIdle: 3},
		Shadow:     ShadowConfig{MapSize: 2048},
		ClearColor: [4]float64{0.05, 0.05, 0.08, 1},
	}
}

// LoadConfig reads a TOML file over the defaults. Keys not known to Config
// are an error.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Config{}, fmt.Errorf("config: %s", strict.String())
		}
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("config: window size %dx%d must be positive", c.Window.Width, c.Window.Height)
	}
	p := c.Pools
	if p.Meshes == 0 || p.Materials == 0 || p.Lights == 0 || p.Nodes == 0 || p.RenderMeshes == 0 {
		return errors.New("config: pool capacities must be non-zero")
	}
	if c.Staging.MaxIdle < 1 {
		return fmt.Errorf("config: staging.max_idle %d must be at least 1", c.Staging.MaxIdle)
	}
	if a := c.MinUniformAlignment; a != 0 && a&(a-1) != 0 {
		return fmt.Errorf("config: min_uniform_alignment %d is not a power of two", a)
	}
	if c.Shadow.MapSize == 0 {
		return errors.New("config: shadow.map_size must be non-zero")
	}
	return nil
}

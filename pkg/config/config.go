// Package config provides configuration loading for the isosurface pipeline.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/chazu/isoblob/pkg/field"
	"github.com/chazu/isoblob/pkg/mesh"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all pipeline configuration parameters.
type Config struct {
	Field      FieldConfig      `yaml:"field"`
	Diffusion  DiffusionConfig  `yaml:"diffusion"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Mesh       MeshConfig       `yaml:"mesh"`
	Host       HostConfig       `yaml:"host"`
	Camera     CameraConfig     `yaml:"camera"`
}

// FieldConfig holds density grid and seeding parameters.
type FieldConfig struct {
	Size           int     `yaml:"size"`
	SeedFraction   float64 `yaml:"seed_fraction"`
	RadiusFraction float64 `yaml:"radius_fraction"`
	SeedValue      float32 `yaml:"seed_value"`
}

// DiffusionConfig holds smoothing parameters.
type DiffusionConfig struct {
	Passes int `yaml:"passes"`
}

// ExtractionConfig holds isosurface extraction parameters.
type ExtractionConfig struct {
	Isovalue float64       `yaml:"isovalue"`
	Budget   time.Duration `yaml:"budget"`
	Slabs    int           `yaml:"slabs"`
	Indexed  bool          `yaml:"indexed"`
}

// MeshConfig holds post-processing parameters.
type MeshConfig struct {
	Normals string `yaml:"normals"` // auto, smooth or faceted
}

// HostConfig holds scheduling parameters for the driving loop.
type HostConfig struct {
	FrameRate int           `yaml:"frame_rate"`
	Timeout   time.Duration `yaml:"timeout"`
}

// CameraConfig holds viewing parameters.
type CameraConfig struct {
	FOVDegrees     float32 `yaml:"fov_degrees"`
	Near           float32 `yaml:"near"`
	Far            float32 `yaml:"far"`
	DistanceFactor float32 `yaml:"distance_factor"`
	Drag           float32 `yaml:"drag"`
	SpinX          float32 `yaml:"spin_x"`
	SpinY          float32 `yaml:"spin_y"`
}

// Default returns the embedded defaults.
func Default() *Config {
	cfg, err := Parse(nil)
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	return cfg
}

// Load reads the embedded defaults and overlays the YAML file at path, if
// path is non-empty. Only keys present in the file are overwritten.
func Load(path string) (*Config, error) {
	if path == "" {
		return Parse(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse overlays data on the embedded defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid value at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Field.Size >= 1, "field.size must be positive, got %d", c.Field.Size)
	check(c.Field.SeedFraction >= 0, "field.seed_fraction must be non-negative, got %v", c.Field.SeedFraction)
	check(c.Field.RadiusFraction > 0, "field.radius_fraction must be positive, got %v", c.Field.RadiusFraction)
	check(c.Diffusion.Passes >= 0, "diffusion.passes must be non-negative, got %d", c.Diffusion.Passes)
	check(c.Extraction.Isovalue > 0, "extraction.isovalue must be positive, got %v", c.Extraction.Isovalue)
	check(c.Extraction.Budget > 0, "extraction.budget must be positive, got %v", c.Extraction.Budget)
	check(c.Extraction.Slabs >= 0, "extraction.slabs must be non-negative, got %d", c.Extraction.Slabs)
	_, err := mesh.ParseNormalStrategy(c.Mesh.Normals)
	check(err == nil, "mesh.normals: %v", err)
	check(c.Host.FrameRate > 0, "host.frame_rate must be positive, got %d", c.Host.FrameRate)
	check(c.Host.Timeout >= 0, "host.timeout must be non-negative, got %v", c.Host.Timeout)
	check(c.Camera.FOVDegrees > 0 && c.Camera.FOVDegrees < 180, "camera.fov_degrees must be in (0,180), got %v", c.Camera.FOVDegrees)
	check(c.Camera.Near > 0 && c.Camera.Far > c.Camera.Near, "camera clip planes invalid: near=%v far=%v", c.Camera.Near, c.Camera.Far)
	check(c.Camera.Drag >= 0 && c.Camera.Drag <= 1, "camera.drag must be in [0,1], got %v", c.Camera.Drag)

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// SeedParams returns the field seeding parameters.
func (c *Config) SeedParams() field.SeedParams {
	return field.SeedParams{
		Fraction:       c.Field.SeedFraction,
		RadiusFraction: c.Field.RadiusFraction,
		Value:          c.Field.SeedValue,
	}
}

// NormalStrategy returns the parsed mesh.normals setting.
func (c *Config) NormalStrategy() mesh.NormalStrategy {
	s, err := mesh.ParseNormalStrategy(c.Mesh.Normals)
	if err != nil {
		return mesh.Auto
	}
	return s
}

// FrameInterval returns the scheduler tick period.
func (c *Config) FrameInterval() time.Duration {
	return time.Second / time.Duration(c.Host.FrameRate)
}

// WriteYAML saves the configuration to path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

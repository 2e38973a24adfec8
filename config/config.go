// Package config provides runtime settings for the scatter pipeline.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all runtime settings. Scatter system configuration lives in
// scene/preset JSON, not here.
type Config struct {
	Pipeline PipelineConfig `yaml:"pipeline"`
	Budget   BudgetConfig   `yaml:"budget"`
	Sampler  SamplerConfig  `yaml:"sampler"`
	Logging  LoggingConfig  `yaml:"logging"`
	Output   OutputConfig   `yaml:"output"`
	Preview  PreviewConfig  `yaml:"preview"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// PipelineConfig controls how the emitter schedules per-point work.
type PipelineConfig struct {
	Workers           int    `yaml:"workers"`            // 0 = GOMAXPROCS
	ParallelThreshold int    `yaml:"parallel_threshold"` // Below this many points stages run inline
	ChunkSize         int    `yaml:"chunk_size"`         // Points per work item
	EvaluationState   string `yaml:"evaluation_state"`   // viewport, shaded or render
	CyclePolicy       string `yaml:"cycle_policy"`       // stale (use previous READY stream) or fail
}

// BudgetConfig caps expensive computations. Exceeding a cap is reported as
// a resource_budget error on the offending feature.
type BudgetConfig struct {
	MaxVoxels        int `yaml:"max_voxels"`
	MaxOcclusionRays int `yaml:"max_occlusion_rays"`
	MaxPoints        int `yaml:"max_points"`
}

// SamplerConfig holds sampler defaults that are not part of a system.
type SamplerConfig struct {
	LimitMode       string  `yaml:"limit_mode"`        // stable or fast
	GridCellFactor  float64 `yaml:"grid_cell_factor"`  // Spatial grid cell = limit distance * this
	CurveResolution int     `yaml:"curve_resolution"`  // Segments per bezier span
}

// LoggingConfig controls the default slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
}

// OutputConfig controls where computed streams and telemetry are written.
type OutputConfig struct {
	Dir     string `yaml:"dir"`
	CSV     bool   `yaml:"csv"`
	PerfCSV bool   `yaml:"perf_csv"`
}

// PreviewConfig holds settings for the interactive preview tool.
type PreviewConfig struct {
	Width       int     `yaml:"width"`
	Height      int     `yaml:"height"`
	TargetFPS   int     `yaml:"target_fps"`
	PointRadius float32 `yaml:"point_radius"`
}

// DerivedConfig holds values computed from the loaded settings.
type DerivedConfig struct {
	Workers  int
	LogLevel slog.Level
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path (or defaults when empty) and
// sets it as the global configuration.
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is Init that panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration, loading defaults on first use.
func Cfg() *Config {
	if global == nil {
		MustInit("")
	}
	return global
}

// Set replaces the global configuration.
func Set(cfg *Config) {
	global = cfg
}

// Load reads the embedded defaults and overlays the file at path, if any.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Only fields present in the file are overwritten.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Pipeline.CyclePolicy {
	case "stale", "fail":
	default:
		return fmt.Errorf("pipeline.cycle_policy: unknown value %q", c.Pipeline.CyclePolicy)
	}
	switch c.Pipeline.EvaluationState {
	case "viewport", "shaded", "render":
	default:
		return fmt.Errorf("pipeline.evaluation_state: unknown value %q", c.Pipeline.EvaluationState)
	}
	switch c.Sampler.LimitMode {
	case "stable", "fast":
	default:
		return fmt.Errorf("sampler.limit_mode: unknown value %q", c.Sampler.LimitMode)
	}
	return nil
}

func (c *Config) computeDerived() {
	c.Derived.Workers = c.Pipeline.Workers
	if c.Derived.Workers <= 0 {
		c.Derived.Workers = runtime.GOMAXPROCS(0)
	}
	if c.Pipeline.ChunkSize <= 0 {
		c.Pipeline.ChunkSize = 1024
	}
	if c.Sampler.GridCellFactor <= 0 {
		c.Sampler.GridCellFactor = 1
	}
	if c.Sampler.CurveResolution <= 0 {
		c.Sampler.CurveResolution = 12
	}
	c.Derived.LogLevel = ParseLevel(c.Logging.Level)
}

// ParseLevel maps a level name to a slog level. Unknown names map to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

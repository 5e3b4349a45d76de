// Package config loads the server configuration from YAML with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ayusman/vyayama/internal/angles"
	"github.com/ayusman/vyayama/internal/capture"
	"github.com/ayusman/vyayama/internal/detector"
	"github.com/ayusman/vyayama/internal/matcher"
	"github.com/ayusman/vyayama/internal/reps"
	"github.com/ayusman/vyayama/internal/template"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the file.
const (
	EnvDataDir = "VYAYAMA_DATA_DIR"
	EnvAddr    = "VYAYAMA_ADDR"
)

// Config is the complete runtime configuration.
type Config struct {
	Server     Server     `yaml:"server"`
	Storage    Storage    `yaml:"storage"`
	Camera     Camera     `yaml:"camera"`
	Detector   Detector   `yaml:"detector"`
	Extraction Extraction `yaml:"extraction"`
	Live       Live       `yaml:"live"`
	Coach      Coach      `yaml:"coach"`
	Plugins    Plugins    `yaml:"plugins"`
}

type Server struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
}

type Storage struct {
	DataDir string `yaml:"data_dir"`
}

type Camera struct {
	Device int `yaml:"device"`
	FPS    int `yaml:"fps"`
}

type Detector struct {
	MinConfidence   float64 `yaml:"min_confidence"`
	MinTracking     float64 `yaml:"min_tracking"`
	ModelComplexity int     `yaml:"model_complexity"`
	ScriptPath      string  `yaml:"script_path"`
	// MockFallback substitutes a detector that sees nobody when the pose service is missing.
	MockFallback bool `yaml:"mock_fallback"`
}

type Extraction struct {
	Interval          time.Duration `yaml:"interval"`
	MaxSamples        int           `yaml:"max_samples"`
	ConfidenceFloor   float64       `yaml:"confidence_floor"`
	SignificantChange float64       `yaml:"significant_change"`
	ToleranceDegrees  float64       `yaml:"tolerance_degrees"`
}

type Live struct {
	ConfidenceFloor  float64       `yaml:"confidence_floor"`
	HoldDuration     time.Duration `yaml:"hold"`
	BreakDuration    time.Duration `yaml:"break"`
	PartialThreshold float64       `yaml:"partial_threshold"`
	// ExerciseConfig is a segment configuration used when an exercise has no ready template
	// and none of its own. Empty means the built-in default.
	ExerciseConfig string `yaml:"exercise_config"`
}

type Coach struct {
	Tolerance      float64 `yaml:"tolerance"`
	Threshold      float64 `yaml:"threshold"`
	MinComparisons int     `yaml:"min_comparisons"`
}

type Plugins struct {
	Dir       string `yaml:"dir"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// Default returns the built-in configuration rooted at ~/.vyayama.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	dataDir := filepath.Join(home, ".vyayama")

	det := detector.DefaultConfig()
	return &Config{
		Server:  Server{Addr: ":8080"},
		Storage: Storage{DataDir: dataDir},
		Camera:  Camera{Device: 0, FPS: capture.DefaultFPS},
		Detector: Detector{
			MinConfidence:   det.MinConfidence,
			MinTracking:     det.MinTrackingConf,
			ModelComplexity: det.ModelComplexity,
		},
		Extraction: Extraction{
			Interval:          template.DefaultInterval,
			MaxSamples:        template.DefaultMaxSamples,
			ConfidenceFloor:   angles.TemplateConfidenceFloor,
			SignificantChange: template.SignificantChangeDegrees,
			ToleranceDegrees:  template.DefaultToleranceDegrees,
		},
		Live: Live{
			ConfidenceFloor:  angles.LiveConfidenceFloor,
			HoldDuration:     reps.DefaultHoldDuration,
			BreakDuration:    reps.DefaultBreakDuration,
			PartialThreshold: matcher.PartialMatchThreshold,
		},
		Coach: Coach{
			Tolerance:      matcher.CoachToleranceDegrees,
			Threshold:      matcher.CoachMatchThreshold,
			MinComparisons: matcher.CoachMinComparisons,
		},
		Plugins: Plugins{
			Dir:       filepath.Join(dataDir, "plugins"),
			TimeoutMs: 5000,
		},
	}
}

// Load reads path over the defaults and applies environment overrides. A missing file is not
// an error; an empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	if dir := os.Getenv(EnvDataDir); dir != "" {
		if cfg.Plugins.Dir == filepath.Join(cfg.Storage.DataDir, "plugins") {
			cfg.Plugins.Dir = filepath.Join(dir, "plugins")
		}
		cfg.Storage.DataDir = dir
	}
	if addr := os.Getenv(EnvAddr); addr != "" {
		cfg.Server.Addr = addr
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Camera.FPS <= 0:
		return fmt.Errorf("camera.fps must be positive")
	case c.Extraction.Interval <= 0:
		return fmt.Errorf("extraction.interval must be positive")
	case c.Extraction.MaxSamples < 1:
		return fmt.Errorf("extraction.max_samples must be at least 1")
	case c.Extraction.ToleranceDegrees <= 0:
		return fmt.Errorf("extraction.tolerance_degrees must be positive")
	case c.Live.HoldDuration <= 0 || c.Live.BreakDuration <= 0:
		return fmt.Errorf("live.hold and live.break must be positive")
	case c.Coach.Tolerance <= 0:
		return fmt.Errorf("coach.tolerance must be positive")
	case c.Storage.DataDir == "":
		return fmt.Errorf("storage.data_dir is required")
	}
	return nil
}

// DBPath is the SQLite database location.
func (c *Config) DBPath() string {
	return filepath.Join(c.Storage.DataDir, "vyayama.db")
}

// DetectorConfig converts the detector section.
func (c *Config) DetectorConfig() detector.Config {
	return detector.Config{
		MinConfidence:   c.Detector.MinConfidence,
		MinTrackingConf: c.Detector.MinTracking,
		ModelComplexity: c.Detector.ModelComplexity,
		ScriptPath:      c.Detector.ScriptPath,
	}
}

// ExtractionOptions converts the extraction section.
func (c *Config) ExtractionOptions() template.Options {
	opts := template.DefaultOptions()
	opts.Interval = c.Extraction.Interval
	opts.MaxSamples = c.Extraction.MaxSamples
	opts.ConfidenceFloor = c.Extraction.ConfidenceFloor
	opts.SignificantChange = c.Extraction.SignificantChange
	opts.ToleranceDegrees = c.Extraction.ToleranceDegrees
	return opts
}

// NewCoach builds a coach from the coach section.
func (c *Config) NewCoach() *matcher.Coach {
	coach := matcher.NewCoach()
	coach.Tolerance = c.Coach.Tolerance
	coach.Threshold = c.Coach.Threshold
	coach.MinComparisons = c.Coach.MinComparisons
	coach.ConfidenceFloor = c.Live.ConfidenceFloor
	return coach
}

// Package config defines process configuration and its loading hooks.
//
// Conventions:
// - New() returns a Config holding the defaults.
// - Load(ctx) layers a YAML file and environment variables over them.
// - Validation errors wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Source kinds for tabular input.
const (
	SourceCSV    = "csv"
	SourceSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// TopN bounds the number of entries per year frame.
	TopN int `koanf:"top_n"`

	// BaseFrameMS is the delay between frames at speed 1.0.
	BaseFrameMS int `koanf:"base_frame_ms"`

	// Speed is the initial speed multiplier.
	Speed float64 `koanf:"speed"`

	// StartYear, when non-zero, seeks to the nearest year before playing.
	StartYear int `koanf:"start_year"`

	// Autoplay starts playback right after loading.
	Autoplay bool `koanf:"autoplay"`

	// Source selects the loader: csv or sqlite.
	Source string `koanf:"source"`

	// CSV inputs. Champions and federations are optional.
	RatingsPath     string `koanf:"ratings_path"`
	ChampionsPath   string `koanf:"champions_path"`
	FederationsPath string `koanf:"federations_path"`

	// SQLitePath is the database file used when Source is sqlite.
	SQLitePath string `koanf:"sqlite_path"`

	// QueueSize bounds the in-memory event queue.
	QueueSize int `koanf:"queue_size"`

	// MetricsAddr exposes /metrics when non-empty, e.g. ":9090".
	MetricsAddr string `koanf:"metrics_addr"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		TopN:            10,
		BaseFrameMS:     900,
		Speed:           1.0,
		Autoplay:        true,
		Source:          SourceCSV,
		RatingsPath:     "data/chess_ratings.csv",
		ChampionsPath:   "data/world_champions.csv",
		FederationsPath: "data/federations.csv",
		SQLitePath:      "data/ratings.db",
		QueueSize:       1024,
	}
}

// BaseFrameDuration returns BaseFrameMS as a duration.
func (c *Config) BaseFrameDuration() time.Duration {
	return time.Duration(c.BaseFrameMS) * time.Millisecond
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.TopN < 1:
		return fmt.Errorf("%w: top_n must be positive, got %d", ErrInvalidConfig, c.TopN)
	case c.BaseFrameMS < 1:
		return fmt.Errorf("%w: base_frame_ms must be positive, got %d", ErrInvalidConfig, c.BaseFrameMS)
	case math.IsNaN(c.Speed) || math.IsInf(c.Speed, 0) || c.Speed <= 0:
		return fmt.Errorf("%w: speed must be a positive number, got %v", ErrInvalidConfig, c.Speed)
	case c.QueueSize < 1:
		return fmt.Errorf("%w: queue_size must be positive, got %d", ErrInvalidConfig, c.QueueSize)
	}

	switch strings.ToLower(c.Source) {
	case SourceCSV:
		if c.RatingsPath == "" {
			return fmt.Errorf("%w: ratings_path must not be empty", ErrInvalidConfig)
		}
	case SourceSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("%w: sqlite_path must not be empty", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown source %q", ErrInvalidConfig, c.Source)
	}
	return nil
}

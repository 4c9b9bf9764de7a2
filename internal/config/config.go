// Package config holds the single explicit configuration surface for the
// allocator. Every recognized option is enumerated here with its default;
// nothing deeper in the call chain invents a fallback value.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full engine configuration
type Config struct {
	Allocator AllocatorConfig `yaml:"allocator"`
	Regime    RegimeConfig    `yaml:"regime"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Store     StoreConfig     `yaml:"store"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	HTTP      HTTPConfig      `yaml:"http"`
	LogLevel  string          `yaml:"log_level"`
}

// AllocatorConfig controls eligibility and weight construction
type AllocatorConfig struct {
	TopQuantile float64 `yaml:"top_quantile"` // Default: 0.75
	MaxWeight   float64 `yaml:"max_weight"`   // Default: 0.25
	VolWindow   int     `yaml:"vol_window"`   // Default: 30 trading days
	FallbackK   int     `yaml:"fallback_k"`   // Default: 3
}

// RegimeConfig controls classification, floors, and the emergency brake
type RegimeConfig struct {
	SMAPeriod            int     `yaml:"sma_period"`             // Default: 200
	ScoreFloorBull       float64 `yaml:"score_floor_bull"`       // Default: 0.50
	ScoreFloorBear       float64 `yaml:"score_floor_bear"`       // Default: 0.65
	BrakeVIXThreshold    float64 `yaml:"brake_vix_threshold"`    // Default: 30
	BrakeSectorThreshold float64 `yaml:"brake_sector_threshold"` // Default: -0.05
}

// ScheduleConfig controls the weekly rebalance lock
type ScheduleConfig struct {
	RebalanceWeekday string `yaml:"rebalance_weekday"` // Default: monday
}

// StoreConfig selects and configures the state store
type StoreConfig struct {
	Backend        string `yaml:"backend"`         // "file" or "postgres"
	Dir            string `yaml:"dir"`             // file backend state directory
	PostgresDSN    string `yaml:"postgres_dsn"`    // postgres backend connection string
	TimeoutSeconds int    `yaml:"timeout_seconds"` // postgres statement timeout
	RedisAddr      string `yaml:"redis_addr"`      // optional status cache, empty disables
	RedisTTL       int    `yaml:"redis_ttl"`       // seconds
}

// ArtifactsConfig controls audit artifact output
type ArtifactsConfig struct {
	Dir string `yaml:"dir"`
}

// HTTPConfig controls the operational status/metrics server
type HTTPConfig struct {
	Addr           string  `yaml:"addr"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`
}

// Default returns the documented defaults for every option
func Default() Config {
	return Config{
		Allocator: AllocatorConfig{
			TopQuantile: 0.75,
			MaxWeight:   0.25,
			VolWindow:   30,
			FallbackK:   3,
		},
		Regime: RegimeConfig{
			SMAPeriod:            200,
			ScoreFloorBull:       0.50,
			ScoreFloorBear:       0.65,
			BrakeVIXThreshold:    30.0,
			BrakeSectorThreshold: -0.05,
		},
		Schedule: ScheduleConfig{
			RebalanceWeekday: "monday",
		},
		Store: StoreConfig{
			Backend:        "file",
			Dir:            "state",
			TimeoutSeconds: 5,
			RedisTTL:       900,
		},
		Artifacts: ArtifactsConfig{
			Dir: "artifacts/allocations",
		},
		HTTP: HTTPConfig{
			Addr:           ":8089",
			RateLimitRPS:   10,
			RateLimitBurst: 20,
		},
		LogLevel: "info",
	}
}

// Load reads YAML over the defaults and validates the result
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run with
func (c Config) Validate() error {
	if c.Allocator.TopQuantile <= 0 || c.Allocator.TopQuantile >= 1 {
		return fmt.Errorf("config: top_quantile %.2f must be in (0,1)", c.Allocator.TopQuantile)
	}
	if c.Allocator.MaxWeight <= 0 || c.Allocator.MaxWeight > 1 {
		return fmt.Errorf("config: max_weight %.2f must be in (0,1]", c.Allocator.MaxWeight)
	}
	if c.Allocator.VolWindow < 2 {
		return fmt.Errorf("config: vol_window %d must be at least 2", c.Allocator.VolWindow)
	}
	if c.Allocator.FallbackK < 1 {
		return fmt.Errorf("config: fallback_k %d must be at least 1", c.Allocator.FallbackK)
	}
	if c.Regime.SMAPeriod < 2 {
		return fmt.Errorf("config: sma_period %d must be at least 2", c.Regime.SMAPeriod)
	}
	if c.Regime.ScoreFloorBear < c.Regime.ScoreFloorBull {
		return fmt.Errorf("config: score_floor_bear %.2f below score_floor_bull %.2f", c.Regime.ScoreFloorBear, c.Regime.ScoreFloorBull)
	}
	if _, err := c.Schedule.Weekday(); err != nil {
		return err
	}
	switch c.Store.Backend {
	case "file", "postgres":
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}
	if c.Store.Backend == "postgres" && c.Store.PostgresDSN == "" {
		return fmt.Errorf("config: postgres backend requires postgres_dsn")
	}
	return nil
}

// Weekday parses the configured rebalance weekday
func (s ScheduleConfig) Weekday() (time.Weekday, error) {
	switch strings.ToLower(s.RebalanceWeekday) {
	case "sunday":
		return time.Sunday, nil
	case "monday":
		return time.Monday, nil
	case "tuesday":
		return time.Tuesday, nil
	case "wednesday":
		return time.Wednesday, nil
	case "thursday":
		return time.Thursday, nil
	case "friday":
		return time.Friday, nil
	case "saturday":
		return time.Saturday, nil
	}
	return time.Monday, fmt.Errorf("config: unknown rebalance_weekday %q", s.RebalanceWeekday)
}

// StoreTimeout returns the postgres statement timeout as a duration
func (s StoreConfig) StoreTimeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// RedisTTLDuration returns the status cache TTL as a duration
func (s StoreConfig) RedisTTLDuration() time.Duration {
	return time.Duration(s.RedisTTL) * time.Second
}

// Package config loads server settings from a YAML file with FIRESIM_*
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/fire-tactics/internal/engine"
	"github.com/talgya/fire-tactics/internal/hazard"
	"github.com/talgya/fire-tactics/internal/scenario"
)

// Alert is an operator rule, e.g. {name: spread, condition: "FireArea > 50"}.
type Alert struct {
	Name      string `yaml:"name"`
	Condition string `yaml:"condition"`
}

// Config holds everything the server needs at startup.
type Config struct {
	Seed            int64         `yaml:"seed"` // live randomness seed; 0 = crypto randomness
	TickInterval    time.Duration `yaml:"tick_interval"`
	Speed           float64       `yaml:"speed"` // 0 starts paused
	ForecastHorizon int           `yaml:"forecast_horizon"`
	Intensity       int           `yaml:"intensity"` // fire rank 1–5 reported to the predictor
	Hazard          hazard.Model  `yaml:"hazard"`

	Scenario scenario.Config `yaml:"scenario"`
	MapFile  string          `yaml:"map_file"` // JSON snapshot loaded instead of a generated scenario

	DBPath          string `yaml:"db_path"`
	CheckpointEvery uint64 `yaml:"checkpoint_every"`
	AssessEvery     uint64 `yaml:"assess_every"`

	APIPort      int      `yaml:"api_port"`
	AdminKey     string   `yaml:"admin_key"`
	CORSOrigins  []string `yaml:"cors_origins"`
	PredictorURL string   `yaml:"predictor_url"`
	EntropyKey   string   `yaml:"entropy_key"` // random.org key for unseeded runs

	Alerts   []Alert `yaml:"alerts"`
	LogLevel string  `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		TickInterval:    engine.DefaultInterval,
		Speed:           1,
		ForecastHorizon: hazard.DefaultHorizon,
		Intensity:       engine.DefaultIntensity,
		Hazard:          hazard.DefaultModel(),
		Scenario:        scenario.DefaultConfig(),
		DBPath:          "data/firesim.db",
		CheckpointEvery: engine.DefaultCheckpoint,
		AssessEvery:     engine.DefaultAssessEach,
		APIPort:         8080,
		LogLevel:        "info",
	}
}

// Load reads path (if non-empty) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	var errs []error
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, set func(string) error) {
		if v := getenv(key); v != "" {
			if err := set(v); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
			}
		}
	}

	str("FIRESIM_DB_PATH", &c.DBPath)
	str("FIRESIM_ADMIN_KEY", &c.AdminKey)
	str("FIRESIM_PREDICTOR_URL", &c.PredictorURL)
	str("FIRESIM_ENTROPY_KEY", &c.EntropyKey)
	str("FIRESIM_MAP_FILE", &c.MapFile)
	str("FIRESIM_LOG_LEVEL", &c.LogLevel)
	num("FIRESIM_SEED", func(v string) (err error) {
		c.Seed, err = strconv.ParseInt(v, 10, 64)
		return err
	})
	num("FIRESIM_API_PORT", func(v string) (err error) {
		c.APIPort, err = strconv.Atoi(v)
		return err
	})
	num("FIRESIM_TICK_INTERVAL", func(v string) (err error) {
		c.TickInterval, err = time.ParseDuration(v)
		return err
	})
	num("FIRESIM_ROWS", func(v string) (err error) {
		c.Scenario.Rows, err = strconv.Atoi(v)
		return err
	})
	num("FIRESIM_COLS", func(v string) (err error) {
		c.Scenario.Cols, err = strconv.Atoi(v)
		return err
	})
	if v := getenv("CORS_ORIGINS"); v != "" {
		c.CORSOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.CORSOrigins = append(c.CORSOrigins, o)
			}
		}
	}
	return errors.Join(errs...)
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Scenario.Rows > 0 && c.Scenario.Cols > 0, "grid must be at least 1x1, got %dx%d", c.Scenario.Rows, c.Scenario.Cols)
	check(c.TickInterval > 0, "tick_interval must be positive")
	check(c.Speed >= 0, "speed must not be negative")
	check(c.ForecastHorizon >= 0, "forecast_horizon must not be negative")
	check(c.Intensity >= 1 && c.Intensity <= 5, "intensity must be 1-5, got %d", c.Intensity)
	for name, p := range map[string]float64{
		"burnout_prob": c.Hazard.BurnoutProb,
		"spread_prob":  c.Hazard.SpreadProb,
		"clear_prob":   c.Hazard.ClearProb,
	} {
		check(p >= 0 && p <= 1, "hazard.%s must be in [0,1], got %g", name, p)
	}
	check(c.APIPort > 0 && c.APIPort < 65536, "api_port out of range: %d", c.APIPort)
	if _, err := c.CompileAlerts(); err != nil {
		errs = append(errs, err)
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// CompileAlerts compiles the configured alert rules.
func (c Config) CompileAlerts() ([]*engine.AlertRule, error) {
	rules := make([]*engine.AlertRule, 0, len(c.Alerts))
	for i, a := range c.Alerts {
		name := a.Name
		if name == "" {
			name = fmt.Sprintf("alert-%d", i+1)
		}
		r, err := engine.CompileAlert(name, a.Condition)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// SlogLevel returns the configured log level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

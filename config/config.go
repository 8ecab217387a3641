package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/hoppsim/hybrid/core/metrics"
	"github.com/hoppsim/hybrid/core/model"
	"github.com/hoppsim/hybrid/infra/mqtt"
)

// SimulationConfig sets the time base and input series of a run.
type SimulationConfig struct {
	// PeriodMinutes is the simulation step; the series granularity must
	// match it exactly.
	PeriodMinutes int `json:"period_minutes"`
	// SeriesPath points at the CSV holding price, generation and load.
	SeriesPath string `json:"series_path"`
}

// SetDefaults applies sane defaults.
func (c *SimulationConfig) SetDefaults() {
	if c.PeriodMinutes == 0 {
		c.PeriodMinutes = 60
	}
}

// Validate checks mandatory fields.
func (c SimulationConfig) Validate() error {
	if c.PeriodMinutes <= 0 {
		return fmt.Errorf("period_minutes must be positive")
	}
	if c.SeriesPath == "" {
		return fmt.Errorf("series_path is required")
	}
	return nil
}

// Period returns the simulation step as a duration.
func (c SimulationConfig) Period() time.Duration {
	return time.Duration(c.PeriodMinutes) * time.Minute
}

// Config is the root configuration.
type Config struct {
	Simulation SimulationConfig  `json:"simulation"`
	Battery    model.BatterySpec `json:"battery"`
	// Dispatch holds the raw dispatch option map; it is validated by the
	// dispatch option resolver, not here.
	Dispatch map[string]any `json:"dispatch"`
	Metrics  metrics.Config `json:"metrics"`
	MQTT     mqtt.Config    `json:"mqtt"`
}

// Load reads the configuration file (yaml or json by extension) and
// applies HS_-prefixed environment overrides.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("HS_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "hs_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Simulation.SetDefaults()
	cfg.Battery.SetDefaults()
	cfg.MQTT.SetDefaults()
	if err := cfg.Simulation.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Battery.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Package config loads the service configuration from a YAML or JSON file
// with environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/fleetsense/fleettrack/core/detector"
	"github.com/fleetsense/fleettrack/core/mission"
	"github.com/fleetsense/fleettrack/core/scheduler"
	"github.com/fleetsense/fleettrack/core/sim"
	"github.com/fleetsense/fleettrack/infra/cache"
	"github.com/fleetsense/fleettrack/infra/mqtt"
)

// InfluxConfig points at an InfluxDB bucket. An empty URL disables the sink.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// MetricsConfig selects the observability backends.
type MetricsConfig struct {
	// PrometheusAddr is the listen address of the /metrics endpoint.
	// Empty disables the server.
	PrometheusAddr string       `json:"prometheus_addr"`
	Influx         InfluxConfig `json:"influx"`
}

// CacheConfig wraps the Redis settings with an enable switch.
type CacheConfig struct {
	Enabled bool `json:"enabled"`
	cache.Config `json:",squash"`
}

// ArchiveConfig points at the local anomaly archive. An empty path
// disables it.
type ArchiveConfig struct {
	Path string `json:"path"`
}

// RetentionConfig bounds how long telemetry is kept.
type RetentionConfig struct {
	// MaxAgeDays is the sample retention horizon for the prune command.
	MaxAgeDays int `json:"max_age_days"`
}

// SetDefaults fills zero values.
func (c *RetentionConfig) SetDefaults() {
	if c.MaxAgeDays == 0 {
		c.MaxAgeDays = 90
	}
}

// MQTTConfig wraps the broker settings with an enable switch.
type MQTTConfig struct {
	Enabled bool `json:"enabled"`
	mqtt.Config `json:",squash"`
}

// Config is the root configuration of the service.
type Config struct {
	MQTT      MQTTConfig       `json:"mqtt"`
	Detection detector.Config  `json:"detection"`
	Mission   mission.Config   `json:"mission"`
	Scheduler scheduler.Config `json:"scheduler"`
	Simulator sim.Config       `json:"simulator"`
	Metrics   MetricsConfig    `json:"metrics"`
	Cache     CacheConfig      `json:"cache"`
	Archive   ArchiveConfig    `json:"archive"`
	Retention RetentionConfig  `json:"retention"`
}

// Load reads the configuration from path, applies FT_ environment
// overrides and validates the result.
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
	if err := k.Load(env.Provider("FT_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "ft_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Detection.SetDefaults()
	cfg.Scheduler.SetDefaults()
	cfg.Simulator.SetDefaults()
	cfg.Retention.SetDefaults()
	cfg.MQTT.SetDefaults()
	cfg.Cache.SetDefaults()
	if err := cfg.Detection.Validate(); err != nil {
		return nil, fmt.Errorf("detection: %w", err)
	}
	if err := cfg.Scheduler.Validate(); err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	if err := cfg.Simulator.Validate(); err != nil {
		return nil, fmt.Errorf("simulator: %w", err)
	}
	return &cfg, nil
}

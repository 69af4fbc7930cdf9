package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/easternanemone/daqstreams/errors"
	"github.com/easternanemone/daqstreams/hardware"
	"github.com/easternanemone/daqstreams/measurement"
)

// Duration decodes YAML strings like "500ms" or "5s" into a duration.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return errors.WrapFatal(
			fmt.Errorf("duration %q: %w", s, errors.ErrInvalidConfig),
			"Duration", "UnmarshalYAML", "duration parse")
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the standard library form.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the complete runtime configuration.
type Config struct {
	Version     string             `yaml:"version"`
	Logging     LoggingConfig      `yaml:"logging"`
	Metrics     MetricsConfig      `yaml:"metrics"`
	Distributor DistributorConfig  `yaml:"distributor"`
	Manager     ManagerConfig      `yaml:"manager"`
	Instruments []InstrumentConfig `yaml:"instruments"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// DistributorConfig sizes the shared measurement distributor.
type DistributorConfig struct {
	Capacity               int      `yaml:"capacity"`
	WarnDropRatePercent    float64  `yaml:"warn_drop_rate_percent"`
	ErrorSaturationPercent float64  `yaml:"error_saturation_percent"`
	MetricsWindow          Duration `yaml:"metrics_window"`
}

// ManagerConfig controls supervision behavior.
type ManagerConfig struct {
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
	CommandTimeout  Duration `yaml:"command_timeout"`
	RespawnMax      int      `yaml:"respawn_max"`
	RespawnDelay    Duration `yaml:"respawn_delay"`
}

// AdapterConfig selects and configures an instrument's transport.
type AdapterConfig struct {
	Kind string            `yaml:"kind"`
	Conn map[string]string `yaml:"conn"`
}

// InstrumentConfig describes one instrument to spawn. Params is carried
// as-is to the driver factory.
type InstrumentConfig struct {
	ID      string         `yaml:"id"`
	Type    string         `yaml:"type"`
	Enabled *bool          `yaml:"enabled"` // nil means enabled
	Adapter AdapterConfig  `yaml:"adapter"`
	Params  map[string]any `yaml:"params"`
}

// IsEnabled reports whether the instrument should be spawned.
func (ic InstrumentConfig) IsEnabled() bool {
	return ic.Enabled == nil || *ic.Enabled
}

// ParamsJSON converts the raw params block to the JSON form driver
// factories consume.
func (ic InstrumentConfig) ParamsJSON() (json.RawMessage, error) {
	if len(ic.Params) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(ic.Params)
	if err != nil {
		return nil, errors.WrapFatal(err, "InstrumentConfig", "ParamsJSON", "params conversion")
	}
	return raw, nil
}

// ConnConfig returns the adapter connection config.
func (ic InstrumentConfig) ConnConfig() hardware.Config {
	return hardware.Config(ic.Adapter.Conn)
}

// Default returns the configuration used when a field is absent.
func Default() Config {
	dist := measurement.DefaultConfig()
	return Config{
		Version: "1",
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Metrics: MetricsConfig{Enabled: true, Port: 9090, Path: "/metrics"},
		Distributor: DistributorConfig{
			Capacity:               dist.Capacity,
			WarnDropRatePercent:    dist.WarnDropRatePercent,
			ErrorSaturationPercent: dist.ErrorSaturationPercent,
			MetricsWindow:          Duration(dist.MetricsWindow),
		},
		Manager: ManagerConfig{
			ShutdownTimeout: Duration(5 * time.Second),
			CommandTimeout:  Duration(10 * time.Second),
			RespawnMax:      3,
			RespawnDelay:    Duration(time.Second),
		},
	}
}

// Load reads and validates a YAML configuration file. Absent fields take
// their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapFatal(err, "config", "Load", "file read")
	}
	return Parse(data)
}

// Parse decodes and validates YAML configuration bytes.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.WrapFatal(err, "config", "Parse", "yaml decode")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints the YAML schema cannot express.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.WrapFatal(
			fmt.Errorf("logging level %q: %w", c.Logging.Level, errors.ErrInvalidConfig),
			"Config", "Validate", "logging validation")
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return errors.WrapFatal(
			fmt.Errorf("logging format %q: %w", c.Logging.Format, errors.ErrInvalidConfig),
			"Config", "Validate", "logging validation")
	}

	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		return errors.WrapFatal(
			fmt.Errorf("metrics port %d: %w", c.Metrics.Port, errors.ErrInvalidConfig),
			"Config", "Validate", "metrics validation")
	}

	if c.Distributor.Capacity < 0 {
		return errors.WrapFatal(
			fmt.Errorf("distributor capacity %d: %w", c.Distributor.Capacity, errors.ErrInvalidConfig),
			"Config", "Validate", "distributor validation")
	}

	seen := make(map[string]struct{}, len(c.Instruments))
	for i, ic := range c.Instruments {
		if ic.ID == "" || ic.Type == "" {
			return errors.WrapFatal(
				fmt.Errorf("instrument %d missing id or type: %w", i, errors.ErrInvalidConfig),
				"Config", "Validate", "instrument validation")
		}
		if _, dup := seen[ic.ID]; dup {
			return errors.WrapFatal(
				fmt.Errorf("duplicate instrument id %q: %w", ic.ID, errors.ErrInvalidConfig),
				"Config", "Validate", "instrument validation")
		}
		seen[ic.ID] = struct{}{}
	}
	return nil
}

// DistributorSettings converts the config section into the measurement
// package's form.
func (c *Config) DistributorSettings() measurement.Config {
	return measurement.Config{
		Capacity:               c.Distributor.Capacity,
		WarnDropRatePercent:    c.Distributor.WarnDropRatePercent,
		ErrorSaturationPercent: c.Distributor.ErrorSaturationPercent,
		MetricsWindow:          c.Distributor.MetricsWindow.Std(),
	}
}

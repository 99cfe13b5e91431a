// Package config loads the supervisor spec file: which datasource to
// manage, where its stream lives, and how the run loop is tuned.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the deserialized supervisor spec.
type Config struct {
	DataSource string `koanf:"data_source"`
	Stream     string `koanf:"stream"`

	TaskCount    int           `koanf:"task_count"`
	Replicas     int           `koanf:"replicas"`
	TaskDuration time.Duration `koanf:"task_duration"`
	TickPeriod   time.Duration `koanf:"tick_period"`

	// StoreDriver selects the metadata store backend: memory, postgres
	// or mysql.
	StoreDriver string `koanf:"store_driver"`
	StoreDSN    string `koanf:"store_dsn"`

	// KafkaConfigPath points at the Kafka connection settings file.
	KafkaConfigPath string `koanf:"kafka_config_path"`

	// TaskRuntimeURL is the task runtime's API root.
	TaskRuntimeURL string `koanf:"task_runtime_url"`

	// TuningPath points at a task tuning spec; a relative path is
	// resolved against the supervisor spec's directory.
	TuningPath string `koanf:"tuning_path"`

	// MetricsAddr is the /metrics listen address; empty disables the
	// metrics server.
	MetricsAddr string `koanf:"metrics_addr"`

	// Suspended starts the supervisor in the suspended state.
	Suspended bool `koanf:"suspended"`
}

// Load merges YAML (if present) with env-vars
// (prefix `DRUID_SUPERVISOR__`, delimiter `__`).
func Load(path string) (Config, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil &&
			!errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}
	sv := k.String("schema_version")
	if sv != "" && sv != "v1" {
		return Config{}, fmt.Errorf("supervisor schema_version %q not supported (want v1)", sv)
	}

	_ = k.Load(env.Provider("DRUID_SUPERVISOR__", "__", nil), nil)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)
	return cfg, validate(cfg)
}

func applyDefaults(c *Config) {
	if c.TaskCount == 0 {
		c.TaskCount = 1
	}
	if c.Replicas == 0 {
		c.Replicas = 1
	}
	if c.TaskDuration == 0 {
		c.TaskDuration = time.Hour
	}
	if c.TickPeriod == 0 {
		c.TickPeriod = 30 * time.Second
	}
	if c.StoreDriver == "" {
		c.StoreDriver = "memory"
	}
}

func validate(c Config) error {
	if c.DataSource == "" {
		return fmt.Errorf("data_source is required")
	}
	if c.Stream == "" {
		return fmt.Errorf("stream is required")
	}
	switch c.StoreDriver {
	case "memory":
	case "postgres", "mysql":
		if c.StoreDSN == "" {
			return fmt.Errorf("store_dsn is required for driver %q", c.StoreDriver)
		}
	default:
		return fmt.Errorf("unknown store_driver %q", c.StoreDriver)
	}
	return nil
}

package kafka

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

// Config holds the Kafka connection settings for the stream adapter.
type Config struct {
	Brokers  []string `koanf:"brokers"`
	ClientID string   `koanf:"client_id"`
	Version  string   `koanf:"version"`
	TLSEn    bool     `koanf:"tls_enabled"`
	SASLUser string   `koanf:"sasl_user"`
	SASLPass string   `koanf:"sasl_pass"`

	// MultiTopic enables consuming several topics as one logical stream;
	// the stream name is then a comma-separated topic list and group
	// assignment folds the topic name into the hash.
	MultiTopic bool `koanf:"multi_topic"`

	// MetadataTimeout bounds partition-list and offset queries.
	MetadataTimeout time.Duration `koanf:"metadata_timeout"`

	// PollTimeout is passed through to created tasks.
	PollTimeout time.Duration `koanf:"poll_timeout"`
}

// LoadConfig merges YAML (if present) with env-vars
// (prefix `DRUID_KAFKA__`, delimiter `__`).
func LoadConfig(path string) (Config, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil &&
			!errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}
	sv := k.String("schema_version")
	if sv != "" && sv != "v1" {
		return Config{}, fmt.Errorf("kafka schema_version %q not supported (want v1)", sv)
	}

	_ = k.Load(env.Provider("DRUID_KAFKA__", "__", nil), nil)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)
	return cfg, nil
}

func applyDefaults(c *Config) {
	if c.ClientID == "" {
		c.ClientID = "druid-supervisor"
	}
	if c.Version == "" {
		c.Version = "3.6.0"
	}
	if c.MetadataTimeout == 0 {
		c.MetadataTimeout = 10 * time.Second
	}
	if c.PollTimeout == 0 {
		c.PollTimeout = 100 * time.Millisecond
	}
}

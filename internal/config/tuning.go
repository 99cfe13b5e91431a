package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	supervisor "github.com/demo-kratia/druid"
)

// tuningFile is the on-disk shape of a task tuning spec.
type tuningFile struct {
	SchemaVersion   string `yaml:"schema_version"`
	MaxRowsInMemory int    `yaml:"max_rows_in_memory"`
	PollTimeout     string `yaml:"poll_timeout"`
}

// LoadTuningSpec parses a task tuning YAML, validates schema_version,
// and returns the tuning settings handed to every created task. A
// relative path is resolved against the directory of the supervisor
// spec that referenced it.
func LoadTuningSpec(path, specPath string) (supervisor.TaskTuningConfig, error) {
	if !filepath.IsAbs(path) && specPath != "" {
		path = filepath.Join(filepath.Dir(specPath), path)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return supervisor.TaskTuningConfig{}, err
	}
	var f tuningFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return supervisor.TaskTuningConfig{}, fmt.Errorf("parse tuning spec %s: %w", path, err)
	}
	if f.SchemaVersion != "" && f.SchemaVersion != "v1" {
		return supervisor.TaskTuningConfig{}, fmt.Errorf("tuning schema_version %q not supported (want v1)", f.SchemaVersion)
	}
	var poll time.Duration
	if f.PollTimeout != "" {
		poll, err = time.ParseDuration(f.PollTimeout)
		if err != nil {
			return supervisor.TaskTuningConfig{}, fmt.Errorf("parse tuning spec %s: poll_timeout: %w", path, err)
		}
	}
	return supervisor.TaskTuningConfig{
		MaxRowsInMemory: f.MaxRowsInMemory,
		PollTimeout:     poll,
	}, nil
}

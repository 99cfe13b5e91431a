package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTuning(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadTuningSpec_ParsesSettings(t *testing.T) {
	path := writeTuning(t, `
schema_version: v1
max_rows_in_memory: 250000
poll_timeout: 250ms
`)

	tuning, err := LoadTuningSpec(path, "")

	require.NoError(t, err)
	assert.Equal(t, 250000, tuning.MaxRowsInMemory)
	assert.Equal(t, 250*time.Millisecond, tuning.PollTimeout)
}

func TestLoadTuningSpec_ResolvesRelativeToSpec(t *testing.T) {
	dir := t.TempDir()
	specPath := filepath.Join(dir, "supervisor.yaml")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tuning.yaml"),
		[]byte("max_rows_in_memory: 1000\n"), 0o644))

	tuning, err := LoadTuningSpec("tuning.yaml", specPath)

	require.NoError(t, err)
	assert.Equal(t, 1000, tuning.MaxRowsInMemory)
}

func TestLoadTuningSpec_RejectsUnknownSchema(t *testing.T) {
	path := writeTuning(t, "schema_version: v2\n")

	_, err := LoadTuningSpec(path, "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema_version")
}

func TestLoadTuningSpec_RejectsBadPollTimeout(t *testing.T) {
	path := writeTuning(t, "poll_timeout: soon\n")

	_, err := LoadTuningSpec(path, "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "poll_timeout")
}

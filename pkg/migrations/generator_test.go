package migrations

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_HasTimestampedFilename(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "migrations", cfg.OutputFolder)
	assert.Regexp(t, `^\d{14}_init_datasource_metadata\.sql$`, cfg.OutputFilename)
	assert.Equal(t, "druid_datasource_metadata", cfg.MetadataTable)
}

func TestGeneratePostgres_WritesMetadataTable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OutputFolder = t.TempDir()
	cfg.OutputFilename = "init.sql"

	require.NoError(t, GeneratePostgres(&cfg))

	content, err := os.ReadFile(filepath.Join(cfg.OutputFolder, "init.sql"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "CREATE TABLE druid_datasource_metadata")
	assert.Contains(t, string(content), "offsets JSONB NOT NULL")
	assert.Contains(t, string(content), "Database: PostgreSQL")
}

func TestGenerateMySQL_WritesMetadataTable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OutputFolder = t.TempDir()
	cfg.OutputFilename = "init.sql"
	cfg.MetadataTable = "custom_metadata"

	require.NoError(t, GenerateMySQL(&cfg))

	content, err := os.ReadFile(filepath.Join(cfg.OutputFolder, "init.sql"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "CREATE TABLE custom_metadata")
	assert.Contains(t, string(content), "ENGINE=InnoDB")
}

func TestGenerate_RejectsUnsafeTableName(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OutputFolder = t.TempDir()
	cfg.MetadataTable = "metadata; DROP TABLE users"

	assert.Error(t, GeneratePostgres(&cfg))
	assert.Error(t, GenerateMySQL(&cfg))
}

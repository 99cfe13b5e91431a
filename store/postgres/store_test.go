package postgres

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableConfig(t *testing.T) {
	t.Run("default table name is used", func(t *testing.T) {
		s := New(nil)
		assert.Equal(t, "druid_datasource_metadata", s.table)
	})

	t.Run("custom table name is used", func(t *testing.T) {
		s := NewWithConfig(nil, TableConfig{MetadataTable: "custom_metadata"})
		assert.Equal(t, "custom_metadata", s.table)
	})
}

func TestMigrations(t *testing.T) {
	cfg := DefaultTableConfig()

	up := MigrationUp(cfg)
	assert.Contains(t, up, "CREATE TABLE druid_datasource_metadata")
	assert.Contains(t, up, "datasource TEXT PRIMARY KEY")
	assert.Contains(t, up, "offsets JSONB NOT NULL")

	down := MigrationDown(cfg)
	assert.True(t, strings.HasPrefix(down, "DROP TABLE IF EXISTS druid_datasource_metadata"))
}

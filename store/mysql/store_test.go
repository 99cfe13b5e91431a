package mysql

import (
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
	assert.Contains(t, up, "offsets JSON NOT NULL")
	assert.Contains(t, up, "ENGINE=InnoDB")

	assert.Contains(t, MigrationDown(cfg), "DROP TABLE IF EXISTS druid_datasource_metadata")
}

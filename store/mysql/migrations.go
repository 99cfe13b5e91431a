package mysql

import "fmt"

// TableConfig configures the table name used by the metadata store.
type TableConfig struct {
	// MetadataTable is the name of the table storing datasource metadata.
	MetadataTable string
}

// DefaultTableConfig returns the default table configuration.
func DefaultTableConfig() TableConfig {
	return TableConfig{MetadataTable: "druid_datasource_metadata"}
}

// MigrationUp returns the SQL to create the metadata table.
func MigrationUp(config TableConfig) string {
	return fmt.Sprintf(`-- Create datasource metadata table
CREATE TABLE %s (
    datasource VARCHAR(255) PRIMARY KEY,
    stream VARCHAR(255) NOT NULL,
    offsets JSON NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
) ENGINE=InnoDB;
`, config.MetadataTable)
}

// MigrationDown returns the SQL to drop the metadata table.
func MigrationDown(config TableConfig) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s;\n", config.MetadataTable)
}

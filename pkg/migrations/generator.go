// Package migrations generates SQL migration files for the metadata
// table the supervisor publishes through, for PostgreSQL and
// MySQL/MariaDB databases.
package migrations

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/demo-kratia/druid/store/mysql"
	"github.com/demo-kratia/druid/store/postgres"
)

// identifierPattern limits table names to safe SQL identifiers; the
// name is interpolated into DDL, so anything else is rejected.
var identifierPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

func checkTableName(name string) error {
	if name == "" {
		return fmt.Errorf("MetadataTable cannot be empty")
	}
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("MetadataTable must be a plain SQL identifier (got: %s)", name)
	}
	return nil
}

// Config configures migration generation for the metadata table.
type Config struct {
	// OutputFolder is the directory the migration file is written into
	OutputFolder string

	// OutputFilename names the generated migration file
	OutputFilename string

	// MetadataTable names the datasource metadata table
	MetadataTable string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	timestamp := time.Now().Format("20060102150405")
	return Config{
		OutputFolder:   "migrations",
		OutputFilename: fmt.Sprintf("%s_init_datasource_metadata.sql", timestamp),
		MetadataTable:  "druid_datasource_metadata",
	}
}

// GeneratePostgres generates a PostgreSQL migration file.
func GeneratePostgres(config *Config) error {
	if err := checkTableName(config.MetadataTable); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	sql := header("PostgreSQL") + postgres.MigrationUp(postgres.TableConfig{MetadataTable: config.MetadataTable})
	return write(config, sql)
}

// GenerateMySQL generates a MySQL/MariaDB migration file.
func GenerateMySQL(config *Config) error {
	if err := checkTableName(config.MetadataTable); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	sql := header("MySQL/MariaDB") + mysql.MigrationUp(mysql.TableConfig{MetadataTable: config.MetadataTable})
	return write(config, sql)
}

func header(database string) string {
	return fmt.Sprintf(`-- Datasource Metadata Migration
-- Generated: %s
-- Database: %s

`, time.Now().Format(time.RFC3339), database)
}

func write(config *Config, sql string) error {
	if err := os.MkdirAll(config.OutputFolder, 0o755); err != nil {
		return fmt.Errorf("create output folder: %w", err)
	}
	path := filepath.Join(config.OutputFolder, config.OutputFilename)
	if err := os.WriteFile(path, []byte(sql), 0o600); err != nil {
		return fmt.Errorf("write migration file: %w", err)
	}
	return nil
}

// Command migrate-gen generates the SQL migration file for the
// datasource metadata table.
//
// Usage:
//
//	go run github.com/demo-kratia/druid/cmd/migrate-gen -adapter postgres -output migrations
//	go run github.com/demo-kratia/druid/cmd/migrate-gen -adapter mysql -table custom_metadata
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/demo-kratia/druid/pkg/migrations"
)

func main() {
	cfg := migrations.DefaultConfig()

	adapter := flag.String("adapter", "postgres", "Database adapter: postgres or mysql")
	flag.StringVar(&cfg.OutputFolder, "output", cfg.OutputFolder, "Output folder for the migration file")
	flag.StringVar(&cfg.MetadataTable, "table", cfg.MetadataTable, "Name of the metadata table")
	filename := flag.String("filename", "", "Output filename (default: timestamp-based)")
	flag.Parse()

	if *filename != "" {
		cfg.OutputFilename = *filename
	}

	var err error
	switch *adapter {
	case "postgres":
		err = migrations.GeneratePostgres(&cfg)
	case "mysql":
		err = migrations.GenerateMySQL(&cfg)
	default:
		err = fmt.Errorf("unsupported adapter %q (want postgres or mysql)", *adapter)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated %s migration: %s/%s\n", *adapter, cfg.OutputFolder, cfg.OutputFilename)
}

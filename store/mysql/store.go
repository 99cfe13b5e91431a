// Package mysql provides a MySQL-backed MetadataStore, mirroring the
// postgres implementation with MySQL placeholder and upsert syntax.
package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	supervisor "github.com/demo-kratia/druid"
	"github.com/demo-kratia/druid/store"
)

// Store is a MySQL implementation of MetadataStore.
type Store struct {
	db    *sql.DB
	table string
}

// Compile-time check that Store implements MetadataStore.
var _ store.MetadataStore = (*Store)(nil)

// New creates a MySQL store with the default table name.
func New(db *sql.DB) *Store {
	return NewWithConfig(db, DefaultTableConfig())
}

// NewWithConfig creates a MySQL store with a custom table name.
func NewWithConfig(db *sql.DB, config TableConfig) *Store {
	return &Store{db: db, table: config.MetadataTable}
}

// ReadMetadata returns the stored metadata for a datasource.
// Returns store.ErrMetadataNotFound if none exists.
func (s *Store) ReadMetadata(ctx context.Context, dataSource supervisor.DataSourceName) (supervisor.DataSourceMetadata, error) {
	query := fmt.Sprintf(`
		SELECT stream, offsets
		FROM %s
		WHERE datasource = ?
	`, s.table)

	var (
		stream string
		raw    []byte
	)
	err := s.db.QueryRowContext(ctx, query, string(dataSource)).Scan(&stream, &raw)
	if err == sql.ErrNoRows {
		return supervisor.DataSourceMetadata{}, store.ErrMetadataNotFound
	}
	if err != nil {
		return supervisor.DataSourceMetadata{}, fmt.Errorf("failed to read metadata: %w", err)
	}

	return decodeMetadata(dataSource, stream, raw)
}

// CompareAndSwapMetadata atomically replaces the stored metadata with
// updated, conditioned on the stored value still equalling expected.
func (s *Store) CompareAndSwapMetadata(ctx context.Context, expected, updated supervisor.DataSourceMetadata) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin metadata transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := fmt.Sprintf(`
		SELECT stream, offsets
		FROM %s
		WHERE datasource = ?
		FOR UPDATE
	`, s.table)

	var (
		stream string
		raw    []byte
		exists = true
	)
	err = tx.QueryRowContext(ctx, query, string(updated.DataSource)).Scan(&stream, &raw)
	if err == sql.ErrNoRows {
		exists = false
	} else if err != nil {
		return fmt.Errorf("failed to read metadata for swap: %w", err)
	}

	if expected.Offsets == nil {
		if exists {
			return store.ErrPreconditionFailed
		}
	} else {
		if !exists {
			return store.ErrPreconditionFailed
		}
		current, decErr := decodeMetadata(updated.DataSource, stream, raw)
		if decErr != nil {
			return decErr
		}
		if current.Stream != expected.Stream || !current.Offsets.Equal(expected.Offsets) {
			return store.ErrPreconditionFailed
		}
	}

	encoded, err := json.Marshal(updated.Offsets)
	if err != nil {
		return fmt.Errorf("failed to encode offsets: %w", err)
	}

	var write string
	if exists {
		write = fmt.Sprintf(`
			UPDATE %s
			SET stream = ?, offsets = ?, updated_at = NOW()
			WHERE datasource = ?
		`, s.table)
		_, err = tx.ExecContext(ctx, write, updated.Stream, encoded, string(updated.DataSource))
	} else {
		write = fmt.Sprintf(`
			INSERT INTO %s (datasource, stream, offsets, updated_at)
			VALUES (?, ?, ?, NOW())
		`, s.table)
		_, err = tx.ExecContext(ctx, write, string(updated.DataSource), updated.Stream, encoded)
	}
	if err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit metadata swap: %w", err)
	}
	return nil
}

// ResetMetadata overwrites the stored metadata unconditionally.
func (s *Store) ResetMetadata(ctx context.Context, meta supervisor.DataSourceMetadata) error {
	encoded, err := json.Marshal(meta.Offsets)
	if err != nil {
		return fmt.Errorf("failed to encode offsets: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (datasource, stream, offsets, updated_at)
		VALUES (?, ?, ?, NOW())
		ON DUPLICATE KEY UPDATE stream = VALUES(stream), offsets = VALUES(offsets), updated_at = NOW()
	`, s.table)

	if _, err := s.db.ExecContext(ctx, query, string(meta.DataSource), meta.Stream, encoded); err != nil {
		return fmt.Errorf("failed to reset metadata: %w", err)
	}
	return nil
}

func decodeMetadata(dataSource supervisor.DataSourceName, stream string, raw []byte) (supervisor.DataSourceMetadata, error) {
	var offsets supervisor.OffsetMap
	if err := json.Unmarshal(raw, &offsets); err != nil {
		return supervisor.DataSourceMetadata{}, fmt.Errorf("failed to decode offsets: %w", err)
	}
	return supervisor.DataSourceMetadata{DataSource: dataSource, Stream: stream, Offsets: offsets}, nil
}

// Package postgres provides a PostgreSQL-backed MetadataStore. The
// compare-and-swap runs in a transaction with a row lock so concurrent
// publishers serialize on the datasource row.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	supervisor "github.com/demo-kratia/druid"
	"github.com/demo-kratia/druid/store"
)

// Store is a PostgreSQL implementation of MetadataStore.
type Store struct {
	db    *sql.DB
	table string
}

// Compile-time check that Store implements MetadataStore.
var _ store.MetadataStore = (*Store)(nil)

// New creates a PostgreSQL store with the default table name.
func New(db *sql.DB) *Store {
	return NewWithConfig(db, DefaultTableConfig())
}

// NewWithConfig creates a PostgreSQL store with a custom table name.
func NewWithConfig(db *sql.DB, config TableConfig) *Store {
	return &Store{db: db, table: config.MetadataTable}
}

// ReadMetadata returns the stored metadata for a datasource.
// Returns store.ErrMetadataNotFound if none exists.
func (s *Store) ReadMetadata(ctx context.Context, dataSource supervisor.DataSourceName) (supervisor.DataSourceMetadata, error) {
	query := fmt.Sprintf(`
		SELECT stream, offsets
		FROM %s
		WHERE datasource = $1
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
		WHERE datasource = $1
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

	if err := upsert(ctx, tx, s.table, updated, exists); err != nil {
		return err
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
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (datasource)
		DO UPDATE SET stream = EXCLUDED.stream, offsets = EXCLUDED.offsets, updated_at = NOW()
	`, s.table)

	if _, err := s.db.ExecContext(ctx, query, string(meta.DataSource), meta.Stream, encoded); err != nil {
		return fmt.Errorf("failed to reset metadata: %w", err)
	}
	return nil
}

func upsert(ctx context.Context, tx *sql.Tx, table string, meta supervisor.DataSourceMetadata, exists bool) error {
	encoded, err := json.Marshal(meta.Offsets)
	if err != nil {
		return fmt.Errorf("failed to encode offsets: %w", err)
	}

	var query string
	if exists {
		query = fmt.Sprintf(`
			UPDATE %s
			SET stream = $2, offsets = $3, updated_at = NOW()
			WHERE datasource = $1
		`, table)
	} else {
		query = fmt.Sprintf(`
			INSERT INTO %s (datasource, stream, offsets, updated_at)
			VALUES ($1, $2, $3, NOW())
		`, table)
	}

	if _, err := tx.ExecContext(ctx, query, string(meta.DataSource), meta.Stream, encoded); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
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

package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes shape. Launch history
// is diagnostic data, so older databases are discarded rather than migrated.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was written by a different schema.
var ErrSchemaMismatch = errors.New("schema version mismatch")

func (s *Store) initSchema(ctx context.Context) error {
	version, found, err := s.readSchemaVersion(ctx)
	if err != nil {
		return err
	}
	if !found {
		return s.createSchema(ctx)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: %s has version %d, expected %d",
			ErrSchemaMismatch, s.path, version, schemaVersion)
	}
	return nil
}

// readSchemaVersion reports the stored version; found is false for a new
// database.
func (s *Store) readSchemaVersion(ctx context.Context) (int, bool, error) {
	var tables int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tables); err != nil {
		return 0, false, fmt.Errorf("check schema_version table: %w", err)
	}
	if tables == 0 {
		return 0, false, nil
	}

	var version int
	err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read schema version: %w", err)
	}
	return version, true, nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_version (version, created_at) VALUES (?, ?)",
		schemaVersion, time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}

// OpenOrReset opens the database at path, discarding it first when it was
// written by another schema version. reset reports whether that happened.
func OpenOrReset(path string) (store *Store, reset bool, err error) {
	store, err = Open(path)
	if !errors.Is(err, ErrSchemaMismatch) {
		return store, false, err
	}
	if err := Reset(path); err != nil {
		return nil, false, err
	}
	store, err = Open(path)
	return store, err == nil, err
}

// Reset removes the database and its WAL side files.
func Reset(path string) error {
	for _, candidate := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(candidate); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", candidate, err)
		}
	}
	return nil
}

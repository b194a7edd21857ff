package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"slices"

	"github.com/jmoiron/sqlx"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes. Records are never
// deleted, so an older database has to be migrated by hand.
const schemaVersion = 1

// guardTriggers enforce the lifecycle invariants inside SQLite itself. A
// database missing any of them is not trusted.
var guardTriggers = []string{
	"archives_never_deleted",
	"archives_succeeded_is_terminal",
	"attempts_no_delete",
	"attempts_no_update",
}

// ErrSchemaMismatch indicates the database was not created by this version
// of the store.
var ErrSchemaMismatch = errors.New("schema version mismatch")

func (s *Store) initSchema(ctx context.Context) error {
	var tables []string
	if err := s.db.SelectContext(ctx, &tables,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'schema_version'`,
	); err != nil {
		return fmt.Errorf("inspect schema: %w", err)
	}
	if len(tables) == 0 {
		return s.withTx(ctx, func(tx *sqlx.Tx) error {
			if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
				return fmt.Errorf("create schema: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (?)`, schemaVersion); err != nil {
				return fmt.Errorf("record schema version: %w", err)
			}
			return nil
		})
	}

	var version int
	if err := s.db.GetContext(ctx, &version, `SELECT version FROM schema_version LIMIT 1`); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database %s has version %d, expected %d",
			ErrSchemaMismatch, s.path, version, schemaVersion)
	}

	var triggers []string
	if err := s.db.SelectContext(ctx, &triggers,
		`SELECT name FROM sqlite_master WHERE type = 'trigger' ORDER BY name`,
	); err != nil {
		return fmt.Errorf("inspect triggers: %w", err)
	}
	for _, name := range guardTriggers {
		if !slices.Contains(triggers, name) {
			return fmt.Errorf("%w: database %s lacks trigger %s", ErrSchemaMismatch, s.path, name)
		}
	}
	return nil
}

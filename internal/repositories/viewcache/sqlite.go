// Package viewcache is a local SQLite cache of assembled collections.
package viewcache

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/dmitrijs2005/piggysync/internal/common"
	"github.com/dmitrijs2005/piggysync/internal/dbx"
	"github.com/dmitrijs2005/piggysync/internal/models"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type SQLiteStore struct {
	db dbx.DBTX
}

func NewSQLiteStore(db dbx.DBTX) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Open opens (or creates) the cache database at dsn and ensures the schema.
func Open(ctx context.Context, dsn string) (*sql.DB, *SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, nil, err
	}
	// :memory: databases are per connection.
	db.SetMaxOpenConns(1)

	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, NewSQLiteStore(db), nil
}

// Migrate applies the cache schema. It uses a goose provider rather than the
// package-level goose state, which belongs to the Postgres migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	p, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("failed to init view cache migrations: %w", err)
	}
	if _, err := p.Up(ctx); err != nil {
		return fmt.Errorf("failed to migrate view cache: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, c models.Collection) error {
	c.Stale = false
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode collection: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO collections (user_id, payload, loaded_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET payload = excluded.payload, loaded_at = excluded.loaded_at
	`, c.UserID, payload, c.LoadedAt.UnixMicro())
	if err != nil {
		return fmt.Errorf("failed to save collection[%s]: %w", c.UserID, err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, userID string) (*models.Collection, error) {
	var (
		payload  []byte
		loadedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, loaded_at FROM collections WHERE user_id = ?`, userID).Scan(&payload, &loadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load collection[%s]: %w", userID, err)
	}

	var c models.Collection
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil, fmt.Errorf("failed to decode collection[%s]: %w", userID, err)
	}
	c.LoadedAt = time.UnixMicro(loadedAt).UTC()
	return &c, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM collections WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete collection[%s]: %w", userID, err)
	}
	return nil
}

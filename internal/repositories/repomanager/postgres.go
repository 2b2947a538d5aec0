// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/piggysync/internal/dbx"
	"github.com/dmitrijs2005/piggysync/internal/migrations"
	"github.com/dmitrijs2005/piggysync/internal/repositories/goals"
	"github.com/dmitrijs2005/piggysync/internal/repositories/guests"
	"github.com/dmitrijs2005/piggysync/internal/repositories/piggybanks"
	"github.com/dmitrijs2005/piggysync/internal/repositories/transactions"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repositories bound to
// either the pool or a transaction.
type PostgresRepositoryManager struct{}

func (m *PostgresRepositoryManager) PiggyBanks(db dbx.DBTX) piggybanks.Repository {
	return piggybanks.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Transactions(db dbx.DBTX) transactions.Repository {
	return transactions.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Goals(db dbx.DBTX) goals.Repository {
	return goals.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Guests(db dbx.DBTX) guests.Repository {
	return guests.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded schema migrations.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}

func NewPostgresRepositoryManager() RepositoryManager {
	return &PostgresRepositoryManager{}
}

package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/piggysync/internal/dbx"
	"github.com/dmitrijs2005/piggysync/internal/repositories/goals"
	"github.com/dmitrijs2005/piggysync/internal/repositories/guests"
	"github.com/dmitrijs2005/piggysync/internal/repositories/piggybanks"
	"github.com/dmitrijs2005/piggysync/internal/repositories/transactions"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	PiggyBanks(db dbx.DBTX) piggybanks.Repository
	Transactions(db dbx.DBTX) transactions.Repository
	Goals(db dbx.DBTX) goals.Repository
	Guests(db dbx.DBTX) guests.Repository
}

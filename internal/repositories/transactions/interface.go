package transactions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/piggysync/internal/models"
)

// Repository is the append-only transaction log of a piggy bank.
type Repository interface {
	Append(ctx context.Context, piggyBankID string, entries []models.TransactionEntry) error
	// ListSince returns transactions created strictly after the watermark,
	// oldest first.
	ListSince(ctx context.Context, piggyBankID string, after time.Time) ([]models.Transaction, error)
	// ListAll returns every transaction, newest first.
	ListAll(ctx context.Context, piggyBankID string) ([]models.Transaction, error)
}

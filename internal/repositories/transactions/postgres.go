// Package transactions is the transaction log accessor: validated appends and
// watermark-bounded reads of plaintext transaction rows.
package transactions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/piggysync/internal/common"
	"github.com/dmitrijs2005/piggysync/internal/dbx"
	"github.com/dmitrijs2005/piggysync/internal/models"
	"github.com/google/uuid"
)

// newID is a seam for tests.
var newID = uuid.NewString

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Append inserts all entries in a single statement, so either every row
// becomes visible or none does. created_at is assigned by the store.
func (r *PostgresRepository) Append(ctx context.Context, piggyBankID string, entries []models.TransactionEntry) error {
	normalized, err := Normalize(entries)
	if err != nil {
		return err
	}

	values := make([]string, 0, len(normalized))
	args := make([]any, 0, len(normalized)*5)
	for i, e := range normalized {
		n := i * 5
		values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5))
		args = append(args, newID(), piggyBankID, e.Title, e.Amount, string(e.Type))
	}

	query := `INSERT INTO transactions (id, piggy_bank_id, title, amount, type) VALUES ` + strings.Join(values, ", ")
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListSince(ctx context.Context, piggyBankID string, after time.Time) ([]models.Transaction, error) {
	return r.list(ctx,
		`SELECT id, piggy_bank_id, title, amount, type, created_at FROM transactions
		 WHERE piggy_bank_id = $1 AND created_at > $2
		 ORDER BY created_at ASC, id ASC`,
		piggyBankID, after)
}

func (r *PostgresRepository) ListAll(ctx context.Context, piggyBankID string) ([]models.Transaction, error) {
	return r.list(ctx,
		`SELECT id, piggy_bank_id, title, amount, type, created_at FROM transactions
		 WHERE piggy_bank_id = $1
		 ORDER BY created_at DESC, id DESC`,
		piggyBankID)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]models.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to select transactions: %v", common.ErrRetrieval, err)
	}
	defer rows.Close()

	var result []models.Transaction
	for rows.Next() {
		var (
			tx     models.Transaction
			txType string
		)
		if err := rows.Scan(&tx.ID, &tx.PiggyBankID, &tx.Title, &tx.Amount, &txType, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrRetrieval, err)
		}
		tx.Type = models.TransactionType(txType)
		result = append(result, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrRetrieval, err)
	}
	return result, nil
}

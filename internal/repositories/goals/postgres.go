// Package goals stores savings goals. Target and saved amounts are written
// already encrypted; this package never sees plaintext.
package goals

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/piggysync/internal/common"
	"github.com/dmitrijs2005/piggysync/internal/dbx"
	"github.com/dmitrijs2005/piggysync/internal/models"
	"github.com/google/uuid"
)

var newID = uuid.NewString

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) ListByPiggyBank(ctx context.Context, piggyBankID string) ([]models.Goal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, piggy_bank_id, title, target_amount, saved_amount, allocation_percent
		 FROM goals WHERE piggy_bank_id = $1 ORDER BY title, id`, piggyBankID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to select goals: %v", common.ErrRetrieval, err)
	}
	defer rows.Close()

	var result []models.Goal
	for rows.Next() {
		var (
			g             models.Goal
			target, saved string
		)
		if err := rows.Scan(&g.ID, &g.PiggyBankID, &g.Title, &target, &saved, &g.AllocationPercent); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrRetrieval, err)
		}
		g.TargetAmount = models.EncryptedAmount(target)
		g.SavedAmount = models.EncryptedAmount(saved)
		result = append(result, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrRetrieval, err)
	}
	return result, nil
}

// Create assigns g.ID when it is empty.
func (r *PostgresRepository) Create(ctx context.Context, g *models.Goal) error {
	if g.ID == "" {
		g.ID = newID()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO goals (id, piggy_bank_id, title, target_amount, saved_amount, allocation_percent)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		g.ID, g.PiggyBankID, g.Title, string(g.TargetAmount), string(g.SavedAmount), g.AllocationPercent)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, g *models.Goal) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE goals SET title = $1, target_amount = $2, saved_amount = $3, allocation_percent = $4
		 WHERE id = $5 AND piggy_bank_id = $6`,
		g.Title, string(g.TargetAmount), string(g.SavedAmount), g.AllocationPercent, g.ID, g.PiggyBankID)
	return expectOne(res, err)
}

func (r *PostgresRepository) Delete(ctx context.Context, piggyBankID, goalID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM goals WHERE id = $1 AND piggy_bank_id = $2`, goalID, piggyBankID)
	return expectOne(res, err)
}

func expectOne(res sql.Result, err error) error {
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

package guests

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/piggysync/internal/common"
	"github.com/dmitrijs2005/piggysync/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Issue(ctx context.Context, piggyBankID, code string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO piggy_bank_guests (piggy_bank_id, user_id, access_code) VALUES ($1, NULL, $2)`,
		piggyBankID, code)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindPiggyBankByCode(ctx context.Context, code string) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx,
		`SELECT piggy_bank_id FROM piggy_bank_guests WHERE access_code = $1 LIMIT 1`, code).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrInvalidCode
		}
		return "", fmt.Errorf("%w: %v", common.ErrRetrieval, err)
	}
	return id, nil
}

func (r *PostgresRepository) Grant(ctx context.Context, piggyBankID, userID, code string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO piggy_bank_guests (piggy_bank_id, user_id, access_code) VALUES ($1, $2, $3)
		 ON CONFLICT (piggy_bank_id, user_id) DO NOTHING`,
		piggyBankID, userID, code)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListPiggyBankIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT piggy_bank_id FROM piggy_bank_guests WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to select guest grants: %v", common.ErrRetrieval, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrRetrieval, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrRetrieval, err)
	}
	return ids, nil
}

func (r *PostgresRepository) IsGuest(ctx context.Context, piggyBankID, userID string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM piggy_bank_guests WHERE piggy_bank_id = $1 AND user_id = $2)`,
		piggyBankID, userID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("%w: %v", common.ErrRetrieval, err)
	}
	return ok, nil
}

func (r *PostgresRepository) Revoke(ctx context.Context, piggyBankID, userID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM piggy_bank_guests WHERE piggy_bank_id = $1 AND user_id = $2`, piggyBankID, userID)
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

func (r *PostgresRepository) RevokeAll(ctx context.Context, piggyBankID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM piggy_bank_guests WHERE piggy_bank_id = $1`, piggyBankID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

// Package piggybanks provides the PostgreSQL repository for piggy bank rows,
// including the balance/watermark pair the reconciler reads and writes.
package piggybanks

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/piggysync/internal/common"
	"github.com/dmitrijs2005/piggysync/internal/dbx"
	"github.com/dmitrijs2005/piggysync/internal/models"
)

const selectColumns = `SELECT id, user_id, name, color, balance, updated_at, pairing_code, lock_state, features, created_at FROM piggy_banks`

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPiggyBank(s rowScanner) (*models.PiggyBank, error) {
	var (
		p        models.PiggyBank
		userID   sql.NullString
		balance  string
		features []byte
	)
	if err := s.Scan(&p.ID, &userID, &p.Name, &p.Color, &balance, &p.UpdatedAt,
		&p.PairingCode, &p.LockState, &features, &p.CreatedAt); err != nil {
		return nil, err
	}
	if userID.Valid {
		p.UserID = &userID.String
	}
	p.Balance = models.EncryptedAmount(balance)
	if len(features) > 0 {
		if err := json.Unmarshal(features, &p.Features); err != nil {
			return nil, fmt.Errorf("features: %w", err)
		}
	}
	return &p, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*models.PiggyBank, error) {
	p, err := scanPiggyBank(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("%w: %v", common.ErrRetrieval, err)
	}
	return p, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.PiggyBank, error) {
	return r.getOne(ctx, selectColumns+` WHERE id = $1`, id)
}

func (r *PostgresRepository) GetByPairingCode(ctx context.Context, code string) (*models.PiggyBank, error) {
	return r.getOne(ctx, selectColumns+` WHERE pairing_code = $1`, code)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.PiggyBank, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to select piggy banks: %v", common.ErrRetrieval, err)
	}
	defer rows.Close()

	var result []*models.PiggyBank
	for rows.Next() {
		p, err := scanPiggyBank(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrRetrieval, err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrRetrieval, err)
	}
	return result, nil
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, userID string) ([]*models.PiggyBank, error) {
	return r.list(ctx, selectColumns+` WHERE user_id = $1 ORDER BY created_at`, userID)
}

func (r *PostgresRepository) ListByIDs(ctx context.Context, ids []string) ([]*models.PiggyBank, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := selectColumns + ` WHERE id IN (` + strings.Join(placeholders, ", ") + `) ORDER BY created_at`
	return r.list(ctx, query, args...)
}

// GetBalanceState reads the pair the reconciler folds from.
func (r *PostgresRepository) GetBalanceState(ctx context.Context, id string) (*models.BalanceState, error) {
	var (
		st      models.BalanceState
		balance string
	)
	err := r.db.QueryRowContext(ctx, `SELECT balance, updated_at FROM piggy_banks WHERE id = $1`, id).
		Scan(&balance, &st.Watermark)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("%w: %v", common.ErrRetrieval, err)
	}
	st.Balance = models.EncryptedAmount(balance)
	return &st, nil
}

func expectOne(res sql.Result, err error, none error) error {
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return none
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

// UpdateBalance writes balance and watermark unconditionally (last write wins).
func (r *PostgresRepository) UpdateBalance(ctx context.Context, id string, balance models.EncryptedAmount, watermark time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE piggy_banks SET balance = $1, updated_at = $2 WHERE id = $3`,
		string(balance), watermark, id)
	return expectOne(res, err, common.ErrorNotFound)
}

// UpdateBalanceIfWatermark writes only when the stored watermark still equals
// expected; otherwise ErrVersionConflict is returned and nothing changes.
func (r *PostgresRepository) UpdateBalanceIfWatermark(ctx context.Context, id string, balance models.EncryptedAmount, watermark, expected time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE piggy_banks SET balance = $1, updated_at = $2 WHERE id = $3 AND updated_at = $4`,
		string(balance), watermark, id, expected)
	return expectOne(res, err, common.ErrVersionConflict)
}

// SetOwner claims an unowned piggy bank. Claiming one already owned by
// userID succeeds; one owned by somebody else yields ErrAlreadyClaimed.
func (r *PostgresRepository) SetOwner(ctx context.Context, id, userID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE piggy_banks SET user_id = $2 WHERE id = $1 AND (user_id IS NULL OR user_id = $2)`,
		id, userID)
	return expectOne(res, err, common.ErrAlreadyClaimed)
}

// Reset unlinks the piggy bank from its owner and zeroes the balance. The
// watermark moves to now, or to the newest logged row when the database clock
// runs ahead, so pre-reset transactions are never re-folded.
func (r *PostgresRepository) Reset(ctx context.Context, id string, zero models.EncryptedAmount, watermark time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE piggy_banks SET balance = $1,
			updated_at = GREATEST($2, COALESCE((SELECT max(created_at) FROM transactions WHERE piggy_bank_id = $3), $2)),
			user_id = NULL
		WHERE id = $3`,
		string(zero), watermark, id)
	return expectOne(res, err, common.ErrorNotFound)
}

func (r *PostgresRepository) UpdateDetails(ctx context.Context, id, name, color string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE piggy_banks SET name = $1, color = $2 WHERE id = $3`,
		name, color, id)
	return expectOne(res, err, common.ErrorNotFound)
}

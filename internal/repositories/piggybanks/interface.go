package piggybanks

import (
	"context"
	"time"

	"github.com/dmitrijs2005/piggysync/internal/models"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*models.PiggyBank, error)
	GetByPairingCode(ctx context.Context, code string) (*models.PiggyBank, error)
	ListByOwner(ctx context.Context, userID string) ([]*models.PiggyBank, error)
	ListByIDs(ctx context.Context, ids []string) ([]*models.PiggyBank, error)

	GetBalanceState(ctx context.Context, id string) (*models.BalanceState, error)
	UpdateBalance(ctx context.Context, id string, balance models.EncryptedAmount, watermark time.Time) error
	UpdateBalanceIfWatermark(ctx context.Context, id string, balance models.EncryptedAmount, watermark, expected time.Time) error

	SetOwner(ctx context.Context, id, userID string) error
	Reset(ctx context.Context, id string, zero models.EncryptedAmount, watermark time.Time) error
	UpdateDetails(ctx context.Context, id, name, color string) error
}

package goals

import (
	"context"

	"github.com/dmitrijs2005/piggysync/internal/models"
)

type Repository interface {
	ListByPiggyBank(ctx context.Context, piggyBankID string) ([]models.Goal, error)
	Create(ctx context.Context, g *models.Goal) error
	Update(ctx context.Context, g *models.Goal) error
	Delete(ctx context.Context, piggyBankID, goalID string) error
}

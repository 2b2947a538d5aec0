package viewcache

import (
	"context"

	"github.com/dmitrijs2005/piggysync/internal/models"
)

// Store keeps the last successfully loaded collection per user so the
// dashboard can still render while the primary store is unreachable.
type Store interface {
	Save(ctx context.Context, c models.Collection) error
	// Load returns common.ErrorNotFound when nothing was cached for the user.
	Load(ctx context.Context, userID string) (*models.Collection, error)
	Delete(ctx context.Context, userID string) error
}

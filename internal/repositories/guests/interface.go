package guests

import (
	"context"
)

// Repository tracks guest access codes and the users that redeemed them.
type Repository interface {
	// Issue stores a fresh, unredeemed access code for the piggy bank.
	Issue(ctx context.Context, piggyBankID, code string) error
	// FindPiggyBankByCode resolves an access code to its piggy bank.
	FindPiggyBankByCode(ctx context.Context, code string) (string, error)
	// Grant records userID as a guest. Granting twice is a no-op.
	Grant(ctx context.Context, piggyBankID, userID, code string) error
	ListPiggyBankIDs(ctx context.Context, userID string) ([]string, error)
	IsGuest(ctx context.Context, piggyBankID, userID string) (bool, error)
	Revoke(ctx context.Context, piggyBankID, userID string) error
	// RevokeAll removes every guest and every outstanding code.
	RevokeAll(ctx context.Context, piggyBankID string) (int64, error)
}

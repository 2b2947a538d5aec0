// Package models defines the piggy bank domain types shared by repositories,
// services and the HTTP layer.
package models

import "time"

// EncryptedAmount is the opaque ciphertext stored in balance and goal
// columns. Only cryptox.AmountCipher produces one; never build it from a
// decimal.
type EncryptedAmount string

// PiggyBank is one row of piggy_banks.
type PiggyBank struct {
	ID     string
	UserID *string // nil until claimed
	Name   string
	Color  string

	// Balance is a cached fold of the transaction log up to UpdatedAt.
	Balance   EncryptedAmount
	UpdatedAt time.Time

	PairingCode string
	LockState   string
	Features    Features
	CreatedAt   time.Time
}

// Features are decorative flags, passed through untouched.
type Features struct {
	Glitter     bool `json:"glitter"`
	Rainbow     bool `json:"rainbow"`
	SafeLock    bool `json:"safe_lock"`
	DiamondSkin bool `json:"diamond_skin"`
}

// OwnedBy reports whether userID is the owner of p.
func (p *PiggyBank) OwnedBy(userID string) bool {
	return p.UserID != nil && *p.UserID == userID
}

// BalanceState is the (balance, watermark) pair read at the start of a sync.
type BalanceState struct {
	Balance   EncryptedAmount
	Watermark time.Time
}

// Role is the capability a user holds on a piggy bank.
type Role string

const (
	RoleOwner Role = "owner"
	RoleGuest Role = "guest"
)

// CanManage reports whether the role may withdraw, reset or manage goals and guests.
func (r Role) CanManage() bool { return r == RoleOwner }

// GuestGrant gives a non-owner read/contribute access through an access code.
type GuestGrant struct {
	PiggyBankID string
	UserID      *string // nil while the code is issued but not redeemed
	AccessCode  string
	CreatedAt   time.Time
}

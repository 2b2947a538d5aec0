package models

import "github.com/shopspring/decimal"

// Goal is a savings target attached to a piggy bank. Both amounts are stored
// encrypted.
type Goal struct {
	ID                string
	PiggyBankID       string
	Title             string
	TargetAmount      EncryptedAmount
	SavedAmount       EncryptedAmount
	AllocationPercent int
}

// GoalInput carries plaintext goal fields from the caller.
type GoalInput struct {
	Title             string          `json:"title" validate:"required,max=80"`
	TargetAmount      decimal.Decimal `json:"target_amount"`
	SavedAmount       decimal.Decimal `json:"saved_amount"`
	AllocationPercent int             `json:"allocation_percent" validate:"gte=0,lte=100"`
}

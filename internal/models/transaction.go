package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionDeposit    TransactionType = "deposit"
	TransactionWithdrawal TransactionType = "withdrawal"
	TransactionTransfer   TransactionType = "transfer"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionDeposit, TransactionWithdrawal, TransactionTransfer:
		return true
	}
	return false
}

// Transaction is an immutable row of the transaction log.
type Transaction struct {
	ID          string
	PiggyBankID string
	Title       string
	Amount      decimal.Decimal
	Type        TransactionType
	CreatedAt   time.Time
}

// SignedAmount is the contribution of t to the balance. The type tag is
// authoritative: withdrawals and transfers always subtract the magnitude,
// whatever sign the stored amount carries.
func (t Transaction) SignedAmount() decimal.Decimal {
	if t.Type == TransactionDeposit {
		return t.Amount
	}
	return t.Amount.Abs().Neg()
}

// TransactionEntry is one item of an append request.
type TransactionEntry struct {
	Title  string          `json:"title" validate:"max=120"`
	Amount decimal.Decimal `json:"amount"`
	Type   TransactionType `json:"type" validate:"required,oneof=deposit withdrawal transfer"`
}

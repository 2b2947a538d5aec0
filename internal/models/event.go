package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ChangeKind mirrors the row operation that produced a change event.
type ChangeKind string

const (
	ChangeInsert ChangeKind = "INSERT"
	ChangeUpdate ChangeKind = "UPDATE"
	ChangeDelete ChangeKind = "DELETE"
)

// ChangeTable names the table a change came from.
type ChangeTable string

const (
	TableTransactions ChangeTable = "transactions"
	TablePiggyBanks   ChangeTable = "piggy_banks"
)

// ChangeEvent is delivered by the change-notification transport. ID is
// unique per row change and lets listeners drop copies of the same change.
type ChangeEvent struct {
	ID            string          `json:"id,omitempty"`
	Table         ChangeTable     `json:"table"`
	Kind          ChangeKind      `json:"kind"`
	OwnerID       string          `json:"owner_id"`
	PiggyBankID   string          `json:"piggy_bank_id"`
	PiggyBankName string          `json:"piggy_bank_name,omitempty"`
	Title         string          `json:"title,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Type          TransactionType `json:"type,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
)

// Notification is the user-facing alert handed to the emitter.
type Notification struct {
	Title    string          `json:"title"`
	Message  string          `json:"message"`
	Amount   decimal.Decimal `json:"amount"`
	PigName  string          `json:"pig_name"`
	Severity Severity        `json:"severity"`
}

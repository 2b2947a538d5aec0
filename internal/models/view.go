package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoadMode selects how the loader obtains a balance.
type LoadMode int

const (
	// LoadFast decrypts the stored balance as-is.
	LoadFast LoadMode = iota
	// LoadSync reconciles the balance against the log first.
	LoadSync
)

func (m LoadMode) String() string {
	if m == LoadSync {
		return "sync"
	}
	return "fast"
}

// PiggyBankView is the assembled view-model for one piggy bank.
type PiggyBankView struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Color     string          `json:"color"`
	Role      Role            `json:"role"`
	Balance   decimal.Decimal `json:"balance"`
	LockState string          `json:"lock_state,omitempty"`
	Features  Features        `json:"features"`

	// BalanceError is set when the balance could not be decrypted or
	// synced; Balance is then zero and must not be read as "empty".
	BalanceError string `json:"balance_error,omitempty"`

	ConnectedAt  time.Time         `json:"connected_at"`
	Transactions []TransactionView `json:"transactions"`
	History      []HistoryPoint    `json:"history"`
	Goals        []GoalView        `json:"goals"`
}

// Broken reports whether the balance is unreadable.
func (v PiggyBankView) Broken() bool { return v.BalanceError != "" }

type TransactionView struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Amount    decimal.Decimal `json:"amount"`
	Type      TransactionType `json:"type"`
	CreatedAt time.Time       `json:"created_at"`
}

// HistoryPoint is the end-of-day balance for Day (YYYY-MM-DD).
type HistoryPoint struct {
	Day     string          `json:"day"`
	Balance decimal.Decimal `json:"balance"`
}

type GoalView struct {
	ID                string          `json:"id"`
	Title             string          `json:"title"`
	TargetAmount      decimal.Decimal `json:"target_amount"`
	SavedAmount       decimal.Decimal `json:"saved_amount"`
	AllocationPercent int             `json:"allocation_percent"`
	Error             string          `json:"error,omitempty"`
}

// Collection is everything a user sees on the dashboard.
type Collection struct {
	UserID     string          `json:"user_id"`
	PiggyBanks []PiggyBankView `json:"piggy_banks"`
	LoadedAt   time.Time       `json:"loaded_at"`
	// Stale marks a collection served from the local cache after a
	// retrieval failure.
	Stale bool `json:"stale"`
}

// Owned returns the views the user owns.
func (c Collection) Owned() []PiggyBankView {
	var out []PiggyBankView
	for _, v := range c.PiggyBanks {
		if v.Role == RoleOwner {
			out = append(out, v)
		}
	}
	return out
}

// Total is the sum of readable balances plus the number of broken ones.
type Total struct {
	Balance decimal.Decimal `json:"balance"`
	Broken  int             `json:"broken"`
}

// TotalOf sums readable balances, excluding broken items.
func TotalOf(views []PiggyBankView) Total {
	t := Total{Balance: decimal.Zero}
	for _, v := range views {
		if v.Broken() {
			t.Broken++
			continue
		}
		t.Balance = t.Balance.Add(v.Balance)
	}
	return t
}

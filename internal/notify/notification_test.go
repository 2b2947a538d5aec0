package notify

import (
	"testing"

	"github.com/dmitrijs2005/piggysync/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestBuild(t *testing.T) {
	tests := []struct {
		name string
		ev   models.ChangeEvent
		want models.Notification
	}{
		{
			name: "deposit",
			ev: models.ChangeEvent{Table: models.TableTransactions, Kind: models.ChangeInsert, PiggyBankName: "Oink",
				Title: "Birthday", Amount: decimal.RequireFromString("20"), Type: models.TransactionDeposit},
			want: models.Notification{Title: "Deposit received", Message: "Birthday", Amount: decimal.RequireFromString("20"),
				PigName: "Oink", Severity: models.SeveritySuccess},
		},
		{
			name: "withdrawal without title",
			ev: models.ChangeEvent{Table: models.TableTransactions, Kind: models.ChangeInsert,
				Amount: decimal.RequireFromString("-5.5"), Type: models.TransactionWithdrawal},
			want: models.Notification{Title: "Withdrawal made", Message: "Withdrawal", Amount: decimal.RequireFromString("5.5"),
				PigName: "Piggy bank", Severity: models.SeverityWarning},
		},
		{
			name: "deleted transaction",
			ev: models.ChangeEvent{Table: models.TableTransactions, Kind: models.ChangeDelete, PiggyBankName: "Oink",
				Title: "Oops", Amount: decimal.RequireFromString("1"), Type: models.TransactionDeposit},
			want: models.Notification{Title: "Transaction removed", Message: "Oops", Amount: decimal.RequireFromString("1"),
				PigName: "Oink", Severity: models.SeverityInfo},
		},
		{
			name: "piggy bank renamed",
			ev:   models.ChangeEvent{Table: models.TablePiggyBanks, Kind: models.ChangeUpdate, PiggyBankName: "Savings"},
			want: models.Notification{Title: "Piggy bank updated", Message: `"Savings" was updated`, Amount: decimal.Zero,
				PigName: "Savings", Severity: models.SeverityInfo},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Build(tt.ev)
			assert.Equal(t, tt.want.Title, got.Title)
			assert.Equal(t, tt.want.Message, got.Message)
			assert.Equal(t, tt.want.PigName, got.PigName)
			assert.Equal(t, tt.want.Severity, got.Severity)
			assert.True(t, tt.want.Amount.Equal(got.Amount), "amount %s != %s", got.Amount, tt.want.Amount)
		})
	}
}

func TestPushText(t *testing.T) {
	assert.Equal(t, `Your piggy bank "Oink" increased by 20.00!`,
		PushText("Oink", models.TransactionDeposit, decimal.RequireFromString("20")))
	assert.Equal(t, `Your piggy bank "Oink" decreased by 5.50!`,
		PushText("Oink", models.TransactionWithdrawal, decimal.RequireFromString("-5.5")))
	assert.Equal(t, `Your piggy bank "Piggy bank" decreased by 1.00!`,
		PushText("", models.TransactionTransfer, decimal.NewFromInt(1)))
}

package transactions

import (
	"testing"

	"github.com/dmitrijs2005/piggysync/internal/common"
	"github.com/dmitrijs2005/piggysync/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(title, amount string, typ models.TransactionType) models.TransactionEntry {
	return models.TransactionEntry{Title: title, Amount: decimal.RequireFromString(amount), Type: typ}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		in      []models.TransactionEntry
		want    []models.TransactionEntry
		wantErr bool
	}{
		{
			name: "deposit kept",
			in:   []models.TransactionEntry{entry("Birthday", "20.00", models.TransactionDeposit)},
			want: []models.TransactionEntry{entry("Birthday", "20.00", models.TransactionDeposit)},
		},
		{
			name: "negative withdrawal stored as magnitude",
			in:   []models.TransactionEntry{entry("Candy", "-5.50", models.TransactionWithdrawal)},
			want: []models.TransactionEntry{entry("Candy", "5.50", models.TransactionWithdrawal)},
		},
		{
			name: "positive transfer kept",
			in:   []models.TransactionEntry{entry("To savings", "3", models.TransactionTransfer)},
			want: []models.TransactionEntry{entry("To savings", "3", models.TransactionTransfer)},
		},
		{
			name: "empty title defaulted",
			in:   []models.TransactionEntry{entry("  ", "1", models.TransactionWithdrawal)},
			want: []models.TransactionEntry{entry("Withdrawal", "1", models.TransactionWithdrawal)},
		},
		{name: "negative deposit", in: []models.TransactionEntry{entry("x", "-1", models.TransactionDeposit)}, wantErr: true},
		{name: "zero amount", in: []models.TransactionEntry{entry("x", "0", models.TransactionDeposit)}, wantErr: true},
		{name: "sub-cent amount", in: []models.TransactionEntry{entry("x", "0.001", models.TransactionDeposit)}, wantErr: true},
		{name: "unknown type", in: []models.TransactionEntry{entry("x", "1", "refund")}, wantErr: true},
		{name: "missing type", in: []models.TransactionEntry{entry("x", "1", "")}, wantErr: true},
		{name: "no entries", in: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, common.ErrInvalidTransaction)
				return
			}
			require.NoError(t, err)
			require.Len(t, got, len(tt.want))
			for i := range got {
				assert.Equal(t, tt.want[i].Title, got[i].Title)
				assert.Equal(t, tt.want[i].Type, got[i].Type)
				assert.True(t, tt.want[i].Amount.Equal(got[i].Amount), "amount %s != %s", got[i].Amount, tt.want[i].Amount)
			}
		})
	}
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	in := []models.TransactionEntry{entry("Candy", "-2", models.TransactionWithdrawal)}
	_, err := Normalize(in)
	require.NoError(t, err)
	assert.True(t, in[0].Amount.Equal(decimal.NewFromInt(-2)))
}

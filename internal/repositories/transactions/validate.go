package transactions

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/piggysync/internal/common"
	"github.com/dmitrijs2005/piggysync/internal/models"
	"github.com/go-playground/validator/v10"
)

// currencyExponent is the smallest unit kept in the log (cents).
const currencyExponent = -2

var validate = validator.New(validator.WithRequiredStructEnabled())

// Normalize validates entries and stores every amount as a positive
// magnitude. The type tag carries the direction: a withdrawal sent as -5
// becomes 5, while a negative deposit is rejected as ambiguous.
func Normalize(entries []models.TransactionEntry) ([]models.TransactionEntry, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no entries", common.ErrInvalidTransaction)
	}
	out := make([]models.TransactionEntry, 0, len(entries))
	for i, e := range entries {
		e.Title = strings.TrimSpace(e.Title)
		if err := validate.Struct(e); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", common.ErrInvalidTransaction, i, err)
		}
		if e.Amount.IsZero() {
			return nil, fmt.Errorf("%w: entry %d: zero amount", common.ErrInvalidTransaction, i)
		}
		if e.Amount.IsNegative() && e.Type == models.TransactionDeposit {
			return nil, fmt.Errorf("%w: entry %d: negative deposit", common.ErrInvalidTransaction, i)
		}
		if !e.Amount.Equal(e.Amount.Round(-currencyExponent)) {
			return nil, fmt.Errorf("%w: entry %d: more than two decimal places", common.ErrInvalidTransaction, i)
		}
		e.Amount = e.Amount.Abs()
		if e.Title == "" {
			e.Title = defaultTitle(e.Type)
		}
		out = append(out, e)
	}
	return out, nil
}

func defaultTitle(t models.TransactionType) string {
	switch t {
	case models.TransactionDeposit:
		return "Deposit"
	case models.TransactionWithdrawal:
		return "Withdrawal"
	default:
		return "Transfer"
	}
}

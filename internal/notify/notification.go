// Package notify turns change events into user-facing notifications and
// delivers them, together with the refreshed collection, to emitters.
package notify

import (
	"fmt"

	"github.com/dmitrijs2005/piggysync/internal/models"
	"github.com/shopspring/decimal"
)

const (
	defaultPigName = "Piggy bank"
	// PushTitle is the title of mobile push messages.
	PushTitle = "Piggy Bank Update"
)

// Build derives the notification for ev. Amounts are always shown as
// magnitudes; the title carries the direction.
func Build(ev models.ChangeEvent) models.Notification {
	name := ev.PiggyBankName
	if name == "" {
		name = defaultPigName
	}

	if ev.Table == models.TablePiggyBanks {
		return models.Notification{
			Title:    "Piggy bank updated",
			Message:  fmt.Sprintf("%q was updated", name),
			Amount:   decimal.Zero,
			PigName:  name,
			Severity: models.SeverityInfo,
		}
	}

	n := models.Notification{
		Amount:  ev.Amount.Abs(),
		PigName: name,
		Message: ev.Title,
	}
	deposit := ev.Type == models.TransactionDeposit

	switch ev.Kind {
	case models.ChangeDelete:
		n.Title = "Transaction removed"
		n.Severity = models.SeverityInfo
	case models.ChangeUpdate:
		n.Title = "Transaction changed"
		n.Severity = models.SeverityInfo
	default:
		if deposit {
			n.Title = "Deposit received"
			n.Severity = models.SeveritySuccess
		} else {
			n.Title = "Withdrawal made"
			n.Severity = models.SeverityWarning
		}
	}
	if n.Message == "" {
		if deposit {
			n.Message = "New deposit"
		} else {
			n.Message = "Withdrawal"
		}
	}
	return n
}

// PushText is the body of the push message sent for a recorded transaction.
func PushText(pigName string, t models.TransactionType, amount decimal.Decimal) string {
	if pigName == "" {
		pigName = defaultPigName
	}
	action := "decreased by"
	if t == models.TransactionDeposit {
		action = "increased by"
	}
	return fmt.Sprintf("Your piggy bank %q %s %s!", pigName, action, amount.Abs().StringFixed(2))
}

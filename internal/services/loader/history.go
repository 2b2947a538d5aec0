package loader

import (
	"time"

	"github.com/dmitrijs2005/piggysync/internal/models"
	"github.com/dmitrijs2005/piggysync/internal/timex"
	"github.com/shopspring/decimal"
)

// BuildHistory reconstructs end-of-day balances, oldest first.
//
// txs must be newest first. Starting from the current balance each
// transaction is undone to get the balance before it; the balance left after
// undoing all of them is the opening point at createdAt. Several points on
// one day collapse to the latest.
func BuildHistory(balance decimal.Decimal, createdAt time.Time, txs []models.Transaction, loc *time.Location) []models.HistoryPoint {
	type point struct {
		at    time.Time
		value decimal.Decimal
	}

	points := make([]point, 0, len(txs)+1)
	running := balance
	for _, tx := range txs {
		points = append(points, point{at: tx.CreatedAt, value: running})
		running = running.Sub(tx.SignedAmount())
	}
	points = append(points, point{at: createdAt, value: running})

	history := make([]models.HistoryPoint, 0, len(points))
	for i := len(points) - 1; i >= 0; i-- {
		day := timex.DayKey(points[i].at, loc)
		if n := len(history); n > 0 && history[n-1].Day == day {
			history[n-1].Balance = points[i].value
			continue
		}
		history = append(history, models.HistoryPoint{Day: day, Balance: points[i].value})
	}
	return history
}

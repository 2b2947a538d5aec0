package realtime

import (
	"context"
	"time"

	"github.com/dmitrijs2005/piggysync/internal/logging"
	"github.com/dmitrijs2005/piggysync/internal/models"
)

// Publisher hands change events to the transport. Publishing is best
// effort: the write already happened and listeners reconcile from the store.
type Publisher struct {
	transport Transport
	log       logging.Logger
	now       func() time.Time
}

func NewPublisher(t Transport, log logging.Logger) *Publisher {
	return &Publisher{transport: t, log: log, now: time.Now}
}

// Publish sends ev to its owner's channel. Events of unclaimed piggy banks
// have no audience and are skipped.
func (p *Publisher) Publish(ctx context.Context, ev models.ChangeEvent) {
	if ev.OwnerID == "" {
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = p.now()
	}
	ev.OccurredAt = ev.OccurredAt.UTC()
	if err := p.transport.Publish(ctx, ev); err != nil {
		p.log.Warn(ctx, "failed to publish change event", "piggy_bank_id", ev.PiggyBankID, "table", string(ev.Table), "error", err)
	}
}

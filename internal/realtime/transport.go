// Package realtime delivers row-change events to the sessions of the owning
// user and refreshes their dashboard when one arrives.
//
// Events are published on a channel per owner, so a guest never receives
// changes of a piggy bank they were only invited to.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/piggysync/internal/models"
)

const channelPrefix = "piggysync:changes:user:"

// Channel is the pub/sub channel carrying changes of ownerID's piggy banks.
func Channel(ownerID string) string {
	return channelPrefix + ownerID
}

// Transport is the change-notification transport.
type Transport interface {
	Publish(ctx context.Context, ev models.ChangeEvent) error
	Subscribe(ctx context.Context, ownerID string) (Subscription, error)
}

// Subscription is a live feed of one owner's changes. Events is closed once
// the subscription ends.
type Subscription interface {
	Events() <-chan models.ChangeEvent
	Close() error
}

func encode(ev models.ChangeEvent) ([]byte, error) {
	if ev.OwnerID == "" {
		return nil, fmt.Errorf("change event for %s has no owner", ev.PiggyBankID)
	}
	return json.Marshal(ev)
}

func decode(payload string) (models.ChangeEvent, error) {
	var ev models.ChangeEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return ev, fmt.Errorf("decode change event: %w", err)
	}
	if ev.OwnerID == "" || ev.PiggyBankID == "" {
		return ev, fmt.Errorf("decode change event: missing owner or piggy bank")
	}
	return ev, nil
}

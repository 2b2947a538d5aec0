package realtime

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/piggysync/internal/logging"
	"github.com/dmitrijs2005/piggysync/internal/models"
)

// LocalTransport delivers events within one process. It is used when no
// Redis address is configured.
type LocalTransport struct {
	mu   sync.RWMutex
	subs map[string]map[*localSubscription]struct{}
	log  logging.Logger
}

func NewLocalTransport(log logging.Logger) *LocalTransport {
	return &LocalTransport{subs: map[string]map[*localSubscription]struct{}{}, log: log}
}

func (t *LocalTransport) Publish(ctx context.Context, ev models.ChangeEvent) error {
	if _, err := encode(ev); err != nil {
		return err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	for s := range t.subs[ev.OwnerID] {
		select {
		case s.ch <- ev:
		default:
			t.log.Warn(ctx, "subscriber is full, dropping change event", "user_id", ev.OwnerID, "piggy_bank_id", ev.PiggyBankID)
		}
	}
	return nil
}

func (t *LocalTransport) Subscribe(ctx context.Context, ownerID string) (Subscription, error) {
	s := &localSubscription{t: t, ownerID: ownerID, ch: make(chan models.ChangeEvent, subscriptionBuffer)}
	t.mu.Lock()
	if t.subs[ownerID] == nil {
		t.subs[ownerID] = map[*localSubscription]struct{}{}
	}
	t.subs[ownerID][s] = struct{}{}
	t.mu.Unlock()
	return s, nil
}

type localSubscription struct {
	t       *LocalTransport
	ownerID string
	ch      chan models.ChangeEvent
	once    sync.Once
}

func (s *localSubscription) Events() <-chan models.ChangeEvent { return s.ch }

func (s *localSubscription) Close() error {
	s.once.Do(func() {
		s.t.mu.Lock()
		delete(s.t.subs[s.ownerID], s)
		if len(s.t.subs[s.ownerID]) == 0 {
			delete(s.t.subs, s.ownerID)
		}
		s.t.mu.Unlock()
		close(s.ch)
	})
	return nil
}

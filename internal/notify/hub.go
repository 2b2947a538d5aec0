package notify

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/piggysync/internal/logging"
)

const subscriberBuffer = 8

// Hub fans updates out to the live event streams of each user.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*subscriber]struct{}
	log  logging.Logger
}

type subscriber struct {
	ch chan Update
}

func NewHub(log logging.Logger) *Hub {
	return &Hub{subs: map[string]map[*subscriber]struct{}{}, log: log}
}

// Subscribe registers a stream for userID. cancel is idempotent and closes
// the channel.
func (h *Hub) Subscribe(userID string) (<-chan Update, func()) {
	s := &subscriber{ch: make(chan Update, subscriberBuffer)}

	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = map[*subscriber]struct{}{}
	}
	h.subs[userID][s] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[userID], s)
			if len(h.subs[userID]) == 0 {
				delete(h.subs, userID)
			}
			h.mu.Unlock()
			close(s.ch)
		})
	}
	return s.ch, cancel
}

// Subscribers reports the number of live streams of userID.
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

// Emit never blocks: a subscriber whose buffer is full misses the update.
func (h *Hub) Emit(ctx context.Context, u Update) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs[u.UserID] {
		select {
		case s.ch <- u:
		default:
			h.log.Warn(ctx, "event stream is full, dropping update", "user_id", u.UserID)
		}
	}
}

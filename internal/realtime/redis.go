package realtime

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/piggysync/internal/logging"
	"github.com/dmitrijs2005/piggysync/internal/models"
	"github.com/go-redis/redis/v8"
)

const subscriptionBuffer = 64

// RedisTransport carries change events over Redis pub/sub.
type RedisTransport struct {
	rdb *redis.Client
	log logging.Logger
}

func NewRedisTransport(rdb *redis.Client, log logging.Logger) *RedisTransport {
	return &RedisTransport{rdb: rdb, log: log}
}

func (t *RedisTransport) Publish(ctx context.Context, ev models.ChangeEvent) error {
	payload, err := encode(ev)
	if err != nil {
		return err
	}
	return t.rdb.Publish(ctx, Channel(ev.OwnerID), string(payload)).Err()
}

// Subscribe returns once Redis confirmed the subscription.
func (t *RedisTransport) Subscribe(ctx context.Context, ownerID string) (Subscription, error) {
	ps := t.rdb.Subscribe(ctx, Channel(ownerID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	s := &redisSubscription{
		ps:   ps,
		out:  make(chan models.ChangeEvent, subscriptionBuffer),
		done: make(chan struct{}),
	}
	go s.run(t.log.With("user_id", ownerID))
	return s, nil
}

type redisSubscription struct {
	ps   *redis.PubSub
	out  chan models.ChangeEvent
	done chan struct{}
	once sync.Once
}

func (s *redisSubscription) run(log logging.Logger) {
	defer close(s.out)
	for msg := range s.ps.Channel() {
		ev, err := decode(msg.Payload)
		if err != nil {
			log.Warn(context.Background(), "dropping malformed change event", "channel", msg.Channel, "error", err)
			continue
		}
		select {
		case s.out <- ev:
		case <-s.done:
			return
		}
	}
}

func (s *redisSubscription) Events() <-chan models.ChangeEvent { return s.out }

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}

package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/piggysync/internal/logging"
	"github.com/dmitrijs2005/piggysync/internal/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	notifications chan *pgconn.Notification

	mu     sync.Mutex
	execs  []string
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{notifications: make(chan *pgconn.Notification)}
}

func (c *fakeConn) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.execs = append(c.execs, sql)
	return pgconn.CommandTag{}, nil
}

// WaitForNotification fails once the notifications channel is closed, like a
// dropped connection.
func (c *fakeConn) WaitForNotification(ctx context.Context) (*pgconn.Notification, error) {
	select {
	case n, ok := <-c.notifications:
		if !ok {
			return nil, errors.New("connection reset by peer")
		}
		return n, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) Close(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) state() ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.execs...), c.closed
}

func dialSequence(conns ...*fakeConn) Dialer {
	ch := make(chan *fakeConn, len(conns))
	for _, c := range conns {
		ch <- c
	}
	return func(context.Context) (NotificationConn, error) {
		select {
		case c := <-ch:
			return c, nil
		default:
			return nil, errors.New("connection refused")
		}
	}
}

func notification(payload string) *pgconn.Notification {
	return &pgconn.Notification{PID: 4242, Channel: NotifyChannel, Payload: payload}
}

// Payloads below are shaped like the output of the row-change triggers.
const (
	coinCounterInsert = `{"id":"901:transactions:INSERT:7f1c","table":"transactions","kind":"INSERT",` +
		`"owner_id":"u1","piggy_bank_id":"pb1","piggy_bank_name":"Oink","title":"Coin counter",` +
		`"amount":2.50,"type":"deposit","occurred_at":"2026-10-16T09:30:00.123456+00:00"}`
	moderationDelete = `{"id":"905:transactions:DELETE:7f1c","table":"transactions","kind":"DELETE",` +
		`"owner_id":"u1","piggy_bank_id":"pb1","piggy_bank_name":"Oink","title":"Coin counter",` +
		`"amount":2.50,"type":"deposit","occurred_at":"2026-10-16T09:45:00+00:00"}`
)

func startListener(t *testing.T, l *Listener) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestListener_ExternalWriteReachesSession(t *testing.T) {
	m, tr, loader, rec := newManager(t, 0)
	loader.On("LoadForUser", "u1", models.LoadFast).Return(collectionFor("u1"), nil)

	h, err := m.Open(context.Background(), "u1")
	require.NoError(t, err)
	defer h.Close()

	conn := newFakeConn()
	startListener(t, NewListener(dialSequence(conn), NewPublisher(tr, logging.Discard()), logging.Discard()))

	conn.notifications <- notification(coinCounterInsert)
	require.Eventually(t, func() bool { return len(rec.all()) == 1 }, time.Second, 5*time.Millisecond)
	u := rec.all()[0]
	assert.Equal(t, "u1", u.UserID)
	assert.Equal(t, "Deposit received", u.Notification.Title)
	assert.Equal(t, "Coin counter", u.Notification.Message)
	assert.Equal(t, `Your piggy bank "Oink" increased by 2.50!`, u.Push)

	conn.notifications <- notification(moderationDelete)
	require.Eventually(t, func() bool { return len(rec.all()) == 2 }, time.Second, 5*time.Millisecond)
	u = rec.all()[1]
	assert.Equal(t, "Transaction removed", u.Notification.Title)
	assert.Equal(t, "2.5", u.Notification.Amount.String())
	assert.Empty(t, u.Push)

	execs, _ := conn.state()
	assert.Equal(t, []string{"LISTEN piggysync_changes"}, execs)
}

func TestListener_ReconnectsAndSkipsMalformed(t *testing.T) {
	tr := NewLocalTransport(logging.Discard())
	sub, err := tr.Subscribe(context.Background(), "u1")
	require.NoError(t, err)
	defer sub.Close()

	first, second := newFakeConn(), newFakeConn()
	l := NewListener(dialSequence(first, second), NewPublisher(tr, logging.Discard()), logging.Discard(),
		WithReconnectDelay(time.Millisecond))
	startListener(t, l)

	close(first.notifications)
	second.notifications <- notification(`{"table":"transactions"}`)
	second.notifications <- notification(coinCounterInsert)

	select {
	case ev := <-sub.Events():
		assert.Equal(t, "901:transactions:INSERT:7f1c", ev.ID)
		assert.Equal(t, models.ChangeInsert, ev.Kind)
		assert.Equal(t, "2.5", ev.Amount.String())
		assert.Equal(t, time.Date(2026, 10, 16, 9, 30, 0, 123456000, time.UTC), ev.OccurredAt)
	case <-time.After(time.Second):
		t.Fatal("no event after reconnect")
	}

	_, closed := first.state()
	assert.True(t, closed, "dropped connection is closed")
}

func TestListener_StopsOnCancel(t *testing.T) {
	conn := newFakeConn()
	l := NewListener(dialSequence(conn), NewPublisher(NewLocalTransport(logging.Discard()), logging.Discard()), logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		execs, _ := conn.state()
		return len(execs) == 1
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("listener kept running after cancel")
	}
	_, closed := conn.state()
	assert.True(t, closed)
}

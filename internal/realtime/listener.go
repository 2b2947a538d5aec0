package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/piggysync/internal/logging"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// NotifyChannel is the Postgres channel the row-change triggers notify on.
const NotifyChannel = "piggysync_changes"

const defaultReconnectDelay = 2 * time.Second

// NotificationConn is the part of *pgx.Conn the listener uses.
type NotificationConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Close(ctx context.Context) error
}

// Dialer opens a dedicated connection for LISTEN.
type Dialer func(ctx context.Context) (NotificationConn, error)

// PgxDialer connects with pgx. LISTEN needs a connection of its own, so it
// cannot come from the database/sql pool.
func PgxDialer(dsn string) Dialer {
	return func(ctx context.Context) (NotificationConn, error) {
		conn, err := pgx.Connect(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// Listener turns Postgres row-change notifications into change events. Any
// writer of the tables is seen, not only this process.
type Listener struct {
	dial      Dialer
	publisher *Publisher
	log       logging.Logger
	reconnect time.Duration
}

type ListenerOption func(*Listener)

func WithReconnectDelay(d time.Duration) ListenerOption {
	return func(l *Listener) { l.reconnect = d }
}

func NewListener(dial Dialer, p *Publisher, log logging.Logger, opts ...ListenerOption) *Listener {
	l := &Listener{dial: dial, publisher: p, log: log, reconnect: defaultReconnectDelay}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Run listens until ctx is cancelled, reconnecting after a lost connection.
// Changes committed while disconnected are not replayed; sessions catch up
// on the next change or load.
func (l *Listener) Run(ctx context.Context) {
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return
		}
		l.log.Warn(ctx, "change listener disconnected", "error", err, "retry_in", l.reconnect.String())

		select {
		case <-ctx.Done():
			return
		case <-time.After(l.reconnect):
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := l.dial(ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() {
		_ = conn.Close(context.Background())
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	l.log.Info(ctx, "listening for row changes", "channel", NotifyChannel)

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		ev, err := decode(n.Payload)
		if err != nil {
			l.log.Warn(ctx, "dropping malformed row change", "channel", n.Channel, "error", err)
			continue
		}
		l.publisher.Publish(ctx, ev)
	}
}

package notify

import (
	"context"

	"github.com/dmitrijs2005/piggysync/internal/logging"
	"github.com/dmitrijs2005/piggysync/internal/models"
)

// Update is what the realtime listener hands over after each change.
type Update struct {
	UserID       string              `json:"user_id"`
	Collection   *models.Collection  `json:"collection"`
	Notification models.Notification `json:"notification"`
	// Push is the push-message body, set for recorded transactions only.
	Push string `json:"push,omitempty"`
}

// Emitter is a fire-and-forget sink; Emit must not block on slow consumers.
type Emitter interface {
	Emit(ctx context.Context, u Update)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ctx context.Context, u Update)

func (f EmitterFunc) Emit(ctx context.Context, u Update) { f(ctx, u) }

// Multi emits to every emitter in order.
type Multi []Emitter

func (m Multi) Emit(ctx context.Context, u Update) {
	for _, e := range m {
		e.Emit(ctx, u)
	}
}

// LogEmitter writes notifications to the structured log.
type LogEmitter struct {
	log logging.Logger
}

func NewLogEmitter(log logging.Logger) *LogEmitter {
	return &LogEmitter{log: log}
}

func (e *LogEmitter) Emit(ctx context.Context, u Update) {
	n := u.Notification
	args := []any{
		"user_id", u.UserID,
		"title", n.Title,
		"message", n.Message,
		"pig_name", n.PigName,
		"amount", n.Amount.String(),
		"severity", string(n.Severity),
	}
	if u.Push != "" {
		args = append(args, "push", u.Push)
	}
	if u.Collection != nil {
		args = append(args, "piggy_banks", len(u.Collection.PiggyBanks))
	}
	e.log.Info(ctx, "notification", args...)
}

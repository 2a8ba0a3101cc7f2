package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/baechuer/user-console/internal/logger"
	"github.com/baechuer/user-console/middleware"
)

// Event types. They double as routing keys.
const (
	SessionStarted = "session.started"
	SessionEnded   = "session.ended"
	UserUpdated    = "user.updated"
	UserDeleted    = "user.deleted"
	UsersImported  = "users.imported"
	UsersExported  = "users.exported"
)

// Event records one administrative action taken through the console.
type Event struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Actor      string            `json:"actor,omitempty"`
	Target     string            `json:"target,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
	Attrs      map[string]string `json:"attrs,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// NewEvent fills the id, time and request id from ctx.
func NewEvent(ctx context.Context, typ, actor, target string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       typ,
		Actor:      actor,
		Target:     target,
		RequestID:  middleware.GetRequestID(ctx),
		OccurredAt: time.Now().UTC(),
	}
}

// Record publishes evt and only logs a failure. Audit is best effort and
// never fails the action it describes.
func Record(ctx context.Context, p Publisher, evt Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, evt); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("event", evt.Type).Msg("audit_publish_failed")
	}
}

// LogPublisher writes events to the log. Used when no broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, evt Event) error {
	logger.Ctx(ctx).Info().
		Str("event_id", evt.ID).
		Str("event", evt.Type).
		Str("actor", evt.Actor).
		Str("target", evt.Target).
		Msg("audit")
	return nil
}

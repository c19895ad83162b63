package siwn

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	ActivityEventSignIn          = "siwn.sign_in"
	ActivityEventAccountLinked   = "siwn.account_linked"
	ActivityEventAccountUnlinked = "siwn.account_unlinked"
)

// ActorRef identifies the user an activity event is about.
type ActorRef struct {
	UserID    uuid.UUID `json:"user_id"`
	AccountID string    `json:"account_id,omitempty"`
	Network   Network   `json:"network,omitempty"`
}

// ActivityEvent is an audit record emitted after a linking mutation commits.
type ActivityEvent struct {
	Type       string         `json:"type"`
	Actor      ActorRef       `json:"actor"`
	OccurredAt time.Time      `json:"occurred_at"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// ActivitySink receives audit events. Emission is fire and forget: sink
// errors are logged, never surfaced to the request.
type ActivitySink interface {
	RecordActivity(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

func (f ActivitySinkFunc) RecordActivity(ctx context.Context, event ActivityEvent) error {
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) RecordActivity(ctx context.Context, event ActivityEvent) error {
	return nil
}

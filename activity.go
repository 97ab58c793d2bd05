package auth

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventTokenIssued    ActivityEventType = "auth.token.issued"
	ActivityEventIssueFailure   ActivityEventType = "auth.token.issue_failure"
	ActivityEventTokenAccepted  ActivityEventType = "auth.token.accepted"
	ActivityEventTokenRejected  ActivityEventType = "auth.token.rejected"
	ActivityEventTokenRefreshed ActivityEventType = "auth.token.refreshed"
	ActivityEventRefreshFailure ActivityEventType = "auth.token.refresh_failure"
	ActivityEventRefreshRevoked ActivityEventType = "auth.token.refresh_revoked"
)

// ActivityEvent captures audit-friendly information about a token operation.
// It never carries token strings or key material.
type ActivityEvent struct {
	EventType  ActivityEventType
	Subject    string
	TokenID    string
	Kind       Kind
	Stage      Stage
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

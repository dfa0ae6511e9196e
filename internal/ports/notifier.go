package ports

import (
	"context"

	"futuresHook/internal/domain"
)

// NotificationSink informs a downstream endpoint about entry/exit lifecycle events.
// Implementations must honour ctx deadlines; callers treat every error as non-fatal.
type NotificationSink interface {
	Notify(ctx context.Context, event domain.LifecycleEvent) error
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) Notify(context.Context, domain.LifecycleEvent) error { return nil }

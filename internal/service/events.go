package service

import (
	"context"
	"log/slog"

	"github.com/rockymount114/City-Workflow/internal/featureflags"
	"github.com/rockymount114/City-Workflow/internal/middleware"
	"github.com/rockymount114/City-Workflow/internal/notifications"
)

// EventPublisher delivers realtime events. *notifications.Notifier
// implements it.
type EventPublisher interface {
	PublishUser(ctx context.Context, userID uint, ev notifications.Event) error
	PublishAdmins(ctx context.Context, ev notifications.Event) error
}

// events publishes after commit. Failures are logged, never returned: the
// mutation has already happened.
type events struct {
	pub   EventPublisher
	flags *featureflags.Manager
}

func (e events) enabled() bool {
	return e.pub != nil && e.flags.EnabledGlobally(featureflags.RealtimeEvents)
}

func (e events) toUser(ctx context.Context, userID uint, eventType string, payload any) {
	if !e.enabled() || userID == 0 {
		return
	}
	if err := e.pub.PublishUser(ctx, userID, notifications.NewEvent(eventType, payload)); err != nil {
		middleware.Logger.WarnContext(ctx, "publish event failed",
			slog.String("event", eventType), slog.Uint64("target_user", uint64(userID)), slog.String("error", err.Error()))
	}
}

func (e events) toAdmins(ctx context.Context, eventType string, payload any) {
	if !e.enabled() {
		return
	}
	if err := e.pub.PublishAdmins(ctx, notifications.NewEvent(eventType, payload)); err != nil {
		middleware.Logger.WarnContext(ctx, "publish event failed",
			slog.String("event", eventType), slog.String("error", err.Error()))
	}
}

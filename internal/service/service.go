// Package service holds the blog's business rules on top of the repositories.
package service

import (
	"context"
	"log/slog"

	"inkwell/internal/models"
	"inkwell/internal/notifications"
	"inkwell/internal/observability"
)

// Actor is the authenticated caller a service acts for.
type Actor struct {
	ID   string
	Role models.Role
}

// IsAdmin reports whether the caller holds the ADMIN role.
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// PostIndexer mirrors posts into a search engine.
type PostIndexer interface {
	IndexPost(ctx context.Context, post *models.Post) error
	DeletePost(ctx context.Context, id string) error
	Search(ctx context.Context, query string, from, size int) ([]string, int64, error)
	Related(ctx context.Context, postID string, tags []string, size int) ([]string, error)
}

// EventPublisher fans lifecycle events out to subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, ev notifications.Event) error
	PublishUser(ctx context.Context, userID string, ev notifications.Event) error
}

// MarkdownRenderer turns post bodies into sanitized HTML and strips markup
// from plain-text input.
type MarkdownRenderer interface {
	Render(source string) (string, error)
	PlainText(s string) string
}

// publish delivers ev best-effort; subscribers are never allowed to fail a write.
func publish(ctx context.Context, events EventPublisher, ev notifications.Event, notifyUser string) {
	if events == nil {
		return
	}
	if err := events.Publish(ctx, ev); err != nil {
		observability.GlobalLogger.WarnContext(ctx, "event publish failed",
			slog.String("event", string(ev.Type)),
			slog.String("id", ev.ID),
			slog.String("error", err.Error()))
	}
	if notifyUser != "" && notifyUser != ev.ActorID {
		if err := events.PublishUser(ctx, notifyUser, ev); err != nil {
			observability.GlobalLogger.WarnContext(ctx, "user notification failed",
				slog.String("event", string(ev.Type)),
				slog.String("user_id", notifyUser),
				slog.String("error", err.Error()))
		}
	}
}

// Package notifications publishes post and comment lifecycle events over Redis pub/sub.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"inkwell/internal/observability"

	"github.com/redis/go-redis/v9"
)

// EventType names a lifecycle event.
type EventType string

const (
	PostCreated      EventType = "post.created"
	PostUpdated      EventType = "post.updated"
	PostDeleted      EventType = "post.deleted"
	CommentCreated   EventType = "comment.created"
	CommentUpdated   EventType = "comment.updated"
	CommentModerated EventType = "comment.moderated"
	CommentDeleted   EventType = "comment.deleted"
)

const (
	// PostsChannel carries post events.
	PostsChannel = "events:posts"
	// CommentsChannel carries comment events.
	CommentsChannel = "events:comments"

	userChannelPrefix = "notifications:user:"
)

// Event is the JSON payload published for every lifecycle change.
type Event struct {
	Type    EventType `json:"type"`
	ID      string    `json:"id"`
	PostID  string    `json:"postId,omitempty"`
	ActorID string    `json:"actorId,omitempty"`
	Status  string    `json:"status,omitempty"`
	At      time.Time `json:"at"`
}

// Notifier provides helpers to publish events into Redis channels
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
// A nil client turns every publish into a no-op.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Publish sends ev to the channel of its resource.
func (n *Notifier) Publish(ctx context.Context, ev Event) error {
	return n.publish(ctx, channelFor(ev.Type), ev)
}

// PublishUser sends ev to a single user's channel, e.g. a post author
// learning about a new comment.
func (n *Notifier) PublishUser(ctx context.Context, userID string, ev Event) error {
	if userID == "" {
		return nil
	}
	return n.publish(ctx, UserChannel(userID), ev)
}

func (n *Notifier) publish(ctx context.Context, channel string, ev Event) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return n.rdb.Publish(ctx, channel, payload).Err()
}

// Subscribe listens on the event channels and every user channel, calling
// onEvent for each decodable message until ctx is cancelled.
func (n *Notifier) Subscribe(ctx context.Context, onEvent func(channel string, ev Event)) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, "events:*", userChannelPrefix+"*")
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe: %w", err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					observability.GlobalLogger.WarnContext(ctx, "dropping malformed event",
						slog.String("channel", msg.Channel),
						slog.String("error", err.Error()))
					continue
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							observability.GlobalLogger.ErrorContext(ctx, "panic in event subscriber",
								slog.Any("panic", r),
								slog.String("stack", string(debug.Stack())))
						}
					}()
					onEvent(msg.Channel, ev)
				}()
			}
		}
	}()

	return nil
}

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID string) string {
	return userChannelPrefix + userID
}

func channelFor(t EventType) string {
	switch t {
	case CommentCreated, CommentUpdated, CommentModerated, CommentDeleted:
		return CommentsChannel
	default:
		return PostsChannel
	}
}

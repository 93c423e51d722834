// Package notify delivers cart failure notifications to logs, to the HTTP
// response of the request that caused them, and to Kafka.
package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/utafrali/shopcart/internal/domain"
	"github.com/utafrali/shopcart/pkg/logger"
)

// Notifier receives cart notifications.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification)
}

// Log writes every notification to a logger at warn level.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a Log notifier.
func NewLog(l *slog.Logger) *Log {
	return &Log{logger: l}
}

func (l *Log) Notify(ctx context.Context, n domain.Notification) {
	logger.WithContext(ctx, l.logger).WarnContext(ctx, "cart notification",
		slog.String("kind", string(n.Kind)),
		slog.String("operation", string(n.Operation)),
		slog.Int64("product_id", n.ProductID),
		slog.String("message", n.Message),
	)
}

// Multi fans a notification out to several notifiers in order.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n domain.Notification) {
	for _, notifier := range m {
		if notifier != nil {
			notifier.Notify(ctx, n)
		}
	}
}

// Inbox collects the notifications raised while serving one request so the
// response can carry them, the way a storefront shows a toast.
type Inbox struct {
	mu    sync.Mutex
	items []domain.Notification
}

type inboxKey struct{}

// WithInbox returns a context carrying a fresh inbox.
func WithInbox(ctx context.Context) (context.Context, *Inbox) {
	in := &Inbox{}
	return context.WithValue(ctx, inboxKey{}, in), in
}

// InboxFromContext returns the inbox carried by ctx, if any.
func InboxFromContext(ctx context.Context) (*Inbox, bool) {
	in, ok := ctx.Value(inboxKey{}).(*Inbox)
	return in, ok
}

func (in *Inbox) add(n domain.Notification) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.items = append(in.items, n)
}

// Drain returns the collected notifications and empties the inbox. The
// result is never nil.
func (in *Inbox) Drain() []domain.Notification {
	in.mu.Lock()
	defer in.mu.Unlock()
	out := in.items
	in.items = nil
	if out == nil {
		out = []domain.Notification{}
	}
	return out
}

// ContextInbox delivers a notification to the inbox carried by the context
// and drops it when there is none.
type ContextInbox struct{}

func (ContextInbox) Notify(ctx context.Context, n domain.Notification) {
	if in, ok := InboxFromContext(ctx); ok {
		in.add(n)
	}
}

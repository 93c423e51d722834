package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/utafrali/shopcart/internal/domain"
	pkgkafka "github.com/utafrali/shopcart/pkg/kafka"
	"github.com/utafrali/shopcart/pkg/logger"
)

// TopicCartNotification receives one event per rejected cart operation.
const TopicCartNotification = "ecommerce.cart.notification"

// Publisher publishes events to a topic. *pkgkafka.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// NotificationData is the payload of a cart notification event.
type NotificationData struct {
	SessionID string `json:"session_id"`
	domain.Notification
}

// DefaultQueueSize bounds the notifications waiting to be published.
const DefaultQueueSize = 256

var droppedNotifications = promauto.NewCounter(prometheus.CounterOpts{
	Name: "cart_notifications_dropped_total",
	Help: "Cart notifications dropped because the publish queue was full or closed.",
})

type queuedEvent struct {
	ctx   context.Context
	event *pkgkafka.Event
	kind  domain.Kind
}

// Kafka publishes notifications as events from a single background worker.
// Notify only enqueues, so a slow or unreachable broker never delays a cart
// operation; when the queue is full the notification is dropped and counted.
type Kafka struct {
	publisher Publisher
	logger    *slog.Logger
	timeout   time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan queuedEvent
	done   chan struct{}
}

// NewKafka creates a Kafka notifier and starts its worker. Each publish is
// bounded by timeout. Close stops the worker.
func NewKafka(p Publisher, l *slog.Logger, timeout time.Duration) *Kafka {
	return NewKafkaWithQueue(p, l, timeout, DefaultQueueSize)
}

// NewKafkaWithQueue is NewKafka with an explicit queue size.
func NewKafkaWithQueue(p Publisher, l *slog.Logger, timeout time.Duration, size int) *Kafka {
	if size < 1 {
		size = 1
	}
	k := &Kafka{
		publisher: p,
		logger:    l,
		timeout:   timeout,
		queue:     make(chan queuedEvent, size),
		done:      make(chan struct{}),
	}
	go k.run()
	return k
}

func (k *Kafka) Notify(ctx context.Context, n domain.Notification) {
	sessionID := logger.SessionIDFromContext(ctx)

	event, err := pkgkafka.NewCartEvent(ctx, TopicCartNotification, sessionID,
		NotificationData{SessionID: sessionID, Notification: n})
	if err != nil {
		k.logger.ErrorContext(ctx, "create cart notification event", slog.String("error", err.Error()))
		return
	}

	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.closed {
		droppedNotifications.Inc()
		return
	}
	select {
	case k.queue <- queuedEvent{ctx: context.WithoutCancel(ctx), event: event, kind: n.Kind}:
	default:
		droppedNotifications.Inc()
		k.logger.WarnContext(ctx, "cart notification queue full, dropping",
			slog.String("kind", string(n.Kind)),
		)
	}
}

func (k *Kafka) run() {
	defer close(k.done)
	for q := range k.queue {
		k.publish(q)
	}
}

func (k *Kafka) publish(q queuedEvent) {
	ctx := q.ctx
	if k.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, k.timeout)
		defer cancel()
	}

	if err := k.publisher.Publish(ctx, TopicCartNotification, q.event); err != nil {
		k.logger.WarnContext(ctx, "publish cart notification",
			slog.String("error", err.Error()),
			slog.String("kind", string(q.kind)),
		)
	}
}

// Close stops accepting notifications and waits until the queued ones are
// published or ctx is done.
func (k *Kafka) Close(ctx context.Context) error {
	k.mu.Lock()
	if !k.closed {
		k.closed = true
		close(k.queue)
	}
	k.mu.Unlock()

	select {
	case <-k.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

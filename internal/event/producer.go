// Package event publishes cart change events.
package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/utafrali/shopcart/internal/domain"
	pkgkafka "github.com/utafrali/shopcart/pkg/kafka"
)

// TopicCartUpdated receives the full cart after each commit.
const TopicCartUpdated = "ecommerce.cart.updated"

// Publisher publishes events to a topic. *pkgkafka.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// CartUpdatedData is the payload for a cart.updated event.
type CartUpdatedData struct {
	SessionID string          `json:"session_id"`
	Lines     []CartLineData  `json:"lines"`
	ItemCount int             `json:"item_count"`
	Total     decimal.Decimal `json:"total"`
}

// CartLineData is a line within cart events.
type CartLineData struct {
	ProductID int64           `json:"product_id"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Amount    int             `json:"amount"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// Producer publishes cart domain events.
type Producer struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewProducer creates a cart event producer.
func NewProducer(p Publisher, logger *slog.Logger) *Producer {
	return &Producer{publisher: p, logger: logger}
}

// PublishCartUpdated publishes a cart.updated event for a session.
func (p *Producer) PublishCartUpdated(ctx context.Context, sessionID string, cart domain.Cart) error {
	lines := make([]CartLineData, len(cart))
	for i, l := range cart {
		lines[i] = CartLineData{
			ProductID: l.ProductID,
			Title:     l.Title,
			Price:     l.Price,
			Amount:    l.Amount,
			Subtotal:  l.Subtotal(),
		}
	}

	data := CartUpdatedData{
		SessionID: sessionID,
		Lines:     lines,
		ItemCount: cart.ItemCount(),
		Total:     cart.Total(),
	}

	event, err := pkgkafka.NewCartEvent(ctx, TopicCartUpdated, sessionID, data)
	if err != nil {
		return fmt.Errorf("create cart.updated event: %w", err)
	}

	if err := p.publisher.Publish(ctx, TopicCartUpdated, event); err != nil {
		return fmt.Errorf("publish cart.updated event: %w", err)
	}

	p.logger.DebugContext(ctx, "published cart.updated event",
		slog.String("session_id", sessionID),
		slog.Int("item_count", data.ItemCount),
	)
	return nil
}

// Watchable is a source of cart snapshots. *engine.Engine satisfies it.
type Watchable interface {
	Watch(ctx context.Context) <-chan domain.Cart
}

// Follow publishes a cart.updated event for every cart w delivers after the
// first, which is the cart as it was when following started. It returns
// when the watch channel closes.
func (p *Producer) Follow(ctx context.Context, sessionID string, w Watchable) {
	ch := w.Watch(ctx)
	if _, ok := <-ch; !ok {
		return
	}
	for cart := range ch {
		if err := p.PublishCartUpdated(context.WithoutCancel(ctx), sessionID, cart); err != nil {
			p.logger.WarnContext(ctx, "cart event not published",
				slog.String("session_id", sessionID),
				slog.String("error", err.Error()),
			)
		}
	}
}

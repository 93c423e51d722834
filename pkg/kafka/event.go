package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/shopcart/pkg/logger"
)

// Envelope constants shared by every cart event.
const (
	AggregateTypeCart = "cart"
	SourceCartService = "cart-service"
	EnvelopeVersion   = 1
)

// ErrUnsupportedVersion is returned when decoding an envelope written by a
// newer producer.
var ErrUnsupportedVersion = errors.New("unsupported event envelope version")

// Event is the envelope of every message the cart service publishes. The
// aggregate is always a session's cart, keyed by session ID.
type Event struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	Version       int             `json:"version"`
	Timestamp     time.Time       `json:"timestamp"`
	Source        string          `json:"source"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Data          json.RawMessage `json:"data"`
}

// NewCartEvent creates a cart event for sessionID. The correlation ID of the
// request that caused it is taken from ctx.
func NewCartEvent(ctx context.Context, eventType, sessionID string, data any) (*Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s data: %w", eventType, err)
	}

	return &Event{
		EventID:       uuid.New().String(),
		EventType:     eventType,
		AggregateID:   sessionID,
		AggregateType: AggregateTypeCart,
		Version:       EnvelopeVersion,
		Timestamp:     time.Now().UTC(),
		Source:        SourceCartService,
		CorrelationID: logger.CorrelationIDFromContext(ctx),
		Data:          raw,
	}, nil
}

// Marshal serializes the event to JSON bytes.
func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalEvent decodes an envelope, rejecting versions this package does
// not understand.
func UnmarshalEvent(data []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	if event.Version > EnvelopeVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, event.Version)
	}
	return &event, nil
}

// UnmarshalData decodes the payload into target.
func (e *Event) UnmarshalData(target any) error {
	if err := json.Unmarshal(e.Data, target); err != nil {
		return fmt.Errorf("unmarshal %s data: %w", e.EventType, err)
	}
	return nil
}

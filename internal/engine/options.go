package engine

import (
	"log/slog"
	"time"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithNotifier sets where failure notifications go. The default discards them.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		if n != nil {
			e.notifier = n
		}
	}
}

// WithInventoryTimeout bounds each inventory call.
func WithInventoryTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.inventoryTimeout = d
		}
	}
}

// WithStoreTimeout bounds each store read and write.
func WithStoreTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.storeTimeout = d
		}
	}
}

// WithProductSerialization makes operations on the same product run one at a
// time, and applies each commit to the latest cart rather than to the
// snapshot the operation started from. Without it, two concurrent operations
// read the same cart and the later commit replaces the earlier one.
func WithProductSerialization() Option {
	return func(e *Engine) {
		e.serialize = true
	}
}

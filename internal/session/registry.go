// Package session owns one cart engine per shopping session.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/utafrali/shopcart/internal/engine"
	apperrors "github.com/utafrali/shopcart/pkg/errors"
)

var activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "cart_sessions_active",
	Help: "Sessions with a loaded cart engine.",
})

// Factory builds the engine for a session, loading its cart from the store.
type Factory func(ctx context.Context, sessionID string) (*engine.Engine, error)

type entry struct {
	once     sync.Once
	engine   *engine.Engine
	err      error
	lastUsed time.Time
	// holds counts long-lived requests, such as event streams, that keep
	// the session in use between Gets.
	holds int
}

// Registry lazily creates engines, hands every request of a session the same
// engine, and closes engines that stay idle longer than the TTL. Closing an
// engine does not touch its stored cart; the next request reloads it.
type Registry struct {
	factory Factory
	ttl     time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

// NewRegistry creates a registry. A ttl of zero disables eviction.
func NewRegistry(factory Factory, ttl time.Duration, logger *slog.Logger) *Registry {
	return &Registry{
		factory: factory,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

// NewSessionID returns a fresh session identifier.
func NewSessionID() string {
	return uuid.New().String()
}

// Get returns the engine for sessionID, creating it on first use.
func (r *Registry) Get(ctx context.Context, sessionID string) (*engine.Engine, error) {
	if _, err := uuid.Parse(sessionID); err != nil {
		return nil, apperrors.InvalidInput("session id must be a UUID")
	}

	r.mu.Lock()
	e, ok := r.entries[sessionID]
	if !ok {
		e = &entry{}
		r.entries[sessionID] = e
	}
	e.lastUsed = r.now()
	r.mu.Unlock()

	e.once.Do(func() {
		e.engine, e.err = r.factory(context.WithoutCancel(ctx), sessionID)
		if e.err == nil {
			activeSessions.Inc()
		}
	})
	if e.err != nil {
		r.mu.Lock()
		if r.entries[sessionID] == e {
			delete(r.entries, sessionID)
		}
		r.mu.Unlock()
		return nil, apperrors.ServiceUnavailable("cart store is unavailable")
	}
	return e.engine, nil
}

// Hold marks an already loaded session as in use until the returned release
// function is called. Held sessions are never evicted as idle. Holding an
// unknown session is a no-op.
func (r *Registry) Hold(sessionID string) (release func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sessionID]
	if !ok {
		return func() {}
	}
	e.holds++
	e.lastUsed = r.now()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			e.holds--
			e.lastUsed = r.now()
		})
	}
}

// Len returns the number of sessions currently held.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// EvictIdle closes engines unused for longer than the TTL and returns how
// many were evicted.
func (r *Registry) EvictIdle() int {
	if r.ttl <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	var stale []*entry
	for id, e := range r.entries {
		if e.holds == 0 && e.lastUsed.Before(cutoff) {
			stale = append(stale, e)
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()

	for _, e := range stale {
		r.closeEntry(e)
	}
	return len(stale)
}

// Run evicts idle sessions every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.EvictIdle(); n > 0 {
				r.logger.InfoContext(ctx, "evicted idle cart sessions", slog.Int("count", n))
			}
		}
	}
}

// Close closes every engine.
func (r *Registry) Close() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	for _, e := range entries {
		r.closeEntry(e)
	}
}

func (r *Registry) closeEntry(e *entry) {
	// Wait for a creation still in flight.
	e.once.Do(func() {})
	if e.engine != nil {
		e.engine.Close()
		activeSessions.Dec()
	}
}

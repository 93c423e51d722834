package engine

import (
	"context"

	"github.com/utafrali/shopcart/internal/domain"
)

type watcher struct {
	ch   chan domain.Cart
	stop func() bool
}

// Watch returns a channel that receives the current cart immediately and
// then the latest cart after each commit. A slow reader sees the newest cart
// rather than every intermediate one. The channel is closed when ctx is done
// or the engine is closed.
func (e *Engine) Watch(ctx context.Context) <-chan domain.Cart {
	w := &watcher{ch: make(chan domain.Cart, 1)}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || ctx.Err() != nil {
		close(w.ch)
		return w.ch
	}

	w.ch <- e.cart.Clone()
	e.watchers[w] = struct{}{}
	w.stop = context.AfterFunc(ctx, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if _, ok := e.watchers[w]; ok {
			e.dropLocked(w)
		}
	})
	return w.ch
}

// Watchers returns the number of open watch channels.
func (e *Engine) Watchers() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.watchers)
}

// broadcastLocked replaces whatever each watcher has not read yet with c.
// e.mu must be held for writing, which makes it the only sender.
func (e *Engine) broadcastLocked(c domain.Cart) {
	for w := range e.watchers {
		select {
		case <-w.ch:
		default:
		}
		w.ch <- c.Clone()
	}
}

func (e *Engine) dropLocked(w *watcher) {
	delete(e.watchers, w)
	if w.stop != nil {
		w.stop()
	}
	close(w.ch)
}

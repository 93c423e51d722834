package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/utafrali/shopcart/pkg/middleware"
)

// KeepAliveInterval is how often an idle event stream sends a comment line.
var KeepAliveInterval = 25 * time.Second

// Events handles GET /api/v1/cart/events. It streams the cart as
// server-sent events: once on connect and again after every change.
func (h *CartHandler) Events(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	eng := engineFromContext(r.Context())
	ctx := r.Context()

	// An open stream counts as session activity for its whole lifetime.
	defer h.sessions.Hold(r.Header.Get(middleware.SessionHeader))()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.logger.WarnContext(ctx, "event stream not flushable", slog.String("error", err.Error()))
		return
	}

	keepAlive := time.NewTicker(KeepAliveInterval)
	defer keepAlive.Stop()

	carts := eng.Watch(ctx)
	for {
		select {
		case c, ok := <-carts:
			if !ok {
				return
			}
			data, err := json.Marshal(NewCartView(c))
			if err != nil {
				h.logger.ErrorContext(ctx, "encode cart event", slog.String("error", err.Error()))
				return
			}
			if _, err := fmt.Fprintf(w, "event: cart\ndata: %s\n\n", data); err != nil {
				return
			}
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

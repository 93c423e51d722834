package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/utafrali/shopcart/internal/engine"
	apperrors "github.com/utafrali/shopcart/pkg/errors"
	"github.com/utafrali/shopcart/pkg/httputil"
	"github.com/utafrali/shopcart/pkg/logger"
	"github.com/utafrali/shopcart/pkg/middleware"
)

type contextKey string

const engineKey contextKey = "cart_engine"

// Sessions resolves a session id to its cart engine.
type Sessions interface {
	Get(ctx context.Context, sessionID string) (*engine.Engine, error)
	// Hold keeps a loaded session from idle eviction until release is called.
	Hold(sessionID string) (release func())
}

// SessionFromHeader resolves the X-Session-ID header to the session's engine
// and stores it in the request context. Requests without the header are
// rejected with 400.
func (h *CartHandler) SessionFromHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.Header.Get(middleware.SessionHeader)
		if sessionID == "" {
			httputil.WriteError(w, r, apperrors.InvalidInput(middleware.SessionHeader+" header is required"), h.logger)
			return
		}

		eng, err := h.sessions.Get(r.Context(), sessionID)
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}

		ctx := logger.WithSessionID(r.Context(), sessionID)
		ctx = context.WithValue(ctx, engineKey, eng)
		w.Header().Set(middleware.SessionHeader, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func engineFromContext(ctx context.Context) *engine.Engine {
	eng, _ := ctx.Value(engineKey).(*engine.Engine)
	return eng
}

// ContentTypeJSON enforces that requests with a body have Content-Type: application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
					Error: &httputil.ErrorResponse{
						Code:    "UNSUPPORTED_MEDIA_TYPE",
						Message: "Content-Type must be application/json",
					},
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

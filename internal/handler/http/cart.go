// Package http exposes the cart engine over a JSON HTTP API.
package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/utafrali/shopcart/internal/domain"
	"github.com/utafrali/shopcart/internal/notify"
	"github.com/utafrali/shopcart/internal/session"
	apperrors "github.com/utafrali/shopcart/pkg/errors"
	"github.com/utafrali/shopcart/pkg/httputil"
	"github.com/utafrali/shopcart/pkg/middleware"
	"github.com/utafrali/shopcart/pkg/validator"
)

// CartHandler handles HTTP requests for cart endpoints.
type CartHandler struct {
	sessions Sessions
	logger   *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(sessions Sessions, logger *slog.Logger) *CartHandler {
	return &CartHandler{sessions: sessions, logger: logger}
}

// --- Request DTOs ---

// AddProductRequest is the JSON request body for adding a product.
type AddProductRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
}

// UpdateAmountRequest is the JSON request body for setting a line amount.
// Amounts of zero or less are accepted and ignored by the cart.
type UpdateAmountRequest struct {
	Amount *int `json:"amount" validate:"required"`
}

// --- Response DTOs ---

// CartLineView is a cart line with its subtotal.
type CartLineView struct {
	ProductID int64           `json:"product_id"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image"`
	Amount    int             `json:"amount"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// CartView is the cart with derived totals.
type CartView struct {
	Lines     []CartLineView  `json:"lines"`
	ItemCount int             `json:"item_count"`
	Total     decimal.Decimal `json:"total"`
}

// MutationView is returned by every cart mutation. Notifications explain
// why the cart may be unchanged.
type MutationView struct {
	Cart          CartView              `json:"cart"`
	Notifications []domain.Notification `json:"notifications"`
}

// SessionView is returned when a session is created.
type SessionView struct {
	SessionID string   `json:"session_id"`
	Cart      CartView `json:"cart"`
}

// NewCartView converts a cart to its API representation.
func NewCartView(c domain.Cart) CartView {
	lines := make([]CartLineView, len(c))
	for i, l := range c {
		lines[i] = CartLineView{
			ProductID: l.ProductID,
			Title:     l.Title,
			Price:     l.Price,
			Image:     l.Image,
			Amount:    l.Amount,
			Subtotal:  l.Subtotal(),
		}
	}
	return CartView{Lines: lines, ItemCount: c.ItemCount(), Total: c.Total()}
}

// --- Handlers ---

// CreateSession handles POST /api/v1/sessions
func (h *CartHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	sessionID := session.NewSessionID()
	eng, err := h.sessions.Get(r.Context(), sessionID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.Header().Set(middleware.SessionHeader, sessionID)
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{
		Data: SessionView{SessionID: sessionID, Cart: NewCartView(eng.Cart())},
	})
}

// GetCart handles GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	eng := engineFromContext(r.Context())
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: NewCartView(eng.Cart())})
}

// GetAmounts handles GET /api/v1/cart/amounts
func (h *CartHandler) GetAmounts(w http.ResponseWriter, r *http.Request) {
	eng := engineFromContext(r.Context())
	amounts := make(map[string]int)
	for id, n := range eng.Cart().Amounts() {
		amounts[strconv.FormatInt(id, 10)] = n
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: amounts})
}

// AddProduct handles POST /api/v1/cart/items
func (h *CartHandler) AddProduct(w http.ResponseWriter, r *http.Request) {
	var req AddProductRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	eng := engineFromContext(r.Context())
	ctx, inbox := notify.WithInbox(r.Context())
	eng.AddProduct(ctx, req.ProductID)

	h.writeMutation(w, eng.Cart(), inbox)
}

// UpdateProductAmount handles PUT /api/v1/cart/items/{productId}
func (h *CartHandler) UpdateProductAmount(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.productID(w, r)
	if !ok {
		return
	}

	var req UpdateAmountRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	eng := engineFromContext(r.Context())
	ctx, inbox := notify.WithInbox(r.Context())
	eng.UpdateProductAmount(ctx, productID, *req.Amount)

	h.writeMutation(w, eng.Cart(), inbox)
}

// RemoveProduct handles DELETE /api/v1/cart/items/{productId}
func (h *CartHandler) RemoveProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.productID(w, r)
	if !ok {
		return
	}

	eng := engineFromContext(r.Context())
	ctx, inbox := notify.WithInbox(r.Context())
	eng.RemoveProduct(ctx, productID)

	h.writeMutation(w, eng.Cart(), inbox)
}

func (h *CartHandler) productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productId"), 10, 64)
	if err != nil || id <= 0 {
		httputil.WriteError(w, r, apperrors.InvalidInput("productId must be a positive integer"), h.logger)
		return 0, false
	}
	return id, true
}

func (h *CartHandler) writeMutation(w http.ResponseWriter, c domain.Cart, inbox *notify.Inbox) {
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: MutationView{Cart: NewCartView(c), Notifications: inbox.Drain()},
	})
}

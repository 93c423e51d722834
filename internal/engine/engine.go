// Package engine implements the cart engine: the in-memory cart of a single
// session, its stock-validated mutations, and write-through persistence.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/shopcart/internal/domain"
	apperrors "github.com/utafrali/shopcart/pkg/errors"
)

// InventoryClient looks up stock and catalog metadata for products.
type InventoryClient interface {
	GetStock(ctx context.Context, productID int64) (domain.Stock, error)
	GetProduct(ctx context.Context, productID int64) (domain.Product, error)
}

// Store is a durable key-value string store.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Notifier receives notifications for failed operations. Implementations
// must not block for long and have no way to report errors back.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification)
}

const (
	DefaultInventoryTimeout = 5 * time.Second
	DefaultStoreTimeout     = 3 * time.Second
)

// Engine owns the cart of one session.
//
// Each operation reads the current cart, validates it against the inventory,
// and commits a new cart value. Operations never return errors; failures
// leave the cart unchanged and produce exactly one notification.
type Engine struct {
	key       string
	inventory InventoryClient
	store     Store
	notifier  Notifier
	logger    *slog.Logger
	tracer    trace.Tracer

	inventoryTimeout time.Duration
	storeTimeout     time.Duration
	serialize        bool
	productLocks     *keyedMutex

	mu       sync.RWMutex
	cart     domain.Cart
	watchers map[*watcher]struct{}
	closed   bool

	// persistMu orders store writes; lastPersisted is guarded by it.
	persistMu     sync.Mutex
	lastPersisted domain.Cart
}

// New loads the cart stored under key and returns an engine for it. A missing
// or undecodable entry yields an empty cart. Only a failing store read is
// reported as an error.
func New(ctx context.Context, key string, inventory InventoryClient, store Store, opts ...Option) (*Engine, error) {
	e := &Engine{
		key:              key,
		inventory:        inventory,
		store:            store,
		notifier:         nopNotifier{},
		logger:           slog.Default(),
		tracer:           otel.Tracer("github.com/utafrali/shopcart/internal/engine"),
		inventoryTimeout: DefaultInventoryTimeout,
		storeTimeout:     DefaultStoreTimeout,
		productLocks:     newKeyedMutex(),
		watchers:         make(map[*watcher]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(slog.String("cart_key", key))

	cart, err := e.load(ctx)
	if err != nil {
		return nil, err
	}
	e.cart = cart
	e.lastPersisted = cart
	return e, nil
}

func (e *Engine) load(ctx context.Context) (domain.Cart, error) {
	ctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()

	raw, found, err := e.store.Get(ctx, e.key)
	if err != nil {
		return nil, fmt.Errorf("load cart %q: %w", e.key, err)
	}
	if !found {
		return domain.Cart{}, nil
	}

	cart, err := Decode(raw)
	if err != nil {
		e.logger.WarnContext(ctx, "discarding undecodable stored cart",
			slog.String("error", err.Error()),
		)
		return domain.Cart{}, nil
	}
	return cart, nil
}

// Key returns the store key the cart is persisted under.
func (e *Engine) Key() string {
	return e.key
}

// Cart returns a snapshot of the current cart.
func (e *Engine) Cart() domain.Cart {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cart.Clone()
}

// AddProduct increments the amount of productID by one, or appends a new
// line with amount one, as long as the result does not exceed stock.
func (e *Engine) AddProduct(ctx context.Context, productID int64) {
	e.run(ctx, domain.OpAdd, productID, func(ctx context.Context) error {
		return e.addProduct(ctx, productID)
	})
}

// RemoveProduct removes the line for productID.
func (e *Engine) RemoveProduct(ctx context.Context, productID int64) {
	e.run(ctx, domain.OpRemove, productID, func(ctx context.Context) error {
		return e.removeProduct(ctx, productID)
	})
}

// UpdateProductAmount sets the amount of an existing line. Amounts of zero
// or less are ignored.
func (e *Engine) UpdateProductAmount(ctx context.Context, productID int64, amount int) {
	if amount <= 0 {
		operationsTotal.WithLabelValues(string(domain.OpUpdate), resultIgnored).Inc()
		return
	}
	e.run(ctx, domain.OpUpdate, productID, func(ctx context.Context) error {
		return e.updateProductAmount(ctx, productID, amount)
	})
}

func (e *Engine) addProduct(ctx context.Context, productID int64) error {
	snapshot := e.snapshot()
	current, _, found := snapshot.Find(productID)

	stock, err := e.stock(ctx, productID)
	if err != nil {
		return err
	}

	desired := current.Amount + 1
	if desired > stock.Amount {
		return apperrors.OutOfStock(fmt.Sprint(productID), desired, stock.Amount)
	}

	if found {
		return e.commit(ctx, snapshot, func(c domain.Cart) domain.Cart {
			return c.WithAmount(productID, desired)
		})
	}

	product, err := e.product(ctx, productID)
	if err != nil {
		return err
	}
	line := domain.NewLine(product, 1)
	line.ProductID = productID
	return e.commit(ctx, snapshot, func(c domain.Cart) domain.Cart {
		return c.WithLine(line)
	})
}

func (e *Engine) removeProduct(ctx context.Context, productID int64) error {
	snapshot := e.snapshot()
	if !snapshot.Contains(productID) {
		return apperrors.NotFound("cart line", fmt.Sprint(productID))
	}
	return e.commit(ctx, snapshot, func(c domain.Cart) domain.Cart {
		return c.Without(productID)
	})
}

func (e *Engine) updateProductAmount(ctx context.Context, productID int64, amount int) error {
	snapshot := e.snapshot()

	stock, err := e.stock(ctx, productID)
	if err != nil {
		return err
	}
	if amount > stock.Amount {
		return apperrors.OutOfStock(fmt.Sprint(productID), amount, stock.Amount)
	}

	if !snapshot.Contains(productID) {
		return apperrors.NotFound("cart line", fmt.Sprint(productID))
	}
	return e.commit(ctx, snapshot, func(c domain.Cart) domain.Cart {
		return c.WithAmount(productID, amount)
	})
}

// run executes one operation: it detaches the caller's cancellation, traces
// and counts the operation, and turns a failure into a notification.
func (e *Engine) run(ctx context.Context, op domain.Operation, productID int64, fn func(context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	ctx, span := e.tracer.Start(ctx, "cart."+string(op),
		trace.WithAttributes(
			attribute.String("cart.key", e.key),
			attribute.Int64("cart.product_id", productID),
		),
	)
	defer span.End()

	if e.serialize {
		unlock := e.productLocks.Lock(productID)
		defer unlock()
	}

	err := fn(ctx)
	if err == nil {
		operationsTotal.WithLabelValues(string(op), resultOK).Inc()
		return
	}

	kind := Classify(op, err)
	operationsTotal.WithLabelValues(string(op), string(kind)).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, string(kind))

	e.logger.InfoContext(ctx, "cart operation rejected",
		slog.String("operation", string(op)),
		slog.Int64("product_id", productID),
		slog.String("kind", string(kind)),
		slog.String("error", err.Error()),
	)

	e.notify(ctx, domain.Notification{
		Kind:      kind,
		Operation: op,
		ProductID: productID,
		Message:   domain.Message(op, kind),
	})
}

func (e *Engine) notify(ctx context.Context, n domain.Notification) {
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.ErrorContext(ctx, "notifier panicked", slog.Any("panic", rec))
		}
	}()
	e.notifier.Notify(ctx, n)
}

func (e *Engine) stock(ctx context.Context, productID int64) (domain.Stock, error) {
	ctx, cancel := context.WithTimeout(ctx, e.inventoryTimeout)
	defer cancel()

	stock, err := e.inventory.GetStock(ctx, productID)
	if err != nil {
		return domain.Stock{}, fmt.Errorf("%w: stock of product %d: %w", ErrInventory, productID, err)
	}
	return stock, nil
}

func (e *Engine) product(ctx context.Context, productID int64) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, e.inventoryTimeout)
	defer cancel()

	product, err := e.inventory.GetProduct(ctx, productID)
	if err != nil {
		return domain.Product{}, fmt.Errorf("%w: product %d: %w", ErrInventory, productID, err)
	}
	return product, nil
}

func (e *Engine) snapshot() domain.Cart {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cart
}

// commit applies change and publishes the result. By default change is
// applied to the snapshot the operation started from, so a concurrent commit
// made in between is overwritten. With product serialization it is applied
// to the current cart instead.
func (e *Engine) commit(ctx context.Context, snapshot domain.Cart, change func(domain.Cart) domain.Cart) error {
	e.mu.Lock()
	base := snapshot
	if e.serialize {
		base = e.cart
	}
	next := change(base)
	if err := next.Validate(); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("commit: %w", err)
	}
	e.cart = next
	e.broadcastLocked(next)
	e.mu.Unlock()

	e.persist(ctx)
	return nil
}

// persist writes the current cart if it differs from the last persisted one.
// Failures are logged and counted; the cart in memory is kept and the next
// differing commit writes again.
func (e *Engine) persist(ctx context.Context) {
	e.persistMu.Lock()
	defer e.persistMu.Unlock()

	current := e.snapshot()
	if current.Equal(e.lastPersisted) {
		storeWritesTotal.WithLabelValues(resultSkipped).Inc()
		return
	}

	raw, err := Encode(current)
	if err != nil {
		storeWritesTotal.WithLabelValues(resultError).Inc()
		e.logger.ErrorContext(ctx, "encode cart", slog.String("error", err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()

	if err := e.store.Set(ctx, e.key, raw); err != nil {
		storeWritesTotal.WithLabelValues(resultError).Inc()
		e.logger.ErrorContext(ctx, "persist cart",
			slog.String("error", err.Error()),
			slog.Int("lines", len(current)),
		)
		return
	}

	storeWritesTotal.WithLabelValues(resultOK).Inc()
	e.lastPersisted = current
}

// Close closes every watch channel. Operations keep working after Close but
// can no longer be watched.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	for w := range e.watchers {
		e.dropLocked(w)
	}
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, domain.Notification) {}

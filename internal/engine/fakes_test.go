package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/utafrali/shopcart/internal/domain"
)

// --- Mock inventory (call protocol assertions) ---

type mockInventory struct {
	mock.Mock
}

func (m *mockInventory) GetStock(ctx context.Context, productID int64) (domain.Stock, error) {
	args := m.Called(ctx, productID)
	return args.Get(0).(domain.Stock), args.Error(1)
}

func (m *mockInventory) GetProduct(ctx context.Context, productID int64) (domain.Product, error) {
	args := m.Called(ctx, productID)
	return args.Get(0).(domain.Product), args.Error(1)
}

// --- Stub inventory (scenarios and concurrency) ---

type stubInventory struct {
	mu         sync.Mutex
	stock      map[int64]int
	stockErr   error
	productErr error
	// gate, when set, is entered by every GetStock call before it answers.
	gate *sync.WaitGroup
	// block makes GetStock wait for ctx to finish.
	block bool
}

func newStubInventory(stock map[int64]int) *stubInventory {
	return &stubInventory{stock: stock}
}

func (s *stubInventory) GetStock(ctx context.Context, productID int64) (domain.Stock, error) {
	if err := ctx.Err(); err != nil {
		return domain.Stock{}, err
	}
	if s.gate != nil {
		s.gate.Done()
		s.gate.Wait()
	}
	if s.block {
		<-ctx.Done()
		return domain.Stock{}, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stockErr != nil {
		return domain.Stock{}, s.stockErr
	}
	return domain.Stock{ID: productID, Amount: s.stock[productID]}, nil
}

func (s *stubInventory) GetProduct(ctx context.Context, productID int64) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.productErr != nil {
		return domain.Product{}, s.productErr
	}
	return catalogProduct(productID), nil
}

func (s *stubInventory) setStock(id int64, amount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stock[id] = amount
}

func catalogProduct(id int64) domain.Product {
	return domain.Product{
		ID:    id,
		Title: "Tênis de Caminhada Leve Confortável",
		Price: decimal.RequireFromString("179.9"),
		Image: "https://cdn.example.com/sneaker.jpg",
	}
}

// --- Recording store ---

type recordingStore struct {
	mu     sync.Mutex
	data   map[string]string
	sets   int
	getErr error
	setErr error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{data: make(map[string]string)}
}

func (s *recordingStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return "", false, s.getErr
	}
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *recordingStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.sets++
	s.data[key] = value
	return nil
}

func (s *recordingStore) setCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sets
}

func (s *recordingStore) failWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setErr = err
}

func (s *recordingStore) value(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

// --- Recording notifier ---

type recordingNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, note domain.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, note)
}

func (n *recordingNotifier) all() []domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.Notification(nil), n.sent...)
}

type panickingNotifier struct{}

func (panickingNotifier) Notify(context.Context, domain.Notification) { panic("toast failed") }

var errBoom = errors.New("boom")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Package postgres stores carts in a PostgreSQL key-value table.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/shopcart/pkg/database"
)

const (
	getQuery = `SELECT value FROM cart_store WHERE key = $1`

	setQuery = `
		INSERT INTO cart_store (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = NOW()`
)

// Store implements store.Store on the cart_store table.
type Store struct {
	pool   database.Pool
	logger *slog.Logger
	close  func()
}

// New creates a store on pool. closeFn, if not nil, is called by Close.
func New(pool database.Pool, logger *slog.Logger, closeFn func()) *Store {
	return &Store{pool: pool, logger: logger, close: closeFn}
}

// Get retrieves the value stored under key.
func (s *Store) Get(ctx context.Context, key string) (value string, found bool, err error) {
	ctx, end := database.TraceQuery(ctx, s.logger, "cart_store.get", getQuery)
	defer func() { end(err) }()

	if err := s.pool.QueryRow(ctx, getQuery, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("select cart_store %s: %w", key, err)
	}
	return value, true, nil
}

// Set upserts value under key.
func (s *Store) Set(ctx context.Context, key, value string) (err error) {
	ctx, end := database.TraceQuery(ctx, s.logger, "cart_store.set", setQuery)
	defer func() { end(err) }()

	if _, err := s.pool.Exec(ctx, setQuery, key, value); err != nil {
		return fmt.Errorf("upsert cart_store %s: %w", key, err)
	}
	return nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}

package postgres

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const key = "@shopcart:cart:sess-1"

func newTestStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return New(mock, slog.New(slog.NewTextHandler(io.Discard, nil)), nil), mock
}

func TestStore_Get_Found(t *testing.T) {
	s, mock := newTestStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(getQuery)).
		WithArgs(key).
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow(`[{"id":1,"amount":2}]`))

	v, found, err := s.Get(context.Background(), key)

	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `[{"id":1,"amount":2}]`, v)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Get_Missing(t *testing.T) {
	s, mock := newTestStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(getQuery)).
		WithArgs(key).
		WillReturnError(pgx.ErrNoRows)

	_, found, err := s.Get(context.Background(), key)

	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Get_Error(t *testing.T) {
	s, mock := newTestStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(getQuery)).
		WithArgs(key).
		WillReturnError(errors.New("connection reset"))

	_, _, err := s.Get(context.Background(), key)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestStore_Set_Upserts(t *testing.T) {
	s, mock := newTestStore(t)
	mock.ExpectExec(regexp.QuoteMeta(setQuery)).
		WithArgs(key, "[]").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.Set(context.Background(), key, "[]"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Set_Error(t *testing.T) {
	s, mock := newTestStore(t)
	mock.ExpectExec(regexp.QuoteMeta(setQuery)).
		WithArgs(key, "[]").
		WillReturnError(errors.New("read-only transaction"))

	err := s.Set(context.Background(), key, "[]")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert cart_store")
}

func TestStore_PingAndClose(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	closed := false
	s := New(mock, slog.New(slog.NewTextHandler(io.Discard, nil)), func() { closed = true })

	mock.ExpectPing()
	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Close())

	assert.True(t, closed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/shopcart/internal/config"
	"github.com/utafrali/shopcart/internal/store"
	redisstore "github.com/utafrali/shopcart/internal/store/redis"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenStore_Memory(t *testing.T) {
	st, err := openStore(context.Background(), &config.Config{StoreBackend: store.BackendMemory}, discardLogger())
	require.NoError(t, err)
	assert.IsType(t, &store.Memory{}, st)
}

func TestOpenStore_Redis(t *testing.T) {
	mr := miniredis.RunT(t)

	st, err := openStore(context.Background(), &config.Config{
		StoreBackend: store.BackendRedis,
		RedisAddr:    mr.Addr(),
	}, discardLogger())
	require.NoError(t, err)
	defer st.Close()

	assert.IsType(t, &redisstore.Store{}, st)
	require.NoError(t, st.Set(context.Background(), "k", "v"))
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestOpenStore_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := openStore(context.Background(), &config.Config{
		StoreBackend: store.BackendRedis,
		RedisAddr:    addr,
	}, discardLogger())
	assert.ErrorContains(t, err, "connect to redis")
}

func TestOpenStore_UnknownBackend(t *testing.T) {
	_, err := openStore(context.Background(), &config.Config{StoreBackend: "etcd"}, discardLogger())
	assert.Error(t, err)
}

const defaultDuration = time.Second

func TestNewApp_MemoryBackend(t *testing.T) {
	cfg := &config.Config{
		Environment:          "test",
		HTTPPort:             18003,
		InventoryURL:         "http://localhost:3333",
		InventoryTimeout:     defaultDuration,
		InventoryRetries:     0,
		CBMaxRequests:        1,
		CBTimeout:            defaultDuration,
		CBWindow:             defaultDuration,
		CBMinRequests:        5,
		CBFailureRatio:       0.5,
		StoreBackend:         store.BackendMemory,
		StoreTimeout:         defaultDuration,
		SessionSweepInterval: defaultDuration,
	}

	a, err := NewApp(cfg, discardLogger())
	require.NoError(t, err)

	eng, err := a.registry.Get(context.Background(), "5f0c7f53-5e4c-4a8e-9a55-2f8b9e0b3b7a")
	require.NoError(t, err)
	assert.Empty(t, eng.Cart())

	require.NoError(t, a.Shutdown())
	assert.Equal(t, 0, a.registry.Len())
}

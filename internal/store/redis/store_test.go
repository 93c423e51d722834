package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, ttl), mr
}

const key = "@shopcart:cart:sess-1"

func TestStore_Get_Missing(t *testing.T) {
	s, _ := setupTestRedis(t, 0)

	v, found, err := s.Get(context.Background(), key)

	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, v)
}

func TestStore_SetThenGet(t *testing.T) {
	s, mr := setupTestRedis(t, 0)
	ctx := context.Background()
	raw := `[{"id":1,"title":"Tênis","price":"179.9","image":"a.jpg","amount":2}]`

	require.NoError(t, s.Set(ctx, key, raw))

	got, found, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, raw, got)

	stored, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, raw, stored)
	assert.Zero(t, mr.TTL(key))
}

func TestStore_SetRefreshesTTL(t *testing.T) {
	s, mr := setupTestRedis(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, key, "[]"))
	mr.FastForward(30 * time.Minute)
	require.NoError(t, s.Set(ctx, key, `[{"id":1,"amount":1}]`))

	assert.Equal(t, time.Hour, mr.TTL(key))

	mr.FastForward(2 * time.Hour)
	_, found, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_ConnectionError(t *testing.T) {
	s, mr := setupTestRedis(t, 0)
	mr.Close()
	ctx := context.Background()

	_, _, err := s.Get(ctx, key)
	assert.Error(t, err)
	assert.Error(t, s.Set(ctx, key, "[]"))
	assert.Error(t, s.Ping(ctx))
}

func TestStore_Ping(t *testing.T) {
	s, _ := setupTestRedis(t, 0)
	assert.NoError(t, s.Ping(context.Background()))
}

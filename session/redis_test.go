package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisTestStore(t *testing.T) (Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(context.Background(), sessionConfig(t, mr.Addr()))
	require.NoError(t, err)
	return store, mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, mr := newRedisTestStore(t)
	ctx := context.Background()

	s := &Session{
		ID:           "abc-123",
		UserID:       "u-1",
		Email:        "dj@example.com",
		AccessToken:  "at-1",
		RefreshToken: "rt-1",
		ExpiresAt:    time.Now().Add(time.Hour).UTC(),
	}
	require.NoError(t, store.Create(ctx, s))

	// Stored under a namespaced key with the configured TTL.
	key := "djvirtu:session:abc-123"
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Hour, mr.TTL(key))

	got, err := store.Get(ctx, "abc-123")
	require.NoError(t, err)
	assert.Equal(t, s.Email, got.Email)
	assert.Equal(t, s.AccessToken, got.AccessToken)
	assert.True(t, s.ExpiresAt.Equal(got.ExpiresAt))
}

func TestRedisStoreMissing(t *testing.T) {
	store, _ := newRedisTestStore(t)
	_, err := store.Get(context.Background(), "who")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestRedisStoreExpiry(t *testing.T) {
	store, mr := newRedisTestStore(t)
	ctx := context.Background()

	s := &Session{ID: "ttl-1", Email: "dj@example.com", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, store.Create(ctx, s))

	mr.FastForward(2 * time.Hour)

	_, err := store.Get(ctx, "ttl-1")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestRedisStoreDelete(t *testing.T) {
	store, mr := newRedisTestStore(t)
	ctx := context.Background()

	s := &Session{ID: "del-1", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, store.Create(ctx, s))
	require.NoError(t, store.Delete(ctx, "del-1"))

	assert.False(t, mr.Exists("djvirtu:session:del-1"))
	_, err := store.Get(ctx, "del-1")
	assert.ErrorIs(t, err, ErrNoSession)

	// Deleting again stays quiet.
	assert.NoError(t, store.Delete(ctx, "del-1"))
}

func TestNewRedisStoreUnreachable(t *testing.T) {
	_, err := NewRedisStore(context.Background(), sessionConfig(t, "127.0.0.1:1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect to redis")
}

package credentials

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis implements RedisClient over a map.
type fakeRedis struct {
	mu     sync.Mutex
	values map[string]string
	err    error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: make(map[string]string)}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	switch v := value.(type) {
	case []byte:
		f.values[key] = string(v)
	case string:
		f.values[key] = v
	}
	return redis.NewStatusResult("OK", nil)
}

func newTestRedisStore(t *testing.T) Store {
	t.Helper()
	return NewRedisStore(newFakeRedis(), "")
}

func TestRedisStore_KeyLayout(t *testing.T) {
	client := newFakeRedis()
	store := NewRedisStore(client, "test:")

	require.NoError(t, store.Upsert(context.Background(), Record{
		WorkspaceID: "w1",
		Platform:    PlatformGoogleAnalytics,
		AccessToken: "a",
		Status:      StatusConnected,
	}))

	_, ok := client.values["test:integration:google_analytics:w1"]
	assert.True(t, ok)
}

func TestRedisStore_BackendError(t *testing.T) {
	client := newFakeRedis()
	client.err = errors.New("connection refused")
	store := NewRedisStore(client, "")

	_, err := store.Get(context.Background(), "w1", PlatformGoogleAnalytics)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "connection refused")

	err = store.Clear(context.Background(), "w1", PlatformGoogleAnalytics)
	assert.Error(t, err)
}

func TestNewRedisClient(t *testing.T) {
	client, err := NewRedisClient("redis://localhost:6379/2")
	require.NoError(t, err)
	assert.Equal(t, 2, client.Options().DB)
	_ = client.Close()

	_, err = NewRedisClient("not a url")
	assert.Error(t, err)
}

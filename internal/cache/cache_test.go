package cache

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopNeverHits(t *testing.T) {
	var c Cache = Noop{}
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", map[string]int{"a": 1}))
	var out map[string]int
	hit, err := c.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.NoError(t, c.Delete(ctx, "k"))
}

func TestRedisCacheUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { client.Close() })

	c := NewRedisCache(client, time.Minute)
	ctx := context.Background()

	var out map[string]int
	hit, err := c.Get(ctx, "k", &out)
	assert.Error(t, err)
	assert.False(t, hit)
	assert.Error(t, c.Set(ctx, "k", 1))
	assert.NoError(t, c.Delete(ctx))
}

func TestNewRedisClientFailsFast(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := NewRedisClient(ctx, "127.0.0.1:1", "", 0)
	assert.Error(t, err)
}

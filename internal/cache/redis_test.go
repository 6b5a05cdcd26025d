package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	return &Cache{Db: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
}

type payload struct {
	Title string `json:"title"`
	Count int    `json:"count"`
}

func TestCache_SetGetInvalidate(t *testing.T) {
	c := newTestCache(t)

	in := payload{Title: "greeting", Count: 3}
	require.NoError(t, c.Set("conversation:abc", in, time.Hour))

	var out payload
	found, err := c.Get("conversation:abc", &out)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, in, out)

	require.NoError(t, c.Invalidate("conversation:abc"))

	found, err = c.Get("conversation:abc", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCache_GetMissing(t *testing.T) {
	c := newTestCache(t)

	var out payload
	found, err := c.Get("no-such-key", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCache_MarkProcessed(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	first, err := c.MarkProcessed(ctx, "evt_123", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	// Повторная доставка того же события.
	second, err := c.MarkProcessed(ctx, "evt_123", time.Hour)
	require.NoError(t, err)
	assert.False(t, second)

	other, err := c.MarkProcessed(ctx, "evt_456", time.Hour)
	require.NoError(t, err)
	assert.True(t, other)
}

func TestCache_ClearProcessed(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	first, err := c.MarkProcessed(ctx, "evt_123", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	// После снятия отметки событие снова считается новым.
	require.NoError(t, c.ClearProcessed(ctx, "evt_123"))

	again, err := c.MarkProcessed(ctx, "evt_123", time.Hour)
	require.NoError(t, err)
	assert.True(t, again)
}

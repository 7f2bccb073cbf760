package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRWMutexTTLCache(t *testing.T) {
	require := require.New(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewRWMutexTTLCache[string, int](time.Minute)
	c.Now = func() time.Time { return now }

	_, found := c.Put("a", 1)
	require.False(found)
	v, found := c.Get("a")
	require.True(found)
	require.Equal(1, v)

	prev, found := c.Put("a", 2)
	require.True(found)
	require.Equal(1, prev)

	now = now.Add(time.Minute)
	_, found = c.Get("a")
	require.False(found, "entries expire once the ttl has elapsed")

	_, _ = c.PutWithTTL("b", 3, time.Hour)
	require.Equal(1, c.Purge())
	v, found = c.Delete("b")
	require.True(found)
	require.Equal(3, v)
	require.Equal(0, c.data.Len())
}

func TestRWMutexTTLCacheDisabled(t *testing.T) {
	c := NewRWMutexTTLCache[string, int](0)
	_, _ = c.Put("a", 1)
	_, found := c.Get("a")
	require.False(t, found)
	require.Equal(t, 0, c.data.Len())
}

package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock returns a controllable now() func.
func fakeClock(start time.Time) (func() time.Time, func(time.Duration)) {
	now := start
	return func() time.Time { return now },
		func(d time.Duration) { now = now.Add(d) }
}

func TestTTLGetSet(t *testing.T) {
	now, _ := fakeClock(time.Unix(1000, 0))
	c := NewTTL[string, int](30*time.Second, 0).WithClock(now)

	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Set("a", 42)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestTTLExpiry(t *testing.T) {
	now, advance := fakeClock(time.Unix(1000, 0))
	c := NewTTL[string, int](30*time.Second, 0).WithClock(now)

	c.Set("a", 1)

	advance(29 * time.Second)
	_, ok := c.Get("a")
	assert.True(t, ok, "still live just before the TTL")

	advance(1 * time.Second)
	_, ok = c.Get("a")
	assert.False(t, ok, "expired at the TTL boundary")
	assert.Equal(t, 0, c.Len(), "expired entry dropped on read")
}

func TestTTLSameValueWithinWindow(t *testing.T) {
	now, advance := fakeClock(time.Unix(1000, 0))
	c := NewTTL[string, map[string]int](30*time.Second, 0).WithClock(now)

	m := map[string]int{"x": 1}
	c.Set("", m)

	advance(10 * time.Second)
	got, ok := c.Get("")
	require.True(t, ok)
	// Same map value, not a copy.
	m["y"] = 2
	assert.Len(t, got, 2)
}

func TestTTLSetRestampsInsertionTime(t *testing.T) {
	now, advance := fakeClock(time.Unix(1000, 0))
	c := NewTTL[string, int](30*time.Second, 0).WithClock(now)

	c.Set("a", 1)
	advance(20 * time.Second)
	c.Set("a", 2)
	advance(20 * time.Second)

	v, ok := c.Get("a")
	require.True(t, ok, "refreshed entry outlives the original stamp")
	assert.Equal(t, 2, v)
}

func TestTTLCapacityEviction(t *testing.T) {
	now, advance := fakeClock(time.Unix(1000, 0))
	c := NewTTL[int, int](time.Hour, 2).WithClock(now)

	c.Set(1, 1)
	advance(time.Second)
	c.Set(2, 2)
	advance(time.Second)
	c.Set(3, 3) // full, nothing expired: oldest (key 1) goes

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get(1)
	assert.False(t, ok)
	_, ok = c.Get(2)
	assert.True(t, ok)
	_, ok = c.Get(3)
	assert.True(t, ok)
}

func TestTTLCapacityPrefersExpired(t *testing.T) {
	now, advance := fakeClock(time.Unix(1000, 0))
	c := NewTTL[int, int](10*time.Second, 2).WithClock(now)

	c.Set(1, 1)
	advance(11 * time.Second) // 1 is now expired
	c.Set(2, 2)
	c.Set(3, 3) // full, but the expired entry is reclaimed first

	_, ok := c.Get(2)
	assert.True(t, ok, "live entry survives when an expired one could be dropped")
	_, ok = c.Get(3)
	assert.True(t, ok)
}

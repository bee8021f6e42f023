package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }
func newFakeClock() *fakeClock               { return &fakeClock{t: time.Unix(1700000000, 0)} }

func newTestLimiter(c *fakeClock, capacity int, refill float64) *Limiter {
	return New(capacity, refill, WithClock(c.now))
}

func TestAcquireExhaustsBucket(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(clock, 5, 1)

	for i := 0; i < 5; i++ {
		ok, wait := l.Acquire("scope")
		require.True(t, ok, "acquire %d should succeed", i)
		require.Zero(t, wait)
	}

	// Sixth instant call reports a positive wait, no permit.
	ok, wait := l.Acquire("scope")
	assert.False(t, ok)
	assert.Greater(t, wait, time.Duration(0))
}

func TestAcquireAfterRefill(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(clock, 1, 1)

	ok, _ := l.Acquire("scope")
	require.True(t, ok)

	ok, _ = l.Acquire("scope")
	require.False(t, ok)

	clock.advance(1100 * time.Millisecond)
	ok, wait := l.Acquire("scope")
	assert.True(t, ok)
	assert.Zero(t, wait)
}

func TestFloodWaitOverridesBucket(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(clock, 5, 1)

	l.FloodWait("s", 30*time.Second)

	// Any acquire within the window reports the remaining wait.
	ok, wait := l.Acquire("s")
	require.False(t, ok)
	assert.Equal(t, 30*time.Second, wait)

	clock.advance(10 * time.Second)
	ok, wait = l.Acquire("s")
	require.False(t, ok)
	assert.Equal(t, 20*time.Second, wait)

	clock.advance(21 * time.Second)
	ok, _ = l.Acquire("s")
	assert.True(t, ok)
}

func TestFloodWaitIsScopeLocal(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(clock, 5, 1)

	l.FloodWait("blocked", time.Minute)

	ok, _ := l.Acquire("unrelated")
	assert.True(t, ok, "flood wait on one scope must not block another")
}

func TestScopesAreIndependentBuckets(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(clock, 1, 1)

	ok, _ := l.Acquire("a")
	require.True(t, ok)
	ok, _ = l.Acquire("a")
	require.False(t, ok)

	ok, _ = l.Acquire("b")
	assert.True(t, ok)
}

func TestNextAllowedAt(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(clock, 1, 1)

	assert.True(t, l.NextAllowedAt("s").IsZero())
	l.FloodWait("s", 5*time.Second)
	assert.Equal(t, clock.now().Add(5*time.Second), l.NextAllowedAt("s"))
}

package ratelimit_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/go-graphql-guard/pkg/ratelimit"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestLimiter_windowLifecycle(t *testing.T) {
	clock := newFakeClock()
	l := ratelimit.New(60, time.Minute, ratelimit.WithClock(clock.Now))

	prev := 60
	for i := 1; i <= 60; i++ {
		v := l.Check("ops")
		require.True(t, v.Allowed, "call %d", i)
		assert.Less(t, v.Remaining, prev, "call %d", i)
		prev = v.Remaining
	}
	assert.Equal(t, 0, prev)

	blocked := l.Check("ops")
	assert.False(t, blocked.Allowed)
	assert.Equal(t, 0, blocked.Remaining)
	assert.Equal(t, clock.Now().Add(time.Minute), blocked.ResetTime)

	// Repeated calls while blocked keep the same reset time.
	clock.Advance(30 * time.Second)
	again := l.Check("ops")
	assert.False(t, again.Allowed)
	assert.Equal(t, blocked.ResetTime, again.ResetTime)

	// Exactly at the reset time the window has not elapsed yet.
	clock.Advance(30 * time.Second)
	assert.False(t, l.Check("ops").Allowed)

	clock.Advance(time.Millisecond)
	fresh := l.Check("ops")
	assert.True(t, fresh.Allowed)
	assert.Equal(t, 59, fresh.Remaining)
	assert.Equal(t, clock.Now().Add(time.Minute), fresh.ResetTime)
}

func TestLimiter_expiredWindowDiscardsPartialCount(t *testing.T) {
	clock := newFakeClock()
	l := ratelimit.New(5, time.Second, ratelimit.WithClock(clock.Now))

	for i := 0; i < 3; i++ {
		l.Check("a")
	}
	clock.Advance(2 * time.Second)

	v := l.Check("a")
	assert.True(t, v.Allowed)
	assert.Equal(t, 4, v.Remaining)
}

func TestLimiter_identifiersAreIsolated(t *testing.T) {
	clock := newFakeClock()
	l := ratelimit.New(2, time.Minute, ratelimit.WithClock(clock.Now))

	assert.True(t, l.Check("a").Allowed)
	assert.True(t, l.Check("a").Allowed)
	assert.False(t, l.Check("a").Allowed)

	v := l.Check("b")
	assert.True(t, v.Allowed)
	assert.Equal(t, 1, v.Remaining)
	assert.Equal(t, 2, l.Len())
}

func TestLimiter_defaultIdentifier(t *testing.T) {
	l := ratelimit.New(1, time.Minute)
	assert.True(t, l.Check("").Allowed)
	assert.False(t, l.Check(ratelimit.DefaultIdentifier).Allowed)

	l.Reset("")
	assert.True(t, l.Check("").Allowed)
}

func TestLimiter_sixtyOneCalls(t *testing.T) {
	l := ratelimit.NewDefault()
	for i := 1; i <= 60; i++ {
		require.True(t, l.Check("same").Allowed, "call %d", i)
	}
	v := l.Check("same")
	assert.False(t, v.Allowed)
	assert.Equal(t, 0, v.Remaining)
}

func TestLimiter_concurrentChecksNeverExceedLimit(t *testing.T) {
	l := ratelimit.New(100, time.Hour)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if l.Check("shared").Allowed {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, allowed)
}

package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestTTL_SetGetExpire(t *testing.T) {
	clock := newFakeClock()
	c := NewTTL(WithClock[string](clock.Now))

	c.Set("k", "v", time.Minute)

	got, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", got)

	clock.Advance(59 * time.Second)
	_, ok = c.Get("k")
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok, "entry must be absent once expires_at is reached")
	assert.Equal(t, 0, c.Len(), "lazy expiry removes the entry")
}

func TestTTL_ExpiredAbsentBeforeSweep(t *testing.T) {
	clock := newFakeClock()
	c := NewTTL(WithClock[int](clock.Now))
	c.Set("a", 1, time.Second)
	c.Set("b", 2, time.Hour)

	clock.Advance(2 * time.Second)

	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Sweep())

	clock.Advance(2 * time.Hour)
	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, 0, c.Len())
}

func TestTTL_DeleteAndOverwrite(t *testing.T) {
	c := NewTTL[string]()
	c.Set("k", "first", time.Minute)
	c.Set("k", "second", time.Minute)

	got, _ := c.Get("k")
	assert.Equal(t, "second", got)

	c.Delete("k")
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestTTL_SetIfAbsent(t *testing.T) {
	clock := newFakeClock()
	c := NewTTL(WithClock[bool](clock.Now))

	assert.True(t, c.SetIfAbsent("k", true, time.Minute))
	assert.False(t, c.SetIfAbsent("k", true, time.Minute))

	clock.Advance(time.Minute)
	assert.True(t, c.SetIfAbsent("k", true, time.Minute), "expired key can be taken again")
}

func TestTTL_Stats(t *testing.T) {
	clock := newFakeClock()
	c := NewTTL(WithClock[string](clock.Now))
	c.Set("a", "1", time.Second)
	c.Set("b", "2", time.Minute)
	clock.Advance(2 * time.Second)

	assert.Equal(t, Stats{TotalEntries: 2, ActiveEntries: 1}, c.Stats())
	assert.Equal(t, 2, c.Len(), "stats leave expired entries for the sweeper")

	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, Stats{TotalEntries: 1, ActiveEntries: 1}, c.Stats())
}

func TestTTL_ConcurrentAccess(t *testing.T) {
	c := NewTTL[int]()
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", i%4)
			for j := 0; j < 200; j++ {
				c.Set(key, j, time.Minute)
				c.Get(key)
				if j%50 == 0 {
					c.Delete(key)
				}
				c.Sweep()
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 4; i++ {
		if v, ok := c.Get(fmt.Sprintf("key-%d", i)); ok {
			assert.True(t, v >= 0 && v < 200)
		}
	}
}

func TestTTL_RunStopsWithContext(t *testing.T) {
	c := NewTTL[string]()
	c.Set("k", "v", time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestTTLProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("get returns value before ttl and absent after", prop.ForAll(
		func(ttlSeconds int, before int, value string) bool {
			clock := newFakeClock()
			c := NewTTL(WithClock[string](clock.Now))
			ttl := time.Duration(ttlSeconds) * time.Second

			c.Set("k", value, ttl)
			clock.Advance(time.Duration(before) * time.Second)
			got, ok := c.Get("k")
			if before < ttlSeconds {
				if !ok || got != value {
					return false
				}
			} else if ok {
				return false
			}

			clock.Advance(ttl)
			_, ok = c.Get("k")
			return !ok
		},
		gen.IntRange(1, 3600),
		gen.IntRange(0, 7200),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

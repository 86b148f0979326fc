package coalesce

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func countingLoader(calls *int32, value interface{}) Loader {
	return func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(calls, 1)
		return value, nil
	}
}

func TestFetch_ConcurrentCallersShareOneLoad(t *testing.T) {
	c := New()
	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})

	load := func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		close(started)
		<-release
		return "snapshot", nil
	}

	var wg sync.WaitGroup
	results := make([]interface{}, 2)
	errs := make([]error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = c.Fetch(context.Background(), "bootstrap:org-1", load, Options{})
	}()
	<-started

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], errs[1] = c.Fetch(context.Background(), "bootstrap:org-1", load, Options{Force: true})
	}()

	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, "snapshot", results[i])
	}
}

func TestFetch_CooldownReusesResult(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock(clock.Now))
	var calls int32
	ctx := context.Background()

	v, err := c.Fetch(ctx, "bootstrap:org-1", countingLoader(&calls, "first"), Options{})
	require.NoError(t, err)
	assert.Equal(t, "first", v)

	clock.Advance(time.Millisecond)
	v, err = c.Fetch(ctx, "bootstrap:org-1", countingLoader(&calls, "second"), Options{})
	require.NoError(t, err)
	assert.Equal(t, "first", v)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	clock.Advance(DefaultCooldown)
	v, err = c.Fetch(ctx, "bootstrap:org-1", countingLoader(&calls, "third"), Options{})
	require.NoError(t, err)
	assert.Equal(t, "third", v)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetch_ForceBypassesCooldown(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock(clock.Now))
	var calls int32
	ctx := context.Background()

	_, err := c.Fetch(ctx, "k", countingLoader(&calls, 1), Options{})
	require.NoError(t, err)

	v, err := c.Fetch(ctx, "k", countingLoader(&calls, 2), Options{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetch_PerCallCooldown(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock(clock.Now), WithCooldown(time.Minute))
	var calls int32
	ctx := context.Background()

	_, err := c.Fetch(ctx, "k", countingLoader(&calls, 1), Options{})
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	_, err = c.Fetch(ctx, "k", countingLoader(&calls, 2), Options{})
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	_, err = c.Fetch(ctx, "k", countingLoader(&calls, 3), Options{Cooldown: time.Second})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetch_FailureKeepsPreviousValue(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock(clock.Now))
	ctx := context.Background()
	var calls int32

	_, err := c.Fetch(ctx, "k", countingLoader(&calls, "good"), Options{})
	require.NoError(t, err)

	boom := errors.New("read failed")
	_, err = c.Fetch(ctx, "k", func(context.Context) (interface{}, error) { return nil, boom }, Options{Force: true})
	assert.ErrorIs(t, err, boom)

	v, err := c.Fetch(ctx, "k", countingLoader(&calls, "unused"), Options{})
	require.NoError(t, err)
	assert.Equal(t, "good", v)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetch_FailureWithoutValueRetries(t *testing.T) {
	c := New()
	ctx := context.Background()
	var calls int32

	_, err := c.Fetch(ctx, "k", func(context.Context) (interface{}, error) {
		return nil, errors.New("down")
	}, Options{})
	require.Error(t, err)

	v, err := c.Fetch(ctx, "k", countingLoader(&calls, "up"), Options{})
	require.NoError(t, err)
	assert.Equal(t, "up", v)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetch_PanicIsRecovered(t *testing.T) {
	c := New()
	ctx := context.Background()

	_, err := c.Fetch(ctx, "k", func(context.Context) (interface{}, error) {
		panic("nil map")
	}, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
	assert.False(t, c.InFlight("k"))

	var calls int32
	v, err := c.Fetch(ctx, "k", countingLoader(&calls, "ok"), Options{})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestFetch_WaiterCancellationDoesNotAbortLoad(t *testing.T) {
	c := New()
	release := make(chan struct{})
	var loaderCtxErr atomic.Value

	load := func(ctx context.Context) (interface{}, error) {
		<-release
		if ctx.Err() != nil {
			loaderCtxErr.Store(ctx.Err())
		}
		return "late", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Fetch(ctx, "k", load, Options{})
		done <- err
	}()

	require.Eventually(t, func() bool { return c.InFlight("k") }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(release)
	require.Eventually(t, func() bool { return !c.InFlight("k") }, time.Second, time.Millisecond)
	assert.Nil(t, loaderCtxErr.Load())

	var calls int32
	v, err := c.Fetch(context.Background(), "k", countingLoader(&calls, "fresh"), Options{})
	require.NoError(t, err)
	assert.Equal(t, "late", v)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestFetch_IdleEntriesAreDropped(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock(clock.Now))
	ctx := context.Background()
	var calls int32

	for i := 0; i < 500; i++ {
		_, err := c.Fetch(ctx, fmt.Sprintf("bootstrap:org-%d", i), countingLoader(&calls, i), Options{})
		require.NoError(t, err)
	}
	assert.Equal(t, 500, c.size())

	clock.Advance(24 * time.Hour)
	_, err := c.Fetch(ctx, "bootstrap:org-new", countingLoader(&calls, "new"), Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, c.size())
}

func TestFetch_SweepKeepsFreshAndInFlightEntries(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock(clock.Now))
	ctx := context.Background()
	var calls int32

	_, err := c.Fetch(ctx, "stale", countingLoader(&calls, 1), Options{})
	require.NoError(t, err)
	_, err = c.Fetch(ctx, "long", countingLoader(&calls, 2), Options{Cooldown: time.Hour})
	require.NoError(t, err)

	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Fetch(ctx, "slow", func(context.Context) (interface{}, error) {
			<-release
			return "slow", nil
		}, Options{})
	}()
	require.Eventually(t, func() bool { return c.InFlight("slow") }, time.Second, time.Millisecond)

	clock.Advance(time.Minute)
	_, err = c.Fetch(ctx, "trigger-sweep", countingLoader(&calls, 3), Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, c.size(), "long, slow and trigger-sweep remain")
	assert.True(t, c.InFlight("slow"))

	v, err := c.Fetch(ctx, "long", countingLoader(&calls, "reloaded"), Options{Cooldown: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	close(release)
	<-done
}

func TestInvalidate(t *testing.T) {
	c := New()
	ctx := context.Background()
	var calls int32

	_, err := c.Fetch(ctx, "k", countingLoader(&calls, 1), Options{})
	require.NoError(t, err)

	c.Invalidate("k")
	c.Invalidate("missing")

	v, err := c.Fetch(ctx, "k", countingLoader(&calls, 2), Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestDo_Typed(t *testing.T) {
	c := New()
	type snapshot struct{ Score int }

	got, err := Do(context.Background(), c, "readiness:org-1", func(context.Context) (snapshot, error) {
		return snapshot{Score: 72}, nil
	}, Options{})
	require.NoError(t, err)
	assert.Equal(t, 72, got.Score)

	_, err = Do(context.Background(), c, "readiness:org-1", func(context.Context) (string, error) {
		return "wrong", nil
	}, Options{})
	assert.Error(t, err)
}

func TestResourceOf(t *testing.T) {
	assert.Equal(t, "bootstrap", resourceOf("bootstrap:org-1"))
	assert.Equal(t, "plain", resourceOf("plain"))
	assert.Equal(t, ":x", resourceOf(":x"))
}

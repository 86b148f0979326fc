package matching

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"readiness-workers/internal/common/logger"
)

type countingPipeline struct {
	triggers int32
	ack      *TriggerAck
	err      error
}

func (c *countingPipeline) Status(ctx context.Context, orgID string) (*RemoteStatus, error) {
	return &RemoteStatus{}, nil
}

func (c *countingPipeline) Trigger(ctx context.Context, orgID string, maxMatches int) (*TriggerAck, error) {
	atomic.AddInt32(&c.triggers, 1)
	if _, ok := ctx.Deadline(); !ok {
		return nil, errors.New("top-up must run under a deadline")
	}
	return c.ack, c.err
}

func (c *countingPipeline) Triggers() int32 {
	return atomic.LoadInt32(&c.triggers)
}

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestTopUp_ThrottledPerOrg(t *testing.T) {
	mr, rdb := setupMiniredis(t)
	pipeline := &countingPipeline{ack: &TriggerAck{OK: true, Status: "matching"}}

	d := NewTopUpDispatcher(pipeline, rdb, TopUpConfig{TargetMatches: 10, ThrottleTTL: time.Minute}, logger.NewTestLogger(t))
	d.Dispatch("org-1", 3)
	d.Wait()
	d.Dispatch("org-1", 3)
	d.Wait()

	assert.Equal(t, int32(1), pipeline.Triggers())
	require.True(t, mr.Exists(ThrottleKey("org-1")))
	assert.Equal(t, time.Minute, mr.TTL(ThrottleKey("org-1")))

	mr.FastForward(2 * time.Minute)
	d.Dispatch("org-1", 3)
	d.Wait()
	assert.Equal(t, int32(2), pipeline.Triggers())

	d.Dispatch("org-2", 1)
	d.Wait()
	assert.Equal(t, int32(3), pipeline.Triggers())
}

func TestTopUp_WithoutThrottle(t *testing.T) {
	pipeline := &countingPipeline{ack: &TriggerAck{OK: true}}

	d := NewTopUpDispatcher(pipeline, nil, TopUpConfig{TargetMatches: 10}, logger.NewTestLogger(t))
	d.Dispatch("org-1", 3)
	d.Dispatch("org-1", 3)
	d.Wait()

	assert.Equal(t, int32(2), pipeline.Triggers())
}

func TestTopUp_RedisDownFailsOpen(t *testing.T) {
	mr, rdb := setupMiniredis(t)
	mr.Close()
	pipeline := &countingPipeline{ack: &TriggerAck{OK: true}}

	d := NewTopUpDispatcher(pipeline, rdb, TopUpConfig{TargetMatches: 10, Timeout: time.Second}, logger.NewTestLogger(t))
	d.Dispatch("org-1", 3)
	d.Wait()

	assert.Equal(t, int32(1), pipeline.Triggers())
}

func TestTopUp_FailuresStayInBackground(t *testing.T) {
	tests := []struct {
		name     string
		pipeline *countingPipeline
	}{
		{name: "trigger error", pipeline: &countingPipeline{err: errors.New("connection refused")}},
		{name: "not acknowledged", pipeline: &countingPipeline{ack: &TriggerAck{OK: false, Message: "busy"}}},
		{name: "nil ack", pipeline: &countingPipeline{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewTopUpDispatcher(tt.pipeline, nil, TopUpConfig{TargetMatches: 10}, logger.NewTestLogger(t))
			assert.NotPanics(t, func() {
				d.Dispatch("org-1", 2)
				d.Wait()
			})
			assert.Equal(t, int32(1), tt.pipeline.Triggers())
		})
	}
}

type panickingPipeline struct{ countingPipeline }

func (p *panickingPipeline) Trigger(ctx context.Context, orgID string, maxMatches int) (*TriggerAck, error) {
	panic("unexpected nil")
}

func TestTopUp_PanicRecovered(t *testing.T) {
	d := NewTopUpDispatcher(&panickingPipeline{}, nil, TopUpConfig{}, logger.NewTestLogger(t))
	assert.NotPanics(t, func() {
		d.Dispatch("org-1", 1)
		d.Wait()
	})
}

// blockingPipeline holds every trigger until its context ends.
type blockingPipeline struct {
	triggers int32
}

func (b *blockingPipeline) Status(ctx context.Context, orgID string) (*RemoteStatus, error) {
	return &RemoteStatus{}, nil
}

func (b *blockingPipeline) Trigger(ctx context.Context, orgID string, maxMatches int) (*TriggerAck, error) {
	atomic.AddInt32(&b.triggers, 1)
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestTopUp_DispatchDoesNotBlockAndTimeoutEndsRun(t *testing.T) {
	pipeline := &blockingPipeline{}
	timeout := 50 * time.Millisecond
	d := NewTopUpDispatcher(pipeline, nil, TopUpConfig{TargetMatches: 10, Timeout: timeout}, logger.NewTestLogger(t))

	start := time.Now()
	d.Dispatch("org-1", 3)
	assert.Less(t, time.Since(start), 20*time.Millisecond, "dispatch must return before the trigger settles")

	finished := make(chan struct{})
	go func() {
		d.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("top-up outlived its timeout")
	}
	assert.GreaterOrEqual(t, time.Since(start), timeout)
	assert.Equal(t, int32(1), atomic.LoadInt32(&pipeline.triggers))
}

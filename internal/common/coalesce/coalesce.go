// Package coalesce merges concurrent identical reads into one call and serves
// the last result for a cooldown window afterwards.
package coalesce

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"readiness-workers/internal/common/logger"
	"readiness-workers/internal/common/metrics"
)

// DefaultCooldown is how long a completed load is reused by non-forced callers.
const DefaultCooldown = 10 * time.Second

// Loader performs the underlying read. It runs detached from any single
// caller's cancellation, so it must bound itself.
type Loader func(ctx context.Context) (interface{}, error)

// Options control a single Fetch.
type Options struct {
	// Force skips the cooldown check. It still joins an in-flight call.
	Force bool
	// Cooldown overrides the coalescer default when positive.
	Cooldown time.Duration
}

type call struct {
	done  chan struct{}
	value interface{}
	err   error
}

type entry struct {
	inflight      *call
	loaded        bool
	value         interface{}
	lastCompleted time.Time
	// cooldown is the longest window any caller has asked this entry for.
	cooldown time.Duration
}

// Coalescer is safe for concurrent use. Construct one per process and share it.
type Coalescer struct {
	mu       sync.Mutex
	entries  map[string]*entry
	cooldown  time.Duration
	now       func() time.Time
	lastSweep time.Time
	logger    logger.Logger
}

type Option func(*Coalescer)

func WithCooldown(d time.Duration) Option {
	return func(c *Coalescer) {
		if d > 0 {
			c.cooldown = d
		}
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Coalescer) { c.now = now }
}

func WithLogger(log logger.Logger) Option {
	return func(c *Coalescer) { c.logger = log.WithFields(map[string]interface{}{"component": "coalescer"}) }
}

func New(opts ...Option) *Coalescer {
	c := &Coalescer{
		entries:  make(map[string]*entry),
		cooldown: DefaultCooldown,
		now:      time.Now,
		logger:   logger.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns the cached value for key when it is fresh, joins the call in
// flight for key when there is one, or starts load otherwise.
func (c *Coalescer) Fetch(ctx context.Context, key string, load Loader, opts Options) (interface{}, error) {
	resource := resourceOf(key)

	c.mu.Lock()
	c.sweepLocked()
	e, ok := c.entries[key]
	if !ok {
		e = &entry{}
		c.entries[key] = e
	}

	if cl := e.inflight; cl != nil {
		c.mu.Unlock()
		metrics.CoalescerRequests.WithLabelValues(resource, "joined").Inc()
		return wait(ctx, cl)
	}

	cooldown := c.cooldown
	if opts.Cooldown > 0 {
		cooldown = opts.Cooldown
	}
	if cooldown > e.cooldown {
		e.cooldown = cooldown
	}
	if !opts.Force && e.loaded && c.now().Sub(e.lastCompleted) < cooldown {
		value := e.value
		c.mu.Unlock()
		metrics.CoalescerRequests.WithLabelValues(resource, "hit").Inc()
		return value, nil
	}

	cl := &call{done: make(chan struct{})}
	e.inflight = cl
	c.mu.Unlock()

	go c.run(context.WithoutCancel(ctx), key, e, cl, load)
	return wait(ctx, cl)
}

func (c *Coalescer) run(ctx context.Context, key string, e *entry, cl *call, load Loader) {
	defer close(cl.done)

	func() {
		defer func() {
			if r := recover(); r != nil {
				cl.err = fmt.Errorf("coalesced load %q panicked: %v", key, r)
			}
		}()
		cl.value, cl.err = load(ctx)
	}()

	c.mu.Lock()
	// Clear the slot first, then stamp, in one critical section: no caller can
	// observe a settled call without its timestamp.
	e.inflight = nil
	e.lastCompleted = c.now()
	if cl.err == nil {
		e.value = cl.value
		e.loaded = true
	}
	c.mu.Unlock()

	resource := resourceOf(key)
	if cl.err != nil {
		metrics.CoalescerRequests.WithLabelValues(resource, "failed").Inc()
		c.logger.Warn("coalesced load failed", map[string]interface{}{
			"key":   key,
			"error": cl.err.Error(),
		})
		return
	}
	metrics.CoalescerRequests.WithLabelValues(resource, "loaded").Inc()
}

// sweepLocked drops settled entries whose cooldown has run out, at most once
// per default cooldown. Entries with a call in flight are kept. c.mu must be held.
func (c *Coalescer) sweepLocked() {
	now := c.now()
	if now.Sub(c.lastSweep) < c.cooldown {
		return
	}
	c.lastSweep = now
	for key, e := range c.entries {
		if e.inflight == nil && now.Sub(e.lastCompleted) >= e.cooldown {
			delete(c.entries, key)
		}
	}
}

func (c *Coalescer) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func wait(ctx context.Context, cl *call) (interface{}, error) {
	select {
	case <-cl.done:
		return cl.value, cl.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate drops the cached value for key. A call in flight is unaffected.
func (c *Coalescer) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		e.loaded = false
		e.value = nil
	}
}

// InFlight reports whether a load for key is currently running.
func (c *Coalescer) InFlight(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return ok && e.inflight != nil
}

// Do is the typed form of Fetch.
func Do[T any](ctx context.Context, c *Coalescer, key string, load func(context.Context) (T, error), opts Options) (T, error) {
	var zero T
	v, err := c.Fetch(ctx, key, func(ctx context.Context) (interface{}, error) {
		return load(ctx)
	}, opts)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("coalesced value for %q has type %T", key, v)
	}
	return typed, nil
}

// resourceOf keeps metric labels bounded: "bootstrap:org-1" -> "bootstrap".
func resourceOf(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}

package matching

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"readiness-workers/internal/common/logger"
	"readiness-workers/internal/common/metrics"
)

type TopUpConfig struct {
	TargetMatches int
	Timeout       time.Duration
	ThrottleTTL   time.Duration
}

// TopUpDispatcher asks the pipeline for more matches when an org has fewer
// than the target. Each request runs detached under its own timeout; the
// outcome only shows up in logs and metrics.
type TopUpDispatcher struct {
	pipeline PipelineClient
	redis    *redis.Client
	cfg      TopUpConfig
	wg       sync.WaitGroup
	logger   logger.Logger
}

// NewTopUpDispatcher builds a dispatcher. A nil redis client disables the
// per-org throttle.
func NewTopUpDispatcher(pipeline PipelineClient, rdb *redis.Client, cfg TopUpConfig, log logger.Logger) *TopUpDispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ThrottleTTL <= 0 {
		cfg.ThrottleTTL = 2 * time.Minute
	}
	return &TopUpDispatcher{
		pipeline: pipeline,
		redis:    rdb,
		cfg:      cfg,
		logger:   log.WithFields(map[string]interface{}{"component": "topup"}),
	}
}

func ThrottleKey(orgID string) string {
	return "matching:topup:" + orgID
}

func (d *TopUpDispatcher) Dispatch(orgID string, have int) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				metrics.TopUpsTotal.WithLabelValues("failed").Inc()
				d.logger.Error("top-up panicked", map[string]interface{}{
					"orgId": orgID,
					"panic": fmt.Sprint(r),
				})
			}
		}()
		d.run(orgID, have)
	}()
}

// Wait blocks until every dispatched top-up has finished.
func (d *TopUpDispatcher) Wait() {
	d.wg.Wait()
}

func (d *TopUpDispatcher) run(orgID string, have int) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
	defer cancel()

	fields := map[string]interface{}{
		"orgId":  orgID,
		"have":   have,
		"target": d.cfg.TargetMatches,
	}

	if !d.acquire(ctx, orgID) {
		metrics.TopUpsTotal.WithLabelValues("throttled").Inc()
		d.logger.Debug("top-up skipped, recently requested", fields)
		return
	}

	ack, err := d.pipeline.Trigger(ctx, orgID, d.cfg.TargetMatches)
	switch {
	case err != nil:
		metrics.TopUpsTotal.WithLabelValues("failed").Inc()
		fields["error"] = err.Error()
		d.logger.Warn("top-up request failed", fields)
	case ack == nil || !ack.OK:
		metrics.TopUpsTotal.WithLabelValues("rejected").Inc()
		if ack != nil {
			fields["message"] = ack.Message
		}
		d.logger.Warn("top-up request not acknowledged", fields)
	default:
		metrics.TopUpsTotal.WithLabelValues("started").Inc()
		fields["status"] = ack.Status
		d.logger.Info("top-up requested", fields)
	}
}

// acquire claims the per-org throttle slot. Redis trouble lets the request through.
func (d *TopUpDispatcher) acquire(ctx context.Context, orgID string) bool {
	if d.redis == nil {
		return true
	}
	ok, err := d.redis.SetNX(ctx, ThrottleKey(orgID), time.Now().UTC().Format(time.RFC3339), d.cfg.ThrottleTTL).Result()
	if err != nil {
		d.logger.Warn("top-up throttle unavailable", map[string]interface{}{
			"orgId": orgID,
			"error": err.Error(),
		})
		return true
	}
	return ok
}

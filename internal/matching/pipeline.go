package matching

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"readiness-workers/internal/common/config"
	"readiness-workers/internal/common/errors"
	commonhttp "readiness-workers/internal/common/http"
	"readiness-workers/internal/common/logger"
	"readiness-workers/internal/common/metrics"
)

const (
	statusPath  = "/api/investor-matches"
	triggerPath = "/api/run-investor-pipeline"
)

// HTTPPipeline talks to the remote investor pipeline. Trigger calls go
// through a token bucket so a burst of polls cannot flood the pipeline.
type HTTPPipeline struct {
	client         *commonhttp.Client
	limiter        *rate.Limiter
	statusTimeout  time.Duration
	triggerTimeout time.Duration
	logger         logger.Logger
}

func NewHTTPPipeline(cfg config.PipelineConfig, log logger.Logger, opts ...commonhttp.Option) *HTTPPipeline {
	perMinute := cfg.TriggerRatePerMin
	if perMinute <= 0 {
		perMinute = 30
	}
	burst := cfg.TriggerBurst
	if burst <= 0 {
		burst = 5
	}

	clientOpts := append([]commonhttp.Option{
		commonhttp.WithBaseURL(cfg.BaseURL),
		commonhttp.WithHeader("X-API-Key", cfg.APIKey),
	}, opts...)

	return &HTTPPipeline{
		client:         commonhttp.NewClient(config.GetDuration(cfg.TriggerTimeout), clientOpts...),
		limiter:        rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst),
		statusTimeout:  config.GetDuration(cfg.StatusTimeout),
		triggerTimeout: config.GetDuration(cfg.TriggerTimeout),
		logger:         log.WithFields(map[string]interface{}{"component": "pipeline-client"}),
	}
}

// Status asks the pipeline what it is doing for orgID.
func (p *HTTPPipeline) Status(ctx context.Context, orgID string) (*RemoteStatus, error) {
	ctx, cancel := withTimeout(ctx, p.statusTimeout)
	defer cancel()

	start := time.Now()
	var out RemoteStatus
	err := p.client.GetJSON(ctx, statusPath, url.Values{"org_id": {orgID}}, &out)
	p.record("status", start, err)
	if err != nil {
		return nil, classify("status", err)
	}
	return &out, nil
}

// Trigger asks the pipeline to produce up to maxMatches matches for orgID.
func (p *HTTPPipeline) Trigger(ctx context.Context, orgID string, maxMatches int) (*TriggerAck, error) {
	ctx, cancel := withTimeout(ctx, p.triggerTimeout)
	defer cancel()

	if err := p.limiter.Wait(ctx); err != nil {
		metrics.PipelineCalls.WithLabelValues("trigger", "rate_limited").Inc()
		return nil, fmt.Errorf("pipeline trigger rate limited: %w", err)
	}

	start := time.Now()
	var ack TriggerAck
	err := p.client.PostJSON(ctx, triggerPath, map[string]interface{}{
		"org_id":      orgID,
		"max_matches": maxMatches,
	}, &ack)
	p.record("trigger", start, err)
	if err != nil {
		return nil, classify("trigger", err)
	}

	p.logger.Info("pipeline trigger answered", map[string]interface{}{
		"orgId":  orgID,
		"ok":     ack.OK,
		"status": ack.Status,
	})
	return &ack, nil
}

func (p *HTTPPipeline) record(operation string, start time.Time, err error) {
	metrics.PipelineCallDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.PipelineCalls.WithLabelValues(operation, outcome).Inc()
}

// classify separates "could not talk to the pipeline" from "the pipeline
// answered badly". Only the first is reported as unreachable.
func classify(operation string, err error) error {
	var statusErr *commonhttp.StatusError
	if stderrors.As(err, &statusErr) {
		return fmt.Errorf("pipeline %s: %w", operation, err)
	}
	var urlErr *url.Error
	if stderrors.As(err, &urlErr) || stderrors.Is(err, context.DeadlineExceeded) {
		return errors.NewPipelineUnreachableError(err)
	}
	return fmt.Errorf("pipeline %s: %w", operation, err)
}

// IsUnreachable reports whether err means the pipeline could not be reached at all.
func IsUnreachable(err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	stdErr, ok := errors.AsStandardError(err)
	return ok && stdErr.Code == errors.ErrCodePipelineUnreachable
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// Package matching reconciles stored investor matches with the remote
// pipeline that produces them, and answers with one status per org.
package matching

import (
	"context"
	"time"

	"readiness-workers/internal/common/logger"
	"readiness-workers/internal/common/metrics"
)

const (
	msgReadFailed   = "investor matches could not be read"
	msgUnreachable  = "Investor pipeline is not reachable"
	msgStatusFailed = "Investor pipeline status check failed"
	msgNotStarted   = "Investor matching could not be started; the pipeline may be busy or misconfigured"
)

type Config struct {
	TargetMatches  int
	ReadTimeout    time.Duration
	StatusTimeout  time.Duration
	TriggerTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.TargetMatches <= 0 {
		c.TargetMatches = 10
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 5 * time.Second
	}
	if c.StatusTimeout <= 0 {
		c.StatusTimeout = 5 * time.Second
	}
	if c.TriggerTimeout <= 0 {
		c.TriggerTimeout = 10 * time.Second
	}
	return c
}

type Orchestrator struct {
	cfg       Config
	primary   MatchReader
	secondary MatchReader
	pipeline  PipelineClient
	topUp     Dispatcher
	logger    logger.Logger
}

// NewOrchestrator wires the readers and the pipeline. secondary may be nil,
// in which case a primary read failure is final.
func NewOrchestrator(cfg Config, primary, secondary MatchReader, pipeline PipelineClient, topUp Dispatcher, log logger.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg.withDefaults(),
		primary:   primary,
		secondary: secondary,
		pipeline:  pipeline,
		topUp:     topUp,
		logger:    log.WithFields(map[string]interface{}{"component": "match-orchestrator"}),
	}
}

// GetMatchStatus never fails: every problem underneath is folded into the
// returned status.
func (o *Orchestrator) GetMatchStatus(ctx context.Context, orgID string, hint Status) StatusResponse {
	resp := o.resolve(ctx, orgID, hint)
	if resp.Matches == nil {
		resp.Matches = []MatchRecord{}
	}
	resp.MatchCount = len(resp.Matches)
	metrics.MatchStatusTotal.WithLabelValues(string(resp.Status)).Inc()

	o.logger.Info("match status resolved", map[string]interface{}{
		"orgId":      orgID,
		"hint":       string(hint),
		"status":     string(resp.Status),
		"matchCount": resp.MatchCount,
	})
	return resp
}

func (o *Orchestrator) resolve(ctx context.Context, orgID string, hint Status) StatusResponse {
	rows, err := o.readMatches(ctx, orgID)
	if err != nil {
		o.logger.Error("match read failed on every role", map[string]interface{}{
			"orgId": orgID,
			"error": err.Error(),
		})
		return StatusResponse{Status: StatusError, Error: msgReadFailed}
	}
	if len(rows) > 0 {
		return o.ready(orgID, NormalizeRows(rows))
	}

	// The caller already knows a run is in progress: look once more, but do
	// not ask the pipeline again.
	if hint.Running() {
		rows, err = o.readMatches(ctx, orgID)
		if err == nil && len(rows) > 0 {
			return o.ready(orgID, NormalizeRows(rows))
		}
		if err != nil {
			o.logger.Warn("re-read failed, keeping caller status", map[string]interface{}{
				"orgId": orgID,
				"error": err.Error(),
			})
		}
		return StatusResponse{Status: hint}
	}

	remote, err := o.remoteStatus(ctx, orgID)
	if err != nil {
		o.logger.Warn("pipeline status check failed", map[string]interface{}{
			"orgId": orgID,
			"error": err.Error(),
		})
		if IsUnreachable(err) {
			return StatusResponse{Status: StatusError, Error: msgUnreachable}
		}
		return StatusResponse{Status: StatusError, Error: msgStatusFailed}
	}

	remoteStatus := Status(remote.Status)
	switch {
	case remoteStatus.Running():
		return StatusResponse{Status: remoteStatus}
	case remoteStatus == StatusReady && len(remote.Matches) > 0:
		return o.ready(orgID, NormalizeRows(remote.Matches))
	}

	return o.trigger(ctx, orgID, remoteStatus)
}

func (o *Orchestrator) trigger(ctx context.Context, orgID string, previous Status) StatusResponse {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.TriggerTimeout)
	defer cancel()

	ack, err := o.pipeline.Trigger(ctx, orgID, o.cfg.TargetMatches)
	if err != nil || ack == nil || !ack.OK {
		fields := map[string]interface{}{
			"orgId":          orgID,
			"previousStatus": string(previous),
		}
		if err != nil {
			fields["error"] = err.Error()
		}
		if ack != nil {
			fields["message"] = ack.Message
		}
		o.logger.Error("pipeline trigger not acknowledged", fields)
		return StatusResponse{Status: StatusError, Error: msgNotStarted}
	}

	acked := Status(ack.Status)
	switch {
	case acked == StatusReady:
		// This request already triggered once, so no top-up here. Rows that
		// are not readable yet leave the client polling.
		rows, err := o.readMatches(ctx, orgID)
		if err != nil {
			o.logger.Warn("read after ready acknowledgement failed", map[string]interface{}{
				"orgId": orgID,
				"error": err.Error(),
			})
		}
		matches := NormalizeRows(rows)
		if len(matches) == 0 {
			return StatusResponse{Status: StatusMatching, Message: ack.Message}
		}
		return StatusResponse{Status: StatusReady, Matches: matches, Message: ack.Message}
	case acked.Running():
		return StatusResponse{Status: acked, Message: ack.Message}
	default:
		return StatusResponse{Status: StatusGenerating, Message: ack.Message}
	}
}

// ready answers with the rows and, when there are fewer than the target,
// asks for more in the background.
func (o *Orchestrator) ready(orgID string, matches []MatchRecord) StatusResponse {
	if len(matches) > 0 && len(matches) < o.cfg.TargetMatches && o.topUp != nil {
		o.topUp.Dispatch(orgID, len(matches))
	}
	return StatusResponse{Status: StatusReady, Matches: matches}
}

// readMatches tries the service role first and falls back to the
// caller-scoped role.
func (o *Orchestrator) readMatches(ctx context.Context, orgID string) ([]map[string]interface{}, error) {
	rows, err := o.readWith(ctx, o.primary, orgID)
	if err == nil {
		return rows, nil
	}
	if o.secondary == nil {
		return nil, err
	}

	metrics.MatchReadFallbacks.Inc()
	o.logger.Warn("primary match read failed, using scoped reader", map[string]interface{}{
		"orgId": orgID,
		"error": err.Error(),
	})
	return o.readWith(ctx, o.secondary, orgID)
}

func (o *Orchestrator) readWith(ctx context.Context, reader MatchReader, orgID string) ([]map[string]interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.ReadTimeout)
	defer cancel()
	return reader.ReadMatches(ctx, orgID)
}

func (o *Orchestrator) remoteStatus(ctx context.Context, orgID string) (*RemoteStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.StatusTimeout)
	defer cancel()
	return o.pipeline.Status(ctx, orgID)
}

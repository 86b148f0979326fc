// Package bootstrap loads the startup snapshot shared by the dashboard and
// the matches page: the readiness report and the investor match status.
package bootstrap

import (
	"context"
	stderrors "errors"
	"time"

	"golang.org/x/sync/errgroup"

	"readiness-workers/internal/common/coalesce"
	"readiness-workers/internal/common/errors"
	"readiness-workers/internal/common/logger"
	"readiness-workers/internal/matching"
	"readiness-workers/internal/readiness"
	"readiness-workers/internal/readiness/store"
)

const defaultTimeout = 15 * time.Second

// ReportLoader is satisfied by *store.Store.
type ReportLoader interface {
	LoadReport(ctx context.Context, orgID string, maxGaps int) (*readiness.Report, error)
	Invalidate(ctx context.Context, orgID string) error
}

// MatchStatusGetter is satisfied by *matching.Orchestrator.
type MatchStatusGetter interface {
	GetMatchStatus(ctx context.Context, orgID string, hint matching.Status) matching.StatusResponse
}

// Snapshot has a nil Readiness when the org has not been scored yet.
type Snapshot struct {
	OrgID     string                  `json:"orgId"`
	Readiness *readiness.Report       `json:"readiness"`
	Matches   matching.StatusResponse `json:"matches"`
	LoadedAt  time.Time               `json:"loadedAt"`
}

type Config struct {
	MaxGaps int
	Timeout time.Duration
}

type Loader struct {
	config    Config
	reports   ReportLoader
	matches   MatchStatusGetter
	coalescer *coalesce.Coalescer
	logger    logger.Logger
}

func NewLoader(cfg Config, reports ReportLoader, matches MatchStatusGetter, c *coalesce.Coalescer, log logger.Logger) *Loader {
	if cfg.MaxGaps <= 0 {
		cfg.MaxGaps = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if c == nil {
		c = coalesce.New(coalesce.WithLogger(log))
	}
	return &Loader{
		config:    cfg,
		reports:   reports,
		matches:   matches,
		coalescer: c,
		logger:    log.WithFields(map[string]interface{}{"component": "bootstrap"}),
	}
}

func Key(orgID string) string {
	return "bootstrap:" + orgID
}

// Load returns the snapshot for orgID. Concurrent callers share one read and
// a recent snapshot is reused unless force is set. Force also drops the
// cached readiness document so the report is rebuilt from Postgres.
func (l *Loader) Load(ctx context.Context, orgID string, force bool) (*Snapshot, error) {
	if force {
		if err := l.reports.Invalidate(ctx, orgID); err != nil {
			l.logger.Warn("readiness cache invalidation failed", map[string]interface{}{
				"orgId": orgID,
				"error": err.Error(),
			})
		}
	}

	return coalesce.Do(ctx, l.coalescer, Key(orgID), func(ctx context.Context) (*Snapshot, error) {
		return l.load(ctx, orgID)
	}, coalesce.Options{Force: force})
}

func (l *Loader) load(ctx context.Context, orgID string) (*Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, l.config.Timeout)
	defer cancel()

	snap := &Snapshot{OrgID: orgID}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		report, err := l.reports.LoadReport(gctx, orgID, l.config.MaxGaps)
		if stderrors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		snap.Readiness = report
		return nil
	})
	g.Go(func() error {
		snap.Matches = l.matches.GetMatchStatus(gctx, orgID, "")
		return nil
	})

	if err := g.Wait(); err != nil {
		l.logger.Error("bootstrap load failed", map[string]interface{}{
			"orgId": orgID,
			"error": err.Error(),
		})
		return nil, errors.NewBootstrapFailedError(orgID, err)
	}

	snap.LoadedAt = time.Now().UTC()
	l.logger.Info("bootstrap loaded", map[string]interface{}{
		"orgId":        orgID,
		"hasReadiness": snap.Readiness != nil,
		"matchStatus":  snap.Matches.Status,
		"matchCount":   snap.Matches.MatchCount,
	})
	return snap, nil
}

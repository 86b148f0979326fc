// Package api exposes the readiness and matching operations over HTTP for
// the dashboard, next to the health and metrics endpoints.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"readiness-workers/internal/bootstrap"
	"readiness-workers/internal/common/logger"
	"readiness-workers/internal/matching"
	"readiness-workers/internal/readiness"
)

type ReportLoader interface {
	LoadReport(ctx context.Context, orgID string, maxGaps int) (*readiness.Report, error)
}

type StatusGetter interface {
	GetMatchStatus(ctx context.Context, orgID string, hint matching.Status) matching.StatusResponse
}

type SnapshotLoader interface {
	Load(ctx context.Context, orgID string, force bool) (*bootstrap.Snapshot, error)
}

// ReadinessCheck reports whether one dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

type Dependencies struct {
	Reports        ReportLoader
	Matches        StatusGetter
	Bootstrap      SnapshotLoader
	Checks         map[string]ReadinessCheck
	DefaultMaxGaps int
	RequestTimeout time.Duration
}

type handlers struct {
	deps   Dependencies
	logger logger.Logger
}

// NewRouter builds the gin engine. Routes:
//
//	GET  /health
//	GET  /ready
//	GET  /metrics
//	GET  /api/readiness?org_id=&max_gaps=
//	POST /api/readiness/projection
//	GET  /api/investor-matches?org_id=&known_status=
//	GET  /api/bootstrap?org_id=&force=
func NewRouter(deps Dependencies, log logger.Logger) *gin.Engine {
	if deps.DefaultMaxGaps <= 0 {
		deps.DefaultMaxGaps = 3
	}
	if deps.RequestTimeout <= 0 {
		deps.RequestTimeout = 30 * time.Second
	}

	h := &handlers{
		deps:   deps,
		logger: log.WithFields(map[string]interface{}{"component": "api"}),
	}

	r := gin.New()
	r.Use(recovery(h.logger))
	r.Use(requestLogger(h.logger))

	r.GET("/health", h.health)
	r.GET("/ready", h.ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(requestTimeout(deps.RequestTimeout))
	api.GET("/readiness", h.getReadiness)
	api.POST("/readiness/projection", h.postProjection)
	api.GET("/investor-matches", h.getMatches)
	api.GET("/bootstrap", h.getBootstrap)

	return r
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (h *handlers) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := gin.H{}
	status := http.StatusOK
	for name, check := range h.deps.Checks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not_ready"
	}
	c.JSON(status, gin.H{
		"status": state,
		"checks": checks,
		"time":   time.Now().Format(time.RFC3339),
	})
}

// internal/workers/matching/load-startup-bootstrap/handler.go
package loadstartupbootstrap

import (
	"context"
	"encoding/json"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"readiness-workers/internal/bootstrap"
	"readiness-workers/internal/common/errors"
	"readiness-workers/internal/common/logger"
	"readiness-workers/internal/common/metrics"
	"readiness-workers/internal/common/observability"
)

const (
	TaskType = "load-startup-bootstrap"
)

// SnapshotLoader is satisfied by *bootstrap.Loader.
type SnapshotLoader interface {
	Load(ctx context.Context, orgID string, force bool) (*bootstrap.Snapshot, error)
}

type Handler struct {
	config       *Config
	loader       SnapshotLoader
	obs          *observability.Observability
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, loader SnapshotLoader, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		loader:       loader,
		obs:          obs,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	if result := inputSchema.ValidateJSON([]byte(job.Variables)); !result.Valid {
		h.failJob(client, job, errors.NewInvalidInputError(result.Error()), start)
		return
	}
	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, errors.NewInvalidInputError(err.Error()), start)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.failJob(client, job, err, start)
		return
	}

	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.failJob(client, job, err, start)
		return
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	h.obs.RecordJobProcessed(ctx, TaskType, "completed")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(start), "completed")
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil || input.OrgID == "" {
		return nil, errors.NewInvalidInputError("orgId is required")
	}

	snap, err := h.loader.Load(ctx, input.OrgID, input.Force)
	if err != nil {
		if _, ok := errors.AsStandardError(err); ok {
			return nil, err
		}
		return nil, errors.NewBootstrapFailedError(input.OrgID, err)
	}

	return &Output{
		OrgID:     snap.OrgID,
		Readiness: snap.Readiness,
		Matches:   snap.Matches,
	}, nil
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, err error, start time.Time) {
	ctx := context.Background()
	stdErr := errors.NormalizeError(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.obs.RecordJobProcessed(ctx, TaskType, "failed")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(start), "failed")

	h.errorHandler.HandleJobError(ctx, client, job, stdErr)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

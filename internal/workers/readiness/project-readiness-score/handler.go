// internal/workers/readiness/project-readiness-score/handler.go
package projectreadinessscore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"readiness-workers/internal/common/errors"
	"readiness-workers/internal/common/logger"
	"readiness-workers/internal/common/metrics"
	"readiness-workers/internal/common/observability"
	"readiness-workers/internal/readiness"
)

const (
	TaskType = "project-readiness-score"
)

type Handler struct {
	config       *Config
	obs          *observability.Observability
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
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

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if result := inputSchema.ValidateJSON([]byte(job.Variables)); !result.Valid {
		h.failJob(client, job, errors.NewInvalidInputError(result.Error()), start)
		return
	}
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, errors.NewInvalidInputError(err.Error()), start)
		return
	}

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

// execute projects with the explicit recommendation when there is one, and
// otherwise with the best of the supplied gaps.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.NewInvalidInputError("input cannot be nil")
	}
	if input.CurrentScore < 0 || input.CurrentScore > 100 {
		return nil, errors.NewInvalidInputError("currentScore must be between 0 and 100")
	}

	var candidates []readiness.Candidate
	if r := input.Recommendation; r != nil {
		candidates = append(candidates, readiness.Candidate{
			Title:        r.Title,
			Severity:     r.Severity,
			ImpactPoints: r.ImpactPoints,
		})
	} else {
		for _, g := range input.Gaps {
			candidates = append(candidates, readiness.CandidateFromGap(g))
		}
	}

	projection, ok := readiness.Project(input.CurrentScore, candidates)
	if !ok {
		return nil, errors.NewInvalidInputError("a recommendation or at least one gap is required")
	}

	h.logger.Info("score projected", map[string]interface{}{
		"currentScore":   projection.CurrentScore,
		"projectedScore": projection.ProjectedScore,
		"selected":       projection.Selected.Title,
	})

	return &Output{
		CurrentScore:   projection.CurrentScore,
		ProjectedScore: projection.ProjectedScore,
		Delta:          projection.Delta,
		Selected:       projection.Selected,
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

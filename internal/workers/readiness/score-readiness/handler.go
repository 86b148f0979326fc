// internal/workers/readiness/score-readiness/handler.go
package scorereadiness

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"readiness-workers/internal/common/errors"
	"readiness-workers/internal/common/logger"
	"readiness-workers/internal/common/metrics"
	"readiness-workers/internal/common/observability"
	"readiness-workers/internal/readiness"
	"readiness-workers/internal/readiness/store"
)

const (
	TaskType = "score-readiness"
)

type Handler struct {
	config       *Config
	store        store.RubricStore
	obs          *observability.Observability
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, rubrics store.RubricStore, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		store:        rubrics,
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

	input, err := h.parseInput(job)
	if err != nil {
		h.failJob(client, job, err, start)
		return
	}

	output, err := h.execute(ctx, input)
	if err != nil {
		h.failJob(client, job, err, start)
		return
	}

	h.completeJob(client, job, output, start)
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	if result := inputSchema.ValidateJSON([]byte(job.Variables)); !result.Valid {
		return nil, errors.NewInvalidInputError(result.Error())
	}
	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}
	return &input, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.NewInvalidInputError("input cannot be nil")
	}

	raw, err := h.rubric(ctx, input)
	if err != nil {
		return nil, err
	}

	tree, err := readiness.DecodeTree(raw)
	if err != nil {
		return nil, errors.NewRubricParseFailedError(err)
	}
	h.obs.RecordRubricSize(ctx, tree.ItemCount())

	maxGaps := h.config.DefaultMaxGaps
	if input.MaxGaps != nil {
		maxGaps = *input.MaxGaps
	}
	report := readiness.BuildReport(tree, maxGaps)

	h.logger.Info("readiness scored", map[string]interface{}{
		"orgId":        input.OrgID,
		"overallScore": report.OverallScore,
		"categories":   len(report.Categories),
		"topGaps":      len(report.TopGaps),
	})

	return &Output{OrgID: input.OrgID, Report: report}, nil
}

// rubric returns the inline document when one was sent, otherwise the stored snapshot.
func (h *Handler) rubric(ctx context.Context, input *Input) ([]byte, error) {
	inline := bytes.TrimSpace(input.ScoredRubric)
	if len(inline) > 0 && !bytes.Equal(inline, []byte("null")) {
		return inline, nil
	}
	if input.OrgID == "" {
		return nil, errors.NewInvalidInputError("orgId is required when scoredRubric is absent")
	}
	if h.store == nil {
		return nil, errors.NewReadinessLoadFailedError(input.OrgID, stderrors.New("no readiness store configured"))
	}

	raw, err := h.store.Load(ctx, input.OrgID)
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.NewReadinessNotFoundError(input.OrgID)
	}
	if err != nil {
		return nil, errors.NewReadinessLoadFailedError(input.OrgID, err)
	}
	return raw, nil
}

// completeJob and failJob send on a fresh context: the job context may
// already be past its deadline.
func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output, start time.Time) {
	ctx := context.Background()
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.failJob(client, job, err, start)
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
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

// cmd/tools/worker-generator/templates.go
package main

const handlerTemplate = `// internal/workers/{{ .Dir }}/{{ .ID }}/handler.go
package {{ .PackageName }}

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
)

const (
	TaskType = "{{ .TaskType }}"
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

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.NewInvalidInputError("input cannot be nil")
	}
	output := &Output{}
	return output, nil
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
`

const configTemplate = `// internal/workers/{{ .Dir }}/{{ .ID }}/config.go
package {{ .PackageName }}

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: {{ .TimeoutLiteral }},
	}
}
`

const modelsTemplate = `// internal/workers/{{ .Dir }}/{{ .ID }}/models.go
package {{ .PackageName }}

type Input struct {
{{ structFields .InputSchema }}
}

type Output struct {
{{ structFields .OutputSchema }}
}
`

const schemaTemplate = `// internal/workers/{{ .Dir }}/{{ .ID }}/schema.go
package {{ .PackageName }}

import "readiness-workers/internal/common/validation"

var inputSchema = validation.MustCompile(` + "`{{ .InputSchemaJSON }}`" + `)
`

const testTemplate = `package {{ .PackageName }}

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"readiness-workers/internal/common/errors"
	"readiness-workers/internal/common/logger"
)

func TestHandler_Execute_NilInput(t *testing.T) {
	h := NewHandler(LoadConfig(), nil, logger.NewTestLogger(t))

	_, err := h.Execute(context.Background(), nil)
	require.Error(t, err)

	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeInvalidInput, stdErr.Code)
}

func TestInputSchema_RejectsMalformedJSON(t *testing.T) {
	result := inputSchema.ValidateJSON([]byte("{not json"))
	assert.False(t, result.Valid)
}
`

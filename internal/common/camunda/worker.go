// internal/common/camunda/worker.go
package camunda

import (
	"sync"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	"readiness-workers/internal/common/config"
	"readiness-workers/internal/common/logger"
)

// JobWorkerOpener is the part of zbc.Client the registry needs.
type JobWorkerOpener interface {
	NewJobWorker() worker.JobWorkerBuilderStep1
}

var _ JobWorkerOpener = (zbc.Client)(nil)

// Registry opens job workers and closes them together on shutdown.
type Registry struct {
	client  JobWorkerOpener
	logger  logger.Logger
	mu      sync.Mutex
	workers map[string]worker.JobWorker
}

func NewRegistry(client JobWorkerOpener, log logger.Logger) *Registry {
	return &Registry{
		client:  client,
		logger:  log.WithFields(map[string]interface{}{"component": "worker-registry"}),
		workers: make(map[string]worker.JobWorker),
	}
}

// Start opens a worker for taskType unless it is disabled. It reports
// whether a worker was opened.
func (r *Registry) Start(taskType string, wcfg config.WorkerConfig, handler worker.JobHandler) bool {
	if !wcfg.Enabled {
		r.logger.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.workers[taskType]; exists {
		r.logger.Warn("worker already started", map[string]interface{}{"taskType": taskType})
		return false
	}

	r.workers[taskType] = r.client.NewJobWorker().
		JobType(taskType).
		Handler(handler).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(config.GetDuration(wcfg.Timeout)).
		Open()

	r.logger.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeout_ms":    wcfg.Timeout,
	})
	return true
}

// Started lists the task types with an open worker.
func (r *Registry) Started() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, 0, len(r.workers))
	for t := range r.workers {
		types = append(types, t)
	}
	return types
}

// Close stops polling on every worker and waits for in-flight jobs.
func (r *Registry) Close() {
	r.mu.Lock()
	workers := r.workers
	r.workers = make(map[string]worker.JobWorker)
	r.mu.Unlock()

	for taskType, w := range workers {
		w.Close()
		w.AwaitClose()
		r.logger.Info("worker stopped", map[string]interface{}{"taskType": taskType})
	}
}

// internal/common/camunda/worker.go
package camunda

import (
	"time"

	"marketplace-verification/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// JobHandler processes one activated job and completes, fails or throws it.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

type WorkerConfig struct {
	TaskType      string
	MaxJobsActive int
	Timeout       time.Duration
}

type CamundaWorker struct {
	worker   worker.JobWorker
	logger   logger.Logger
	taskType string
}

// NewWorker opens a job worker for cfg.TaskType on client.
func NewWorker(client zbc.Client, cfg WorkerConfig, handler JobHandler, log logger.Logger) *CamundaWorker {
	builder := client.NewJobWorker().
		JobType(cfg.TaskType).
		Handler(handler.Handle).
		MaxJobsActive(cfg.MaxJobsActive)
	if cfg.Timeout > 0 {
		builder = builder.Timeout(cfg.Timeout)
	}

	w := &CamundaWorker{
		worker:   builder.Open(),
		logger:   log.WithFields(map[string]interface{}{"taskType": cfg.TaskType}),
		taskType: cfg.TaskType,
	}
	w.logger.Info("worker started", map[string]interface{}{
		"maxJobsActive": cfg.MaxJobsActive,
		"timeout":       cfg.Timeout.String(),
	})
	return w
}

// Stop stops polling and waits for in-flight jobs to finish.
func (w *CamundaWorker) Stop() {
	w.logger.Info("stopping worker", nil)
	w.worker.Close()
	w.worker.AwaitClose()
}

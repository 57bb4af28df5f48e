// internal/workers/subscription/sweep-subscriptions/handler.go
package sweepsubscriptions

import (
	"context"
	"time"

	"marketplace-verification/internal/common/logger"
	"marketplace-verification/internal/common/validation"
	"marketplace-verification/internal/workers/jobs"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "sweep-subscriptions"

type Sweeper interface {
	SweepExpirations(ctx context.Context, now time.Time) (int, error)
}

type Handler struct {
	config  *Config
	sweeper Sweeper
	runner  *jobs.Runner
	now     func() time.Time
}

func NewHandler(config *Config, sweeper Sweeper, validator *validation.Validator, log logger.Logger) *Handler {
	return &Handler{
		config:  config,
		sweeper: sweeper,
		runner:  jobs.NewRunner(TaskType, config.Timeout, validator, log),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	jobs.Run(h.runner, client, job, h.Execute)
}

func (h *Handler) Execute(ctx context.Context, _ *Input) (*Output, error) {
	now := h.now()
	n, err := h.sweeper.SweepExpirations(ctx, now)
	if err != nil {
		return nil, err
	}
	return &Output{ExpiredCount: n, SweptAt: now.Format(time.RFC3339)}, nil
}

// internal/workers/subscription/decide-subscription/handler.go
package decidesubscription

import (
	"context"
	"fmt"
	"time"

	apperrors "marketplace-verification/internal/common/errors"
	"marketplace-verification/internal/common/logger"
	"marketplace-verification/internal/common/validation"
	"marketplace-verification/internal/models"
	"marketplace-verification/internal/workers/jobs"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "decide-subscription"

// Service is the part of the subscription gate this worker drives.
type Service interface {
	Approve(ctx context.Context, id string, now time.Time) (*models.SubscriptionRequest, error)
	Reject(ctx context.Context, id, reason string, now time.Time) (*models.SubscriptionRequest, error)
}

type Handler struct {
	config  *Config
	service Service
	runner  *jobs.Runner
	now     func() time.Time
}

func NewHandler(config *Config, service Service, validator *validation.Validator, log logger.Logger) *Handler {
	return &Handler{
		config:  config,
		service: service,
		runner:  jobs.NewRunner(TaskType, config.Timeout, validator, log),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	jobs.Run(h.runner, client, job, h.Execute)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	var (
		req *models.SubscriptionRequest
		err error
	)
	switch input.Decision {
	case jobs.DecisionApprove:
		req, err = h.service.Approve(ctx, input.RequestID, h.now())
	case jobs.DecisionReject:
		req, err = h.service.Reject(ctx, input.RequestID, input.Reason, h.now())
	default:
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown decision %q", input.Decision))
	}
	if err != nil {
		return nil, err
	}

	out := &Output{RequestID: req.ID, Status: string(req.Status)}
	if req.ValidUntil != nil {
		out.ValidUntil = req.ValidUntil.Format(time.RFC3339)
	}
	return out, nil
}

// internal/workers/payment/simulate-payout/handler.go
package simulatepayout

import (
	"context"
	"time"

	"marketplace-verification/internal/common/logger"
	"marketplace-verification/internal/common/validation"
	"marketplace-verification/internal/models"
	"marketplace-verification/internal/workers/jobs"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "simulate-payout"

type Service interface {
	SimulatePayout(ctx context.Context, id string) (*models.PaymentRequest, error)
}

type Handler struct {
	config  *Config
	service Service
	runner  *jobs.Runner
}

func NewHandler(config *Config, service Service, validator *validation.Validator, log logger.Logger) *Handler {
	return &Handler{
		config:  config,
		service: service,
		runner:  jobs.NewRunner(TaskType, config.Timeout, validator, log),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	jobs.Run(h.runner, client, job, h.Execute)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	p, err := h.service.SimulatePayout(ctx, input.PaymentID)
	if err != nil {
		return nil, err
	}

	out := &Output{
		PaymentID: p.ID,
		SellerID:  p.SellerID,
		Amount:    p.Amount,
		Channel:   string(p.Channel),
	}
	if p.PaidOutAt != nil {
		out.PaidOutAt = p.PaidOutAt.Format(time.RFC3339)
	}
	return out, nil
}

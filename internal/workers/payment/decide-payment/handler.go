// internal/workers/payment/decide-payment/handler.go
package decidepayment

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

const TaskType = "decide-payment"

type Service interface {
	Approve(ctx context.Context, id string, now time.Time) (*models.PaymentRequest, error)
	Reject(ctx context.Context, id, reason string, now time.Time) (*models.PaymentRequest, error)
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

// Execute confirms or rejects the payment. Confirmation moves the listing
// and opens the contract in the same transaction, so a ConflictError here
// means nothing was written.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	var (
		p   *models.PaymentRequest
		err error
	)
	switch input.Decision {
	case jobs.DecisionApprove:
		p, err = h.service.Approve(ctx, input.PaymentID, h.now())
	case jobs.DecisionReject:
		p, err = h.service.Reject(ctx, input.PaymentID, input.Reason, h.now())
	default:
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown decision %q", input.Decision))
	}
	if err != nil {
		return nil, err
	}

	return &Output{
		PaymentID: p.ID,
		Status:    string(p.Status),
		ListingID: p.ListingID,
		BuyerID:   p.BuyerID,
		SellerID:  p.SellerID,
	}, nil
}

// internal/workers/contract/decide-contract/handler.go
package decidecontract

import (
	"context"
	"fmt"

	apperrors "marketplace-verification/internal/common/errors"
	"marketplace-verification/internal/common/logger"
	"marketplace-verification/internal/common/validation"
	"marketplace-verification/internal/models"
	"marketplace-verification/internal/workers/jobs"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "decide-contract"

type Service interface {
	Validate(ctx context.Context, contractID, buyerID string) (*models.Contract, error)
	Reject(ctx context.Context, contractID, buyerID, reason string) (*models.Contract, error)
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

// Execute applies the buyer's decision on a contract. The listing status in
// the output is the one the decision moved the listing to.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	var (
		ct     *models.Contract
		status models.ListingStatus
		err    error
	)
	switch input.Decision {
	case jobs.DecisionValidate:
		ct, err = h.service.Validate(ctx, input.ContractID, input.BuyerID)
		if err == nil {
			status = ct.Type.ListingStatus()
		}
	case jobs.DecisionReject:
		ct, err = h.service.Reject(ctx, input.ContractID, input.BuyerID, input.Reason)
		status = models.ListingAvailable
	default:
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown decision %q", input.Decision))
	}
	if err != nil {
		return nil, err
	}

	return &Output{
		ContractID:    ct.ID,
		ListingID:     ct.ListingID,
		BuyerDecision: ct.BuyerDecision,
		ListingStatus: string(status),
		Note:          ct.Note,
	}, nil
}

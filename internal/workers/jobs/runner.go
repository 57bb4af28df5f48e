// Package jobs holds the plumbing shared by the verification job workers:
// input validation, decoding, timeouts, completion and error reporting.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	apperrors "marketplace-verification/internal/common/errors"
	"marketplace-verification/internal/common/logger"
	"marketplace-verification/internal/common/metrics"
	"marketplace-verification/internal/common/observability"
	"marketplace-verification/internal/common/validation"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultTimeout = 30 * time.Second

// Decision is the administrator's verdict carried by decide-* jobs.
type Decision string

const (
	DecisionApprove  Decision = "APPROVE"
	DecisionReject   Decision = "REJECT"
	DecisionValidate Decision = "VALIDATE"
)

type Runner struct {
	taskType  string
	timeout   time.Duration
	validator *validation.Validator
	errors    *apperrors.ErrorHandler
	logger    logger.Logger
}

// NewRunner builds a runner for taskType. validator may be nil, in which
// case variables are only decoded.
func NewRunner(taskType string, timeout time.Duration, validator *validation.Validator, log logger.Logger) *Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	log = log.WithFields(map[string]interface{}{"taskType": taskType})
	return &Runner{
		taskType:  taskType,
		timeout:   timeout,
		validator: validator,
		errors:    apperrors.NewErrorHandler(log),
		logger:    log,
	}
}

func (r *Runner) TaskType() string { return r.taskType }

// Decode validates variables against the activity schema and unmarshals
// them into a fresh I.
func Decode[I any](r *Runner, variables string) (*I, error) {
	if r.validator != nil {
		if err := r.validator.ValidateInput(r.taskType, variables); err != nil {
			return nil, err
		}
	}

	var in I
	if variables == "" {
		return &in, nil
	}
	if err := json.Unmarshal([]byte(variables), &in); err != nil {
		return nil, apperrors.NewInvalidJobInputError(r.taskType, []string{fmt.Sprintf("parse variables: %v", err)})
	}
	return &in, nil
}

// Run decodes the job, executes it under the runner's timeout and either
// completes the job with the output or reports the error to the broker.
func Run[I, O any](r *Runner, client worker.JobClient, job entities.Job, exec func(ctx context.Context, in *I) (*O, error)) {
	start := time.Now()
	status := "failed"
	metrics.WorkerJobsActive.WithLabelValues(r.taskType).Inc()

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	ctx, span := observability.StartSpan(ctx, "job."+r.taskType,
		attribute.Int64("job.key", job.Key),
		attribute.Int64("job.process_instance_key", job.ProcessInstanceKey),
	)
	defer func() {
		metrics.WorkerJobsActive.WithLabelValues(r.taskType).Dec()
		metrics.WorkerJobDuration.WithLabelValues(r.taskType).Observe(time.Since(start).Seconds())
		observability.RecordJob(ctx, r.taskType, status, time.Since(start))
		span.End()
	}()

	r.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	in, err := Decode[I](r, job.Variables)
	if err != nil {
		r.fail(ctx, client, job, err)
		return
	}

	out, err := exec(ctx, in)
	if err != nil {
		r.fail(ctx, client, job, err)
		return
	}

	cmd, err := client.NewCompleteJobCommand().JobKey(job.Key).VariablesFromObject(out)
	if err != nil {
		r.fail(ctx, client, job, apperrors.NewInvalidJobInputError(r.taskType, []string{fmt.Sprintf("encode output: %v", err)}))
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		r.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}

	status = "completed"
	metrics.WorkerJobsCompleted.WithLabelValues(r.taskType).Inc()
	r.logger.Info("job completed", map[string]interface{}{
		"jobKey":   job.Key,
		"duration": time.Since(start).String(),
	})
}

func (r *Runner) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	code := string(apperrors.CodeOf(err))
	metrics.WorkerJobsFailed.WithLabelValues(r.taskType, code).Inc()
	trace.SpanFromContext(ctx).RecordError(err)
	trace.SpanFromContext(ctx).SetStatus(codes.Error, code)
	r.errors.HandleJobError(ctx, client, job, err)
}

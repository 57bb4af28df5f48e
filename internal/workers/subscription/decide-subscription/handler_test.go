package decidesubscription

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	apperrors "marketplace-verification/internal/common/errors"
	"marketplace-verification/internal/common/logger"
	"marketplace-verification/internal/common/validation"
	"marketplace-verification/internal/models"
	"marketplace-verification/internal/workers/jobs"
	"marketplace-verification/pkg/registry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Service Implementation
// ==========================

type MockService struct {
	mock.Mock
}

func (m *MockService) Approve(ctx context.Context, id string, now time.Time) (*models.SubscriptionRequest, error) {
	args := m.Called(ctx, id, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SubscriptionRequest), args.Error(1)
}

func (m *MockService) Reject(ctx context.Context, id, reason string, now time.Time) (*models.SubscriptionRequest, error) {
	args := m.Called(ctx, id, reason, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SubscriptionRequest), args.Error(1)
}

// ==========================
// Test Helper Functions
// ==========================

var t0 = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func createTestHandler(t *testing.T, service Service) *Handler {
	v, err := validation.NewValidator(registry.DefaultRegistry())
	require.NoError(t, err)
	h := NewHandler(LoadConfig(), service, v, logger.NewTestLogger(t))
	h.now = func() time.Time { return t0 }
	return h
}

func createMockJob(variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:       1,
		Type:      TaskType,
		Retries:   3,
		Variables: string(variablesJSON),
	}}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Approve(t *testing.T) {
	service := new(MockService)
	until := t0.AddDate(0, 1, 0)
	service.On("Approve", mock.Anything, "s-1", t0).Return(&models.SubscriptionRequest{
		ID: "s-1", Status: models.SubscriptionActive, ValidUntil: &until,
	}, nil)

	output, err := createTestHandler(t, service).Execute(context.Background(), &Input{RequestID: "s-1", Decision: jobs.DecisionApprove})

	require.NoError(t, err)
	assert.Equal(t, "ACTIVE", output.Status)
	assert.Equal(t, "2026-06-01T09:00:00Z", output.ValidUntil)
	service.AssertExpectations(t)
}

func TestHandler_Execute_Reject(t *testing.T) {
	service := new(MockService)
	service.On("Reject", mock.Anything, "s-1", "amount mismatch", t0).Return(&models.SubscriptionRequest{
		ID: "s-1", Status: models.SubscriptionRejected,
	}, nil)

	output, err := createTestHandler(t, service).Execute(context.Background(), &Input{
		RequestID: "s-1", Decision: jobs.DecisionReject, Reason: "amount mismatch",
	})

	require.NoError(t, err)
	assert.Equal(t, "REJECTED", output.Status)
	assert.Empty(t, output.ValidUntil)
	service.AssertExpectations(t)
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name     string
		input    *Input
		setup    func(m *MockService)
		wantCode apperrors.ErrorCode
	}{
		{
			name:     "unknown decision",
			input:    &Input{RequestID: "s-1", Decision: "MAYBE"},
			setup:    func(*MockService) {},
			wantCode: apperrors.ErrCodeValidation,
		},
		{
			name:  "already decided",
			input: &Input{RequestID: "s-1", Decision: jobs.DecisionApprove},
			setup: func(m *MockService) {
				m.On("Approve", mock.Anything, "s-1", t0).Return(nil, apperrors.NewAlreadyDecidedError("subscription", "s-1", "ACTIVE"))
			},
			wantCode: apperrors.ErrCodeAlreadyDecided,
		},
		{
			name:  "unknown request",
			input: &Input{RequestID: "ghost", Decision: jobs.DecisionReject},
			setup: func(m *MockService) {
				m.On("Reject", mock.Anything, "ghost", "", t0).Return(nil, apperrors.NewNotFoundError("subscription", "ghost"))
			},
			wantCode: apperrors.ErrCodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(MockService)
			tt.setup(service)

			output, err := createTestHandler(t, service).Execute(context.Background(), tt.input)

			assert.Nil(t, output)
			assert.Equal(t, tt.wantCode, apperrors.CodeOf(err))
			service.AssertExpectations(t)
		})
	}
}

func TestHandler_DecodeJobVariables(t *testing.T) {
	h := createTestHandler(t, new(MockService))

	job := createMockJob(map[string]interface{}{"requestId": "s-1", "decision": "REJECT", "reason": "blurry"})
	in, err := jobs.Decode[Input](h.runner, job.Variables)
	require.NoError(t, err)
	assert.Equal(t, &Input{RequestID: "s-1", Decision: jobs.DecisionReject, Reason: "blurry"}, in)

	job = createMockJob(map[string]interface{}{"decision": "APPROVE"})
	_, err = jobs.Decode[Input](h.runner, job.Variables)
	assert.Equal(t, apperrors.ErrCodeInvalidJobInput, apperrors.CodeOf(err))
}

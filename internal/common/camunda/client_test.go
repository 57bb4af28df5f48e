package camunda

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"marketplace-verification/internal/common/errors"
	"marketplace-verification/internal/common/logger"

	"github.com/stretchr/testify/assert"
)

func TestMapZeebeError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  errors.ErrorCode
		retryable bool
	}{
		{"unavailable", stderrors.New("rpc error: code = Unavailable desc = connection refused"), errors.ErrCodeExternalService, true},
		{"deadline", stderrors.New("rpc error: code = DeadlineExceeded desc = context deadline exceeded"), errors.ErrCodeTimeout, true},
		{"permission", stderrors.New("rpc error: code = PermissionDenied desc = permission denied"), errors.ErrCodeForbidden, false},
		{"not found", stderrors.New("rpc error: code = NotFound desc = job not found"), errors.ErrCodeNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := mapZeebeError(tt.err, "topology")
			assert.Equal(t, tt.wantCode, errors.CodeOf(mapped))
			assert.Equal(t, tt.retryable, isRetryableZeebeError(mapped))
		})
	}
}

func TestWithRetry(t *testing.T) {
	c := &Client{config: &ClientConfig{RetryConfig: &RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   2 * time.Millisecond,
	}}}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := c.withRetry(context.Background(), logger.NewTestLogger(t), "op", func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.NewExternalServiceError("zeebe", stderrors.New("unavailable"))
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on permanent failure", func(t *testing.T) {
		calls := 0
		err := c.withRetry(context.Background(), logger.NewTestLogger(t), "op", func(context.Context) error {
			calls++
			return errors.NewForbiddenError("denied")
		})
		assert.ErrorIs(t, err, errors.ErrForbidden)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		err := c.withRetry(context.Background(), logger.NewTestLogger(t), "op", func(context.Context) error {
			calls++
			return errors.NewTimeoutError("zeebe", stderrors.New("deadline exceeded"))
		})
		assert.Error(t, err)
		assert.Equal(t, 4, calls)
	})
}

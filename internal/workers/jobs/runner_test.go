package jobs

import (
	"testing"

	apperrors "marketplace-verification/internal/common/errors"
	"marketplace-verification/internal/common/logger"
	"marketplace-verification/internal/common/validation"
	"marketplace-verification/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type paymentInput struct {
	PaymentID string   `json:"paymentId"`
	Decision  Decision `json:"decision"`
	Reason    string   `json:"reason"`
}

func createTestRunner(t *testing.T, withValidator bool) *Runner {
	var v *validation.Validator
	if withValidator {
		var err error
		v, err = validation.NewValidator(registry.DefaultRegistry())
		require.NoError(t, err)
	}
	return NewRunner("decide-payment", 0, v, logger.NewTestLogger(t))
}

func TestDecode(t *testing.T) {
	r := createTestRunner(t, true)

	in, err := Decode[paymentInput](r, `{"paymentId":"p-1","decision":"REJECT","reason":"blurry"}`)
	require.NoError(t, err)
	assert.Equal(t, "p-1", in.PaymentID)
	assert.Equal(t, DecisionReject, in.Decision)
	assert.Equal(t, "blurry", in.Reason)
}

func TestDecode_SchemaViolation(t *testing.T) {
	r := createTestRunner(t, true)

	_, err := Decode[paymentInput](r, `{"decision":"APPROVE"}`)
	assert.Equal(t, apperrors.ErrCodeInvalidJobInput, apperrors.CodeOf(err))
}

func TestDecode_WithoutValidator(t *testing.T) {
	r := createTestRunner(t, false)

	in, err := Decode[paymentInput](r, "")
	require.NoError(t, err)
	assert.Empty(t, in.PaymentID)

	_, err = Decode[paymentInput](r, `{"paymentId": 7}`)
	assert.Equal(t, apperrors.ErrCodeInvalidJobInput, apperrors.CodeOf(err))
}

func TestNewRunner_DefaultTimeout(t *testing.T) {
	r := createTestRunner(t, false)
	assert.Equal(t, DefaultTimeout, r.timeout)
	assert.Equal(t, "decide-payment", r.TaskType())
}

package services

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/helian-labs/chatvault/internal/core/domain"
)

func TestRetryPolicyNextDelay(t *testing.T) {
	policy := DefaultRetryPolicy()

	assert.Equal(t, 1*time.Second, policy.NextDelay(1))
	assert.Equal(t, 2*time.Second, policy.NextDelay(2))
	assert.Equal(t, 4*time.Second, policy.NextDelay(3))
	assert.Equal(t, 16*time.Second, policy.NextDelay(5))

	// Capped at MaxDelay.
	assert.Equal(t, 60*time.Second, policy.NextDelay(10))

	// Degenerate attempt numbers clamp to the first delay.
	assert.Equal(t, 1*time.Second, policy.NextDelay(0))
}

func TestRetryPolicyRetryable(t *testing.T) {
	policy := DefaultRetryPolicy()

	assert.True(t, policy.Retryable(&domain.TransientError{Err: errors.New("reset")}))
	assert.True(t, policy.Retryable(fmt.Errorf("%w: disk full", domain.ErrIndexCommit)))

	assert.False(t, policy.Retryable(nil))
	assert.False(t, policy.Retryable(errors.New("schema mismatch")))
	assert.False(t, policy.Retryable(domain.ErrInvalidInput))
}

package services

import (
	"errors"
	"math"
	"time"

	"github.com/helian-labs/chatvault/internal/core/domain"
)

// RetryPolicy controls how failed batches are retried with exponential
// backoff. Flood waits are not retries; they carry their own wait and are
// handled by the rate limiter.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// DefaultRetryPolicy returns a RetryPolicy with sensible defaults:
// 5 attempts, 1s initial delay, 2x multiplier, 60s max delay.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:  5,
		InitialDelay: 1 * time.Second,
		Multiplier:   2.0,
		MaxDelay:     60 * time.Second,
	}
}

// Retryable classifies an error. Transient source failures and index
// commit failures are retryable; everything else is permanent for the
// batch.
func (p *RetryPolicy) Retryable(err error) bool {
	if err == nil {
		return false
	}
	if domain.IsTransient(err) {
		return true
	}
	return errors.Is(err, domain.ErrIndexCommit)
}

// NextDelay returns the backoff delay for the given attempt number
// (1-indexed). The delay is InitialDelay * Multiplier^(attempt-1), capped
// at MaxDelay.
func (p *RetryPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

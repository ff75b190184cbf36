package pipeline

import (
	"context"
	"errors"
	"time"
)

// LinearRetryPolicy retries failed date tasks with a linear backoff of
// attempt * BaseDelay. Retry decisions live here so the orchestrator carries
// a single policy instead of ad-hoc loops at each call site.
type LinearRetryPolicy struct {
	maxRetries int
	baseDelay  time.Duration
}

// NewLinearRetryPolicy builds a policy with the pipeline defaults
// (3 retries, 5s base delay).
func NewLinearRetryPolicy() *LinearRetryPolicy {
	return &LinearRetryPolicy{
		maxRetries: 3,
		baseDelay:  5 * time.Second,
	}
}

// NewLinearRetryPolicyWith builds a policy with explicit knobs. Non-positive
// values fall back to the defaults.
func NewLinearRetryPolicyWith(maxRetries int, baseDelay time.Duration) *LinearRetryPolicy {
	p := NewLinearRetryPolicy()
	if maxRetries > 0 {
		p.maxRetries = maxRetries
	}
	if baseDelay > 0 {
		p.baseDelay = baseDelay
	}
	return p
}

// MaxRetries exposes the retry cap for bookkeeping.
func (p *LinearRetryPolicy) MaxRetries() int {
	return p.maxRetries
}

// ShouldRetry decides whether a date whose pipeline failed with err should
// be requeued. attempt is the number of failures so far, including this one.
func (p *LinearRetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.maxRetries {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Retryable
	}
	return true
}

// Backoff returns the wait before re-enqueueing after the given attempt.
func (p *LinearRetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(attempt) * p.baseDelay
}

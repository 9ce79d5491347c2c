package grader

import (
	"context"
	"strings"
	"time"
)

// quotaSignatures are matched as substrings against error messages to
// detect quota/rate-limit failures. The oracle's error surface is not
// statically typed, so string matching is the contract here.
var quotaSignatures = []string{"quota", "429", "rate limit", "exceeded"}

// IsQuotaError reports whether err looks like a quota or rate-limit
// rejection from the oracle provider.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range quotaSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

// RetryPolicy controls how oracle calls are retried. Quota errors back
// off exponentially (BaseDelay doubling per attempt, capped at MaxDelay);
// other errors wait BaseDelay flat. Both exhaust MaxAttempts identically.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy returns the policy used by the grading pipeline
// when config supplies no override.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 7,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    30 * time.Second,
	}
}

// delay computes the sleep before the next attempt. attempt is zero-based.
func (p RetryPolicy) delay(attempt int, err error) time.Duration {
	if !IsQuotaError(err) {
		return p.BaseDelay
	}
	d := p.BaseDelay << uint(attempt)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Retry runs fn up to p.MaxAttempts times, sleeping between attempts
// according to the policy. It returns nil on the first success, the
// last error once attempts are exhausted, or the context error if the
// context is cancelled while waiting.
func Retry(ctx context.Context, p RetryPolicy, fn func(ctx context.Context) error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == p.MaxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.delay(attempt, lastErr)):
		}
	}
	return lastErr
}

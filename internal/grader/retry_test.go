package grader

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestIsQuotaError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{errors.New("quota exceeded for this key"), true},
		{errors.New("HTTP 429 Too Many Requests"), true},
		{errors.New("Rate Limit reached"), true},
		{errors.New("monthly budget exceeded"), true},
		{errors.New("connection refused"), false},
		{errors.New("invalid request"), false},
		{nil, false},
	}

	for _, tt := range tests {
		if got := IsQuotaError(tt.err); got != tt.want {
			t.Errorf("IsQuotaError(%v) = %t, want %t", tt.err, got, tt.want)
		}
	}
}

func TestRetryStopsOnSuccess(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond}

	calls := 0
	err := Retry(context.Background(), policy, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry() = %v, want nil", err)
	}
	if calls != 3 {
		t.Errorf("fn called %d times, want 3", calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 4, BaseDelay: time.Millisecond}
	wantErr := errors.New("still broken")

	calls := 0
	err := Retry(context.Background(), policy, func(ctx context.Context) error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Retry() = %v, want last error %v", err, wantErr)
	}
	if calls != policy.MaxAttempts {
		t.Errorf("fn called %d times, want %d", calls, policy.MaxAttempts)
	}
}

func TestRetryQuotaErrorsExhaustIdentically(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	calls := 0
	err := Retry(context.Background(), policy, func(ctx context.Context) error {
		calls++
		return errors.New("429 rate limit")
	})
	if err == nil {
		t.Fatal("Retry() = nil, want error after exhaustion")
	}
	if calls != policy.MaxAttempts {
		t.Errorf("fn called %d times, want %d", calls, policy.MaxAttempts)
	}
}

func TestRetryHonorsContextCancel(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 10, BaseDelay: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- Retry(ctx, policy, func(ctx context.Context) error {
			calls++
			return errors.New("fails forever")
		})
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Retry() = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Retry did not return after cancel")
	}
	if calls != 1 {
		t.Errorf("fn called %d times after cancel, want 1", calls)
	}
}

func TestDelayBackoff(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 7, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}
	quotaErr := errors.New("quota exceeded")
	otherErr := errors.New("boom")

	tests := []struct {
		attempt int
		err     error
		want    time.Duration
	}{
		{0, quotaErr, 100 * time.Millisecond},
		{1, quotaErr, 200 * time.Millisecond},
		{3, quotaErr, 800 * time.Millisecond},
		{4, quotaErr, time.Second}, // capped
		{0, otherErr, 100 * time.Millisecond},
		{5, otherErr, 100 * time.Millisecond}, // flat for non-quota errors
	}

	for _, tt := range tests {
		if got := policy.delay(tt.attempt, tt.err); got != tt.want {
			t.Errorf("delay(%d, %v) = %v, want %v", tt.attempt, tt.err, got, tt.want)
		}
	}
}

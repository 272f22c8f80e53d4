package llm

import (
	"context"
	"testing"
	"time"
)

func TestRetryPolicyDelay(t *testing.T) {
	policy := RetryPolicy{
		BaseDelay:         1.0,
		BackoffMultiplier: 2.0,
		MaxDelay:          60.0,
		Jitter:            false,
	}

	delays := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
	}

	for i, expected := range delays {
		if got := policy.Delay(i); got != expected {
			t.Errorf("attempt %d: expected %v, got %v", i, expected, got)
		}
	}
}

func TestRetryPolicyDelayCapped(t *testing.T) {
	policy := RetryPolicy{
		BaseDelay:         1.0,
		BackoffMultiplier: 2.0,
		MaxDelay:          5.0,
		Jitter:            false,
	}

	if got := policy.Delay(10); got != 5*time.Second {
		t.Errorf("expected 5s (capped), got %v", got)
	}
}

func TestRetryPolicyDelayJitterBounds(t *testing.T) {
	policy := RetryPolicy{
		BaseDelay:         1.0,
		BackoffMultiplier: 2.0,
		MaxDelay:          60.0,
		Jitter:            true,
	}

	for i := 0; i < 100; i++ {
		got := policy.Delay(0)
		if got < 500*time.Millisecond || got > 1500*time.Millisecond {
			t.Fatalf("jittered delay out of [0.5s, 1.5s]: %v", got)
		}
	}
}

func TestRetryHonorsRetryAfter(t *testing.T) {
	after := 120.0 // exceeds MaxDelay; should give up immediately
	rateLimited := &RateLimitError{ProviderError: ProviderError{
		ClientError: ClientError{Message: "slow down"},
		StatusCode:  429,
		Retryable:   true,
		RetryAfter:  &after,
	}}

	calls := 0
	policy := RetryPolicy{MaxRetries: 3, BaseDelay: 0, MaxDelay: 1.0, BackoffMultiplier: 1}
	_, err := Retry(context.Background(), policy, func(ctx context.Context) (int, error) {
		calls++
		return 0, rateLimited
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("Retry-After beyond MaxDelay should short-circuit; got %d calls", calls)
	}
}

func TestRetryCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	serverErr := &ServerError{ProviderError: ProviderError{
		ClientError: ClientError{Message: "down"}, StatusCode: 500, Retryable: true,
	}}
	policy := RetryPolicy{MaxRetries: 2, BaseDelay: 10.0, MaxDelay: 10.0, BackoffMultiplier: 1}

	start := time.Now()
	_, err := Retry(ctx, policy, func(ctx context.Context) (int, error) {
		return 0, serverErr
	})
	if err == nil {
		t.Fatal("expected abort error")
	}
	if _, ok := err.(*AbortError); !ok {
		t.Errorf("expected AbortError, got %T", err)
	}
	if time.Since(start) > time.Second {
		t.Error("cancelled context should not wait out the backoff delay")
	}
}

func TestRetryOnRetryCallback(t *testing.T) {
	var attempts []int
	policy := RetryPolicy{
		MaxRetries: 2, BaseDelay: 0, MaxDelay: 0, BackoffMultiplier: 1,
		OnRetry: func(err error, attempt int, delay time.Duration) {
			attempts = append(attempts, attempt)
		},
	}
	serverErr := &ServerError{ProviderError: ProviderError{
		ClientError: ClientError{Message: "down"}, StatusCode: 500, Retryable: true,
	}}

	_, _ = Retry(context.Background(), policy, func(ctx context.Context) (int, error) {
		return 0, serverErr
	})
	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("expected callbacks for attempts [1 2], got %v", attempts)
	}
}

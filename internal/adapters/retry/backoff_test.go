package retry

import (
	"context"
	"errors"
	"net"
	"syscall"
	"testing"
	"time"
)

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
		{
			name:     "context canceled",
			err:      context.Canceled,
			expected: false,
		},
		{
			name:     "context deadline exceeded",
			err:      context.DeadlineExceeded,
			expected: false,
		},
		{
			name:     "not ready",
			err:      ErrNotReady,
			expected: true,
		},
		{
			name:     "wrapped not ready",
			err:      errors.Join(errors.New("probe"), ErrNotReady),
			expected: true,
		},
		{
			name:     "connection refused",
			err:      &net.OpError{Err: syscall.ECONNREFUSED},
			expected: true,
		},
		{
			name:     "connection reset",
			err:      &net.OpError{Err: syscall.ECONNRESET},
			expected: true,
		},
		{
			name:     "broken pipe",
			err:      &net.OpError{Err: syscall.EPIPE},
			expected: true,
		},
		{
			name:     "generic error",
			err:      errors.New("some error"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsRetryableError(tt.err)
			if result != tt.expected {
				t.Errorf("IsRetryableError(%v) = %v, want %v", tt.err, result, tt.expected)
			}
		})
	}
}

func TestWithBackoff_Success(t *testing.T) {
	cfg := BackoffConfig{
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     100 * time.Millisecond,
		MaxRetries:      3,
		Multiplier:      2.0,
	}

	attempts := 0
	fn := func() error {
		attempts++
		return nil
	}

	ctx := context.Background()
	err := WithBackoff(ctx, cfg, fn)

	if err != nil {
		t.Errorf("WithBackoff() error = %v, want nil", err)
	}

	if attempts != 1 {
		t.Errorf("WithBackoff() attempts = %d, want 1", attempts)
	}
}

func TestWithBackoff_NotReadyUntilThirdProbe(t *testing.T) {
	cfg := BackoffConfig{
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     100 * time.Millisecond,
		MaxRetries:      3,
		Multiplier:      2.0,
	}

	attempts := 0
	fn := func() error {
		attempts++
		if attempts < 3 {
			return ErrNotReady
		}
		return nil
	}

	ctx := context.Background()
	err := WithBackoff(ctx, cfg, fn)

	if err != nil {
		t.Errorf("WithBackoff() error = %v, want nil", err)
	}

	if attempts != 3 {
		t.Errorf("WithBackoff() attempts = %d, want 3", attempts)
	}
}

func TestWithBackoff_RetryableError(t *testing.T) {
	cfg := BackoffConfig{
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     100 * time.Millisecond,
		MaxRetries:      3,
		Multiplier:      2.0,
	}

	attempts := 0
	fn := func() error {
		attempts++
		if attempts < 3 {
			return &net.OpError{Err: syscall.ECONNREFUSED}
		}
		return nil
	}

	ctx := context.Background()
	err := WithBackoff(ctx, cfg, fn)

	if err != nil {
		t.Errorf("WithBackoff() error = %v, want nil", err)
	}

	if attempts != 3 {
		t.Errorf("WithBackoff() attempts = %d, want 3", attempts)
	}
}

func TestWithBackoff_NonRetryableError(t *testing.T) {
	cfg := BackoffConfig{
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     100 * time.Millisecond,
		MaxRetries:      3,
		Multiplier:      2.0,
	}

	attempts := 0
	expectedErr := errors.New("non-retryable error")
	fn := func() error {
		attempts++
		return expectedErr
	}

	ctx := context.Background()
	err := WithBackoff(ctx, cfg, fn)

	if err == nil {
		t.Error("WithBackoff() error = nil, want non-nil")
	}

	if attempts != 1 {
		t.Errorf("WithBackoff() attempts = %d, want 1 (should not retry non-retryable errors)", attempts)
	}
}

func TestWithBackoff_MaxRetriesExceeded(t *testing.T) {
	cfg := BackoffConfig{
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     100 * time.Millisecond,
		MaxRetries:      3,
		Multiplier:      2.0,
	}

	attempts := 0
	fn := func() error {
		attempts++
		return ErrNotReady
	}

	ctx := context.Background()
	err := WithBackoff(ctx, cfg, fn)

	if err == nil {
		t.Error("WithBackoff() error = nil, want non-nil")
	}

	if !errors.Is(err, ErrNotReady) {
		t.Errorf("WithBackoff() error = %v, want wrapped ErrNotReady", err)
	}

	// Should attempt 4 times (initial + 3 retries)
	expectedAttempts := cfg.MaxRetries + 1
	if attempts != expectedAttempts {
		t.Errorf("WithBackoff() attempts = %d, want %d", attempts, expectedAttempts)
	}
}

func TestWithBackoff_ContextCanceled(t *testing.T) {
	cfg := BackoffConfig{
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     1 * time.Second,
		MaxRetries:      5,
		Multiplier:      2.0,
	}

	attempts := 0
	fn := func() error {
		attempts++
		return ErrNotReady
	}

	ctx, cancel := context.WithCancel(context.Background())

	// Cancel after first attempt
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err := WithBackoff(ctx, cfg, fn)

	if err != context.Canceled {
		t.Errorf("WithBackoff() error = %v, want context.Canceled", err)
	}

	// Should have attempted at least once
	if attempts < 1 {
		t.Errorf("WithBackoff() attempts = %d, want at least 1", attempts)
	}
}

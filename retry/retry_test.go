package retry

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

// timeoutError satisfies net.Error for retryable-failure tests.
type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func fastConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDo(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds first try", func(t *testing.T) {
		calls := 0
		err := Do(ctx, fastConfig(), func(context.Context) error {
			calls++
			return nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})

	t.Run("retries transient errors", func(t *testing.T) {
		calls := 0
		err := Do(ctx, fastConfig(), func(context.Context) error {
			calls++
			if calls < 3 {
				return timeoutError{}
			}
			return nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if calls != 3 {
			t.Errorf("expected 3 calls, got %d", calls)
		}
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		err := Do(ctx, fastConfig(), func(context.Context) error {
			calls++
			return timeoutError{}
		})
		if !errors.Is(err, ErrMaxRetries) {
			t.Errorf("expected ErrMaxRetries, got %v", err)
		}
		if calls != 4 {
			t.Errorf("expected 4 calls, got %d", calls)
		}
		var re *Error
		if !errors.As(err, &re) || re.Attempts != 4 {
			t.Errorf("unexpected retry error: %v", err)
		}
	})

	t.Run("permanent error stops immediately", func(t *testing.T) {
		calls := 0
		cause := errors.New("bad credentials")
		err := Do(ctx, fastConfig(), func(context.Context) error {
			calls++
			return cause
		})
		if !errors.Is(err, ErrNotRetryable) {
			t.Errorf("expected ErrNotRetryable, got %v", err)
		}
		if !errors.Is(err, cause) {
			t.Errorf("expected cause to be wrapped, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})

	t.Run("cancelled context stops retrying", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		calls := 0
		err := Do(cancelled, fastConfig(), func(context.Context) error {
			calls++
			cancel()
			return timeoutError{}
		})
		if !errors.Is(err, ErrContextCanceled) {
			t.Errorf("expected ErrContextCanceled, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})
}

func TestDoWithResult(t *testing.T) {
	ctx := context.Background()

	calls := 0
	got, err := DoWithResult(ctx, fastConfig(), func(context.Context) (string, error) {
		calls++
		if calls < 2 {
			return "", timeoutError{}
		}
		return "ready", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ready" {
		t.Errorf("expected ready, got %q", got)
	}
}

func TestDefaultIsRetryable(t *testing.T) {
	var netErr net.Error = timeoutError{}
	if !DefaultIsRetryable(netErr) {
		t.Error("network errors must be retryable")
	}
	if DefaultIsRetryable(nil) {
		t.Error("nil must not be retryable")
	}
	if DefaultIsRetryable(context.Canceled) {
		t.Error("context.Canceled must not be retryable")
	}
	if DefaultIsRetryable(errors.New("boom")) {
		t.Error("plain errors must not be retryable")
	}
}

func TestBackoffFor(t *testing.T) {
	cfg := applyDefaults(Config{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Second,
		Multiplier:     2.0,
		Jitter:         0, // deterministic
	})

	if got := backoffFor(cfg, 0); got != 100*time.Millisecond {
		t.Errorf("attempt 0: %v", got)
	}
	if got := backoffFor(cfg, 2); got != 400*time.Millisecond {
		t.Errorf("attempt 2: %v", got)
	}
	// Capped at MaxBackoff.
	if got := backoffFor(cfg, 10); got != time.Second {
		t.Errorf("attempt 10: %v", got)
	}
}

package retry

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

type tempErr struct{ temporary bool }

func (e tempErr) Error() string   { return "temp" }
func (e tempErr) Temporary() bool { return e.temporary }

// instant заменяет ожидание мгновенным срабатыванием и запоминает задержки.
func instant(waits *[]time.Duration) func(time.Duration) <-chan time.Time {
	return func(d time.Duration) <-chan time.Time {
		*waits = append(*waits, d)
		ch := make(chan time.Time, 1)
		ch <- time.Now()
		return ch
	}
}

func TestDefaultRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"eof", io.ErrUnexpectedEOF, true},
		{"temporary", tempErr{true}, true},
		{"not temporary", tempErr{false}, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultRetryable(tt.err); got != tt.want {
				t.Errorf("DefaultRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	var waits []time.Duration
	cfg := Config{MaxAttempts: 3, InitialDelay: 10 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2, after: instant(&waits)}

	calls := 0
	err := Do(context.Background(), cfg, func(context.Context) error {
		calls++
		if calls < 3 {
			return tempErr{true}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if len(waits) != 2 || waits[0] != 10*time.Millisecond || waits[1] != 20*time.Millisecond {
		t.Errorf("waits = %v, want [10ms 20ms]", waits)
	}
}

func TestDo_StopsOnNonRetryable(t *testing.T) {
	var waits []time.Duration
	cfg := Config{MaxAttempts: 5, InitialDelay: time.Millisecond, after: instant(&waits)}

	boom := errors.New("boom")
	calls := 0
	err := Do(context.Background(), cfg, func(context.Context) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_PermanentIsUnwrapped(t *testing.T) {
	var waits []time.Duration
	cfg := Config{MaxAttempts: 5, InitialDelay: time.Millisecond, after: instant(&waits)}

	bad := errors.New("malformed json")
	calls := 0
	err := DoWithRetryable(context.Background(), cfg, func(context.Context) error {
		calls++
		return Permanent(bad)
	}, func(error) bool { return true })
	if err != bad {
		t.Fatalf("err = %v, want the unwrapped permanent error", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if IsPermanent(err) {
		t.Error("returned error should no longer be marked permanent")
	}
}

func TestDo_Exhausted(t *testing.T) {
	var waits []time.Duration
	cfg := Config{MaxAttempts: 3, InitialDelay: time.Millisecond, after: instant(&waits)}

	err := Do(context.Background(), cfg, func(context.Context) error { return tempErr{true} })
	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("err = %T, want *ExhaustedError", err)
	}
	if ex.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", ex.Attempts)
	}
	if !errors.As(err, new(tempErr)) {
		t.Error("ExhaustedError should unwrap to the last error")
	}
}

func TestDo_ContextCanceledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, DefaultConfig(), func(context.Context) error {
		calls++
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 0 {
		t.Errorf("calls = %d, want 0", calls)
	}
}

func TestDo_InvalidConfig(t *testing.T) {
	if err := Do(context.Background(), Config{}, func(context.Context) error { return nil }); err == nil {
		t.Error("expected error for zero config")
	}
	cfg := Config{MaxAttempts: 1, InitialDelay: time.Minute, MaxDelay: time.Second}
	if err := Do(context.Background(), cfg, func(context.Context) error { return nil }); err == nil {
		t.Error("expected error when InitialDelay > MaxDelay")
	}
}

func TestBackoff_JitterStaysInRange(t *testing.T) {
	cfg := Config{MaxAttempts: 10, InitialDelay: 100 * time.Millisecond, MaxDelay: 400 * time.Millisecond, Multiplier: 2, Jitter: true}
	if err := cfg.normalize(); err != nil {
		t.Fatal(err)
	}
	for attempt := 1; attempt <= 6; attempt++ {
		for i := 0; i < 50; i++ {
			d := cfg.backoff(attempt)
			if d <= 0 || d > cfg.MaxDelay {
				t.Fatalf("attempt %d: backoff %v out of range", attempt, d)
			}
		}
	}
}

func TestOnRetryCallback(t *testing.T) {
	var waits []time.Duration
	var seen []int
	cfg := Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		OnRetry:      func(attempt int, _ error, _ time.Duration) { seen = append(seen, attempt) },
		after:        instant(&waits),
	}
	_ = Do(context.Background(), cfg, func(context.Context) error { return tempErr{true} })
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Errorf("OnRetry attempts = %v, want [1 2]", seen)
	}
}

package agent

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPolicyExhaustion(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	base := 10 * time.Millisecond

	start := time.Now()
	err := Policy{MaxAttempts: 3, Backoff: LinearBackoff(base)}.Do(context.Background(), func(context.Context) error {
		calls++
		return boom
	})
	elapsed := time.Since(start)

	if calls != 3 {
		t.Fatalf("attempts = %d, want 3", calls)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	// Linear schedule sleeps base*1 then base*2 between the three attempts.
	if elapsed < 3*base {
		t.Fatalf("elapsed = %v, want at least %v", elapsed, 3*base)
	}
}

func TestPolicySucceedsMidway(t *testing.T) {
	calls := 0
	err := Policy{MaxAttempts: 3, Backoff: LinearBackoff(time.Millisecond)}.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("attempts = %d, want 2", calls)
	}
}

func TestPolicyRetryIfStopsEarly(t *testing.T) {
	calls := 0
	err := Policy{
		MaxAttempts: 5,
		Backoff:     LinearBackoff(time.Millisecond),
		RetryIf:     func(err error) bool { return !errors.Is(err, ErrCircuitOpen) },
	}.Do(context.Background(), func(context.Context) error {
		calls++
		return ErrCircuitOpen
	})
	if calls != 1 {
		t.Fatalf("attempts = %d, want 1 (circuit-open fails fast)", calls)
	}
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
}

func TestPolicyContextCancelDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	err := Policy{MaxAttempts: 3, Backoff: LinearBackoff(time.Second)}.Do(ctx, func(context.Context) error {
		calls++
		return errors.New("transient")
	})
	if calls != 1 {
		t.Fatalf("attempts = %d, want 1", calls)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestBackoffSchedules(t *testing.T) {
	base := 100 * time.Millisecond

	lin := LinearBackoff(base)
	for i, want := range []time.Duration{base, 2 * base, 3 * base} {
		if got := lin(i); got != want {
			t.Fatalf("LinearBackoff(%d) = %v, want %v", i, got, want)
		}
	}

	exp := ExponentialBackoff(base)
	for i, want := range []time.Duration{base, 2 * base, 4 * base, 8 * base} {
		if got := exp(i); got != want {
			t.Fatalf("ExponentialBackoff(%d) = %v, want %v", i, got, want)
		}
	}
}

func TestPacerEnforcesMinimumInterval(t *testing.T) {
	a := New(Config{Name: "test", RateLimit: 30 * time.Millisecond})

	start := time.Now()
	if err := a.pace(context.Background()); err != nil {
		t.Fatalf("first pace: %v", err)
	}
	if err := a.pace(context.Background()); err != nil {
		t.Fatalf("second pace: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Fatalf("elapsed = %v, want at least 30ms between calls", elapsed)
	}
}

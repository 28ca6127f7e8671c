package image

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPollUntilReturnsReadyValue(t *testing.T) {
	calls := 0
	v, err := PollUntil(context.Background(), time.Millisecond, 5, func(ctx context.Context, attempt int) (string, bool, error) {
		calls++
		return "done", attempt == 3, nil
	})
	if err != nil {
		t.Fatalf("PollUntil error: %v", err)
	}
	if v != "done" || calls != 3 {
		t.Fatalf("v = %q calls = %d", v, calls)
	}
}

func TestPollUntilTimesOut(t *testing.T) {
	calls := 0
	_, err := PollUntil(context.Background(), time.Millisecond, 4, func(ctx context.Context, attempt int) (int, bool, error) {
		calls++
		return 0, false, nil
	})
	if !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("err = %v, want ErrPollTimeout", err)
	}
	var pte *PollTimeoutError
	if !errors.As(err, &pte) || pte.Attempts != 4 {
		t.Fatalf("err = %#v", err)
	}
	if calls != 4 {
		t.Fatalf("calls = %d, want 4", calls)
	}
}

func TestPollUntilStopsOnError(t *testing.T) {
	boom := errors.New("moderated")
	_, err := PollUntil(context.Background(), time.Millisecond, 10, func(ctx context.Context, attempt int) (int, bool, error) {
		return 0, false, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestPollUntilHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := PollUntil(ctx, time.Hour, 10, func(ctx context.Context, attempt int) (int, bool, error) {
		t.Fatalf("check should not run")
		return 0, false, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestNextDailyRun(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "before run time",
			now:  time.Date(2024, 6, 5, 5, 0, 0, 0, loc),
			want: time.Date(2024, 6, 5, 6, 30, 0, 0, loc),
		},
		{
			name: "exactly at run time",
			now:  time.Date(2024, 6, 5, 6, 30, 0, 0, loc),
			want: time.Date(2024, 6, 6, 6, 30, 0, 0, loc),
		},
		{
			name: "after run time",
			now:  time.Date(2024, 6, 5, 23, 59, 0, 0, loc),
			want: time.Date(2024, 6, 6, 6, 30, 0, 0, loc),
		},
		{
			name: "utc input converted",
			now:  time.Date(2024, 6, 4, 20, 0, 0, 0, time.UTC), // 01:30 IST on the 5th
			want: time.Date(2024, 6, 5, 6, 30, 0, 0, loc),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nextDailyRun(tt.now, 6, 30, loc)
			if !got.Equal(tt.want) {
				t.Fatalf("nextDailyRun() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSchedulerDispatchRetriesUntilSuccess(t *testing.T) {
	var (
		mu       sync.Mutex
		attempts []int
	)
	job := func(ctx context.Context, attempt int) bool {
		mu.Lock()
		defer mu.Unlock()
		attempts = append(attempts, attempt)
		return attempt == 1
	}

	s := NewScheduler(job, 6, 30, time.UTC).WithRetries(3, time.Millisecond)
	s.dispatch(context.Background())

	if len(attempts) != 2 || attempts[0] != 0 || attempts[1] != 1 {
		t.Fatalf("attempts = %v, want [0 1]", attempts)
	}
}

func TestSchedulerDispatchGivesUp(t *testing.T) {
	calls := 0
	job := func(ctx context.Context, attempt int) bool {
		calls++
		return false
	}

	s := NewScheduler(job, 6, 30, time.UTC).WithRetries(2, time.Millisecond)
	s.dispatch(context.Background())

	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestSchedulerDispatchStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	job := func(ctx context.Context, attempt int) bool {
		calls++
		cancel()
		return false
	}

	s := NewScheduler(job, 6, 30, time.UTC).WithRetries(5, time.Hour)
	s.dispatch(ctx)

	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestSchedulerStartStop(t *testing.T) {
	s := NewScheduler(func(ctx context.Context, attempt int) bool { return true }, 6, 30, time.UTC)
	s.Start()
	s.Start()

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
	s.Stop()
}

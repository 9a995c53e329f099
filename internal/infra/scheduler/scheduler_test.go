package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestScheduler_RunsUntilStopped(t *testing.T) {
	log := zerolog.Nop()
	var runs atomic.Int32
	s := NewScheduler("test", 5*time.Millisecond, time.Second, func(ctx context.Context) error {
		runs.Add(1)
		return errors.New("failures are logged, not fatal")
	}, &log)

	s.Start(context.Background())
	s.Start(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()
	if runs.Load() < 3 {
		t.Fatalf("expected at least 3 runs, got %d", runs.Load())
	}

	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	if runs.Load() != after {
		t.Fatal("job ran after Stop")
	}
	s.Stop()
}

package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestScheduler_AddJob(t *testing.T) {
	s := NewScheduler(time.Second)
	noop := func(ctx context.Context) error { return nil }

	if err := s.AddJob("refresh", DefaultCacheRefreshSpec, noop); err != nil {
		t.Fatalf("AddJob error: %v", err)
	}
	if err := s.AddJob("prune", DefaultDedupPruneSpec, noop); err != nil {
		t.Fatalf("AddJob error: %v", err)
	}
	if err := s.AddJob("refresh", "0 * * * *", noop); err != nil {
		t.Fatalf("AddJob replace error: %v", err)
	}
	if got := s.Jobs(); got != 2 {
		t.Errorf("Jobs = %d, want 2", got)
	}
}

func TestScheduler_InvalidSpec(t *testing.T) {
	s := NewScheduler(time.Second)
	if err := s.AddJob("bad", "not a cron", func(ctx context.Context) error { return nil }); err == nil {
		t.Fatal("expected error for invalid spec")
	}
	if s.Jobs() != 0 {
		t.Error("invalid job should not be registered")
	}
}

func TestScheduler_RunNowPassesDeadline(t *testing.T) {
	s := NewScheduler(time.Minute)
	ran := false
	s.RunNow("once", func(ctx context.Context) error {
		ran = true
		if _, ok := ctx.Deadline(); !ok {
			t.Error("expected job context to carry a deadline")
		}
		return errors.New("logged, not returned")
	})
	if !ran {
		t.Fatal("job did not run")
	}
}

func TestScheduler_StopCancelsContext(t *testing.T) {
	s := NewScheduler(time.Minute)
	s.Start()
	s.Stop()
	s.RunNow("after-stop", func(ctx context.Context) error {
		if ctx.Err() == nil {
			t.Error("expected cancelled context after Stop")
		}
		return nil
	})
}

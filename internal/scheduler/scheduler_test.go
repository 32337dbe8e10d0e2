package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestScheduler_AddValidation(t *testing.T) {
	s := New(nil, nil, 0)
	noop := func(context.Context) error { return nil }

	if err := s.Add("reset", "not a schedule", noop); err == nil {
		t.Fatal("expected error for invalid spec")
	}
	if err := s.Add("reset", "@every 1h", noop); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := s.Add("reset", "@every 2h", noop); err == nil {
		t.Fatal("expected error for duplicate name")
	}
	if err := s.Add("nightly", "0 3 * * *", noop); err != nil {
		t.Fatalf("Add(cron spec) error = %v", err)
	}
}

func TestScheduler_RunNow(t *testing.T) {
	s := New(nil, nil, time.Second)
	var runs int32
	boom := errors.New("boom")
	_ = s.Add("count", "@every 1h", func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("job context has no deadline")
		}
		atomic.AddInt32(&runs, 1)
		return nil
	})
	_ = s.Add("fail", "@every 1h", func(context.Context) error { return boom })

	if err := s.RunNow("count"); err != nil || atomic.LoadInt32(&runs) != 1 {
		t.Fatalf("RunNow() = %v, runs = %d", err, runs)
	}
	if err := s.RunNow("fail"); !errors.Is(err, boom) {
		t.Fatalf("RunNow(fail) = %v", err)
	}
	if err := s.RunNow("missing"); err == nil {
		t.Fatal("expected error for unknown job")
	}
}

func TestScheduler_StartStop(t *testing.T) {
	s := New(nil, nil, 0)
	ran := make(chan struct{}, 1)
	_ = s.Add("tick", "@every 1s", func(ctx context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	})
	s.Start()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("scheduled job did not run")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
}

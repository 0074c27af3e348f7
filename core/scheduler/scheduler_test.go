package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fleetsense/fleettrack/core/detector"
	"github.com/fleetsense/fleettrack/core/model"
	"github.com/fleetsense/fleettrack/infra/logger"
)

type fakeRunner struct {
	mu    sync.Mutex
	runs  int
	roles []model.Role
}

func (f *fakeRunner) RunBatch(_ context.Context, role model.Role) (detector.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs++
	f.roles = append(f.roles, role)
	return detector.Report{Created: 1}, nil
}

func (f *fakeRunner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs
}

func TestRunOnceDelegates(t *testing.T) {
	r := &fakeRunner{}
	s, err := New(Config{}, r, logger.NopLogger{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rep, err := s.RunOnce(context.Background(), model.RoleManager)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if rep.Created != 1 || r.count() != 1 {
		t.Fatalf("delegation failed: %+v, runs=%d", rep, r.count())
	}
	if r.roles[0] != model.RoleManager {
		t.Fatalf("caller role must pass through, got %s", r.roles[0])
	}
}

func TestZeroIntervalDisablesTicker(t *testing.T) {
	r := &fakeRunner{}
	s, err := New(Config{}, r, logger.NopLogger{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run with zero interval: %v", err)
	}
	if r.count() != 0 {
		t.Fatalf("disabled ticker must not run passes, got %d", r.count())
	}
}

func TestPeriodicRun(t *testing.T) {
	r := &fakeRunner{}
	s, err := New(Config{Interval: 5 * time.Millisecond}, r, logger.NopLogger{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	if err := s.Run(ctx); err != context.DeadlineExceeded {
		t.Fatalf("want deadline exceeded, got %v", err)
	}
	if r.count() == 0 {
		t.Fatal("periodic mode must run passes")
	}
}

func TestConfigValidate(t *testing.T) {
	if _, err := New(Config{Interval: -time.Second}, &fakeRunner{}, logger.NopLogger{}); err == nil {
		t.Fatal("negative interval must be rejected")
	}
	if _, err := New(Config{Role: "root"}, &fakeRunner{}, logger.NopLogger{}); err == nil {
		t.Fatal("unknown role must be rejected")
	}
}

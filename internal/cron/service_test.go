package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/DarkSmileee/BlockShelf/pkg/logger"
)

type fakeLock struct {
	held     bool
	acquires int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	f.acquires++
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error { f.held = false; return nil }

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func newCronService(t *testing.T, registry *Registry, lock Lock) *Service {
	t.Helper()
	service, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Registry: registry,
		Lock:     lock,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return service
}

func TestServiceRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	first := &testJob{name: "purge-revoked"}
	second := &testJob{name: "scheduled-backups", err: errors.New("boom")}
	third := &testJob{name: "trailing"}
	registry := NewRegistry(first, second, third)
	service := newCronService(t, registry, &fakeLock{})

	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if first.runs != 1 || second.runs != 1 || third.runs != 1 {
		t.Fatalf("expected every job to run once, got %d/%d/%d", first.runs, second.runs, third.runs)
	}
}

type panicJob struct{ name string }

func (p *panicJob) Name() string              { return p.name }
func (p *panicJob) Run(context.Context) error { panic("boom") }

func TestServiceRunCycleSurvivesPanickingJob(t *testing.T) {
	trailing := &testJob{name: "trailing"}
	registry := NewRegistry(&panicJob{name: "exploder"}, trailing)
	service := newCronService(t, registry, &fakeLock{})

	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if trailing.runs != 1 {
		t.Fatalf("trailing job did not run after the panic, runs=%d", trailing.runs)
	}
}

func TestServiceRunCycleSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "purge-revoked"}
	lock := &fakeLock{held: true}
	service := newCronService(t, NewRegistry(job), lock)

	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("job ran %d times while the lock was held elsewhere", job.runs)
	}
	if lock.acquires != 1 {
		t.Fatalf("expected one acquire attempt, got %d", lock.acquires)
	}
}

func TestServiceRunCycleReleasesLock(t *testing.T) {
	lock := &fakeLock{}
	service := newCronService(t, NewRegistry(&testJob{name: "purge-revoked"}), lock)

	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if lock.held {
		t.Fatal("lock was not released after the cycle")
	}
}

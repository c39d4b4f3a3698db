package jobmgr

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestManager_DeduplicatesByName(t *testing.T) {
	m := NewManager(context.Background(), nil)
	release := make(chan struct{})

	if !m.Go("load", func(ctx context.Context) error {
		<-release
		return nil
	}) {
		t.Fatal("first Go() returned false")
	}
	if m.Go("load", func(ctx context.Context) error { return nil }) {
		t.Error("second Go() with the same name started a job")
	}
	if !m.Running("load") {
		t.Error("Running(load) = false while job is blocked")
	}

	close(release)
	m.Wait()

	if m.Running("load") {
		t.Error("job still tracked after it returned")
	}
	if got := m.List(); len(got) != 0 {
		t.Errorf("List() = %v after the job returned", got)
	}
}

func TestManager_ReportsLifecycle(t *testing.T) {
	var mu sync.Mutex
	var events []Event
	m := NewManager(context.Background(), func(ev Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})

	boom := errors.New("boom")
	m.Go("bad", func(ctx context.Context) error { return boom })
	m.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].State != StateRunning || events[1].State != StateFailed {
		t.Errorf("states = %v, %v", events[0].State, events[1].State)
	}
	if !errors.Is(events[1].Err, boom) {
		t.Errorf("failed event err = %v, want boom", events[1].Err)
	}
}

func TestManager_StopAndShutdown(t *testing.T) {
	m := NewManager(context.Background(), nil)
	started := make(chan struct{})

	m.Go("long", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	<-started

	if err := m.Stop("long"); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	m.Wait()

	if err := m.Stop("long"); err == nil {
		t.Error("Stop() on a finished job returned nil")
	}

	m.Shutdown()
	if m.Go("late", func(ctx context.Context) error { return nil }) {
		t.Error("Go() after Shutdown() started a job")
	}
}

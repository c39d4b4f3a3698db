// Package jobmgr runs named background jobs with cancellation, lifecycle
// callbacks and in-memory tracking of what is running.
//
// Typical usage:
//
//	jm := jobmgr.NewManager(ctx, func(ev jobmgr.Event) {
//	    log.Println("job", ev.Job, ev.State)
//	})
//
//	started := jm.Go("prefix:1234", func(ctx context.Context) error {
//	    // do work until ctx is cancelled
//	    return nil
//	})
//
//	// at shutdown
//	jm.Shutdown()
//
// A name can only run once at a time; starting a job whose name is already
// running is a no-op, which is what callers use to deduplicate work.
package jobmgr

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// State is a job lifecycle state reported to the Reporter.
type State string

const (
	StateRunning State = "running"
	StateDone    State = "done"
	StateFailed  State = "failed"
)

// Event describes one lifecycle transition of a job.
type Event struct {
	Job   string
	State State
	Err   error
}

// Reporter receives lifecycle events. It is called from the job goroutine.
type Reporter func(Event)

// Manager orchestrates starting, stopping and tracking jobs.
// It is safe for concurrent use.
type Manager struct {
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex
	jobs     map[string]context.CancelFunc
	wg       sync.WaitGroup
	reporter Reporter
}

// NewManager creates a Manager whose jobs are children of parent.
// The reporter may be nil.
func NewManager(parent context.Context, reporter Reporter) *Manager {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Manager{
		ctx:      ctx,
		cancel:   cancel,
		jobs:     make(map[string]context.CancelFunc),
		reporter: reporter,
	}
}

// Go runs a job in its own goroutine and returns immediately. It reports
// false without starting anything when a job with the same name is running
// or the manager has been shut down.
func (m *Manager) Go(name string, runner func(ctx context.Context) error) bool {
	m.mu.Lock()
	if m.ctx.Err() != nil {
		m.mu.Unlock()
		return false
	}
	if _, exists := m.jobs[name]; exists {
		m.mu.Unlock()
		return false
	}
	ctx, cancel := context.WithCancel(m.ctx)
	m.jobs[name] = cancel
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		defer cancel()

		m.report(Event{Job: name, State: StateRunning})
		err := runner(ctx)

		m.mu.Lock()
		delete(m.jobs, name)
		m.mu.Unlock()

		if err != nil {
			m.report(Event{Job: name, State: StateFailed, Err: err})
			return
		}
		m.report(Event{Job: name, State: StateDone})
	}()

	return true
}

// Stop cancels a running job by name.
func (m *Manager) Stop(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cancel, ok := m.jobs[name]
	if !ok {
		return fmt.Errorf("job '%s' not running", name)
	}
	cancel()
	return nil
}

// Running reports whether a job with the given name is in flight.
func (m *Manager) Running(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.jobs[name]
	return ok
}

// List returns the names of active jobs, sorted.
func (m *Manager) List() []string {
	m.mu.Lock()
	out := make([]string, 0, len(m.jobs))
	for k := range m.jobs {
		out = append(out, k)
	}
	m.mu.Unlock()

	sort.Strings(out)
	return out
}

// Wait blocks until every job started so far has returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Shutdown cancels all jobs, refuses new ones and waits for running ones.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.cancel()
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Manager) report(ev Event) {
	if m.reporter != nil {
		m.reporter(ev)
	}
}

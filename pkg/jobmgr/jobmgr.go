// Package jobmgr tracks named background goroutines such as per-guild
// player loops and the cache janitor. Every job's context derives from the
// manager's, so cancelling that context stops them all.
package jobmgr

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
)

var (
	ErrJobRunning    = errors.New("job is already running")
	ErrJobNotRunning = errors.New("job is not running")
)

type State int

const (
	Started State = iota
	Finished
	Failed
)

func (s State) String() string {
	switch s {
	case Started:
		return "started"
	case Finished:
		return "finished"
	default:
		return "failed"
	}
}

// Event describes a job changing state. Err is set for Failed.
type Event struct {
	Job   string
	State State
	Err   error
}

type Manager struct {
	parent context.Context
	report func(Event)

	mu   sync.Mutex
	live map[string]*job
	wg   sync.WaitGroup
}

type job struct{ cancel context.CancelFunc }

// NewManager returns a Manager scoped to ctx. report may be nil; it is
// called from the job's goroutine.
func NewManager(ctx context.Context, report func(Event)) *Manager {
	if ctx == nil {
		ctx = context.Background()
	}
	if report == nil {
		report = func(Event) {}
	}
	return &Manager{parent: ctx, report: report, live: map[string]*job{}}
}

// StartAsync launches run under name. Names are unique among live jobs.
func (m *Manager) StartAsync(name string, run func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.live[name]; busy {
		return fmt.Errorf("%w: %s", ErrJobRunning, name)
	}

	ctx, cancel := context.WithCancel(m.parent)
	j := &job{cancel: cancel}
	m.live[name] = j
	m.wg.Add(1)
	go m.run(ctx, name, j, run)
	return nil
}

func (m *Manager) run(ctx context.Context, name string, j *job, run func(context.Context) error) {
	defer m.wg.Done()
	defer j.cancel()

	m.report(Event{Job: name, State: Started})
	if err := run(ctx); err != nil {
		m.report(Event{Job: name, State: Failed, Err: err})
	} else {
		m.report(Event{Job: name, State: Finished})
	}

	m.mu.Lock()
	// A job stopped and restarted under the same name is a different entry.
	if m.live[name] == j {
		delete(m.live, name)
	}
	m.mu.Unlock()
}

// Stop cancels name and forgets it; it does not wait for the goroutine.
func (m *Manager) Stop(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.live[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotRunning, name)
	}
	j.cancel()
	delete(m.live, name)
	return nil
}

func (m *Manager) Running(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.live[name]
	return ok
}

// List returns live job names in order.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Sorted(maps.Keys(m.live))
}

// Wait returns once every started job has returned, or with ctx's error.
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrShuttingDown is returned by tasks started after Shutdown.
var ErrShuttingDown = errors.New("settlement: task group is shutting down")

// Task is the handle of one background job.
type Task struct {
	name string
	done chan struct{}
	err  error
}

// Name returns the name the task was started with.
func (t *Task) Name() string { return t.name }

// Done is closed when the task returns.
func (t *Task) Done() <-chan struct{} { return t.done }

// Err returns the task error. It is only meaningful after Done is closed.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the task finishes or ctx is done.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Tasks runs background jobs under one cancellable root context.
type Tasks struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewTasks creates an empty task group.
func NewTasks(logger *slog.Logger) *Tasks {
	ctx, cancel := context.WithCancel(context.Background())
	return &Tasks{ctx: ctx, cancel: cancel, logger: logger.With("component", "tasks")}
}

// Go starts fn on its own goroutine. fn must return once its context is
// cancelled. A panic in fn is recovered and reported as the task error.
func (g *Tasks) Go(name string, fn func(ctx context.Context) error) *Task {
	t := &Task{name: name, done: make(chan struct{})}

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		t.err = ErrShuttingDown
		close(t.done)
		return t
	}
	g.wg.Add(1)
	g.mu.Unlock()

	go func() {
		defer g.wg.Done()
		defer close(t.done)
		defer func() {
			if r := recover(); r != nil {
				t.err = fmt.Errorf("task %s panicked: %v", name, r)
				g.logger.Error("❌ task panicked", "task", name, "panic", r)
			}
		}()
		t.err = fn(g.ctx)
	}()
	return t
}

// Closed reports whether Shutdown has been called.
func (g *Tasks) Closed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

// Shutdown cancels every running task and waits for them to return, or
// for ctx to be done. No task can be started afterwards.
func (g *Tasks) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
	g.cancel()

	finished := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		g.logger.Info("all tasks stopped")
		return nil
	case <-ctx.Done():
		g.logger.Warn("tasks still running at shutdown deadline")
		return ctx.Err()
	}
}

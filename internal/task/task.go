// Package task provides managed goroutine lifecycle for the hub.
//
// A Manager starts named worker goroutines, signals them to stop through a
// shared context, recovers panics, and waits for termination on shutdown.
package task

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/TheDeepLogic/RetroSerialHub/logger"
)

// Func is the body of a managed task. It is invoked repeatedly; returning
// false stops the task's goroutine.
type Func func() bool

// CleanupFunc runs when a task's goroutine exits, whether normally or after
// a panic.
type CleanupFunc func()

// Manager manages the lifecycle of hub goroutines.
//
// When the manager's context is canceled all running tasks are signaled to
// stop; Wait blocks until every goroutine has terminated.
type Manager struct {
	pctx   context.Context
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger logger.Logger
	count  atomic.Int32
	mu     sync.RWMutex // protects ctx and cancel
}

// NewManager creates a Manager using ctx as the parent context.
func NewManager(ctx context.Context, l logger.Logger) *Manager {
	mgr := &Manager{pctx: ctx, logger: l}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)
	return mgr
}

// Context returns the manager's current run context. Tasks should use it
// for cancellation of their own blocking operations.
func (mgr *Manager) Context() context.Context {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()

	return mgr.ctx
}

// Start launches a new managed goroutine with the given name.
//
// fn is called in a loop until it returns false or the manager is stopped.
// cleanup, if non-nil, runs when the goroutine exits.
func (mgr *Manager) Start(name string, fn Func, cleanup CleanupFunc) error {
	ctx := mgr.Context()

	select {
	case <-ctx.Done():
		return fmt.Errorf("task: manager already stopped, cannot start %s", name)
	default:
	}

	mgr.logger.Debug("task: start", "name", name)
	mgr.wg.Add(1)
	mgr.count.Add(1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				mgr.logger.Error("task: panic", "name", name, "panic", r)
			}

			if cleanup != nil {
				cleanup()
			}

			mgr.count.Add(-1)
			mgr.wg.Done()
			mgr.logger.Debug("task: terminated", "name", name, "task_count", mgr.Count())
		}()

		for {
			select {
			case <-ctx.Done():
				return
			default:
				if !fn() {
					return
				}
			}
		}
	}()

	return nil
}

// Stop signals all running tasks to terminate.
func (mgr *Manager) Stop() {
	mgr.mu.Lock()
	if mgr.cancel != nil {
		mgr.cancel()
	}
	mgr.mu.Unlock()
}

// Wait blocks until all tasks have terminated, then recreates the run
// context so the manager can be reused.
func (mgr *Manager) Wait() {
	mgr.wg.Wait()

	mgr.mu.Lock()
	mgr.ctx, mgr.cancel = context.WithCancel(mgr.pctx)
	mgr.mu.Unlock()
}

// Count returns the number of currently running tasks.
func (mgr *Manager) Count() int {
	return int(mgr.count.Load())
}

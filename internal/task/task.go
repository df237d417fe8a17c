// Package task manages the goroutines that drive a peripheral: the tick loop and
// any helper loops started next to it.
package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-turntable/logger"
)

// ErrStopped is returned when starting a task on a stopped Manager.
var ErrStopped = errors.New("task: manager already stopped")

// Func performs one iteration of a task.
// It returns true to keep running, or false to end the goroutine.
type Func func() bool

// IntervalFunc performs one iteration of a periodic task. elapsed is the time
// since the previous iteration (or since start, for the first one).
type IntervalFunc func(elapsed time.Duration) bool

// Manager owns a group of goroutines sharing one cancellation scope.
//
// Stop cancels the scope; Wait blocks until every goroutine has returned and then
// arms a fresh scope so the Manager can be reused.
type Manager struct {
	pctx   context.Context
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger logger.Logger
	count  atomic.Int32
	mu     sync.RWMutex // protects ctx and cancel
}

// NewManager creates a Manager whose tasks end when ctx is done.
func NewManager(ctx context.Context, l logger.Logger) *Manager {
	mgr := &Manager{pctx: ctx, logger: l}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)

	return mgr
}

func (mgr *Manager) context() context.Context {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()

	return mgr.ctx
}

// Start runs fn in a loop on a new goroutine until it returns false or the
// Manager is stopped.
func (mgr *Manager) Start(name string, fn Func) error {
	ctx := mgr.context()
	if ctx.Err() != nil {
		return ErrStopped
	}

	mgr.logger.Debug("start task", "name", name)
	mgr.spawn(name, func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if !mgr.callWithRecover(name, fn) {
				return
			}
		}
	})

	return nil
}

// StartInterval runs fn every interval on a new goroutine until it returns false
// or the Manager is stopped.
func (mgr *Manager) StartInterval(name string, fn IntervalFunc, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("task: invalid interval %v for %s", interval, name)
	}

	ctx := mgr.context()
	if ctx.Err() != nil {
		return ErrStopped
	}

	mgr.logger.Debug("start interval task", "name", name, "interval", interval)
	ticker := time.NewTicker(interval)
	mgr.spawn(name, func() {
		defer ticker.Stop()

		last := time.Now()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				elapsed := now.Sub(last)
				last = now
				if !mgr.callWithRecover(name, func() bool { return fn(elapsed) }) {
					return
				}
			}
		}
	})

	return nil
}

func (mgr *Manager) spawn(name string, body func()) {
	mgr.wg.Add(1)
	mgr.count.Add(1)

	go func() {
		defer func() {
			mgr.count.Add(-1)
			mgr.wg.Done()
			mgr.logger.Debug("task terminated", "name", name)
		}()

		body()
	}()
}

// callWithRecover calls fn with panic protection. A panic ends the task.
func (mgr *Manager) callWithRecover(name string, fn Func) (cont bool) {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("panic in task", "name", name, "panic", r)
			cont = false
		}
	}()

	return fn()
}

// Stop signals all running tasks to end.
func (mgr *Manager) Stop() {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	if mgr.cancel != nil {
		mgr.cancel()
	}
}

// Wait blocks until all tasks have ended, then re-arms the Manager.
func (mgr *Manager) Wait() {
	mgr.wg.Wait()

	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	if mgr.ctx.Err() != nil {
		mgr.ctx, mgr.cancel = context.WithCancel(mgr.pctx)
	}
}

// TaskCount returns the number of running tasks.
func (mgr *Manager) TaskCount() int {
	return int(mgr.count.Load())
}

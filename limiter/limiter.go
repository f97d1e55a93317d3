// Package limiter bounds the number of concurrently running walks.
package limiter

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrClosed is returned when work is scheduled on a closed limiter.
var ErrClosed = errors.New("limiter is closed")

// Task is a unit of work run under the concurrency bound.
type Task func(ctx context.Context) error

// Limiter schedules tasks under a concurrency bound.
type Limiter interface {
	// Schedule runs the task once a slot is free. It may block until then.
	Schedule(ctx context.Context, task Task) error
	// Wait blocks until every scheduled task has returned.
	Wait() error
	// Close waits for scheduled tasks and releases the limiter resources.
	// No tasks can be scheduled after Close.
	Close() error
}

// Pool is a Limiter backed by errgroup.Group. Unlike a plain errgroup it
// keeps every task error, not only the first one.
type Pool struct {
	group errgroup.Group

	mu     sync.RWMutex
	closed bool

	errMu sync.Mutex
	errs  []error

	closeOnce sync.Once
}

var _ Limiter = &Pool{} //nolint:exhaustruct

// NewPool creates a pool running at most concurrency tasks at once.
// A non-positive concurrency means no limit.
func NewPool(concurrency int) *Pool {
	pool := &Pool{} //nolint:exhaustruct
	if concurrency > 0 {
		pool.group.SetLimit(concurrency)
	}

	return pool
}

// Schedule implements Limiter.
func (p *Pool) Schedule(ctx context.Context, task Task) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to schedule: %w", err)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}

	// Task errors are kept in errs and the wrapper always returns nil, so
	// group.Wait has nothing to report and Wait and Close discard it.
	p.group.Go(func() error {
		if err := task(ctx); err != nil {
			p.errMu.Lock()
			p.errs = append(p.errs, err)
			p.errMu.Unlock()
		}

		return nil
	})

	return nil
}

// Wait implements Limiter. The returned error joins all task errors.
func (p *Pool) Wait() error {
	_ = p.group.Wait()

	p.errMu.Lock()
	defer p.errMu.Unlock()

	return errors.Join(p.errs...)
}

// Close implements Limiter. It is safe to call Close more than once.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()

		_ = p.group.Wait()
	})

	return nil
}

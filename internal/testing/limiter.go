package testing

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gojuno/minimock/v3"

	"github.com/tarantool/go-storage-walker/limiter"
)

// noExpectation marks a call count that is not checked.
const noExpectation = -1

// CountingLimiter runs tasks synchronously and counts calls to Close.
// Created with NewCountingLimiter it is a minimock.Mocker: the expected call
// counts are checked when the controller finishes.
type CountingLimiter struct {
	closes    atomic.Int64
	scheduled atomic.Int64

	t               minimock.Tester
	expectCloses    int64
	expectScheduled int64

	mu sync.Mutex
	// FailAfter makes Schedule fail with ScheduleErr once this many tasks
	// have been scheduled. Zero disables it.
	FailAfter   int64
	ScheduleErr error
	errs        []error
}

var (
	_ limiter.Limiter = &CountingLimiter{} //nolint:exhaustruct
	_ minimock.Mocker = &CountingLimiter{} //nolint:exhaustruct
)

// NewCountingLimiter creates a limiter registered with the controller t.
func NewCountingLimiter(t minimock.Tester) *CountingLimiter {
	lim := &CountingLimiter{ //nolint:exhaustruct
		t:               t,
		expectCloses:    noExpectation,
		expectScheduled: noExpectation,
	}

	if controller, ok := t.(minimock.MockController); ok {
		controller.RegisterMocker(lim)
	}

	return lim
}

// ExpectCloses sets how many times Close must be called.
func (l *CountingLimiter) ExpectCloses(times int64) *CountingLimiter {
	l.expectCloses = times
	return l
}

// ExpectScheduled sets how many tasks must run.
func (l *CountingLimiter) ExpectScheduled(times int64) *CountingLimiter {
	l.expectScheduled = times
	return l
}

// FailScheduleAfter makes Schedule fail with err once n tasks have run.
func (l *CountingLimiter) FailScheduleAfter(n int64, err error) *CountingLimiter {
	l.FailAfter = n
	l.ScheduleErr = err

	return l
}

func (l *CountingLimiter) done() bool {
	return (l.expectCloses == noExpectation || l.closes.Load() == l.expectCloses) &&
		(l.expectScheduled == noExpectation || l.scheduled.Load() == l.expectScheduled)
}

// MinimockFinish implements minimock.Mocker.
func (l *CountingLimiter) MinimockFinish() {
	if l.t == nil {
		return
	}

	if closes := l.closes.Load(); l.expectCloses != noExpectation && closes != l.expectCloses {
		l.t.Errorf("expected CountingLimiter.Close to be called %d times, called %d", l.expectCloses, closes)
	}

	if scheduled := l.scheduled.Load(); l.expectScheduled != noExpectation && scheduled != l.expectScheduled {
		l.t.Errorf("expected %d tasks to run on CountingLimiter, ran %d", l.expectScheduled, scheduled)
	}
}

// MinimockWait implements minimock.Mocker.
func (l *CountingLimiter) MinimockWait(timeout time.Duration) {
	deadline := time.After(timeout)

	for !l.done() {
		select {
		case <-deadline:
			l.MinimockFinish()
			return
		case <-time.After(10 * time.Millisecond): //nolint:mnd
		}
	}
}

// Schedule implements limiter.Limiter.
func (l *CountingLimiter) Schedule(ctx context.Context, task limiter.Task) error {
	if l.FailAfter > 0 && l.scheduled.Load() >= l.FailAfter {
		return l.ScheduleErr
	}

	l.scheduled.Add(1)

	if err := task(ctx); err != nil {
		l.mu.Lock()
		l.errs = append(l.errs, err)
		l.mu.Unlock()
	}

	return nil
}

// Wait implements limiter.Limiter.
func (l *CountingLimiter) Wait() error {
	return nil
}

// Close implements limiter.Limiter.
func (l *CountingLimiter) Close() error {
	l.closes.Add(1)

	return nil
}

// Closes returns how many times Close was called.
func (l *CountingLimiter) Closes() int64 {
	return l.closes.Load()
}

// Scheduled returns how many tasks were run.
func (l *CountingLimiter) Scheduled() int64 {
	return l.scheduled.Load()
}

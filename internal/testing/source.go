package testing

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gojuno/minimock/v3"

	"github.com/tarantool/go-storage-walker/kv"
	"github.com/tarantool/go-storage-walker/source"
)

// ErrInjected is the error returned by FaultySource for failing prefixes.
var ErrInjected = errors.New("injected transport failure")

// FaultySource wraps a source and fails every call that touches one of the
// configured prefixes.
type FaultySource struct {
	source.Source

	mu          sync.RWMutex
	keyFaults   []string
	valueFaults []string
	afterCalls  int64
	calls       atomic.Int64
	injected    atomic.Int64

	t              minimock.Tester
	expectInjected int64
}

var _ minimock.Mocker = &FaultySource{} //nolint:exhaustruct

// NewFaultySource wraps src.
func NewFaultySource(src source.Source) *FaultySource {
	return &FaultySource{ //nolint:exhaustruct
		Source:         src,
		expectInjected: noExpectation,
	}
}

// ExpectInjected registers the source with the controller t and makes it
// check that exactly n failures were injected.
func (s *FaultySource) ExpectInjected(t minimock.Tester, n int64) *FaultySource {
	s.t = t
	s.expectInjected = n

	if controller, ok := t.(minimock.MockController); ok {
		controller.RegisterMocker(s)
	}

	return s
}

// Injected returns how many calls failed with ErrInjected.
func (s *FaultySource) Injected() int64 {
	return s.injected.Load()
}

// MinimockFinish implements minimock.Mocker.
func (s *FaultySource) MinimockFinish() {
	if s.t == nil || s.expectInjected == noExpectation {
		return
	}

	if injected := s.injected.Load(); injected != s.expectInjected {
		s.t.Errorf("expected %d injected failures, got %d", s.expectInjected, injected)
	}
}

// MinimockWait implements minimock.Mocker. Calls are synchronous, so there
// is nothing to wait for.
func (s *FaultySource) MinimockWait(time.Duration) {
	s.MinimockFinish()
}

// FailKeys makes key listings under any of the prefixes fail.
func (s *FaultySource) FailKeys(prefixes ...string) *FaultySource {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.keyFaults = append(s.keyFaults, prefixes...)

	return s
}

// FailValues makes value fetches of keys under any of the prefixes fail.
func (s *FaultySource) FailValues(prefixes ...string) *FaultySource {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.valueFaults = append(s.valueFaults, prefixes...)

	return s
}

// After delays injected failures until n key listings have succeeded.
func (s *FaultySource) After(n int64) *FaultySource {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.afterCalls = n

	return s
}

func (s *FaultySource) matches(faults []string, key string) bool {
	for _, fault := range faults {
		if strings.HasPrefix(key, fault) {
			return true
		}
	}

	return false
}

// Keys implements source.Source.
func (s *FaultySource) Keys(ctx context.Context, prefix string, count int, startKey, at string) ([]string, error) {
	s.mu.RLock()
	fail := s.matches(s.keyFaults, prefix) && s.calls.Add(1) > s.afterCalls
	s.mu.RUnlock()

	if fail {
		s.injected.Add(1)
		return nil, ErrInjected
	}

	return s.Source.Keys(ctx, prefix, count, startKey, at) //nolint:wrapcheck
}

// Values implements source.Source.
func (s *FaultySource) Values(ctx context.Context, keys []string, at string) ([]kv.KeyValue, error) {
	s.mu.RLock()
	fail := len(keys) > 0 && s.matches(s.valueFaults, keys[0])
	s.mu.RUnlock()

	if fail {
		s.injected.Add(1)
		return nil, ErrInjected
	}

	return s.Source.Values(ctx, keys, at) //nolint:wrapcheck
}

// Head forwards to the wrapped source when it is a source.Pinner.
func (s *FaultySource) Head(ctx context.Context) (string, error) {
	pinner, ok := s.Source.(source.Pinner)
	if !ok {
		return "", nil
	}

	return pinner.Head(ctx) //nolint:wrapcheck
}

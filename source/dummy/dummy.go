// Package dummy provides a base in-memory implementation
// of the storage source interface for demonstration and tests.
package dummy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/tarantool/go-storage-walker/kv"
	"github.com/tarantool/go-storage-walker/source"
)

var (
	// ErrUnknownPosition is returned for positions that were never committed.
	ErrUnknownPosition = errors.New("unknown chain position")
	// ErrInvalidCount is returned when a non-positive page size is requested.
	ErrInvalidCount = errors.New("count must be positive")
)

var (
	_ source.Source = &Source{} //nolint:exhaustruct
	_ source.Pinner = &Source{} //nolint:exhaustruct
)

type version struct {
	revision int64
	value    string
	deleted  bool
}

// Source is a thread-safe multi-version storage. Every Put or Delete
// commits a new revision, and reads at older revisions see the old state.
type Source struct {
	mu       sync.RWMutex
	history  map[string][]version
	revision int64

	keysCalls   atomic.Int64
	valuesCalls atomic.Int64
}

// New returns an empty source at revision 0.
func New() *Source {
	return &Source{
		mu:       sync.RWMutex{},
		history:  make(map[string][]version),
		revision: 0,
	}
}

func position(revision int64) string {
	return strconv.FormatInt(revision, 10)
}

// Put stores the value under key and returns the new chain position.
func (s *Source) Put(key, value string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.revision++

	key = strings.ToLower(key)
	s.history[key] = append(s.history[key], version{revision: s.revision, value: value, deleted: false})

	return position(s.revision)
}

// Delete removes the key and returns the new chain position.
func (s *Source) Delete(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.revision++

	key = strings.ToLower(key)
	s.history[key] = append(s.history[key], version{revision: s.revision, value: "", deleted: true})

	return position(s.revision)
}

// Head implements source.Pinner.
func (s *Source) Head(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("head: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return position(s.revision), nil
}

// Calls returns how many times Keys and Values were called.
func (s *Source) Calls() (int64, int64) {
	return s.keysCalls.Load(), s.valuesCalls.Load()
}

func (s *Source) resolve(at string) (int64, error) {
	if at == "" {
		return s.revision, nil
	}

	revision, err := strconv.ParseInt(at, 10, 64)
	if err != nil || revision < 0 || revision > s.revision {
		return 0, fmt.Errorf("%w: %q", ErrUnknownPosition, at)
	}

	return revision, nil
}

// get returns the value of key as of revision.
func (s *Source) get(key string, revision int64) (string, bool) {
	versions := s.history[key]

	for i := len(versions) - 1; i >= 0; i-- {
		if versions[i].revision > revision {
			continue
		}

		if versions[i].deleted {
			return "", false
		}

		return versions[i].value, true
	}

	return "", false
}

// Keys implements source.Source.
func (s *Source) Keys(ctx context.Context, prefix string, count int, startKey string, at string) ([]string, error) {
	s.keysCalls.Add(1)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("keys: %w", err)
	}

	if count <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCount, count)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	revision, err := s.resolve(at)
	if err != nil {
		return nil, err
	}

	prefix = strings.ToLower(prefix)
	startKey = strings.ToLower(startKey)

	var matched []string

	for key := range s.history {
		if !strings.HasPrefix(key, prefix) || (startKey != "" && key <= startKey) {
			continue
		}

		if _, ok := s.get(key, revision); ok {
			matched = append(matched, key)
		}
	}

	sort.Strings(matched)

	if len(matched) > count {
		matched = matched[:count]
	}

	return matched, nil
}

// Values implements source.Source. Keys without a value at the position
// are omitted from the result.
func (s *Source) Values(ctx context.Context, keys []string, at string) ([]kv.KeyValue, error) {
	s.valuesCalls.Add(1)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("values: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	revision, err := s.resolve(at)
	if err != nil {
		return nil, err
	}

	out := make([]kv.KeyValue, 0, len(keys))

	for _, key := range keys {
		if value, ok := s.get(strings.ToLower(key), revision); ok {
			out = append(out, kv.KeyValue{Key: key, Value: value})
		}
	}

	return out, nil
}

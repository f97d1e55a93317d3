// Package snapshot stores walked entries in a local pebble database and
// remembers which prefixes are complete, so an interrupted dump can resume
// where it stopped.
package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"github.com/vmihailenco/msgpack/v5"

	walker "github.com/tarantool/go-storage-walker"
	"github.com/tarantool/go-storage-walker/keys"
	"github.com/tarantool/go-storage-walker/kv"
)

// Key namespaces of the database.
const (
	entryNamespace = 'e'
	doneNamespace  = 'd'
	metaKey        = "m"
)

// ErrMetaMismatch is returned when a database is reused for a different
// dump.
var ErrMetaMismatch = errors.New("snapshot belongs to a different dump")

// Meta identifies a dump. A database holds entries of exactly one dump.
type Meta struct {
	Backend  string `msgpack:"backend"`
	Endpoint string `msgpack:"endpoint"`
	Prefix   string `msgpack:"prefix"`
	At       string `msgpack:"at"`
}

// Store is a dump database.
type Store struct {
	db      *pebble.DB
	written atomic.Int64
}

// Open opens or creates the database in dir.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{}) //nolint:exhaustruct
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot %s: %w", dir, err)
	}

	return &Store{db: db, written: atomic.Int64{}}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}

	return nil
}

// Meta returns the stored dump identity, if any.
func (s *Store) Meta() (Meta, bool, error) {
	data, closer, err := s.db.Get([]byte(metaKey))

	switch {
	case errors.Is(err, pebble.ErrNotFound):
		return Meta{}, false, nil
	case err != nil:
		return Meta{}, false, fmt.Errorf("failed to read snapshot meta: %w", err)
	}

	defer func() { _ = closer.Close() }()

	var meta Meta
	if err := msgpack.Unmarshal(data, &meta); err != nil {
		return Meta{}, false, fmt.Errorf("failed to decode snapshot meta: %w", err)
	}

	return meta, true, nil
}

// Bind ties the database to a dump. A new database stores meta; a used one
// must already hold the same meta.
func (s *Store) Bind(meta Meta) error {
	stored, ok, err := s.Meta()
	if err != nil {
		return err
	}

	if ok {
		if stored != meta {
			return fmt.Errorf("%w: stored %+v, requested %+v", ErrMetaMismatch, stored, meta)
		}

		return nil
	}

	data, err := msgpack.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot meta: %w", err)
	}

	if err := s.db.Set([]byte(metaKey), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to write snapshot meta: %w", err)
	}

	return nil
}

func namespaced(namespace byte, raw []byte) []byte {
	out := make([]byte, 0, len(raw)+1)
	out = append(out, namespace)

	return append(out, raw...)
}

// Handler returns a page handler writing every page in one batch.
// Raw key bytes map to raw value bytes.
func (s *Store) Handler() walker.Handler {
	return func(_ context.Context, page []kv.KeyValue) error {
		batch := s.db.NewBatch()
		defer func() { _ = batch.Close() }()

		for _, entry := range page {
			rawKey, err := keys.ToBytes(entry.Key)
			if err != nil {
				return fmt.Errorf("failed to store entry: %w", err)
			}

			var rawValue []byte
			if entry.Value != "" {
				if rawValue, err = keys.ToBytes(entry.Value); err != nil {
					return fmt.Errorf("failed to store value of %s: %w", entry.Key, err)
				}
			}

			if err := batch.Set(namespaced(entryNamespace, rawKey), rawValue, nil); err != nil {
				return fmt.Errorf("failed to store entry %s: %w", entry.Key, err)
			}
		}

		if err := batch.Commit(pebble.NoSync); err != nil {
			return fmt.Errorf("failed to commit page: %w", err)
		}

		s.written.Add(int64(len(page)))

		return nil
	}
}

// Written returns the number of entries written since Open.
func (s *Store) Written() int64 {
	return s.written.Load()
}

// Get returns the stored value of a hex key.
func (s *Store) Get(key string) (string, bool, error) {
	rawKey, err := keys.ToBytes(key)
	if err != nil {
		return "", false, fmt.Errorf("failed to read entry: %w", err)
	}

	data, closer, err := s.db.Get(namespaced(entryNamespace, rawKey))

	switch {
	case errors.Is(err, pebble.ErrNotFound):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("failed to read entry %s: %w", key, err)
	}

	defer func() { _ = closer.Close() }()

	return keys.FromBytes(bytes.Clone(data)), true, nil
}

// MarkDone records that every entry under prefix is stored. Entries are
// flushed first, so a done mark never outlives lost entries.
func (s *Store) MarkDone(prefix string) error {
	if err := s.db.Set(namespaced(doneNamespace, []byte(prefix)), nil, pebble.Sync); err != nil {
		return fmt.Errorf("failed to mark %s done: %w", prefix, err)
	}

	return nil
}

// Done reports whether prefix was marked done.
func (s *Store) Done(prefix string) (bool, error) {
	_, closer, err := s.db.Get(namespaced(doneNamespace, []byte(prefix)))

	switch {
	case errors.Is(err, pebble.ErrNotFound):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("failed to read done mark of %s: %w", prefix, err)
	}

	_ = closer.Close()

	return true, nil
}

// Pending returns the prefixes that are not marked done, in input order.
func (s *Store) Pending(prefixes []string) ([]string, error) {
	out := make([]string, 0, len(prefixes))

	for _, prefix := range prefixes {
		done, err := s.Done(prefix)
		if err != nil {
			return nil, err
		}

		if !done {
			out = append(out, prefix)
		}
	}

	return out, nil
}

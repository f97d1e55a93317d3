// Package tkv provides a Tarantool implementation of the storage source
// interface. Entries are tuples of a space whose primary index is built on
// a varbinary key field followed by a varbinary value field.
//
// Tarantool spaces keep no history, so walks always read the current state
// and chain positions are not supported.
package tkv

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/tarantool/go-tarantool/v2"
	"github.com/tarantool/go-tarantool/v2/pool"

	"github.com/tarantool/go-storage-walker/internal/options"
	"github.com/tarantool/go-storage-walker/keys"
	"github.com/tarantool/go-storage-walker/kv"
	"github.com/tarantool/go-storage-walker/source"
)

const (
	// DefaultSpace is the space read by default.
	DefaultSpace = "storage"
	// DefaultIndex is the index used by default.
	DefaultIndex = "primary"
)

var (
	_ source.Source = &Source{} //nolint:exhaustruct

	// ErrPositionUnsupported is returned when a chain position is requested.
	ErrPositionUnsupported = errors.New("tarantool source does not support chain positions")
)

type sourceOptions struct {
	Space string
	Index string
}

// Option configures a Source.
type Option = options.OptionCallback[sourceOptions]

// WithSpace sets the space to read.
func WithSpace(space string) Option {
	return func(opts *sourceOptions) {
		opts.Space = space
	}
}

// WithIndex sets the tree index used for ordered reads.
func WithIndex(index string) Option {
	return func(opts *sourceOptions) {
		opts.Index = index
	}
}

func defaultOptions() sourceOptions {
	return sourceOptions{
		Space: DefaultSpace,
		Index: DefaultIndex,
	}
}

// Source is a Tarantool implementation of the storage source interface.
type Source struct {
	conn   tarantool.Doer
	closer func() error
	opts   sourceOptions
}

// New creates a source issuing requests through doer.
// tarantool.Connection and pool.ConnectorAdapter implement tarantool.Doer.
func New(doer tarantool.Doer, opts ...Option) *Source {
	return &Source{
		conn:   doer,
		closer: nil,
		opts:   options.ApplyOptions(defaultOptions, opts),
	}
}

// Connect creates a connection pool to the instances and a source reading
// from replicas when possible.
func Connect(ctx context.Context, addrs []string, user, password string, opts ...Option) (*Source, error) {
	instances := make([]pool.Instance, 0, len(addrs))
	for i, addr := range addrs {
		instances = append(instances, pool.Instance{
			Name: fmt.Sprintf("instance-%d", i),
			Dialer: &tarantool.NetDialer{
				Address:  addr,
				User:     user,
				Password: password,
				RequiredProtocolInfo: tarantool.ProtocolInfo{
					Auth:     tarantool.AutoAuth,
					Version:  tarantool.ProtocolVersion(0),
					Features: nil,
				},
			},
			Opts: tarantool.Opts{
				Timeout:       0,
				Reconnect:     0,
				MaxReconnects: 0,
				RateLimit:     0,
				RLimitAction:  tarantool.RLimitAction(0),
				Concurrency:   0,
				SkipSchema:    false,
				Notify:        nil,
				Handle:        nil,
				Logger:        nil,
			},
		})
	}

	conn, err := pool.Connect(ctx, instances)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to tarantool pool: %w", err)
	}

	adapter := pool.NewConnectorAdapter(conn, pool.PreferRO)

	src := New(adapter, opts...)
	src.closer = adapter.Close

	return src, nil
}

// Close closes the pool created by Connect.
func (s *Source) Close() error {
	if s.closer == nil {
		return nil
	}

	if err := s.closer(); err != nil {
		return fmt.Errorf("failed to close tarantool pool: %w", err)
	}

	return nil
}

func checkPosition(at string) error {
	if at != "" {
		return fmt.Errorf("%w: %q", ErrPositionUnsupported, at)
	}

	return nil
}

func (s *Source) selectRequest(ctx context.Context, iterator tarantool.Iter, limit int, key []byte) *tarantool.SelectRequest {
	return tarantool.NewSelectRequest(s.opts.Space).
		Index(s.opts.Index).
		Iterator(iterator).
		Limit(uint32(limit)). //nolint:gosec
		Key([]any{key}).
		Context(ctx)
}

// Keys implements source.Source.
func (s *Source) Keys(ctx context.Context, prefix string, count int, startKey, at string) ([]string, error) {
	if err := checkPosition(at); err != nil {
		return nil, err
	}

	rawPrefix, err := keys.ToBytes(prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}

	iterator, start := tarantool.IterGe, rawPrefix

	if startKey != "" {
		rawStart, err := keys.ToBytes(startKey)
		if err != nil {
			return nil, fmt.Errorf("failed to list keys: %w", err)
		}

		if bytes.Compare(rawStart, rawPrefix) >= 0 {
			iterator, start = tarantool.IterGt, rawStart
		}
	}

	var tuples []tuple

	if err := s.conn.Do(s.selectRequest(ctx, iterator, count, start)).GetTyped(&tuples); err != nil {
		return nil, fmt.Errorf("failed to select keys: %w", err)
	}

	out := make([]string, 0, len(tuples))

	for _, tuple := range tuples {
		// The index is ordered, so the first key outside the prefix ends it.
		if !bytes.HasPrefix(tuple.Key, rawPrefix) {
			break
		}

		out = append(out, keys.FromBytes(tuple.Key))
	}

	return out, nil
}

// Values implements source.Source. Lookups of all keys are sent at once
// and pipelined over the connection.
func (s *Source) Values(ctx context.Context, pageKeys []string, at string) ([]kv.KeyValue, error) {
	if err := checkPosition(at); err != nil {
		return nil, err
	}

	futures := make([]*tarantool.Future, 0, len(pageKeys))

	for _, key := range pageKeys {
		raw, err := keys.ToBytes(key)
		if err != nil {
			return nil, fmt.Errorf("failed to get values: %w", err)
		}

		futures = append(futures, s.conn.Do(s.selectRequest(ctx, tarantool.IterEq, 1, raw)))
	}

	out := make([]kv.KeyValue, 0, len(pageKeys))

	for i, future := range futures {
		var tuples []tuple

		if err := future.GetTyped(&tuples); err != nil {
			return nil, fmt.Errorf("failed to get value of %s: %w", pageKeys[i], err)
		}

		if len(tuples) == 0 {
			continue
		}

		out = append(out, kv.KeyValue{
			Key:   keys.FromBytes(tuples[0].Key),
			Value: keys.FromBytes(tuples[0].Value),
		})
	}

	return out, nil
}

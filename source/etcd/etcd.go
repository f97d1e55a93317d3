// Package etcd provides an etcd implementation of the storage source
// interface.
//
// Keys and values are stored as raw bytes and exposed as 0x-prefixed hex.
// Chain positions are etcd revisions in decimal, so every page of a walk
// reads the same MVCC snapshot.
package etcd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	etcd "go.etcd.io/etcd/client/v3"

	"github.com/tarantool/go-storage-walker/keys"
	"github.com/tarantool/go-storage-walker/kv"
	"github.com/tarantool/go-storage-walker/source"
)

// Client defines the minimal interface needed for reading from etcd.
// *etcd.Client implements it.
type Client interface {
	// Get retrieves a key or a range of keys.
	Get(ctx context.Context, key string, opts ...etcd.OpOption) (*etcd.GetResponse, error)
}

var (
	_ Client        = (*etcd.Client)(nil)
	_ source.Source = &Source{} //nolint:exhaustruct
	_ source.Pinner = &Source{} //nolint:exhaustruct

	// ErrInvalidPosition is returned for chain positions that are not
	// revisions.
	ErrInvalidPosition = errors.New("invalid etcd revision")
)

// Source is an etcd implementation of the storage source interface.
type Source struct {
	client Client
	closer func() error
}

// New creates a source reading through an existing client.
func New(client Client) *Source {
	return &Source{client: client, closer: nil}
}

// Connect creates a client for the endpoints and a source using it.
func Connect(ctx context.Context, endpoints []string, dialTimeout time.Duration) (*Source, error) {
	client, err := etcd.New(etcd.Config{ //nolint:exhaustruct
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
		Context:     ctx,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	return &Source{client: client, closer: client.Close}, nil
}

// Close closes the client created by Connect.
func (s *Source) Close() error {
	if s.closer == nil {
		return nil
	}

	if err := s.closer(); err != nil {
		return fmt.Errorf("failed to close etcd client: %w", err)
	}

	return nil
}

func revision(at string) ([]etcd.OpOption, error) {
	if at == "" {
		return nil, nil
	}

	rev, err := strconv.ParseInt(at, 10, 64)
	if err != nil || rev <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPosition, at)
	}

	return []etcd.OpOption{etcd.WithRev(rev)}, nil
}

// Keys implements source.Source.
func (s *Source) Keys(ctx context.Context, prefix string, count int, startKey, at string) ([]string, error) {
	rawPrefix, err := keys.ToBytes(prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}

	opts, err := revision(at)
	if err != nil {
		return nil, err
	}

	start := rawPrefix
	if len(start) == 0 {
		start = []byte{0}
	}

	if startKey != "" {
		rawStart, err := keys.ToBytes(startKey)
		if err != nil {
			return nil, fmt.Errorf("failed to list keys: %w", err)
		}

		// The smallest key after startKey.
		rawStart = append(rawStart, 0)
		if bytes.Compare(rawStart, start) > 0 {
			start = rawStart
		}
	}

	opts = append(opts,
		etcd.WithRange(etcd.GetPrefixRangeEnd(string(rawPrefix))),
		etcd.WithLimit(int64(count)),
		etcd.WithKeysOnly(),
		etcd.WithSort(etcd.SortByKey, etcd.SortAscend),
	)

	resp, err := s.client.Get(ctx, string(start), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}

	out := make([]string, 0, len(resp.Kvs))
	for _, item := range resp.Kvs {
		out = append(out, keys.FromBytes(item.Key))
	}

	return out, nil
}

// Values implements source.Source. The keys are read with a single range
// request spanning from the smallest to the largest of them.
func (s *Source) Values(ctx context.Context, pageKeys []string, at string) ([]kv.KeyValue, error) {
	if len(pageKeys) == 0 {
		return nil, nil
	}

	opts, err := revision(at)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]struct{}, len(pageKeys))

	var first, last []byte

	for _, key := range pageKeys {
		raw, err := keys.ToBytes(key)
		if err != nil {
			return nil, fmt.Errorf("failed to get values: %w", err)
		}

		wanted[string(raw)] = struct{}{}

		if first == nil || bytes.Compare(raw, first) < 0 {
			first = raw
		}

		if last == nil || bytes.Compare(raw, last) > 0 {
			last = raw
		}
	}

	opts = append(opts,
		etcd.WithRange(string(last)+"\x00"),
		etcd.WithSort(etcd.SortByKey, etcd.SortAscend),
	)

	resp, err := s.client.Get(ctx, string(first), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to get values: %w", err)
	}

	out := make([]kv.KeyValue, 0, len(pageKeys))

	for _, item := range resp.Kvs {
		if _, ok := wanted[string(item.Key)]; !ok {
			continue
		}

		out = append(out, kv.KeyValue{
			Key:   keys.FromBytes(item.Key),
			Value: keys.FromBytes(item.Value),
		})
	}

	return out, nil
}

// Head implements source.Pinner. It returns the current revision of the
// cluster.
func (s *Source) Head(ctx context.Context) (string, error) {
	resp, err := s.client.Get(ctx, "\x00", etcd.WithCountOnly())
	if err != nil {
		return "", fmt.Errorf("failed to get revision: %w", err)
	}

	if resp.Header == nil {
		return "", fmt.Errorf("%w: response without header", ErrInvalidPosition)
	}

	return strconv.FormatInt(resp.Header.Revision, 10), nil
}

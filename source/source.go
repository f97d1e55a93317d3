// Package source defines the interface for remote storage implementations.
// It provides a common interface for backends like Substrate nodes, etcd and
// Tarantool that can list keys page by page and resolve their values.
package source

import (
	"context"

	"github.com/tarantool/go-storage-walker/kv"
)

// Source is the interface that storage sources must implement.
// All methods read state as of the chain position at; an empty position
// means the latest state known to the backend.
type Source interface {
	// Keys returns up to count keys under prefix that are strictly greater
	// than startKey, in ascending order. An empty startKey starts from the
	// beginning of the prefix range.
	Keys(ctx context.Context, prefix string, count int, startKey string, at string) ([]string, error)

	// Values returns the values of exactly the given keys.
	Values(ctx context.Context, keys []string, at string) ([]kv.KeyValue, error)
}

// Pinner is implemented by sources that can resolve their current chain
// position, so that a long walk reads one consistent snapshot.
type Pinner interface {
	// Head returns the current chain position. An empty result means the
	// backend has no addressable snapshots.
	Head(ctx context.Context) (string, error)
}

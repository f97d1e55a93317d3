// Package walker enumerates every key-value pair under a storage prefix of a
// remote store, page by page, at one fixed chain position.
//
// Sources for Substrate nodes, etcd and Tarantool live under
// [github.com/tarantool/go-storage-walker/source]. A walk over a whole prefix
// is usually split into 256 sub-prefixes with
// [github.com/tarantool/go-storage-walker/keys.Split] and run through a
// [github.com/tarantool/go-storage-walker/limiter.Limiter].
package walker

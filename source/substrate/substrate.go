// Package substrate reads storage of a Substrate node over JSON-RPC.
//
// Keys are listed with state_getKeysPaged and values are fetched with
// state_queryStorageAt, so a page costs two round trips. Chain positions
// are block hashes.
package substrate

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/time/rate"

	"github.com/tarantool/go-storage-walker/internal/options"
	"github.com/tarantool/go-storage-walker/kv"
	"github.com/tarantool/go-storage-walker/source"
)

// JSON-RPC methods used by the source.
const (
	MethodGetKeysPaged     = "state_getKeysPaged"
	MethodQueryStorageAt   = "state_queryStorageAt"
	MethodGetBlockHash     = "chain_getBlockHash"
	MethodGetFinalizedHead = "chain_getFinalizedHead"
)

// Caller performs a JSON-RPC call. *rpc.Client implements it.
type Caller interface {
	CallContext(ctx context.Context, result any, method string, args ...any) error
}

var (
	_ Caller        = (*rpc.Client)(nil)
	_ source.Source = &Source{}     //nolint:exhaustruct
	_ source.Pinner = &Source{}     //nolint:exhaustruct
)

type sourceOptions struct {
	Limiter   *rate.Limiter
	Finalized bool
}

// Option configures a Source.
type Option = options.OptionCallback[sourceOptions]

// WithRateLimit limits the rate of calls to the node. A non-positive rps
// disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(opts *sourceOptions) {
		if rps <= 0 {
			opts.Limiter = nil
			return
		}

		opts.Limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

// WithFinalized pins walks to the last finalized block instead of the best
// block.
func WithFinalized() Option {
	return func(opts *sourceOptions) {
		opts.Finalized = true
	}
}

func defaultOptions() sourceOptions {
	return sourceOptions{
		Limiter:   nil,
		Finalized: false,
	}
}

// Source is a storage source backed by a Substrate node.
type Source struct {
	caller Caller
	closer func()
	opts   sourceOptions
}

// New creates a source issuing calls through caller.
func New(caller Caller, opts ...Option) *Source {
	return &Source{
		caller: caller,
		closer: nil,
		opts:   options.ApplyOptions(defaultOptions, opts),
	}
}

// Dial connects to the node at url. Both HTTP and WebSocket endpoints
// are supported.
func Dial(ctx context.Context, url string, opts ...Option) (*Source, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}

	src := New(client, opts...)
	src.closer = client.Close

	return src, nil
}

// Close closes the connection opened by Dial.
func (s *Source) Close() {
	if s.closer != nil {
		s.closer()
	}
}

// optional maps an empty string to a JSON null.
func optional(value string) *string {
	if value == "" {
		return nil
	}

	return &value
}

func (s *Source) call(ctx context.Context, result any, method string, args ...any) error {
	if s.opts.Limiter != nil {
		if err := s.opts.Limiter.Wait(ctx); err != nil {
			return CallError{Method: method, Err: err}
		}
	}

	if err := s.caller.CallContext(ctx, result, method, args...); err != nil {
		return CallError{Method: method, Err: err}
	}

	return nil
}

// Keys implements source.Source.
func (s *Source) Keys(ctx context.Context, prefix string, count int, startKey, at string) ([]string, error) {
	var keys StorageKeys

	err := s.call(ctx, &keys, MethodGetKeysPaged, prefix, count, optional(startKey), optional(at))
	if err != nil {
		return nil, err
	}

	return keys, nil
}

// Values implements source.Source. Keys without a value are left out.
func (s *Source) Values(ctx context.Context, keys []string, at string) ([]kv.KeyValue, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	var changeSets []StorageChangeSet

	if err := s.call(ctx, &changeSets, MethodQueryStorageAt, keys, optional(at)); err != nil {
		return nil, err
	}

	out := make([]kv.KeyValue, 0, len(keys))

	for _, changeSet := range changeSets {
		for _, change := range changeSet.Changes {
			if change.Value == nil {
				continue
			}

			out = append(out, kv.KeyValue{Key: change.Key, Value: *change.Value})
		}
	}

	return out, nil
}

// Head implements source.Pinner. It returns the hash of the best block, or
// of the last finalized one when configured WithFinalized.
func (s *Source) Head(ctx context.Context) (string, error) {
	method := MethodGetBlockHash
	if s.opts.Finalized {
		method = MethodGetFinalizedHead
	}

	var hash BlockHash

	if err := s.call(ctx, &hash, method); err != nil {
		return "", err
	}

	return string(hash), nil
}

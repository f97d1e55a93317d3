package cli

import (
	"context"
	"fmt"

	"github.com/tarantool/go-storage-walker/source"
	"github.com/tarantool/go-storage-walker/source/etcd"
	"github.com/tarantool/go-storage-walker/source/substrate"
	"github.com/tarantool/go-storage-walker/source/tkv"
)

// SourceFactory opens the source described by the configuration. The
// returned function releases it.
type SourceFactory func(ctx context.Context, cfg Config) (source.Source, func(), error)

// OpenSource is the default SourceFactory.
func OpenSource(ctx context.Context, cfg Config) (source.Source, func(), error) {
	switch cfg.Backend {
	case BackendSubstrate:
		opts := []substrate.Option{substrate.WithRateLimit(cfg.RPS, cfg.Burst)}
		if cfg.Finalized {
			opts = append(opts, substrate.WithFinalized())
		}

		src, err := substrate.Dial(ctx, cfg.Endpoints[0], opts...)
		if err != nil {
			return nil, nil, err //nolint:wrapcheck
		}

		return src, src.Close, nil
	case BackendEtcd:
		src, err := etcd.Connect(ctx, cfg.Endpoints, cfg.DialTimeout)
		if err != nil {
			return nil, nil, err //nolint:wrapcheck
		}

		return src, func() { _ = src.Close() }, nil
	case BackendTarantool:
		src, err := tkv.Connect(ctx, cfg.Endpoints, cfg.TarantoolUser, cfg.TarantoolPassword,
			tkv.WithSpace(cfg.TarantoolSpace),
			tkv.WithIndex(cfg.TarantoolIndex),
		)
		if err != nil {
			return nil, nil, err //nolint:wrapcheck
		}

		return src, func() { _ = src.Close() }, nil
	default:
		return nil, nil, invalid("unknown backend %q", cfg.Backend)
	}
}

// pin resolves an empty chain position to the head of the source, so that
// reports and snapshots name the position actually read.
func pin(ctx context.Context, src source.Source, at string) (string, error) {
	if at != "" {
		return at, nil
	}

	pinner, ok := src.(source.Pinner)
	if !ok {
		return "", nil
	}

	head, err := pinner.Head(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to pin chain position: %w", err)
	}

	return head, nil
}

package cli

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	walker "github.com/tarantool/go-storage-walker"
	"github.com/tarantool/go-storage-walker/internal/snapshot"
	"github.com/tarantool/go-storage-walker/keys"
)

func newDumpCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{ //nolint:exhaustruct
		Use:   "dump PREFIX",
		Short: "Copy the entries under a prefix into a local database",
		Long: "dump stores every entry under PREFIX in a pebble database in --out. A sub-prefix is " +
			"marked complete once all its pages are stored, and a repeated dump into the same " +
			"directory walks only the incomplete ones, at the chain position of the first run.",
		Example: "  storagewalk dump System.Account --out ./accounts --endpoint ws://127.0.0.1:9944",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.dump(cmd.Context(), args[0])
		},
	}

	cmd.Flags().String("out", "", "snapshot directory")

	return cmd
}

func (a *app) dump(ctx context.Context, arg string) error {
	prefix, err := resolvePrefix(arg)
	if err != nil {
		return err
	}

	if a.cfg.Out == "" {
		return invalid("dump needs --out")
	}

	store, err := snapshot.Open(a.cfg.Out)
	if err != nil {
		return err //nolint:wrapcheck
	}
	defer func() { _ = store.Close() }()

	at := a.cfg.At
	if at == "" {
		meta, ok, err := store.Meta()
		if err != nil {
			return err //nolint:wrapcheck
		}

		if ok {
			at = meta.At
		}
	}

	var (
		markMu  sync.Mutex
		markErr error
	)

	markDone := func(prefix string, _ walker.Stats, walkErr error) {
		if walkErr != nil {
			return
		}

		if err := store.MarkDone(prefix); err != nil {
			markMu.Lock()
			markErr = errors.Join(markErr, err)
			markMu.Unlock()
		}
	}

	// A page that failed to store must keep its sub-prefix incomplete.
	s, err := a.openSession(ctx, "dump", at,
		walker.WithHandlerErrorPolicy(walker.StopOnHandlerError),
		walker.WithPrefixDoneHook(markDone),
	)
	if err != nil {
		return err
	}
	defer s.close()

	err = store.Bind(snapshot.Meta{
		Backend:  a.cfg.Backend,
		Endpoint: a.cfg.Endpoints[0],
		Prefix:   prefix,
		At:       s.at,
	})
	if err != nil {
		return err //nolint:wrapcheck
	}

	all := keys.Split(prefix)

	pending, err := store.Pending(all)
	if err != nil {
		return err //nolint:wrapcheck
	}

	s.logger.Info("dumping storage",
		zap.String("prefix", prefix),
		zap.String("out", a.cfg.Out),
		zap.Int("pending", len(pending)),
		zap.Int("skipped", len(all)-len(pending)),
	)

	start := time.Now()
	stats, walkErr := s.walker.WalkPrefixes(ctx, a.pool(), pending, s.at, s.track(store.Handler()))

	report := newReport("dump", a.cfg, prefix, s.at, len(pending))
	report.finish(stats, time.Since(start), walkErr)
	report.Dump = &DumpReport{
		Dir:     a.cfg.Out,
		Skipped: len(all) - len(pending),
		Written: store.Written(),
	}

	return a.print(report, errors.Join(walkErr, markErr))
}

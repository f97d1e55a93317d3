package cli

import (
	"context"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	walker "github.com/tarantool/go-storage-walker"
	"github.com/tarantool/go-storage-walker/kv"
)

func newCountCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{ //nolint:exhaustruct
		Use:   "count PREFIX",
		Short: "Count the keys under a prefix",
		Long: "count walks every key under PREFIX, a 0x-prefixed hex string or a Pallet.Item storage " +
			"name, split into 256 sub-prefixes walked in parallel. With --sample only a random subset " +
			"of the sub-prefixes is walked.",
		Example: "  storagewalk count System.Account --endpoint ws://127.0.0.1:9944\n" +
			"  storagewalk count 0x26aa --sample --probability 0.1 --seed 42",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.count(cmd.Context(), args[0])
		},
	}

	flags := cmd.Flags()
	flags.Bool("sample", false, "walk a random sample of the sub-prefixes")
	flags.String("override", "", "walk only this sub-prefix when sampling")
	flags.Uint64("seed", 0, "seed of the sample, random when 0")

	return cmd
}

func (a *app) count(ctx context.Context, arg string) error {
	prefix, err := resolvePrefix(arg)
	if err != nil {
		return err
	}

	var walked atomic.Int64

	s, err := a.openSession(ctx, "count", a.cfg.At,
		walker.WithPrefixDoneHook(func(string, walker.Stats, error) { walked.Add(1) }))
	if err != nil {
		return err
	}
	defer s.close()

	handler := s.track(func(context.Context, []kv.KeyValue) error { return nil })
	start := time.Now()

	var (
		stats   walker.Stats
		walkErr error
	)

	if a.cfg.Sample {
		opts := []walker.RandomOption{walker.WithProbability(a.cfg.Probability)}
		if a.cfg.Override != "" {
			opts = append(opts, walker.WithOverride(a.cfg.Override))
		}

		if a.cfg.Seed != 0 {
			opts = append(opts, walker.WithRand(rand.New(rand.NewPCG(a.cfg.Seed, a.cfg.Seed)))) //nolint:gosec
		}

		stats, walkErr = s.walker.WalkRandom(ctx, a.pool(), prefix, s.at, handler, opts...)
	} else {
		stats, walkErr = s.walker.WalkAll(ctx, a.pool(), prefix, s.at, handler)
	}

	report := newReport("count", a.cfg, prefix, s.at, int(walked.Load()))
	report.finish(stats, time.Since(start), walkErr)

	return a.print(report, walkErr)
}

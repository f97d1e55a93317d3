package walker

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/tarantool/go-option"
	"go.uber.org/zap"

	"github.com/tarantool/go-storage-walker/internal/options"
	"github.com/tarantool/go-storage-walker/keys"
	"github.com/tarantool/go-storage-walker/limiter"
)

// WalkPrefixes walks every prefix as a separate task scheduled through lim,
// all at the same chain position, and waits for all of them. The limiter is
// closed exactly once before returning, whatever the outcome.
//
// A failed prefix does not stop the others. When any prefix fails the
// returned error is a WalkError listing all of them; the returned Stats
// include the pages delivered by every walk, failed or not.
func (w *Walker) WalkPrefixes(
	ctx context.Context,
	lim limiter.Limiter,
	prefixes []string,
	at string,
	handler Handler,
) (stats Stats, err error) { //nolint:nonamedreturns
	defer func() {
		if closeErr := lim.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close limiter: %w", closeErr))
		}
	}()

	at, err = w.pin(ctx, at)
	if err != nil {
		return Stats{}, err
	}

	var (
		mu       sync.Mutex
		failures []PrefixFailure
	)

	record := func(prefix string, prefixStats Stats, walkErr error) {
		mu.Lock()
		defer mu.Unlock()

		stats.Add(prefixStats)

		if walkErr != nil {
			failures = append(failures, PrefixFailure{Prefix: prefix, Err: walkErr})
		}
	}

	for i, prefix := range prefixes {
		scheduleErr := lim.Schedule(ctx, func(ctx context.Context) error {
			prefixStats, walkErr := w.walk(ctx, prefix, at, handler)
			record(prefix, prefixStats, walkErr)

			if w.opts.PrefixDone != nil {
				w.opts.PrefixDone(prefix, prefixStats, walkErr)
			}

			return nil
		})
		if scheduleErr != nil {
			for _, skipped := range prefixes[i:] {
				record(skipped, Stats{}, scheduleErr)
			}

			break
		}
	}

	waitErr := lim.Wait()

	mu.Lock()
	defer mu.Unlock()

	if len(failures) > 0 {
		sort.Slice(failures, func(i, j int) bool { return failures[i].Prefix < failures[j].Prefix })

		w.opts.Logger.Warn("storage walk incomplete",
			zap.Int("failed", len(failures)),
			zap.Int("total", len(prefixes)),
		)

		walkErr := WalkError{Total: len(prefixes), Failures: failures}
		if waitErr != nil {
			return stats, errors.Join(walkErr, waitErr)
		}

		return stats, walkErr
	}

	if waitErr != nil {
		return stats, fmt.Errorf("limiter failed: %w", waitErr)
	}

	return stats, nil
}

// WalkAll walks the whole prefix by splitting it into 256 sub-prefixes.
func (w *Walker) WalkAll(
	ctx context.Context,
	lim limiter.Limiter,
	prefix, at string,
	handler Handler,
) (Stats, error) {
	return w.WalkPrefixes(ctx, lim, keys.Split(prefix), at, handler)
}

type randomOptions struct {
	Probability float64
	Override    option.Generic[string]
	Rand        *rand.Rand
}

// RandomOption configures WalkRandom.
type RandomOption = options.OptionCallback[randomOptions]

// WithProbability sets the inclusion probability of every sub-prefix.
func WithProbability(probability float64) RandomOption {
	return func(opts *randomOptions) {
		opts.Probability = probability
	}
}

// WithOverride walks exactly the given prefix instead of a sample.
func WithOverride(prefix string) RandomOption {
	return func(opts *randomOptions) {
		opts.Override = option.Some(prefix)
	}
}

// WithRand sets the random source used for sampling.
func WithRand(rnd *rand.Rand) RandomOption {
	return func(opts *randomOptions) {
		opts.Rand = rnd
	}
}

func defaultRandomOptions() randomOptions {
	return randomOptions{
		Probability: keys.DefaultSampleProbability,
		Override:    option.None[string](),
		Rand:        nil,
	}
}

// WalkRandom walks a random sample of the 256 sub-prefixes of prefix, or the
// single override prefix when one is set. The sample is not reproducible
// unless a seeded random source is passed, so it suits spot checks only and
// never exhaustive ones.
func (w *Walker) WalkRandom(
	ctx context.Context,
	lim limiter.Limiter,
	prefix, at string,
	handler Handler,
	opts ...RandomOption,
) (Stats, error) {
	randomOpts := options.ApplyOptions(defaultRandomOptions, opts)

	var prefixes []string
	if randomOpts.Override.IsSome() {
		prefixes = []string{randomOpts.Override.UnwrapOr(prefix)}
	} else {
		prefixes = keys.Sample(prefix, randomOpts.Probability, randomOpts.Rand)
	}

	w.opts.Logger.Info("walking sampled prefixes",
		zap.String("prefix", prefix),
		zap.Int("prefixes", len(prefixes)),
	)

	return w.WalkPrefixes(ctx, lim, prefixes, at, handler)
}

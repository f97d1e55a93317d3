package walker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tarantool/go-storage-walker/internal/options"
	"github.com/tarantool/go-storage-walker/kv"
	"github.com/tarantool/go-storage-walker/source"
)

// DefaultPageSize is the number of keys requested per page.
const DefaultPageSize = 1000

// ErrInvalidPageSize is returned by New for non-positive page sizes.
var ErrInvalidPageSize = errors.New("page size must be positive")

// Handler processes one page of entries. Fan-out walks call it from several
// goroutines at once, so it must be safe for concurrent use.
type Handler func(ctx context.Context, page []kv.KeyValue) error

// HandlerErrorPolicy decides what a walk does when the handler fails.
type HandlerErrorPolicy int

const (
	// ContinueOnHandlerError logs the failure with its prefix and moves on
	// to the next page.
	ContinueOnHandlerError HandlerErrorPolicy = iota
	// StopOnHandlerError aborts the walk of the prefix with a HandlerError.
	StopOnHandlerError
)

func (p HandlerErrorPolicy) String() string {
	switch p {
	case ContinueOnHandlerError:
		return "Continue"
	case StopOnHandlerError:
		return "Stop"
	default:
		return "Unknown"
	}
}

// PrefixDoneFunc is called by fan-out walks once per prefix when its walk
// returns. A single Walk does not call it.
type PrefixDoneFunc func(prefix string, stats Stats, err error)

type walkerOptions struct {
	PageSize   int
	Logger     *zap.Logger
	Policy     HandlerErrorPolicy
	Metrics    *Metrics
	PrefixDone PrefixDoneFunc
}

// Option configures a Walker.
type Option = options.OptionCallback[walkerOptions]

// WithPageSize sets the number of keys requested per page.
func WithPageSize(size int) Option {
	return func(opts *walkerOptions) {
		opts.PageSize = size
	}
}

// WithLogger sets the logger used to report handler failures.
func WithLogger(logger *zap.Logger) Option {
	return func(opts *walkerOptions) {
		if logger != nil {
			opts.Logger = logger
		}
	}
}

// WithHandlerErrorPolicy sets what happens when the handler fails.
func WithHandlerErrorPolicy(policy HandlerErrorPolicy) Option {
	return func(opts *walkerOptions) {
		opts.Policy = policy
	}
}

// WithMetrics sets the Prometheus collectors updated during walks.
func WithMetrics(metrics *Metrics) Option {
	return func(opts *walkerOptions) {
		opts.Metrics = metrics
	}
}

// WithPrefixDoneHook sets a callback invoked after each prefix walk of
// WalkPrefixes, WalkAll and WalkRandom.
func WithPrefixDoneHook(hook PrefixDoneFunc) Option {
	return func(opts *walkerOptions) {
		opts.PrefixDone = hook
	}
}

func defaultOptions() walkerOptions {
	return walkerOptions{
		PageSize:   DefaultPageSize,
		Logger:     zap.NewNop(),
		Policy:     ContinueOnHandlerError,
		Metrics:    nil,
		PrefixDone: nil,
	}
}

func validateOptions(opts walkerOptions) error {
	if opts.PageSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPageSize, opts.PageSize)
	}

	return nil
}

// Stats summarizes a walk.
type Stats struct {
	Pages         int
	Keys          int
	HandlerErrors int
}

// Add accumulates other into s.
func (s *Stats) Add(other Stats) {
	s.Pages += other.Pages
	s.Keys += other.Keys
	s.HandlerErrors += other.HandlerErrors
}

// Walker pages through a source. It holds no per-walk state and can run
// any number of walks concurrently.
type Walker struct {
	src  source.Source
	opts walkerOptions
}

// New creates a Walker reading from src.
func New(src source.Source, opts ...Option) (*Walker, error) {
	walkerOpts, err := options.ApplyAndValidate(defaultOptions, opts, validateOptions)
	if err != nil {
		return nil, err
	}

	return &Walker{
		src:  src,
		opts: walkerOpts,
	}, nil
}

// PageSize returns the number of keys requested per page.
func (w *Walker) PageSize() int {
	return w.opts.PageSize
}

// Walk delivers every entry under prefix at chain position at to handler,
// in pages of at most PageSize entries and ascending key order. An empty at
// is pinned to the current head first when the source supports it, so the
// whole walk reads one snapshot.
//
// Handler failures follow the configured HandlerErrorPolicy. Remote call
// failures abort the walk with a TransportError.
func (w *Walker) Walk(ctx context.Context, prefix, at string, handler Handler) (Stats, error) {
	at, err := w.pin(ctx, at)
	if err != nil {
		return Stats{}, err
	}

	return w.walk(ctx, prefix, at, handler)
}

// pin resolves an empty chain position to the current head of the source.
func (w *Walker) pin(ctx context.Context, at string) (string, error) {
	if at != "" {
		return at, nil
	}

	pinner, ok := w.src.(source.Pinner)
	if !ok {
		return "", nil
	}

	start := time.Now()
	head, err := pinner.Head(ctx)
	w.opts.Metrics.observeRequest(OpHead, start, err)

	if err != nil {
		return "", TransportError{Prefix: "", Op: OpHead, Err: err}
	}

	return head, nil
}

func (w *Walker) walk(ctx context.Context, prefix, at string, handler Handler) (Stats, error) {
	var (
		stats  Stats
		cursor string
	)

	for {
		keys, err := w.keys(ctx, prefix, cursor, at)
		if err != nil {
			return stats, err
		}

		if len(keys) == 0 {
			return stats, nil
		}

		values, err := w.values(ctx, prefix, keys, at)
		if err != nil {
			return stats, err
		}

		page := kv.Align(keys, values)

		stats.Pages++
		stats.Keys += len(page)
		w.opts.Metrics.observePage(len(page))

		if err := w.handle(ctx, prefix, handler, page); err != nil {
			stats.HandlerErrors++
			w.opts.Metrics.observeHandlerError()

			if w.opts.Policy == StopOnHandlerError {
				return stats, err
			}

			w.opts.Logger.Error("page handler failed, continuing",
				zap.String("prefix", prefix),
				zap.String("first_key", page[0].Key),
				zap.Error(err),
			)
		}

		if len(keys) < w.opts.PageSize {
			return stats, nil
		}

		cursor = keys[len(keys)-1]
	}
}

func (w *Walker) keys(ctx context.Context, prefix, cursor, at string) ([]string, error) {
	start := time.Now()
	keys, err := w.src.Keys(ctx, prefix, w.opts.PageSize, cursor, at)
	w.opts.Metrics.observeRequest(OpKeys, start, err)

	if err != nil {
		return nil, TransportError{Prefix: prefix, Op: OpKeys, Err: err}
	}

	return keys, nil
}

func (w *Walker) values(ctx context.Context, prefix string, keys []string, at string) ([]kv.KeyValue, error) {
	start := time.Now()
	values, err := w.src.Values(ctx, keys, at)
	w.opts.Metrics.observeRequest(OpValues, start, err)

	if err != nil {
		return nil, TransportError{Prefix: prefix, Op: OpValues, Err: err}
	}

	return values, nil
}

// handle calls the handler, turning errors and panics into a HandlerError.
func (w *Walker) handle(ctx context.Context, prefix string, handler Handler, page []kv.KeyValue) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = HandlerError{
				Prefix:   prefix,
				FirstKey: page[0].Key,
				Err:      fmt.Errorf("panic: %v", recovered), //nolint:err113
			}
		}
	}()

	if handlerErr := handler(ctx, page); handlerErr != nil {
		return HandlerError{Prefix: prefix, FirstKey: page[0].Key, Err: handlerErr}
	}

	return nil
}

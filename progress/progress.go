// Package progress periodically logs throughput and memory usage of a
// long running walk.
package progress

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/tarantool/go-storage-walker/internal/options"
)

// DefaultInterval is the default time between two progress lines.
const DefaultInterval = 5 * time.Second

type reporterOptions struct {
	Interval time.Duration
	Name     string
}

// Option configures a Reporter.
type Option = options.OptionCallback[reporterOptions]

// WithInterval sets the time between two progress lines.
func WithInterval(interval time.Duration) Option {
	return func(opts *reporterOptions) {
		if interval > 0 {
			opts.Interval = interval
		}
	}
}

// WithName sets the name attached to every progress line.
func WithName(name string) Option {
	return func(opts *reporterOptions) {
		opts.Name = name
	}
}

func defaultOptions() reporterOptions {
	return reporterOptions{
		Interval: DefaultInterval,
		Name:     "walk",
	}
}

// Reporter logs the cumulative item count, throughput and memory usage on
// a fixed interval until stopped. It is safe for concurrent use.
type Reporter struct {
	logger *zap.Logger
	opts   reporterOptions
	start  time.Time
	count  atomic.Int64

	stop     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// Start creates a reporter and starts its timer.
func Start(logger *zap.Logger, opts ...Option) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}

	reporter := &Reporter{ //nolint:exhaustruct
		logger:  logger,
		opts:    options.ApplyOptions(defaultOptions, opts),
		start:   time.Now(),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	go reporter.run()

	return reporter
}

// Add increases the processed item count.
func (r *Reporter) Add(n int) {
	r.count.Add(int64(n))
}

// Count returns the processed item count.
func (r *Reporter) Count() int64 {
	return r.count.Load()
}

// Stop cancels the timer and logs a final line. It waits until the
// reporting goroutine exits and may be called more than once.
func (r *Reporter) Stop() {
	r.stopOnce.Do(func() {
		close(r.stop)
		<-r.stopped

		r.report("storage walk finished")
	})
}

func (r *Reporter) run() {
	defer close(r.stopped)

	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.report("storage walk progress")
		case <-r.stop:
			return
		}
	}
}

func (r *Reporter) report(msg string) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	count := r.count.Load()
	elapsed := time.Since(r.start)

	r.logger.Info(msg,
		zap.String("name", r.opts.Name),
		zap.Int64("items", count),
		zap.String("items_human", humanize.Comma(count)),
		zap.Float64("rate", Throughput(count, elapsed)),
		zap.Duration("elapsed", elapsed.Round(time.Millisecond)),
		zap.String("heap", humanize.Bytes(mem.HeapAlloc)),
		zap.String("sys", humanize.Bytes(mem.Sys)),
	)
}

// Throughput returns items per second.
func Throughput(count int64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}

	return float64(count) / elapsed.Seconds()
}

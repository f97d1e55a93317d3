package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	walker "github.com/tarantool/go-storage-walker"
	"github.com/tarantool/go-storage-walker/kv"
	"github.com/tarantool/go-storage-walker/limiter"
	"github.com/tarantool/go-storage-walker/progress"
	"github.com/tarantool/go-storage-walker/source"
)

const shutdownTimeout = 5 * time.Second

// session is one walk against an open source, pinned to one position.
type session struct {
	logger   *zap.Logger
	src      source.Source
	at       string
	walker   *walker.Walker
	reporter *progress.Reporter
	closers  []func()
}

// openSession connects to the configured backend and pins the chain
// position. Extra walker options are appended to the configured ones.
func (a *app) openSession(ctx context.Context, name string, at string, extra ...walker.Option) (*session, error) {
	if err := a.cfg.ValidateSource(); err != nil {
		return nil, err
	}

	src, closeSource, err := a.opts.Sources(ctx, a.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s source: %w", a.cfg.Backend, err)
	}

	s := &session{ //nolint:exhaustruct
		logger:  a.logger.With(zap.String("command", name), zap.String("backend", a.cfg.Backend)),
		src:     src,
		closers: []func(){closeSource},
	}

	s.at, err = pin(ctx, src, at)
	if err != nil {
		s.close()
		return nil, err
	}

	policy := walker.ContinueOnHandlerError
	if a.cfg.StopOnError {
		policy = walker.StopOnHandlerError
	}

	walkerOpts := []walker.Option{
		walker.WithPageSize(a.cfg.PageSize),
		walker.WithLogger(s.logger),
		walker.WithHandlerErrorPolicy(policy),
	}

	if a.cfg.MetricsAddr != "" {
		metrics, err := s.serveMetrics(a.cfg.MetricsAddr)
		if err != nil {
			s.close()
			return nil, err
		}

		walkerOpts = append(walkerOpts, walker.WithMetrics(metrics))
	}

	s.walker, err = walker.New(src, append(walkerOpts, extra...)...)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("failed to create walker: %w", err)
	}

	s.reporter = progress.Start(s.logger,
		progress.WithName(name),
		progress.WithInterval(a.cfg.ProgressInterval),
	)
	s.closers = append(s.closers, s.reporter.Stop)

	s.logger.Info("session opened", zap.String("at", s.at), zap.Int("page_size", a.cfg.PageSize))

	return s, nil
}

// serveMetrics exposes a fresh registry over HTTP until the session closes.
func (s *session) serveMetrics(addr string) (*walker.Metrics, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	metrics, err := walker.NewMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})) //nolint:exhaustruct

	server := &http.Server{Handler: mux, ReadHeaderTimeout: shutdownTimeout} //nolint:exhaustruct

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	s.logger.Info("serving metrics", zap.String("addr", listener.Addr().String()))

	s.closers = append(s.closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		_ = server.Shutdown(ctx)
	})

	return metrics, nil
}

// track wraps handler to feed the progress reporter.
func (s *session) track(handler walker.Handler) walker.Handler {
	return func(ctx context.Context, page []kv.KeyValue) error {
		err := handler(ctx, page)
		s.reporter.Add(len(page))

		return err
	}
}

// pool returns a fresh limiter. WalkPrefixes closes it.
func (a *app) pool() limiter.Limiter {
	return limiter.NewPool(a.cfg.Concurrency)
}

// close releases resources in reverse order of acquisition.
func (s *session) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}

	s.closers = nil
}

package walker

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors updated by a Walker.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	pages           prometheus.Counter
	keys            prometheus.Counter
	handlerErrors   prometheus.Counter
	transportErrors prometheus.Counter
	requestDuration *prometheus.HistogramVec
}

// NewMetrics creates the walker collectors and registers them with reg.
// Collectors that are already registered are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	var (
		metrics = &Metrics{} //nolint:exhaustruct
		err     error
	)

	metrics.pages, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{ //nolint:exhaustruct
		Name: "storage_walker_pages_total",
		Help: "Number of pages delivered to handlers.",
	}))
	if err != nil {
		return nil, err
	}

	metrics.keys, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{ //nolint:exhaustruct
		Name: "storage_walker_keys_total",
		Help: "Number of keys delivered to handlers.",
	}))
	if err != nil {
		return nil, err
	}

	metrics.handlerErrors, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{ //nolint:exhaustruct
		Name: "storage_walker_handler_errors_total",
		Help: "Number of pages the handler failed to process.",
	}))
	if err != nil {
		return nil, err
	}

	metrics.transportErrors, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{ //nolint:exhaustruct
		Name: "storage_walker_transport_errors_total",
		Help: "Number of failed remote calls.",
	}))
	if err != nil {
		return nil, err
	}

	metrics.requestDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{ //nolint:exhaustruct
		Name:    "storage_walker_request_duration_seconds",
		Help:    "Duration of remote calls by operation.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"}))
	if err != nil {
		return nil, err
	}

	return metrics, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, collector T) (T, error) {
	err := reg.Register(collector)

	var already prometheus.AlreadyRegisteredError

	switch {
	case err == nil:
		return collector, nil
	case errors.As(err, &already):
		existing, ok := already.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("failed to register walker metrics: %w", err)
		}

		return existing, nil
	default:
		return collector, fmt.Errorf("failed to register walker metrics: %w", err)
	}
}

func (m *Metrics) observePage(keys int) {
	if m == nil {
		return
	}

	m.pages.Inc()
	m.keys.Add(float64(keys))
}

func (m *Metrics) observeHandlerError() {
	if m == nil {
		return
	}

	m.handlerErrors.Inc()
}

func (m *Metrics) observeRequest(op Op, start time.Time, err error) {
	if m == nil {
		return
	}

	m.requestDuration.WithLabelValues(string(op)).Observe(time.Since(start).Seconds())

	if err != nil {
		m.transportErrors.Inc()
	}
}

package docsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/docsync/internal/usecase/indexer"
)

// sdkMetrics holds prometheus metrics registered for the SDK.
type sdkMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	syncEvents *prometheus.CounterVec
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	m := &sdkMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docsync",
			Subsystem: "sdk",
			Name:      "operations_total",
			Help:      "Total SDK operations by type and status.",
		}, []string{"operation", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docsync",
			Subsystem: "sdk",
			Name:      "operation_duration_seconds",
			Help:      "SDK operation duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		syncEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docsync",
			Subsystem: "sdk",
			Name:      "sync_events_total",
			Help:      "Search engine index and unindex outcomes by collection.",
		}, []string{"operation", "collection", "status"}),
	}
	if err := registerOrReuse(reg, &m.operations); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.syncEvents); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse registers a collector or reuses an existing one.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	if err := reg.Register(*c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			existing, ok := are.ExistingCollector.(T)
			if !ok {
				return fmt.Errorf("docsync: metric already registered with incompatible type: %T", are.ExistingCollector)
			}
			*c = existing
			return nil
		}
		return fmt.Errorf("docsync: register metric: %w", err)
	}
	return nil
}

// observer provides logging and metrics for SDK operations. It also receives the
// outcome of every search engine update.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

var _ indexer.Observer = (*observer)(nil)

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	var m *sdkMetrics
	if reg != nil {
		var err error
		m, err = newSDKMetrics(reg)
		if err != nil {
			return nil, err
		}
	}
	return &observer{logger: logger, metrics: m}, nil
}

func (o *observer) observe(op string, start time.Time, err error) {
	if o == nil {
		return
	}
	dur := time.Since(start)

	if o.metrics != nil {
		o.metrics.operations.WithLabelValues(op, statusOf(err)).Inc()
		o.metrics.duration.WithLabelValues(op).Observe(dur.Seconds())
	}

	if o.logger != nil {
		if err != nil {
			o.logger.Warn("operation failed",
				"op", op,
				"duration", dur,
				"error", err,
			)
		} else {
			o.logger.Debug("operation completed",
				"op", op,
				"duration", dur,
			)
		}
	}
}

// OnIndexed implements indexer.Observer.
func (o *observer) OnIndexed(ctx context.Context, r indexer.Result) { o.sync(ctx, r) }

// OnUnindexed implements indexer.Observer.
func (o *observer) OnUnindexed(ctx context.Context, r indexer.Result) { o.sync(ctx, r) }

// OnError implements indexer.Observer.
func (o *observer) OnError(ctx context.Context, r indexer.Result) { o.sync(ctx, r) }

func (o *observer) sync(ctx context.Context, r indexer.Result) {
	if o == nil {
		return
	}
	if o.metrics != nil {
		o.metrics.syncEvents.WithLabelValues(string(r.Operation), r.Collection, statusOf(r.Err)).Inc()
	}
	if o.logger == nil {
		return
	}
	if r.Err != nil {
		o.logger.WarnContext(ctx, "search sync failed",
			"operation", string(r.Operation),
			"collection", r.Collection,
			"id", r.ID,
			"status", r.Status,
			"error", r.Err,
		)
		return
	}
	o.logger.DebugContext(ctx, "search sync completed",
		"operation", string(r.Operation),
		"collection", r.Collection,
		"id", r.ID,
	)
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

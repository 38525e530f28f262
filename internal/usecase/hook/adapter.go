// Package hook connects primary-store lifecycle events to the indexer.
package hook

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docsync/internal/domain"
	"github.com/kailas-cloud/docsync/internal/domain/endpoint"
	"github.com/kailas-cloud/docsync/internal/domain/record"
	"github.com/kailas-cloud/docsync/internal/logger"
	"github.com/kailas-cloud/docsync/internal/metrics"
)

// Event names a lifecycle notification.
type Event string

const (
	// EventSaved fires after a record is created or updated.
	EventSaved Event = "saved"
	// EventRemoved fires after a record is deleted.
	EventRemoved Event = "removed"
)

// Adapter turns save and remove notifications into index and unindex calls.
// Its methods never fail: the write to the primary store has already happened, so
// problems are logged or handed to the indexer's observer instead.
type Adapter struct {
	resolver Resolver
	indexer  Indexer
	logger   *zap.Logger
	async    bool

	wg sync.WaitGroup
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithAsync makes each notification run on its own goroutine. Call Wait to drain them.
func WithAsync(async bool) Option {
	return func(a *Adapter) { a.async = async }
}

// New creates an Adapter.
func New(resolver Resolver, idx Indexer, l *zap.Logger, opts ...Option) *Adapter {
	if l == nil {
		l = zap.NewNop()
	}
	a := &Adapter{resolver: resolver, indexer: idx, logger: l}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// OnSaved indexes the current state of rec.
func (a *Adapter) OnSaved(ctx context.Context, rec *record.Record) {
	a.dispatch(ctx, EventSaved, rec)
}

// OnRemoved unindexes rec.
func (a *Adapter) OnRemoved(ctx context.Context, rec *record.Record) {
	a.dispatch(ctx, EventRemoved, rec)
}

// Wait blocks until every in-flight asynchronous notification has finished.
func (a *Adapter) Wait() {
	a.wg.Wait()
}

func (a *Adapter) dispatch(ctx context.Context, ev Event, rec *record.Record) {
	if rec == nil {
		return
	}
	o, ok := a.prepare(ctx, ev, rec)
	if !ok {
		return
	}
	if !a.async {
		a.run(ctx, ev, rec, o)
		return
	}

	// The caller may reuse rec and cancel ctx as soon as we return.
	snapshot := rec.Clone()
	detached := context.WithoutCancel(ctx)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.run(detached, ev, snapshot, o)
	}()
}

func (a *Adapter) prepare(ctx context.Context, ev Event, rec *record.Record) (endpoint.Options, bool) {
	l := logger.ForCollection(logger.FromContext(ctx, a.logger), rec.Collection, "")
	if rec.ID.IsZero() {
		metrics.HookSuppressedTotal.WithLabelValues(rec.Collection, string(ev)).Inc()
		l.Warn("Skipping search sync", zap.String("event", string(ev)), zap.Error(domain.ErrMissingID))
		return endpoint.Options{}, false
	}
	o, err := a.resolver.Resolve(rec.Collection)
	if err != nil {
		metrics.HookSuppressedTotal.WithLabelValues(rec.Collection, string(ev)).Inc()
		l.Error("Skipping search sync",
			zap.String("event", string(ev)),
			zap.String("record_id", rec.ID.Hex()),
			zap.Error(err),
		)
		return endpoint.Options{}, false
	}
	return o, true
}

func (a *Adapter) run(ctx context.Context, ev Event, rec *record.Record, o endpoint.Options) {
	defer func() {
		if rvr := recover(); rvr != nil {
			metrics.HookSuppressedTotal.WithLabelValues(rec.Collection, string(ev)).Inc()
			logger.ForCollection(logger.FromContext(ctx, a.logger), rec.Collection, "").Error("Search sync panicked",
				zap.String("event", string(ev)),
				zap.String("record_id", rec.ID.Hex()),
				zap.Any("panic", rvr),
				zap.Stack("stack"),
			)
		}
	}()
	if ev == EventRemoved {
		a.indexer.Unindex(ctx, rec, o)
		return
	}
	a.indexer.Index(ctx, rec, o)
}

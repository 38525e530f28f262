// Package resync rebuilds a collection's search index from the primary store and
// switches readers over to it atomically through an alias.
package resync

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/docsync/internal/domain"
	"github.com/kailas-cloud/docsync/internal/domain/endpoint"
	"github.com/kailas-cloud/docsync/internal/domain/generation"
	"github.com/kailas-cloud/docsync/internal/domain/record"
	"github.com/kailas-cloud/docsync/internal/domain/serialize"
	"github.com/kailas-cloud/docsync/internal/metrics"
)

// DefaultBatchSize is the number of records per bulk request.
const DefaultBatchSize = 500

// Config tunes a Service.
type Config struct {
	BatchSize int           // 0 = DefaultBatchSize
	Timeout   time.Duration // whole run; 0 = no limit
}

// Report describes one run. State is the last state reached: StateDone on success,
// StateFailed otherwise.
type Report struct {
	Collection string
	Alias      string
	Generation string
	Previous   []string
	Documents  int
	Batches    int
	State      generation.State
	CleanupErr error
	Duration   time.Duration
}

// Service runs resynchronizations. Runs of different collections may proceed
// concurrently; a second run of the same collection is refused while one is active.
type Service struct {
	engine    Engine
	source    Source
	resolver  Resolver
	logger    *zap.Logger
	batchSize int
	timeout   time.Duration

	mu      sync.Mutex
	running map[string]bool
}

// New creates a Service.
func New(engine Engine, source Source, resolver Resolver, l *zap.Logger, cfg Config) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if l == nil {
		l = zap.NewNop()
	}
	return &Service{
		engine:    engine,
		source:    source,
		resolver:  resolver,
		logger:    l,
		batchSize: cfg.BatchSize,
		timeout:   cfg.Timeout,
		running:   make(map[string]bool),
	}
}

// Run rebuilds the index of collection into a fresh generation and swaps the alias to it.
// Readers see either the complete old generation or the complete new one. On failure
// before the swap the alias is left untouched and the partial generation is dropped.
func (s *Service) Run(ctx context.Context, collection string) (Report, error) {
	if !s.acquire(collection) {
		return Report{Collection: collection, State: generation.StateFailed},
			fmt.Errorf("resync %s: %w", collection, domain.ErrResyncInProgress)
	}
	defer s.release(collection)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	r := &run{Service: s, report: Report{Collection: collection, State: generation.StateStart}}
	r.log = s.logger.With(zap.String("collection", collection))

	err := r.execute(ctx)
	r.report.Duration = time.Since(start)
	if err != nil {
		r.report.State = generation.StateFailed
		metrics.ResyncRunsTotal.WithLabelValues(collection, "failed").Inc()
		r.log.Error("Resync failed", zap.String("generation", r.report.Generation), zap.Error(err))
		return r.report, fmt.Errorf("resync %s: %w", collection, err)
	}

	metrics.ResyncRunsTotal.WithLabelValues(collection, "done").Inc()
	r.log.Info("Resync finished",
		zap.String("alias", r.report.Alias),
		zap.String("generation", r.report.Generation),
		zap.Int("documents", r.report.Documents),
		zap.Int("batches", r.report.Batches),
		zap.Duration("duration", r.report.Duration),
	)
	return r.report, nil
}

func (s *Service) acquire(collection string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[collection] {
		return false
	}
	s.running[collection] = true
	return true
}

func (s *Service) release(collection string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, collection)
}

// run holds the state of a single resynchronization.
type run struct {
	*Service
	report Report
	log    *zap.Logger
}

func (r *run) transition(to generation.State) {
	r.log.Info("Resync state", zap.String("from", string(r.report.State)), zap.String("to", string(to)))
	r.report.State = to
}

func (r *run) execute(ctx context.Context) error {
	o, err := r.resolver.Resolve(r.report.Collection)
	if err != nil {
		return err //nolint:wrapcheck // already names the collection
	}
	alias := o.FullIndexName()
	r.report.Alias = alias

	previous, err := r.engine.ResolveAlias(ctx, o, alias)
	if err != nil {
		return err //nolint:wrapcheck // engine errors carry the request
	}
	r.report.Previous = previous

	// Live indexing before the first resync writes to a concrete index named like the alias.
	occupied := false
	if len(previous) == 0 {
		if occupied, err = r.engine.IndexExists(ctx, o); err != nil {
			return err //nolint:wrapcheck // engine errors carry the request
		}
	}

	r.report.Generation = generation.NewName(alias)
	next := o.WithIndex(r.report.Generation)
	if err := r.engine.CreateIndex(ctx, next); err != nil {
		return err //nolint:wrapcheck // engine errors carry the request
	}
	r.transition(generation.StateIndexCreated)

	r.transition(generation.StateLoading)
	if err := r.load(ctx, next); err != nil {
		r.discard(ctx, next)
		return err
	}

	r.transition(generation.StateAliasSwap)
	actions := generation.Swap(alias, r.report.Generation, previous, occupied)
	if err := r.engine.UpdateAliases(ctx, o, actions); err != nil {
		if !r.swapLanded(ctx, o, alias, next) {
			return err //nolint:wrapcheck // engine errors carry the request
		}
		r.log.Warn("Alias swap reported an error but is in effect", zap.Error(err))
	}

	r.transition(generation.StateCleanup)
	r.report.CleanupErr = r.cleanup(ctx, o, alias, previous)
	if r.report.CleanupErr != nil {
		r.log.Warn("Old generations left behind", zap.Error(r.report.CleanupErr))
	}

	r.transition(generation.StateDone)
	return nil
}

type batch struct {
	body []byte
	size int
}

// load streams the collection into next: one goroutine reads and encodes batches,
// another posts them in order.
func (r *run) load(ctx context.Context, next endpoint.Options) error {
	g, gctx := errgroup.WithContext(ctx)
	batches := make(chan batch, 1)

	g.Go(func() error {
		defer close(batches)
		return r.source.Iterate(gctx, r.report.Collection, r.batchSize, func(recs []*record.Record) error {
			items := make([]generation.BulkItem, 0, len(recs))
			for _, rec := range recs {
				items = append(items, generation.BulkItem{ID: rec.ID.Hex(), Doc: serialize.Document(rec)})
			}
			body, err := generation.EncodeBulk(next, items)
			if err != nil {
				return err //nolint:wrapcheck // names the document
			}
			select {
			case batches <- batch{body: body, size: len(recs)}:
				return nil
			case <-gctx.Done():
				return gctx.Err() //nolint:wrapcheck // context error
			}
		})
	})

	g.Go(func() error {
		for b := range batches {
			res, err := r.engine.Bulk(gctx, next, b.body)
			if err != nil {
				return err //nolint:wrapcheck // engine errors carry the request
			}
			if len(res.Failed) > 0 {
				return &domain.BulkRejectedError{
					Index:  next.FullIndexName(),
					Failed: len(res.Failed),
					First:  fmt.Sprintf("%s: %d %s", res.Failed[0].ID, res.Failed[0].Status, res.Failed[0].Reason),
				}
			}
			r.report.Batches++
			r.report.Documents += b.size
			metrics.ResyncDocumentsTotal.WithLabelValues(r.report.Collection).Add(float64(b.size))
			r.log.Debug("Batch loaded", zap.Int("batch", r.report.Batches), zap.Int("documents", b.size))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("load %s: %w", next.FullIndexName(), err)
	}
	return nil
}

// discard drops a generation that never went live. It runs even when ctx is done.
func (r *run) discard(ctx context.Context, next endpoint.Options) {
	if err := r.engine.DeleteIndex(context.WithoutCancel(ctx), next); err != nil {
		r.log.Warn("Could not drop partial generation",
			zap.String("generation", next.FullIndexName()), zap.Error(err))
	}
}

// swapLanded checks whether a failed _aliases request was applied anyway, as when the
// reply is lost after the engine committed it. next is dropped only when the alias is
// known not to point at it; an unresolvable alias keeps next in place.
func (r *run) swapLanded(ctx context.Context, o endpoint.Options, alias string, next endpoint.Options) bool {
	current, err := r.engine.ResolveAlias(context.WithoutCancel(ctx), o, alias)
	if err != nil {
		r.log.Warn("Alias state unknown after failed swap, keeping generation",
			zap.String("generation", next.FullIndexName()), zap.Error(err))
		return false
	}
	if slices.Contains(current, next.FullIndexName()) {
		return true
	}
	r.discard(ctx, next)
	return false
}

// cleanup deletes the generations the alias no longer points to. Indices that were
// behind the alias but were not created by resync are only detached, never deleted.
func (r *run) cleanup(ctx context.Context, o endpoint.Options, alias string, previous []string) error {
	var errs []error
	for _, name := range previous {
		if !generation.IsGenerationOf(name, alias) {
			r.log.Info("Detached foreign index from alias", zap.String("index", name))
			continue
		}
		if err := r.engine.DeleteIndex(ctx, o.WithIndex(name)); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

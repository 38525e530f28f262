package docsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docsync/internal/config"
	"github.com/kailas-cloud/docsync/internal/db"
	dbRedis "github.com/kailas-cloud/docsync/internal/db/redis"
	"github.com/kailas-cloud/docsync/internal/domain/record"
	recordrepo "github.com/kailas-cloud/docsync/internal/repository/record"
	"github.com/kailas-cloud/docsync/internal/transport/elastic"
	healthuc "github.com/kailas-cloud/docsync/internal/usecase/health"
	hookuc "github.com/kailas-cloud/docsync/internal/usecase/hook"
	"github.com/kailas-cloud/docsync/internal/usecase/indexer"
	resyncuc "github.com/kailas-cloud/docsync/internal/usecase/resync"
)

const defaultReadinessTimeout = 10 * time.Second

// Internal interfaces, swapped for mocks in tests.
type recordUseCase interface {
	Save(ctx context.Context, rec *record.Record) (bool, error)
	Get(ctx context.Context, collection string, id record.ObjectID) (*record.Record, error)
	Delete(ctx context.Context, collection string, id record.ObjectID) error
	Iterate(ctx context.Context, collection string, batchSize int, fn func([]*record.Record) error) error
}

type resyncUseCase interface {
	Run(ctx context.Context, collection string) (resyncuc.Report, error)
}

type hookDrainer interface {
	Wait()
}

// Client is the docsync SDK entry point.
type Client struct {
	store     db.Store
	records   recordUseCase
	resync    resyncUseCase
	healthSvc healthUseCase
	hooks     hookDrainer
	obs       *observer
}

// New creates a docsync Client and connects to the database.
// The provided context is used for the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("docsync: database address required (use WithValkey or WithRedis)")
	}
	settings, err := cfg.settings()
	if err != nil {
		return nil, err
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("docsync: database not ready: %w", err)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		store.Close()
		return nil, err
	}
	c, err := wireClient(store, settings, cfg, obs)
	if err != nil {
		store.Close()
		return nil, err
	}
	return c, nil
}

// settings validates the options the same way the server validates its YAML config.
func (c *clientConfig) settings() (config.Config, error) {
	s := config.Config{
		Database:    config.DatabaseConfig{Addrs: c.addrs, KeyPrefix: c.keyPrefix},
		Search:      c.search,
		Collections: c.collections,
		Resync:      config.ResyncConfig{BatchSize: c.resyncBatchSize},
		Hooks:       config.HooksConfig{Async: c.asyncHooks},
	}
	s.ApplyDefaults()
	if err := s.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("docsync: %w", err)
	}
	return s, nil
}

func createStore(cfg *clientConfig) (db.Store, error) {
	switch cfg.driver {
	case "valkey", "redis":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("docsync: create %s store: %w", cfg.driver, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("docsync: unknown driver %q", cfg.driver)
	}
}

func wireClient(store db.Store, s config.Config, cfg *clientConfig, obs *observer) (*Client, error) {
	global, err := config.Merge(s.Search)
	if err != nil {
		return nil, fmt.Errorf("docsync: search options: %w", err)
	}

	// Internal components log through zap; SDK callers observe through slog and metrics.
	l := zap.NewNop()

	client := elastic.NewClient(elastic.Config{Timeout: cfg.requestTimeout, Logger: l})
	engine := elastic.NewEngine(client)
	resolver := config.NewResolver(s.Search, s.Collections)

	idx := indexer.New(client, obs)
	hooks := hookuc.New(resolver, idx, l, hookuc.WithAsync(s.Hooks.Async))
	records := recordrepo.New(store, hooks, s.Database.KeyPrefix, s.Resync.ScanCount)
	resync := resyncuc.New(engine, records, resolver, l, resyncuc.Config{BatchSize: s.Resync.BatchSize})

	return &Client{
		store:     store,
		records:   records,
		resync:    resync,
		healthSvc: healthuc.New(store, engine.Probe(global)),
		hooks:     hooks,
		obs:       obs,
	}, nil
}

// Close waits for pending search engine updates, then releases all resources.
func (c *Client) Close() {
	if c.hooks != nil {
		c.hooks.Wait()
	}
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Records returns the record service for a given collection.
func (c *Client) Records(collection string) *RecordService {
	return &RecordService{
		collection: collection,
		svc:        c.records,
		obs:        c.obs,
	}
}

// Resync rebuilds the collection's search index from the store and swaps it in.
// A run already in progress for the collection yields ErrResyncInProgress.
func (c *Client) Resync(ctx context.Context, collection string) (_ ResyncReport, err error) {
	start := time.Now()
	defer func() { c.obs.observe("resync", start, err) }()

	rep, err := c.resync.Run(ctx, collection)
	if err != nil {
		return ResyncReport{}, fmt.Errorf("resync %s: %w", collection, err)
	}
	return ResyncReport{
		Collection: rep.Collection,
		Alias:      rep.Alias,
		Generation: rep.Generation,
		Previous:   rep.Previous,
		Documents:  rep.Documents,
		Batches:    rep.Batches,
		CleanupErr: rep.CleanupErr,
		Duration:   rep.Duration,
	}, nil
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docsync/internal/config"
	dbRedis "github.com/kailas-cloud/docsync/internal/db/redis"
	"github.com/kailas-cloud/docsync/internal/domain/endpoint"
	logpkg "github.com/kailas-cloud/docsync/internal/logger"
	"github.com/kailas-cloud/docsync/internal/metrics"
	recordrepo "github.com/kailas-cloud/docsync/internal/repository/record"
	chiTransport "github.com/kailas-cloud/docsync/internal/transport/chi"
	"github.com/kailas-cloud/docsync/internal/transport/elastic"
	healthuc "github.com/kailas-cloud/docsync/internal/usecase/health"
	hookuc "github.com/kailas-cloud/docsync/internal/usecase/hook"
	"github.com/kailas-cloud/docsync/internal/usecase/indexer"
	resyncuc "github.com/kailas-cloud/docsync/internal/usecase/resync"
	"github.com/kailas-cloud/docsync/internal/version"
)

const usage = `usage: docsync [serve | resync <collection> | version]`

func main() {
	cmd, collection, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if cmd == cmdVersion {
		fmt.Printf("docsync %s (%s)\n", version.Version, version.Commit)
		return
	}

	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	a, err := newApp(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}

	if cmd == cmdResync {
		code := runResync(a, collection)
		a.close()
		_ = logger.Sync()
		os.Exit(code)
	}

	serve(a, env)
	a.close()
}

type command int

const (
	cmdServe command = iota
	cmdResync
	cmdVersion
)

func parseArgs(args []string) (command, string, error) {
	if len(args) == 0 {
		return cmdServe, "", nil
	}
	switch args[0] {
	case "serve":
		if len(args) != 1 {
			return 0, "", errors.New("serve takes no arguments")
		}
		return cmdServe, "", nil
	case "resync":
		if len(args) != 2 || args[1] == "" {
			return 0, "", errors.New("resync needs exactly one collection")
		}
		return cmdResync, args[1], nil
	case "version":
		return cmdVersion, "", nil
	default:
		return 0, "", fmt.Errorf("unknown command %q", args[0])
	}
}

// app is the composition root shared by the server and the one-shot resync.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	store   *dbRedis.Store
	hooks   *hookuc.Adapter
	records *recordrepo.Repo
	resync  *resyncuc.Service
	health  *healthuc.Service
}

func newApp(cfg config.Config, logger *zap.Logger) (*app, error) {
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create database store: %w", err)
	}

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	logger.Info("Connected to database", zap.Strings("db_addrs", cfg.Database.Addrs))

	// Register sync metrics explicitly (no init())
	metrics.RegisterSyncMetrics()

	global, err := config.Merge(cfg.Search)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("search options: %w", err)
	}

	client := elastic.NewClient(elastic.Config{Logger: logger})
	engine := elastic.NewEngine(client)
	resolver := config.NewResolver(cfg.Search, cfg.Collections)

	idx := indexer.New(client, indexer.NewLogObserver(logger))
	hooks := hookuc.New(resolver, idx, logger, hookuc.WithAsync(cfg.Hooks.Async))
	records := recordrepo.New(store, hooks, cfg.Database.KeyPrefix, cfg.Resync.ScanCount)

	resync := resyncuc.New(engine, records, resolver, logger, resyncuc.Config{
		BatchSize: cfg.Resync.BatchSize,
		Timeout:   time.Duration(cfg.Resync.TimeoutSec) * time.Second,
	})

	logger.Info("Search engine configured",
		zap.String("domain", endpoint.Domain(global)),
		zap.Int("collection_overrides", len(cfg.Collections)),
		zap.Bool("async_hooks", cfg.Hooks.Async),
	)

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		hooks:   hooks,
		records: records,
		resync:  resync,
		health:  healthuc.New(store, engine.Probe(global)),
	}, nil
}

// close drains pending async hooks before the store goes away.
func (a *app) close() {
	a.hooks.Wait()
	a.store.Close()
}

func runResync(a *app, collection string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := a.resync.Run(ctx, collection)
	if err != nil {
		a.logger.Error("Resync failed", zap.String("collection", collection), zap.Error(err))
		return 1
	}
	if report.CleanupErr != nil {
		a.logger.Warn("Resync finished with leftover generations",
			zap.String("collection", collection), zap.Error(report.CleanupErr))
	}
	a.logger.Info("Resync finished",
		zap.String("collection", collection),
		zap.String("generation", report.Generation),
		zap.Int("documents", report.Documents),
		zap.Duration("duration", report.Duration),
	)
	return 0
}

func serve(a *app, env string) {
	cfg, logger := a.cfg, a.logger

	logger.Info("Starting docsync API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
	)

	server := chiTransport.NewServer(a.records, a.resync, a.health, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      newRouter(server, cfg.Auth.APIKeys, logger),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

func newRouter(server chiTransport.ServerInterface, apiKeys []string, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(apiKeys))
	r.Use(metrics.Middleware())
	return chiTransport.HandlerWithOptions(server, chiTransport.ChiServerOptions{
		BaseRouter: r,
		ErrorHandlerFunc: func(w http.ResponseWriter, _ *http.Request, err error) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
				Code:    chiTransport.ErrorResponseCodeBadRequest,
				Message: "invalid request",
			})
		},
	})
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					if rvr == http.ErrAbortHandler { //nolint:errorlint // sentinel panic value
						panic(rvr)
					}
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.String("path", r.URL.Path),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
						Code:    chiTransport.ErrorResponseCodeInternal,
						Message: "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int("response_bytes", ww.BytesWritten()),
			}
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if c := rctx.URLParam("collection"); c != "" {
					fields = append(fields, zap.String("collection", c))
				}
			}
			reqLogger.Info("http_request", fields...)
		})
	}
}

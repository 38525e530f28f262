package docsync

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver    string // "valkey" or "redis"
	addrs     []string
	password  string
	keyPrefix string

	search      SearchOptions
	collections map[string]SearchOptions

	asyncHooks      bool
	resyncBatchSize int
	requestTimeout  time.Duration

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithValkey configures the client to connect to a Valkey instance.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "valkey"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedis configures the client to connect to a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithKeyPrefix namespaces every record key. Default: "docsync:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithSearch sets the global search engine options shared by all collections.
func WithSearch(o SearchOptions) Option {
	return optionFunc(func(c *clientConfig) {
		c.search = o
	})
}

// WithCollection overrides search options for one collection.
// Unset fields fall back to the global options.
func WithCollection(name string, o SearchOptions) Option {
	return optionFunc(func(c *clientConfig) {
		if c.collections == nil {
			c.collections = make(map[string]SearchOptions)
		}
		c.collections[name] = o
	})
}

// WithAsyncHooks makes Save and Delete return before the search engine is updated.
// Close waits for pending updates.
func WithAsyncHooks() Option {
	return optionFunc(func(c *clientConfig) {
		c.asyncHooks = true
	})
}

// WithResyncBatchSize sets the number of records per bulk request. Default: 500.
func WithResyncBatchSize(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.resyncBatchSize = n
	})
}

// WithRequestTimeout bounds each search engine request attempt. Default: 30s.
func WithRequestTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.requestTimeout = d
	})
}

// WithLogger enables structured logging for SDK operations and sync outcomes.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations, sync outcomes)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}

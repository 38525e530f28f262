// Package db defines the primary-store contracts. Records are kept as opaque
// JSON strings so any Redis-protocol server works, no modules required.
package db

import (
	"context"
	"time"
)

// Store is the database facade combining all sub-interfaces.
type Store interface {
	Pinger
	KVStore
	Scanner
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Exists(ctx context.Context, key string) (bool, error)
	// Del reports whether the key existed.
	Del(ctx context.Context, key string) (bool, error)
	// MGet returns one entry per key, nil where the key is missing.
	MGet(ctx context.Context, keys []string) ([][]byte, error)
}

// Scanner walks the keyspace one cursor page at a time. A returned cursor of 0 ends the walk.
// Keys may be reported more than once.
type Scanner interface {
	ScanPage(ctx context.Context, pattern string, cursor uint64, count int64) (keys []string, next uint64, err error)
}

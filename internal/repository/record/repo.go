// Package record persists primary-store records and notifies the search sync hooks
// after every durable write.
package record

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/docsync/internal/db"
	"github.com/kailas-cloud/docsync/internal/domain"
	domrec "github.com/kailas-cloud/docsync/internal/domain/record"
)

// store is the consumer interface for records (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Exists(ctx context.Context, key string) (bool, error)
	Del(ctx context.Context, key string) (bool, error)
	MGet(ctx context.Context, keys []string) ([][]byte, error)
	ScanPage(ctx context.Context, pattern string, cursor uint64, count int64) ([]string, uint64, error)
}

// Hooks receives lifecycle notifications once a write is durable.
type Hooks interface {
	OnSaved(ctx context.Context, rec *domrec.Record)
	OnRemoved(ctx context.Context, rec *domrec.Record)
}

type nopHooks struct{}

func (nopHooks) OnSaved(context.Context, *domrec.Record)   {}
func (nopHooks) OnRemoved(context.Context, *domrec.Record) {}

const defaultScanCount = 200

// Repo stores records as JSON strings under {prefix}{collection}:{id}.
type Repo struct {
	store     store
	hooks     Hooks
	prefix    string
	scanCount int64
}

// New creates a record repository. hooks may be nil.
func New(s store, hooks Hooks, prefix string, scanCount int) *Repo {
	if hooks == nil {
		hooks = nopHooks{}
	}
	if scanCount <= 0 {
		scanCount = defaultScanCount
	}
	return &Repo{store: s, hooks: hooks, prefix: prefix, scanCount: int64(scanCount)}
}

// Save creates or replaces rec, assigning an id when it has none. Returns true if created.
func (r *Repo) Save(ctx context.Context, rec *domrec.Record) (bool, error) {
	if err := validateCollection(rec.Collection); err != nil {
		return false, err
	}
	if rec.ID.IsZero() {
		rec.ID = domrec.NewObjectID()
	}

	data, err := encodeRecord(rec)
	if err != nil {
		return false, err
	}

	key := r.key(rec.Collection, rec.ID)
	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check exists %s: %w", key, err)
	}
	if err := r.store.Set(ctx, key, data); err != nil {
		return false, fmt.Errorf("set %s: %w", key, err)
	}

	r.hooks.OnSaved(ctx, rec)
	return !exists, nil
}

// Get returns a record by id.
func (r *Repo) Get(ctx context.Context, collection string, id domrec.ObjectID) (*domrec.Record, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	key := r.key(collection, id)
	data, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return decodeRecord(collection, data)
}

// Delete removes a record. The removed record is handed to the hooks.
func (r *Repo) Delete(ctx context.Context, collection string, id domrec.ObjectID) error {
	rec, err := r.Get(ctx, collection, id)
	if err != nil {
		return err
	}

	key := r.key(collection, id)
	deleted, err := r.store.Del(ctx, key)
	if err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	if !deleted {
		return domain.ErrRecordNotFound
	}

	r.hooks.OnRemoved(ctx, rec)
	return nil
}

// Iterate walks every record of collection, calling fn with batches of at most batchSize.
// Records removed while the walk runs are skipped; records added may or may not be seen.
func (r *Repo) Iterate(
	ctx context.Context, collection string, batchSize int, fn func([]*domrec.Record) error,
) error {
	if err := validateCollection(collection); err != nil {
		return err
	}
	if batchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", batchSize)
	}

	seen := make(map[string]struct{})
	pending := make([]string, 0, batchSize)
	flush := func() error {
		defer func() { pending = pending[:0] }()
		recs, err := r.load(ctx, collection, pending)
		if err != nil || len(recs) == 0 {
			return err
		}
		return fn(recs)
	}

	pattern := r.prefix + collection + ":*"
	var cursor uint64
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("iterate %s: %w", collection, err)
		}
		keys, next, err := r.store.ScanPage(ctx, pattern, cursor, r.scanCount)
		if err != nil {
			return fmt.Errorf("scan %s: %w", collection, err)
		}
		for _, k := range keys {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			pending = append(pending, k)
			if len(pending) == batchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		if next == 0 {
			break
		}
		cursor = next
	}

	if len(pending) > 0 {
		return flush()
	}
	return nil
}

func (r *Repo) load(ctx context.Context, collection string, keys []string) ([]*domrec.Record, error) {
	vals, err := r.store.MGet(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("mget %s: %w", collection, err)
	}
	recs := make([]*domrec.Record, 0, len(vals))
	for i, v := range vals {
		if v == nil {
			continue
		}
		rec, err := decodeRecord(collection, v)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", keys[i], err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (r *Repo) key(collection string, id domrec.ObjectID) string {
	return r.prefix + collection + ":" + id.Hex()
}

func validateCollection(name string) error {
	if name == "" || strings.ContainsAny(name, ":*?[]\\ ") {
		return fmt.Errorf("%w: %q", domain.ErrInvalidCollection, name)
	}
	return nil
}

package docsync

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/docsync/internal/domain/record"
)

const eachBatchSize = 100

// RecordService manages records within a single collection. Every successful write is
// mirrored into the search engine.
type RecordService struct {
	collection string
	svc        recordUseCase
	obs        *observer
}

// Save creates or replaces rec. A record without an id gets a fresh one.
// Returns true if created.
func (s *RecordService) Save(ctx context.Context, rec *Record) (_ bool, err error) {
	start := time.Now()
	defer func() { s.obs.observe("record.save", start, err) }()

	if rec.Collection == "" {
		rec.Collection = s.collection
	} else if rec.Collection != s.collection {
		return false, fmt.Errorf("save: record belongs to %q, not %q: %w",
			rec.Collection, s.collection, ErrInvalidCollection)
	}
	created, err := s.svc.Save(ctx, rec)
	if err != nil {
		return false, fmt.Errorf("save: %w", err)
	}
	return created, nil
}

// Get retrieves a record by id.
func (s *RecordService) Get(ctx context.Context, id ObjectID) (_ *Record, err error) {
	start := time.Now()
	defer func() { s.obs.observe("record.get", start, err) }()

	rec, err := s.svc.Get(ctx, s.collection, id)
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

// Delete removes a record by id.
func (s *RecordService) Delete(ctx context.Context, id ObjectID) (err error) {
	start := time.Now()
	defer func() { s.obs.observe("record.delete", start, err) }()

	if err = s.svc.Delete(ctx, s.collection, id); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

// Each calls fn for every record of the collection, in no particular order.
// Returning an error from fn stops the walk.
func (s *RecordService) Each(ctx context.Context, fn func(*Record) error) error {
	err := s.svc.Iterate(ctx, s.collection, eachBatchSize, func(batch []*record.Record) error {
		for _, rec := range batch {
			if err := fn(rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("each: %w", err)
	}
	return nil
}

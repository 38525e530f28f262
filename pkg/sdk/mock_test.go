package docsync

import (
	"context"

	"github.com/kailas-cloud/docsync/internal/domain/record"
	healthuc "github.com/kailas-cloud/docsync/internal/usecase/health"
	resyncuc "github.com/kailas-cloud/docsync/internal/usecase/resync"
)

// --- recordUseCase mock ---

type mockRecordUC struct {
	saveFn    func(ctx context.Context, rec *record.Record) (bool, error)
	getFn     func(ctx context.Context, collection string, id record.ObjectID) (*record.Record, error)
	deleteFn  func(ctx context.Context, collection string, id record.ObjectID) error
	iterateFn func(ctx context.Context, collection string, batchSize int, fn func([]*record.Record) error) error
}

func (m *mockRecordUC) Save(ctx context.Context, rec *record.Record) (bool, error) {
	return m.saveFn(ctx, rec)
}

func (m *mockRecordUC) Get(ctx context.Context, collection string, id record.ObjectID) (*record.Record, error) {
	return m.getFn(ctx, collection, id)
}

func (m *mockRecordUC) Delete(ctx context.Context, collection string, id record.ObjectID) error {
	return m.deleteFn(ctx, collection, id)
}

func (m *mockRecordUC) Iterate(
	ctx context.Context, collection string, batchSize int, fn func([]*record.Record) error,
) error {
	return m.iterateFn(ctx, collection, batchSize, fn)
}

// memRecords is a map-backed recordUseCase for round-trip tests.
func memRecords() *mockRecordUC {
	data := map[record.ObjectID]*record.Record{}
	return &mockRecordUC{
		saveFn: func(_ context.Context, rec *record.Record) (bool, error) {
			if rec.ID.IsZero() {
				rec.ID = record.NewObjectID()
			}
			_, exists := data[rec.ID]
			data[rec.ID] = rec.Clone()
			return !exists, nil
		},
		getFn: func(_ context.Context, _ string, id record.ObjectID) (*record.Record, error) {
			rec, ok := data[id]
			if !ok {
				return nil, ErrRecordNotFound
			}
			return rec.Clone(), nil
		},
		deleteFn: func(_ context.Context, _ string, id record.ObjectID) error {
			if _, ok := data[id]; !ok {
				return ErrRecordNotFound
			}
			delete(data, id)
			return nil
		},
		iterateFn: func(_ context.Context, _ string, batchSize int, fn func([]*record.Record) error) error {
			var batch []*record.Record
			for _, rec := range data {
				batch = append(batch, rec.Clone())
				if len(batch) == batchSize {
					if err := fn(batch); err != nil {
						return err
					}
					batch = nil
				}
			}
			if len(batch) > 0 {
				return fn(batch)
			}
			return nil
		},
	}
}

// --- resyncUseCase mock ---

type mockResyncUC struct {
	runFn func(ctx context.Context, collection string) (resyncuc.Report, error)
}

func (m *mockResyncUC) Run(ctx context.Context, collection string) (resyncuc.Report, error) {
	return m.runFn(ctx, collection)
}

// --- healthUseCase mock ---

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(context.Context) healthuc.Report { return m.report }

// --- hookDrainer mock ---

type mockHooks struct {
	waited *[]string
}

func (m *mockHooks) Wait() { *m.waited = append(*m.waited, "hooks") }

// --- helpers ---

func testClient(records recordUseCase, resync resyncUseCase) *Client {
	return &Client{records: records, resync: resync}
}

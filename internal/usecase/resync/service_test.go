package resync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docsync/internal/domain"
	"github.com/kailas-cloud/docsync/internal/domain/endpoint"
	"github.com/kailas-cloud/docsync/internal/domain/generation"
	"github.com/kailas-cloud/docsync/internal/domain/record"
)

// --- Fakes ---

// fakeEngine keeps indices and aliases in memory and applies alias updates atomically.
type fakeEngine struct {
	mu      sync.Mutex
	indices map[string]int // name -> document count
	aliases map[string][]string

	bulkErr     error
	bulkFailAt  int // 1-based batch that reports rejected items; 0 = never
	swapErr     error
	swapApplied bool  // apply the actions before returning swapErr
	resolveErr  error // returned by ResolveAlias once a swap was attempted
	deleteErr   map[string]error
	bulkCalls   int
	swapActions []generation.AliasAction
	deleted     []string
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{indices: map[string]int{}, aliases: map[string][]string{}, deleteErr: map[string]error{}}
}

func (e *fakeEngine) IndexExists(_ context.Context, o endpoint.Options) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.indices[o.FullIndexName()]
	return ok || len(e.aliases[o.FullIndexName()]) > 0, nil
}

func (e *fakeEngine) ResolveAlias(_ context.Context, _ endpoint.Options, alias string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.resolveErr != nil && e.swapActions != nil {
		return nil, e.resolveErr
	}
	out := slices.Clone(e.aliases[alias])
	sort.Strings(out)
	return out, nil
}

func (e *fakeEngine) CreateIndex(_ context.Context, o endpoint.Options) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.indices[o.FullIndexName()]; ok {
		return &domain.IndexOperationError{Status: 400, Body: "resource_already_exists_exception"}
	}
	e.indices[o.FullIndexName()] = 0
	return nil
}

func (e *fakeEngine) Bulk(_ context.Context, o endpoint.Options, body []byte) (generation.BulkResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bulkCalls++
	if e.bulkErr != nil {
		return generation.BulkResult{}, e.bulkErr
	}
	items := bytes.Count(body, []byte("\n")) / 2
	if e.bulkCalls == e.bulkFailAt {
		return generation.BulkResult{Items: items, Failed: []generation.BulkFailure{
			{ID: "bad", Status: 400, Reason: "mapper_parsing_exception: failed to parse"},
		}}, nil
	}
	e.indices[o.FullIndexName()] += items
	return generation.BulkResult{Items: items}, nil
}

func (e *fakeEngine) UpdateAliases(_ context.Context, _ endpoint.Options, actions []generation.AliasAction) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.swapActions = actions
	if e.swapErr != nil && !e.swapApplied {
		return e.swapErr
	}
	for _, a := range actions {
		switch a.Kind {
		case generation.ActionAdd:
			e.aliases[a.Alias] = append(e.aliases[a.Alias], a.Index)
		case generation.ActionRemove:
			e.aliases[a.Alias] = slices.DeleteFunc(e.aliases[a.Alias], func(s string) bool { return s == a.Index })
		case generation.ActionRemoveIndex:
			delete(e.indices, a.Index)
		}
	}
	return e.swapErr
}

func (e *fakeEngine) DeleteIndex(_ context.Context, o endpoint.Options) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	name := o.FullIndexName()
	if err := e.deleteErr[name]; err != nil {
		return err
	}
	delete(e.indices, name)
	e.deleted = append(e.deleted, name)
	return nil
}

func (e *fakeEngine) alias(name string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.aliases[name])
}

func (e *fakeEngine) count(index string) (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, ok := e.indices[index]
	return n, ok
}

type sliceSource struct {
	records []*record.Record
	err     error
	gate    chan struct{} // when set, Iterate blocks until closed
}

func (s *sliceSource) Iterate(ctx context.Context, _ string, batchSize int, fn func([]*record.Record) error) error {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for start := 0; start < len(s.records); start += batchSize {
		end := min(start+batchSize, len(s.records))
		if err := fn(s.records[start:end]); err != nil {
			return err
		}
	}
	return s.err
}

type staticResolver struct{ opts endpoint.Options }

func (r staticResolver) Resolve(string) (endpoint.Options, error) { return r.opts, nil }

var postOpts = endpoint.Options{Protocol: "http", Host: "localhost", Port: 9200, Index: "posts", Type: "post"}

func makeRecords(n int) []*record.Record {
	out := make([]*record.Record, n)
	for i := range out {
		out[i] = record.New("posts", map[string]any{"title": fmt.Sprintf("post %d", i), "at": time.Unix(int64(i), 0)})
	}
	return out
}

func newService(engine Engine, source Source, batchSize int) *Service {
	return New(engine, source, staticResolver{opts: postOpts}, zap.NewNop(), Config{BatchSize: batchSize})
}

// --- Tests ---

func TestRun_FirstResync(t *testing.T) {
	engine := newFakeEngine()
	svc := newService(engine, &sliceSource{records: makeRecords(1200)}, 500)

	rep, err := svc.Run(context.Background(), "posts")
	require.NoError(t, err)

	assert.Equal(t, generation.StateDone, rep.State)
	assert.Equal(t, "posts", rep.Alias)
	assert.True(t, generation.IsGenerationOf(rep.Generation, "posts"))
	assert.Empty(t, rep.Previous)
	assert.Equal(t, 1200, rep.Documents)
	assert.Equal(t, 3, rep.Batches)
	assert.NoError(t, rep.CleanupErr)

	assert.Equal(t, []string{rep.Generation}, engine.alias("posts"))
	n, ok := engine.count(rep.Generation)
	require.True(t, ok)
	assert.Equal(t, 1200, n)
}

func TestRun_SecondResyncReplacesGeneration(t *testing.T) {
	engine := newFakeEngine()
	src := &sliceSource{records: makeRecords(10)}
	svc := newService(engine, src, 4)

	first, err := svc.Run(context.Background(), "posts")
	require.NoError(t, err)

	src.records = makeRecords(7)
	second, err := svc.Run(context.Background(), "posts")
	require.NoError(t, err)

	assert.NotEqual(t, first.Generation, second.Generation)
	assert.Equal(t, []string{first.Generation}, second.Previous)
	assert.Equal(t, []string{second.Generation}, engine.alias("posts"), "alias resolves to the new generation only")

	_, ok := engine.count(first.Generation)
	assert.False(t, ok, "old generation deleted")
	n, _ := engine.count(second.Generation)
	assert.Equal(t, 7, n)
}

func TestRun_ReplacesConcreteIndexNamedLikeAlias(t *testing.T) {
	engine := newFakeEngine()
	engine.indices["posts"] = 3 // written by live indexing before any resync
	svc := newService(engine, &sliceSource{records: makeRecords(5)}, 500)

	rep, err := svc.Run(context.Background(), "posts")
	require.NoError(t, err)

	require.Len(t, engine.swapActions, 2)
	assert.Equal(t, generation.AliasAction{Kind: generation.ActionRemoveIndex, Index: "posts"}, engine.swapActions[0])
	assert.Equal(t, generation.AliasAction{Kind: generation.ActionAdd, Index: rep.Generation, Alias: "posts"}, engine.swapActions[1])

	_, ok := engine.count("posts")
	assert.False(t, ok)
	assert.Equal(t, []string{rep.Generation}, engine.alias("posts"))
}

func TestRun_RejectedBulkLeavesAliasUntouched(t *testing.T) {
	engine := newFakeEngine()
	src := &sliceSource{records: makeRecords(6)}
	svc := newService(engine, src, 2)
	first, err := svc.Run(context.Background(), "posts")
	require.NoError(t, err)

	engine.bulkFailAt = engine.bulkCalls + 2
	rep, err := svc.Run(context.Background(), "posts")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBulkRejected)
	assert.Equal(t, generation.StateFailed, rep.State)
	assert.Equal(t, []string{first.Generation}, engine.alias("posts"))

	_, ok := engine.count(rep.Generation)
	assert.False(t, ok, "partial generation dropped")
	n, ok := engine.count(first.Generation)
	require.True(t, ok)
	assert.Equal(t, 6, n)
}

func TestRun_BulkTransportFailure(t *testing.T) {
	engine := newFakeEngine()
	engine.bulkErr = &domain.TransportError{Attempts: 4, Transient: true, Err: errors.New("connection reset")}
	svc := newService(engine, &sliceSource{records: makeRecords(3)}, 500)

	rep, err := svc.Run(context.Background(), "posts")

	assert.ErrorIs(t, err, domain.ErrTransientTransport)
	assert.Equal(t, generation.StateFailed, rep.State)
	assert.Empty(t, engine.alias("posts"))
	assert.Contains(t, engine.deleted, rep.Generation)
}

func TestRun_SourceFailure(t *testing.T) {
	engine := newFakeEngine()
	boom := errors.New("scan failed")
	svc := newService(engine, &sliceSource{records: makeRecords(3), err: boom}, 500)

	rep, err := svc.Run(context.Background(), "posts")

	assert.ErrorIs(t, err, boom)
	assert.Contains(t, engine.deleted, rep.Generation)
	assert.Nil(t, engine.swapActions)
}

func TestRun_SwapFailureDropsGeneration(t *testing.T) {
	engine := newFakeEngine()
	engine.swapErr = &domain.IndexOperationError{Status: 500}
	svc := newService(engine, &sliceSource{records: makeRecords(3)}, 500)

	rep, err := svc.Run(context.Background(), "posts")

	assert.ErrorIs(t, err, domain.ErrIndexOperation)
	assert.Equal(t, generation.StateFailed, rep.State)
	assert.Empty(t, engine.alias("posts"))
	_, ok := engine.count(rep.Generation)
	assert.False(t, ok)
}

func TestRun_SwapAppliedButReplyLost(t *testing.T) {
	engine := newFakeEngine()
	src := &sliceSource{records: makeRecords(4)}
	svc := newService(engine, src, 500)
	first, err := svc.Run(context.Background(), "posts")
	require.NoError(t, err)

	engine.swapApplied = true
	engine.swapErr = &domain.TransportError{Attempts: 4, Transient: true, Err: errors.New("i/o timeout")}
	rep, err := svc.Run(context.Background(), "posts")

	require.NoError(t, err)
	assert.Equal(t, generation.StateDone, rep.State)
	assert.Equal(t, []string{rep.Generation}, engine.alias("posts"))
	assert.NotContains(t, engine.deleted, rep.Generation)
	n, ok := engine.count(rep.Generation)
	require.True(t, ok, "live generation kept")
	assert.Equal(t, 4, n)
	_, ok = engine.count(first.Generation)
	assert.False(t, ok, "previous generation cleaned up")
}

func TestRun_SwapOutcomeUnknownKeepsGeneration(t *testing.T) {
	engine := newFakeEngine()
	engine.swapApplied = true
	engine.swapErr = &domain.TransportError{Attempts: 4, Transient: true, Err: errors.New("connection reset")}
	engine.resolveErr = &domain.TransportError{Attempts: 4, Transient: true, Err: errors.New("connection refused")}
	svc := newService(engine, &sliceSource{records: makeRecords(2)}, 500)

	rep, err := svc.Run(context.Background(), "posts")

	assert.ErrorIs(t, err, domain.ErrTransientTransport)
	assert.Equal(t, generation.StateFailed, rep.State)
	assert.NotContains(t, engine.deleted, rep.Generation)
	_, ok := engine.count(rep.Generation)
	assert.True(t, ok)
}

func TestRun_CleanupFailureIsReported(t *testing.T) {
	engine := newFakeEngine()
	src := &sliceSource{records: makeRecords(2)}
	svc := newService(engine, src, 500)
	first, err := svc.Run(context.Background(), "posts")
	require.NoError(t, err)

	engine.deleteErr[first.Generation] = errors.New("cluster busy")
	rep, err := svc.Run(context.Background(), "posts")

	require.NoError(t, err)
	assert.Equal(t, generation.StateDone, rep.State)
	require.Error(t, rep.CleanupErr)
	assert.Contains(t, rep.CleanupErr.Error(), first.Generation)
	assert.Equal(t, []string{rep.Generation}, engine.alias("posts"))
}

func TestRun_ForeignIndexIsDetachedNotDeleted(t *testing.T) {
	engine := newFakeEngine()
	engine.indices["posts_manual"] = 1
	engine.aliases["posts"] = []string{"posts_manual"}
	svc := newService(engine, &sliceSource{records: makeRecords(1)}, 500)

	rep, err := svc.Run(context.Background(), "posts")
	require.NoError(t, err)

	assert.Equal(t, []string{rep.Generation}, engine.alias("posts"))
	_, ok := engine.count("posts_manual")
	assert.True(t, ok)
	assert.NotContains(t, engine.deleted, "posts_manual")
}

func TestRun_EmptyCollection(t *testing.T) {
	engine := newFakeEngine()
	svc := newService(engine, &sliceSource{}, 500)

	rep, err := svc.Run(context.Background(), "posts")
	require.NoError(t, err)

	assert.Zero(t, rep.Documents)
	assert.Zero(t, rep.Batches)
	assert.Equal(t, []string{rep.Generation}, engine.alias("posts"))
}

func TestRun_RefusesConcurrentRunOfSameCollection(t *testing.T) {
	engine := newFakeEngine()
	gate := make(chan struct{})
	svc := newService(engine, &sliceSource{records: makeRecords(2), gate: gate}, 500)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Run(context.Background(), "posts")
		done <- err
	}()

	require.Eventually(t, func() bool { return engine.hasGeneration("posts") }, time.Second, 5*time.Millisecond)

	_, err := svc.Run(context.Background(), "posts")
	assert.ErrorIs(t, err, domain.ErrResyncInProgress)

	close(gate)
	require.NoError(t, <-done)
}

func TestRun_DefaultBatchSize(t *testing.T) {
	svc := New(newFakeEngine(), &sliceSource{}, staticResolver{opts: postOpts}, nil, Config{})
	assert.Equal(t, DefaultBatchSize, svc.batchSize)
}

func (e *fakeEngine) hasGeneration(alias string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for name := range e.indices {
		if generation.IsGenerationOf(name, alias) {
			return true
		}
	}
	return false
}

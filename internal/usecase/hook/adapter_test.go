package hook

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/docsync/internal/config"
	"github.com/kailas-cloud/docsync/internal/domain"
	"github.com/kailas-cloud/docsync/internal/domain/endpoint"
	"github.com/kailas-cloud/docsync/internal/domain/record"
	"github.com/kailas-cloud/docsync/internal/metrics"
	"github.com/kailas-cloud/docsync/internal/usecase/indexer"
)

// --- Mocks ---

type mockResolver struct {
	opts endpoint.Options
	err  error
}

func (m *mockResolver) Resolve(string) (endpoint.Options, error) { return m.opts, m.err }

type mockSender struct {
	mu   sync.Mutex
	reqs []domain.Request
	resp domain.Response
	err  error
}

func (m *mockSender) Send(_ context.Context, req domain.Request) (domain.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reqs = append(m.reqs, req)
	return m.resp, m.err
}

func (m *mockSender) requests() []domain.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Request(nil), m.reqs...)
}

type countingObserver struct {
	indexer.NopObserver
	mu   sync.Mutex
	errs []indexer.Result
}

func (o *countingObserver) OnError(_ context.Context, r indexer.Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errs = append(o.errs, r)
}

// panickingIndexer fails the way a serializer would on a value it cannot walk.
type panickingIndexer struct{}

func (panickingIndexer) Index(context.Context, *record.Record, endpoint.Options) indexer.Result {
	panic("reflect: call of reflect.Value.Interface on zero Value")
}

func (panickingIndexer) Unindex(context.Context, *record.Record, endpoint.Options) indexer.Result {
	panic("unindex")
}

var postOpts = endpoint.Options{Protocol: "http", Host: "localhost", Port: 9200, Index: "posts", Type: "post"}

func makePost() *record.Record {
	return &record.Record{
		ID:         record.MustParseObjectID("507f1f77bcf86cd799439011"),
		Collection: "posts",
		Fields:     map[string]any{"title": "hello", "views": 3},
	}
}

// --- Tests ---

func TestOnSaved_IndexesOnce(t *testing.T) {
	client := &mockSender{resp: domain.Response{Status: http.StatusCreated}}
	a := New(&mockResolver{opts: postOpts}, indexer.New(client, nil), zap.NewNop())

	a.OnSaved(context.Background(), makePost())

	reqs := client.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPut, reqs[0].Method)
	assert.Equal(t, "http://localhost:9200/posts/post/507f1f77bcf86cd799439011", reqs[0].URL)
	assert.JSONEq(t, `{"title":"hello","views":3}`, string(reqs[0].Body))
}

func TestOnRemoved_UnindexesOnce(t *testing.T) {
	client := &mockSender{resp: domain.Response{Status: http.StatusOK}}
	a := New(&mockResolver{opts: postOpts}, indexer.New(client, nil), zap.NewNop())

	a.OnRemoved(context.Background(), makePost())

	reqs := client.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodDelete, reqs[0].Method)
	assert.Equal(t, "http://localhost:9200/posts/post/507f1f77bcf86cd799439011", reqs[0].URL)
}

func TestOnSaved_EngineFailureGoesToObserver(t *testing.T) {
	client := &mockSender{resp: domain.Response{Status: http.StatusInternalServerError}}
	obs := &countingObserver{}
	a := New(&mockResolver{opts: postOpts}, indexer.New(client, obs), zap.NewNop())

	assert.NotPanics(t, func() { a.OnSaved(context.Background(), makePost()) })
	require.Len(t, obs.errs, 1)
	assert.ErrorIs(t, obs.errs[0].Err, domain.ErrIndexOperation)
}

func TestOnSaved_ResolutionFailureIsLoggedAndSwallowed(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	client := &mockSender{}
	obs := &countingObserver{}
	resolveErr := domain.NewConfigurationError("search.url", "conflicts with search.port")
	a := New(&mockResolver{err: resolveErr}, indexer.New(client, obs), zap.New(core))

	a.OnSaved(context.Background(), makePost())

	assert.Empty(t, client.requests())
	assert.Empty(t, obs.errs, "setup failures never reach the observer")
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.ErrorLevel, entry.Level)
	assert.Equal(t, "posts", entry.ContextMap()["collection"])
}

func TestOnSaved_MissingIDIsSkipped(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	client := &mockSender{}
	a := New(&mockResolver{opts: postOpts}, indexer.New(client, nil), zap.New(core))

	a.OnSaved(context.Background(), &record.Record{Collection: "posts"})
	a.OnRemoved(context.Background(), nil)

	assert.Empty(t, client.requests())
	assert.Equal(t, 1, logs.Len())
}

func TestOnSaved_UsesCollectionOverrides(t *testing.T) {
	client := &mockSender{resp: domain.Response{Status: http.StatusOK}}
	resolver := config.NewResolver(
		config.SearchOptions{Host: "es.internal", Port: 9200, Type: "doc"},
		map[string]config.SearchOptions{"posts": {URL: "https://search.example.com:9243", Prefix: "blog"}},
	)
	a := New(resolver, indexer.New(client, nil), zap.NewNop())

	a.OnSaved(context.Background(), makePost())

	reqs := client.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "https://search.example.com:9243/blog-posts/doc/507f1f77bcf86cd799439011", reqs[0].URL)
}

func TestAsync_WaitDrainsAndSnapshots(t *testing.T) {
	client := &mockSender{resp: domain.Response{Status: http.StatusOK}}
	a := New(&mockResolver{opts: postOpts}, indexer.New(client, nil), zap.NewNop(), WithAsync(true))

	ctx, cancel := context.WithCancel(context.Background())
	rec := makePost()
	for range 10 {
		a.OnSaved(ctx, rec)
	}
	rec.Set("title", "changed after save")
	cancel()
	a.Wait()

	reqs := client.requests()
	require.Len(t, reqs, 10)
	for _, r := range reqs {
		assert.JSONEq(t, `{"title":"hello","views":3}`, string(r.Body))
	}
}

func TestHooks_PanicIsRecoveredAndCounted(t *testing.T) {
	for _, async := range []bool{false, true} {
		core, logs := observer.New(zapcore.ErrorLevel)
		a := New(&mockResolver{opts: postOpts}, panickingIndexer{}, zap.New(core), WithAsync(async))
		saved := metrics.HookSuppressedTotal.WithLabelValues("posts", string(EventSaved))
		removed := metrics.HookSuppressedTotal.WithLabelValues("posts", string(EventRemoved))
		beforeSaved, beforeRemoved := testutil.ToFloat64(saved), testutil.ToFloat64(removed)

		assert.NotPanics(t, func() {
			a.OnSaved(context.Background(), makePost())
			a.OnRemoved(context.Background(), makePost())
			a.Wait()
		})

		assert.Equal(t, 1.0, testutil.ToFloat64(saved)-beforeSaved)
		assert.Equal(t, 1.0, testutil.ToFloat64(removed)-beforeRemoved)
		require.Equal(t, 2, logs.Len(), "async=%v", async)
		assert.Equal(t, "posts", logs.All()[0].ContextMap()["collection"])
	}
}

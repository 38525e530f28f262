package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/docsync/internal/domain"
	"github.com/kailas-cloud/docsync/internal/domain/record"
	chiTransport "github.com/kailas-cloud/docsync/internal/transport/chi"
	healthuc "github.com/kailas-cloud/docsync/internal/usecase/health"
	resyncuc "github.com/kailas-cloud/docsync/internal/usecase/resync"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		args       []string
		cmd        command
		collection string
		wantErr    bool
	}{
		{nil, cmdServe, "", false},
		{[]string{"serve"}, cmdServe, "", false},
		{[]string{"resync", "posts"}, cmdResync, "posts", false},
		{[]string{"version"}, cmdVersion, "", false},
		{[]string{"resync"}, 0, "", true},
		{[]string{"resync", "a", "b"}, 0, "", true},
		{[]string{"serve", "x"}, 0, "", true},
		{[]string{"migrate"}, 0, "", true},
	}
	for _, tc := range tests {
		cmd, collection, err := parseArgs(tc.args)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseArgs(%v): expected error", tc.args)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseArgs(%v): %v", tc.args, err)
			continue
		}
		if cmd != tc.cmd || collection != tc.collection {
			t.Errorf("parseArgs(%v) = %v, %q", tc.args, cmd, collection)
		}
	}
}

func TestJSONRecoverer(t *testing.T) {
	h := jsonRecoverer(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	var body chiTransport.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != chiTransport.ErrorResponseCodeInternal {
		t.Errorf("unexpected code %s", body.Code)
	}
}

// --- Router ---

type stubRecords struct{}

func (stubRecords) Save(context.Context, *record.Record) (bool, error) { return true, nil }
func (stubRecords) Get(context.Context, string, record.ObjectID) (*record.Record, error) {
	return nil, domain.ErrRecordNotFound
}
func (stubRecords) Delete(context.Context, string, record.ObjectID) error { return nil }

type stubResync struct{}

func (stubResync) Run(context.Context, string) (resyncuc.Report, error) {
	return resyncuc.Report{}, nil
}

type stubHealth struct{}

func (stubHealth) Check(context.Context) healthuc.Report {
	return healthuc.Report{Status: healthuc.Healthy, Checks: map[string]healthuc.CheckResult{}}
}

func newTestRouter(apiKeys []string, l *zap.Logger) http.Handler {
	server := chiTransport.NewServer(stubRecords{}, stubResync{}, stubHealth{}, l)
	return newRouter(server, apiKeys, l)
}

func TestRouter_AuthAndHealth(t *testing.T) {
	h := newTestRouter([]string{"secret"}, zap.NewNop())

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	if rr.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", rr.Code)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/collections/posts/resync", http.NoBody))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("resync without key: expected 401, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/collections/posts/resync", http.NoBody)
	req.Header.Set("Authorization", "Bearer secret")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("resync with key: expected 200, got %d", rr.Code)
	}
}

func TestWideEventMiddleware_LogsCollection(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := newTestRouter(nil, zap.New(core))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/collections/posts/records/507f1f77bcf86cd799439011", http.NoBody))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}

	entries := logs.FilterMessage("http_request").All()
	if len(entries) != 1 {
		t.Fatalf("expected one request log line, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["collection"] != "posts" {
		t.Errorf("collection field: got %v", ctx["collection"])
	}
	if ctx["status"] != int64(http.StatusNotFound) {
		t.Errorf("status field: got %v (%T)", ctx["status"], ctx["status"])
	}
}

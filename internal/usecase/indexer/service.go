package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/kailas-cloud/docsync/internal/domain"
	"github.com/kailas-cloud/docsync/internal/domain/endpoint"
	"github.com/kailas-cloud/docsync/internal/domain/record"
	"github.com/kailas-cloud/docsync/internal/domain/serialize"
	"github.com/kailas-cloud/docsync/internal/metrics"
)

// Operation names a single-document search engine write.
type Operation string

const (
	// OpIndex upserts a document.
	OpIndex Operation = "index"
	// OpUnindex removes a document.
	OpUnindex Operation = "unindex"
)

// Result is the outcome of one operation. Exactly one of Response and Err is meaningful.
type Result struct {
	Operation  Operation
	Collection string
	ID         string
	Request    domain.Request
	Status     int
	Response   any
	Err        error
}

// OK reports whether the operation succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Service mirrors single records into the search engine.
type Service struct {
	client   Sender
	observer Observer
}

// New creates an indexer. A nil observer discards results.
func New(client Sender, observer Observer) *Service {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Service{client: client, observer: observer}
}

// Index upserts the serialized snapshot of rec at its document URI.
func (s *Service) Index(ctx context.Context, rec *record.Record, o endpoint.Options) Result {
	res := Result{Operation: OpIndex, Collection: rec.Collection, ID: rec.ID.Hex()}
	if rec.ID.IsZero() {
		res.Err = domain.ErrMissingID
		return s.finish(ctx, res)
	}

	body, err := json.Marshal(serialize.Document(rec))
	if err != nil {
		res.Err = fmt.Errorf("encode document %s: %w", res.ID, err)
		return s.finish(ctx, res)
	}
	res.Request = domain.Request{Method: http.MethodPut, URL: endpoint.Document(o, res.ID), Body: body}
	return s.finish(ctx, s.send(ctx, res, false))
}

// Unindex deletes the document of rec. An already absent document counts as removed.
func (s *Service) Unindex(ctx context.Context, rec *record.Record, o endpoint.Options) Result {
	res := Result{Operation: OpUnindex, Collection: rec.Collection, ID: rec.ID.Hex()}
	if rec.ID.IsZero() {
		res.Err = domain.ErrMissingID
		return s.finish(ctx, res)
	}

	res.Request = domain.Request{Method: http.MethodDelete, URL: endpoint.Document(o, res.ID)}
	return s.finish(ctx, s.send(ctx, res, true))
}

func (s *Service) send(ctx context.Context, res Result, absentOK bool) Result {
	resp, err := s.client.Send(ctx, res.Request)
	if err != nil {
		res.Err = fmt.Errorf("%s %s/%s: %w", res.Operation, res.Collection, res.ID, err)
		return res
	}
	res.Status = resp.Status
	res.Response = resp.Body
	if resp.OK() || (absentOK && resp.Status == http.StatusNotFound) {
		return res
	}
	res.Err = &domain.IndexOperationError{Request: res.Request, Status: resp.Status, Body: resp.Body}
	return res
}

func (s *Service) finish(ctx context.Context, res Result) Result {
	status := strconv.Itoa(res.Status)
	if res.Status == 0 {
		status = "none"
	}
	metrics.IndexOperationsTotal.WithLabelValues(res.Collection, string(res.Operation), status).Inc()

	switch {
	case res.Err != nil:
		s.observer.OnError(ctx, res)
	case res.Operation == OpIndex:
		s.observer.OnIndexed(ctx, res)
	default:
		s.observer.OnUnindexed(ctx, res)
	}
	return res
}

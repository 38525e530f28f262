package elastic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/kailas-cloud/docsync/internal/domain"
	"github.com/kailas-cloud/docsync/internal/domain/endpoint"
	"github.com/kailas-cloud/docsync/internal/domain/generation"
)

// Sender is the request client contract used by Engine.
type Sender interface {
	Send(ctx context.Context, req domain.Request) (domain.Response, error)
}

// Engine implements the index-management capabilities needed by resync over the
// Elasticsearch HTTP API. Every index argument is addressed by o.FullIndexName().
type Engine struct {
	client Sender
}

// NewEngine creates an Engine.
func NewEngine(client Sender) *Engine {
	return &Engine{client: client}
}

// IndexExists probes the index (or alias) o. A 4xx answer means it does not exist yet.
func (e *Engine) IndexExists(ctx context.Context, o endpoint.Options) (bool, error) {
	req := domain.Request{Method: http.MethodGet, URL: endpoint.Index(o)}
	resp, err := e.client.Send(ctx, req)
	if err != nil {
		return false, fmt.Errorf("probe index %s: %w", o.FullIndexName(), err)
	}
	switch {
	case resp.OK():
		return true, nil
	case resp.ClientError():
		return false, nil
	default:
		return false, &domain.IndexOperationError{Request: req, Status: resp.Status, Body: resp.Body}
	}
}

// ResolveAlias returns the indices alias points to, sorted. An absent alias yields none.
func (e *Engine) ResolveAlias(ctx context.Context, o endpoint.Options, alias string) ([]string, error) {
	req := domain.Request{Method: http.MethodGet, URL: endpoint.AliasLookup(o, alias)}
	resp, err := e.client.Send(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("resolve alias %s: %w", alias, err)
	}
	if resp.ClientError() {
		return nil, nil
	}
	if !resp.OK() {
		return nil, &domain.IndexOperationError{Request: req, Status: resp.Status, Body: resp.Body}
	}

	var byIndex map[string]json.RawMessage
	if err := json.Unmarshal(resp.Raw, &byIndex); err != nil {
		return nil, &domain.InvalidResponseError{Request: req, Status: resp.Status, Body: resp.Raw, Err: err}
	}
	indices := make([]string, 0, len(byIndex))
	for name := range byIndex {
		indices = append(indices, name)
	}
	sort.Strings(indices)
	return indices, nil
}

// CreateIndex creates the empty index o.
func (e *Engine) CreateIndex(ctx context.Context, o endpoint.Options) error {
	return e.expectOK(ctx, domain.Request{Method: http.MethodPut, URL: endpoint.Index(o)})
}

// DeleteIndex drops the index o. Deleting an absent index succeeds.
func (e *Engine) DeleteIndex(ctx context.Context, o endpoint.Options) error {
	req := domain.Request{Method: http.MethodDelete, URL: endpoint.Index(o)}
	resp, err := e.client.Send(ctx, req)
	if err != nil {
		return fmt.Errorf("delete index %s: %w", o.FullIndexName(), err)
	}
	if resp.OK() || resp.Status == http.StatusNotFound {
		return nil
	}
	return &domain.IndexOperationError{Request: req, Status: resp.Status, Body: resp.Body}
}

// UpdateAliases applies all actions in one request; the engine applies them atomically.
func (e *Engine) UpdateAliases(ctx context.Context, o endpoint.Options, actions []generation.AliasAction) error {
	type target struct {
		Index string `json:"index"`
		Alias string `json:"alias,omitempty"`
	}
	payload := struct {
		Actions []map[string]target `json:"actions"`
	}{Actions: make([]map[string]target, len(actions))}
	for i, a := range actions {
		payload.Actions[i] = map[string]target{string(a.Kind): {Index: a.Index, Alias: a.Alias}}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal alias actions: %w", err)
	}
	return e.expectOK(ctx, domain.Request{Method: http.MethodPost, URL: endpoint.Aliases(o), Body: body})
}

// Bulk posts an NDJSON body to the bulk endpoint of o and reports per-item failures.
func (e *Engine) Bulk(ctx context.Context, o endpoint.Options, body []byte) (generation.BulkResult, error) {
	req := domain.Request{
		Method:      http.MethodPost,
		URL:         endpoint.Bulk(o),
		Body:        body,
		ContentType: "application/x-ndjson",
	}
	resp, err := e.client.Send(ctx, req)
	if err != nil {
		return generation.BulkResult{}, fmt.Errorf("bulk load %s: %w", o.FullIndexName(), err)
	}
	if !resp.OK() {
		return generation.BulkResult{}, &domain.IndexOperationError{Request: req, Status: resp.Status, Body: resp.Body}
	}

	var parsed struct {
		Errors bool                          `json:"errors"`
		Items  []map[string]bulkItemResponse `json:"items"`
	}
	if err := json.Unmarshal(resp.Raw, &parsed); err != nil {
		return generation.BulkResult{}, &domain.InvalidResponseError{
			Request: req, Status: resp.Status, Body: resp.Raw, Err: err,
		}
	}

	result := generation.BulkResult{Items: len(parsed.Items)}
	if !parsed.Errors {
		return result, nil
	}
	for _, item := range parsed.Items {
		for _, r := range item {
			if r.Status >= 300 || r.Error != nil {
				result.Failed = append(result.Failed, generation.BulkFailure{
					ID: r.ID, Status: r.Status, Reason: r.reason(),
				})
			}
		}
	}
	return result, nil
}

type bulkItemResponse struct {
	ID     string          `json:"_id"`
	Status int             `json:"status"`
	Error  json.RawMessage `json:"error"`
}

func (r bulkItemResponse) reason() string {
	var detail struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	}
	if json.Unmarshal(r.Error, &detail) == nil && detail.Reason != "" {
		return detail.Type + ": " + detail.Reason
	}
	return string(r.Error)
}

func (e *Engine) expectOK(ctx context.Context, req domain.Request) error {
	resp, err := e.client.Send(ctx, req)
	if err != nil {
		return fmt.Errorf("%s: %w", req, err)
	}
	if !resp.OK() {
		return &domain.IndexOperationError{Request: req, Status: resp.Status, Body: resp.Body}
	}
	return nil
}

// Probe checks that the search engine behind o answers.
type Probe struct {
	engine *Engine
	opts   endpoint.Options
}

// Probe returns a health probe for the engine serving o.
func (e *Engine) Probe(o endpoint.Options) *Probe {
	return &Probe{engine: e, opts: o}
}

// HealthCheck requests the engine root and expects a 2xx reply.
func (p *Probe) HealthCheck(ctx context.Context) error {
	return p.engine.expectOK(ctx, domain.Request{Method: http.MethodGet, URL: endpoint.Domain(p.opts) + "/"})
}

package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docsync/internal/domain"
	"github.com/kailas-cloud/docsync/internal/domain/record"
	"github.com/kailas-cloud/docsync/internal/logger"
	healthuc "github.com/kailas-cloud/docsync/internal/usecase/health"
	resyncuc "github.com/kailas-cloud/docsync/internal/usecase/resync"
)

const maxBodyBytes = 10 << 20

// RecordService is the primary-store surface used by the record handlers.
type RecordService interface {
	Save(ctx context.Context, rec *record.Record) (created bool, err error)
	Get(ctx context.Context, collection string, id record.ObjectID) (*record.Record, error)
	Delete(ctx context.Context, collection string, id record.ObjectID) error
}

// Resyncer rebuilds a collection's search index.
type Resyncer interface {
	Run(ctx context.Context, collection string) (resyncuc.Report, error)
}

// HealthChecker aggregates dependency checks.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server implements ServerInterface.
type Server struct {
	records       RecordService
	resync        Resyncer
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

var _ ServerInterface = (*Server)(nil)

// NewServer creates an admin API server.
func NewServer(records RecordService, resync Resyncer, health HealthChecker, l *zap.Logger) *Server {
	if l == nil {
		l = zap.NewNop()
	}
	s := &Server{
		records: records,
		resync:  resync,
		health:  health,
		logger:  l,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrRecordNotFound, http.StatusNotFound, ErrorResponseCodeRecordNotFound),
		sentinelHandler(domain.ErrInvalidCollection, http.StatusBadRequest, ErrorResponseCodeValidationFailed),
		sentinelHandler(domain.ErrMissingID, http.StatusBadRequest, ErrorResponseCodeValidationFailed),
		sentinelHandler(domain.ErrResyncInProgress, http.StatusConflict, ErrorResponseCodeResyncInProgress),
		sentinelHandler(domain.ErrConfiguration, http.StatusInternalServerError, ErrorResponseCodeConfiguration),
		sentinelHandler(domain.ErrBulkRejected, http.StatusBadGateway, ErrorResponseCodeSearchEngineError),
		sentinelHandler(domain.ErrIndexOperation, http.StatusBadGateway, ErrorResponseCodeSearchEngineError),
		sentinelHandler(domain.ErrInvalidResponseFormat, http.StatusBadGateway, ErrorResponseCodeSearchEngineError),
		sentinelHandler(domain.ErrTransport, http.StatusBadGateway, ErrorResponseCodeSearchEngineError),
	}
	return s
}

// PutRecord handles PUT /collections/{collection}/records/{id}.
func (s *Server) PutRecord(w http.ResponseWriter, r *http.Request, collection, id string) {
	oid, ok := s.parseID(w, id)
	if !ok {
		return
	}

	fields, err := decodeFields(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	delete(fields, record.IDField)

	rec := &record.Record{ID: oid, Collection: collection, Fields: fields}
	created, err := s.records.Save(r.Context(), rec)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		w.Header().Set("Location", fmt.Sprintf("/collections/%s/records/%s", collection, rec.ID.Hex()))
	}
	writeJSON(w, status, recordToResponse(rec))
}

// GetRecord handles GET /collections/{collection}/records/{id}.
func (s *Server) GetRecord(w http.ResponseWriter, r *http.Request, collection, id string) {
	oid, ok := s.parseID(w, id)
	if !ok {
		return
	}
	rec, err := s.records.Get(r.Context(), collection, oid)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, recordToResponse(rec))
}

// DeleteRecord handles DELETE /collections/{collection}/records/{id}.
func (s *Server) DeleteRecord(w http.ResponseWriter, r *http.Request, collection, id string) {
	oid, ok := s.parseID(w, id)
	if !ok {
		return
	}
	if err := s.records.Delete(r.Context(), collection, oid); err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResyncCollection handles POST /collections/{collection}/resync. The call blocks until
// the run finishes.
func (s *Server) ResyncCollection(w http.ResponseWriter, r *http.Request, collection string) {
	report, err := s.resync.Run(r.Context(), collection)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, reportToResponse(report))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, HealthResponse{Status: string(report.Status), Checks: checks})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) parseID(w http.ResponseWriter, id string) (record.ObjectID, bool) {
	oid, err := record.ParseObjectID(id)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeValidationFailed, "id must be a 24-character hex object id")
		return record.NilObjectID, false
	}
	return oid, true
}

// decodeFields reads a JSON object. Extended JSON tags ($oid, $date, $ref) are restored.
func decodeFields(body io.Reader) (map[string]any, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err //nolint:wrapcheck // reported to the client as is
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err //nolint:wrapcheck // reported to the client as is
	}
	if m == nil {
		return nil, errors.New("body must be a JSON object")
	}
	fields, _ := record.FromExtended(m).(map[string]any)
	return fields, nil
}

func recordToResponse(rec *record.Record) RecordResponse {
	fields, _ := record.ToExtended(rec.Fields).(map[string]any)
	if fields == nil {
		fields = map[string]any{}
	}
	return RecordResponse{ID: rec.ID.Hex(), Collection: rec.Collection, Fields: fields}
}

func reportToResponse(rep resyncuc.Report) ResyncResponse {
	resp := ResyncResponse{
		Collection: rep.Collection,
		Alias:      rep.Alias,
		Generation: rep.Generation,
		Previous:   rep.Previous,
		Documents:  rep.Documents,
		Batches:    rep.Batches,
		State:      string(rep.State),
		DurationMs: rep.Duration.Milliseconds(),
	}
	if resp.Previous == nil {
		resp.Previous = []string{}
	}
	if rep.CleanupErr != nil {
		msg := rep.CleanupErr.Error()
		resp.CleanupErr = &msg
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorResponseCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrRecordNotFound,
		domain.ErrInvalidCollection,
		domain.ErrMissingID,
		domain.ErrResyncInProgress,
		domain.ErrConfiguration,
		domain.ErrBulkRejected,
		domain.ErrIndexOperation,
		domain.ErrInvalidResponseFormat,
		domain.ErrTransientTransport,
		domain.ErrTransport,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorResponseCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	l := logger.FromContext(ctx, s.logger)
	l.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	l.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorResponseCodeInternal, "internal error")
}

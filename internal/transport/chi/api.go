package chi

import (
	"fmt"
	"net/http"

	gochi "github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// ErrorResponseCode is a machine-readable error code.
type ErrorResponseCode string

// Error codes returned by the admin API.
const (
	ErrorResponseCodeBadRequest        ErrorResponseCode = "bad_request"
	ErrorResponseCodeUnauthorized      ErrorResponseCode = "unauthorized"
	ErrorResponseCodeValidationFailed  ErrorResponseCode = "validation_failed"
	ErrorResponseCodeRecordNotFound    ErrorResponseCode = "record_not_found"
	ErrorResponseCodeResyncInProgress  ErrorResponseCode = "resync_in_progress"
	ErrorResponseCodeSearchEngineError ErrorResponseCode = "search_engine_error"
	ErrorResponseCodeConfiguration     ErrorResponseCode = "configuration_error"
	ErrorResponseCodeInternal          ErrorResponseCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Code    ErrorResponseCode `json:"code"`
	Message string            `json:"message"`
}

// RecordResponse is a stored record. Fields use extended JSON for ids, dates and references.
type RecordResponse struct {
	ID         string         `json:"_id"`
	Collection string         `json:"collection"`
	Fields     map[string]any `json:"fields"`
}

// ResyncResponse describes a finished resynchronization.
type ResyncResponse struct {
	Collection string   `json:"collection"`
	Alias      string   `json:"alias"`
	Generation string   `json:"generation"`
	Previous   []string `json:"previous"`
	Documents  int      `json:"documents"`
	Batches    int      `json:"batches"`
	State      string   `json:"state"`
	CleanupErr *string  `json:"cleanup_error,omitempty"`
	DurationMs int64    `json:"duration_ms"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ServerInterface represents all admin API handlers.
type ServerInterface interface {
	// PUT /collections/{collection}/records/{id}
	PutRecord(w http.ResponseWriter, r *http.Request, collection, id string)
	// GET /collections/{collection}/records/{id}
	GetRecord(w http.ResponseWriter, r *http.Request, collection, id string)
	// DELETE /collections/{collection}/records/{id}
	DeleteRecord(w http.ResponseWriter, r *http.Request, collection, id string)
	// POST /collections/{collection}/resync
	ResyncCollection(w http.ResponseWriter, r *http.Request, collection string)
	// GET /health
	HealthCheck(w http.ResponseWriter, r *http.Request)
	// GET /metrics
	Metrics(w http.ResponseWriter, r *http.Request)
}

// ChiServerOptions configures Handler.
type ChiServerOptions struct {
	BaseRouter       gochi.Router
	Middlewares      []func(http.Handler) http.Handler
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// InvalidParamFormatError reports a path parameter that failed to bind.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error { return e.Err }

// serverInterfaceWrapper binds path parameters before dispatching to the handler.
type serverInterfaceWrapper struct {
	handler          ServerInterface
	middlewares      []func(http.Handler) http.Handler
	errorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

func (w *serverInterfaceWrapper) bindPath(r *http.Request, name string) (string, error) {
	var value string
	err := runtime.BindStyledParameterWithOptions("simple", name, gochi.URLParam(r, name), &value,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return "", &InvalidParamFormatError{ParamName: name, Err: err}
	}
	return value, nil
}

func (w *serverInterfaceWrapper) serve(rw http.ResponseWriter, r *http.Request, h http.Handler) {
	for _, mw := range w.middlewares {
		h = mw(h)
	}
	h.ServeHTTP(rw, r)
}

func (w *serverInterfaceWrapper) record(call func(http.ResponseWriter, *http.Request, string, string)) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		collection, err := w.bindPath(r, "collection")
		if err != nil {
			w.errorHandlerFunc(rw, r, err)
			return
		}
		id, err := w.bindPath(r, "id")
		if err != nil {
			w.errorHandlerFunc(rw, r, err)
			return
		}
		w.serve(rw, r, http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			call(rw, r, collection, id)
		}))
	}
}

func (w *serverInterfaceWrapper) resync(rw http.ResponseWriter, r *http.Request) {
	collection, err := w.bindPath(r, "collection")
	if err != nil {
		w.errorHandlerFunc(rw, r, err)
		return
	}
	w.serve(rw, r, http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		w.handler.ResyncCollection(rw, r, collection)
	}))
}

// HandlerWithOptions mounts every route of si on the base router.
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter
	if r == nil {
		r = gochi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}
	w := &serverInterfaceWrapper{
		handler:          si,
		middlewares:      options.Middlewares,
		errorHandlerFunc: options.ErrorHandlerFunc,
	}

	r.Group(func(r gochi.Router) {
		r.Put("/collections/{collection}/records/{id}", w.record(si.PutRecord))
		r.Get("/collections/{collection}/records/{id}", w.record(si.GetRecord))
		r.Delete("/collections/{collection}/records/{id}", w.record(si.DeleteRecord))
		r.Post("/collections/{collection}/resync", w.resync)
		r.Get("/health", func(rw http.ResponseWriter, r *http.Request) { w.serve(rw, r, http.HandlerFunc(si.HealthCheck)) })
		r.Get("/metrics", func(rw http.ResponseWriter, r *http.Request) { w.serve(rw, r, http.HandlerFunc(si.Metrics)) })
	})
	return r
}

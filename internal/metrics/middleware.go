package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// Admin API operations, used as the operation label instead of raw paths.
const (
	OpRecordPut    = "record_put"
	OpRecordGet    = "record_get"
	OpRecordDelete = "record_delete"
	OpResync       = "resync"
	OpHealth       = "health"
	OpMetrics      = "metrics"
	OpOther        = "other"
)

const (
	recordRoute = "/collections/{collection}/records/{id}"
	resyncRoute = "/collections/{collection}/resync"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docsync",
			Name:      "http_requests_total",
			Help:      "Admin API requests by operation and status",
		},
		[]string{"operation", "status"},
	)

	// Record calls include the store write and a synchronous index request.
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docsync",
			Name:      "http_request_duration_seconds",
			Help:      "Admin API request duration for everything except resync",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	// A resync request blocks until the whole collection is reloaded.
	httpResyncDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docsync",
			Name:      "http_resync_duration_seconds",
			Help:      "Duration of POST /collections/{collection}/resync requests",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
		[]string{"collection", "status"},
	)

	httpInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "docsync",
			Name:      "http_requests_in_flight",
			Help:      "Admin API requests currently being served",
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(httpResyncDuration)
	prometheus.MustRegister(httpInFlight)
}

// Middleware records admin API traffic. Resync requests get their own long-range
// histogram labelled by collection so they do not skew record latencies.
func Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			route := matchRoute(r)
			op := Operation(r.Method, route.RoutePattern())

			inFlight := httpInFlight.WithLabelValues(op)
			inFlight.Inc()
			defer inFlight.Dec()

			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)

			status := strconv.Itoa(ww.status)
			elapsed := time.Since(start).Seconds()

			httpRequestsTotal.WithLabelValues(op, status).Inc()
			if op != OpResync {
				httpRequestDuration.WithLabelValues(op).Observe(elapsed)
				return
			}
			collection := route.URLParam("collection")
			if ww.status >= 400 && ww.status < 500 {
				// Rejected names stay out of the label set.
				collection = "rejected"
			}
			httpResyncDuration.WithLabelValues(collection, status).Observe(elapsed)
		})
	}
}

// matchRoute resolves the route r will take before the router dispatches it.
func matchRoute(r *http.Request) *chi.Context {
	route := chi.NewRouteContext()
	rctx := chi.RouteContext(r.Context())
	if rctx == nil || rctx.Routes == nil {
		return route
	}
	if !rctx.Routes.Match(route, r.Method, r.URL.Path) {
		return chi.NewRouteContext()
	}
	return route
}

// Operation maps a request method and chi route pattern to its operation label.
func Operation(method, pattern string) string {
	switch pattern {
	case recordRoute:
		switch method {
		case http.MethodPut:
			return OpRecordPut
		case http.MethodGet:
			return OpRecordGet
		case http.MethodDelete:
			return OpRecordDelete
		}
	case resyncRoute:
		if method == http.MethodPost {
			return OpResync
		}
	case "/health":
		if method == http.MethodGet {
			return OpHealth
		}
	case "/metrics":
		if method == http.MethodGet {
			return OpMetrics
		}
	}
	return OpOther
}

// statusWriter captures the response status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b) //nolint:wrapcheck // delegating to underlying ResponseWriter
}

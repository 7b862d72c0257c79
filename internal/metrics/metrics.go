// Package metrics holds the Prometheus instrumentation shared by the
// fastpanel processes. Each process exposes them through Handler.
//
//	fastpanel_jobs_processed_total       counter: client jobs by result
//	fastpanel_playlist_refresh_total     counter: refresh outcomes by status
//	fastpanel_cache_lookups_total        counter: playlist cache lookups by result
//	fastpanel_http_requests_total        counter: HTTP requests by method/route/status
//	fastpanel_http_request_duration_secs histogram: HTTP latency by method/route
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// JobsProcessed counts client playlist jobs by result ("ok", "failed").
var JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "fastpanel_jobs_processed_total",
	Help: "Client playlist generation jobs by result.",
}, []string{"result"})

// PlaylistRefreshes counts refresh outcomes by resulting playlist status.
var PlaylistRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "fastpanel_playlist_refresh_total",
	Help: "Playlist refresh outcomes by resulting status.",
}, []string{"status"})

// CacheLookups counts playlist cache lookups ("hit", "miss").
var CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "fastpanel_cache_lookups_total",
	Help: "Playlist cache lookups by result.",
}, []string{"result"})

// HTTPRequests counts HTTP requests by method, route pattern and status.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "fastpanel_http_requests_total",
	Help: "Total HTTP requests handled.",
}, []string{"method", "route", "status"})

// HTTPDuration tracks HTTP request latency.
var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "fastpanel_http_request_duration_seconds",
	Help:    "HTTP request latency in seconds.",
	Buckets: prometheus.DefBuckets,
}, []string{"method", "route"})

// CacheResult records one cache lookup.
func CacheResult(hit bool) {
	if hit {
		CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	CacheLookups.WithLabelValues("miss").Inc()
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency. Requests are labelled by
// the chi route pattern so ids in paths do not explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(rw.status)).Inc()
		HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

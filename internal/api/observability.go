package api

import (
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics with bounded cardinality (no per-circle labels).
var (
	// Simulation metrics
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arena_tick_duration_seconds",
		Help:    "Time spent in one simulation tick",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05},
	})

	frameDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arena_frame_render_duration_seconds",
		Help:    "Time spent rendering a debug frame",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
	})

	circleCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_circle_count",
		Help: "Current number of circles in the arena",
	})

	overlapPairs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_overlap_pairs",
		Help: "Overlapping pairs found in the last tick",
	})

	// Grid index metrics, fed from GridStats
	gridLargestBucket = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "grid_largest_bucket_size",
		Help: "Occupancy of the fullest grid bucket",
	})

	gridAverageBucket = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "grid_average_bucket_size",
		Help: "Mean occupancy across all grid buckets",
	})

	gridMutations = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "grid_bucket_mutations_total",
		Help: "Cumulative bucket adds and removes performed by the grid",
	})

	// HTTP / WebSocket metrics - use ONLY bounded label values
	requestRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "request_rejected_total",
		Help: "Requests rejected by the rate limiter or connection caps",
	}, []string{"reason"}) // Bounded: "rate_limit", "ws_limit"

	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_messages_total",
		Help: "Total WebSocket messages sent",
	})
)

// ObservabilityConfig configures the debug server.
type ObservabilityConfig struct {
	Enabled       bool
	ListenAddr    string // MUST stay on localhost in production
	BasicAuthUser string // Optional basic auth
	BasicAuthPass string
}

// DefaultObservabilityConfig returns safe defaults.
func DefaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060", // Localhost only - NEVER expose externally
	}
}

// StartDebugServer starts the internal observability server with pprof,
// Prometheus metrics, and a health check. It MUST bind to localhost only
// unless explicitly overridden via ALLOW_DEBUG_EXTERNAL.
func StartDebugServer(cfg ObservabilityConfig) error {
	if !cfg.Enabled {
		log.Println("📊 Debug server disabled")
		return nil
	}

	if cfg.ListenAddr != "127.0.0.1:6060" && cfg.ListenAddr != "localhost:6060" {
		if os.Getenv("ALLOW_DEBUG_EXTERNAL") != "true" {
			log.Println("⚠️ Debug server forced to localhost for security")
			cfg.ListenAddr = "127.0.0.1:6060"
		}
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	var handler http.Handler = mux
	if cfg.BasicAuthUser != "" {
		handler = basicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass, mux)
	}

	go func() {
		log.Printf("📊 Debug server starting on %s", cfg.ListenAddr)
		log.Printf("   - pprof:   http://%s/debug/pprof/", cfg.ListenAddr)
		log.Printf("   - metrics: http://%s/metrics", cfg.ListenAddr)

		if err := http.ListenAndServe(cfg.ListenAddr, handler); err != nil {
			log.Printf("⚠️ Debug server error: %v", err)
		}
	}()

	return nil
}

// basicAuthMiddleware adds basic authentication to the handler.
func basicAuthMiddleware(user, pass string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != pass {
			w.Header().Set("WWW-Authenticate", `Basic realm="debug"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RecordTick records one tick's duration and overlap count.
func RecordTick(d time.Duration, pairs int) {
	tickDuration.Observe(d.Seconds())
	overlapPairs.Set(float64(pairs))
}

// RecordFrame records the time spent rendering a debug frame.
func RecordFrame(d time.Duration) {
	frameDuration.Observe(d.Seconds())
}

// UpdateGridMetrics publishes the grid's occupancy aggregates.
func UpdateGridMetrics(circles int, largest int, average float64, mutations uint64) {
	circleCount.Set(float64(circles))
	gridLargestBucket.Set(float64(largest))
	gridAverageBucket.Set(average)
	gridMutations.Set(float64(mutations))
}

// RecordRequestRejected increments the rejection counter.
// reason must be one of: "rate_limit", "ws_limit".
func RecordRequestRejected(reason string) {
	requestRejected.WithLabelValues(reason).Inc()
}

// UpdateWSConnections updates the WebSocket connection count.
func UpdateWSConnections(count int) {
	wsConnectionsActive.Set(float64(count))
}

// IncrementWSMessages increments the WebSocket message counter.
func IncrementWSMessages() {
	wsMessagesTotal.Inc()
}

package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// Server combines the HTTP router with the WebSocket hub and the background
// metrics poller.
//
// IMPORTANT: Background workers do NOT start until Start() is called. This
// enables testing by constructing the server without goroutines or network
// listeners; for plain endpoint tests use NewRouter directly.
type Server struct {
	engine      EngineInterface
	router      *chi.Mux
	wsHub       *WebSocketHub
	rateLimiter *IPRateLimiter
	stopChan    chan struct{}

	snapshotInterval time.Duration
	metricsInterval  time.Duration
}

// ServerConfig configures NewServer.
type ServerConfig struct {
	Engine   EngineInterface
	Renderer RendererInterface

	// SnapshotInterval is the websocket feed period. Zero means 100ms.
	SnapshotInterval time.Duration

	// MetricsInterval is the grid-stats polling period. Zero means 1s.
	MetricsInterval time.Duration
}

// NewServer wires the router, websocket hub, and rate limiter together.
func NewServer(cfg ServerConfig) *Server {
	s := &Server{
		engine:      cfg.Engine,
		wsHub:       NewWebSocketHub(),
		rateLimiter: NewIPRateLimiter(DefaultRateLimitConfig),
		stopChan:    make(chan struct{}),
	}
	s.router = NewRouter(RouterConfig{
		Engine:      cfg.Engine,
		Renderer:    cfg.Renderer,
		WSHub:       s.wsHub,
		RateLimiter: s.rateLimiter,
	})
	s.snapshotInterval = cfg.SnapshotInterval
	s.metricsInterval = cfg.MetricsInterval
	return s
}

// Router exposes the underlying handler, mainly for tests.
func (s *Server) Router() http.Handler { return s.router }

// Start launches the hub, the snapshot broadcaster, and the metrics poller,
// then serves HTTP on the given port. Blocks until the listener fails.
func (s *Server) Start(port int) error {
	go s.wsHub.Run()

	snapInterval := s.snapshotInterval
	if snapInterval <= 0 {
		snapInterval = 100 * time.Millisecond
	}
	s.wsHub.StartBroadcasting(func() any { return s.engine.Snapshot() }, snapInterval, s.stopChan)

	go s.pollMetrics()

	addr := ":" + strconv.Itoa(port)
	log.Printf("🌐 API listening on %s", addr)
	return http.ListenAndServe(addr, s.router)
}

// Stop halts the background workers. The HTTP listener is expected to die
// with the process.
func (s *Server) Stop() {
	close(s.stopChan)
	s.rateLimiter.Stop()
}

// pollMetrics publishes grid aggregates to Prometheus on a fixed period.
func (s *Server) pollMetrics() {
	interval := s.metricsInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats := s.engine.GridStats()
			UpdateGridMetrics(stats.Items, stats.LargestBucket, stats.AverageBucket, stats.Mutations)
		case <-s.stopChan:
			return
		}
	}
}

package api

import (
	"net"
	"net/http"
	"net/http/pprof"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"drop-catch/internal/game"
)

// Metrics with bounded cardinality (no per-game or per-player labels)
var (
	gamesActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dropcatch_games_active",
		Help: "Currently hosted games",
	})

	sessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dropcatch_sessions_started_total",
		Help: "Sessions started",
	})

	sessionOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dropcatch_session_outcomes_total",
		Help: "Sessions ended by result and reason",
	}, []string{"result", "reason"})

	dropsSpawned = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dropcatch_drops_spawned_total",
		Help: "Drops spawned by kind",
	}, []string{"kind"})

	dropsRemoved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dropcatch_drops_removed_total",
		Help: "Drops removed by reason",
	}, []string{"reason"})

	milestonesReached = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dropcatch_milestones_total",
		Help: "Milestone announcements",
	})

	frameRenderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dropcatch_frame_render_duration_seconds",
		Help:    "Time spent rendering a frame",
		Buckets: []float64{0.005, 0.01, 0.02, 0.033, 0.05, 0.1},
	})

	// DoS detection metrics - use ONLY bounded label values
	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Connections rejected by rate limiter or origin check",
	}, []string{"reason"}) // "rate_limit", "origin", "ws_ip_limit", "ws_game_limit", "ws_command_rate"

	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"}) // endpoint is the route pattern, not the URL

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "websocket_messages_total",
		Help: "WebSocket messages by direction",
	}, []string{"direction"})
)

// MetricsObserver turns engine events into counters. Subscribe one instance
// to every hosted engine.
type MetricsObserver struct{}

// OnEvent implements game.Observer
func (MetricsObserver) OnEvent(ev game.Event) {
	switch ev.Type {
	case game.EventTypeSessionStarted:
		sessionsStarted.Inc()
	case game.EventTypeSessionEnded:
		var o game.SessionOutcome
		if ev.DecodePayload(&o) == nil {
			sessionOutcomes.WithLabelValues(o.Result.String(), o.Reason.String()).Inc()
		}
	case game.EventTypeDropSpawned:
		var p game.DropSpawnedPayload
		if ev.DecodePayload(&p) == nil {
			dropsSpawned.WithLabelValues(p.Drop.Kind.String()).Inc()
		}
	case game.EventTypeDropRemoved:
		var p game.DropRemovedPayload
		if ev.DecodePayload(&p) == nil {
			dropsRemoved.WithLabelValues(string(p.Reason)).Inc()
		}
	case game.EventTypeMilestone:
		milestonesReached.Inc()
	}
}

// DebugConfig configures the debug server
type DebugConfig struct {
	Enabled       bool
	ListenAddr    string // MUST be loopback in production
	AllowExternal bool
	BasicAuthUser string // Optional basic auth
	BasicAuthPass string
	// Stats are extra JSON documents served under /debug/stats/{name}
	Stats map[string]func() map[string]interface{}
}

// DefaultDebugConfig returns safe defaults
func DefaultDebugConfig() DebugConfig {
	return DebugConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060", // Localhost only - NEVER expose externally
	}
}

// NewDebugHandler builds the pprof, metrics and health mux
func NewDebugHandler(cfg DebugConfig) http.Handler {
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

	for name, stats := range cfg.Stats {
		stats := stats
		mux.HandleFunc("/debug/stats/"+name, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, stats())
		})
	}

	if cfg.BasicAuthUser != "" {
		return basicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass, mux)
	}
	return mux
}

// StartDebugServer starts the internal observability server and returns it
// for shutdown. A nil server means it is disabled.
// CRITICAL: This MUST bind to localhost only to prevent pprof-based DoS
func StartDebugServer(cfg DebugConfig) *http.Server {
	if !cfg.Enabled {
		logrus.Info("📊 Debug server disabled")
		return nil
	}

	cfg.ListenAddr = loopbackAddr(cfg.ListenAddr, cfg.AllowExternal)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           NewDebugHandler(cfg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logrus.Infof("📊 Debug server starting on %s", cfg.ListenAddr)
		logrus.Infof("   - pprof:   http://%s/debug/pprof/", cfg.ListenAddr)
		logrus.Infof("   - metrics: http://%s/metrics", cfg.ListenAddr)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Warn("⚠️ Debug server error")
		}
	}()

	return srv
}

// loopbackAddr forces addr onto 127.0.0.1 unless external binding is allowed
func loopbackAddr(addr string, allowExternal bool) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		logrus.Warnf("⚠️ Invalid debug address %q, using 127.0.0.1:6060", addr)
		return "127.0.0.1:6060"
	}
	if allowExternal || host == "localhost" {
		return addr
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return addr
	}
	logrus.Warn("⚠️ Debug server forced to localhost for security")
	return net.JoinHostPort("127.0.0.1", port)
}

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

// metricsMiddleware records latency and status per route pattern
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			endpoint = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RecordRequest(r.Method, endpoint, status, time.Since(start))
	})
}

// UpdateActiveGames sets the hosted games gauge
func UpdateActiveGames(count int) {
	gamesActive.Set(float64(count))
}

// RecordRender records frame render timing
func RecordRender(duration time.Duration) {
	frameRenderDuration.Observe(duration.Seconds())
}

// RecordConnectionRejected increments the rejection counter
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, endpoint string, status int, duration time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	requestTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
}

// UpdateWSConnections updates WebSocket connection count
func UpdateWSConnections(count int) {
	wsConnectionsActive.Set(float64(count))
}

// IncrementWSMessages counts one message in direction "in" or "out"
func IncrementWSMessages(direction string) {
	wsMessagesTotal.WithLabelValues(direction).Inc()
}

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"drop-catch/internal/game"
)

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "10.0.0.1:5555", "10.0.0.1"},
		{"forwarded chain", map[string]string{"X-Forwarded-For": "1.2.3.4, 10.0.0.1"}, "10.0.0.1:5555", "1.2.3.4"},
		{"real ip", map[string]string{"X-Real-IP": " 5.6.7.8 "}, "10.0.0.1:5555", "5.6.7.8"},
		{"no port", nil, "10.0.0.9", "10.0.0.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := GetClientIP(r); got != tt.want {
				t.Errorf("GetClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIPRateLimiter(t *testing.T) {
	rl := NewIPRateLimiter(RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1, CleanupInterval: time.Hour})
	defer rl.Stop()

	if !rl.Allow("a") || rl.Allow("a") {
		t.Error("burst of one should allow exactly one request")
	}
	if !rl.Allow("b") {
		t.Error("limits are per IP")
	}
	stats := rl.GetStats()
	if stats["allowed"] != 2 || stats["rejected"] != 1 {
		t.Errorf("unexpected stats %v", stats)
	}

	if n := rl.cleanup(time.Now().Add(time.Minute)); n != 2 {
		t.Errorf("Expected 2 stale limiters, got %d", n)
	}
}

func TestWebSocketRateLimiter(t *testing.T) {
	wrl := NewWebSocketRateLimiter(2)
	if !wrl.Allow("ip") || !wrl.Allow("ip") || wrl.Allow("ip") {
		t.Error("third connection should be rejected")
	}
	wrl.Release("ip")
	if wrl.GetConnectionCount("ip") != 1 || !wrl.Allow("ip") {
		t.Error("release should free a slot")
	}
}

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		origins []string
		origin  string
		want    bool
	}{
		{[]string{"*"}, "https://anything.example", true},
		{[]string{"https://game.example"}, "https://game.example", true},
		{[]string{"https://game.example"}, "https://evil.example", false},
		{[]string{"http://localhost:*"}, "http://localhost:5173", true},
		{[]string{"http://localhost:*"}, "http://localhost.evil:80", false},
		{[]string{"https://game.example"}, "", true},
	}
	for _, tt := range tests {
		if got := NewOriginChecker(tt.origins).Allowed(tt.origin); got != tt.want {
			t.Errorf("Allowed(%v, %q) = %v, want %v", tt.origins, tt.origin, got, tt.want)
		}
	}
}

func TestLoopbackAddr(t *testing.T) {
	tests := []struct {
		addr     string
		external bool
		want     string
	}{
		{"127.0.0.1:6060", false, "127.0.0.1:6060"},
		{"localhost:7070", false, "localhost:7070"},
		{"0.0.0.0:6060", false, "127.0.0.1:6060"},
		{"0.0.0.0:6060", true, "0.0.0.0:6060"},
		{"garbage", false, "127.0.0.1:6060"},
	}
	for _, tt := range tests {
		if got := loopbackAddr(tt.addr, tt.external); got != tt.want {
			t.Errorf("loopbackAddr(%q, %v) = %q, want %q", tt.addr, tt.external, got, tt.want)
		}
	}
}

func TestDebugHandler(t *testing.T) {
	h := NewDebugHandler(DebugConfig{
		Stats: map[string]func() map[string]interface{}{
			"journal": func() map[string]interface{} { return map[string]interface{}{"total": 3} },
		},
	})

	for _, path := range []string{"/health", "/metrics", "/debug/stats/journal"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status %d", path, rec.Code)
		}
	}

	auth := NewDebugHandler(DebugConfig{BasicAuthUser: "ops", BasicAuthPass: "secret"})
	rec := httptest.NewRecorder()
	auth.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without credentials, got %d", rec.Code)
	}
}

func TestMetricsObserver(t *testing.T) {
	started := counterValue(sessionsStarted)
	wins := counterValue(sessionOutcomes.WithLabelValues("win", "countdown"))

	var obs MetricsObserver
	obs.OnEvent(game.NewEvent(game.EventTypeSessionStarted, testEpoch, "G", 1, nil))
	obs.OnEvent(game.NewEvent(game.EventTypeSessionEnded, testEpoch, "G", 1, game.SessionOutcome{
		Result: game.ResultWin,
		Reason: game.EndCountdown,
	}))

	if got := counterValue(sessionsStarted); got != started+1 {
		t.Errorf("sessions started = %v", got)
	}
	if got := counterValue(sessionOutcomes.WithLabelValues("win", "countdown")); got != wins+1 {
		t.Errorf("win outcomes = %v", got)
	}
}

func counterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return -1
	}
	return m.GetCounter().GetValue()
}

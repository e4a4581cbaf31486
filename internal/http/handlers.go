package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"neonrange/server/internal/game"
	"neonrange/server/internal/input"
	"neonrange/server/internal/logging"
	"neonrange/server/internal/replay"
	"neonrange/server/internal/simulation"
	"neonrange/server/internal/spectate"
	"neonrange/server/internal/store"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

// ErrSessionNotFound is returned by SessionDirectory implementations for unknown IDs.
var ErrSessionNotFound = errors.New("session not found")

// ReadinessProvider exposes server state required for readiness checks.
type ReadinessProvider interface {
	SessionCounts() (active, capacity int)
	StartupError() error
	Uptime() time.Duration
}

// SessionDirectory lists live sessions and performs admin actions on them.
type SessionDirectory interface {
	Sessions() []game.Summary
	ResetSession(id string) error
}

// Leaderboard reads persisted run history.
type Leaderboard interface {
	TopRuns(ctx context.Context, limit int) ([]store.Run, error)
	RecentRuns(ctx context.Context, limit int) ([]store.Run, error)
}

// RateLimiter gates how frequently sensitive operations may be invoked.
type RateLimiter interface {
	Allow() bool
}

// Options configures the HandlerSet.
type Options struct {
	Logger      *logging.Logger
	Readiness   ReadinessProvider
	Sessions    SessionDirectory
	Leaderboard Leaderboard
	Ticks       *simulation.TickMonitor
	GateDrops   func() input.DropCounters
	Spectators  func() spectate.HubStats
	ReplayStats func() replay.StorageStats
	AdminToken  string
	RateLimiter RateLimiter
	TimeSource  func() time.Time
}

// HandlerSet bundles the operational and read-only HTTP handlers.
type HandlerSet struct {
	logger      *logging.Logger
	readiness   ReadinessProvider
	sessions    SessionDirectory
	leaderboard Leaderboard
	ticks       *simulation.TickMonitor
	gateDrops   func() input.DropCounters
	spectators  func() spectate.HubStats
	replayStats func() replay.StorageStats
	adminToken  string
	rateLimiter RateLimiter
	now         func() time.Time
}

// NewHandlerSet constructs a HandlerSet using the provided options.
func NewHandlerSet(opts Options) *HandlerSet {
	logger := opts.Logger
	if logger == nil {
		logger = logging.L()
	}
	now := opts.TimeSource
	if now == nil {
		now = time.Now
	}
	return &HandlerSet{
		logger:      logger,
		readiness:   opts.Readiness,
		sessions:    opts.Sessions,
		leaderboard: opts.Leaderboard,
		ticks:       opts.Ticks,
		gateDrops:   opts.GateDrops,
		spectators:  opts.Spectators,
		replayStats: opts.ReplayStats,
		adminToken:  strings.TrimSpace(opts.AdminToken),
		rateLimiter: opts.RateLimiter,
		now:         now,
	}
}

// Register attaches all handlers to the provided mux.
func (h *HandlerSet) Register(mux *http.ServeMux) {
	if mux == nil {
		return
	}
	mux.HandleFunc("GET /livez", h.LivenessHandler())
	mux.HandleFunc("GET /readyz", h.ReadinessHandler())
	mux.HandleFunc("GET /metrics", h.MetricsHandler())
	mux.HandleFunc("GET /sessions", h.SessionsHandler())
	mux.HandleFunc("GET /leaderboard", h.LeaderboardHandler())
	mux.HandleFunc("POST /sessions/{id}/reset", h.ResetHandler())
}

// LivenessHandler reports that the HTTP server is reachable.
func (h *HandlerSet) LivenessHandler() http.HandlerFunc {
	type response struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, response{
			Status:    "alive",
			Timestamp: h.now().UTC().Format(time.RFC3339Nano),
		})
	}
}

// ReadinessHandler reports readiness, session occupancy and startup status.
func (h *HandlerSet) ReadinessHandler() http.HandlerFunc {
	type response struct {
		Status        string  `json:"status"`
		Message       string  `json:"message,omitempty"`
		UptimeSeconds float64 `json:"uptime_seconds"`
		Sessions      int     `json:"sessions"`
		Capacity      int     `json:"capacity"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		resp := response{Status: "ok"}
		if h.readiness != nil {
			resp.Sessions, resp.Capacity = h.readiness.SessionCounts()
			resp.UptimeSeconds = h.readiness.Uptime().Seconds()
			if err := h.readiness.StartupError(); err != nil {
				status = http.StatusServiceUnavailable
				resp.Status = "error"
				resp.Message = err.Error()
			} else if resp.Capacity > 0 && resp.Sessions >= resp.Capacity {
				//1.- A full server is alive but should not receive new players.
				status = http.StatusServiceUnavailable
				resp.Status = "full"
			}
		}
		writeJSON(w, status, resp)
	}
}

// MetricsHandler emits Prometheus compatible text metrics.
func (h *HandlerSet) MetricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		if h.readiness != nil {
			active, capacity := h.readiness.SessionCounts()
			writeGauge(w, "neonrange_uptime_seconds", "Server uptime in seconds.", fmt.Sprintf("%.0f", h.readiness.Uptime().Seconds()))
			writeGauge(w, "neonrange_sessions", "Active play sessions.", strconv.Itoa(active))
			writeGauge(w, "neonrange_session_capacity", "Maximum concurrent sessions.", strconv.Itoa(capacity))
		}
		if h.sessions != nil {
			score := 0
			for _, summary := range h.sessions.Sessions() {
				score += summary.Score
			}
			writeGauge(w, "neonrange_live_score", "Sum of scores across live sessions.", strconv.Itoa(score))
		}
		if h.ticks != nil {
			stats := h.ticks.Snapshot()
			writeGauge(w, "neonrange_tick_duration_avg_seconds", "Average simulation step duration.", fmt.Sprintf("%.6f", stats.Average.Seconds()))
			writeGauge(w, "neonrange_tick_duration_max_seconds", "Slowest simulation step in the sample window.", fmt.Sprintf("%.6f", stats.Max.Seconds()))
			writeCounter(w, "neonrange_ticks_observed", "Simulation steps sampled.", strconv.Itoa(stats.Samples))
			writeCounter(w, "neonrange_tick_overruns", "Simulation steps slower than the tick budget.", strconv.Itoa(stats.Overruns))
		}
		if h.gateDrops != nil {
			drops := h.gateDrops()
			fmt.Fprintf(w, "# HELP neonrange_input_dropped_total Client commands rejected by the input gate.\n")
			fmt.Fprintf(w, "# TYPE neonrange_input_dropped_total counter\n")
			fmt.Fprintf(w, "neonrange_input_dropped_total{reason=%q} %d\n", "sequence", drops.Sequence)
			fmt.Fprintf(w, "neonrange_input_dropped_total{reason=%q} %d\n", "stale", drops.Stale)
			fmt.Fprintf(w, "neonrange_input_dropped_total{reason=%q} %d\n", "rate_limited", drops.RateLimited)
		}
		if h.spectators != nil {
			stats := h.spectators()
			writeGauge(w, "neonrange_spectators", "Connected spectator streams.", strconv.Itoa(stats.Watchers))
			writeCounter(w, "neonrange_spectator_dropped_frames", "Frames skipped for slow spectators.", strconv.FormatUint(stats.Dropped, 10))
		}
		if h.replayStats != nil {
			stats := h.replayStats()
			writeGauge(w, "neonrange_replay_sessions", "Replay bundles retained on disk.", strconv.Itoa(stats.Sessions))
			writeGauge(w, "neonrange_replay_bytes", "Disk used by retained replay bundles.", strconv.FormatInt(stats.Bytes, 10))
		}
	}
}

// SessionsHandler lists live sessions.
func (h *HandlerSet) SessionsHandler() http.HandlerFunc {
	type response struct {
		Sessions []game.Summary `json:"sessions"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		resp := response{Sessions: []game.Summary{}}
		if h.sessions != nil {
			if live := h.sessions.Sessions(); live != nil {
				resp.Sessions = live
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// LeaderboardHandler returns persisted runs ordered by score, or by recency with ?order=recent.
func (h *HandlerSet) LeaderboardHandler() http.HandlerFunc {
	type response struct {
		Order string      `json:"order"`
		Runs  []store.Run `json:"runs"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if h.leaderboard == nil {
			http.Error(w, "run history is unavailable", http.StatusServiceUnavailable)
			return
		}
		limit := defaultLeaderboardLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
				return
			}
			limit = min(parsed, maxLeaderboardLimit)
		}
		order := r.URL.Query().Get("order")
		var (
			runs []store.Run
			err  error
		)
		switch order {
		case "", "score":
			order = "score"
			runs, err = h.leaderboard.TopRuns(r.Context(), limit)
		case "recent":
			runs, err = h.leaderboard.RecentRuns(r.Context(), limit)
		default:
			http.Error(w, "order must be score or recent", http.StatusBadRequest)
			return
		}
		if err != nil {
			h.logger.Error("leaderboard query failed", logging.Error(err))
			http.Error(w, "failed to load runs", http.StatusInternalServerError)
			return
		}
		if runs == nil {
			runs = []store.Run{}
		}
		writeJSON(w, http.StatusOK, response{Order: order, Runs: runs})
	}
}

// ResetHandler authorises and resets a live session.
func (h *HandlerSet) ResetHandler() http.HandlerFunc {
	type response struct {
		Status    string `json:"status"`
		SessionID string `json:"session_id"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.PathValue("id")
		//1.- Prefer the traced request logger installed by the HTTP middleware.
		reqLogger := logging.LoggerFromContext(r.Context()).With(
			logging.String("handler", "session_reset"),
			logging.String("remote_addr", r.RemoteAddr),
			logging.String("session_id", sessionID),
		)
		if h.adminToken == "" {
			reqLogger.Warn("session reset denied: admin auth disabled")
			http.Error(w, "admin authentication not configured", http.StatusForbidden)
			return
		}
		if !h.authorise(r) {
			reqLogger.Warn("session reset denied: unauthorized request")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if h.rateLimiter != nil && !h.rateLimiter.Allow() {
			reqLogger.Warn("session reset denied: rate limit exceeded")
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		if h.sessions == nil {
			http.Error(w, "sessions are unavailable", http.StatusServiceUnavailable)
			return
		}
		err := h.sessions.ResetSession(sessionID)
		if errors.Is(err, ErrSessionNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		if err != nil {
			reqLogger.Error("session reset failed", logging.Error(err))
			http.Error(w, "failed to reset session", http.StatusInternalServerError)
			return
		}
		reqLogger.Info("session reset by operator")
		writeJSON(w, http.StatusAccepted, response{Status: "accepted", SessionID: sessionID})
	}
}

func (h *HandlerSet) authorise(r *http.Request) bool {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	var token string
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		token = strings.TrimSpace(header[7:])
	} else if header != "" {
		token = header
	}
	if token == "" {
		token = strings.TrimSpace(r.Header.Get("X-Admin-Token"))
	}
	if token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) == 1
}

func writeGauge(w http.ResponseWriter, name, help, value string) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %s\n", name, help, name, name, value)
}

func writeCounter(w http.ResponseWriter, name, help, value string) {
	fmt.Fprintf(w, "# HELP %s_total %s\n# TYPE %s_total counter\n%s_total %s\n", name, help, name, name, value)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	configpkg "neonrange/server/internal/config"
	"neonrange/server/internal/game"
	"neonrange/server/internal/gameplay"
	httpapi "neonrange/server/internal/http"
	"neonrange/server/internal/input"
	"neonrange/server/internal/logging"
	"neonrange/server/internal/replay"
	"neonrange/server/internal/simulation"
	"neonrange/server/internal/spectate"
	"neonrange/server/internal/store"
)

const saveRunTimeout = 2 * time.Second

// ServerOption customises Server construction.
type ServerOption func(*Server)

// WithRunStore persists finished sessions and enables the leaderboard.
func WithRunStore(runs *store.Store) ServerOption {
	return func(s *Server) {
		s.runs = runs
	}
}

// WithReplayCleaner exposes retention statistics on /metrics.
func WithReplayCleaner(cleaner *replay.Cleaner) ServerOption {
	return func(s *Server) {
		s.cleaner = cleaner
	}
}

// WithTuning overrides the embedded range tuning for new sessions.
func WithTuning(tuning gameplay.Tuning) ServerOption {
	return func(s *Server) {
		s.tuning = &tuning
	}
}

// WithTimeSource injects the clock used for sessions, the input gate and rate limits.
func WithTimeSource(now func() time.Time) ServerOption {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// Server accepts players over websockets and runs one authoritative session per socket.
type Server struct {
	cfg           *configpkg.Config
	log           *logging.Logger
	upgrader      websocket.Upgrader
	authenticator websocketAuthenticator
	registry      *sessionRegistry
	gate          *input.Gate
	validator     *input.Validator
	monitor       *simulation.TickMonitor
	hub           *spectate.Hub
	runs          *store.Store
	cleaner       *replay.Cleaner
	limiter       *httpapi.SlidingWindowLimiter
	tuning        *gameplay.Tuning
	now           func() time.Time
	startedAt     time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// NewServer wires the session machinery from configuration.
func NewServer(cfg *configpkg.Config, logger *logging.Logger, opts ...ServerOption) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.L()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:           cfg,
		log:           logger,
		authenticator: allowAllAuthenticator{},
		registry:      newSessionRegistry(),
		monitor:       simulation.NewTickMonitor(simulation.WithBudget(tickBudget(cfg.TickRate))),
		hub:           spectate.NewHub(logger.With(logging.String("component", "spectate"))),
		now:           time.Now,
		ctx:           ctx,
		cancel:        cancel,
	}
	if cfg.Auth.Enabled() {
		authenticator, err := newJWTWebsocketAuthenticator(cfg.Auth)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("configure websocket auth: %w", err)
		}
		s.authenticator = authenticator
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	clock := func() time.Time { return s.now() }
	inputLogger := logger.With(logging.String("component", "input"))
	s.gate = input.NewGate(input.Config{MaxAge: cfg.InputMaxAge, MinInterval: cfg.InputMinInterval}, inputLogger, input.WithClock(input.ClockFunc(clock)))
	s.validator = input.NewValidator(input.CommandConstraints{}, inputLogger, input.WithValidatorClock(input.ClockFunc(clock)))
	s.limiter = httpapi.NewSlidingWindowLimiter(cfg.SessionWindow, cfg.SessionBurst, clock)
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	s.startedAt = s.now()
	return s, nil
}

func tickBudget(rate float64) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / rate)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	allowed := s.cfg.AllowedOrigins
	if len(allowed) == 0 {
		return true
	}
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	return slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
}

// Hub exposes the spectator fan-out for the gRPC service.
func (s *Server) Hub() *spectate.Hub {
	return s.hub
}

// Routes returns the HTTP handler serving websockets and the operational endpoints.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.serveWS)
	mux.HandleFunc("GET /controls", controlDocsHandler)

	opts := httpapi.Options{
		Logger:      s.log.With(logging.String("component", "http")),
		Readiness:   s,
		Sessions:    s,
		Ticks:       s.monitor,
		GateDrops:   s.gate.Totals,
		Spectators:  s.hub.Stats,
		AdminToken:  s.cfg.AdminToken,
		RateLimiter: httpapi.NewSlidingWindowLimiter(time.Minute, 10, s.now),
		TimeSource:  s.now,
	}
	//1.- Leave optional collaborators as nil interfaces so handlers report them as disabled.
	if s.runs != nil {
		opts.Leaderboard = s.runs
	}
	if s.cleaner != nil {
		opts.ReplayStats = s.cleaner.Stats
	}
	httpapi.NewHandlerSet(opts).Register(mux)
	return mux
}

// SessionCounts implements httpapi.ReadinessProvider.
func (s *Server) SessionCounts() (int, int) {
	return s.registry.Count(), s.cfg.MaxSessions
}

// StartupError implements httpapi.ReadinessProvider.
func (s *Server) StartupError() error {
	if s.isClosed() {
		return errors.New("server shutting down")
	}
	return nil
}

// Uptime implements httpapi.ReadinessProvider.
func (s *Server) Uptime() time.Duration {
	return s.now().Sub(s.startedAt)
}

// Sessions implements httpapi.SessionDirectory.
func (s *Server) Sessions() []game.Summary {
	return s.registry.Summaries()
}

// ResetSession queues a reset on the session's own tick.
func (s *Server) ResetSession(id string) error {
	conn, ok := s.registry.Get(id)
	if !ok {
		return httpapi.ErrSessionNotFound
	}
	if !conn.session.Enqueue(input.Command{Kind: input.KindReset}) {
		return fmt.Errorf("session %s input buffer full", id)
	}
	return nil
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	if s.isClosed() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	subject, err := s.authenticator.Authenticate(r)
	if err != nil {
		s.log.Warn("websocket authentication failed", logging.String("remote", r.RemoteAddr), logging.Error(err))
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	//1.- A reconnecting subject replaces its own session and never counts against capacity.
	if capacity := s.cfg.MaxSessions; capacity > 0 && s.registry.Count() >= capacity {
		if _, reconnect := s.registry.BySubject(subject); !reconnect {
			http.Error(w, "range is full", http.StatusServiceUnavailable)
			return
		}
	}
	if !s.limiter.Allow() {
		retry := int(math.Ceil(s.limiter.RetryAfter().Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(max(retry, 1)))
		http.Error(w, "too many sessions", http.StatusTooManyRequests)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", logging.String("remote", r.RemoteAddr), logging.Error(err))
		return
	}
	s.startSession(conn, subject, r.RemoteAddr)
}

func (s *Server) startSession(conn *websocket.Conn, subject, remote string) {
	id := uuid.NewString()
	logger := s.log.With(
		logging.String("session_id", id),
		logging.String("subject", subject),
		logging.String("remote", remote),
	)
	session := game.NewSession(game.Options{ID: id, Tuning: s.tuning, Now: s.now, Logger: logger})
	runner := game.NewRunner(session, game.RunnerOptions{
		TickRate:     s.cfg.TickRate,
		SnapshotRate: s.cfg.SnapshotRate,
		Monitor:      s.monitor,
		Logger:       logger,
	})
	player := newPlayerConn(s, conn, runner, subject, remote, logger)

	//1.- Recording is best effort; a broken replay directory never blocks play.
	if dir := s.cfg.Replay.Directory; dir != "" {
		writer, _, err := replay.NewWriter(dir, id, replay.WriterOptions{Now: s.now})
		if err != nil {
			logger.Warn("replay recording disabled", logging.Error(err))
		} else {
			player.recorder = replay.NewRecorder(writer, logger.With(logging.String("component", "replay")), 0)
			player.unsubscribe = append(player.unsubscribe, runner.Subscribe(player.recorder))
		}
	}
	s.hub.Register(id)
	player.unsubscribe = append(player.unsubscribe,
		runner.Subscribe(s.hub.Sink(id)),
		runner.Subscribe(player.mailbox),
	)

	//2.- Welcome goes out before the loop starts so it always precedes the first frame.
	if err := player.writeMessage(game.Welcome(session, subject, s.cfg.TickRate, s.cfg.SnapshotRate)); err != nil {
		logger.Warn("welcome write failed", logging.Error(err))
		s.endSession(player)
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.endSession(player)
		return
	}
	replaced := s.registry.Add(player)
	s.wg.Add(2)
	s.mu.Unlock()

	if replaced != nil {
		replaced.log.Info("session replaced by reconnect", logging.String("replacement", id))
		replaced.shutdown(websocket.CloseNormalClosure, "replaced by a newer connection")
	}
	runner.Start(s.ctx)
	go player.readLoop()
	go player.writeLoop()
	logger.Info("session started")
}

// endSession tears a session down exactly once and persists its result.
func (s *Server) endSession(player *playerConn) {
	player.endOnce.Do(func() {
		player.shutdown(websocket.CloseNormalClosure, "")
		player.runner.Stop()
		for _, unsubscribe := range player.unsubscribe {
			unsubscribe()
		}
		s.hub.Unregister(player.id)
		s.gate.Forget(player.id)
		s.validator.Forget(player.id)

		summary := player.session.Summary()
		if err := player.recorder.Close(player.subject, summary); err != nil {
			player.log.Warn("replay close failed", logging.Error(err))
		}
		s.saveRun(player, summary)
		//1.- Deregister only once the run is persisted.
		s.registry.Remove(player)
		player.log.Info("session ended",
			logging.Int("score", summary.Score),
			logging.Int("shots", summary.Shots),
			logging.Int("hits", summary.Hits),
			logging.Duration("elapsed", summary.Elapsed),
		)
	})
}

func (s *Server) saveRun(player *playerConn, summary game.Summary) {
	if s.runs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), saveRunTimeout)
	defer cancel()
	run := store.Run{
		SessionID: summary.SessionID,
		Subject:   player.subject,
		Score:     summary.Score,
		Shots:     summary.Shots,
		Hits:      summary.Hits,
		Duration:  summary.Elapsed,
		StartedAt: summary.StartedAt,
		EndedAt:   s.now(),
	}
	if err := s.runs.SaveRun(ctx, run); err != nil {
		player.log.Warn("persist run failed", logging.Error(err))
	}
}

// Close disconnects every player, waits for their sessions to finish and stops the loops.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	players := s.registry.All()
	s.mu.Unlock()

	for _, player := range players {
		player.shutdown(websocket.CloseGoingAway, "server shutting down")
	}
	s.wg.Wait()
	s.cancel()
}

package game

import (
	"math/rand/v2"
	"sync"
	"time"

	"neonrange/server/internal/gameplay"
	"neonrange/server/internal/input"
	"neonrange/server/internal/logging"
	"neonrange/server/internal/physics"
	"neonrange/server/internal/player"
	"neonrange/server/internal/radar"
	"neonrange/server/internal/weapon"
	"neonrange/server/internal/world"
)

const defaultInputBuffer = 256

// Options configures a session.
type Options struct {
	ID          string
	Tuning      *gameplay.Tuning
	Rand        *rand.Rand
	Now         func() time.Time
	Logger      *logging.Logger
	InputBuffer int
}

// TargetView is the renderer facing projection of a target.
type TargetView struct {
	ID       int          `json:"id"`
	Position physics.Vec3 `json:"position"`
	Rotation physics.Vec3 `json:"rotation"`
	Flashing bool         `json:"flashing"`
	Hit      bool         `json:"hit"`
}

// BeamView is the renderer facing projection of a laser beam.
type BeamView struct {
	ID      int          `json:"id"`
	Start   physics.Vec3 `json:"start"`
	End     physics.Vec3 `json:"end"`
	Opacity float64      `json:"opacity"`
}

// Snapshot is the per-frame view sent to clients.
type Snapshot struct {
	SessionID string         `json:"session_id"`
	Tick      uint64         `json:"tick"`
	ElapsedMs int64          `json:"elapsed_ms"`
	Score     int            `json:"score"`
	Stats     weapon.Stats   `json:"stats"`
	Player    player.State   `json:"player"`
	Targets   []TargetView   `json:"targets"`
	Beams     []BeamView     `json:"beams"`
	Weapon    weapon.Visual  `json:"weapon"`
	Radar     radar.Frame    `json:"radar"`
	Events    []Event        `json:"events,omitempty"`
	Columns   []world.Column `json:"columns,omitempty"`
}

// Summary describes a session for listings and persistence.
type Summary struct {
	SessionID string        `json:"session_id"`
	Score     int           `json:"score"`
	Shots     int           `json:"shots"`
	Hits      int           `json:"hits"`
	Elapsed   time.Duration `json:"elapsed_ns"`
	StartedAt time.Time     `json:"started_at"`
	Locked    bool          `json:"locked"`
}

// Session owns one player's range: the controller, world, weapon and radar.
type Session struct {
	id     string
	tuning gameplay.Tuning
	now    func() time.Time
	logger *logging.Logger

	inputs chan input.Command
	events *EventStore

	mu        sync.Mutex
	player    *player.Controller
	world     *world.World
	weapon    *weapon.Weapon
	radar     *radar.Projector
	lastRadar radar.Frame
	tick      uint64
	elapsed   time.Duration
	score     int
	startedAt time.Time
}

// NewSession builds a session with a freshly spawned world.
func NewSession(opts Options) *Session {
	tuning := gameplay.RangeTuning()
	if opts.Tuning != nil {
		tuning = *opts.Tuning
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.L()
	}
	buffer := opts.InputBuffer
	if buffer <= 0 {
		buffer = defaultInputBuffer
	}
	s := &Session{
		id:        opts.ID,
		tuning:    tuning,
		now:       now,
		logger:    logger.With(logging.String("session_id", opts.ID)),
		inputs:    make(chan input.Command, buffer),
		events:    NewEventStore(),
		player:    player.NewController(tuning.Player),
		world:     world.New(tuning.World, opts.Rand),
		weapon:    weapon.New(tuning.Weapon),
		radar:     radar.NewProjector(tuning.Radar),
		startedAt: now(),
	}
	s.weapon.SetTargets(s.world.Targets())
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	if s == nil {
		return ""
	}
	return s.id
}

// Enqueue queues a command for the next tick. It reports false when the buffer is full.
func (s *Session) Enqueue(command input.Command) bool {
	if s == nil {
		return false
	}
	select {
	case s.inputs <- command:
		return true
	default:
		return false
	}
}

// Step advances the session by one frame.
func (s *Session) Step(dt time.Duration, now time.Time) {
	if s == nil {
		return
	}
	seconds := dt.Seconds()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tick++
	s.elapsed += dt

	//1.- Apply queued input; fires resolve against the current target list.
	s.drainInputsLocked(now)

	//2.- Advance the player, then animate the world.
	s.player.Update(seconds)
	s.world.Advance(seconds, now)

	//3.- Refresh the weapon's view of the targets and age its beams.
	s.weapon.SetTargets(s.world.Targets())
	s.weapon.Update(seconds)

	//4.- Rebuild the radar from the post-movement state.
	state := s.player.State()
	s.lastRadar = s.radar.Frame(now, radar.Observer{Position: state.Position, Yaw: state.Yaw}, s.world.Targets())

	//5.- Sweep hit targets out of the world and award the score.
	s.reconcileLocked()
}

func (s *Session) drainInputsLocked(now time.Time) {
	for {
		select {
		case command := <-s.inputs:
			s.applyLocked(command, now)
		default:
			return
		}
	}
}

func (s *Session) applyLocked(command input.Command, now time.Time) {
	switch command.Kind {
	case input.KindKeyDown:
		s.player.KeyDown(command.Code)
	case input.KindKeyUp:
		s.player.KeyUp(command.Code)
	case input.KindLook:
		s.player.Look(command.DX, command.DY)
	case input.KindLock:
		s.player.Lock()
	case input.KindUnlock:
		s.player.Unlock()
	case input.KindReset:
		s.resetLocked()
	case input.KindFire:
		s.fireLocked(now)
	}
}

func (s *Session) fireLocked(now time.Time) {
	//1.- Firing needs pointer lock just like movement.
	if !s.player.Locked() {
		return
	}
	state := s.player.State()
	s.weapon.SetTargets(s.world.Targets())
	shot, fired := s.weapon.Fire(now, weapon.Aim{Origin: state.Position, Yaw: state.Yaw, Pitch: state.Pitch})
	if !fired {
		return
	}
	point := shot.Point
	s.events.Add(Event{Type: EventShotFired, Tick: s.tick, Score: s.score, Point: &point})
	if shot.Hit {
		s.events.Add(Event{Type: EventTargetHit, Tick: s.tick, TargetID: shot.TargetID, Score: s.score, Point: &point})
	}
}

func (s *Session) reconcileLocked() {
	//1.- Collect identifiers first so removal does not disturb the iteration.
	var hits []int
	for _, target := range s.world.Targets() {
		if target != nil && target.Hit {
			hits = append(hits, target.ID)
		}
	}
	for _, id := range hits {
		if !s.world.Remove(id) {
			continue
		}
		s.score += s.tuning.ScorePerHit
		s.events.Add(Event{Type: EventTargetRemoved, Tick: s.tick, TargetID: id, Score: s.score})
		s.logger.Debug("target removed", logging.Int("target_id", id), logging.Int("score", s.score))
	}
	if len(hits) > 0 {
		s.weapon.SetTargets(s.world.Targets())
	}
}

// Reset re-seeds the world and zeroes the score and counters.
func (s *Session) Reset() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.resetLocked()
	s.mu.Unlock()
}

func (s *Session) resetLocked() {
	s.world.Reset()
	s.weapon.Reset()
	s.weapon.SetTargets(s.world.Targets())
	s.player.Reset()
	s.score = 0
	s.events.Add(Event{Type: EventSessionReset, Tick: s.tick})
	s.logger.Info("session reset")
}

// Snapshot builds the client frame and drains the pending events.
func (s *Session) Snapshot(now time.Time) Snapshot {
	if s == nil {
		return Snapshot{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := Snapshot{
		SessionID: s.id,
		Tick:      s.tick,
		ElapsedMs: s.elapsed.Milliseconds(),
		Score:     s.score,
		Stats:     s.weapon.Stats(),
		Player:    s.player.State(),
		Weapon:    s.weapon.Visual(now),
		Radar:     s.lastRadar,
		Events:    s.events.Consume(),
	}
	targets := s.world.Targets()
	snapshot.Targets = make([]TargetView, 0, len(targets))
	for _, target := range targets {
		snapshot.Targets = append(snapshot.Targets, TargetView{
			ID:       target.ID,
			Position: target.Position,
			Rotation: target.Rotation,
			Flashing: target.Flashing(now),
			Hit:      target.Hit,
		})
	}
	//1.- A reset respawns the decoration, so resend it with the frame that reports it.
	for _, event := range snapshot.Events {
		if event.Type == EventSessionReset {
			snapshot.Columns = s.world.Columns()
			break
		}
	}
	beams := s.weapon.Beams()
	snapshot.Beams = make([]BeamView, 0, len(beams))
	for _, beam := range beams {
		snapshot.Beams = append(snapshot.Beams, BeamView{ID: beam.ID, Start: beam.Start, End: beam.End, Opacity: beam.Opacity()})
	}
	return snapshot
}

// Columns returns the static decoration sent once in the welcome message.
func (s *Session) Columns() []world.Column {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.world.Columns()
}

// Score returns the current score.
func (s *Session) Score() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.score
}

// Summary reports the session totals.
func (s *Session) Summary() Summary {
	if s == nil {
		return Summary{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := s.weapon.Stats()
	return Summary{
		SessionID: s.id,
		Score:     s.score,
		Shots:     stats.Shots,
		Hits:      stats.Hits,
		Elapsed:   s.elapsed,
		StartedAt: s.startedAt,
		Locked:    s.player.Locked(),
	}
}

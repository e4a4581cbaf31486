package game

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"neonrange/server/internal/gameplay"
	"neonrange/server/internal/input"
	"neonrange/server/internal/physics"
	"neonrange/server/internal/world"
)

const frame = time.Second / 60

func newTestSession(t *testing.T) *Session {
	t.Helper()
	return NewSession(Options{ID: "test", Rand: rand.New(rand.NewPCG(7, 11)), Now: func() time.Time { return time.Unix(1000, 0) }})
}

// placeTargetAhead moves the first target directly in front of the spawn pose.
func placeTargetAhead(s *Session, distance float64) *world.Target {
	targets := s.world.Targets()
	for i, target := range targets {
		//1.- Park every other target far to the side so only one can be hit.
		target.Position = physics.Vec3{X: 200 + float64(i)*10, Y: 1.6, Z: 0}
		target.BaseHeight = 1.6
		target.FloatSpeed = 0
		target.FloatOffset = 0
	}
	target := targets[0]
	target.Position = physics.Vec3{Y: 1.6, Z: -distance}
	return target
}

func TestOneHitScoresOneIncrement(t *testing.T) {
	s := newTestSession(t)
	now := time.Unix(1000, 0)
	target := placeTargetAhead(s, 8)
	s.Enqueue(input.Command{Kind: input.KindLock})
	s.Enqueue(input.Command{Kind: input.KindFire})

	s.Step(frame, now)

	if s.Score() != gameplay.RangeTuning().ScorePerHit {
		t.Fatalf("expected score 100, got %d", s.Score())
	}
	for _, remaining := range s.world.Targets() {
		if remaining.ID == target.ID {
			t.Fatal("hit target should be removed in the same frame")
		}
	}
	snapshot := s.Snapshot(now)
	if len(snapshot.Targets) != 9 || snapshot.Stats.Hits != 1 || snapshot.Stats.Shots != 1 {
		t.Fatalf("unexpected snapshot targets=%d stats=%+v", len(snapshot.Targets), snapshot.Stats)
	}
	kinds := map[EventType]int{}
	for _, event := range snapshot.Events {
		kinds[event.Type]++
	}
	if kinds[EventShotFired] != 1 || kinds[EventTargetHit] != 1 || kinds[EventTargetRemoved] != 1 {
		t.Fatalf("unexpected events %+v", snapshot.Events)
	}
	if again := s.Snapshot(now); len(again.Events) != 0 {
		t.Fatal("events must drain on snapshot")
	}
}

func TestFireWhileUnlockedIsIgnored(t *testing.T) {
	s := newTestSession(t)
	placeTargetAhead(s, 8)
	s.Enqueue(input.Command{Kind: input.KindFire})
	s.Step(frame, time.Unix(1000, 0))
	if s.Score() != 0 || s.Summary().Shots != 0 {
		t.Fatalf("unlocked fire should not shoot, summary %+v", s.Summary())
	}
}

func TestRapidDoubleFireCountsOnce(t *testing.T) {
	s := newTestSession(t)
	now := time.Unix(1000, 0)
	placeTargetAhead(s, 8)
	s.Enqueue(input.Command{Kind: input.KindLock})
	s.Enqueue(input.Command{Kind: input.KindFire})
	s.Enqueue(input.Command{Kind: input.KindFire})
	s.Step(frame, now)
	if summary := s.Summary(); summary.Shots != 1 || summary.Score != 100 {
		t.Fatalf("expected one shot and 100 points, got %+v", summary)
	}
}

func TestMultipleFlaggedTargetsAreAllRemoved(t *testing.T) {
	s := newTestSession(t)
	targets := s.world.Targets()
	targets[0].Hit = true
	targets[1].Hit = true
	s.Step(frame, time.Unix(1000, 0))
	if s.Score() != 200 {
		t.Fatalf("expected both hits scored, got %d", s.Score())
	}
	if len(s.world.Targets()) != 8 {
		t.Fatalf("expected 8 targets left, got %d", len(s.world.Targets()))
	}
}

func TestPlayerStaysAboveFloorAcrossFrames(t *testing.T) {
	s := newTestSession(t)
	s.Enqueue(input.Command{Kind: input.KindLock})
	s.Enqueue(input.Command{Kind: input.KindKeyDown, Code: "KeyW"})
	s.Enqueue(input.Command{Kind: input.KindKeyDown, Code: "Space"})
	now := time.Unix(1000, 0)
	for i := 0; i < 240; i++ {
		now = now.Add(frame)
		s.Step(frame, now)
		if y := s.Snapshot(now).Player.Position.Y; y < 1.6 {
			t.Fatalf("frame %d: player fell through floor at %.4f", i, y)
		}
	}
}

func TestResetRestoresTargetsAndScore(t *testing.T) {
	s := newTestSession(t)
	s.world.Targets()[0].Hit = true
	s.Step(frame, time.Unix(1000, 0))
	s.Snapshot(time.Unix(1000, 0))

	s.Enqueue(input.Command{Kind: input.KindReset})
	s.Step(frame, time.Unix(1001, 0))
	snapshot := s.Snapshot(time.Unix(1001, 0))
	if snapshot.Score != 0 || len(snapshot.Targets) != 10 {
		t.Fatalf("expected fresh range, got score=%d targets=%d", snapshot.Score, len(snapshot.Targets))
	}
	if len(snapshot.Columns) != 20 {
		t.Fatalf("expected columns resent after reset, got %d", len(snapshot.Columns))
	}
}

func TestSnapshotBeamsFade(t *testing.T) {
	s := newTestSession(t)
	now := time.Unix(1000, 0)
	s.Enqueue(input.Command{Kind: input.KindLock})
	s.Enqueue(input.Command{Kind: input.KindFire})
	s.Step(frame, now)
	beams := s.Snapshot(now).Beams
	if len(beams) != 1 {
		t.Fatalf("expected one beam, got %d", len(beams))
	}
	expected := 1 - frame.Seconds()/0.2
	if math.Abs(beams[0].Opacity-expected) > 1e-9 {
		t.Fatalf("expected opacity %.4f after one frame, got %.4f", expected, beams[0].Opacity)
	}
}

func TestEnqueueReportsFullBuffer(t *testing.T) {
	s := NewSession(Options{ID: "tiny", InputBuffer: 1})
	if !s.Enqueue(input.Command{Kind: input.KindLock}) {
		t.Fatal("first command should fit")
	}
	if s.Enqueue(input.Command{Kind: input.KindFire}) {
		t.Fatal("second command should overflow")
	}
}

package world

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"neonrange/server/internal/gameplay"
)

func newSeededWorld() *World {
	return New(gameplay.RangeTuning().World, rand.New(rand.NewPCG(1, 2)))
}

func TestNewSpawnsConfiguredCounts(t *testing.T) {
	w := newSeededWorld()
	if got := len(w.Targets()); got != 10 {
		t.Fatalf("expected 10 targets, got %d", got)
	}
	if got := len(w.Columns()); got != 20 {
		t.Fatalf("expected 20 columns, got %d", got)
	}
}

func TestTargetsSpawnInsideTheirBox(t *testing.T) {
	w := newSeededWorld()
	for _, target := range w.Targets() {
		p := target.Position
		if p.X < -20 || p.X > 20 || p.Y < 2 || p.Y >= 5 || p.Z < -30 || p.Z > 10 {
			t.Fatalf("target %d spawned outside box: %+v", target.ID, p)
		}
		if target.FloatSpeed < 0.5 || target.FloatSpeed >= 1.5 {
			t.Fatalf("unexpected float speed %.3f", target.FloatSpeed)
		}
		if target.Hit {
			t.Fatalf("target %d spawned already hit", target.ID)
		}
	}
	for _, column := range w.Columns() {
		if math.Abs(column.Position.X) > 40 || math.Abs(column.Position.Z) > 40 {
			t.Fatalf("column %d outside arena: %+v", column.ID, column.Position)
		}
		if column.Scale.X < 1 || column.Scale.X >= 2 {
			t.Fatalf("unexpected column scale %+v", column.Scale)
		}
	}
}

func TestBobStaysWithinAmplitude(t *testing.T) {
	w := newSeededWorld()
	amplitude := gameplay.RangeTuning().World.BobAmplitude
	start := time.Unix(1_700_000_000, 0)
	for frame := 0; frame < 600; frame++ {
		now := start.Add(time.Duration(frame) * 16 * time.Millisecond)
		w.Advance(1.0/60.0, now)
		for _, target := range w.Targets() {
			if diff := math.Abs(target.Position.Y - target.BaseHeight); diff > amplitude+1e-9 {
				t.Fatalf("frame %d: target %d drifted %.4f from base", frame, target.ID, diff)
			}
		}
	}
}

func TestAdvanceSpinsTargets(t *testing.T) {
	w := newSeededWorld()
	target := w.Targets()[0]
	before := target.Rotation
	w.Advance(0.5, time.Unix(0, 0))
	if math.Abs(target.Rotation.X-(before.X+target.RotationSpeed.X*0.5)) > 1e-9 {
		t.Fatalf("unexpected x rotation %.4f", target.Rotation.X)
	}
	if target.Rotation.Z != before.Z {
		t.Fatal("z rotation must stay fixed")
	}
}

func TestRemoveByIdentity(t *testing.T) {
	w := newSeededWorld()
	id := w.Targets()[3].ID
	if !w.Remove(id) {
		t.Fatalf("expected target %d to be removed", id)
	}
	if w.Remove(id) {
		t.Fatal("removing twice must report false")
	}
	if len(w.Targets()) != 9 {
		t.Fatalf("expected 9 targets, got %d", len(w.Targets()))
	}
	for _, target := range w.Targets() {
		if target.ID == id {
			t.Fatal("removed target still listed")
		}
	}
}

func TestResetRespawns(t *testing.T) {
	w := newSeededWorld()
	w.Remove(w.Targets()[0].ID)
	w.Reset()
	if len(w.Targets()) != 10 {
		t.Fatalf("expected a full layout after reset, got %d", len(w.Targets()))
	}
}

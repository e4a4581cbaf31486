package radar

import (
	"math"
	"testing"
	"time"

	"neonrange/server/internal/gameplay"
	"neonrange/server/internal/physics"
	"neonrange/server/internal/world"
)

func newProjector() *Projector {
	return NewProjector(gameplay.RangeTuning().Radar)
}

func TestTargetAheadAtRangeProjectsTopCenter(t *testing.T) {
	p := newProjector()
	point, _, visible := p.Project(Observer{}, physics.Vec3{Z: -40})
	if !visible {
		t.Fatal("target exactly at range must stay visible")
	}
	if math.Abs(point.X-100) > 1e-9 || math.Abs(point.Y) > 1e-9 {
		t.Fatalf("expected top centre (100,0), got %+v", point)
	}
}

func TestTargetBeyondRangeIsCulled(t *testing.T) {
	p := newProjector()
	if _, _, visible := p.Project(Observer{}, physics.Vec3{Z: -40.5}); visible {
		t.Fatal("target beyond range must be culled")
	}
	frame := p.Frame(time.Unix(0, 0), Observer{}, []*world.Target{{ID: 1, Position: physics.Vec3{X: 30, Z: 30}}})
	if len(frame.Blips) != 0 {
		t.Fatalf("diagonal target outside the disc should be culled, got %+v", frame.Blips)
	}
}

func TestProjectionIsHeadingUp(t *testing.T) {
	p := newProjector()
	observer := Observer{Position: physics.Vec3{X: 5, Z: 5}, Yaw: 1.1}
	ahead := observer.Position.Add(physics.ForwardFromYaw(observer.Yaw).Scale(20))
	right := observer.Position.Add(physics.RightFromYaw(observer.Yaw).Scale(20))

	point, _, _ := p.Project(observer, ahead)
	if math.Abs(point.X-100) > 1e-9 || math.Abs(point.Y-50) > 1e-9 {
		t.Fatalf("target ahead should be straight up, got %+v", point)
	}
	point, _, _ = p.Project(observer, right)
	if math.Abs(point.X-150) > 1e-9 || math.Abs(point.Y-100) > 1e-9 {
		t.Fatalf("target to the right should be right of centre, got %+v", point)
	}
}

func TestFrameFadesBlipsNearRim(t *testing.T) {
	p := newProjector()
	targets := []*world.Target{
		{ID: 1, Position: physics.Vec3{Z: -10}},
		{ID: 2, Position: physics.Vec3{Z: -39}},
	}
	frame := p.Frame(time.Unix(0, 0), Observer{}, targets)
	if len(frame.Blips) != 2 {
		t.Fatalf("expected two blips, got %d", len(frame.Blips))
	}
	if frame.Blips[0].Alpha != 1 || frame.Blips[1].Alpha != 0.5 {
		t.Fatalf("unexpected alphas %+v", frame.Blips)
	}
	if frame.Blips[0].Radius != 3 {
		t.Fatalf("unexpected blip radius %.1f", frame.Blips[0].Radius)
	}
}

func TestFrameStaticGeometry(t *testing.T) {
	frame := newProjector().Frame(time.Unix(0, 0), Observer{}, nil)
	if len(frame.Rings) != 3 || math.Abs(frame.Rings[2]-100) > 1e-9 {
		t.Fatalf("unexpected rings %+v", frame.Rings)
	}
	if len(frame.Lines) != 2 {
		t.Fatalf("expected crosshair lines, got %d", len(frame.Lines))
	}
	if frame.Player[0] != (Point{X: 100, Y: 95}) {
		t.Fatalf("unexpected player marker %+v", frame.Player)
	}
	if math.Abs(frame.Sweep.End-frame.Sweep.Start-0.5) > 1e-9 {
		t.Fatalf("unexpected sweep width %+v", frame.Sweep)
	}
}

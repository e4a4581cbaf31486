package world

import (
	"math"
	"math/rand/v2"
	"time"

	"neonrange/server/internal/gameplay"
	"neonrange/server/internal/physics"
)

// Target is a floating, spinning object the player can shoot.
type Target struct {
	ID            int          `json:"id"`
	Position      physics.Vec3 `json:"position"`
	BaseHeight    float64      `json:"base_height"`
	Rotation      physics.Vec3 `json:"rotation"`
	FloatSpeed    float64      `json:"float_speed"`
	FloatOffset   float64      `json:"float_offset"`
	RotationSpeed physics.Vec3 `json:"rotation_speed"`
	Hit           bool         `json:"hit"`
	FlashUntil    time.Time    `json:"-"`
}

// Flashing reports whether the hit flash is still visible at now.
func (t *Target) Flashing(now time.Time) bool {
	return t != nil && now.Before(t.FlashUntil)
}

// Column is a static decorative pillar.
type Column struct {
	ID       int          `json:"id"`
	Position physics.Vec3 `json:"position"`
	Scale    physics.Vec3 `json:"scale"`
	Size     physics.Vec3 `json:"size"`
}

// World owns the live targets and the decorative columns of a range.
type World struct {
	tuning  gameplay.WorldTuning
	rng     *rand.Rand
	nextID  int
	targets []*Target
	columns []Column
}

// New spawns the configured targets and columns using rng for every random draw.
func New(tuning gameplay.WorldTuning, rng *rand.Rand) *World {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	w := &World{tuning: tuning, rng: rng}
	w.Reset()
	return w
}

// Reset discards the current layout and spawns a fresh one.
func (w *World) Reset() {
	if w == nil {
		return
	}
	w.nextID = 0
	w.targets = make([]*Target, 0, w.tuning.TargetCount)
	w.columns = make([]Column, 0, w.tuning.ColumnCount)
	//1.- Targets first so their identifiers stay small and stable across resets.
	for i := 0; i < w.tuning.TargetCount; i++ {
		w.targets = append(w.targets, w.spawnTarget())
	}
	for i := 0; i < w.tuning.ColumnCount; i++ {
		w.columns = append(w.columns, w.spawnColumn())
	}
}

func (w *World) spawnTarget() *Target {
	w.nextID++
	t := w.tuning
	base := t.TargetMinHeight + w.rng.Float64()*t.TargetHeightSpread
	return &Target{
		ID: w.nextID,
		Position: physics.Vec3{
			X: (w.rng.Float64() - 0.5) * 2 * t.TargetHalfWidth,
			Y: base,
			Z: (w.rng.Float64()-0.5)*2*t.TargetHalfDepth + t.TargetDepthOffset,
		},
		BaseHeight:  base,
		Rotation:    physics.Vec3{X: w.rng.Float64() * math.Pi, Y: w.rng.Float64() * math.Pi},
		FloatSpeed:  t.FloatSpeedBase + w.rng.Float64(),
		FloatOffset: w.rng.Float64() * 2 * math.Pi,
		RotationSpeed: physics.Vec3{
			X: w.rng.Float64() * t.MaxRotationSpeed,
			Y: w.rng.Float64() * t.MaxRotationSpeed,
			Z: w.rng.Float64() * t.MaxRotationSpeed,
		},
	}
}

func (w *World) spawnColumn() Column {
	w.nextID++
	t := w.tuning
	return Column{
		ID: w.nextID,
		Position: physics.Vec3{
			X: (w.rng.Float64() - 0.5) * 2 * t.ColumnHalfExtent,
			Y: t.ColumnMinHeight + w.rng.Float64()*t.ColumnHeightSpread,
			Z: (w.rng.Float64() - 0.5) * 2 * t.ColumnHalfExtent,
		},
		Scale: physics.Vec3{
			X: 1 + w.rng.Float64(),
			Y: 1 + w.rng.Float64(),
			Z: 1 + w.rng.Float64(),
		},
		Size: physics.Vec3{X: t.ColumnSize.X, Y: t.ColumnSize.Y, Z: t.ColumnSize.Z},
	}
}

// Advance spins every target and applies the vertical bob keyed on the wall clock.
func (w *World) Advance(dt float64, now time.Time) {
	if w == nil {
		return
	}
	nowMs := float64(now.UnixNano()) / float64(time.Millisecond)
	for _, target := range w.targets {
		//1.- Spin on X and Y only; the Z rate is kept for renderers that want it.
		target.Rotation.X += target.RotationSpeed.X * dt
		target.Rotation.Y += target.RotationSpeed.Y * dt
		//2.- Bob around the base height so the displacement never exceeds the amplitude.
		phase := nowMs*w.tuning.BobFrequency*target.FloatSpeed + target.FloatOffset
		target.Position.Y = target.BaseHeight + w.tuning.BobAmplitude*math.Sin(phase)
	}
}

// Remove deletes the target with the given identifier. It reports false when absent.
func (w *World) Remove(id int) bool {
	if w == nil {
		return false
	}
	for i, target := range w.targets {
		if target.ID != id {
			continue
		}
		copy(w.targets[i:], w.targets[i+1:])
		w.targets[len(w.targets)-1] = nil
		w.targets = w.targets[:len(w.targets)-1]
		return true
	}
	return false
}

// Targets exposes the live target list. Callers may flag hits but must not reorder it.
func (w *World) Targets() []*Target {
	if w == nil {
		return nil
	}
	return w.targets
}

// Columns returns a copy of the decorative columns.
func (w *World) Columns() []Column {
	if w == nil {
		return nil
	}
	out := make([]Column, len(w.columns))
	copy(out, w.columns)
	return out
}

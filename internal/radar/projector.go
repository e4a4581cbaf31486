package radar

import (
	"math"
	"time"

	"neonrange/server/internal/gameplay"
	"neonrange/server/internal/physics"
	"neonrange/server/internal/world"
)

// Point is a canvas coordinate in pixels with Y growing downward.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Line is a straight stroke between two canvas points.
type Line struct {
	From Point `json:"from"`
	To   Point `json:"to"`
}

// Wedge is the cosmetic sweep sector, angles in radians.
type Wedge struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Blip is one projected target.
type Blip struct {
	TargetID int     `json:"target_id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Radius   float64 `json:"radius"`
	Alpha    float64 `json:"alpha"`
}

// Frame is the complete draw list for one radar refresh.
type Frame struct {
	Size   float64   `json:"size"`
	Center Point     `json:"center"`
	Radius float64   `json:"radius"`
	Rings  []float64 `json:"rings"`
	Lines  []Line    `json:"lines"`
	Sweep  Wedge     `json:"sweep"`
	Player [3]Point  `json:"player"`
	Blips  []Blip    `json:"blips"`
}

// Observer is the player pose the radar is centred on.
type Observer struct {
	Position physics.Vec3
	Yaw      float64
}

// Projector turns world positions into heading-up radar coordinates.
type Projector struct {
	tuning gameplay.RadarTuning
}

// NewProjector builds a projector for the supplied disc geometry.
func NewProjector(tuning gameplay.RadarTuning) *Projector {
	return &Projector{tuning: tuning}
}

// Project maps a world position into canvas space. The boolean is false when the point is
// outside the disc.
func (p *Projector) Project(observer Observer, position physics.Vec3) (Point, float64, bool) {
	if p == nil || !(p.tuning.Range > 0) {
		return Point{}, 0, false
	}
	half := p.tuning.Size / 2
	//1.- Express the target relative to the player on the ground plane.
	dx := position.X - observer.Position.X
	dz := position.Z - observer.Position.Z
	//2.- Rotate by the inverse heading so the facing direction points up the canvas.
	cos := math.Cos(observer.Yaw)
	sin := math.Sin(observer.Yaw)
	rx := dx*cos - dz*sin
	rz := dx*sin + dz*cos
	//3.- Scale world units to pixels and cull outside the rim.
	point := Point{X: half + rx/p.tuning.Range*half, Y: half + rz/p.tuning.Range*half}
	distance := math.Hypot(point.X-half, point.Y-half)
	return point, distance, distance <= half
}

// Frame builds the draw list for the current observer and target set.
func (p *Projector) Frame(now time.Time, observer Observer, targets []*world.Target) Frame {
	if p == nil {
		return Frame{}
	}
	size := p.tuning.Size
	half := size / 2
	center := Point{X: half, Y: half}
	frame := Frame{
		Size:   size,
		Center: center,
		Radius: half,
		Lines: []Line{
			{From: Point{X: 0, Y: half}, To: Point{X: size, Y: half}},
			{From: Point{X: half, Y: 0}, To: Point{X: half, Y: size}},
		},
		Player: [3]Point{
			{X: half, Y: half - 5},
			{X: half + 4, Y: half + 5},
			{X: half - 4, Y: half + 5},
		},
	}
	for i := 1; i <= p.tuning.Rings; i++ {
		frame.Rings = append(frame.Rings, half*float64(i)/float64(p.tuning.Rings))
	}

	//1.- The sweep angle follows the wall clock and is purely cosmetic.
	nowMs := float64(now.UnixNano()) / float64(time.Millisecond)
	start := math.Mod(nowMs*p.tuning.SweepRate, 2*math.Pi)
	frame.Sweep = Wedge{Start: start, End: start + p.tuning.SweepWidth}

	//2.- Project every live target, fading blips that sit close to the rim.
	frame.Blips = make([]Blip, 0, len(targets))
	for _, target := range targets {
		if target == nil {
			continue
		}
		point, distance, visible := p.Project(observer, target.Position)
		if !visible {
			continue
		}
		alpha := 1.0
		if distance > half-p.tuning.EdgeFadeBand {
			alpha = 0.5
		}
		frame.Blips = append(frame.Blips, Blip{
			TargetID: target.ID,
			X:        point.X,
			Y:        point.Y,
			Radius:   p.tuning.BlipRadius,
			Alpha:    alpha,
		})
	}
	return frame
}

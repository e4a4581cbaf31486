package weapon

import (
	"math"
	"time"

	"neonrange/server/internal/gameplay"
	"neonrange/server/internal/physics"
	"neonrange/server/internal/world"
)

// Aim describes the camera the weapon fires from.
type Aim struct {
	Origin physics.Vec3
	Yaw    float64
	Pitch  float64
}

// LaserBeam is the transient visual left behind by a shot.
type LaserBeam struct {
	ID       int          `json:"id"`
	Start    physics.Vec3 `json:"start"`
	End      physics.Vec3 `json:"end"`
	Age      float64      `json:"age"`
	Lifetime float64      `json:"-"`
}

// Opacity fades linearly from one to zero across the beam lifetime.
func (b LaserBeam) Opacity() float64 {
	if !(b.Lifetime > 0) {
		return 0
	}
	return math.Max(0, 1-b.Age/b.Lifetime)
}

// Shot summarises the outcome of a successful trigger pull.
type Shot struct {
	Hit      bool         `json:"hit"`
	TargetID int          `json:"target_id,omitempty"`
	Point    physics.Vec3 `json:"point"`
	Distance float64      `json:"distance"`
	Beam     LaserBeam    `json:"beam"`
}

// Visual is the weapon feedback the renderer draws this frame.
type Visual struct {
	RecoilOffset float64 `json:"recoil_offset"`
	Shooting     bool    `json:"shooting"`
	HitMarker    bool    `json:"hit_marker"`
}

// Stats counts trigger pulls and confirmed hits.
type Stats struct {
	Shots int `json:"shots"`
	Hits  int `json:"hits"`
}

// Accuracy returns the hit ratio, zero before the first shot.
func (s Stats) Accuracy() float64 {
	if s.Shots == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Shots)
}

// Weapon resolves hitscan shots against the world's targets.
type Weapon struct {
	tuning  gameplay.WeaponTuning
	targets []*world.Target
	beams   []LaserBeam
	nextID  int
	stats   Stats

	recoilUntil    time.Time
	hitMarkerUntil time.Time
}

// New constructs an idle weapon.
func New(tuning gameplay.WeaponTuning) *Weapon {
	return &Weapon{tuning: tuning}
}

// SetTargets refreshes the list hitscan resolves against.
func (w *Weapon) SetTargets(targets []*world.Target) {
	if w == nil {
		return
	}
	w.targets = targets
}

// Busy reports whether the previous shot's recoil window is still open at now.
func (w *Weapon) Busy(now time.Time) bool {
	return w != nil && now.Before(w.recoilUntil)
}

// Fire pulls the trigger. It returns false without side effects while the recoil window is open.
func (w *Weapon) Fire(now time.Time, aim Aim) (Shot, bool) {
	if w == nil || w.Busy(now) {
		return Shot{}, false
	}
	//1.- Open the recoil window which doubles as the re-entrancy guard.
	w.recoilUntil = now.Add(w.window(w.tuning.RecoilWindowMs))
	w.stats.Shots++

	//2.- Cast from the camera centre and keep the closest intersected target.
	ray := physics.NewRay(aim.Origin, physics.ViewDirection(aim.Yaw, aim.Pitch))
	var closest *world.Target
	closestDistance := math.Inf(1)
	for _, target := range w.targets {
		if target == nil || target.Hit {
			continue
		}
		distance, ok := ray.IntersectSphere(physics.Sphere{Center: target.Position, Radius: w.tuning.TargetRadius})
		if ok && distance < closestDistance {
			closest = target
			closestDistance = distance
		}
	}

	shot := Shot{}
	if closest != nil {
		//3.- Flag the target for reconciliation and start the flash and marker timers.
		closest.Hit = true
		closest.FlashUntil = now.Add(w.window(w.tuning.HitFlashMs))
		w.hitMarkerUntil = now.Add(w.window(w.tuning.HitFlashMs))
		w.stats.Hits++
		shot.Hit = true
		shot.TargetID = closest.ID
		shot.Distance = closestDistance
		shot.Point = ray.At(closestDistance)
	} else {
		shot.Distance = w.tuning.MissDistance
		shot.Point = ray.At(w.tuning.MissDistance)
	}

	//4.- Spawn the beam from the recoiled muzzle so it matches what the player sees.
	w.nextID++
	beam := LaserBeam{
		ID:       w.nextID,
		Start:    w.muzzle(aim, w.tuning.RecoilOffset),
		End:      shot.Point,
		Lifetime: w.tuning.BeamLifetimeSeconds,
	}
	w.beams = append(w.beams, beam)
	shot.Beam = beam
	return shot, true
}

// Update ages every beam and drops the ones past their lifetime.
func (w *Weapon) Update(dt float64) {
	if w == nil {
		return
	}
	kept := w.beams[:0]
	for _, beam := range w.beams {
		beam.Age += dt
		if beam.Age > beam.Lifetime {
			continue
		}
		kept = append(kept, beam)
	}
	for i := len(kept); i < len(w.beams); i++ {
		w.beams[i] = LaserBeam{}
	}
	w.beams = kept
}

// Beams returns a copy of the active beams.
func (w *Weapon) Beams() []LaserBeam {
	if w == nil {
		return nil
	}
	out := make([]LaserBeam, len(w.beams))
	copy(out, w.beams)
	return out
}

// Visual reports the recoil, crosshair and hit marker state at now.
func (w *Weapon) Visual(now time.Time) Visual {
	if w == nil {
		return Visual{}
	}
	visual := Visual{
		Shooting:  now.Before(w.recoilUntil),
		HitMarker: now.Before(w.hitMarkerUntil),
	}
	if visual.Shooting {
		visual.RecoilOffset = w.tuning.RecoilOffset
	}
	return visual
}

// Stats returns the shot counters.
func (w *Weapon) Stats() Stats {
	if w == nil {
		return Stats{}
	}
	return w.stats
}

// Reset clears beams, timers and counters.
func (w *Weapon) Reset() {
	if w == nil {
		return
	}
	w.beams = nil
	w.targets = nil
	w.stats = Stats{}
	w.recoilUntil = time.Time{}
	w.hitMarkerUntil = time.Time{}
}

func (w *Weapon) muzzle(aim Aim, recoil float64) physics.Vec3 {
	offset := physics.Vec3{X: w.tuning.Offset.X, Y: w.tuning.Offset.Y, Z: w.tuning.Offset.Z + recoil}
	barrel := physics.Vec3{Z: -w.tuning.BarrelLength}.RotateY(w.tuning.YawOffset)
	return physics.CameraToWorld(aim.Origin, aim.Yaw, aim.Pitch, offset.Add(barrel))
}

func (w *Weapon) window(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

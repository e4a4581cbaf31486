package player

import (
	"math"

	"neonrange/server/internal/gameplay"
	"neonrange/server/internal/physics"
)

// Key codes understood by the controller. They follow the browser KeyboardEvent.code names.
const (
	KeyForward     = "KeyW"
	KeyForwardAlt  = "ArrowUp"
	KeyBackward    = "KeyS"
	KeyBackwardAlt = "ArrowDown"
	KeyLeft        = "KeyA"
	KeyLeftAlt     = "ArrowLeft"
	KeyRight       = "KeyD"
	KeyRightAlt    = "ArrowRight"
	KeyJump        = "Space"
)

// State is the externally visible player snapshot.
type State struct {
	Position physics.Vec3 `json:"position"`
	Velocity physics.Vec3 `json:"velocity"`
	Yaw      float64      `json:"yaw"`
	Pitch    float64      `json:"pitch"`
	Locked   bool         `json:"locked"`
	CanJump  bool         `json:"can_jump"`
}

// Controller owns first-person movement and look for a single player.
type Controller struct {
	tuning gameplay.PlayerTuning

	position physics.Vec3
	velocity physics.Vec3
	yaw      float64
	pitch    float64
	locked   bool
	canJump  bool

	moveForward  bool
	moveBackward bool
	moveLeft     bool
	moveRight    bool
}

// NewController places the player at the origin standing on the floor.
func NewController(tuning gameplay.PlayerTuning) *Controller {
	c := &Controller{tuning: tuning}
	c.Reset()
	return c
}

// Reset returns the player to the spawn pose while keeping the lock mode.
func (c *Controller) Reset() {
	if c == nil {
		return
	}
	c.position = physics.Vec3{Y: c.tuning.EyeHeight}
	c.velocity = physics.Vec3{}
	c.yaw = 0
	c.pitch = 0
	c.canJump = true
	c.moveForward, c.moveBackward, c.moveLeft, c.moveRight = false, false, false, false
}

// Lock enters pointer-lock mode so movement and look take effect.
func (c *Controller) Lock() {
	if c == nil {
		return
	}
	c.locked = true
}

// Unlock leaves pointer-lock mode. Held keys are released so the player does not drift on relock.
func (c *Controller) Unlock() {
	if c == nil {
		return
	}
	c.locked = false
	c.moveForward, c.moveBackward, c.moveLeft, c.moveRight = false, false, false, false
}

// Locked reports whether the controller currently accepts movement.
func (c *Controller) Locked() bool {
	return c != nil && c.locked
}

// KeyDown handles a pressed key. Unknown codes are ignored.
func (c *Controller) KeyDown(code string) {
	if c == nil {
		return
	}
	switch code {
	case KeyForward, KeyForwardAlt:
		c.moveForward = true
	case KeyBackward, KeyBackwardAlt:
		c.moveBackward = true
	case KeyLeft, KeyLeftAlt:
		c.moveLeft = true
	case KeyRight, KeyRightAlt:
		c.moveRight = true
	case KeyJump:
		//1.- Only grounded players may jump and the impulse is consumed until landing.
		if c.canJump {
			c.velocity.Y += c.tuning.JumpImpulse
			c.canJump = false
		}
	}
}

// KeyUp handles a released key. Unknown codes are ignored.
func (c *Controller) KeyUp(code string) {
	if c == nil {
		return
	}
	switch code {
	case KeyForward, KeyForwardAlt:
		c.moveForward = false
	case KeyBackward, KeyBackwardAlt:
		c.moveBackward = false
	case KeyLeft, KeyLeftAlt:
		c.moveLeft = false
	case KeyRight, KeyRightAlt:
		c.moveRight = false
	}
}

// Look applies a pointer delta in pixels while locked.
func (c *Controller) Look(dx, dy float64) {
	if c == nil || !c.locked {
		return
	}
	c.yaw = physics.WrapAngle(c.yaw - dx*c.tuning.LookSensitivity)
	c.pitch = physics.Clamp(c.pitch-dy*c.tuning.LookSensitivity, -math.Pi/2, math.Pi/2)
}

// Update advances the movement model by dt seconds.
func (c *Controller) Update(dt float64) {
	if c == nil || !c.locked || dt <= 0 {
		return
	}
	//1.- Damp horizontal velocity and pull the player down with gravity.
	c.velocity.X = physics.Damp(c.velocity.X, c.tuning.Damping, dt)
	c.velocity.Z = physics.Damp(c.velocity.Z, c.tuning.Damping, dt)
	c.velocity.Y -= c.tuning.Gravity * dt

	//2.- Normalise the held direction so diagonal movement is not faster.
	direction := physics.Vec3{
		X: boolToFloat(c.moveRight) - boolToFloat(c.moveLeft),
		Z: boolToFloat(c.moveForward) - boolToFloat(c.moveBackward),
	}.Normalize()
	if c.moveForward || c.moveBackward {
		c.velocity.Z -= direction.Z * c.tuning.MoveAcceleration * dt
	}
	if c.moveLeft || c.moveRight {
		c.velocity.X -= direction.X * c.tuning.MoveAcceleration * dt
	}

	//3.- Translate along the yaw relative axes, then integrate the vertical axis.
	right := physics.RightFromYaw(c.yaw).Scale(-c.velocity.X * dt)
	forward := physics.ForwardFromYaw(c.yaw).Scale(-c.velocity.Z * dt)
	c.position = c.position.Add(right).Add(forward)
	c.position.Y += c.velocity.Y * dt

	//4.- Clamp to the floor and restore the jump once grounded.
	if c.position.Y < c.tuning.EyeHeight {
		c.position.Y = c.tuning.EyeHeight
		c.velocity.Y = 0
		c.canJump = true
	}
}

// State returns a copy of the current player state.
func (c *Controller) State() State {
	if c == nil {
		return State{}
	}
	return State{
		Position: c.position,
		Velocity: c.velocity,
		Yaw:      c.yaw,
		Pitch:    c.pitch,
		Locked:   c.locked,
		CanJump:  c.canJump,
	}
}

func boolToFloat(value bool) float64 {
	if value {
		return 1
	}
	return 0
}

package physics

import "math"

// ClampMagnitude scales the vector down so its length does not exceed limit.
func ClampMagnitude(vector Vec3, limit float64) Vec3 {
	//1.- Skip clamping when the limit disables the guard.
	if !(limit > 0) {
		return vector
	}
	magnitudeSq := vector.Dot(vector)
	if magnitudeSq == 0 || magnitudeSq <= limit*limit {
		return vector
	}
	//2.- Scale each axis uniformly so the resulting magnitude matches the limit.
	return vector.Scale(limit / math.Sqrt(magnitudeSq))
}

// WrapAngle normalizes an angle in radians to the [-π, π) range.
func WrapAngle(angle float64) float64 {
	wrapped := math.Mod(angle+math.Pi, 2*math.Pi)
	if wrapped < 0 {
		wrapped += 2 * math.Pi
	}
	return wrapped - math.Pi
}

// Clamp bounds value to the inclusive [low, high] range.
func Clamp(value, low, high float64) float64 {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}

// Damp applies exponential style damping of rate per second over step seconds.
func Damp(value, rate, step float64) float64 {
	//1.- Matches the explicit Euler form v -= v*rate*dt used by the movement model.
	return value - value*rate*step
}

// IntegrateLinear advances position by velocity over the timestep.
func IntegrateLinear(position, velocity Vec3, step float64) Vec3 {
	if step <= 0 {
		return position
	}
	return position.Add(velocity.Scale(step))
}

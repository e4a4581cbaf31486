package physics

import "math"

// Vec3 is the lightweight vector used by the range simulation.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns the component wise sum of two vectors.
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// Sub returns the difference between two vectors.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Scale multiplies the vector by a scalar.
func (v Vec3) Scale(scalar float64) Vec3 {
	return Vec3{X: v.X * scalar, Y: v.Y * scalar, Z: v.Z * scalar}
}

// Dot returns the scalar dot product of two vectors.
func (v Vec3) Dot(other Vec3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// Length computes the Euclidean norm of the vector.
func (v Vec3) Length() float64 {
	return math.Sqrt(v.Dot(v))
}

// Normalize produces a unit length vector. The zero vector is returned unchanged so
// idle movement input stays at rest.
func (v Vec3) Normalize() Vec3 {
	length := v.Length()
	if length == 0 {
		return v
	}
	inv := 1.0 / length
	return Vec3{X: v.X * inv, Y: v.Y * inv, Z: v.Z * inv}
}

// RotateX rotates the vector around the X axis by angle radians.
func (v Vec3) RotateX(angle float64) Vec3 {
	cos := math.Cos(angle)
	sin := math.Sin(angle)
	return Vec3{
		X: v.X,
		Y: v.Y*cos - v.Z*sin,
		Z: v.Y*sin + v.Z*cos,
	}
}

// RotateY rotates the vector around the Y axis by angle radians.
func (v Vec3) RotateY(angle float64) Vec3 {
	cos := math.Cos(angle)
	sin := math.Sin(angle)
	return Vec3{
		X: v.X*cos + v.Z*sin,
		Y: v.Y,
		Z: -v.X*sin + v.Z*cos,
	}
}

// ForwardFromYaw returns the horizontal unit vector a yaw-only camera looks along.
// Yaw zero faces negative Z.
func ForwardFromYaw(yaw float64) Vec3 {
	return Vec3{X: -math.Sin(yaw), Z: -math.Cos(yaw)}
}

// RightFromYaw returns the horizontal unit vector pointing to the camera's right.
func RightFromYaw(yaw float64) Vec3 {
	return Vec3{X: math.Cos(yaw), Z: -math.Sin(yaw)}
}

// ViewDirection returns the unit look vector for the supplied yaw and pitch.
func ViewDirection(yaw, pitch float64) Vec3 {
	cosPitch := math.Cos(pitch)
	return Vec3{
		X: -math.Sin(yaw) * cosPitch,
		Y: math.Sin(pitch),
		Z: -math.Cos(yaw) * cosPitch,
	}
}

// CameraToWorld converts a camera-space offset into world space for a camera at
// origin oriented by yaw then pitch.
func CameraToWorld(origin Vec3, yaw, pitch float64, local Vec3) Vec3 {
	//1.- Pitch is applied in camera space before yaw so the Euler order matches YXZ.
	return origin.Add(local.RotateX(pitch).RotateY(yaw))
}

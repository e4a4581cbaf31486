package physics

import "math"

// Ray is a half-line starting at Origin along the unit Direction.
type Ray struct {
	Origin    Vec3
	Direction Vec3
}

// NewRay normalises direction so distances along the ray are in world units.
func NewRay(origin, direction Vec3) Ray {
	return Ray{Origin: origin, Direction: direction.Normalize()}
}

// At returns the point distance units along the ray.
func (r Ray) At(distance float64) Vec3 {
	return r.Origin.Add(r.Direction.Scale(distance))
}

// Sphere is an analytic bounding volume used for hitscan tests.
type Sphere struct {
	Center Vec3
	Radius float64
}

// IntersectSphere returns the distance to the first intersection in front of the ray
// origin. Rays starting inside the sphere report the exit point.
func (r Ray) IntersectSphere(sphere Sphere) (float64, bool) {
	if !(sphere.Radius > 0) {
		return 0, false
	}
	//1.- Solve |o + t·d - c|² = r² for the unit direction d.
	oc := r.Origin.Sub(sphere.Center)
	b := oc.Dot(r.Direction)
	c := oc.Dot(oc) - sphere.Radius*sphere.Radius
	discriminant := b*b - c
	if discriminant < 0 {
		return 0, false
	}
	root := math.Sqrt(discriminant)
	//2.- Prefer the near root and fall back to the far one when the origin is inside.
	near := -b - root
	if near >= 0 {
		return near, true
	}
	far := -b + root
	if far >= 0 {
		return far, true
	}
	return 0, false
}

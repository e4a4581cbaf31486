package physics

import (
	"math"
	"testing"
)

func approxVec(t *testing.T, got, want Vec3) {
	t.Helper()
	if math.Abs(got.X-want.X) > 1e-9 || math.Abs(got.Y-want.Y) > 1e-9 || math.Abs(got.Z-want.Z) > 1e-9 {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestYawAxesAtZeroFaceNegativeZ(t *testing.T) {
	approxVec(t, ForwardFromYaw(0), Vec3{Z: -1})
	approxVec(t, RightFromYaw(0), Vec3{X: 1})
	//1.- A quarter turn to the left faces negative X with negative Z on the right.
	approxVec(t, ForwardFromYaw(math.Pi/2), Vec3{X: -1})
	approxVec(t, RightFromYaw(math.Pi/2), Vec3{Z: -1})
}

func TestViewDirectionIncludesPitch(t *testing.T) {
	approxVec(t, ViewDirection(0, math.Pi/2), Vec3{Y: 1})
	dir := ViewDirection(0.7, -0.3)
	if math.Abs(dir.Length()-1) > 1e-9 {
		t.Fatalf("expected unit vector, got length %.6f", dir.Length())
	}
}

func TestCameraToWorldAppliesYaw(t *testing.T) {
	//1.- A point one unit ahead of a camera turned left lands on negative X.
	got := CameraToWorld(Vec3{Y: 1.6}, math.Pi/2, 0, Vec3{Z: -1})
	approxVec(t, got, Vec3{X: -1, Y: 1.6})
}

func TestNormalizeZeroVector(t *testing.T) {
	if got := (Vec3{}).Normalize(); got != (Vec3{}) {
		t.Fatalf("expected zero vector, got %+v", got)
	}
}

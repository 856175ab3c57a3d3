package frame

import (
	"math"
	"math/rand"
	"testing"

	"github.com/westphae/quaternion"

	"payloadnav/internal/nav"
)

const eps = 1e-9

func near(a, b nav.Vec3, tol float64) bool {
	return math.Abs(a.X-b.X) <= tol && math.Abs(a.Y-b.Y) <= tol && math.Abs(a.Z-b.Z) <= tol
}

func TestRotate_IdentityQuaternion(t *testing.T) {
	v := nav.Vec3{X: 1, Y: -2, Z: 3}
	if got := Rotate(nav.QuatWXYZ(1, 0, 0, 0), v); !near(got, v, eps) {
		t.Fatalf("got=%v want %v", got, v)
	}
}

func TestRotate_NinetyDegreesAboutZ(t *testing.T) {
	h := math.Sqrt(0.5)
	q := nav.QuatWXYZ(h, 0, 0, h)
	got := Rotate(q, nav.Vec3{X: 1})
	if !near(got, nav.Vec3{Y: 1}, eps) {
		t.Fatalf("got=%v want (0,1,0)", got)
	}
}

func TestRotate_MatchesQuaternionProduct(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		q := nav.QuatWXYZ(r.NormFloat64(), r.NormFloat64(), r.NormFloat64(), r.NormFloat64()).Unit()
		v := nav.Vec3{X: r.NormFloat64() * 20, Y: r.NormFloat64() * 20, Z: r.NormFloat64() * 20}
		p := quaternion.Prod(q, quaternion.Quaternion{X: v.X, Y: v.Y, Z: v.Z}, q.Conj())
		want := nav.Vec3{X: p.X, Y: p.Y, Z: p.Z}
		if got := Rotate(q, v); !near(got, want, 1e-9) {
			t.Fatalf("q=%v v=%v got=%v want %v", q, v, got, want)
		}
	}
}

func TestRotate_PreservesNorm(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	for i := 0; i < 500; i++ {
		q := nav.QuatWXYZ(r.NormFloat64(), r.NormFloat64(), r.NormFloat64(), r.NormFloat64()).Unit()
		v := nav.Vec3{X: r.NormFloat64() * 100, Y: r.NormFloat64() * 100, Z: r.NormFloat64() * 100}
		got := Rotate(q, v)
		if math.Abs(got.Norm()-v.Norm()) > 1e-9*math.Max(1, v.Norm()) {
			t.Fatalf("norm=%v want %v", got.Norm(), v.Norm())
		}
	}
}

func TestRotate_OffUnitStillRotates(t *testing.T) {
	q := nav.QuatWXYZ(1.01, 0, 0, 0)
	if NearUnit(q) {
		t.Fatalf("expected off-unit")
	}
	v := nav.Vec3{X: 3, Y: 4}
	got := Rotate(q, v)
	if !near(got, v, eps) {
		t.Fatalf("got=%v want %v", got, v)
	}
}

func TestRotate_ZeroQuaternionIsIdentity(t *testing.T) {
	v := nav.Vec3{X: 3, Y: 4, Z: 5}
	if got := Rotate(nav.Quat{}, v); got != v {
		t.Fatalf("got=%v want %v", got, v)
	}
}

func TestInverse_UndoesRotation(t *testing.T) {
	q := nav.QuatWXYZ(0.3, -0.5, 0.7, 0.1).Unit()
	v := nav.Vec3{X: 1, Y: 2, Z: 3}
	if got := Rotate(Inverse(q), Rotate(q, v)); !near(got, v, 1e-9) {
		t.Fatalf("got=%v want %v", got, v)
	}
}

func TestNearUnit(t *testing.T) {
	if !NearUnit(nav.QuatWXYZ(1, 0, 0, 0.0001)) {
		t.Fatalf("expected near unit")
	}
	if NearUnit(nav.QuatWXYZ(0.9, 0, 0, 0)) {
		t.Fatalf("expected off unit")
	}
}

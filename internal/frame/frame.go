// Package frame rotates body-frame vectors into the navigation frame.
//
// Quaternions are scalar-first (W,X,Y,Z) and rotate body to navigation.
// Sensor data already arrives in that order (see nav.QuatWXYZ), so no
// component reordering happens anywhere in this package.
package frame

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"payloadnav/internal/nav"
)

// UnitTolerance bounds |‖q‖²-1| for a quaternion to count as unit.
const UnitTolerance = 1e-3

// NearUnit reports whether q is within UnitTolerance of unit norm.
func NearUnit(q nav.Quat) bool {
	return math.Abs(q.Norm2()-1) <= UnitTolerance
}

// Inverse returns the opposite rotation (navigation to body).
func Inverse(q nav.Quat) nav.Quat {
	return q.Unit().Conj()
}

// Matrix returns R(q) for the normalised q. Off-unit quaternions from sensor
// noise are normalised rather than rejected. A zero quaternion yields identity.
func Matrix(q nav.Quat) *mat.Dense {
	if q.Norm2() == 0 {
		return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	}
	u := q.Unit()
	w, x, y, z := u.W, u.X, u.Y, u.Z
	return mat.NewDense(3, 3, []float64{
		1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y),
		2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x),
		2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y),
	})
}

// Rotate returns R(q)·v.
func Rotate(q nav.Quat, v nav.Vec3) nav.Vec3 {
	var out mat.VecDense
	out.MulVec(Matrix(q), mat.NewVecDense(3, []float64{v.X, v.Y, v.Z}))
	return nav.Vec3{X: out.AtVec(0), Y: out.AtVec(1), Z: out.AtVec(2)}
}

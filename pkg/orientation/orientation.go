// Package orientation turns a configured angle triple and an Euler-angle
// convention into a rotation, and combines rotations with translations into
// rigid transforms.
package orientation

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/pixelgeo/pkg/config"
)

// Mode names an Euler-angle convention.
type Mode string

const (
	// XYZ rotates about X by the first angle, then Y, then Z: Rz·Ry·Rx.
	XYZ Mode = "xyz"
	// ZYX rotates about Z by the first angle, Y by the second and X by the third.
	ZYX Mode = "zyx"
	// ZXZ is the proper Euler sequence with angles (phi, theta, psi).
	ZXZ Mode = "zxz"
)

// DefaultMode is used when no convention is configured.
const DefaultMode = XYZ

// ErrInvalidMode is returned for any convention other than xyz, zyx or zxz.
var ErrInvalidMode = fmt.Errorf("%w: orientation mode should be either 'xyz', 'zyx' or 'zxz'", config.ErrInvalidValue)

// ParseMode validates a configured convention name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case XYZ, ZYX, ZXZ:
		return m, nil
	}
	return "", fmt.Errorf("%w, got %q", ErrInvalidMode, s)
}

var (
	axisX = r3.Vec{X: 1}
	axisY = r3.Vec{Y: 1}
	axisZ = r3.Vec{Z: 1}
)

// Rotation is a proper rotation stored as a unit quaternion.
// The zero value behaves as the identity.
type Rotation struct {
	q r3.Rotation
}

// Identity returns the rotation that leaves every vector unchanged.
func Identity() Rotation {
	return Rotation{q: r3.Rotation(quat.Number{Real: 1})}
}

// About returns the right-handed rotation by angle (radians) about axis.
func About(axis r3.Vec, angle float64) Rotation {
	return Rotation{q: r3.NewRotation(angle, axis)}
}

// Compose returns the rotation that applies b first and then a.
func Compose(a, b Rotation) Rotation {
	q := quat.Mul(a.quat(), b.quat())
	if n := quat.Abs(q); n != 0 {
		q = quat.Scale(1/n, q)
	}
	return Rotation{q: r3.Rotation(q)}
}

// Resolve composes angles under the given convention.
//
//	xyz: Rz(z)·Ry(y)·Rx(x)
//	zyx: Rz(x)·Ry(y)·Rx(z)
//	zxz: Rz(x)·Rx(y)·Rz(z)
func Resolve(angles r3.Vec, mode Mode) (Rotation, error) {
	switch mode {
	case XYZ:
		return chain(About(axisZ, angles.Z), About(axisY, angles.Y), About(axisX, angles.X)), nil
	case ZYX:
		return chain(About(axisZ, angles.X), About(axisY, angles.Y), About(axisX, angles.Z)), nil
	case ZXZ:
		return chain(About(axisZ, angles.X), About(axisX, angles.Y), About(axisZ, angles.Z)), nil
	}
	return Rotation{}, fmt.Errorf("%w, got %q", ErrInvalidMode, string(mode))
}

// ResolveString parses mode and resolves angles under it.
func ResolveString(angles r3.Vec, mode string) (Rotation, error) {
	m, err := ParseMode(mode)
	if err != nil {
		return Rotation{}, err
	}
	return Resolve(angles, m)
}

// chain multiplies rotations left to right; the last one is applied first.
func chain(rs ...Rotation) Rotation {
	out := Identity()
	for _, r := range rs {
		out = Compose(out, r)
	}
	return out
}

func (r Rotation) quat() quat.Number {
	if r.q == (r3.Rotation{}) {
		return quat.Number{Real: 1}
	}
	return quat.Number(r.q)
}

// Apply rotates v.
func (r Rotation) Apply(v r3.Vec) r3.Vec {
	return r3.Rotation(r.quat()).Rotate(v)
}

// Inverse returns the opposite rotation.
func (r Rotation) Inverse() Rotation {
	return Rotation{q: r3.Rotation(quat.Conj(r.quat()))}
}

// Matrix returns the 3×3 orthonormal matrix m with m[i][j] the i-th
// component of the rotated j-th basis vector.
func (r Rotation) Matrix() [3][3]float64 {
	var m [3][3]float64
	for j, e := range []r3.Vec{axisX, axisY, axisZ} {
		c := r.Apply(e)
		m[0][j], m[1][j], m[2][j] = c.X, c.Y, c.Z
	}
	return m
}

// IsIdentity reports whether every matrix element is within tol of the
// identity matrix.
func (r Rotation) IsIdentity(tol float64) bool {
	return r.Equal(Identity(), tol)
}

// Equal compares the matrices of two rotations element-wise.
func (r Rotation) Equal(o Rotation, tol float64) bool {
	a, b := r.Matrix(), o.Matrix()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.Abs(a[i][j]-b[i][j]) > tol {
				return false
			}
		}
	}
	return true
}

// ToZYX decomposes the rotation into angles (z, y, x) such that it equals
// Rz(z)·Ry(y)·Rx(x). At gimbal lock x is reported as zero.
func (r Rotation) ToZYX() (z, y, x float64) {
	m := r.Matrix()
	sy := -m[2][0]
	if sy > 1 {
		sy = 1
	} else if sy < -1 {
		sy = -1
	}
	y = math.Asin(sy)
	if math.Abs(math.Cos(y)) > 1e-6 {
		z = math.Atan2(m[1][0], m[0][0])
		x = math.Atan2(m[2][1], m[2][2])
		return z, y, x
	}
	z = math.Atan2(-m[0][1], m[1][1])
	return z, y, 0
}

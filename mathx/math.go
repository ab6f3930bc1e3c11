package mathx

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
)

// Transform is a rigid transform carried through the whole retargeting
// pipeline. Orientation is always a unit quaternion; Euler or QAngle forms
// exist only at the file and host boundaries.
type Transform struct {
	Pos mgl64.Vec3
	Rot mgl64.Quat
}

func NewTransform(pos mgl64.Vec3, rot mgl64.Quat) Transform {
	return Transform{Pos: pos, Rot: rot.Normalize()}
}

func TransformIdent() Transform {
	return Transform{Rot: mgl64.QuatIdent()}
}

// Mul composes t with o, t applied last.
func (t Transform) Mul(o Transform) Transform {
	return Transform{
		Pos: t.Pos.Add(t.Rot.Rotate(o.Pos)),
		Rot: t.Rot.Mul(o.Rot).Normalize(),
	}
}

func (t Transform) Inv() Transform {
	inv := t.Rot.Conjugate()
	return Transform{
		Pos: inv.Rotate(t.Pos).Mul(-1),
		Rot: inv,
	}
}

// ApproxEqual compares positions componentwise and rotations up to sign,
// since q and -q encode the same orientation.
func (t Transform) ApproxEqual(o Transform, eps float64) bool {
	if !t.Pos.ApproxEqualThreshold(o.Pos, eps) {
		return false
	}
	d := t.Rot.Dot(o.Rot)
	return 1-math.Abs(d) < eps
}

func DegToRad(v mgl64.Vec3) mgl64.Vec3 {
	return v.Mul(math.Pi / 180.0)
}

func RadToDeg(v mgl64.Vec3) mgl64.Vec3 {
	return v.Mul(180.0 / math.Pi)
}

// EulerOrder is the application order of the three axis rotations: the first
// letter rotates first. OrderXYZ therefore builds the matrix Rz*Ry*Rx.
type EulerOrder int

const (
	OrderXYZ EulerOrder = iota
	OrderXZY
	OrderYXZ
	OrderYZX
	OrderZXY
	OrderZYX
)

var orderNames = [...]string{"XYZ", "XZY", "YXZ", "YZX", "ZXY", "ZYX"}

func (o EulerOrder) String() string {
	if o < OrderXYZ || o > OrderZYX {
		return "???"
	}
	return orderNames[o]
}

func ParseEulerOrder(s string) (EulerOrder, error) {
	for i, name := range orderNames {
		if name == s {
			return EulerOrder(i), nil
		}
	}
	return 0, errors.Errorf("Unknown euler order %q", s)
}

func quatAboutX(a float64) mgl64.Quat {
	return mgl64.Quat{W: math.Cos(a / 2), V: mgl64.Vec3{math.Sin(a / 2), 0, 0}}
}

func quatAboutY(a float64) mgl64.Quat {
	return mgl64.Quat{W: math.Cos(a / 2), V: mgl64.Vec3{0, math.Sin(a / 2), 0}}
}

func quatAboutZ(a float64) mgl64.Quat {
	return mgl64.Quat{W: math.Cos(a / 2), V: mgl64.Vec3{0, 0, math.Sin(a / 2)}}
}

var axisQuats = [3]func(float64) mgl64.Quat{quatAboutX, quatAboutY, quatAboutZ}

// axis application sequence per order, indexes into the angle vector
var orderAxes = [6][3]int{
	{0, 1, 2}, // XYZ
	{0, 2, 1}, // XZY
	{1, 0, 2}, // YXZ
	{1, 2, 0}, // YZX
	{2, 0, 1}, // ZXY
	{2, 1, 0}, // ZYX
}

// EulerToQuat converts radians to a unit quaternion. Inverse of QuatToEuler.
func EulerToQuat(v mgl64.Vec3, order EulerOrder) mgl64.Quat {
	ax := orderAxes[order]
	q := axisQuats[ax[2]](v[ax[2]])
	q = q.Mul(axisQuats[ax[1]](v[ax[1]]))
	q = q.Mul(axisQuats[ax[0]](v[ax[0]]))
	return q.Normalize()
}

func clampAsin(v float64) float64 {
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	return math.Asin(v)
}

// QuatToEuler decomposes a unit quaternion into radians for the given
// application order. At the gimbal singularity the first-applied angle
// absorbs the freedom and the last-applied one goes to zero.
func QuatToEuler(q mgl64.Quat, order EulerOrder) (e mgl64.Vec3) {
	x, y, z, w := q.X(), q.Y(), q.Z(), q.W

	m00 := 1 - 2*(y*y+z*z)
	m01 := 2 * (x*y - w*z)
	m02 := 2 * (x*z + w*y)
	m10 := 2 * (x*y + w*z)
	m11 := 1 - 2*(x*x+z*z)
	m12 := 2 * (y*z - w*x)
	m20 := 2 * (x*z - w*y)
	m21 := 2 * (y*z + w*x)
	m22 := 1 - 2*(x*x+y*y)

	switch order {
	case OrderXYZ:
		e[0] = math.Atan2(m21, m22)
		e[1] = clampAsin(-m20)
		e[2] = math.Atan2(m10, m00)
	case OrderXZY:
		e[0] = math.Atan2(-m12, m11)
		e[2] = clampAsin(m10)
		e[1] = math.Atan2(-m20, m00)
	case OrderYXZ:
		e[0] = clampAsin(m21)
		e[1] = math.Atan2(-m20, m22)
		e[2] = math.Atan2(-m01, m11)
	case OrderYZX:
		e[1] = math.Atan2(m02, m00)
		e[2] = clampAsin(-m01)
		e[0] = math.Atan2(m21, m11)
	case OrderZXY:
		e[0] = clampAsin(-m12)
		e[1] = math.Atan2(m02, m22)
		e[2] = math.Atan2(m10, m11)
	case OrderZYX:
		e[2] = math.Atan2(-m01, m00)
		e[1] = clampAsin(m02)
		e[0] = math.Atan2(-m12, m22)
	}
	return e
}

// QuatFromQAngle builds a quaternion from a Source engine angle vector
// {pitch yaw roll} in degrees. QAngle are Pitch (around Y), Yaw (around Z),
// Roll (around X), applied roll first.
// https://github.com/ValveSoftware/source-sdk-2013/blob/a62efecf624923d3bacc67b8ee4b7f8a9855abfd/src/public/vphysics_interface.h#L26
func QuatFromQAngle(ang mgl64.Vec3) mgl64.Quat {
	pitch, yaw, roll := mgl64.DegToRad(ang[0]), mgl64.DegToRad(ang[1]), mgl64.DegToRad(ang[2])
	return EulerToQuat(mgl64.Vec3{roll, pitch, yaw}, OrderXYZ)
}

// QAngleFromQuat is the inverse of QuatFromQAngle, result in degrees.
func QAngleFromQuat(q mgl64.Quat) mgl64.Vec3 {
	e := QuatToEuler(q, OrderXYZ)
	return mgl64.Vec3{mgl64.RadToDeg(e[1]), mgl64.RadToDeg(e[2]), mgl64.RadToDeg(e[0])}
}

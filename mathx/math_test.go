package mathx

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

const eps = 1e-9

var allOrders = []EulerOrder{OrderXYZ, OrderXZY, OrderYXZ, OrderYZX, OrderZXY, OrderZYX}

func quatsEqual(a, b mgl64.Quat, eps float64) bool {
	return 1-math.Abs(a.Dot(b)) < eps
}

func TestEulerToQuatSingleAxis(t *testing.T) {
	// A rotation about one axis must come out the same regardless of order.
	angle := math.Pi / 3
	for _, order := range allOrders {
		for axis := 0; axis < 3; axis++ {
			var v mgl64.Vec3
			v[axis] = angle
			got := EulerToQuat(v, order)
			want := axisQuats[axis](angle)
			if !quatsEqual(got, want, eps) {
				t.Errorf("EulerToQuat(%v, %v) = %v; expected %v", v, order, got, want)
			}
		}
	}
}

var eulerTests = []mgl64.Vec3{
	{0, 0, 0},
	{0.3, 0, 0},
	{0, -0.7, 0},
	{0, 0, 1.2},
	{0.3, 0.5, -0.4},
	{-1.2, 0.9, 2.6},
	{3.0, -0.2, 0.1},
	{0.1, 1.5, -2.9},
}

func TestEulerQuatRoundTrip(t *testing.T) {
	for _, order := range allOrders {
		for _, v := range eulerTests {
			q := EulerToQuat(v, order)
			e := QuatToEuler(q, order)
			q2 := EulerToQuat(e, order)
			if !quatsEqual(q, q2, eps) {
				t.Errorf("order %v angles %v: recomposed %v does not match %v (euler %v)",
					order, v, q2, q, e)
			}
		}
	}
}

func TestQuatToEulerGimbal(t *testing.T) {
	// Mid-axis at +-90 degrees. The decomposition must still recompose to the
	// same orientation.
	for _, order := range allOrders {
		ax := orderAxes[order]
		for _, sign := range []float64{1, -1} {
			var v mgl64.Vec3
			v[ax[0]] = 0.4
			v[ax[1]] = sign * math.Pi / 2
			v[ax[2]] = -0.8
			q := EulerToQuat(v, order)
			q2 := EulerToQuat(QuatToEuler(q, order), order)
			if !quatsEqual(q, q2, 1e-6) {
				t.Errorf("order %v gimbal %v: recomposed %v does not match %v", order, v, q2, q)
			}
		}
	}
}

func TestQAngleAxes(t *testing.T) {
	tests := []struct {
		ang  mgl64.Vec3
		want mgl64.Quat
	}{
		{mgl64.Vec3{90, 0, 0}, quatAboutY(math.Pi / 2)}, // pitch
		{mgl64.Vec3{0, 90, 0}, quatAboutZ(math.Pi / 2)}, // yaw
		{mgl64.Vec3{0, 0, 90}, quatAboutX(math.Pi / 2)}, // roll
	}
	for _, test := range tests {
		got := QuatFromQAngle(test.ang)
		if !quatsEqual(got, test.want, eps) {
			t.Errorf("QuatFromQAngle(%v) = %v; expected %v", test.ang, got, test.want)
		}
	}
}

func TestQAngleRoundTrip(t *testing.T) {
	angles := []mgl64.Vec3{
		{0, 0, 0},
		{30, 0, 0},
		{0, 45, 0},
		{0, 0, -60},
		{10, 20, 30},
		{-80, 170, 15},
		{45, -90, 120},
	}
	for _, ang := range angles {
		q := QuatFromQAngle(ang)
		back := QAngleFromQuat(q)
		q2 := QuatFromQAngle(back)
		if !quatsEqual(q, q2, eps) {
			t.Errorf("QAngle %v -> %v changes orientation", ang, back)
		}
	}
}

func TestTransformMul(t *testing.T) {
	// Parent at (0,0,10) turned 90 degrees about Z carries a child offset
	// (1,0,0) to world (0,1,10).
	parent := NewTransform(mgl64.Vec3{0, 0, 10}, quatAboutZ(math.Pi/2))
	child := NewTransform(mgl64.Vec3{1, 0, 0}, mgl64.QuatIdent())
	world := parent.Mul(child)
	want := mgl64.Vec3{0, 1, 10}
	if !world.Pos.ApproxEqualThreshold(want, eps) {
		t.Errorf("child world position %v; expected %v", world.Pos, want)
	}
}

func TestTransformInv(t *testing.T) {
	tr := NewTransform(mgl64.Vec3{3, -2, 7}, EulerToQuat(mgl64.Vec3{0.3, 1.1, -0.6}, OrderZXY))
	ident := tr.Mul(tr.Inv())
	if !ident.ApproxEqual(TransformIdent(), eps) {
		t.Errorf("t * t^-1 = %v; expected identity", ident)
	}
	back := tr.Inv().Mul(tr)
	if !back.ApproxEqual(TransformIdent(), eps) {
		t.Errorf("t^-1 * t = %v; expected identity", back)
	}
}

func TestApproxEqualQuatSign(t *testing.T) {
	q := EulerToQuat(mgl64.Vec3{0.5, 0.2, -1.0}, OrderXYZ)
	neg := mgl64.Quat{W: -q.W, V: q.V.Mul(-1)}
	a := NewTransform(mgl64.Vec3{1, 2, 3}, q)
	b := NewTransform(mgl64.Vec3{1, 2, 3}, neg)
	if !a.ApproxEqual(b, eps) {
		t.Errorf("q and -q compared unequal")
	}
}

func TestParseEulerOrder(t *testing.T) {
	for i, name := range orderNames {
		order, err := ParseEulerOrder(name)
		if err != nil || order != EulerOrder(i) {
			t.Errorf("ParseEulerOrder(%q) = %v, %v", name, order, err)
		}
	}
	if _, err := ParseEulerOrder("XYX"); err == nil {
		t.Errorf("ParseEulerOrder accepted a repeated axis order")
	}
}

package flexbridge

import (
	"errors"
	"testing"
)

func TestParseEquations(t *testing.T) {
	const text = `
// eyebrow rig
right_lowerer = brow_down_R
left_lowerer = 0.5 * brow_down_L
smile = grin * 2 + 0.1
frown = mouth_down - 0.25
`
	eqs, err := ParseEquations([]byte(text), "flex.eqn")
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		flex, shape   string
		scale, offset float64
	}{
		{"right_lowerer", "brow_down_R", 1, 0},
		{"left_lowerer", "brow_down_L", 0.5, 0},
		{"smile", "grin", 2, 0.1},
		{"frown", "mouth_down", 1, -0.25},
	}
	if len(eqs) != len(tests) {
		t.Fatalf("parsed %d equations, expected %d", len(eqs), len(tests))
	}
	for _, test := range tests {
		eq, ok := eqs[test.flex]
		if !ok {
			t.Errorf("flex %q missing", test.flex)
			continue
		}
		if eq.ShapeKey != test.shape || eq.Scale != test.scale || eq.Offset != test.offset {
			t.Errorf("flex %q = %+v; expected shape=%q scale=%v offset=%v",
				test.flex, eq, test.shape, test.scale, test.offset)
		}
	}
}

var badEquations = []struct {
	name string
	in   string
}{
	{"two shapekeys", "smile = a * b"},
	{"constant only", "smile = 0.5"},
	{"no rhs", "smile ="},
	{"zero scale", "smile = 0 * grin"},
	{"duplicate flex", "smile = a\nsmile = b"},
	{"nonlinear", "smile = grin * grin"},
	{"trailing garbage", "smile = grin + 0.1 0.2"},
}

func TestParseEquationErrors(t *testing.T) {
	for _, test := range badEquations {
		_, err := ParseEquations([]byte(test.in), test.name)
		if !errors.Is(err, ErrFlexEquationUnsupported) {
			t.Errorf("%s: error = %v; expected ErrFlexEquationUnsupported", test.name, err)
		}
	}
}

func TestIdentityFallback(t *testing.T) {
	eqs := map[string]Equation{"smile": {Flex: "smile", ShapeKey: "grin", Scale: 2}}
	if eq := equationFor(eqs, "smile"); eq.ShapeKey != "grin" {
		t.Errorf("listed flex resolved to %+v", eq)
	}
	eq := equationFor(eqs, "blink")
	if eq.ShapeKey != "blink" || eq.Scale != 1 || eq.Offset != 0 {
		t.Errorf("identity fallback = %+v", eq)
	}
}

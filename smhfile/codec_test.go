package smhfile

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

const sampleV4 = `{
    "Map": "gm_construct",
    "Entities": [
        {
            "Model": "models/props_c17/oildrum001.mdl",
            "Properties": {
                "Model": "oildrum001",
                "Name": "drum",
                "Class": "prop_physics"
            },
            "Frames": [
                {
                    "Position": 0,
                    "EntityData": {
                        "physbones": {
                            "0": {"Pos": "[0 0 36]", "Ang": "{0 90 0}", "Moveable": false}
                        },
                        "bones": {
                            "1": {"Pos": "[1 2 3]", "Ang": "{0 0 0}", "Scale": "[1 1 1]"}
                        },
                        "color": {"Color": {"r": 255, "g": 0, "b": 0, "a": 255}}
                    },
                    "EaseIn": {"physbones": 0.5, "bones": 0, "color": 0},
                    "EaseOut": {"physbones": 0, "bones": 0, "color": 0}
                },
                {
                    "Position": 10,
                    "EntityData": {
                        "physbones": {
                            "0": {"Pos": "[10 0 36]", "Ang": "{0 90 0}", "Moveable": true},
                            "1": {"Pos": "[10 0 52]", "Ang": "{0 90 0}", "LocalPos": "[0 0 16]", "LocalAng": "{0 0 0}", "Moveable": false}
                        }
                    },
                    "EaseIn": {"physbones": 0},
                    "EaseOut": {"physbones": 0}
                }
            ]
        }
    ]
}`

const sampleV3 = `{
    "Map": "gm_flatgrass",
    "Entities": [
        {
            "Model": "models/alyx.mdl",
            "Properties": {
                "Model": "alyx",
                "Name": "alyx",
                "Class": "prop_ragdoll",
                "Timelines": 2,
                "TimelineMods": {"1": {"KeyColor": {"r": 0, "g": 200, "b": 0}}}
            },
            "Frames": [
                {
                    "Position": 5,
                    "EntityData": {
                        "physbones": {"0": {"Pos": "[0 0 40]", "Ang": "{0 0 0}", "Moveable": false}}
                    },
                    "EaseIn": 0.25,
                    "EaseOut": 0.75,
                    "Modifier": "physbones"
                }
            ]
        }
    ]
}`

const sampleV2 = `{
    "Map": "gm_construct",
    "Entities": [
        {
            "Model": "barrel",
            "Frames": [
                {
                    "Position": 0,
                    "EntityData": {
                        "physbones": {"0": {"Pos": "[5 5 5]", "Ang": "{0 0 0}"}}
                    },
                    "EaseIn": 0,
                    "EaseOut": 0
                }
            ]
        }
    ]
}`

func TestDecodeV4(t *testing.T) {
	f, err := Decode([]byte(sampleV4), "sample.txt")
	if err != nil {
		t.Fatal(err)
	}
	if f.Version != Version4 {
		t.Errorf("version = %v; expected %v", f.Version, Version4)
	}
	if f.Map != "gm_construct" {
		t.Errorf("map = %q", f.Map)
	}
	e := f.FindEntity("drum")
	if e == nil {
		t.Fatalf("entity drum not found in %v", f.EntityNames())
	}
	if len(e.Frames) != 2 {
		t.Fatalf("frames = %d", len(e.Frames))
	}

	fr := e.Frames[0]
	pb := fr.PhysBones[0]
	if pb == nil {
		t.Fatal("physbone 0 missing")
	}
	if pb.Pos != (mgl64.Vec3{0, 0, 36}) || pb.Ang != (mgl64.Vec3{0, 90, 0}) {
		t.Errorf("physbone 0 = %v %v", pb.Pos, pb.Ang)
	}
	b := fr.Bones[1]
	if b == nil || b.Scale == nil || *b.Scale != (mgl64.Vec3{1, 1, 1}) {
		t.Errorf("bone 1 = %+v", b)
	}
	if _, ok := fr.Modifiers["color"]; !ok {
		t.Errorf("color modifier track lost")
	}
	if fr.EaseIn["physbones"] != 0.5 {
		t.Errorf("EaseIn physbones = %v", fr.EaseIn["physbones"])
	}

	parented := e.Frames[1].PhysBones[1]
	if parented.LocalPos == nil || *parented.LocalPos != (mgl64.Vec3{0, 0, 16}) {
		t.Errorf("parented physbone LocalPos = %v", parented.LocalPos)
	}
}

func TestDecodeV3(t *testing.T) {
	f, err := Decode([]byte(sampleV3), "sample.txt")
	if err != nil {
		t.Fatal(err)
	}
	if f.Version != Version3 {
		t.Fatalf("version = %v; expected %v", f.Version, Version3)
	}
	e := f.Entities[0]
	if e.Properties.Timelines != 2 {
		t.Errorf("timelines = %d", e.Properties.Timelines)
	}
	if len(e.Properties.TimelineMods) == 0 {
		t.Errorf("timeline mods lost")
	}
	fr := e.Frames[0]
	if fr.EaseInScalar != 0.25 || fr.EaseOutScalar != 0.75 {
		t.Errorf("scalar ease = %v %v", fr.EaseInScalar, fr.EaseOutScalar)
	}
	if fr.Modifier != "physbones" {
		t.Errorf("modifier = %q", fr.Modifier)
	}
}

func TestDecodeV2(t *testing.T) {
	f, err := Decode([]byte(sampleV2), "sample.txt")
	if err != nil {
		t.Fatal(err)
	}
	if f.Version != Version2 {
		t.Fatalf("version = %v; expected %v", f.Version, Version2)
	}
	e := f.FindEntity("barrel")
	if e == nil {
		t.Fatalf("v2 entity not matchable by model name")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, sample := range []string{sampleV2, sampleV3, sampleV4} {
		f, err := Decode([]byte(sample), "in")
		if err != nil {
			t.Fatal(err)
		}
		data, err := Encode(f)
		if err != nil {
			t.Fatal(err)
		}
		f2, err := Decode(data, "out")
		if err != nil {
			t.Fatalf("re-decode: %v\n%s", err, data)
		}
		if f2.Version != f.Version {
			t.Errorf("version changed %v -> %v", f.Version, f2.Version)
		}
		if len(f2.Entities) != len(f.Entities) {
			t.Fatalf("entity count changed")
		}
		for i, e := range f.Entities {
			e2 := f2.Entities[i]
			if e2.Name() != e.Name() || len(e2.Frames) != len(e.Frames) {
				t.Fatalf("entity %d shape changed", i)
			}
			for j, fr := range e.Frames {
				fr2 := e2.Frames[j]
				if fr2.Position != fr.Position ||
					len(fr2.Bones) != len(fr.Bones) ||
					len(fr2.PhysBones) != len(fr.PhysBones) ||
					len(fr2.Modifiers) != len(fr.Modifiers) {
					t.Errorf("entity %d frame %d changed", i, j)
				}
			}
		}
	}
}

var badFiles = []struct {
	name string
	in   string
	want error
}{
	{"not json", "hello", ErrCorruptFile},
	{"no entities", `{"Map": "x"}`, ErrCorruptFile},
	{"bad bone index", `{"Entities": [{"Model": "m", "Frames": [
		{"Position": 0, "EntityData": {"bones": {"x": {"Pos": "[0 0 0]", "Ang": "{0 0 0}"}}}}]}]}`, ErrCorruptFile},
	{"half local pair", `{"Entities": [{"Model": "m", "Frames": [
		{"Position": 0, "EntityData": {"physbones": {"0": {"Pos": "[0 0 0]", "Ang": "{0 0 0}", "LocalPos": "[0 0 0]"}}}}]}]}`, ErrCorruptFile},
	{"mixed versions", `{"Entities": [
		{"Model": "a", "Frames": []},
		{"Model": "b", "Properties": {"Name": "b"}, "Frames": []}]}`, ErrUnsupportedVersion},
}

func TestDecodeErrors(t *testing.T) {
	for _, test := range badFiles {
		_, err := Decode([]byte(test.in), test.name)
		if !errors.Is(err, test.want) {
			t.Errorf("%s: error = %v; expected %v", test.name, err, test.want)
		}
	}
}

func TestEncodeUnknownVersion(t *testing.T) {
	_, err := Encode(&File{Version: 7})
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("error = %v", err)
	}
}

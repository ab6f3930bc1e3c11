package host

import (
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"github.com/vlazed/smh_bridge/mathx"
)

// Action is a keyframed animation container. Bone channels store samples in
// the bone's native rotation representation; the quaternion pipeline only
// ever touches them through ReadBone/WriteBone, which convert at this
// boundary and nowhere else.
type Action struct {
	Name       string
	FrameStart int
	FrameEnd   int

	arm      *Armature
	channels map[string]*BoneChannel
	shapes   map[string]*ShapeChannel
}

type BoneChannel struct {
	Mode   RotationMode
	Frames []int // ascending
	Loc    []mgl64.Vec3
	// rotation components per sample: w,x,y,z for quaternion mode,
	// radians in axis order x,y,z for euler modes
	Rot [][]float64
}

type ShapeChannel struct {
	Frames []int
	Values []float64
}

func (act *Action) Armature() *Armature { return act.arm }

func (act *Action) Channel(bone string) *BoneChannel {
	return act.channels[bone]
}

func (act *Action) ShapeChannel(key string) *ShapeChannel {
	return act.shapes[key]
}

func (act *Action) Bones() []string {
	names := make([]string, 0, len(act.channels))
	for name := range act.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WriteBone records a pose sample for one bone at one frame, converting the
// orientation into the bone's configured rotation mode.
func (act *Action) WriteBone(bone string, frame int, t mathx.Transform) error {
	b := act.arm.Bone(bone)
	if b == nil {
		return errors.Errorf("armature %q has no bone %q", act.arm.Name, bone)
	}
	ch := act.channels[bone]
	if ch == nil {
		if act.channels == nil {
			act.channels = make(map[string]*BoneChannel)
		}
		ch = &BoneChannel{Mode: b.RotationMode}
		act.channels[bone] = ch
	}

	var rot []float64
	if order, euler := ch.Mode.EulerOrder(); euler {
		e := mathx.QuatToEuler(t.Rot, order)
		rot = []float64{e[0], e[1], e[2]}
	} else {
		rot = []float64{t.Rot.W, t.Rot.X(), t.Rot.Y(), t.Rot.Z()}
	}

	i := sort.SearchInts(ch.Frames, frame)
	if i < len(ch.Frames) && ch.Frames[i] == frame {
		ch.Loc[i] = t.Pos
		ch.Rot[i] = rot
		return nil
	}
	ch.Frames = append(ch.Frames, 0)
	copy(ch.Frames[i+1:], ch.Frames[i:])
	ch.Frames[i] = frame
	ch.Loc = append(ch.Loc, mgl64.Vec3{})
	copy(ch.Loc[i+1:], ch.Loc[i:])
	ch.Loc[i] = t.Pos
	ch.Rot = append(ch.Rot, nil)
	copy(ch.Rot[i+1:], ch.Rot[i:])
	ch.Rot[i] = rot
	return nil
}

// ReadBone samples the bone channel at a frame, linearly interpolating
// between keyframes componentwise the way host f-curves do, and converts
// back to a quaternion transform. An unkeyed bone reads as identity with
// ok=false.
func (act *Action) ReadBone(bone string, frame int) (mathx.Transform, bool) {
	ch := act.channels[bone]
	if ch == nil || len(ch.Frames) == 0 {
		return mathx.TransformIdent(), false
	}

	i0, i1, t := bracket(ch.Frames, frame)
	pos := ch.Loc[i0].Mul(1 - t).Add(ch.Loc[i1].Mul(t))
	rot := lerpComponents(ch.Rot[i0], ch.Rot[i1], t)

	var q mgl64.Quat
	if order, euler := ch.Mode.EulerOrder(); euler {
		q = mathx.EulerToQuat(mgl64.Vec3{rot[0], rot[1], rot[2]}, order)
	} else {
		q = mgl64.Quat{W: rot[0], V: mgl64.Vec3{rot[1], rot[2], rot[3]}}.Normalize()
	}
	return mathx.Transform{Pos: pos, Rot: q}, true
}

// WriteShapeKey records a shapekey value sample.
func (act *Action) WriteShapeKey(key string, frame int, value float64) {
	if act.shapes == nil {
		act.shapes = make(map[string]*ShapeChannel)
	}
	ch := act.shapes[key]
	if ch == nil {
		ch = &ShapeChannel{}
		act.shapes[key] = ch
	}
	i := sort.SearchInts(ch.Frames, frame)
	if i < len(ch.Frames) && ch.Frames[i] == frame {
		ch.Values[i] = value
		return
	}
	ch.Frames = append(ch.Frames, 0)
	copy(ch.Frames[i+1:], ch.Frames[i:])
	ch.Frames[i] = frame
	ch.Values = append(ch.Values, 0)
	copy(ch.Values[i+1:], ch.Values[i:])
	ch.Values[i] = value
}

// ReadShapeKey samples a shapekey channel with linear interpolation.
func (act *Action) ReadShapeKey(key string, frame int) (float64, bool) {
	ch := act.shapes[key]
	if ch == nil || len(ch.Frames) == 0 {
		return 0, false
	}
	i0, i1, t := bracket(ch.Frames, frame)
	return ch.Values[i0]*(1-t) + ch.Values[i1]*t, true
}

// bracket finds the two keyframes around frame and the interpolation factor
// between them; clamps outside the keyed range.
func bracket(frames []int, frame int) (int, int, float64) {
	i := sort.SearchInts(frames, frame)
	switch {
	case i == 0:
		return 0, 0, 0
	case i == len(frames):
		return len(frames) - 1, len(frames) - 1, 0
	case frames[i] == frame:
		return i, i, 0
	}
	span := frames[i] - frames[i-1]
	return i - 1, i, float64(frame-frames[i-1]) / float64(span)
}

func lerpComponents(a, b []float64, t float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i]*(1-t) + b[i]*t
	}
	return out
}

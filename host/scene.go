package host

import (
	"encoding/json"
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
)

// Scene documents travel as JSON, dumped by a short script on the host side
// and read back the same way. Quaternions serialize as [w x y z].

type jsonScene struct {
	Armatures []*jsonArmature `json:"armatures"`
}

type jsonArmature struct {
	Name         string        `json:"name"`
	ImportName   string        `json:"import_name,omitempty"`
	Bones        []*jsonBone   `json:"bones"`
	ShapeKeys    []string      `json:"shapekeys,omitempty"`
	Actions      []*jsonAction `json:"actions,omitempty"`
	ActiveAction string        `json:"active_action,omitempty"`
}

type jsonBone struct {
	Name         string     `json:"name"`
	Parent       string     `json:"parent,omitempty"`
	RestPos      [3]float64 `json:"rest_pos"`
	RestRot      [4]float64 `json:"rest_rot"`
	RotationMode string     `json:"rotation_mode,omitempty"`
}

type jsonAction struct {
	Name       string                       `json:"name"`
	FrameStart int                          `json:"frame_start"`
	FrameEnd   int                          `json:"frame_end"`
	Channels   map[string]*jsonBoneChannel  `json:"channels,omitempty"`
	Shapes     map[string]*jsonShapeChannel `json:"shape_channels,omitempty"`
}

type jsonBoneChannel struct {
	Frames   []int        `json:"frames"`
	Location [][3]float64 `json:"location"`
	Rotation [][]float64  `json:"rotation"`
}

type jsonShapeChannel struct {
	Frames []int     `json:"frames"`
	Values []float64 `json:"values"`
}

func LoadScene(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read scene %s", path)
	}
	var js jsonScene
	if err := json.Unmarshal(data, &js); err != nil {
		return nil, errors.Wrapf(err, "parse scene %s", path)
	}

	s := &Scene{}
	for _, ja := range js.Armatures {
		a := &Armature{
			Name:       ja.Name,
			ImportName: ja.ImportName,
			ShapeKeys:  ja.ShapeKeys,
			active:     ja.ActiveAction,
		}
		for _, jb := range ja.Bones {
			a.Bones = append(a.Bones, &Bone{
				Name:         jb.Name,
				Parent:       jb.Parent,
				RestPos:      mgl64.Vec3(jb.RestPos),
				RestRot:      mgl64.Quat{W: jb.RestRot[0], V: mgl64.Vec3{jb.RestRot[1], jb.RestRot[2], jb.RestRot[3]}},
				RotationMode: RotationMode(jb.RotationMode),
			})
		}
		for _, jact := range ja.Actions {
			act := &Action{
				Name:       jact.Name,
				FrameStart: jact.FrameStart,
				FrameEnd:   jact.FrameEnd,
			}
			if len(jact.Channels) > 0 {
				act.channels = make(map[string]*BoneChannel, len(jact.Channels))
			}
			for bone, jch := range jact.Channels {
				ch := &BoneChannel{Frames: jch.Frames, Rot: jch.Rotation}
				for _, loc := range jch.Location {
					ch.Loc = append(ch.Loc, mgl64.Vec3(loc))
				}
				if len(ch.Frames) != len(ch.Loc) || len(ch.Frames) != len(ch.Rot) {
					return nil, errors.Errorf("scene %s: armature %q action %q bone %q: channel length mismatch",
						path, ja.Name, jact.Name, bone)
				}
				act.channels[bone] = ch
			}
			if len(jact.Shapes) > 0 {
				act.shapes = make(map[string]*ShapeChannel, len(jact.Shapes))
			}
			for key, jch := range jact.Shapes {
				if len(jch.Frames) != len(jch.Values) {
					return nil, errors.Errorf("scene %s: armature %q action %q shapekey %q: channel length mismatch",
						path, ja.Name, jact.Name, key)
				}
				act.shapes[key] = &ShapeChannel{Frames: jch.Frames, Values: jch.Values}
			}
			a.Actions = append(a.Actions, act)
		}
		if err := a.Init(); err != nil {
			return nil, errors.Wrapf(err, "scene %s", path)
		}
		// channel modes follow the owning bone
		for _, act := range a.Actions {
			for bone, ch := range act.channels {
				b := a.Bone(bone)
				if b == nil {
					return nil, errors.Errorf("scene %s: armature %q action %q keys unknown bone %q",
						path, ja.Name, act.Name, bone)
				}
				ch.Mode = b.RotationMode
				want := 4
				if ch.Mode != RotationQuaternion {
					want = 3
				}
				for _, rot := range ch.Rot {
					if len(rot) != want {
						return nil, errors.Errorf("scene %s: armature %q bone %q: rotation sample has %d components, mode %s wants %d",
							path, ja.Name, bone, len(rot), ch.Mode, want)
					}
				}
			}
		}
		s.Armatures = append(s.Armatures, a)
	}
	return s, nil
}

func (s *Scene) Save(path string) error {
	js := jsonScene{}
	for _, a := range s.Armatures {
		ja := &jsonArmature{
			Name:         a.Name,
			ImportName:   a.ImportName,
			ShapeKeys:    a.ShapeKeys,
			ActiveAction: a.active,
		}
		for _, b := range a.Bones {
			ja.Bones = append(ja.Bones, &jsonBone{
				Name:         b.Name,
				Parent:       b.Parent,
				RestPos:      b.RestPos,
				RestRot:      [4]float64{b.RestRot.W, b.RestRot.X(), b.RestRot.Y(), b.RestRot.Z()},
				RotationMode: string(b.RotationMode),
			})
		}
		for _, act := range a.Actions {
			jact := &jsonAction{
				Name:       act.Name,
				FrameStart: act.FrameStart,
				FrameEnd:   act.FrameEnd,
			}
			if len(act.channels) > 0 {
				jact.Channels = make(map[string]*jsonBoneChannel, len(act.channels))
			}
			for bone, ch := range act.channels {
				jch := &jsonBoneChannel{Frames: ch.Frames, Rotation: ch.Rot}
				for _, loc := range ch.Loc {
					jch.Location = append(jch.Location, loc)
				}
				jact.Channels[bone] = jch
			}
			if len(act.shapes) > 0 {
				jact.Shapes = make(map[string]*jsonShapeChannel, len(act.shapes))
			}
			for key, ch := range act.shapes {
				jact.Shapes[key] = &jsonShapeChannel{Frames: ch.Frames, Values: ch.Values}
			}
			ja.Actions = append(ja.Actions, jact)
		}
		js.Armatures = append(js.Armatures, ja)
	}

	data, err := json.MarshalIndent(&js, "", "    ")
	if err != nil {
		return errors.Wrap(err, "marshal scene")
	}
	return errors.Wrapf(os.WriteFile(path, data, 0644), "write scene %s", path)
}

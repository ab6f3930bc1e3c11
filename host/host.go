// Package host models the animation authoring environment the retargeting
// engine reads from and writes to: armatures with rest skeletons, actions
// with per-bone pose channels, per-bone rotation modes and shapekey tracks.
// The engine only ever sees the small capability surface here, never a
// concrete host process; Scene is a self-contained in-memory document with
// a JSON form so the command line tools and tests run standalone.
package host

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"github.com/vlazed/smh_bridge/mathx"
)

// RotationMode mirrors the host's per-bone rotation channel type. Euler
// modes are named by application order.
type RotationMode string

const (
	RotationQuaternion RotationMode = "QUATERNION"
	RotationXYZ        RotationMode = "XYZ"
	RotationXZY        RotationMode = "XZY"
	RotationYXZ        RotationMode = "YXZ"
	RotationYZX        RotationMode = "YZX"
	RotationZXY        RotationMode = "ZXY"
	RotationZYX        RotationMode = "ZYX"
)

func (m RotationMode) EulerOrder() (mathx.EulerOrder, bool) {
	if m == RotationQuaternion {
		return 0, false
	}
	order, err := mathx.ParseEulerOrder(string(m))
	if err != nil {
		return 0, false
	}
	return order, true
}

func (m RotationMode) valid() bool {
	if m == RotationQuaternion {
		return true
	}
	_, ok := m.EulerOrder()
	return ok
}

type Bone struct {
	Name         string
	Parent       string // empty for roots
	RestPos      mgl64.Vec3 // parent-local rest translation
	RestRot      mgl64.Quat // parent-local rest orientation
	RotationMode RotationMode
}

func (b *Bone) RestLocal() mathx.Transform {
	return mathx.NewTransform(b.RestPos, b.RestRot)
}

type Armature struct {
	Name       string
	ImportName string
	Bones      []*Bone // parent before child
	ShapeKeys  []string
	Actions    []*Action

	active    string
	byName    map[string]*Bone
	restWorld map[string]mathx.Transform
}

// Init validates the skeleton and caches rest world transforms. Must be
// called once after the bone list is populated; LoadScene does it for every
// armature it reads.
func (a *Armature) Init() error {
	a.byName = make(map[string]*Bone, len(a.Bones))
	a.restWorld = make(map[string]mathx.Transform, len(a.Bones))
	for _, b := range a.Bones {
		if _, ok := a.byName[b.Name]; ok {
			return errors.Errorf("armature %q: duplicate bone %q", a.Name, b.Name)
		}
		if b.RotationMode == "" {
			b.RotationMode = RotationQuaternion
		}
		if !b.RotationMode.valid() {
			return errors.Errorf("armature %q: bone %q: bad rotation mode %q", a.Name, b.Name, b.RotationMode)
		}
		if b.Parent != "" {
			if _, ok := a.restWorld[b.Parent]; !ok {
				return errors.Errorf("armature %q: bone %q listed before its parent %q", a.Name, b.Name, b.Parent)
			}
		}
		a.byName[b.Name] = b
		world := b.RestLocal()
		if b.Parent != "" {
			world = a.restWorld[b.Parent].Mul(world)
		}
		a.restWorld[b.Name] = world
	}
	for _, act := range a.Actions {
		act.arm = a
	}
	return nil
}

func (a *Armature) Bone(name string) *Bone {
	return a.byName[name]
}

// RestWorld is the bone's rest transform in armature space.
func (a *Armature) RestWorld(name string) (mathx.Transform, bool) {
	t, ok := a.restWorld[name]
	return t, ok
}

// ActiveAction is the action a future export samples, nil when unset.
func (a *Armature) ActiveAction() *Action {
	return a.FindAction(a.active)
}

func (a *Armature) SetActiveAction(name string) {
	a.active = name
}

func (a *Armature) FindAction(name string) *Action {
	if name == "" {
		return nil
	}
	for _, act := range a.Actions {
		if act.Name == name {
			return act
		}
	}
	return nil
}

// NewAction creates an empty action bound to the armature and makes it
// active, the way a host import operator would.
func (a *Armature) NewAction(name string) *Action {
	act := &Action{Name: name, arm: a}
	a.Actions = append(a.Actions, act)
	a.active = name
	return act
}

// PoseWorld composes pose-space transforms for every bone out of per-bone
// basis transforms. The basis is the host notion of a pose channel value:
// bone-local displacement from rest. Composition follows the host rule
// pose = parentPose * inv(parentRestWorld) * restWorld * basis.
func (a *Armature) PoseWorld(basis func(bone string) mathx.Transform) map[string]mathx.Transform {
	world := make(map[string]mathx.Transform, len(a.Bones))
	for _, b := range a.Bones {
		t := a.restWorld[b.Name].Mul(basis(b.Name))
		if b.Parent != "" {
			t = world[b.Parent].Mul(a.restWorld[b.Parent].Inv()).Mul(t)
		}
		world[b.Name] = t
	}
	return world
}

// BasisFromWorld inverts PoseWorld for a single bone: given the wanted
// pose-space transform and the already-posed parent, recover the channel
// basis value.
func (a *Armature) BasisFromWorld(bone string, world, parentPose mathx.Transform) (mathx.Transform, error) {
	b := a.byName[bone]
	if b == nil {
		return mathx.TransformIdent(), errors.Errorf("armature %q has no bone %q", a.Name, bone)
	}
	t := world
	if b.Parent != "" {
		t = a.restWorld[b.Parent].Mul(parentPose.Inv()).Mul(world)
	}
	return a.restWorld[bone].Inv().Mul(t), nil
}

// Scene is the in-memory host document. One import or export operation owns
// it for the full duration; nothing here is safe for concurrent mutation.
type Scene struct {
	Armatures []*Armature
}

func (s *Scene) Armature(name string) *Armature {
	for _, a := range s.Armatures {
		if a.Name == name {
			return a
		}
	}
	return nil
}

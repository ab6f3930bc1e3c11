// Package retarget converts between SMH physics-object animation and host
// bone animation.
//
// The two sides disagree in a fundamental way: SMH keys the world transform
// of each physics object, the host keys parent-local bone channels. The
// bridge between them is the per-bone calibration offset derived by
// refpose; export composes it away, import composes it back in. Everything
// in between stays in quaternions.
package retarget

import (
	"log"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"github.com/vlazed/smh_bridge/host"
	"github.com/vlazed/smh_bridge/mathx"
	"github.com/vlazed/smh_bridge/refpose"
	"github.com/vlazed/smh_bridge/smhfile"
)

var ErrIncompleteMapping = errors.New("incomplete physics mapping")

// Config is the per-entity retargeting input: the name maps, the resolved
// calibration offsets and the sampling window. PosOffset/AngOffset are the
// user's global correction sliders, applied uniformly to the whole entity
// on export and unapplied on import.
type Config struct {
	BoneMap []string
	PhysMap []string
	Offsets *refpose.Offsets

	FrameStart int
	FrameEnd   int
	FrameStep  int

	PosOffset mgl64.Vec3
	AngOffset mgl64.Vec3 // QAngle degrees

	// When false, parented physics objects only contribute rotation on
	// import; SMH animations that stretch a ragdoll apart would otherwise
	// pull the armature's bones off their joints.
	ImportStretch bool
}

func (c *Config) globalOffset() mathx.Transform {
	return mathx.NewTransform(c.PosOffset, mathx.QuatFromQAngle(c.AngOffset))
}

func (c *Config) step() int {
	if c.FrameStep <= 0 {
		return 1
	}
	return c.FrameStep
}

var unitScale = mgl64.Vec3{1, 1, 1}

// ExportFrames samples the action over the configured frame range and
// produces SMH keyframes: world-space physics objects for every physics-map
// bone, parent-local channels for every bone-map bone.
func ExportFrames(arm *host.Armature, act *host.Action, cfg *Config) ([]*smhfile.Frame, error) {
	tree := NewPhysTree(arm, cfg.PhysMap)
	global := cfg.globalOffset()

	// fail before emitting anything rather than after half the frames
	if err := checkOffsets(arm, cfg); err != nil {
		return nil, err
	}

	frames := make([]*smhfile.Frame, 0, (cfg.FrameEnd-cfg.FrameStart)/cfg.step()+1)
	for frame := cfg.FrameStart; frame <= cfg.FrameEnd; frame += cfg.step() {
		world := arm.PoseWorld(func(bone string) mathx.Transform {
			t, _ := act.ReadBone(bone, frame)
			return t
		})

		fr := &smhfile.Frame{Position: frame}

		fr.Bones = make(map[int]*smhfile.BoneData, len(cfg.BoneMap))
		for i, name := range cfg.BoneMap {
			if arm.Bone(name) == nil {
				continue
			}
			basis, _ := act.ReadBone(name, frame)
			scale := unitScale
			fr.Bones[i] = &smhfile.BoneData{
				Pos:   basis.Pos,
				Ang:   mathx.QAngleFromQuat(basis.Rot),
				Scale: &scale,
			}
		}

		phys := make(map[int]mathx.Transform, len(cfg.PhysMap))
		fr.PhysBones = make(map[int]*smhfile.PhysBoneData, len(cfg.PhysMap))
		for i, name := range cfg.PhysMap {
			if arm.Bone(name) == nil {
				continue
			}
			offset, ok := cfg.Offsets.Offset(name)
			if !ok {
				return nil, errors.Wrapf(ErrIncompleteMapping,
					"armature %q: no reference offset for physics bone %q", arm.Name, name)
			}
			phys[i] = global.Mul(world[name].Mul(offset.Inv()))
			fr.PhysBones[i] = &smhfile.PhysBoneData{
				Pos: phys[i].Pos,
				Ang: mathx.QAngleFromQuat(phys[i].Rot),
			}
		}
		for i, name := range cfg.PhysMap {
			parent, ok := tree.Parent(name)
			if !ok {
				continue
			}
			if _, here := fr.PhysBones[i]; !here {
				continue
			}
			parentIdx, _ := tree.Index(parent)
			local := phys[parentIdx].Inv().Mul(phys[i])
			localAng := mathx.QAngleFromQuat(local.Rot)
			fr.PhysBones[i].LocalPos = &local.Pos
			fr.PhysBones[i].LocalAng = &localAng
		}

		frames = append(frames, fr)
	}
	return frames, nil
}

// ImportEntity writes an SMH entity's keyframes into a fresh action on the
// armature. Physics objects become bone channels through the calibration
// offset; nonphysical bones pass through as parent-local values.
func ImportEntity(arm *host.Armature, entity *smhfile.Entity, actionName string, cfg *Config) (*host.Action, error) {
	tree := NewPhysTree(arm, cfg.PhysMap)
	if err := checkOffsets(arm, cfg); err != nil {
		return nil, err
	}
	globalInv := cfg.globalOffset().Inv()

	act := arm.NewAction(actionName)

	// nonphysical bones first: physics import below re-evaluates the posed
	// parent chain, which must already hold these channels
	for _, fr := range entity.Frames {
		for i, name := range cfg.BoneMap {
			bd := fr.Bones[i]
			if bd == nil || arm.Bone(name) == nil || tree.IsPhys(name) {
				continue
			}
			basis := mathx.NewTransform(bd.Pos, mathx.QuatFromQAngle(bd.Ang))
			if err := act.WriteBone(name, fr.Position, basis); err != nil {
				return nil, err
			}
		}
	}

	for _, fr := range entity.Frames {
		if len(fr.PhysBones) == 0 {
			continue
		}
		if err := importPhysFrame(arm, act, tree, cfg, fr, globalInv); err != nil {
			return nil, errors.Wrapf(err, "frame %d", fr.Position)
		}
	}

	start, end, any := frameRange(entity)
	if any {
		act.FrameStart, act.FrameEnd = start, end
	}
	return act, nil
}

// importPhysFrame walks the skeleton in hierarchy order, splicing the
// calibrated world target of every keyed physics object into the pose
// chain and recovering the local basis each one implies.
func importPhysFrame(arm *host.Armature, act *host.Action, tree *PhysTree,
	cfg *Config, fr *smhfile.Frame, globalInv mathx.Transform) error {

	world := make(map[string]mathx.Transform, len(arm.Bones))
	for _, b := range arm.Bones {
		parentPose := mathx.TransformIdent()
		if b.Parent != "" {
			parentPose = world[b.Parent]
		}

		idx, isPhys := tree.Index(b.Name)
		pd := (*smhfile.PhysBoneData)(nil)
		if isPhys {
			pd = fr.PhysBones[idx]
		}
		if pd == nil {
			basis, _ := act.ReadBone(b.Name, fr.Position)
			rest, _ := arm.RestWorld(b.Name)
			t := rest.Mul(basis)
			if b.Parent != "" {
				parentRest, _ := arm.RestWorld(b.Parent)
				t = parentPose.Mul(parentRest.Inv()).Mul(t)
			}
			world[b.Name] = t
			continue
		}

		offset, _ := cfg.Offsets.Offset(b.Name)
		target := globalInv.Mul(mathx.NewTransform(pd.Pos, mathx.QuatFromQAngle(pd.Ang))).Mul(offset)
		basis, err := arm.BasisFromWorld(b.Name, target, parentPose)
		if err != nil {
			return err
		}
		world[b.Name] = target

		if _, parented := tree.Parent(b.Name); parented && !cfg.ImportStretch {
			basis.Pos = mgl64.Vec3{}
		}
		if err := act.WriteBone(b.Name, fr.Position, basis); err != nil {
			return err
		}
	}
	return nil
}

// checkOffsets reports any physics-map bone that exists on the armature but
// has no calibration offset. A missing offset would silently corrupt that
// bone's placement on every frame, so the whole entity fails instead.
func checkOffsets(arm *host.Armature, cfg *Config) error {
	for _, name := range cfg.PhysMap {
		if arm.Bone(name) == nil {
			log.Printf("[retarget] armature %q has no bone for physics map entry %q, skipping", arm.Name, name)
			continue
		}
		if _, ok := cfg.Offsets.Offset(name); !ok {
			return errors.Wrapf(ErrIncompleteMapping,
				"armature %q: no reference offset for physics bone %q", arm.Name, name)
		}
	}
	return nil
}

func frameRange(entity *smhfile.Entity) (start, end int, any bool) {
	for _, fr := range entity.Frames {
		if len(fr.Bones) == 0 && len(fr.PhysBones) == 0 && len(fr.Modifiers) == 0 {
			continue
		}
		if !any || fr.Position < start {
			start = fr.Position
		}
		if !any || fr.Position > end {
			end = fr.Position
		}
		any = true
	}
	return start, end, any
}

// Package refpose derives the constant calibration offsets between a
// ragdoll's physics objects and its bones.
//
// SMH records the transform of the physics object itself, whose geometric
// center rarely coincides with the bone origin. A reference file (a normal
// SMH save constrained to a single keyframe per entity) captures the
// physics objects at rest; composing each one against the bone's rest
// transform once removes that systematic bias from every later frame.
package refpose

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"

	"github.com/vlazed/smh_bridge/host"
	"github.com/vlazed/smh_bridge/mathx"
	"github.com/vlazed/smh_bridge/smhfile"
)

var ErrReferenceMismatch = errors.New("reference pose mismatch")

// Offsets holds one calibration transform per physically mapped bone:
// offset = inv(physicsObjectWorld) * boneRestWorld, so that
// physicsObjectWorld * offset recovers the bone transform.
type Offsets struct {
	byBone map[string]mathx.Transform
}

func (o *Offsets) Offset(bone string) (mathx.Transform, bool) {
	t, ok := o.byBone[bone]
	return t, ok
}

func (o *Offsets) Len() int { return len(o.byBone) }

// Resolve computes offsets for every physics-map bone present on the
// armature. A map entry whose bone the armature lacks, or whose index the
// reference keyframe omits, simply yields no offset; the retargeting engine
// is the one to decide that a missing offset is fatal.
func Resolve(ref *smhfile.File, entityName string, physMap []string, arm *host.Armature) (*Offsets, error) {
	entity := ref.FindEntity(entityName)
	if entity == nil {
		return nil, errors.Wrapf(ErrReferenceMismatch,
			"entity %q not found in reference file (has %v)", entityName, ref.EntityNames())
	}
	if len(entity.Frames) != 1 {
		return nil, errors.Wrapf(ErrReferenceMismatch,
			"entity %q: reference file must hold exactly one keyframe, found %d", entityName, len(entity.Frames))
	}
	frame := entity.Frames[0]
	if len(frame.PhysBones) != len(physMap) {
		return nil, errors.Wrapf(ErrReferenceMismatch,
			"entity %q: physics map names %d bones but reference keyframe has %d physics objects",
			entityName, len(physMap), len(frame.PhysBones))
	}

	o := &Offsets{byBone: make(map[string]mathx.Transform, len(physMap))}
	for i, bone := range physMap {
		pd := frame.PhysBones[i]
		if pd == nil {
			continue
		}
		rest, ok := arm.RestWorld(bone)
		if !ok {
			continue
		}
		phys := mathx.NewTransform(pd.Pos, mathx.QuatFromQAngle(pd.Ang))
		o.byBone[bone] = phys.Inv().Mul(rest)
	}
	return o, nil
}

// Cache memoizes Resolve per reference configuration. Offsets never change
// once computed; repeated imports against the same reference file, entity
// and physics map reuse the first result. Not safe for concurrent use, per
// the one-operation-at-a-time model.
type Cache struct {
	entries map[string]*Offsets
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]*Offsets)}
}

func cacheKey(refPath, entityName string, physMap []string, arm *host.Armature) string {
	h := sha1.Sum([]byte(strings.Join(physMap, "\x00")))
	return refPath + "\x00" + entityName + "\x00" + arm.Name + "\x00" + hex.EncodeToString(h[:])
}

// Get returns the cached offsets for a configuration, calling load to
// produce the reference file only on the first use.
func (c *Cache) Get(refPath, entityName string, physMap []string, arm *host.Armature,
	load func() (*smhfile.File, error)) (*Offsets, error) {

	key := cacheKey(refPath, entityName, physMap, arm)
	if o, ok := c.entries[key]; ok {
		return o, nil
	}
	ref, err := load()
	if err != nil {
		return nil, err
	}
	o, err := Resolve(ref, entityName, physMap, arm)
	if err != nil {
		return nil, err
	}
	c.entries[key] = o
	return o, nil
}

package retarget

import (
	"github.com/vlazed/smh_bridge/host"
)

// PhysTree resolves the parent relation between physics objects: for each
// physics-mapped bone, the nearest armature ancestor that is itself
// physics-mapped. SMH stores parented physics objects with an extra
// parent-relative transform, so the tree decides which objects carry
// LocalPos/LocalAng.
type PhysTree struct {
	index  map[string]int
	parent map[string]string
}

func NewPhysTree(arm *host.Armature, physMap []string) *PhysTree {
	t := &PhysTree{
		index:  make(map[string]int, len(physMap)),
		parent: make(map[string]string, len(physMap)),
	}
	for i, name := range physMap {
		t.index[name] = i
	}
	for _, name := range physMap {
		b := arm.Bone(name)
		if b == nil {
			continue
		}
		for walk := arm.Bone(b.Parent); walk != nil; walk = arm.Bone(walk.Parent) {
			if _, ok := t.index[walk.Name]; ok {
				t.parent[name] = walk.Name
				break
			}
		}
	}
	return t
}

func (t *PhysTree) IsPhys(bone string) bool {
	_, ok := t.index[bone]
	return ok
}

func (t *PhysTree) Index(bone string) (int, bool) {
	i, ok := t.index[bone]
	return i, ok
}

// Parent returns the nearest physics-mapped ancestor, if any.
func (t *PhysTree) Parent(bone string) (string, bool) {
	p, ok := t.parent[bone]
	return p, ok
}

// Package smhfile decodes and encodes Stop Motion Helper animation files.
//
// The container is the JSON document SMH saves under garrysmod/data/smh:
// a top level {Map, Entities}, each entity carrying a model path, an
// optional Properties block and a keyframe list. Three historical layouts
// exist, distinguished here as versions 2, 3 and 4 ("4.0"+ is current).
// The file itself stores no version number; the shape of the frame easing
// fields and of the entity properties identifies the revision.
package smhfile

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
)

type Version int

const (
	Version2 Version = 2
	Version3 Version = 3
	Version4 Version = 4
)

var (
	ErrUnsupportedVersion = errors.New("unsupported smh file version")
	ErrCorruptFile        = errors.New("corrupt smh file")
)

type File struct {
	Version  Version
	Map      string
	Entities []*Entity
}

// Properties identifies an entity to SMH. Absent in version 2 files, where
// the Model field doubles as the entity name. Timelines/TimelineMods only
// occur in version 3 and are carried opaquely.
type Properties struct {
	Model     string
	Name      string
	Class     string
	Timelines int
	// raw v3 timeline modifier table, preserved byte-for-byte
	TimelineMods []byte
}

type Entity struct {
	Model      string
	Properties *Properties
	Frames     []*Frame
}

// Name returns the identifier used to match an entity between files and
// armatures: Properties.Name where present, the bare model name for v2.
func (e *Entity) Name() string {
	if e.Properties != nil {
		return e.Properties.Name
	}
	return e.Model
}

// Frame is one keyframe. Bones and PhysBones are tables keyed by the
// positional index each map file establishes. Modifiers holds every other
// EntityData track (flex, color, skin, modelscale, ...) as raw JSON so that
// unknown tracks survive a decode/encode round trip untouched.
type Frame struct {
	Position  int
	Bones     map[int]*BoneData
	PhysBones map[int]*PhysBoneData
	Modifiers map[string][]byte

	// v4: per-track easing, keyed like EntityData
	EaseIn  map[string]float64
	EaseOut map[string]float64

	// v2/v3: single easing pair per frame
	EaseInScalar  float64
	EaseOutScalar float64

	// v3 only
	Modifier string
}

// BoneData is a nonphysical bone keyframe, parent-local.
type BoneData struct {
	Pos   mgl64.Vec3
	Ang   mgl64.Vec3 // QAngle degrees
	Scale *mgl64.Vec3
}

// PhysBoneData is a physics object keyframe. Pos/Ang are world transforms
// of the physics object itself; LocalPos/LocalAng are relative to the
// nearest physical ancestor and only present for parented objects.
type PhysBoneData struct {
	Pos      mgl64.Vec3
	Ang      mgl64.Vec3 // QAngle degrees
	LocalPos *mgl64.Vec3
	LocalAng *mgl64.Vec3
	Moveable bool
}

// FindEntity locates an entity by its version-appropriate name.
func (f *File) FindEntity(name string) *Entity {
	for _, e := range f.Entities {
		if e.Name() == name {
			return e
		}
	}
	return nil
}

func (f *File) EntityNames() []string {
	names := make([]string, 0, len(f.Entities))
	for _, e := range f.Entities {
		names = append(names, e.Name())
	}
	return names
}

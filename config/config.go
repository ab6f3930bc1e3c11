// Package config loads transfer profiles. A profile names the scene map,
// the frame window and, per armature, the bone/physics/flex map files, the
// reference pose and the slider offsets. Resolve turns a profile into the
// entity configurations the batch runner consumes.
package config

import (
	"io/ioutil"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/vlazed/smh_bridge/batch"
	"github.com/vlazed/smh_bridge/flexbridge"
	"github.com/vlazed/smh_bridge/mapfile"
)

// FrameWindow is the export range. Step below 1 is treated as 1.
type FrameWindow struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
	Step  int `yaml:"step"`
}

// ArmatureProfile configures one armature/entity pair. File paths are
// relative to the profile file.
type ArmatureProfile struct {
	Armature string `yaml:"armature"`
	Entity   string `yaml:"entity"`
	Model    string `yaml:"model"`
	Class    string `yaml:"class"`

	BoneMap string `yaml:"bone_map"`
	PhysMap string `yaml:"phys_map"`
	FlexMap string `yaml:"flex_map"`

	Ref       string `yaml:"ref"`
	RefEntity string `yaml:"ref_entity"`

	Equations string `yaml:"equations"`

	PosOffset [3]float64 `yaml:"pos_offset"`
	AngOffset [3]float64 `yaml:"ang_offset"`

	ImportStretch bool `yaml:"import_stretch"`
	ExportFlex    bool `yaml:"export_flex"`
}

// Profile is the root of a profile file.
type Profile struct {
	Map       string             `yaml:"map"`
	Frames    FrameWindow        `yaml:"frames"`
	Armatures []*ArmatureProfile `yaml:"armatures"`

	dir string
}

// Load reads and validates a profile file.
func Load(path string) (*Profile, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read profile %q", path)
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrapf(err, "cannot parse profile %q", path)
	}
	if len(p.Armatures) == 0 {
		return nil, errors.Errorf("profile %q configures no armatures", path)
	}
	seen := make(map[string]bool)
	for _, ap := range p.Armatures {
		if ap.Armature == "" {
			return nil, errors.Errorf("profile %q: armature entry without a name", path)
		}
		if seen[ap.Armature] {
			return nil, errors.Errorf("profile %q: armature %q configured twice", path, ap.Armature)
		}
		seen[ap.Armature] = true
		if ap.BoneMap == "" {
			return nil, errors.Errorf("profile %q: armature %q has no bone map", path, ap.Armature)
		}
		if ap.PhysMap == "" {
			return nil, errors.Errorf("profile %q: armature %q has no physics map", path, ap.Armature)
		}
		if ap.Ref == "" {
			return nil, errors.Errorf("profile %q: armature %q has no reference pose file", path, ap.Armature)
		}
	}
	p.dir = filepath.Dir(path)
	return &p, nil
}

func (p *Profile) path(rel string) string {
	if rel == "" || filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(p.dir, rel)
}

func (p *Profile) resolveOne(ap *ArmatureProfile) (*batch.EntityConfig, error) {
	boneMap, err := mapfile.Load(p.path(ap.BoneMap))
	if err != nil {
		return nil, errors.Wrap(err, "bone map")
	}
	physMap, err := mapfile.Load(p.path(ap.PhysMap))
	if err != nil {
		return nil, errors.Wrap(err, "physics map")
	}
	cfg := &batch.EntityConfig{
		Armature:      ap.Armature,
		Entity:        ap.Entity,
		Model:         ap.Model,
		Class:         ap.Class,
		BoneMap:       boneMap,
		PhysMap:       physMap,
		Ref:           p.path(ap.Ref),
		RefEntity:     ap.RefEntity,
		PosOffset:     mgl64.Vec3(ap.PosOffset),
		AngOffset:     mgl64.Vec3(ap.AngOffset),
		ImportStretch: ap.ImportStretch,
		ExportFlex:    ap.ExportFlex,
	}
	if cfg.RefEntity == "" {
		cfg.RefEntity = ap.Entity
	}
	if ap.FlexMap != "" {
		cfg.FlexMap, err = mapfile.Load(p.path(ap.FlexMap))
		if err != nil {
			return nil, errors.Wrap(err, "flex map")
		}
	}
	if ap.Equations != "" {
		text, err := ioutil.ReadFile(p.path(ap.Equations))
		if err != nil {
			return nil, errors.Wrap(err, "cannot read equations")
		}
		cfg.Equations, err = flexbridge.ParseEquations(text, ap.Equations)
		if err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Resolve loads every map and equation file the profile names.
func (p *Profile) Resolve() ([]*batch.EntityConfig, error) {
	cfgs := make([]*batch.EntityConfig, 0, len(p.Armatures))
	for _, ap := range p.Armatures {
		cfg, err := p.resolveOne(ap)
		if err != nil {
			return nil, errors.Wrapf(err, "armature %q", ap.Armature)
		}
		cfgs = append(cfgs, cfg)
	}
	return cfgs, nil
}

// Window normalizes the frame range for export.
func (p *Profile) Window() (start, end, step int) {
	start, end, step = p.Frames.Start, p.Frames.End, p.Frames.Step
	if step < 1 {
		step = 1
	}
	if end < start {
		end = start
	}
	return start, end, step
}

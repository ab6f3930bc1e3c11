// Package batch runs whole-scene transfers. An export walks every configured
// armature and merges the results into one animation file; an import matches
// file entities against configured armatures and loads each one into its own
// action. A failure on one entity never aborts the others.
package batch

import (
	"log"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/vlazed/smh_bridge/flexbridge"
	"github.com/vlazed/smh_bridge/host"
	"github.com/vlazed/smh_bridge/refpose"
	"github.com/vlazed/smh_bridge/retarget"
	"github.com/vlazed/smh_bridge/smhfile"
	"github.com/vlazed/smh_bridge/status"
)

// EntityConfig ties one armature to one animation file entity, together with
// everything needed to move frames between them. The map slices are indexed
// by game-side bone or flex index; an empty name marks an unmapped slot.
type EntityConfig struct {
	Armature string
	Entity   string
	Model    string
	Class    string

	BoneMap []string
	PhysMap []string
	FlexMap []string

	Ref       string
	RefEntity string

	Equations map[string]flexbridge.Equation

	PosOffset mgl64.Vec3
	AngOffset mgl64.Vec3

	ImportStretch bool
	ExportFlex    bool
}

// Report summarizes one batch run.
type Report struct {
	OpID      string
	Succeeded []string
	Failed    map[string]error
}

func newReport() *Report {
	return &Report{
		OpID:   uuid.New().String(),
		Failed: make(map[string]error),
	}
}

// Err folds per-entity failures into a single error, nil when everything
// succeeded.
func (r *Report) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	var err error
	for name, entErr := range r.Failed {
		if err == nil {
			err = errors.Wrapf(entErr, "entity %q", name)
		} else {
			err = errors.Wrapf(err, "entity %q: %v; also", name, entErr)
		}
	}
	return errors.Wrapf(err, "%d of %d entities failed", len(r.Failed), len(r.Failed)+len(r.Succeeded))
}

// Runner holds the pieces shared across batch runs. Reference pose offsets
// are resolved once per (file, entity, armature) and cached.
type Runner struct {
	Scene   *host.Scene
	RefLoad func(path string) (*smhfile.File, error)

	refs *refpose.Cache
}

func NewRunner(scene *host.Scene, refLoad func(path string) (*smhfile.File, error)) *Runner {
	return &Runner{
		Scene:   scene,
		RefLoad: refLoad,
		refs:    refpose.NewCache(),
	}
}

func (r *Runner) offsets(cfg *EntityConfig, arm *host.Armature) (*refpose.Offsets, error) {
	return r.refs.Get(cfg.Ref, cfg.RefEntity, cfg.PhysMap, arm, func() (*smhfile.File, error) {
		return r.RefLoad(cfg.Ref)
	})
}

func retargetConfig(cfg *EntityConfig, off *refpose.Offsets, frameStart, frameEnd, frameStep int) *retarget.Config {
	return &retarget.Config{
		BoneMap:       cfg.BoneMap,
		PhysMap:       cfg.PhysMap,
		Offsets:       off,
		FrameStart:    frameStart,
		FrameEnd:      frameEnd,
		FrameStep:     frameStep,
		PosOffset:     cfg.PosOffset,
		AngOffset:     cfg.AngOffset,
		ImportStretch: cfg.ImportStretch,
	}
}

// Export renders the active action of every configured armature into a
// single animation file. Entities appear in configuration order.
func (r *Runner) Export(cfgs []*EntityConfig, mapName string, frameStart, frameEnd, frameStep int) (*smhfile.File, *Report) {
	rep := newReport()
	out := &smhfile.File{
		Version: smhfile.Version4,
		Map:     mapName,
	}
	for i, cfg := range cfgs {
		status.Progress(rep.OpID, float32(i)/float32(len(cfgs)), "exporting %q", cfg.Armature)
		ent, err := r.exportOne(cfg, frameStart, frameEnd, frameStep)
		if err != nil {
			log.Printf("[batch] export %q: %v", cfg.Armature, err)
			status.Error(rep.OpID, "export %q: %v", cfg.Armature, err)
			rep.Failed[cfg.Armature] = err
			continue
		}
		out.Entities = append(out.Entities, ent)
		rep.Succeeded = append(rep.Succeeded, cfg.Armature)
	}
	status.Progress(rep.OpID, 1.0, "export finished: %d ok, %d failed", len(rep.Succeeded), len(rep.Failed))
	return out, rep
}

func (r *Runner) exportOne(cfg *EntityConfig, frameStart, frameEnd, frameStep int) (*smhfile.Entity, error) {
	arm := r.Scene.Armature(cfg.Armature)
	if arm == nil {
		return nil, errors.Errorf("armature %q not in scene", cfg.Armature)
	}
	act := arm.ActiveAction()
	if act == nil {
		return nil, errors.Errorf("armature %q has no active action", cfg.Armature)
	}
	off, err := r.offsets(cfg, arm)
	if err != nil {
		return nil, errors.Wrap(err, "reference pose")
	}
	rc := retargetConfig(cfg, off, frameStart, frameEnd, frameStep)
	frames, err := retarget.ExportFrames(arm, act, rc)
	if err != nil {
		return nil, err
	}
	if cfg.ExportFlex && len(cfg.FlexMap) != 0 {
		if err := flexbridge.ExportInto(frames, act, cfg.FlexMap, cfg.Equations); err != nil {
			return nil, errors.Wrap(err, "flex export")
		}
	}
	name := cfg.Entity
	if name == "" {
		name = cfg.Armature
	}
	return &smhfile.Entity{
		Model: cfg.Model,
		Properties: &smhfile.Properties{
			Model: cfg.Model,
			Name:  name,
			Class: cfg.Class,
		},
		Frames: frames,
	}, nil
}

// Import loads each configured armature from its matching file entity into a
// fresh action named after the file and the armature.
func (r *Runner) Import(f *smhfile.File, cfgs []*EntityConfig, fileBase string) *Report {
	rep := newReport()
	for i, cfg := range cfgs {
		status.Progress(rep.OpID, float32(i)/float32(len(cfgs)), "importing %q", cfg.Armature)
		if err := r.importOne(f, cfg, fileBase); err != nil {
			log.Printf("[batch] import %q: %v", cfg.Armature, err)
			status.Error(rep.OpID, "import %q: %v", cfg.Armature, err)
			rep.Failed[cfg.Armature] = err
			continue
		}
		rep.Succeeded = append(rep.Succeeded, cfg.Armature)
	}
	status.Progress(rep.OpID, 1.0, "import finished: %d ok, %d failed", len(rep.Succeeded), len(rep.Failed))
	return rep
}

func (r *Runner) importOne(f *smhfile.File, cfg *EntityConfig, fileBase string) error {
	arm := r.Scene.Armature(cfg.Armature)
	if arm == nil {
		return errors.Errorf("armature %q not in scene", cfg.Armature)
	}
	entName := cfg.Entity
	if entName == "" {
		entName = arm.ImportName
	}
	if entName == "" {
		entName = arm.Name
	}
	ent := f.FindEntity(entName)
	if ent == nil {
		return errors.Errorf("no entity %q in file (have %v)", entName, f.EntityNames())
	}
	off, err := r.offsets(cfg, arm)
	if err != nil {
		return errors.Wrap(err, "reference pose")
	}
	rc := retargetConfig(cfg, off, 0, 0, 1)
	actionName := fileBase + "_" + arm.Name
	act, err := retarget.ImportEntity(arm, ent, actionName, rc)
	if err != nil {
		return err
	}
	if len(cfg.FlexMap) != 0 {
		if err := flexbridge.ImportInto(ent, act, arm, cfg.FlexMap, cfg.Equations); err != nil {
			return errors.Wrap(err, "flex import")
		}
	}
	arm.SetActiveAction(act.Name)
	return nil
}

package batch

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"github.com/vlazed/smh_bridge/host"
	"github.com/vlazed/smh_bridge/mathx"
	"github.com/vlazed/smh_bridge/smhfile"
)

func testArmature(t *testing.T, name string) *host.Armature {
	t.Helper()
	a := &host.Armature{
		Name: name,
		Bones: []*host.Bone{
			{Name: "pelvis", RestPos: mgl64.Vec3{0, 0, 40}, RestRot: mgl64.QuatIdent()},
			{Name: "spine", Parent: "pelvis", RestPos: mgl64.Vec3{0, 0, 12}, RestRot: mgl64.QuatIdent()},
		},
	}
	if err := a.Init(); err != nil {
		t.Fatal(err)
	}
	return a
}

func refFile(name string) *smhfile.File {
	return &smhfile.File{
		Version: smhfile.Version4,
		Entities: []*smhfile.Entity{{
			Model:      "models/test.mdl",
			Properties: &smhfile.Properties{Name: name},
			Frames: []*smhfile.Frame{{
				Position: 0,
				PhysBones: map[int]*smhfile.PhysBoneData{
					0: {Pos: mgl64.Vec3{0, 0, 36}},
				},
			}},
		}},
	}
}

func testRunner(t *testing.T, arms ...*host.Armature) *Runner {
	t.Helper()
	scene := &host.Scene{Armatures: arms}
	refs := map[string]*smhfile.File{}
	for _, a := range arms {
		refs["ref_"+a.Name+".txt"] = refFile(a.Name)
	}
	return NewRunner(scene, func(path string) (*smhfile.File, error) {
		f, ok := refs[path]
		if !ok {
			return nil, errors.Errorf("no reference file %q", path)
		}
		return f, nil
	})
}

func entityConfig(arm string) *EntityConfig {
	return &EntityConfig{
		Armature:  arm,
		Entity:    arm,
		Model:     "models/test.mdl",
		Class:     "prop_ragdoll",
		BoneMap:   []string{"spine"},
		PhysMap:   []string{"pelvis"},
		Ref:       "ref_" + arm + ".txt",
		RefEntity: arm,
	}
}

func TestExportMergesEntities(t *testing.T) {
	a, b := testArmature(t, "alpha"), testArmature(t, "beta")
	for _, arm := range []*host.Armature{a, b} {
		act := arm.NewAction("walk")
		if err := act.WriteBone("pelvis", 0, mathx.TransformIdent()); err != nil {
			t.Fatal(err)
		}
	}
	r := testRunner(t, a, b)

	f, rep := r.Export([]*EntityConfig{entityConfig("alpha"), entityConfig("beta")}, "gm_construct", 0, 0, 1)
	if err := rep.Err(); err != nil {
		t.Fatal(err)
	}
	if rep.OpID == "" {
		t.Errorf("report has no operation id")
	}
	if f.Map != "gm_construct" || f.Version != smhfile.Version4 {
		t.Errorf("file header = %q v%d", f.Map, f.Version)
	}
	if len(f.Entities) != 2 || f.Entities[0].Name() != "alpha" || f.Entities[1].Name() != "beta" {
		t.Fatalf("entities = %v", f.EntityNames())
	}
	if f.Entities[0].Properties.Class != "prop_ragdoll" {
		t.Errorf("class lost: %+v", f.Entities[0].Properties)
	}
}

func TestExportIsolatesFailures(t *testing.T) {
	a, b := testArmature(t, "alpha"), testArmature(t, "beta")
	act := a.NewAction("walk")
	if err := act.WriteBone("pelvis", 0, mathx.TransformIdent()); err != nil {
		t.Fatal(err)
	}
	// beta has no active action and must fail without dragging alpha down
	r := testRunner(t, a, b)

	f, rep := r.Export([]*EntityConfig{entityConfig("alpha"), entityConfig("beta")}, "", 0, 0, 1)
	if len(f.Entities) != 1 || f.Entities[0].Name() != "alpha" {
		t.Fatalf("entities = %v", f.EntityNames())
	}
	if len(rep.Succeeded) != 1 || rep.Succeeded[0] != "alpha" {
		t.Errorf("succeeded = %v", rep.Succeeded)
	}
	if _, ok := rep.Failed["beta"]; !ok {
		t.Errorf("beta failure not recorded: %v", rep.Failed)
	}
	if rep.Err() == nil {
		t.Errorf("aggregate error missing")
	}
}

func TestExportUnknownArmature(t *testing.T) {
	r := testRunner(t)
	_, rep := r.Export([]*EntityConfig{entityConfig("ghost")}, "", 0, 0, 1)
	if _, ok := rep.Failed["ghost"]; !ok {
		t.Errorf("missing armature not reported: %v", rep.Failed)
	}
}

func TestImportRoundTrip(t *testing.T) {
	a := testArmature(t, "alpha")
	act := a.NewAction("walk")
	pose := mathx.NewTransform(mgl64.Vec3{5, 0, 0}, mgl64.QuatIdent())
	if err := act.WriteBone("pelvis", 0, pose); err != nil {
		t.Fatal(err)
	}
	r := testRunner(t, a)
	cfgs := []*EntityConfig{entityConfig("alpha")}

	f, rep := r.Export(cfgs, "gm_construct", 0, 0, 1)
	if err := rep.Err(); err != nil {
		t.Fatal(err)
	}

	rep = r.Import(f, cfgs, "take1")
	if err := rep.Err(); err != nil {
		t.Fatal(err)
	}
	imported := a.ActiveAction()
	if imported == nil || imported.Name != "take1_alpha" {
		t.Fatalf("active action = %+v; expected take1_alpha", imported)
	}
	basis, ok := imported.ReadBone("pelvis", 0)
	if !ok || !basis.ApproxEqual(pose, 1e-6) {
		t.Errorf("imported pelvis = %v; expected %v", basis, pose)
	}
}

func TestImportMatchesByImportName(t *testing.T) {
	a := testArmature(t, "alpha")
	a.ImportName = "ragdoll_7"
	act := a.NewAction("walk")
	if err := act.WriteBone("pelvis", 0, mathx.TransformIdent()); err != nil {
		t.Fatal(err)
	}
	r := testRunner(t, a)

	exportCfg := entityConfig("alpha")
	exportCfg.Entity = "ragdoll_7"
	f, rep := r.Export([]*EntityConfig{exportCfg}, "", 0, 0, 1)
	if err := rep.Err(); err != nil {
		t.Fatal(err)
	}

	importCfg := entityConfig("alpha")
	importCfg.Entity = "" // fall back to the armature's ImportName
	rep = r.Import(f, []*EntityConfig{importCfg}, "take")
	if err := rep.Err(); err != nil {
		t.Fatal(err)
	}
}

func TestImportMissingEntityFails(t *testing.T) {
	a := testArmature(t, "alpha")
	r := testRunner(t, a)
	f := &smhfile.File{Version: smhfile.Version4}
	rep := r.Import(f, []*EntityConfig{entityConfig("alpha")}, "take")
	if _, ok := rep.Failed["alpha"]; !ok {
		t.Errorf("missing entity not reported: %v", rep.Failed)
	}
}

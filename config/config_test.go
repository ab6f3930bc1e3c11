package config

import (
	"io/ioutil"
	"path/filepath"
	"testing"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		if err := ioutil.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

const goodProfile = `
map: gm_construct
frames:
  start: 0
  end: 100
  step: 2
armatures:
  - armature: alyx
    entity: alyx_rag
    model: models/alyx.mdl
    class: prop_ragdoll
    bone_map: alyx_bones.txt
    phys_map: alyx_phys.txt
    flex_map: alyx_flex.txt
    ref: alyx_ref.txt
    equations: alyx.eqn
    pos_offset: [0, 0, 10]
    import_stretch: true
    export_flex: true
`

func TestLoadResolve(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"profile.yaml":   goodProfile,
		"alyx_bones.txt": "spine\nhead\n",
		"alyx_phys.txt":  "pelvis\n",
		"alyx_flex.txt":  "smile\n",
		"alyx_ref.txt":   "{}",
		"alyx.eqn":       "smile = grin * 2\n",
	})
	p, err := Load(filepath.Join(dir, "profile.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if p.Map != "gm_construct" {
		t.Errorf("map = %q", p.Map)
	}
	start, end, step := p.Window()
	if start != 0 || end != 100 || step != 2 {
		t.Errorf("window = %d %d %d", start, end, step)
	}

	cfgs, err := p.Resolve()
	if err != nil {
		t.Fatal(err)
	}
	if len(cfgs) != 1 {
		t.Fatalf("configs = %d", len(cfgs))
	}
	cfg := cfgs[0]
	if cfg.Armature != "alyx" || cfg.Entity != "alyx_rag" || cfg.Class != "prop_ragdoll" {
		t.Errorf("identity fields = %+v", cfg)
	}
	if len(cfg.BoneMap) != 2 || cfg.BoneMap[1] != "head" {
		t.Errorf("bone map = %v", cfg.BoneMap)
	}
	if len(cfg.PhysMap) != 1 || cfg.PhysMap[0] != "pelvis" {
		t.Errorf("phys map = %v", cfg.PhysMap)
	}
	if len(cfg.FlexMap) != 1 {
		t.Errorf("flex map = %v", cfg.FlexMap)
	}
	if eq, ok := cfg.Equations["smile"]; !ok || eq.ShapeKey != "grin" || eq.Scale != 2 {
		t.Errorf("equations = %+v", cfg.Equations)
	}
	if cfg.PosOffset[2] != 10 {
		t.Errorf("pos offset = %v", cfg.PosOffset)
	}
	if !cfg.ImportStretch || !cfg.ExportFlex {
		t.Errorf("flags lost: %+v", cfg)
	}
	if cfg.Ref != filepath.Join(dir, "alyx_ref.txt") {
		t.Errorf("ref path = %q", cfg.Ref)
	}
	// ref entity falls back to the entity name
	if cfg.RefEntity != "alyx_rag" {
		t.Errorf("ref entity = %q", cfg.RefEntity)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no armatures", "map: x\n"},
		{"unnamed armature", "armatures:\n  - bone_map: b.txt\n"},
		{"duplicate armature", `
armatures:
  - armature: a
    bone_map: b.txt
    phys_map: p.txt
    ref: r.txt
  - armature: a
    bone_map: b.txt
    phys_map: p.txt
    ref: r.txt
`},
		{"missing bone map", "armatures:\n  - armature: a\n    phys_map: p.txt\n    ref: r.txt\n"},
		{"missing phys map", "armatures:\n  - armature: a\n    bone_map: b.txt\n    ref: r.txt\n"},
		{"missing ref", "armatures:\n  - armature: a\n    bone_map: b.txt\n    phys_map: p.txt\n"},
		{"not yaml", "{{{{"},
	}
	for _, test := range tests {
		dir := writeFiles(t, map[string]string{"p.yaml": test.body})
		if _, err := Load(filepath.Join(dir, "p.yaml")); err == nil {
			t.Errorf("%s: accepted", test.name)
		}
	}
}

func TestResolveMissingMapFile(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"profile.yaml": `
armatures:
  - armature: a
    bone_map: missing.txt
    phys_map: missing.txt
    ref: r.txt
`,
	})
	p, err := Load(filepath.Join(dir, "profile.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Resolve(); err == nil {
		t.Errorf("missing map file accepted")
	}
}

func TestWindowNormalization(t *testing.T) {
	p := &Profile{Frames: FrameWindow{Start: 10, End: 5, Step: 0}}
	start, end, step := p.Window()
	if start != 10 || end != 10 || step != 1 {
		t.Errorf("window = %d %d %d", start, end, step)
	}
}

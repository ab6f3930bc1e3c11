package web

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"log"
	"net/http"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gorilla/mux"

	"github.com/vlazed/smh_bridge/smhfile"
	"github.com/vlazed/smh_bridge/utils"
	"github.com/vlazed/smh_bridge/webutils"
)

type entitySummary struct {
	Name       string
	Model      string
	Class      string
	Frames     int
	FrameStart int
	FrameEnd   int
	PhysBones  int
	Bones      int
	Modifiers  []string
}

type fileSummary struct {
	Name     string
	Version  smhfile.Version
	Map      string
	Entities []*entitySummary
}

func isAnimationFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".json":
		return true
	}
	return false
}

// resolveFile keeps requests inside ServerDirectory.
func resolveFile(name string) (string, error) {
	base := filepath.Base(name)
	if base != name || !isAnimationFile(base) {
		return "", fmt.Errorf("bad file name %q", name)
	}
	return filepath.Join(ServerDirectory, base), nil
}

func loadFile(name string) (*smhfile.File, error) {
	path, err := resolveFile(name)
	if err != nil {
		return nil, err
	}
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return smhfile.Decode(data, path)
}

func summarizeEntity(e *smhfile.Entity) *entitySummary {
	s := &entitySummary{
		Name:  e.Name(),
		Model: e.Model,
	}
	if e.Properties != nil {
		s.Class = e.Properties.Class
	}
	s.Frames = len(e.Frames)
	mods := make(map[string]bool)
	for i, fr := range e.Frames {
		if i == 0 || fr.Position < s.FrameStart {
			s.FrameStart = fr.Position
		}
		if fr.Position > s.FrameEnd {
			s.FrameEnd = fr.Position
		}
		if len(fr.PhysBones) > s.PhysBones {
			s.PhysBones = len(fr.PhysBones)
		}
		if len(fr.Bones) > s.Bones {
			s.Bones = len(fr.Bones)
		}
		for name := range fr.Modifiers {
			mods[name] = true
		}
	}
	for name := range mods {
		s.Modifiers = append(s.Modifiers, name)
	}
	sort.Strings(s.Modifiers)
	return s
}

func HandlerAjaxFiles(w http.ResponseWriter, r *http.Request) {
	entries, err := ioutil.ReadDir(ServerDirectory)
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	files := make([]string, 0)
	for _, e := range entries {
		if !e.IsDir() && isAnimationFile(e.Name()) {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	webutils.WriteJson(w, files)
}

func HandlerAjaxFile(w http.ResponseWriter, r *http.Request) {
	file := mux.Vars(r)["file"]
	f, err := loadFile(file)
	if err != nil {
		log.Printf("Error loading animation file: %v", err)
		webutils.WriteError(w, err)
		return
	}
	summary := &fileSummary{
		Name:    file,
		Version: f.Version,
		Map:     f.Map,
	}
	for _, e := range f.Entities {
		summary.Entities = append(summary.Entities, summarizeEntity(e))
	}
	webutils.WriteJson(w, summary)
}

func HandlerAjaxFileEntity(w http.ResponseWriter, r *http.Request) {
	file := mux.Vars(r)["file"]
	entity := mux.Vars(r)["entity"]
	f, err := loadFile(file)
	if err != nil {
		log.Printf("Error loading animation file: %v", err)
		webutils.WriteError(w, err)
		return
	}
	e := f.FindEntity(entity)
	if e == nil {
		webutils.WriteError(w, fmt.Errorf("file %s has no entity %q", file, entity))
		return
	}
	webutils.WriteJson(w, e)
}

func HandlerDumpFile(w http.ResponseWriter, r *http.Request) {
	file := mux.Vars(r)["file"]
	f, err := loadFile(file)
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	webutils.WriteFile(w, strings.NewReader(utils.SDump(f)), file+".dump.txt")
}

func HandlerDumpFileEntity(w http.ResponseWriter, r *http.Request) {
	file := mux.Vars(r)["file"]
	entity := mux.Vars(r)["entity"]
	f, err := loadFile(file)
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	e := f.FindEntity(entity)
	if e == nil {
		webutils.WriteError(w, fmt.Errorf("file %s has no entity %q", file, entity))
		return
	}
	single := &smhfile.File{Version: f.Version, Map: f.Map, Entities: []*smhfile.Entity{e}}
	data, err := smhfile.Encode(single)
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	webutils.WriteFile(w, bytes.NewReader(data), entity+".txt")
}

// HandlerUploadFile accepts an animation file, validates it by decoding and
// stores the normalized encoding under the requested name.
func HandlerUploadFile(w http.ResponseWriter, r *http.Request) {
	file := mux.Vars(r)["file"]
	path, err := resolveFile(file)
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	fileStream, _, err := r.FormFile("data")
	if err != nil {
		webutils.WriteError(w, fmt.Errorf("File stream getting error: %v", err))
		return
	}
	defer fileStream.Close()

	data, err := ioutil.ReadAll(fileStream)
	if err != nil {
		webutils.WriteError(w, fmt.Errorf("reading file error: %v", err))
		return
	}
	f, err := smhfile.Decode(data, file)
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	normalized, err := smhfile.Encode(f)
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	if err := ioutil.WriteFile(path, normalized, 0644); err != nil {
		webutils.WriteError(w, err)
		return
	}
	webutils.WriteJson(w, map[string]interface{}{"saved": file, "entities": f.EntityNames()})
}

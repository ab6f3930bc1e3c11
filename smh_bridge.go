package main

import (
	"flag"
	"io/ioutil"
	"log"
	"path/filepath"
	"strings"

	"github.com/vlazed/smh_bridge/batch"
	"github.com/vlazed/smh_bridge/config"
	"github.com/vlazed/smh_bridge/gltfexport"
	"github.com/vlazed/smh_bridge/host"
	"github.com/vlazed/smh_bridge/smhfile"
	"github.com/vlazed/smh_bridge/web"
)

func loadAnimation(path string) (*smhfile.File, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return smhfile.Decode(data, path)
}

func fileBase(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func runTransfer(profilePath, scenePath, exportPath, importPath, outScene string) error {
	profile, err := config.Load(profilePath)
	if err != nil {
		return err
	}
	cfgs, err := profile.Resolve()
	if err != nil {
		return err
	}
	scene, err := host.LoadScene(scenePath)
	if err != nil {
		return err
	}
	runner := batch.NewRunner(scene, loadAnimation)

	if exportPath != "" {
		start, end, step := profile.Window()
		f, rep := runner.Export(cfgs, profile.Map, start, end, step)
		if err := rep.Err(); err != nil {
			return err
		}
		data, err := smhfile.Encode(f)
		if err != nil {
			return err
		}
		if err := ioutil.WriteFile(exportPath, data, 0644); err != nil {
			return err
		}
		log.Printf("[main] exported %d entities to %v", len(f.Entities), exportPath)
	}

	if importPath != "" {
		f, err := loadAnimation(importPath)
		if err != nil {
			return err
		}
		rep := runner.Import(f, cfgs, fileBase(importPath))
		if err := rep.Err(); err != nil {
			return err
		}
		if outScene == "" {
			outScene = scenePath
		}
		if err := scene.Save(outScene); err != nil {
			return err
		}
		log.Printf("[main] imported %v into %v", importPath, outScene)
	}
	return nil
}

func runPreview(scenePath, armName, gltfPath string) error {
	scene, err := host.LoadScene(scenePath)
	if err != nil {
		return err
	}
	arm := scene.Armature(armName)
	if arm == nil {
		log.Fatalf("No armature %q in scene %v", armName, scenePath)
	}
	act := arm.ActiveAction()
	if act == nil {
		log.Fatalf("Armature %q has no active action", armName)
	}
	if err := gltfexport.Save(arm, act, gltfexport.DefaultFPS, gltfPath); err != nil {
		return err
	}
	log.Printf("[main] preview of %q written to %v", act.Name, gltfPath)
	return nil
}

func main() {
	var addr, dir, profilePath, scenePath, exportPath, importPath, outScene, gltfPath, gltfArm string
	flag.StringVar(&addr, "i", ":8000", "Address of server")
	flag.StringVar(&dir, "dir", "", "Animation files directory for the inspection server")
	flag.StringVar(&profilePath, "profile", "", "Transfer profile")
	flag.StringVar(&scenePath, "scene", "", "Scene document")
	flag.StringVar(&exportPath, "export", "", "Write the scene animation to this file")
	flag.StringVar(&importPath, "import", "", "Load this animation file into the scene")
	flag.StringVar(&outScene, "out", "", "Where to save the scene after import (default: in place)")
	flag.StringVar(&gltfPath, "gltf", "", "Write a skeleton preview of the armature's active action")
	flag.StringVar(&gltfArm, "armature", "", "Armature name for the -gltf preview")
	flag.Parse()

	switch {
	case exportPath != "" || importPath != "":
		if profilePath == "" || scenePath == "" {
			log.Fatal("Transfer needs both -profile and -scene. Use --help if you stuck.")
		}
		if err := runTransfer(profilePath, scenePath, exportPath, importPath, outScene); err != nil {
			log.Fatal(err)
		}
	case gltfPath != "":
		if scenePath == "" || gltfArm == "" {
			log.Fatal("Preview needs both -scene and -armature. Use --help if you stuck.")
		}
		if err := runPreview(scenePath, gltfArm, gltfPath); err != nil {
			log.Fatal(err)
		}
	case dir != "":
		if err := web.StartServer(addr, dir, "web"); err != nil {
			log.Fatal(err)
		}
	default:
		flag.PrintDefaults()
	}
}

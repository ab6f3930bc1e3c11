package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/vlazed/smh_bridge/host"
	"github.com/vlazed/smh_bridge/mapfile"
)

func main() {
	var inPath, scenePath, armName string
	var quiet bool
	flag.StringVar(&inPath, "i", "", "Path to bone map file")
	flag.StringVar(&scenePath, "scene", "", "Scene document to check the map against")
	flag.StringVar(&armName, "armature", "", "Armature name inside the scene")
	flag.BoolVar(&quiet, "q", false, "Only report the entry count")
	flag.Parse()

	if inPath == "" {
		log.Fatal("Provide path to map file. Use --help if you stuck.")
	}

	names, err := mapfile.Load(inPath)
	if err != nil {
		log.Fatal(err)
	}
	if !quiet {
		for i, name := range names {
			fmt.Printf("%4d %s\n", i, name)
		}
	}
	log.Printf("%v: %d entries", inPath, len(names))

	if scenePath == "" {
		return
	}
	if armName == "" {
		log.Fatal("Provide -armature together with -scene. Use --help if you stuck.")
	}
	scene, err := host.LoadScene(scenePath)
	if err != nil {
		log.Fatal(err)
	}
	arm := scene.Armature(armName)
	if arm == nil {
		log.Fatalf("No armature %q in scene %v", armName, scenePath)
	}
	missing := 0
	for i, name := range names {
		if arm.Bone(name) == nil {
			log.Printf("entry %d %q has no bone on armature %q", i, name, armName)
			missing++
		}
	}
	if missing != 0 {
		log.Fatalf("%d of %d entries unmatched", missing, len(names))
	}
	log.Printf("all %d entries match armature %q", len(names), armName)
}

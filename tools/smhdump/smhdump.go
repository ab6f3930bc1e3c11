package main

import (
	"flag"
	"io/ioutil"
	"log"

	"github.com/vlazed/smh_bridge/smhfile"
	"github.com/vlazed/smh_bridge/utils"
)

func main() {
	var inPath, entity string
	var list bool
	flag.StringVar(&inPath, "i", "", "Path to animation file")
	flag.StringVar(&entity, "entity", "", "Dump only this entity")
	flag.BoolVar(&list, "list", false, "Only list entity names")
	flag.Parse()

	if inPath == "" {
		log.Fatal("Provide path to animation file. Use --help if you stuck.")
	}

	data, err := ioutil.ReadFile(inPath)
	if err != nil {
		log.Fatal(err)
	}
	f, err := smhfile.Decode(data, inPath)
	if err != nil {
		log.Fatal(err)
	}

	log.Printf("version %v map %q entities %v", f.Version, f.Map, f.EntityNames())
	if list {
		return
	}
	if entity != "" {
		e := f.FindEntity(entity)
		if e == nil {
			log.Fatalf("No entity %q in %v", entity, inPath)
		}
		utils.Dump(e)
		return
	}
	utils.Dump(f)
}

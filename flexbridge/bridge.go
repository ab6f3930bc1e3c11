package flexbridge

import (
	"encoding/json"
	"log"
	"strconv"

	"github.com/pkg/errors"

	"github.com/vlazed/smh_bridge/host"
	"github.com/vlazed/smh_bridge/smhfile"
)

// flexTrack is the SMH "flex" modifier payload: weights keyed by the flex
// map's positional index, plus a global scale.
type flexTrack struct {
	Scale   float64            `json:"Scale"`
	Weights map[string]float64 `json:"Weights"`
}

// equationFor falls back to the 1:1 identity binding for unlisted flexes.
func equationFor(eqs map[string]Equation, flex string) Equation {
	if eq, ok := eqs[flex]; ok {
		return eq
	}
	return Identity(flex)
}

// ExportInto fills the "flex" modifier track of already-retargeted frames
// from the action's shapekey channels. If a frame carried a raw flex
// modifier (say, round-tripped from an earlier import), the shapekey
// animation takes precedence and overwrites it.
func ExportInto(frames []*smhfile.Frame, act *host.Action, flexMap []string, eqs map[string]Equation) error {
	for _, fr := range frames {
		weights := make(map[string]float64)
		for i, flex := range flexMap {
			eq := equationFor(eqs, flex)
			value, ok := act.ReadShapeKey(eq.ShapeKey, fr.Position)
			if !ok {
				continue
			}
			weights[strconv.Itoa(i)] = eq.Scale*value + eq.Offset
		}
		if len(weights) == 0 {
			continue
		}
		raw, err := json.Marshal(&flexTrack{Scale: 1, Weights: weights})
		if err != nil {
			return errors.Wrap(err, "marshal flex track")
		}
		if fr.Modifiers == nil {
			fr.Modifiers = make(map[string][]byte)
		}
		fr.Modifiers["flex"] = raw
	}
	return nil
}

// ImportInto writes shapekey channels from an entity's flex modifier
// tracks, inverting each linear binding.
func ImportInto(entity *smhfile.Entity, act *host.Action, arm *host.Armature, flexMap []string, eqs map[string]Equation) error {
	known := make(map[string]bool, len(arm.ShapeKeys))
	for _, key := range arm.ShapeKeys {
		known[key] = true
	}

	for _, fr := range entity.Frames {
		raw, ok := fr.Modifiers["flex"]
		if !ok {
			continue
		}
		var track flexTrack
		if err := json.Unmarshal(raw, &track); err != nil {
			return errors.Wrapf(smhfile.ErrCorruptFile, "frame %d: flex track: %v", fr.Position, err)
		}
		if track.Scale == 0 {
			track.Scale = 1
		}
		for i, flex := range flexMap {
			weight, ok := track.Weights[strconv.Itoa(i)]
			if !ok {
				continue
			}
			eq := equationFor(eqs, flex)
			if !known[eq.ShapeKey] {
				log.Printf("[flexbridge] armature %q has no shapekey %q for flex %q, skipping", arm.Name, eq.ShapeKey, flex)
				continue
			}
			act.WriteShapeKey(eq.ShapeKey, fr.Position, (weight*track.Scale-eq.Offset)/eq.Scale)
		}
	}
	return nil
}

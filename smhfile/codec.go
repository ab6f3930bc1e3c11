package smhfile

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
)

type jsonFile struct {
	Map      string        `json:"Map"`
	Entities []*jsonEntity `json:"Entities"`
}

type jsonEntity struct {
	Model      string          `json:"Model"`
	Properties *jsonProperties `json:"Properties,omitempty"`
	Frames     []*jsonFrame    `json:"Frames"`
}

type jsonProperties struct {
	Model        string          `json:"Model"`
	Name         string          `json:"Name"`
	Class        string          `json:"Class"`
	Timelines    *int            `json:"Timelines,omitempty"`
	TimelineMods json.RawMessage `json:"TimelineMods,omitempty"`
}

type jsonFrame struct {
	Position   int                        `json:"Position"`
	EntityData map[string]json.RawMessage `json:"EntityData"`
	EaseIn     json.RawMessage            `json:"EaseIn,omitempty"`
	EaseOut    json.RawMessage            `json:"EaseOut,omitempty"`
	Modifier   *string                    `json:"Modifier,omitempty"`
}

type jsonBone struct {
	Pos      string  `json:"Pos"`
	Ang      string  `json:"Ang"`
	Scale    *string `json:"Scale,omitempty"`
	LocalPos *string `json:"LocalPos,omitempty"`
	LocalAng *string `json:"LocalAng,omitempty"`
	Moveable *bool   `json:"Moveable,omitempty"`
}

// DetectVersion identifies the file revision from its structure: no entity
// Properties block means version 2, a Properties block with a Timelines
// field means version 3, otherwise version 4. An empty file decodes as the
// current version.
func DetectVersion(jf *jsonFile) (Version, error) {
	version := Version4
	for i, e := range jf.Entities {
		var v Version
		switch {
		case e.Properties == nil:
			v = Version2
		case e.Properties.Timelines != nil:
			v = Version3
		default:
			v = Version4
		}
		if i > 0 && v != version {
			return 0, errors.Wrapf(ErrUnsupportedVersion,
				"entity %q looks like version %d in a version %d file", e.Model, v, version)
		}
		version = v
	}
	return version, nil
}

// Decode parses an SMH animation file. The path parameter is used only for
// error context.
func Decode(data []byte, path string) (*File, error) {
	var jf jsonFile
	if err := json.Unmarshal(data, &jf); err != nil {
		return nil, errors.Wrapf(ErrCorruptFile, "%s: %v", path, err)
	}
	if jf.Entities == nil {
		return nil, errors.Wrapf(ErrCorruptFile, "%s: missing Entities", path)
	}

	version, err := DetectVersion(&jf)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}

	f := &File{
		Version:  version,
		Map:      jf.Map,
		Entities: make([]*Entity, 0, len(jf.Entities)),
	}
	for _, je := range jf.Entities {
		e, err := decodeEntity(je, version)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: entity %q", path, je.Model)
		}
		f.Entities = append(f.Entities, e)
	}
	return f, nil
}

func decodeEntity(je *jsonEntity, version Version) (*Entity, error) {
	e := &Entity{
		Model:  je.Model,
		Frames: make([]*Frame, 0, len(je.Frames)),
	}
	if je.Model == "" {
		return nil, errors.Wrap(ErrCorruptFile, "missing Model")
	}
	if jp := je.Properties; jp != nil {
		e.Properties = &Properties{
			Model:        jp.Model,
			Name:         jp.Name,
			Class:        jp.Class,
			TimelineMods: jp.TimelineMods,
		}
		if jp.Timelines != nil {
			e.Properties.Timelines = *jp.Timelines
		}
	}
	for _, jfr := range je.Frames {
		fr, err := decodeFrame(jfr, version)
		if err != nil {
			return nil, errors.Wrapf(err, "frame %d", jfr.Position)
		}
		e.Frames = append(e.Frames, fr)
	}
	return e, nil
}

func decodeFrame(jfr *jsonFrame, version Version) (*Frame, error) {
	fr := &Frame{
		Position:  jfr.Position,
		Modifiers: map[string][]byte{},
	}
	if jfr.Modifier != nil {
		fr.Modifier = *jfr.Modifier
	}

	for track, raw := range jfr.EntityData {
		switch track {
		case "bones":
			var table map[string]*jsonBone
			if err := json.Unmarshal(raw, &table); err != nil {
				return nil, errors.Wrapf(ErrCorruptFile, "bones table: %v", err)
			}
			fr.Bones = make(map[int]*BoneData, len(table))
			for key, jb := range table {
				idx, bd, err := decodeBone(key, jb)
				if err != nil {
					return nil, err
				}
				fr.Bones[idx] = bd
			}
		case "physbones":
			var table map[string]*jsonBone
			if err := json.Unmarshal(raw, &table); err != nil {
				return nil, errors.Wrapf(ErrCorruptFile, "physbones table: %v", err)
			}
			fr.PhysBones = make(map[int]*PhysBoneData, len(table))
			for key, jb := range table {
				idx, pd, err := decodePhysBone(key, jb)
				if err != nil {
					return nil, err
				}
				fr.PhysBones[idx] = pd
			}
		default:
			fr.Modifiers[track] = raw
		}
	}

	if err := decodeEase(jfr, fr, version); err != nil {
		return nil, err
	}
	return fr, nil
}

func decodeEase(jfr *jsonFrame, fr *Frame, version Version) error {
	if version == Version4 {
		if jfr.EaseIn != nil {
			if err := json.Unmarshal(jfr.EaseIn, &fr.EaseIn); err != nil {
				return errors.Wrapf(ErrCorruptFile, "EaseIn: %v", err)
			}
		}
		if jfr.EaseOut != nil {
			if err := json.Unmarshal(jfr.EaseOut, &fr.EaseOut); err != nil {
				return errors.Wrapf(ErrCorruptFile, "EaseOut: %v", err)
			}
		}
		return nil
	}
	if jfr.EaseIn != nil {
		if err := json.Unmarshal(jfr.EaseIn, &fr.EaseInScalar); err != nil {
			return errors.Wrapf(ErrCorruptFile, "EaseIn: %v", err)
		}
	}
	if jfr.EaseOut != nil {
		if err := json.Unmarshal(jfr.EaseOut, &fr.EaseOutScalar); err != nil {
			return errors.Wrapf(ErrCorruptFile, "EaseOut: %v", err)
		}
	}
	return nil
}

func decodeBone(key string, jb *jsonBone) (int, *BoneData, error) {
	idx, err := strconv.Atoi(key)
	if err != nil {
		return 0, nil, errors.Wrapf(ErrCorruptFile, "bone index %q", key)
	}
	bd := &BoneData{}
	if bd.Pos, err = ParseVec(jb.Pos); err != nil {
		return 0, nil, errors.Wrapf(ErrCorruptFile, "bone %d Pos: %v", idx, err)
	}
	if bd.Ang, err = ParseAng(jb.Ang); err != nil {
		return 0, nil, errors.Wrapf(ErrCorruptFile, "bone %d Ang: %v", idx, err)
	}
	if jb.Scale != nil {
		scale, err := ParseVec(*jb.Scale)
		if err != nil {
			return 0, nil, errors.Wrapf(ErrCorruptFile, "bone %d Scale: %v", idx, err)
		}
		bd.Scale = &scale
	}
	return idx, bd, nil
}

func decodePhysBone(key string, jb *jsonBone) (int, *PhysBoneData, error) {
	idx, err := strconv.Atoi(key)
	if err != nil {
		return 0, nil, errors.Wrapf(ErrCorruptFile, "physbone index %q", key)
	}
	pd := &PhysBoneData{}
	if pd.Pos, err = ParseVec(jb.Pos); err != nil {
		return 0, nil, errors.Wrapf(ErrCorruptFile, "physbone %d Pos: %v", idx, err)
	}
	if pd.Ang, err = ParseAng(jb.Ang); err != nil {
		return 0, nil, errors.Wrapf(ErrCorruptFile, "physbone %d Ang: %v", idx, err)
	}
	if jb.Moveable != nil {
		pd.Moveable = *jb.Moveable
	}
	if (jb.LocalPos == nil) != (jb.LocalAng == nil) {
		return 0, nil, errors.Wrapf(ErrCorruptFile, "physbone %d has only one of LocalPos/LocalAng", idx)
	}
	if jb.LocalPos != nil {
		lp, err := ParseVec(*jb.LocalPos)
		if err != nil {
			return 0, nil, errors.Wrapf(ErrCorruptFile, "physbone %d LocalPos: %v", idx, err)
		}
		la, err := ParseAng(*jb.LocalAng)
		if err != nil {
			return 0, nil, errors.Wrapf(ErrCorruptFile, "physbone %d LocalAng: %v", idx, err)
		}
		pd.LocalPos, pd.LocalAng = &lp, &la
	}
	return idx, pd, nil
}

// Encode serializes the file in the same JSON layout SMH writes, four-space
// indented. Encode(Decode(data)) preserves every decoded value, including
// modifier tracks this package does not interpret.
func Encode(f *File) ([]byte, error) {
	switch f.Version {
	case Version2, Version3, Version4:
	default:
		return nil, errors.Wrapf(ErrUnsupportedVersion, "version %d", f.Version)
	}

	jf := jsonFile{
		Map:      f.Map,
		Entities: make([]*jsonEntity, 0, len(f.Entities)),
	}
	for _, e := range f.Entities {
		je, err := encodeEntity(e, f.Version)
		if err != nil {
			return nil, errors.Wrapf(err, "entity %q", e.Model)
		}
		jf.Entities = append(jf.Entities, je)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	if err := enc.Encode(&jf); err != nil {
		return nil, errors.Wrap(err, "marshal")
	}
	return buf.Bytes(), nil
}

func encodeEntity(e *Entity, version Version) (*jsonEntity, error) {
	je := &jsonEntity{
		Model:  e.Model,
		Frames: make([]*jsonFrame, 0, len(e.Frames)),
	}
	if version != Version2 {
		if e.Properties == nil {
			return nil, errors.Wrapf(ErrCorruptFile, "version %d entity without Properties", version)
		}
		je.Properties = &jsonProperties{
			Model:        e.Properties.Model,
			Name:         e.Properties.Name,
			Class:        e.Properties.Class,
			TimelineMods: e.Properties.TimelineMods,
		}
		if version == Version3 {
			timelines := e.Properties.Timelines
			je.Properties.Timelines = &timelines
		}
	}
	for _, fr := range e.Frames {
		jfr, err := encodeFrame(fr, version)
		if err != nil {
			return nil, errors.Wrapf(err, "frame %d", fr.Position)
		}
		je.Frames = append(je.Frames, jfr)
	}
	return je, nil
}

func encodeFrame(fr *Frame, version Version) (*jsonFrame, error) {
	jfr := &jsonFrame{
		Position:   fr.Position,
		EntityData: map[string]json.RawMessage{},
	}

	if fr.Bones != nil {
		table := make(map[string]*jsonBone, len(fr.Bones))
		for idx, bd := range fr.Bones {
			jb := &jsonBone{Pos: FormatVec(bd.Pos), Ang: FormatAng(bd.Ang)}
			if bd.Scale != nil {
				s := FormatVec(*bd.Scale)
				jb.Scale = &s
			}
			table[strconv.Itoa(idx)] = jb
		}
		raw, err := json.Marshal(table)
		if err != nil {
			return nil, errors.Wrap(err, "bones table")
		}
		jfr.EntityData["bones"] = raw
	}

	if fr.PhysBones != nil {
		table := make(map[string]*jsonBone, len(fr.PhysBones))
		for idx, pd := range fr.PhysBones {
			moveable := pd.Moveable
			jb := &jsonBone{
				Pos:      FormatVec(pd.Pos),
				Ang:      FormatAng(pd.Ang),
				Moveable: &moveable,
			}
			if pd.LocalPos != nil && pd.LocalAng != nil {
				lp, la := FormatVec(*pd.LocalPos), FormatAng(*pd.LocalAng)
				jb.LocalPos, jb.LocalAng = &lp, &la
			}
			table[strconv.Itoa(idx)] = jb
		}
		raw, err := json.Marshal(table)
		if err != nil {
			return nil, errors.Wrap(err, "physbones table")
		}
		jfr.EntityData["physbones"] = raw
	}

	for track, raw := range fr.Modifiers {
		jfr.EntityData[track] = raw
	}

	if version == Version4 {
		easeIn, easeOut := fr.EaseIn, fr.EaseOut
		if easeIn == nil {
			easeIn = map[string]float64{}
			for track := range jfr.EntityData {
				easeIn[track] = 0
			}
		}
		if easeOut == nil {
			easeOut = map[string]float64{}
			for track := range jfr.EntityData {
				easeOut[track] = 0
			}
		}
		var err error
		if jfr.EaseIn, err = json.Marshal(easeIn); err != nil {
			return nil, err
		}
		if jfr.EaseOut, err = json.Marshal(easeOut); err != nil {
			return nil, err
		}
	} else {
		var err error
		if jfr.EaseIn, err = json.Marshal(fr.EaseInScalar); err != nil {
			return nil, err
		}
		if jfr.EaseOut, err = json.Marshal(fr.EaseOutScalar); err != nil {
			return nil, err
		}
		if version == Version3 {
			modifier := fr.Modifier
			jfr.Modifier = &modifier
		}
	}
	return jfr, nil
}

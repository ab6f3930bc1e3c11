// Package gltfexport renders an armature action as a glTF skeleton preview.
// One node per bone carries the rest pose; one animation carries the keyed
// local translations and rotations. Useful for eyeballing a transfer in any
// glTF viewer without a host application.
package gltfexport

import (
	"io"
	"log"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/vlazed/smh_bridge/host"
	"github.com/vlazed/smh_bridge/mathx"
)

const DefaultFPS = 30.0

func vec3f(v [3]float64) [3]float32 {
	return [3]float32{float32(v[0]), float32(v[1]), float32(v[2])}
}

func quatf(q mathx.Transform) [4]float32 {
	return [4]float32{float32(q.Rot.V[0]), float32(q.Rot.V[1]), float32(q.Rot.V[2]), float32(q.Rot.W)}
}

// Export builds a document with the armature skeleton and one animation for
// the given action.
func Export(arm *host.Armature, act *host.Action, fps float64) *gltf.Document {
	if fps <= 0 {
		fps = DefaultFPS
	}
	doc := gltf.NewDocument()
	doc.Asset.Generator = "smh_bridge"

	nodeOf := make(map[string]uint32, len(arm.Bones))
	for _, b := range arm.Bones {
		local := b.RestLocal()
		node := &gltf.Node{
			Name:        b.Name,
			Translation: local.Pos,
			Rotation:    [4]float64{local.Rot.V[0], local.Rot.V[1], local.Rot.V[2], local.Rot.W},
		}
		idx := uint32(len(doc.Nodes))
		doc.Nodes = append(doc.Nodes, node)
		nodeOf[b.Name] = idx
		if b.Parent == "" {
			doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, idx)
		} else {
			parent := doc.Nodes[nodeOf[b.Parent]]
			parent.Children = append(parent.Children, idx)
		}
	}

	anim := &gltf.Animation{Name: act.Name}
	for _, bone := range act.Bones() {
		b := arm.Bone(bone)
		if b == nil {
			log.Printf("[gltfexport] action %q keys unknown bone %q, skipped", act.Name, bone)
			continue
		}
		ch := act.Channel(bone)
		if ch == nil || len(ch.Frames) == 0 {
			continue
		}
		times := make([]float32, len(ch.Frames))
		locs := make([][3]float32, len(ch.Frames))
		rots := make([][4]float32, len(ch.Frames))
		restLocal := b.RestLocal()
		for i, fr := range ch.Frames {
			basis, _ := act.ReadBone(bone, fr)
			local := restLocal.Mul(basis)
			times[i] = float32(float64(fr) / fps)
			locs[i] = vec3f(local.Pos)
			rots[i] = quatf(local)
		}
		input := modeler.WriteAccessor(doc, 0, times)
		doc.Accessors[input].Min = []float64{float64(times[0])}
		doc.Accessors[input].Max = []float64{float64(times[len(times)-1])}

		node := nodeOf[bone]
		addChannel(anim, node, gltf.TRSTranslation, input, modeler.WriteAccessor(doc, 0, locs))
		addChannel(anim, node, gltf.TRSRotation, input, modeler.WriteAccessor(doc, 0, rots))
	}
	if len(anim.Channels) != 0 {
		doc.Animations = append(doc.Animations, anim)
	}
	return doc
}

func addChannel(anim *gltf.Animation, node uint32, path gltf.TRSProperty, input, output uint32) {
	sampler := uint32(len(anim.Samplers))
	anim.Samplers = append(anim.Samplers, &gltf.AnimationSampler{
		Input:         input,
		Output:        output,
		Interpolation: gltf.InterpolationLinear,
	})
	anim.Channels = append(anim.Channels, &gltf.Channel{
		Sampler: gltf.Index(sampler),
		Target: gltf.ChannelTarget{
			Node: gltf.Index(node),
			Path: path,
		},
	})
}

// Save writes the preview next to wherever the caller wants it.
func Save(arm *host.Armature, act *host.Action, fps float64, path string) error {
	return gltf.Save(Export(arm, act, fps), path)
}

// EncodeBinary streams the document as binary glTF.
func EncodeBinary(w io.Writer, doc *gltf.Document) error {
	encoder := gltf.NewEncoder(w)
	encoder.AsBinary = true
	return encoder.Encode(doc)
}

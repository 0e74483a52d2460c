package assetdb

import (
	"bytes"
	"encoding/binary"
	"fmt"

	dmat "github.com/flywave/go3d/float64/mat4"
	"github.com/flywave/go3d/float64/quaternion"
	dvec3 "github.com/flywave/go3d/float64/vec3"
	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"

	"github.com/qmuntal/gltf"
)

// OpenGLTFFile reads a .gltf or .glb file and builds a document from
// it. Buffers are resolved by the reader; images stay unresolved until
// ImageData asks for them.
func OpenGLTFFile(path string, opts Options, sink *DiagSink) (*Document, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, &OpenError{Reason: err.Error()}
	}
	return OpenGLTFDocument(doc, opts, sink)
}

// OpenGLTFDocument builds a document from an already parsed glTF tree.
func OpenGLTFDocument(doc *gltf.Document, opts Options, sink *DiagSink) (*Document, error) {
	g := &gltfLoader{doc: doc, raw: &RawScene{Root: -1, Blobs: map[string][]byte{}}}
	if err := g.build(); err != nil {
		return nil, err
	}
	return Open(g.raw, opts, sink)
}

type gltfLoader struct {
	doc *gltf.Document
	raw *RawScene

	meshSkin   map[uint32]uint32 // mesh id -> skin id of the first node binding one
	trackByAcc map[uint32]int
	timesByAcc map[uint32][]float32
}

func (g *gltfLoader) build() error {
	g.meshSkin = make(map[uint32]uint32)
	g.trackByAcc = make(map[uint32]int)
	g.timesByAcc = make(map[uint32][]float32)
	doc := g.doc

	for _, nd := range doc.Nodes {
		rn := RawNode{Name: nd.Name, Transform: nodeTransform(nd)}
		for _, c := range nd.Children {
			rn.Children = append(rn.Children, int(c))
		}
		if nd.Mesh != nil {
			rn.Meshes = []int{int(*nd.Mesh)}
			if nd.Skin != nil {
				if _, ok := g.meshSkin[*nd.Mesh]; !ok {
					g.meshSkin[*nd.Mesh] = *nd.Skin
				}
			}
		}
		if nd.Camera != nil {
			g.raw.Cameras = append(g.raw.Cameras, gltfCamera(nd.Name, doc.Cameras[*nd.Camera]))
		}
		g.raw.Nodes = append(g.raw.Nodes, rn)
	}

	// unnamed synthetic root over the default scene's roots; the
	// flattener discards it and keeps the scene roots top level
	root := RawNode{Transform: dmat.Ident}
	if len(doc.Scenes) > 0 {
		scene := 0
		if doc.Scene != nil {
			scene = int(*doc.Scene)
		}
		for _, n := range doc.Scenes[scene].Nodes {
			root.Children = append(root.Children, int(n))
		}
	} else {
		// no scene: treat every node nobody claims as a child as a root
		child := make(map[int]bool)
		for _, nd := range doc.Nodes {
			for _, c := range nd.Children {
				child[int(c)] = true
			}
		}
		for n := range doc.Nodes {
			if !child[n] {
				root.Children = append(root.Children, n)
			}
		}
	}
	g.raw.Root = len(g.raw.Nodes)
	g.raw.Nodes = append(g.raw.Nodes, root)

	for i, mh := range doc.Meshes {
		rm, err := g.buildMesh(uint32(i), mh)
		if err != nil {
			return err
		}
		g.raw.Meshes = append(g.raw.Meshes, rm)
	}

	for _, mtl := range doc.Materials {
		g.raw.Materials = append(g.raw.Materials, g.buildMaterial(mtl))
	}

	for _, an := range doc.Animations {
		ra, err := g.buildAnimation(an)
		if err != nil {
			return err
		}
		g.raw.Animations = append(g.raw.Animations, ra)
	}
	return nil
}

// nodeTransform prefers the explicit matrix and falls back to TRS.
// Parsed documents may carry either all-zero or identity defaults for
// the unused representation.
func nodeTransform(nd *gltf.Node) dmat.T {
	zero, ident := true, true
	for i, v := range nd.Matrix {
		if v != 0 {
			zero = false
		}
		if i%5 == 0 {
			if v != 1 {
				ident = false
			}
		} else if v != 0 {
			ident = false
		}
	}
	if !zero && !ident {
		var m dmat.T
		for c := 0; c < 4; c++ {
			for r := 0; r < 4; r++ {
				m[c][r] = float64(nd.Matrix[c*4+r])
			}
		}
		return m
	}

	t := dvec3.T{float64(nd.Translation[0]), float64(nd.Translation[1]), float64(nd.Translation[2])}
	r := quaternion.T{float64(nd.Rotation[0]), float64(nd.Rotation[1]), float64(nd.Rotation[2]), float64(nd.Rotation[3])}
	if r[0] == 0 && r[1] == 0 && r[2] == 0 && r[3] == 0 {
		r[3] = 1
	}
	s := dvec3.T{float64(nd.Scale[0]), float64(nd.Scale[1]), float64(nd.Scale[2])}
	if s[0] == 0 && s[1] == 0 && s[2] == 0 {
		s = dvec3.T{1, 1, 1}
	}
	return *dmat.Compose(&t, &r, &s)
}

func (g *gltfLoader) buildMesh(id uint32, mh *gltf.Mesh) (RawMesh, error) {
	rm := RawMesh{Name: mh.Name}
	for _, ps := range mh.Primitives {
		rp, err := g.buildPrimitive(id, ps)
		if err != nil {
			return rm, err
		}
		rm.Primitives = append(rm.Primitives, rp)
	}
	return rm, nil
}

func (g *gltfLoader) buildPrimitive(mesh uint32, ps *gltf.Primitive) (RawPrimitive, error) {
	doc := g.doc
	rp := RawPrimitive{Material: -1}
	if ps.Material != nil {
		rp.Material = int(*ps.Material)
	}

	if idx, ok := ps.Attributes["POSITION"]; ok {
		err := readAccessor(doc, doc.Accessors[idx], func(res interface{}) {
			rp.Positions = append(rp.Positions, vec3.T(*res.(*[3]float32)))
		})
		if err != nil {
			return rp, err
		}
	}
	if idx, ok := ps.Attributes["NORMAL"]; ok {
		err := readAccessor(doc, doc.Accessors[idx], func(res interface{}) {
			rp.Normals = append(rp.Normals, vec3.T(*res.(*[3]float32)))
		})
		if err != nil {
			return rp, err
		}
	}
	if idx, ok := ps.Attributes["TEXCOORD_0"]; ok {
		var uv []vec2.T
		err := readAccessor(doc, doc.Accessors[idx], func(res interface{}) {
			uv = append(uv, vec2.T(*res.(*[2]float32)))
		})
		if err != nil {
			return rp, err
		}
		rp.TexCoords = append(rp.TexCoords, uv)
	}
	if idx, ok := ps.Attributes["TEXCOORD_1"]; ok {
		var uv []vec2.T
		err := readAccessor(doc, doc.Accessors[idx], func(res interface{}) {
			uv = append(uv, vec2.T(*res.(*[2]float32)))
		})
		if err != nil {
			return rp, err
		}
		rp.TexCoords = append(rp.TexCoords, uv)
	}
	if idx, ok := ps.Attributes["COLOR_0"]; ok {
		acc := doc.Accessors[idx]
		if acc.ComponentType == gltf.ComponentFloat {
			err := readAccessor(doc, acc, func(res interface{}) {
				switch v := res.(type) {
				case *[4]float32:
					rp.Colors = append(rp.Colors, *v)
				case *[3]float32:
					rp.Colors = append(rp.Colors, [4]float32{v[0], v[1], v[2], 1})
				}
			})
			if err != nil {
				return rp, err
			}
		}
	}
	if idx, ok := ps.Attributes["TANGENT"]; ok {
		var ws []float32
		err := readAccessor(doc, doc.Accessors[idx], func(res interface{}) {
			v := res.(*[4]float32)
			rp.Tangents = append(rp.Tangents, vec3.T{v[0], v[1], v[2]})
			ws = append(ws, v[3])
		})
		if err != nil {
			return rp, err
		}
		if len(rp.Normals) == len(rp.Tangents) {
			for i := range rp.Tangents {
				bt := vec3.Cross(&rp.Normals[i], &rp.Tangents[i])
				rp.Bitangents = append(rp.Bitangents, bt.Scaled(ws[i]))
			}
		}
	}

	if ps.Indices != nil {
		err := readAccessor(doc, doc.Accessors[*ps.Indices], func(res interface{}) {
			switch v := res.(type) {
			case *uint8:
				rp.Indices = append(rp.Indices, uint32(*v))
			case *uint16:
				rp.Indices = append(rp.Indices, uint32(*v))
			case *uint32:
				rp.Indices = append(rp.Indices, *v)
			}
		})
		if err != nil {
			return rp, err
		}
	}

	if skin, ok := g.meshSkin[mesh]; ok {
		if err := g.buildBones(&rp, doc.Skins[skin], ps); err != nil {
			return rp, err
		}
	}
	return rp, nil
}

// buildBones scatters JOINTS_0/WEIGHTS_0 pairs onto per-bone weight
// lists. Joints that never receive a weight are not emitted.
func (g *gltfLoader) buildBones(rp *RawPrimitive, skin *gltf.Skin, ps *gltf.Primitive) error {
	doc := g.doc
	ji, ok := ps.Attributes["JOINTS_0"]
	if !ok {
		return nil
	}
	wi, ok := ps.Attributes["WEIGHTS_0"]
	if !ok {
		return nil
	}

	var joints []uint32
	err := readAccessor(doc, doc.Accessors[ji], func(res interface{}) {
		switch v := res.(type) {
		case *[4]uint8:
			joints = append(joints, uint32(v[0]), uint32(v[1]), uint32(v[2]), uint32(v[3]))
		case *[4]uint16:
			joints = append(joints, uint32(v[0]), uint32(v[1]), uint32(v[2]), uint32(v[3]))
		case *[4]uint32:
			joints = append(joints, v[0], v[1], v[2], v[3])
		}
	})
	if err != nil {
		return err
	}
	var weights []float32
	err = readAccessor(doc, doc.Accessors[wi], func(res interface{}) {
		v := res.(*[4]float32)
		weights = append(weights, v[0], v[1], v[2], v[3])
	})
	if err != nil {
		return err
	}
	if len(joints) != len(weights) {
		return &UnsupportedError{Kind: "skin", Detail: "joint and weight streams differ in length"}
	}

	ibms := make([]dmat.T, len(skin.Joints))
	for i := range ibms {
		ibms[i] = dmat.Ident
	}
	if skin.InverseBindMatrices != nil {
		slot := 0
		err = readAccessor(doc, doc.Accessors[*skin.InverseBindMatrices], func(res interface{}) {
			v := res.(*[16]float32)
			if slot < len(ibms) {
				for c := 0; c < 4; c++ {
					for r := 0; r < 4; r++ {
						ibms[slot][c][r] = float64(v[c*4+r])
					}
				}
			}
			slot++
		})
		if err != nil {
			return err
		}
	}

	bones := make([]*RawBone, len(skin.Joints))
	for i := 0; i < len(joints); i += 4 {
		vert := uint32(i / 4)
		for k := 0; k < 4; k++ {
			j, w := joints[i+k], weights[i+k]
			if w == 0 || int(j) >= len(bones) {
				continue
			}
			if bones[j] == nil {
				name := ""
				if int(skin.Joints[j]) < len(doc.Nodes) {
					name = doc.Nodes[skin.Joints[j]].Name
				}
				bones[j] = &RawBone{Name: name, Offset: ibms[j]}
			}
			bones[j].Weights = append(bones[j].Weights, RawVertexWeight{Vertex: vert, Weight: w})
		}
	}
	for _, b := range bones {
		if b != nil {
			rp.Bones = append(rp.Bones, *b)
		}
	}
	return nil
}

func (g *gltfLoader) buildMaterial(mtl *gltf.Material) RawMaterial {
	rm := RawMaterial{Name: mtl.Name}
	if pbr := mtl.PBRMetallicRoughness; pbr != nil {
		if pbr.BaseColorFactor != nil {
			c := pbr.BaseColorFactor
			rm.Properties = append(rm.Properties, floatProp(PropColorBase, 0,
				float32(c[0]), float32(c[1]), float32(c[2]), float32(c[3])))
		}
		if pbr.MetallicFactor != nil {
			rm.Properties = append(rm.Properties, floatProp(PropScalarMetallic, 0, float32(*pbr.MetallicFactor)))
		}
		if pbr.RoughnessFactor != nil {
			rm.Properties = append(rm.Properties, floatProp(PropScalarRoughness, 0, float32(*pbr.RoughnessFactor)))
		}
		if pbr.BaseColorTexture != nil {
			g.addTexture(&rm, pbr.BaseColorTexture.Index, pbr.BaseColorTexture.TexCoord, TexSemanticBaseColor)
		}
		if pbr.MetallicRoughnessTexture != nil {
			g.addTexture(&rm, pbr.MetallicRoughnessTexture.Index, pbr.MetallicRoughnessTexture.TexCoord, TexSemanticMetallicRoughness)
		}
	}
	ef := mtl.EmissiveFactor
	if ef[0] != 0 || ef[1] != 0 || ef[2] != 0 {
		rm.Properties = append(rm.Properties, floatProp(PropColorEmissive, 0,
			float32(ef[0]), float32(ef[1]), float32(ef[2])))
	}
	if mtl.NormalTexture != nil && mtl.NormalTexture.Index != nil {
		g.addTexture(&rm, *mtl.NormalTexture.Index, mtl.NormalTexture.TexCoord, TexSemanticNormal)
	}
	if mtl.EmissiveTexture != nil {
		g.addTexture(&rm, mtl.EmissiveTexture.Index, mtl.EmissiveTexture.TexCoord, TexSemanticEmissive)
	}
	if mtl.OcclusionTexture != nil && mtl.OcclusionTexture.Index != nil {
		g.addTexture(&rm, *mtl.OcclusionTexture.Index, mtl.OcclusionTexture.TexCoord, TexSemanticOcclusion)
	}
	return rm
}

func (g *gltfLoader) addTexture(rm *RawMaterial, tex, uvset, semantic uint32) {
	key, ok := g.imageKey(tex)
	if !ok {
		return
	}
	rm.Properties = append(rm.Properties, stringProp(PropTexFile, 0, semantic, key))
	if uvset != 0 {
		rm.Properties = append(rm.Properties, intProp(PropTexUVSet, 0, int32(uvset)))
	}
}

// imageKey resolves a texture to a stable content key. URI images stay
// lazy behind the loader; embedded images are copied into the blob
// table under a fragment key.
func (g *gltfLoader) imageKey(tex uint32) (string, bool) {
	doc := g.doc
	if int(tex) >= len(doc.Textures) || doc.Textures[tex].Source == nil {
		return "", false
	}
	src := *doc.Textures[tex].Source
	if int(src) >= len(doc.Images) {
		return "", false
	}
	img := doc.Images[src]
	if img.URI != "" {
		return img.URI, true
	}
	if img.BufferView == nil {
		return "", false
	}
	key := fmt.Sprintf("#/images/%d", src)
	if _, ok := g.raw.Blobs[key]; !ok {
		bv := doc.BufferViews[*img.BufferView]
		data := doc.Buffers[bv.Buffer].Data[bv.ByteOffset : bv.ByteOffset+bv.ByteLength]
		g.raw.Blobs[key] = append([]byte(nil), data...)
	}
	return key, true
}

func (g *gltfLoader) buildAnimation(an *gltf.Animation) (RawAnimation, error) {
	// glTF keys are seconds already
	ra := RawAnimation{Name: an.Name, TicksPerSecond: 1}
	byNode := make(map[int]*RawChannel)
	var order []int

	for _, ch := range an.Channels {
		if ch.Sampler == nil || ch.Target.Node == nil {
			continue
		}
		sp := an.Samplers[*ch.Sampler]
		if sp.Input == nil || sp.Output == nil {
			continue
		}

		times, err := g.timesFor(*sp.Input)
		if err != nil {
			return ra, err
		}
		buf, err := g.trackBufferFor(*sp.Output)
		if err != nil {
			return ra, err
		}
		track := &RawTrack{
			Times:  times,
			Buffer: buf,
			Interp: gltfInterp(sp.Interpolation),
			Before: ExtrapConstant,
			After:  ExtrapConstant,
		}

		node := int(*ch.Target.Node)
		rc, ok := byNode[node]
		if !ok {
			rc = &RawChannel{Node: node}
			byNode[node] = rc
			order = append(order, node)
		}
		switch ch.Target.Path {
		case gltf.TRSTranslation:
			rc.Translation = track
		case gltf.TRSRotation:
			rc.Rotation = track
		case gltf.TRSScale:
			rc.Scaling = track
		default:
			// morph weights are out of scope
		}
	}
	for _, n := range order {
		ra.Channels = append(ra.Channels, *byNode[n])
	}
	return ra, nil
}

// timesFor yields one shared key slice per input accessor so samplers
// reusing an input observe the same keys.
func (g *gltfLoader) timesFor(acc uint32) ([]float32, error) {
	if ts, ok := g.timesByAcc[acc]; ok {
		return ts, nil
	}
	var ts []float32
	err := readAccessor(g.doc, g.doc.Accessors[acc], func(res interface{}) {
		if v, ok := res.(*float32); ok {
			ts = append(ts, *v)
		}
	})
	if err != nil {
		return nil, err
	}
	g.timesByAcc[acc] = ts
	return ts, nil
}

// trackBufferFor interns one flat value buffer per output accessor so
// samplers sharing an output share a single buffer handle.
func (g *gltfLoader) trackBufferFor(acc uint32) (int, error) {
	if h, ok := g.trackByAcc[acc]; ok {
		return h, nil
	}
	var data []float32
	err := readAccessor(g.doc, g.doc.Accessors[acc], func(res interface{}) {
		switch v := res.(type) {
		case *float32:
			data = append(data, *v)
		case *[3]float32:
			data = append(data, v[0], v[1], v[2])
		case *[4]float32:
			data = append(data, v[0], v[1], v[2], v[3])
		}
	})
	if err != nil {
		return 0, err
	}
	h := len(g.raw.TrackData)
	g.raw.TrackData = append(g.raw.TrackData, data)
	g.trackByAcc[acc] = h
	return h, nil
}

func gltfInterp(in gltf.Interpolation) Interpolation {
	switch in {
	case gltf.InterpolationStep:
		return InterpStep
	case gltf.InterpolationCubicSpline:
		return InterpSpline
	default:
		return InterpLinear
	}
}

func gltfCamera(name string, cam *gltf.Camera) RawCamera {
	rc := RawCamera{Name: name}
	if cam.Perspective != nil {
		rc.Perspective = true
		rc.FOV = float64(cam.Perspective.Yfov)
		rc.Near = float64(cam.Perspective.Znear)
		if cam.Perspective.Zfar != nil {
			rc.Far = float64(*cam.Perspective.Zfar)
		}
		if cam.Perspective.AspectRatio != nil {
			rc.Aspect = float64(*cam.Perspective.AspectRatio)
		}
	} else if cam.Orthographic != nil {
		rc.XMag = float64(cam.Orthographic.Xmag)
		rc.YMag = float64(cam.Orthographic.Ymag)
		rc.Near = float64(cam.Orthographic.Znear)
		rc.Far = float64(cam.Orthographic.Zfar)
	}
	return rc
}

func readAccessor(doc *gltf.Document, acc *gltf.Accessor, process func(interface{})) error {
	if acc.BufferView == nil {
		return &UnsupportedError{Kind: "accessor", Detail: "sparse or empty accessor"}
	}
	bv := doc.BufferViews[*acc.BufferView]
	buffer := doc.Buffers[bv.Buffer]
	bf := bytes.NewBuffer(buffer.Data[int(bv.ByteOffset+acc.ByteOffset):int(bv.ByteOffset+bv.ByteLength)])

	var fcs interface{}
	if acc.Type == gltf.AccessorVec2 {
		if acc.ComponentType == gltf.ComponentUshort {
			fcs = &[2]uint16{}
		} else if acc.ComponentType == gltf.ComponentUint {
			fcs = &[2]uint32{}
		} else if acc.ComponentType == gltf.ComponentFloat {
			fcs = &[2]float32{}
		}
	} else if acc.Type == gltf.AccessorVec3 {
		if acc.ComponentType == gltf.ComponentUshort {
			fcs = &[3]uint16{}
		} else if acc.ComponentType == gltf.ComponentUint {
			fcs = &[3]uint32{}
		} else if acc.ComponentType == gltf.ComponentFloat {
			fcs = &[3]float32{}
		}
	} else if acc.Type == gltf.AccessorVec4 {
		if acc.ComponentType == gltf.ComponentUbyte {
			fcs = &[4]uint8{}
		} else if acc.ComponentType == gltf.ComponentUshort {
			fcs = &[4]uint16{}
		} else if acc.ComponentType == gltf.ComponentUint {
			fcs = &[4]uint32{}
		} else if acc.ComponentType == gltf.ComponentFloat {
			fcs = &[4]float32{}
		}
	} else if acc.Type == gltf.AccessorMat4 {
		if acc.ComponentType == gltf.ComponentFloat {
			fcs = &[16]float32{}
		}
	} else if acc.Type == gltf.AccessorScalar {
		if acc.ComponentType == gltf.ComponentUbyte {
			n := uint8(0)
			fcs = &n
		} else if acc.ComponentType == gltf.ComponentUshort {
			n := uint16(0)
			fcs = &n
		} else if acc.ComponentType == gltf.ComponentUint {
			n := uint32(0)
			fcs = &n
		} else if acc.ComponentType == gltf.ComponentFloat {
			n := float32(0)
			fcs = &n
		}
	}
	if fcs == nil {
		return &UnsupportedError{Kind: "accessor", Detail: fmt.Sprintf("type %v component %v", acc.Type, acc.ComponentType)}
	}

	for i := 0; i < int(acc.Count); i++ {
		if err := binary.Read(bf, binary.LittleEndian, fcs); err != nil {
			return err
		}
		process(fcs)
	}
	return nil
}

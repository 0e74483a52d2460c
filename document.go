package assetdb

import (
	"math"

	dmat "github.com/flywave/go3d/float64/mat4"
	"github.com/flywave/go3d/vec2"
)

// Document is one normalized asset database. All tables are built by
// Open and immutable afterwards; Close discards them together with the
// decoder cache. No two documents share any mutable state.
type Document struct {
	opts Options
	sink *DiagSink
	open bool

	scene      SceneTables
	meshes     []*FlatMesh
	materials  []*Material
	textures   []Texture
	images     []Image
	skins      []*Skin
	animations []*Animation
	cameras    []Camera
	lights     []Light

	names struct {
		object    nameTable
		mesh      nameTable
		material  nameTable
		texture   nameTable
		animation nameTable
		skin      nameTable
		camera    nameTable
		light     nameTable
	}

	buildErrs []error
	cache     decoderCache
}

type nameTable map[string]uint32

// put records the first id seen under a name; later ids with the same
// name keep their table entry but are not reachable by name.
func (t nameTable) put(name string, id uint32) {
	if name == "" {
		return
	}
	if _, ok := t[name]; !ok {
		t[name] = id
	}
}

func (t nameTable) id(name string) (uint32, bool) {
	id, ok := t[name]
	return id, ok
}

// Open runs every normalization stage over the raw scene and returns
// an immutable document. All stages run synchronously to completion;
// there is no partial construction. On an open failure nothing is
// retained, so re-opening starts from a clean state.
func Open(raw *RawScene, opts Options, sink *DiagSink) (*Document, error) {
	opts = opts.normalized()

	fr, err := flattenScene(raw, sink)
	if err != nil {
		return nil, err
	}

	d := &Document{opts: opts, sink: sink}
	d.scene.Nodes = fr.nodes
	d.scene.MeshAttachments = fr.meshAtt
	d.buildErrs = append(d.buildErrs, fr.errs...)

	// meshes, in primitive discovery order
	for i, key := range fr.meshKeys {
		name := ""
		if key.Mesh >= 0 && key.Mesh < len(raw.Meshes) {
			name = raw.Meshes[key.Mesh].Name
		}
		d.meshes = append(d.meshes, buildFlatMesh(key, name, fr.meshPrims[i]))
	}

	nodeByName := make(map[string]uint32)
	for i := range d.scene.Nodes {
		if n := d.scene.Nodes[i].Name; n != "" {
			if _, ok := nodeByName[n]; !ok {
				nodeByName[n] = uint32(i)
			}
		}
	}

	skins, errs := buildSkins(d.meshes, fr.meshPrims, nodeByName, opts, sink)
	d.skins = skins
	d.buildErrs = append(d.buildErrs, errs...)

	// zero-or-one skin reference per node, derived from whichever of
	// its mesh slots is skinned
	skinned := make(map[uint32]bool)
	for _, at := range d.scene.MeshAttachments {
		m := d.meshes[at.Mesh]
		if m.Skin != InvalidIndex && !skinned[at.Node] {
			skinned[at.Node] = true
			d.scene.SkinAttachments = append(d.scene.SkinAttachments, SkinAttachment{Node: at.Node, Skin: m.Skin})
		}
	}

	mt := buildMaterials(raw, fr.needDefaultMaterial, opts, sink)
	d.materials = mt.materials
	d.textures = mt.textures
	d.images = mt.images

	anims, errs := buildAnimations(raw, fr, opts, sink)
	d.animations = anims
	d.buildErrs = append(d.buildErrs, errs...)

	for i := range raw.Cameras {
		d.cameras = append(d.cameras, Camera(raw.Cameras[i]))
	}
	for i := range raw.Lights {
		d.lights = append(d.lights, Light(raw.Lights[i]))
	}
	d.scene.CameraAttachments, d.scene.LightAttachments = resolveAttachments(raw, d.scene.Nodes, sink)

	d.buildNames()
	d.open = true
	return d, nil
}

func (d *Document) buildNames() {
	d.names.object = nameTable{}
	d.names.mesh = nameTable{}
	d.names.material = nameTable{}
	d.names.texture = nameTable{}
	d.names.animation = nameTable{}
	d.names.skin = nameTable{}
	d.names.camera = nameTable{}
	d.names.light = nameTable{}

	for i := range d.scene.Nodes {
		d.names.object.put(d.scene.Nodes[i].Name, uint32(i))
	}
	for i, m := range d.meshes {
		d.names.mesh.put(m.Name, uint32(i))
	}
	for i, m := range d.materials {
		d.names.material.put(m.Name, uint32(i))
	}
	for i := range d.textures {
		d.names.texture.put(d.textures[i].Name, uint32(i))
	}
	for i, a := range d.animations {
		d.names.animation.put(a.Name, uint32(i))
	}
	for i, s := range d.skins {
		d.names.skin.put(s.Name, uint32(i))
	}
	for i := range d.cameras {
		d.names.camera.put(d.cameras[i].Name, uint32(i))
	}
	for i := range d.lights {
		d.names.light.put(d.lights[i].Name, uint32(i))
	}
}

// Close discards every table and the decoder cache. The document
// returns to a clean not-open state.
func (d *Document) Close() {
	*d = Document{}
}

// IsOpen reports whether the document holds built tables.
func (d *Document) IsOpen() bool { return d.open }

// Diags returns the diagnostics collected while building.
func (d *Document) Diags() []Diag { return d.sink.Diags() }

// BuildErrors returns the per-asset failures encountered while
// building. A failed asset never aborts unrelated ones.
func (d *Document) BuildErrors() []error { return d.buildErrs }

// Scene returns the flattened node and attachment tables.
func (d *Document) Scene() *SceneTables { return &d.scene }

func (d *Document) ObjectCount() uint32    { return uint32(len(d.scene.Nodes)) }
func (d *Document) MeshCount() uint32      { return uint32(len(d.meshes)) }
func (d *Document) MaterialCount() uint32  { return uint32(len(d.materials)) }
func (d *Document) TextureCount() uint32   { return uint32(len(d.textures)) }
func (d *Document) ImageCount() uint32     { return uint32(len(d.images)) }
func (d *Document) AnimationCount() uint32 { return uint32(len(d.animations)) }
func (d *Document) SkinCount() uint32      { return uint32(len(d.skins)) }
func (d *Document) CameraCount() uint32    { return uint32(len(d.cameras)) }
func (d *Document) LightCount() uint32     { return uint32(len(d.lights)) }

func (d *Document) ObjectIDForName(name string) (uint32, bool)    { return d.names.object.id(name) }
func (d *Document) MeshIDForName(name string) (uint32, bool)      { return d.names.mesh.id(name) }
func (d *Document) MaterialIDForName(name string) (uint32, bool)  { return d.names.material.id(name) }
func (d *Document) TextureIDForName(name string) (uint32, bool)   { return d.names.texture.id(name) }
func (d *Document) AnimationIDForName(name string) (uint32, bool) { return d.names.animation.id(name) }
func (d *Document) SkinIDForName(name string) (uint32, bool)      { return d.names.skin.id(name) }
func (d *Document) CameraIDForName(name string) (uint32, bool)    { return d.names.camera.id(name) }
func (d *Document) LightIDForName(name string) (uint32, bool)     { return d.names.light.id(name) }

func (d *Document) ObjectName(id uint32) (string, bool) {
	if int(id) >= len(d.scene.Nodes) {
		return "", false
	}
	return d.scene.Nodes[id].Name, true
}

func (d *Document) MeshName(id uint32) (string, bool) {
	if int(id) >= len(d.meshes) {
		return "", false
	}
	return d.meshes[id].Name, true
}

func (d *Document) MaterialName(id uint32) (string, bool) {
	if int(id) >= len(d.materials) {
		return "", false
	}
	return d.materials[id].Name, true
}

func (d *Document) AnimationName(id uint32) (string, bool) {
	if int(id) >= len(d.animations) {
		return "", false
	}
	return d.animations[id].Name, true
}

func (d *Document) Node(id uint32) (*FlatNode, error) {
	if int(id) >= len(d.scene.Nodes) {
		return nil, indexErr("object", int(id), len(d.scene.Nodes))
	}
	return &d.scene.Nodes[id], nil
}

func (d *Document) Mesh(id uint32) (*FlatMesh, error) {
	if int(id) >= len(d.meshes) {
		return nil, indexErr("mesh", int(id), len(d.meshes))
	}
	return d.meshes[id], nil
}

func (d *Document) Material(id uint32) (*Material, error) {
	if int(id) >= len(d.materials) {
		return nil, indexErr("material", int(id), len(d.materials))
	}
	return d.materials[id], nil
}

func (d *Document) TextureRecord(id uint32) (*Texture, error) {
	if int(id) >= len(d.textures) {
		return nil, indexErr("texture", int(id), len(d.textures))
	}
	return &d.textures[id], nil
}

func (d *Document) ImageRecord(id uint32) (*Image, error) {
	if int(id) >= len(d.images) {
		return nil, indexErr("image", int(id), len(d.images))
	}
	return &d.images[id], nil
}

func (d *Document) Animation(id uint32) (*Animation, error) {
	if int(id) >= len(d.animations) {
		return nil, indexErr("animation", int(id), len(d.animations))
	}
	return d.animations[id], nil
}

func (d *Document) Skin(id uint32) (*Skin, error) {
	if int(id) >= len(d.skins) {
		return nil, indexErr("skin", int(id), len(d.skins))
	}
	return d.skins[id], nil
}

func (d *Document) Camera(id uint32) (*Camera, error) {
	if int(id) >= len(d.cameras) {
		return nil, indexErr("camera", int(id), len(d.cameras))
	}
	return &d.cameras[id], nil
}

func (d *Document) Light(id uint32) (*Light, error) {
	if int(id) >= len(d.lights) {
		return nil, indexErr("light", int(id), len(d.lights))
	}
	return &d.lights[id], nil
}

// GlobalTransform composes a node's transform with all of its
// ancestors. parent < index guarantees the chain terminates.
func (d *Document) GlobalTransform(id uint32) dmat.T {
	m := dmat.Ident
	if int(id) >= len(d.scene.Nodes) {
		return m
	}
	for cur := int32(id); cur >= 0; cur = d.scene.Nodes[cur].Parent {
		p := dmat.Ident
		p.AssignMul(&d.scene.Nodes[cur].Transform, &m)
		m = p
	}
	return m
}

// buildFlatMesh copies one primitive's buffers into a standalone mesh
// asset. A nil primitive (zero-primitive mesh) yields vertex count 0.
func buildFlatMesh(key MeshKey, name string, rp *RawPrimitive) *FlatMesh {
	fm := &FlatMesh{Name: name, Origin: key, Skin: InvalidIndex}
	if rp == nil {
		return fm
	}
	fm.Positions = append(fm.Positions, rp.Positions...)
	fm.Normals = append(fm.Normals, rp.Normals...)
	fm.Tangents = append(fm.Tangents, rp.Tangents...)
	fm.Bitangents = append(fm.Bitangents, rp.Bitangents...)
	for _, uv := range rp.TexCoords {
		fm.TexCoords = append(fm.TexCoords, append([]vec2.T(nil), uv...))
	}
	fm.Colors = append(fm.Colors, rp.Colors...)
	fm.Indices = append(fm.Indices, rp.Indices...)

	bbx := [6]float64{math.Inf(1), math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for _, v := range fm.Positions {
		addPoint(&bbx, &[3]float64{float64(v[0]), float64(v[1]), float64(v[2])})
	}
	if len(fm.Positions) > 0 {
		fm.BBox = bbx
	}
	return fm
}

package assetdb

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/qmuntal/gltf"
)

func floatBytes(buf []byte, vs ...float32) []byte {
	for _, v := range vs {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(v))
		buf = append(buf, b[:]...)
	}
	return buf
}

func ushortBytes(buf []byte, vs ...uint16) []byte {
	for _, v := range vs {
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], v)
		buf = append(buf, b[:]...)
	}
	return buf
}

// triDocument is a hand-built single-triangle asset: one translated
// mesh node, one camera node, one material and a two-key translation
// animation.
func triDocument() *gltf.Document {
	var data []byte
	data = floatBytes(data, 0, 0, 0, 1, 0, 0, 0, 1, 0) // positions
	data = ushortBytes(data, 0, 1, 2)                  // indices
	data = floatBytes(data, 0, 2)                      // key times
	data = floatBytes(data, 1, 2, 3, 4, 5, 6)          // key values

	return &gltf.Document{
		Buffers: []*gltf.Buffer{{ByteLength: uint32(len(data)), Data: data}},
		BufferViews: []*gltf.BufferView{
			{Buffer: 0, ByteOffset: 0, ByteLength: 36},
			{Buffer: 0, ByteOffset: 36, ByteLength: 6},
			{Buffer: 0, ByteOffset: 42, ByteLength: 8},
			{Buffer: 0, ByteOffset: 50, ByteLength: 24},
		},
		Accessors: []*gltf.Accessor{
			{BufferView: gltf.Index(0), Count: 3, Type: gltf.AccessorVec3, ComponentType: gltf.ComponentFloat},
			{BufferView: gltf.Index(1), Count: 3, Type: gltf.AccessorScalar, ComponentType: gltf.ComponentUshort},
			{BufferView: gltf.Index(2), Count: 2, Type: gltf.AccessorScalar, ComponentType: gltf.ComponentFloat},
			{BufferView: gltf.Index(3), Count: 2, Type: gltf.AccessorVec3, ComponentType: gltf.ComponentFloat},
		},
		Meshes: []*gltf.Mesh{{
			Name: "tri",
			Primitives: []*gltf.Primitive{{
				Attributes: gltf.Attribute{"POSITION": 0},
				Indices:    gltf.Index(1),
				Material:   gltf.Index(0),
			}},
		}},
		Materials: []*gltf.Material{{
			Name: "paint",
			PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
				BaseColorFactor: &[4]float32{1, 0, 0, 1},
			},
		}},
		Cameras: []*gltf.Camera{{Perspective: &gltf.Perspective{Yfov: 0.5, Znear: 0.125}}},
		Nodes: []*gltf.Node{
			{Name: "tri", Mesh: gltf.Index(0), Translation: [3]float32{1, 2, 3}},
			{Name: "cam", Camera: gltf.Index(0)},
		},
		Scene:  gltf.Index(0),
		Scenes: []*gltf.Scene{{Nodes: []uint32{0, 1}}},
		Animations: []*gltf.Animation{{
			Name: "move",
			Channels: []*gltf.Channel{{
				Sampler: gltf.Index(0),
				Target:  gltf.ChannelTarget{Node: gltf.Index(0), Path: gltf.TRSTranslation},
			}},
			Samplers: []*gltf.AnimationSampler{{
				Input:         gltf.Index(2),
				Output:        gltf.Index(3),
				Interpolation: gltf.InterpolationLinear,
			}},
		}},
	}
}

func TestOpenGLTFDocument(t *testing.T) {
	d, err := OpenGLTFDocument(triDocument(), DefaultOptions(), NewDiagSink(nil))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if len(d.BuildErrors()) != 0 {
		t.Fatalf("build errors: %v", d.BuildErrors())
	}
	if d.ObjectCount() != 2 || d.MeshCount() != 1 || d.MaterialCount() != 1 {
		t.Errorf("counts = %d objects %d meshes %d materials",
			d.ObjectCount(), d.MeshCount(), d.MaterialCount())
	}

	id, ok := d.ObjectIDForName("tri")
	if !ok {
		t.Fatal("tri not in the name table")
	}
	g := d.GlobalTransform(id)
	if g[3][0] != 1 || g[3][1] != 2 || g[3][2] != 3 {
		t.Errorf("translation = (%g,%g,%g), want (1,2,3)", g[3][0], g[3][1], g[3][2])
	}

	fm, _ := d.Mesh(0)
	if len(fm.Positions) != 3 {
		t.Fatalf("positions = %d, want 3", len(fm.Positions))
	}
	if fm.Positions[1][0] != 1 || fm.Positions[2][1] != 1 {
		t.Errorf("positions misread: %v", fm.Positions)
	}
	if len(fm.Indices) != 3 || fm.Indices[0] != 0 || fm.Indices[2] != 2 {
		t.Errorf("indices = %v, want [0 1 2]", fm.Indices)
	}

	m, _ := d.Material(0)
	if m.Name != "paint" || len(m.Attributes) != 1 {
		t.Fatalf("material = %q with %d attributes", m.Name, len(m.Attributes))
	}
	if m.Attributes[0].Kind != AttrColor || m.Attributes[0].Color != [4]float32{1, 0, 0, 1} {
		t.Errorf("base color = %v", m.Attributes[0].Color)
	}

	cams := d.Scene().CameraAttachments
	if len(cams) != 1 {
		t.Fatalf("camera attachments = %d, want 1", len(cams))
	}
	if camID, _ := d.ObjectIDForName("cam"); cams[0].Node != camID {
		t.Errorf("camera node = %d, want %d", cams[0].Node, camID)
	}
	cam, _ := d.Camera(0)
	if !cam.Perspective || cam.FOV != 0.5 || cam.Near != 0.125 {
		t.Errorf("camera = %+v", cam)
	}

	an, _ := d.Animation(0)
	if an.Name != "move" || len(an.Tracks) != 1 {
		t.Fatalf("animation = %q with %d tracks", an.Name, len(an.Tracks))
	}
	tr := an.Tracks[0]
	if tr.Kind != TrackTranslation || tr.Target != id {
		t.Errorf("track kind %d target %d, want translation on tri", tr.Kind, tr.Target)
	}
	if len(tr.Keys) != 2 || tr.Keys[1] != 2 {
		t.Errorf("keys = %v, want [0 2]", tr.Keys)
	}
	if tr.Vec[1][0] != 4 || tr.Vec[1][2] != 6 {
		t.Errorf("values misread: %v", tr.Vec)
	}
}

func TestOpenGLTFDocumentNoScene(t *testing.T) {
	doc := &gltf.Document{
		Nodes: []*gltf.Node{
			{Name: "a", Children: []uint32{1}},
			{Name: "b"},
		},
	}
	d, err := OpenGLTFDocument(doc, DefaultOptions(), NewDiagSink(nil))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	// only the parentless node seeds the tree: b shows up once, under a
	if len(d.BuildErrors()) != 0 {
		t.Fatalf("build errors: %v", d.BuildErrors())
	}
	if d.ObjectCount() != 2 {
		t.Fatalf("objects = %d, want 2", d.ObjectCount())
	}
	bID, _ := d.ObjectIDForName("b")
	nd, _ := d.Node(bID)
	if aID, _ := d.ObjectIDForName("a"); nd.Parent != int32(aID) {
		t.Errorf("b's parent = %d, want a", nd.Parent)
	}
}

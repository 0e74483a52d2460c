package assetdb

import (
	"testing"

	dmat "github.com/flywave/go3d/float64/mat4"
	"github.com/flywave/go3d/vec3"
)

func translate(x, y, z float64) dmat.T {
	m := dmat.Ident
	m[3][0], m[3][1], m[3][2] = x, y, z
	return m
}

// triPrim builds a single-triangle primitive.
func triPrim(material int) RawPrimitive {
	return RawPrimitive{
		Material:  material,
		Positions: []vec3.T{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Indices:   []uint32{0, 1, 2},
	}
}

func TestFlattenDiscardsRootOnce(t *testing.T) {
	raw := &RawScene{
		Root: 0,
		Nodes: []RawNode{
			{Name: "root", Transform: translate(1, 0, 0), Children: []int{1}},
			{Name: "child", Transform: translate(0, 1, 0), Children: []int{2}},
			{Name: "grandchild", Transform: translate(0, 0, 1)},
		},
	}
	fr, err := flattenScene(raw, NewDiagSink(nil))
	if err != nil {
		t.Fatalf("flatten failed: %v", err)
	}
	if len(fr.nodes) != 2 {
		t.Fatalf("node count = %d, want 2", len(fr.nodes))
	}
	// root basis lands on the direct child only
	got := fr.nodes[0].Transform
	if got[3][0] != 1 || got[3][1] != 1 || got[3][2] != 0 {
		t.Errorf("child translation = (%g,%g,%g), want (1,1,0)", got[3][0], got[3][1], got[3][2])
	}
	// the grandchild keeps its local transform
	got = fr.nodes[1].Transform
	if got[3][0] != 0 || got[3][1] != 0 || got[3][2] != 1 {
		t.Errorf("grandchild translation = (%g,%g,%g), want (0,0,1)", got[3][0], got[3][1], got[3][2])
	}
	if fr.nodes[0].Parent != -1 || fr.nodes[1].Parent != 0 {
		t.Errorf("parents = %d,%d, want -1,0", fr.nodes[0].Parent, fr.nodes[1].Parent)
	}
}

func TestFlattenParentBeforeChild(t *testing.T) {
	raw := &RawScene{
		Root: 0,
		Nodes: []RawNode{
			{Name: "root", Transform: dmat.Ident, Children: []int{1, 4}},
			{Name: "a", Transform: dmat.Ident, Children: []int{2, 3}},
			{Name: "a0", Transform: dmat.Ident},
			{Name: "a1", Transform: dmat.Ident},
			{Name: "b", Transform: dmat.Ident, Children: []int{5}},
			{Name: "b0", Transform: dmat.Ident},
		},
	}
	fr, err := flattenScene(raw, NewDiagSink(nil))
	if err != nil {
		t.Fatalf("flatten failed: %v", err)
	}
	want := []string{"a", "a0", "a1", "b", "b0"}
	for i, name := range want {
		if fr.nodes[i].Name != name {
			t.Errorf("node %d = %q, want %q", i, fr.nodes[i].Name, name)
		}
	}
	for i := range fr.nodes {
		if p := fr.nodes[i].Parent; p >= int32(i) {
			t.Errorf("node %d has parent %d, want parent < index", i, p)
		}
	}
}

func TestFlattenKeepsChildlessRoot(t *testing.T) {
	raw := &RawScene{
		Root:  0,
		Nodes: []RawNode{{Name: "solo", Transform: translate(5, 0, 0)}},
	}
	fr, err := flattenScene(raw, NewDiagSink(nil))
	if err != nil {
		t.Fatalf("flatten failed: %v", err)
	}
	if len(fr.nodes) != 1 || fr.nodes[0].Name != "solo" {
		t.Fatalf("nodes = %v, want the root kept", fr.nodes)
	}
	if fr.nodes[0].Transform[3][0] != 5 {
		t.Errorf("root transform lost")
	}
}

func TestFlattenSplitsPrimitives(t *testing.T) {
	raw := &RawScene{
		Root: 0,
		Nodes: []RawNode{
			{Transform: dmat.Ident, Children: []int{1, 2}},
			{Name: "hull", Transform: dmat.Ident, Meshes: []int{0}},
			{Name: "tail", Transform: dmat.Ident},
		},
		Meshes: []RawMesh{{
			Name:       "hull",
			Primitives: []RawPrimitive{triPrim(0), triPrim(0), triPrim(0)},
		}},
		Materials: []RawMaterial{{Name: "m"}},
	}
	fr, err := flattenScene(raw, NewDiagSink(nil))
	if err != nil {
		t.Fatalf("flatten failed: %v", err)
	}
	// synthetic nodes follow the owner immediately, before "tail"
	want := []string{"hull", "hull.1", "hull.2", "tail"}
	if len(fr.nodes) != len(want) {
		t.Fatalf("node count = %d, want %d", len(fr.nodes), len(want))
	}
	for i, name := range want {
		if fr.nodes[i].Name != name {
			t.Errorf("node %d = %q, want %q", i, fr.nodes[i].Name, name)
		}
	}
	if len(fr.meshAtt) != 3 || len(fr.meshKeys) != 3 {
		t.Fatalf("attachments = %d, meshes = %d, want 3 each", len(fr.meshAtt), len(fr.meshKeys))
	}
	for p, at := range fr.meshAtt {
		if at.Node != uint32(p) {
			t.Errorf("primitive %d attached to node %d, want %d", p, at.Node, p)
		}
		if at.Mesh != uint32(p) {
			t.Errorf("primitive %d mapped to mesh %d, want %d", p, at.Mesh, p)
		}
	}
	for i := 1; i < 3; i++ {
		if fr.nodes[i].Parent != 0 {
			t.Errorf("synthetic node %d parent = %d, want 0", i, fr.nodes[i].Parent)
		}
		if !matNearEqual(&fr.nodes[i].Transform, &dmat.Ident, matrixEps) {
			t.Errorf("synthetic node %d transform is not identity", i)
		}
	}
}

func TestFlattenEmptyMesh(t *testing.T) {
	raw := &RawScene{
		Root: 0,
		Nodes: []RawNode{
			{Transform: dmat.Ident, Children: []int{1}},
			{Name: "empty", Transform: dmat.Ident, Meshes: []int{0}},
		},
		Meshes: []RawMesh{{Name: "empty"}},
	}
	d, err := Open(raw, DefaultOptions(), NewDiagSink(nil))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if d.MeshCount() != 1 {
		t.Fatalf("mesh count = %d, want 1", d.MeshCount())
	}
	fm, _ := d.Mesh(0)
	if fm.VertexCount() != 0 {
		t.Errorf("vertex count = %d, want 0", fm.VertexCount())
	}
	// the slot still resolves to the synthetic default material
	if d.MaterialCount() != 1 {
		t.Fatalf("material count = %d, want 1 default", d.MaterialCount())
	}
	if name, _ := d.MaterialName(d.scene.MeshAttachments[0].Material); name != "default" {
		t.Errorf("slot material = %q, want default", name)
	}
}

func TestFlattenNoRoot(t *testing.T) {
	_, err := flattenScene(&RawScene{Root: -1}, NewDiagSink(nil))
	if _, ok := err.(*OpenError); !ok {
		t.Fatalf("err = %v, want *OpenError", err)
	}
}

func TestAttachmentsFirstNameMatch(t *testing.T) {
	raw := &RawScene{
		Root: 0,
		Nodes: []RawNode{
			{Transform: dmat.Ident, Children: []int{1, 2}},
			{Name: "eye", Transform: dmat.Ident},
			{Name: "eye", Transform: dmat.Ident},
		},
		Cameras: []RawCamera{{Name: "eye", Perspective: true, FOV: 1.2}},
		Lights:  []RawLight{{Name: "nothere", Type: LightPoint}},
	}
	sink := NewDiagSink(nil)
	d, err := Open(raw, DefaultOptions(), sink)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	sc := d.Scene()
	if len(sc.CameraAttachments) != 1 {
		t.Fatalf("camera attachments = %d, want 1", len(sc.CameraAttachments))
	}
	if sc.CameraAttachments[0].Node != 0 {
		t.Errorf("camera bound to node %d, want the first name match 0", sc.CameraAttachments[0].Node)
	}
	if len(sc.LightAttachments) != 0 {
		t.Errorf("light attachments = %d, want 0", len(sc.LightAttachments))
	}
	if sink.Count(DiagUnresolvedAttachment) != 1 {
		t.Errorf("unresolved diags = %d, want 1", sink.Count(DiagUnresolvedAttachment))
	}
}

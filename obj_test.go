package assetdb

import (
	"os"
	"path/filepath"
	"testing"
)

const deckOBJ = `mtllib deck.mtl
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
v 2 0 0
v 3 0 0
v 2 1 0
usemtl steel
f 1 2 3 4
usemtl paint
f 5 6 7
`

const deckMTL = `newmtl steel
Kd 1 0 0
d 0.5
bump normal.png
newmtl paint
Kd 0 1 0
map_Kd diffuse.png
`

func writeDeck(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	objPath := filepath.Join(dir, "deck.obj")
	if err := os.WriteFile(objPath, []byte(deckOBJ), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "deck.mtl"), []byte(deckMTL), 0o644); err != nil {
		t.Fatal(err)
	}
	return objPath
}

func TestOpenOBJFile(t *testing.T) {
	d, err := OpenOBJFile(writeDeck(t), DefaultOptions(), NewDiagSink(nil))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if len(d.BuildErrors()) != 0 {
		t.Fatalf("build errors: %v", d.BuildErrors())
	}

	// one primitive per usemtl group, the second on a synthetic child
	if d.MeshCount() != 2 || d.MaterialCount() != 2 || d.ObjectCount() != 2 {
		t.Fatalf("counts = %d meshes %d materials %d objects",
			d.MeshCount(), d.MaterialCount(), d.ObjectCount())
	}
	if _, ok := d.ObjectIDForName("deck"); !ok {
		t.Error("deck node missing")
	}
	if _, ok := d.ObjectIDForName("deck.1"); !ok {
		t.Error("synthetic child for the second group missing")
	}

	// the quad fans into two triangles sharing corner 0
	quad, err := d.Mesh(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(quad.Positions) != 6 || len(quad.Indices) != 6 {
		t.Fatalf("quad mesh has %d positions %d indices, want 6 and 6",
			len(quad.Positions), len(quad.Indices))
	}
	if quad.Positions[0] != quad.Positions[3] {
		t.Errorf("fan corners diverge: %v vs %v", quad.Positions[0], quad.Positions[3])
	}
	if quad.Positions[4][0] != 1 || quad.Positions[4][1] != 1 {
		t.Errorf("second fan triangle misses the far corner: %v", quad.Positions[4])
	}

	// no vn lines, so every vertex carries the computed face normal
	for i, n := range quad.Normals {
		if n[0] != 0 || n[1] != 0 || n[2] != 1 {
			t.Fatalf("normal %d = %v, want (0,0,1)", i, n)
		}
	}

	tri, err := d.Mesh(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(tri.Positions) != 3 {
		t.Errorf("triangle mesh has %d positions, want 3", len(tri.Positions))
	}
}

func TestOpenOBJFileMaterials(t *testing.T) {
	d, err := OpenOBJFile(writeDeck(t), DefaultOptions(), NewDiagSink(nil))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	steelID, ok := d.MaterialIDForName("steel")
	if !ok {
		t.Fatal("steel not in the material table")
	}
	steel, err := d.Material(steelID)
	if err != nil {
		t.Fatal(err)
	}
	var base *Attribute
	textures := 0
	for i := range steel.Attributes {
		a := &steel.Attributes[i]
		if a.Kind == AttrColor && a.Key == PropColorBase {
			base = a
		}
		if a.Kind == AttrTexture {
			textures++
		}
	}
	if base == nil {
		t.Fatal("steel has no base color")
	}
	if base.Color != [4]float32{1, 0, 0, 0.5} {
		t.Errorf("steel base color = %v, want dissolve folded into alpha", base.Color)
	}
	if textures != 1 {
		t.Errorf("steel texture attributes = %d, want the bump map only", textures)
	}

	paintID, _ := d.MaterialIDForName("paint")
	paint, err := d.Material(paintID)
	if err != nil {
		t.Fatal(err)
	}
	base = nil
	for i := range paint.Attributes {
		a := &paint.Attributes[i]
		if a.Kind == AttrColor && a.Key == PropColorBase {
			base = a
		}
	}
	if base == nil || base.Color != [4]float32{0, 1, 0, 1} {
		t.Fatalf("paint base color = %+v, want opaque green", base)
	}
}

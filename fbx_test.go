package assetdb

import (
	"testing"

	vec3d "github.com/flywave/go3d/float64/vec3"
)

func TestQuadToTrianglesShortDiagonal(t *testing.T) {
	// a tall thin quad: the 0-2 diagonal is the short one
	verts := []*vec3d.T{
		{0, 0, 0},
		{1, 0, 0},
		{1, 0.1, 0},
		{0, 4, 0},
	}
	got := quadToTriangles([]int{10, 11, 12, 13}, verts)
	want := [][]int{{10, 11, 12}, {10, 12, 13}}
	if len(got) != 2 {
		t.Fatalf("triangles = %d, want 2", len(got))
	}
	for i := range want {
		if got[i][0] != want[i][0] || got[i][1] != want[i][1] || got[i][2] != want[i][2] {
			t.Errorf("triangle %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestQuadToTrianglesLongDiagonal(t *testing.T) {
	// here the 1-3 diagonal is shorter, so the split flips
	verts := []*vec3d.T{
		{0, 0, 0},
		{1, 0.1, 0},
		{4, 0, 0},
		{1, -0.1, 0},
	}
	got := quadToTriangles([]int{0, 1, 2, 3}, verts)
	want := [][]int{{0, 1, 3}, {1, 2, 3}}
	for i := range want {
		if got[i][0] != want[i][0] || got[i][1] != want[i][1] || got[i][2] != want[i][2] {
			t.Errorf("triangle %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestPentagonToTriangles(t *testing.T) {
	got := pentagonToTriangles([]int{5, 6, 7, 8, 9})
	want := [][]int{{5, 6, 7}, {5, 7, 9}, {7, 8, 9}}
	if len(got) != 3 {
		t.Fatalf("triangles = %d, want 3", len(got))
	}
	seen := map[int]int{}
	for i := range want {
		for k := 0; k < 3; k++ {
			if got[i][k] != want[i][k] {
				t.Errorf("triangle %d = %v, want %v", i, got[i], want[i])
			}
			seen[got[i][k]]++
		}
	}
	// every corner of the pentagon keeps at least one triangle
	for c := 5; c <= 9; c++ {
		if seen[c] == 0 {
			t.Errorf("corner %d dropped from the fan", c)
		}
	}
}

func TestDistance(t *testing.T) {
	a := &vec3d.T{1, 2, 3}
	b := &vec3d.T{4, 6, 3}
	if d := distance(a, b); d != 5 {
		t.Errorf("distance = %g, want 5", d)
	}
	if d := distance(a, a); d != 0 {
		t.Errorf("self distance = %g, want 0", d)
	}
}

package assetdb

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	dmat "github.com/flywave/go3d/float64/mat4"
	vec3d "github.com/flywave/go3d/float64/vec3"

	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"

	fbx "github.com/flywave/ofbx"
)

// OpenFBXFile reads an FBX file and builds a document from its static
// scene. Each mesh arrives with its global transform baked onto its
// node; texture files resolve relative to the FBX directory.
func OpenFBXFile(path string, opts Options, sink *DiagSink) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &OpenError{Reason: err.Error()}
	}
	defer f.Close()
	scene, err := fbx.Load(f)
	if err != nil {
		return nil, &OpenError{Reason: err.Error()}
	}

	cv := &fbxLoader{
		scene:   scene,
		baseDir: filepath.Dir(path),
		raw:     &RawScene{Root: 0, Blobs: map[string][]byte{}},
		mtlMap:  map[*fbx.Material]int{},
	}
	cv.build()
	return Open(cv.raw, opts, sink)
}

type fbxLoader struct {
	scene   *fbx.Scene
	baseDir string
	raw     *RawScene
	mtlMap  map[*fbx.Material]int
}

func (cv *fbxLoader) build() {
	// unnamed root wrapping one node per mesh, discarded on flatten
	root := RawNode{Transform: dmat.Ident}
	cv.raw.Nodes = append(cv.raw.Nodes, root)

	for _, mh := range cv.scene.Meshes {
		mtx := fbx.GetGlobalMatrix(mh)
		nd := RawNode{
			Name:      mh.Name(),
			Transform: dmat.FromArray(mtx.ToArray()),
			Meshes:    []int{len(cv.raw.Meshes)},
		}
		cv.raw.Nodes[0].Children = append(cv.raw.Nodes[0].Children, len(cv.raw.Nodes))
		cv.raw.Nodes = append(cv.raw.Nodes, nd)
		cv.raw.Meshes = append(cv.raw.Meshes, cv.buildMesh(mh))
	}
}

// buildMesh expands faces per corner, one primitive per material batch
// in encounter order. Quads and pentagons split into triangles on the
// shorter diagonal.
func (cv *fbxLoader) buildMesh(mh *fbx.Mesh) RawMesh {
	rm := RawMesh{Name: mh.Name()}
	g := mh.Geometry

	batchs := g.Materials
	if len(batchs) == 0 {
		batchs = make([]int, len(g.Faces))
	}

	prims := make(map[int]int)
	for i := 0; i < len(batchs) && i < len(g.Faces); i++ {
		batchId := batchs[i]
		pi, ok := prims[batchId]
		if !ok {
			pi = len(rm.Primitives)
			prims[batchId] = pi
			rp := RawPrimitive{Material: -1}
			if batchId >= 0 && batchId < len(mh.Materials) {
				rp.Material = cv.internMaterial(mh.Materials[batchId])
			}
			rm.Primitives = append(rm.Primitives, rp)
		}
		rp := &rm.Primitives[pi]

		face := g.Faces[i]
		newFaces := [][]int{face}
		switch len(face) {
		case 3:
		case 4:
			pts := []*vec3d.T{}
			for _, f := range face {
				v := g.Vertices[f]
				pts = append(pts, &vec3d.T{float64(v[0]), float64(v[1]), float64(v[2])})
			}
			newFaces = quadToTriangles(face, pts)
		case 5:
			newFaces = pentagonToTriangles(face)
		default:
			continue
		}

		for _, fc := range newFaces {
			base := uint32(len(rp.Positions))
			for _, f := range fc {
				vt := g.Vertices[f]
				rp.Positions = append(rp.Positions, vec3.T{float32(vt[0]), float32(vt[1]), float32(vt[2])})
				if g.UVs[0] != nil {
					if len(rp.TexCoords) == 0 {
						rp.TexCoords = append(rp.TexCoords, nil)
					}
					// corners past the UV channel's coverage get a zero
					// coordinate so the stream stays vertex-aligned
					uv := vec2.T{}
					if len(g.UVs[0]) > f {
						uv = vec2.T{float32(g.UVs[0][f][0]), float32(g.UVs[0][f][1])}
					}
					rp.TexCoords[0] = append(rp.TexCoords[0], uv)
				}
			}
			rp.Indices = append(rp.Indices, base, base+1, base+2)
		}
	}
	return rm
}

func (cv *fbxLoader) internMaterial(mt *fbx.Material) int {
	if mt == nil {
		return -1
	}
	if idx, ok := cv.mtlMap[mt]; ok {
		return idx
	}
	idx := len(cv.raw.Materials)
	cv.mtlMap[mt] = idx

	rm := RawMaterial{Name: fmt.Sprintf("material_%d", idx)}
	cl := mt.DiffuseColor
	rm.Properties = append(rm.Properties, floatProp(PropColorBase, 0,
		float32(cl.R), float32(cl.G), float32(cl.B)))
	cl = mt.EmissiveColor
	if cl.R != 0 || cl.G != 0 || cl.B != 0 {
		rm.Properties = append(rm.Properties, floatProp(PropColorEmissive, 0,
			float32(cl.R), float32(cl.G), float32(cl.B)))
	}
	if mt.Textures[0] != nil {
		rm.Properties = append(rm.Properties, stringProp(PropTexFile, 0, TexSemanticBaseColor, cv.textureKey(mt.Textures[0])))
	}
	if mt.Textures[1] != nil {
		rm.Properties = append(rm.Properties, stringProp(PropTexFile, 0, TexSemanticNormal, cv.textureKey(mt.Textures[1])))
	}
	cv.raw.Materials = append(cv.raw.Materials, rm)
	return idx
}

func (cv *fbxLoader) textureKey(tx *fbx.Texture) string {
	str := strings.ReplaceAll(tx.GetRelativeFileName().String(), "\\", "/")
	if str == "" {
		str = strings.ReplaceAll(tx.GetFileName(), "\\", "/")
	}
	_, fileName := filepath.Split(str)
	return filepath.Join(cv.baseDir, fileName)
}

func pentagonToTriangles(pent []int) [][]int {
	return [][]int{
		{pent[0], pent[1], pent[2]},
		{pent[0], pent[2], pent[4]},
		{pent[2], pent[3], pent[4]},
	}
}

func quadToTriangles(quad []int, vertices []*vec3d.T) [][]int {
	p0, p1, p2, p3 := vertices[0], vertices[1], vertices[2], vertices[3]

	diag1 := distance(p0, p2)
	diag2 := distance(p1, p3)

	if diag1 <= diag2 {
		return [][]int{
			{quad[0], quad[1], quad[2]},
			{quad[0], quad[2], quad[3]},
		}
	}
	return [][]int{
		{quad[0], quad[1], quad[3]},
		{quad[1], quad[2], quad[3]},
	}
}

func distance(a, b *vec3d.T) float64 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	dz := a[2] - b[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

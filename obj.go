package assetdb

import (
	"os"
	"path/filepath"
	"strings"

	gobj "github.com/flywave/go-obj"
	dmat "github.com/flywave/go3d/float64/mat4"

	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"
)

// OpenOBJFile reads a wavefront OBJ file and builds a document from
// it. The whole file becomes one mesh with one primitive per material
// group, attached to a single root node.
func OpenOBJFile(path string, opts Options, sink *DiagSink) (*Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &OpenError{Reason: err.Error()}
	}
	defer file.Close()

	reader := &gobj.ObjReader{}
	if err := reader.Read(file); err != nil {
		return nil, &OpenError{Reason: err.Error()}
	}

	cv := &objLoader{reader: reader, path: path}
	return Open(cv.build(), opts, sink)
}

type objLoader struct {
	reader *gobj.ObjReader
	path   string
}

func (cv *objLoader) build() *RawScene {
	name := strings.TrimSuffix(filepath.Base(cv.path), filepath.Ext(cv.path))
	raw := &RawScene{
		Root:  0,
		Nodes: []RawNode{{Name: name, Transform: dmat.Ident, Meshes: []int{0}}},
		Blobs: map[string][]byte{},
	}

	rm := RawMesh{Name: name}
	prims := make(map[string]int)
	var groups []string

	for _, face := range cv.reader.F {
		n := len(face.Corners)
		if n < 3 {
			continue
		}
		pi, ok := prims[face.Material]
		if !ok {
			pi = len(rm.Primitives)
			prims[face.Material] = pi
			groups = append(groups, face.Material)
			rm.Primitives = append(rm.Primitives, RawPrimitive{Material: -1})
		}
		rp := &rm.Primitives[pi]

		vi := make([]int, n)
		ti := make([]int, n)
		ni := make([]int, n)
		for i, c := range face.Corners {
			vi[i], ti[i], ni[i] = c.VertexIndex, c.TexcoordIndex, c.NormalIndex
		}
		for _, tri := range fanTriangles(n) {
			cv.appendTriangle(rp, tri, vi, ti, ni)
		}
	}
	mtls := cv.readMaterials()
	for pi, group := range groups {
		mat, ok := mtls[group]
		if !ok || mat == nil {
			continue
		}
		rm.Primitives[pi].Material = len(raw.Materials)
		raw.Materials = append(raw.Materials, objMaterial(group, mat, filepath.Dir(cv.path)))
	}
	raw.Meshes = append(raw.Meshes, rm)
	return raw
}

func (cv *objLoader) readMaterials() map[string]*gobj.Material {
	if cv.reader.MTL == "" {
		return nil
	}
	mtlPath := cv.reader.MTL
	if !strings.HasPrefix(mtlPath, "/") {
		mtlPath = filepath.Join(filepath.Dir(cv.path), cv.reader.MTL)
	}
	mtls, err := gobj.ReadMaterials(mtlPath)
	if err != nil {
		return nil
	}
	return mtls
}

// appendTriangle resolves one corner triple against the reader's
// vertex streams. tri indexes into the per-face vi/ti/ni lookups.
func (cv *objLoader) appendTriangle(rp *RawPrimitive, tri [3]int, vi, ti, ni []int) {
	reader := cv.reader
	var positions [3]vec3.T
	var texCoords [3]vec2.T
	var normals [3]vec3.T
	flat := false

	for i, c := range tri {
		if vi[c] >= 0 && vi[c] < len(reader.V) {
			positions[i] = reader.V[vi[c]]
		}
		if ti[c] >= 0 && ti[c] < len(reader.VT) {
			texCoords[i] = reader.VT[ti[c]]
		}
		if ni[c] >= 0 && ni[c] < len(reader.VN) {
			normals[i] = reader.VN[ni[c]]
		} else {
			flat = true
		}
	}
	if flat {
		n := calculateNormal(positions[0], positions[1], positions[2])
		normals = [3]vec3.T{n, n, n}
	}

	base := uint32(len(rp.Positions))
	if len(rp.TexCoords) == 0 {
		rp.TexCoords = append(rp.TexCoords, nil)
	}
	for i := 0; i < 3; i++ {
		rp.Positions = append(rp.Positions, positions[i])
		rp.Normals = append(rp.Normals, normals[i])
		rp.TexCoords[0] = append(rp.TexCoords[0], texCoords[i])
	}
	rp.Indices = append(rp.Indices, base, base+1, base+2)
}

// objMaterial maps MTL fields onto the shared property bag keys. MTL
// texture paths resolve through the image loader at decode time.
func objMaterial(name string, mat *gobj.Material, baseDir string) RawMaterial {
	rm := RawMaterial{Name: name}
	if len(mat.Diffuse) >= 3 {
		rm.Properties = append(rm.Properties, floatProp(PropColorBase, 0,
			mat.Diffuse[0], mat.Diffuse[1], mat.Diffuse[2], float32(mat.Opacity)))
	}
	if len(mat.Ambient) >= 3 {
		rm.Properties = append(rm.Properties, floatProp(PropColorAmbient, 0,
			mat.Ambient[0], mat.Ambient[1], mat.Ambient[2]))
	}
	if len(mat.Specular) >= 3 {
		rm.Properties = append(rm.Properties, floatProp(PropColorSpecular, 0,
			mat.Specular[0], mat.Specular[1], mat.Specular[2]))
	}
	if len(mat.Emissive) >= 3 {
		rm.Properties = append(rm.Properties, floatProp(PropColorEmissive, 0,
			mat.Emissive[0], mat.Emissive[1], mat.Emissive[2]))
	}
	if mat.Shininess > 0 {
		rm.Properties = append(rm.Properties, floatProp(PropScalarShininess, 0, float32(mat.Shininess)))
	}
	if mat.Metallic > 0 {
		rm.Properties = append(rm.Properties, floatProp(PropScalarMetallic, 0, mat.Metallic))
	}
	if mat.Roughness > 0 {
		rm.Properties = append(rm.Properties, floatProp(PropScalarRoughness, 0, mat.Roughness))
	}
	if mat.DiffuseTexture != "" {
		rm.Properties = append(rm.Properties, stringProp(PropTexFile, 0, TexSemanticBaseColor, filepath.Join(baseDir, mat.DiffuseTexture)))
	}
	if mat.BumpTexture != "" {
		rm.Properties = append(rm.Properties, stringProp(PropTexFile, 0, TexSemanticNormal, filepath.Join(baseDir, mat.BumpTexture)))
	}
	return rm
}

// fanTriangles fans an n-corner convex polygon into corner-index
// triples.
func fanTriangles(n int) [][3]int {
	triangles := make([][3]int, 0, n-2)
	for i := 1; i < n-1; i++ {
		triangles = append(triangles, [3]int{0, i, i + 1})
	}
	return triangles
}

func calculateNormal(v0, v1, v2 vec3.T) vec3.T {
	e1 := vec3.Sub(&v1, &v0)
	e2 := vec3.Sub(&v2, &v0)
	normal := vec3.Cross(&e1, &e2)

	length := normal.Length()
	if length > 0 {
		return vec3.T{normal[0] / length, normal[1] / length, normal[2] / length}
	}
	return vec3.T{0, 1, 0}
}

package assetdb

import (
	"encoding/binary"
	"math"
	"os"

	dmat "github.com/flywave/go3d/float64/mat4"
	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"
)

// RawScene is the normalization contract between a front end and the
// engine. Records live in arenas and reference each other by slice
// index, never by pointer, so every lookup table the engine builds is
// keyed by stable integers.
type RawScene struct {
	// Root is the handle of the root node, or -1 when the source
	// reports no valid root (a hard open failure).
	Root int

	Nodes     []RawNode
	Meshes    []RawMesh
	Materials []RawMaterial
	Cameras   []RawCamera
	Lights    []RawLight

	Animations []RawAnimation
	// TrackData is the arena of animation value buffers. Two tracks
	// that reference the same buffer handle share one buffer, which is
	// what the spline postprocessing pass keys its processed-set on.
	TrackData [][]float32

	// Blobs holds embedded image payloads keyed by content identity.
	Blobs map[string][]byte
}

// RawNode is one node of the source tree. Children and Meshes are
// handles into the RawScene arenas.
type RawNode struct {
	Name      string
	Transform dmat.T
	Children  []int
	Meshes    []int
}

// RawMesh is a possibly multi-primitive mesh.
type RawMesh struct {
	Name       string
	Primitives []RawPrimitive
}

// RawPrimitive carries the typed attribute buffers of one primitive.
// Position is the only attribute the engine requires; a primitive with
// no attributes at all still yields a flat mesh with vertex count 0.
type RawPrimitive struct {
	// Material is a handle into RawScene.Materials, or -1 when the
	// source leaves the slot out (the engine assigns a default).
	Material int

	Positions  []vec3.T
	Normals    []vec3.T
	Tangents   []vec3.T
	Bitangents []vec3.T
	TexCoords  [][]vec2.T
	Colors     [][4]float32
	Indices    []uint32

	Bones []RawBone
}

// RawBone is one entry of a per-mesh bone list: a node name plus the
// inverse-bind matrix and the vertex weights it drives.
type RawBone struct {
	Name    string
	Offset  dmat.T
	Weights []RawVertexWeight
}

type RawVertexWeight struct {
	Vertex uint32
	Weight float32
}

// RawTrack is one sampler sub-track. Times are in source ticks; Buffer
// is a handle into RawScene.TrackData holding the packed values:
// 3 floats per key for vectors, 4 for quaternions, tripled for spline
// tracks (in-tangent, value, out-tangent per key).
type RawTrack struct {
	Times  []float32
	Buffer int
	Interp Interpolation
	Before Extrapolation
	After  Extrapolation
}

// RawChannel targets one node with up to three independent sub-tracks.
type RawChannel struct {
	Node        int
	Translation *RawTrack
	Rotation    *RawTrack
	Scaling     *RawTrack
}

type RawAnimation struct {
	Name           string
	TicksPerSecond float64
	Channels       []RawChannel
}

// PropertyType declares how a raw material property's bytes are typed.
type PropertyType uint8

const (
	PropFloat32 PropertyType = iota
	PropFloat64
	PropInt32
	PropString
	PropBuffer
)

// RawProperty is one key/value entry of a material property bag.
type RawProperty struct {
	Key      string
	Layer    uint32
	Semantic uint32
	Type     PropertyType
	Data     []byte
}

type RawMaterial struct {
	Name       string
	Properties []RawProperty
}

// floatProp packs float32 values into a property payload.
func floatProp(key string, layer uint32, vs ...float32) RawProperty {
	data := make([]byte, 4*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	return RawProperty{Key: key, Layer: layer, Type: PropFloat32, Data: data}
}

func intProp(key string, layer uint32, v int32) RawProperty {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, uint32(v))
	return RawProperty{Key: key, Layer: layer, Type: PropInt32, Data: data}
}

func stringProp(key string, layer, semantic uint32, s string) RawProperty {
	return RawProperty{Key: key, Layer: layer, Semantic: semantic, Type: PropString, Data: []byte(s)}
}

// RawCamera attaches to the node whose name matches Name, per the
// source format's name-based attachment convention.
type RawCamera struct {
	Name        string
	Perspective bool
	FOV         float64
	Aspect      float64
	Near        float64
	Far         float64
	XMag        float64
	YMag        float64
}

type RawLight struct {
	Name        string
	Type        LightType
	Color       [3]float32
	Attenuation [3]float32
	InnerCone   float64
	OuterCone   float64
}

// ImageLoader supplies on-demand image bytes. Load returns false when
// the resource cannot be found; the engine tolerates that and caches
// the failure. Close is called once for every successful Load,
// including on decode-error paths.
type ImageLoader interface {
	Load(key string) ([]byte, bool)
	Close(key string)
}

// FileLoader reads images from the local filesystem.
type FileLoader struct{}

func (FileLoader) Load(key string) ([]byte, bool) {
	data, err := os.ReadFile(key)
	if err != nil {
		return nil, false
	}
	return data, true
}

func (FileLoader) Close(string) {}

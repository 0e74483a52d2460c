package assetdb

import (
	dmat "github.com/flywave/go3d/float64/mat4"
	"github.com/flywave/go3d/float64/quaternion"
	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"
)

// InvalidIndex marks an absent reference in an index field.
const InvalidIndex = ^uint32(0)

// FlatNode is a node after tree-to-array flattening. Its position in
// SceneTables.Nodes is its object index; Parent is -1 for a top-level
// node and otherwise strictly less than the node's own index.
type FlatNode struct {
	Parent    int32
	Transform dmat.T
	Name      string
}

// MeshAttachment binds one flat mesh and its material to a node.
// Multiple entries per node are legal only for meshes.
type MeshAttachment struct {
	Node     uint32
	Mesh     uint32
	Material uint32
}

type SkinAttachment struct {
	Node uint32
	Skin uint32
}

type CameraAttachment struct {
	Node   uint32
	Camera uint32
}

type LightAttachment struct {
	Node  uint32
	Light uint32
}

// SceneTables are the flattened node and attachment tables of one
// document, ordered by node traversal.
type SceneTables struct {
	Nodes             []FlatNode
	MeshAttachments   []MeshAttachment
	SkinAttachments   []SkinAttachment
	CameraAttachments []CameraAttachment
	LightAttachments  []LightAttachment
}

// MeshKey identifies a flat mesh by its origin: the set of flat mesh
// indices is a bijection with this key set, in discovery order.
type MeshKey struct {
	Mesh      int
	Primitive int
}

// JointWeight is one bone influence on a vertex, post skin merge.
type JointWeight struct {
	Joint  uint32
	Weight float32
}

// FlatMesh is one primitive lifted to a standalone mesh asset.
type FlatMesh struct {
	Name   string
	Origin MeshKey

	Positions  []vec3.T
	Normals    []vec3.T
	Tangents   []vec3.T
	Bitangents []vec3.T
	TexCoords  [][]vec2.T
	Colors     [][4]float32
	Indices    []uint32

	// Influences holds per-vertex bone influences with joint indices
	// already remapped into Skin's joint table. Empty when unskinned.
	Influences    [][]JointWeight
	MaxInfluences int
	Skin          uint32 // InvalidIndex when unskinned

	BBox [6]float64
}

// VertexCount reports the number of vertices; a degenerate primitive
// yields 0, never an error.
func (m *FlatMesh) VertexCount() int { return len(m.Positions) }

// Skin is a set of joints (object indices) plus their inverse-bind
// matrices. len(Joints) == len(InverseBind) always.
type Skin struct {
	Name        string
	Joints      []uint32
	InverseBind []dmat.T
}

type TrackKind uint8

const (
	TrackTranslation TrackKind = iota
	TrackRotation
	TrackScaling
)

type Interpolation uint8

const (
	InterpStep Interpolation = iota
	InterpLinear
	InterpSpline
)

type Extrapolation uint8

const (
	ExtrapConstant Extrapolation = iota
	ExtrapRepeat
)

// AnimationTrack is one typed, interpolation-tagged sub-track. Keys
// are seconds, strictly non-decreasing. Vec carries translation or
// scaling values, Quat rotation values; exactly one of them is set and
// its per-key length equals len(Keys). Spline tracks additionally
// carry per-key half-tangents, already rescaled by the key delta.
type AnimationTrack struct {
	Target uint32
	Kind   TrackKind
	Interp Interpolation
	Before Extrapolation
	After  Extrapolation

	Keys []float32

	Vec    []vec3.T
	VecIn  []vec3.T
	VecOut []vec3.T

	Quat    []quaternion.T
	QuatIn  []quaternion.T
	QuatOut []quaternion.T
}

type Animation struct {
	Name     string
	Duration float64
	Tracks   []AnimationTrack
}

type AttributeKind uint8

const (
	AttrColor AttributeKind = iota
	AttrScalar
	AttrTexture
	AttrTexTransform
	AttrUVSet
	AttrCustom
)

type CustomType uint8

const (
	CustomBuffer CustomType = iota
	CustomString
	CustomNumber
)

// TextureTransform is a recognized per-texture UV transform.
type TextureTransform struct {
	Offset   [2]float32
	Scale    [2]float32
	Rotation float32
}

// Attribute is one classified material property: either a recognized
// typed attribute or an opaque custom one, discriminated by Kind.
type Attribute struct {
	Key   string
	Layer uint32
	Kind  AttributeKind

	Color     [4]float32
	Scalar    float64
	Texture   uint32 // document texture index
	Slot      uint32 // per-material texture slot
	UVSet     uint32
	Transform TextureTransform

	CustomType CustomType
	Raw        []byte
}

// Material holds classified attributes in layer order. Layers gives
// the exclusive end offset of each layer's slice into Attributes;
// layer 0 implicitly starts at offset 0.
type Material struct {
	Name       string
	Attributes []Attribute
	Layers     []uint32
}

// LayerSlice returns the attribute slice of one layer.
func (m *Material) LayerSlice(layer int) []Attribute {
	if layer < 0 || layer >= len(m.Layers) {
		return nil
	}
	start := uint32(0)
	if layer > 0 {
		start = m.Layers[layer-1]
	}
	return m.Attributes[start:m.Layers[layer]]
}

// Texture references one deduplicated Image. Multiple textures may
// share an image.
type Texture struct {
	Name     string
	Image    uint32
	Semantic uint32
}

// Image is a deduplicated image source, keyed by content identity:
// a resolved file path or an embedded-blob key.
type Image struct {
	Key  string
	Blob []byte // nil for file-backed images
}

type Camera struct {
	Name        string
	Perspective bool
	FOV         float64
	Aspect      float64
	Near        float64
	Far         float64
	XMag        float64
	YMag        float64
}

type LightType uint8

const (
	LightDirectional LightType = iota
	LightPoint
	LightSpot
)

type Light struct {
	Name        string
	Type        LightType
	Color       [3]float32
	Attenuation [3]float32
	InnerCone   float64
	OuterCone   float64
}

package assetdb

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// Recognized property keys. A property is emitted as a typed attribute
// only when key, declared type and payload size all match.
const (
	PropColorBase     = "color.base"
	PropColorEmissive = "color.emissive"
	PropColorAmbient  = "color.ambient"
	PropColorSpecular = "color.specular"

	PropScalarMetallic    = "scalar.metallic"
	PropScalarRoughness   = "scalar.roughness"
	PropScalarOpacity     = "scalar.opacity"
	PropScalarShininess   = "scalar.shininess"
	PropScalarReflectance = "scalar.reflectance"

	PropTexFile      = "tex.file"
	PropTexUVSet     = "tex.uvset"
	PropTexTransform = "tex.transform"
)

// Texture semantics carried on RawProperty.Semantic.
const (
	TexSemanticBaseColor uint32 = iota
	TexSemanticNormal
	TexSemanticEmissive
	TexSemanticMetallicRoughness
	TexSemanticOcclusion
	TexSemanticSpecular
)

type materialTables struct {
	materials  []*Material
	textures   []Texture
	images     []Image
	imageByKey map[string]uint32
}

// buildMaterials classifies every raw property bag. The material table
// is 1:1 with the raw materials; when any mesh slot lacked a material
// a synthetic default is appended after them.
func buildMaterials(raw *RawScene, needDefault bool, opts Options, sink *DiagSink) *materialTables {
	mt := &materialTables{imageByKey: make(map[string]uint32)}
	for i := range raw.Materials {
		mt.materials = append(mt.materials, mt.classifyMaterial(raw, &raw.Materials[i], opts, sink))
	}
	if needDefault {
		mt.materials = append(mt.materials, defaultMaterial())
	}
	return mt
}

func defaultMaterial() *Material {
	return &Material{
		Name: "default",
		Attributes: []Attribute{{
			Key:   PropColorBase,
			Kind:  AttrColor,
			Color: [4]float32{1, 1, 1, 1},
		}},
		Layers: []uint32{1},
	}
}

// classifyMaterial walks the property bag grouped by its layer tag and
// emits attributes with each layer's slice kept contiguous. Texture
// slots are assigned in raw property order so index assignment is
// stable whether or not unrecognized texture properties appear in
// between: the counter advances even for skipped ones.
func (mt *materialTables) classifyMaterial(raw *RawScene, rm *RawMaterial, opts Options, sink *DiagSink) *Material {
	m := &Material{Name: rm.Name}

	slots := make([]uint32, len(rm.Properties))
	slot := uint32(0)
	for i := range rm.Properties {
		switch rm.Properties[i].Key {
		case PropTexFile:
			slots[i] = slot
			slot++
		case PropTexUVSet, PropTexTransform:
			// modifiers bind to the most recently seen texture property
			if slot > 0 {
				slots[i] = slot - 1
			}
		}
	}

	var layers []uint32
	seen := make(map[uint32]bool)
	for i := range rm.Properties {
		if l := rm.Properties[i].Layer; !seen[l] {
			seen[l] = true
			layers = append(layers, l)
		}
	}
	sort.Slice(layers, func(i, j int) bool { return layers[i] < layers[j] })

	for _, layer := range layers {
		for i := range rm.Properties {
			p := &rm.Properties[i]
			if p.Layer != layer {
				continue
			}
			attr, ok := mt.classifyProperty(raw, rm.Name, p, slots[i], opts, sink)
			if ok {
				m.Attributes = append(m.Attributes, attr)
			}
		}
		m.Layers = append(m.Layers, uint32(len(m.Attributes)))
	}
	return m
}

// classifyProperty is the pure classification step: a property becomes
// a recognized typed attribute, a custom attribute, or nothing.
func (mt *materialTables) classifyProperty(raw *RawScene, matName string, p *RawProperty, slot uint32, opts Options, sink *DiagSink) (Attribute, bool) {
	if !opts.RawPropertiesOnly {
		if attr, ok := mt.classifyKnown(raw, matName, p, slot, sink); ok {
			return attr, true
		}
	}
	if !opts.KeepCustomProperties && !opts.RawPropertiesOnly {
		return Attribute{}, false
	}
	return customAttribute(p, opts, sink)
}

func (mt *materialTables) classifyKnown(raw *RawScene, matName string, p *RawProperty, slot uint32, sink *DiagSink) (Attribute, bool) {
	switch p.Key {
	case PropColorBase, PropColorEmissive, PropColorAmbient, PropColorSpecular:
		if p.Type != PropFloat32 || (len(p.Data) != 12 && len(p.Data) != 16) {
			return Attribute{}, false
		}
		c := [4]float32{0, 0, 0, 1}
		for i := 0; i*4 < len(p.Data); i++ {
			c[i] = math.Float32frombits(binary.LittleEndian.Uint32(p.Data[i*4:]))
		}
		if p.Key == PropColorAmbient && c[0] == 1 && c[1] == 1 && c[2] == 1 {
			// encoders emit a white ambient term that washes out any
			// lighting model downstream; patched to black
			c[0], c[1], c[2] = 0, 0, 0
			sink.report(Diag{Kind: DiagAmbientForcedBlack, Asset: matName})
		}
		return Attribute{Key: p.Key, Layer: p.Layer, Kind: AttrColor, Color: c}, true

	case PropScalarMetallic, PropScalarRoughness, PropScalarOpacity, PropScalarShininess, PropScalarReflectance:
		v, ok := scalarValue(p)
		if !ok {
			return Attribute{}, false
		}
		return Attribute{Key: p.Key, Layer: p.Layer, Kind: AttrScalar, Scalar: v}, true

	case PropTexFile:
		if p.Type != PropString || len(p.Data) == 0 {
			// slot already consumed by the caller's counter
			return Attribute{}, false
		}
		tex := mt.internTexture(raw, matName, string(p.Data), p.Semantic)
		return Attribute{Key: p.Key, Layer: p.Layer, Kind: AttrTexture, Texture: tex, Slot: slot}, true

	case PropTexUVSet:
		if p.Type != PropInt32 || len(p.Data) != 4 {
			return Attribute{}, false
		}
		return Attribute{Key: p.Key, Layer: p.Layer, Kind: AttrUVSet, UVSet: binary.LittleEndian.Uint32(p.Data), Slot: slot}, true

	case PropTexTransform:
		if p.Type != PropFloat32 || len(p.Data) != 20 {
			return Attribute{}, false
		}
		var f [5]float32
		for i := range f {
			f[i] = math.Float32frombits(binary.LittleEndian.Uint32(p.Data[i*4:]))
		}
		return Attribute{Key: p.Key, Layer: p.Layer, Kind: AttrTexTransform, Slot: slot, Transform: TextureTransform{
			Offset:   [2]float32{f[0], f[1]},
			Scale:    [2]float32{f[2], f[3]},
			Rotation: f[4],
		}}, true
	}
	return Attribute{}, false
}

func scalarValue(p *RawProperty) (float64, bool) {
	switch {
	case p.Type == PropFloat32 && len(p.Data) == 4:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(p.Data))), true
	case p.Type == PropFloat64 && len(p.Data) == 8:
		return math.Float64frombits(binary.LittleEndian.Uint64(p.Data)), true
	case p.Type == PropInt32 && len(p.Data) == 4:
		return float64(int32(binary.LittleEndian.Uint32(p.Data))), true
	}
	return 0, false
}

// customAttribute emits an opaquely-typed attribute, typed by the raw
// size and declared primitive type. Payloads over the attribute-record
// budget are dropped with a diagnostic, never a hard failure.
func customAttribute(p *RawProperty, opts Options, sink *DiagSink) (Attribute, bool) {
	if len(p.Data) > opts.MaxCustomAttrBytes {
		sink.report(Diag{Kind: DiagCustomAttributeDropped, Detail: fmt.Sprintf("%s: %d bytes over budget %d", p.Key, len(p.Data), opts.MaxCustomAttrBytes)})
		return Attribute{}, false
	}
	attr := Attribute{Key: p.Key, Layer: p.Layer, Kind: AttrCustom, Raw: append([]byte(nil), p.Data...)}
	if v, ok := scalarValue(p); ok {
		attr.CustomType = CustomNumber
		attr.Scalar = v
	} else if p.Type == PropString {
		attr.CustomType = CustomString
	} else {
		attr.CustomType = CustomBuffer
	}
	return attr, true
}

// internTexture deduplicates images on their content key and appends
// one texture referencing the shared image.
func (mt *materialTables) internTexture(raw *RawScene, matName, key string, semantic uint32) uint32 {
	img, ok := mt.imageByKey[key]
	if !ok {
		img = uint32(len(mt.images))
		mt.imageByKey[key] = img
		mt.images = append(mt.images, Image{Key: key, Blob: raw.Blobs[key]})
	}
	idx := uint32(len(mt.textures))
	mt.textures = append(mt.textures, Texture{
		Name:     fmt.Sprintf("%s/%d", matName, idx),
		Image:    img,
		Semantic: semantic,
	})
	return idx
}

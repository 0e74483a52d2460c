package assetdb

import (
	mst "github.com/flywave/go-mst"
	dvec3 "github.com/flywave/go3d/float64/vec3"
	"github.com/flywave/go3d/vec3"
)

// ExportMST converts an open document into an mst mesh, one mesh node
// per scene attachment with world-space vertices, plus the combined
// bounding box. Texture decode failures degrade to untextured
// materials instead of failing the export.
func ExportMST(d *Document) (*mst.Mesh, *[6]float64, error) {
	if !d.open {
		return nil, nil, &OpenError{Reason: "document is not open"}
	}
	mesh := mst.NewMesh()
	bbx := dvec3.MinBox

	for i := range d.materials {
		mesh.Materials = append(mesh.Materials, d.exportMaterial(d.materials[i]))
	}

	for _, at := range d.scene.MeshAttachments {
		fm := d.meshes[at.Mesh]
		if fm.VertexCount() == 0 {
			continue
		}
		tf := d.GlobalTransform(at.Node)
		nd := &mst.MeshNode{}
		for _, v := range fm.Positions {
			dv := dvec3.T{float64(v[0]), float64(v[1]), float64(v[2])}
			dv = tf.MulVec3(&dv)
			nd.Vertices = append(nd.Vertices, vec3.T{float32(dv[0]), float32(dv[1]), float32(dv[2])})
			bbx.Extend(&dv)
		}
		nd.Normals = append(nd.Normals, fm.Normals...)
		if len(fm.TexCoords) > 0 {
			nd.TexCoords = append(nd.TexCoords, fm.TexCoords[0]...)
		}

		tg := &mst.MeshTriangle{Batchid: int32(at.Material)}
		for i := 0; i+2 < len(fm.Indices); i += 3 {
			tg.Faces = append(tg.Faces, &mst.Face{
				Vertex: [3]uint32{fm.Indices[i], fm.Indices[i+1], fm.Indices[i+2]},
			})
		}
		nd.FaceGroup = append(nd.FaceGroup, tg)
		if len(nd.Normals) == 0 {
			nd.ReComputeNormal()
		}
		mesh.Nodes = append(mesh.Nodes, nd)
	}
	return mesh, bbx.Array(), nil
}

func (d *Document) exportMaterial(m *Material) mst.MeshMaterial {
	mtl := &mst.PbrMaterial{Metallic: 0, Roughness: 1}
	mtl.Color = [3]byte{255, 255, 255}

	for i := range m.Attributes {
		a := &m.Attributes[i]
		switch {
		case a.Kind == AttrColor && a.Key == PropColorBase:
			mtl.Color[0] = byte(a.Color[0] * 255)
			mtl.Color[1] = byte(a.Color[1] * 255)
			mtl.Color[2] = byte(a.Color[2] * 255)
			mtl.Transparency = 1 - a.Color[3]
		case a.Kind == AttrColor && a.Key == PropColorEmissive:
			mtl.Emissive[0] = byte(a.Color[0] * 255)
			mtl.Emissive[1] = byte(a.Color[1] * 255)
			mtl.Emissive[2] = byte(a.Color[2] * 255)
		case a.Kind == AttrScalar && a.Key == PropScalarMetallic:
			mtl.Metallic = float32(a.Scalar)
		case a.Kind == AttrScalar && a.Key == PropScalarRoughness:
			mtl.Roughness = float32(a.Scalar)
		case a.Kind == AttrScalar && a.Key == PropScalarOpacity:
			mtl.Transparency = 1 - float32(a.Scalar)
		case a.Kind == AttrTexture:
			tex := d.exportTexture(a.Texture)
			if tex == nil {
				continue
			}
			switch d.textures[a.Texture].Semantic {
			case TexSemanticBaseColor:
				mtl.Texture = tex
			case TexSemanticNormal:
				mtl.Normal = tex
			}
		}
	}
	return mtl
}

func (d *Document) exportTexture(id uint32) *mst.Texture {
	td, err := d.TextureImageData(id)
	if err != nil || td == nil {
		return nil
	}
	return &mst.Texture{
		Id:         int32(id),
		Size:       [2]uint64{uint64(td.Width), uint64(td.Height)},
		Format:     mst.TEXTURE_FORMAT_RGBA,
		Compressed: mst.TEXTURE_COMPRESSED_ZLIB,
		Data:       mst.CompressImage(td.RGBA),
	}
}

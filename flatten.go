package assetdb

import (
	"fmt"

	dmat "github.com/flywave/go3d/float64/mat4"
)

// flattenResult is the outcome of the single traversal pass that
// flattens the node tree, collects attachments and splits
// multi-primitive meshes. All three run together so synthetic node
// indices stay contiguous with their owner.
type flattenResult struct {
	nodes   []FlatNode
	meshAtt []MeshAttachment

	// flat mesh table: index -> origin key and source primitive, in
	// discovery order. meshPrims[i] is nil for a zero-primitive mesh.
	meshKeys  []MeshKey
	meshPrims []*RawPrimitive
	meshIndex map[MeshKey]uint32

	// nodeIndex maps raw node handle to flat index, -1 when dropped.
	nodeIndex []int32

	needDefaultMaterial bool
	errs                []error
}

// flattenScene turns the raw node tree into a dense node array with
// parent indices, in depth-first preorder with children in declaration
// order. When the root has children the root itself is discarded and
// its transform is premultiplied only onto those direct children, so
// it is never applied twice on deeper descendants. A root without
// children becomes the sole top-level node with an identity basis.
func flattenScene(raw *RawScene, sink *DiagSink) (*flattenResult, error) {
	if raw == nil || raw.Root < 0 || raw.Root >= len(raw.Nodes) {
		return nil, &OpenError{Reason: "no valid root node"}
	}
	fr := &flattenResult{
		meshIndex: make(map[MeshKey]uint32),
		nodeIndex: make([]int32, len(raw.Nodes)),
	}
	for i := range fr.nodeIndex {
		fr.nodeIndex[i] = -1
	}
	root := &raw.Nodes[raw.Root]
	if len(root.Children) > 0 {
		basis := root.Transform
		for _, c := range root.Children {
			fr.visit(raw, c, -1, &basis, sink)
		}
	} else {
		fr.visit(raw, raw.Root, -1, nil, sink)
	}
	return fr, nil
}

func (fr *flattenResult) visit(raw *RawScene, handle int, parent int32, basis *dmat.T, sink *DiagSink) {
	if handle < 0 || handle >= len(raw.Nodes) {
		fr.errs = append(fr.errs, indexErr("node", handle, len(raw.Nodes)))
		return
	}
	if fr.nodeIndex[handle] >= 0 {
		// a node reachable twice would break the parent < index invariant
		fr.errs = append(fr.errs, &UnsupportedError{Kind: "node", Detail: fmt.Sprintf("node %d reachable twice", handle)})
		return
	}
	nd := &raw.Nodes[handle]
	tf := nd.Transform
	if basis != nil {
		m := dmat.Ident
		m.AssignMul(basis, &nd.Transform)
		tf = m
	}
	idx := uint32(len(fr.nodes))
	fr.nodeIndex[handle] = int32(idx)
	fr.nodes = append(fr.nodes, FlatNode{Parent: parent, Transform: tf, Name: nd.Name})

	for _, mh := range nd.Meshes {
		fr.attachMesh(raw, idx, mh, sink)
	}
	for _, c := range nd.Children {
		fr.visit(raw, c, int32(idx), nil, sink)
	}
}

// attachMesh emits one Mesh/MeshMaterial pair per primitive of the
// referenced mesh. Primitive 0 stays on the owner; every further
// primitive gets a synthetic child node with an identity transform,
// appended immediately after the owner so its index is deterministic.
func (fr *flattenResult) attachMesh(raw *RawScene, owner uint32, handle int, sink *DiagSink) {
	if handle < 0 || handle >= len(raw.Meshes) {
		fr.errs = append(fr.errs, indexErr("mesh", handle, len(raw.Meshes)))
		sink.report(Diag{Kind: DiagAssetSkipped, Asset: "mesh", Detail: fmt.Sprintf("mesh handle %d out of range", handle)})
		return
	}
	mh := &raw.Meshes[handle]
	if len(mh.Primitives) == 0 {
		// attribute-less mesh still yields a flat mesh with 0 vertices
		fm := fr.internMesh(handle, 0, nil)
		fr.meshAtt = append(fr.meshAtt, MeshAttachment{
			Node:     owner,
			Mesh:     fm,
			Material: fr.materialIndex(raw, -1),
		})
		return
	}
	for p := range mh.Primitives {
		fm := fr.internMesh(handle, p, &mh.Primitives[p])
		node := owner
		if p > 0 {
			node = uint32(len(fr.nodes))
			name := ""
			if n := fr.nodes[owner].Name; n != "" {
				name = fmt.Sprintf("%s.%d", n, p)
			}
			fr.nodes = append(fr.nodes, FlatNode{
				Parent:    int32(owner),
				Transform: dmat.Ident,
				Name:      name,
			})
		}
		fr.meshAtt = append(fr.meshAtt, MeshAttachment{
			Node:     node,
			Mesh:     fm,
			Material: fr.materialIndex(raw, mh.Primitives[p].Material),
		})
	}
}

func (fr *flattenResult) internMesh(handle, prim int, rp *RawPrimitive) uint32 {
	key := MeshKey{Mesh: handle, Primitive: prim}
	if idx, ok := fr.meshIndex[key]; ok {
		return idx
	}
	idx := uint32(len(fr.meshKeys))
	fr.meshIndex[key] = idx
	fr.meshKeys = append(fr.meshKeys, key)
	fr.meshPrims = append(fr.meshPrims, rp)
	return idx
}

// materialIndex resolves a raw material handle to a material table
// index. The table is 1:1 with the raw materials; a missing slot gets
// the synthetic default material appended after them, so a mesh's
// material index is never unassigned.
func (fr *flattenResult) materialIndex(raw *RawScene, handle int) uint32 {
	if handle >= len(raw.Materials) {
		fr.errs = append(fr.errs, indexErr("material", handle, len(raw.Materials)))
		handle = -1
	}
	if handle < 0 {
		fr.needDefaultMaterial = true
		return uint32(len(raw.Materials))
	}
	return uint32(handle)
}

// resolveAttachments matches each camera and light against the
// flattened node list by name. Each one binds to at most one node: the
// first whose name matches. A camera or light referenced by several
// nodes must be duplicated upstream, never aliased here.
func resolveAttachments(raw *RawScene, nodes []FlatNode, sink *DiagSink) ([]CameraAttachment, []LightAttachment) {
	var cams []CameraAttachment
	var lights []LightAttachment
	for ci := range raw.Cameras {
		if n, ok := findNodeByName(nodes, raw.Cameras[ci].Name); ok {
			cams = append(cams, CameraAttachment{Node: n, Camera: uint32(ci)})
		} else {
			sink.report(Diag{Kind: DiagUnresolvedAttachment, Asset: "camera", Detail: raw.Cameras[ci].Name})
		}
	}
	for li := range raw.Lights {
		if n, ok := findNodeByName(nodes, raw.Lights[li].Name); ok {
			lights = append(lights, LightAttachment{Node: n, Light: uint32(li)})
		} else {
			sink.report(Diag{Kind: DiagUnresolvedAttachment, Asset: "light", Detail: raw.Lights[li].Name})
		}
	}
	return cams, lights
}

func findNodeByName(nodes []FlatNode, name string) (uint32, bool) {
	if name == "" {
		return 0, false
	}
	for i := range nodes {
		if nodes[i].Name == name {
			return uint32(i), true
		}
	}
	return 0, false
}

package assetdb

import (
	"fmt"

	dmat "github.com/flywave/go3d/float64/mat4"
)

// paddingWeightEps: a bone with a single weight on vertex 0 whose
// weight is below this is an encoder padding entry and carries no
// information.
const paddingWeightEps = 1e-5

// isPaddingBone reports whether a bone entry was inserted mechanically
// by an upstream encoder. Padding bones are excluded from both the
// max-influence calculation and the merge.
func isPaddingBone(b *RawBone) bool {
	return len(b.Weights) == 1 &&
		b.Weights[0].Vertex == 0 &&
		b.Weights[0].Weight < paddingWeightEps &&
		b.Weights[0].Weight > -paddingWeightEps
}

// buildSkins deduplicates the per-mesh bone lists of every skinned
// flat mesh. Two bones are identical iff their names are byte-equal
// and their inverse-bind matrices compare equal under matrixEps. With
// merging enabled a single global skin is produced and every mesh's
// influences are remapped through the merged joint table; without it
// each skinned mesh keeps its own 1:1 bone list, though name-collision
// detection still runs error-free across meshes.
func buildSkins(meshes []*FlatMesh, prims []*RawPrimitive, nodeByName map[string]uint32, opts Options, sink *DiagSink) ([]*Skin, []error) {
	var skins []*Skin
	var errs []error
	var global *Skin
	globalByName := make(map[string][]int)
	collisionOffsets := make(map[string]*dmat.T)

	for mi, fm := range meshes {
		rp := prims[mi]
		if rp == nil || len(rp.Bones) == 0 {
			continue
		}
		bones := make([]*RawBone, 0, len(rp.Bones))
		for bi := range rp.Bones {
			b := &rp.Bones[bi]
			if isPaddingBone(b) {
				sink.report(Diag{Kind: DiagPaddingBoneSkipped, Asset: fm.Name, Detail: b.Name})
				continue
			}
			bones = append(bones, b)
		}
		if len(bones) == 0 {
			continue
		}

		var skin *Skin
		var skinIdx uint32
		remap := make([]uint32, len(bones))

		if opts.MergeSkins {
			if global == nil {
				global = &Skin{Name: "merged"}
				skins = append(skins, global)
			}
			skin = global
			skinIdx = 0
			for i, b := range bones {
				gi := -1
				for _, cand := range globalByName[b.Name] {
					if matNearEqual(&global.InverseBind[cand], &b.Offset, matrixEps) {
						gi = cand
						break
					}
				}
				if gi < 0 {
					gi = len(global.Joints)
					global.Joints = append(global.Joints, resolveJoint(b.Name, nodeByName, fm.Name, sink))
					global.InverseBind = append(global.InverseBind, b.Offset)
					globalByName[b.Name] = append(globalByName[b.Name], gi)
				}
				remap[i] = uint32(gi)
			}
		} else {
			skin = &Skin{Name: fm.Name}
			skinIdx = uint32(len(skins))
			skins = append(skins, skin)
			for i, b := range bones {
				// name collisions across meshes are detected but never
				// fault; without merging nothing consumes the result
				if prev, ok := collisionOffsets[b.Name]; ok && !matNearEqual(prev, &b.Offset, matrixEps) {
					sink.report(Diag{Kind: DiagUnresolvedJoint, Asset: fm.Name, Detail: fmt.Sprintf("bone %q reused with a different offset", b.Name)})
				} else if !ok {
					collisionOffsets[b.Name] = &b.Offset
				}
				skin.Joints = append(skin.Joints, resolveJoint(b.Name, nodeByName, fm.Name, sink))
				skin.InverseBind = append(skin.InverseBind, b.Offset)
				remap[i] = uint32(i)
			}
		}

		if err := applyInfluences(fm, bones, remap); err != nil {
			errs = append(errs, err)
			continue
		}
		fm.Skin = skinIdx
	}
	return skins, errs
}

func resolveJoint(name string, nodeByName map[string]uint32, mesh string, sink *DiagSink) uint32 {
	if n, ok := nodeByName[name]; ok {
		return n
	}
	sink.report(Diag{Kind: DiagUnresolvedJoint, Asset: mesh, Detail: name})
	return InvalidIndex
}

// applyInfluences scatters the per-bone weight lists into per-vertex
// influence lists with joint indices already remapped.
func applyInfluences(fm *FlatMesh, bones []*RawBone, remap []uint32) error {
	count := fm.VertexCount()
	infl := make([][]JointWeight, count)
	for bi, b := range bones {
		for _, w := range b.Weights {
			if int(w.Vertex) >= count {
				return indexErr(fmt.Sprintf("vertex weight of bone %q", b.Name), int(w.Vertex), count)
			}
			infl[w.Vertex] = append(infl[w.Vertex], JointWeight{Joint: remap[bi], Weight: w.Weight})
		}
	}
	max := 0
	for _, v := range infl {
		if len(v) > max {
			max = len(v)
		}
	}
	fm.Influences = infl
	fm.MaxInfluences = max
	return nil
}

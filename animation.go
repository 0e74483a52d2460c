package assetdb

import (
	"fmt"

	"github.com/flywave/go3d/float64/quaternion"
	dvec3 "github.com/flywave/go3d/float64/vec3"
	"github.com/flywave/go3d/vec3"
)

// splineSet remembers which value buffers already had their
// half-tangents rescaled, keyed by buffer handle. The source's
// tangents are not pre-scaled by the inter-key time delta, and the
// rescale must run exactly once per distinct buffer even when several
// tracks share it. The scaled values live in a copy; the caller's
// buffers are never mutated.
type splineSet struct {
	done map[int]splineMark
}

type splineMark struct {
	times  []float32
	scaled []float32
}

func newSplineSet() *splineSet {
	return &splineSet{done: make(map[int]splineMark)}
}

// process rescales the out-tangent of key i and the in-tangent of key
// i+1 by keys[i+1]-keys[i] (in normalized time). Sharing one value
// buffer across two different key buffers is a fatal input-validation
// error.
func (s *splineSet) process(buffer int, times []float32, data []float32, comps int, tickScale float64, sink *DiagSink) ([]float32, error) {
	if m, ok := s.done[buffer]; ok {
		if !sameKeyBuffer(m.times, times) {
			return nil, &UnsupportedError{Kind: "spline track", Detail: fmt.Sprintf("value buffer %d shared across different key buffers", buffer)}
		}
		return m.scaled, nil
	}
	scaled := append([]float32(nil), data...)
	perKey := 3 * comps
	for i := 0; i+1 < len(times); i++ {
		dt := float32(float64(times[i+1]-times[i]) * tickScale)
		for c := 0; c < comps; c++ {
			scaled[i*perKey+2*comps+c] *= dt // out tangent of key i
			scaled[(i+1)*perKey+c] *= dt     // in tangent of key i+1
		}
	}
	s.done[buffer] = splineMark{times: times, scaled: scaled}
	sink.report(Diag{Kind: DiagSplineTangentsRescaled, Detail: fmt.Sprintf("buffer %d", buffer)})
	return scaled, nil
}

// sameKeyBuffer compares key buffers by identity, not content.
func sameKeyBuffer(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}
	return &a[0] == &b[0]
}

// staticTRS is the decomposition of a target node's rest transform,
// used by the dummy-track heuristic.
type staticTRS struct {
	t dvec3.T
	r quaternion.T
	s dvec3.T
}

// buildAnimations turns raw sampler channels into typed,
// interpolation-tagged tracks. A failed animation is skipped as a
// whole; unrelated animations are unaffected.
func buildAnimations(raw *RawScene, fr *flattenResult, opts Options, sink *DiagSink) ([]*Animation, []error) {
	var anims []*Animation
	var errs []error
	sp := newSplineSet()

	for ai := range raw.Animations {
		ra := &raw.Animations[ai]
		an, err := buildAnimation(raw, fr, ra, opts, sp, sink)
		if err != nil {
			errs = append(errs, fmt.Errorf("animation %d (%s): %w", ai, ra.Name, err))
			sink.report(Diag{Kind: DiagAssetSkipped, Asset: "animation", Detail: ra.Name})
			continue
		}
		anims = append(anims, an)
	}
	return anims, errs
}

func buildAnimation(raw *RawScene, fr *flattenResult, ra *RawAnimation, opts Options, sp *splineSet, sink *DiagSink) (*Animation, error) {
	tps := ra.TicksPerSecond
	if tps == 0 {
		tps = opts.DefaultTicksPerSecond
		sink.report(Diag{Kind: DiagZeroTickRate, Asset: ra.Name, Detail: fmt.Sprintf("using %g ticks/s", tps)})
	}
	an := &Animation{Name: ra.Name}

	for ci := range ra.Channels {
		ch := &ra.Channels[ci]
		if ch.Node < 0 || ch.Node >= len(fr.nodeIndex) || fr.nodeIndex[ch.Node] < 0 {
			sink.report(Diag{Kind: DiagUnresolvedAttachment, Asset: ra.Name, Detail: fmt.Sprintf("channel %d targets no flattened node", ci)})
			continue
		}
		target := uint32(fr.nodeIndex[ch.Node])
		st, sr, ss := decomposeTRS(&fr.nodes[target].Transform)
		static := staticTRS{t: st, r: sr, s: ss}

		if ch.Translation != nil {
			tr, err := buildVecTrack(raw, ch.Translation, target, TrackTranslation, tps, &static, opts, sp, sink)
			if err != nil {
				return nil, err
			}
			if tr != nil {
				an.Tracks = append(an.Tracks, *tr)
			}
		}
		if ch.Rotation != nil {
			tr, err := buildQuatTrack(raw, ch.Rotation, target, tps, &static, opts, sp, sink)
			if err != nil {
				return nil, err
			}
			if tr != nil {
				an.Tracks = append(an.Tracks, *tr)
			}
		}
		if ch.Scaling != nil {
			tr, err := buildVecTrack(raw, ch.Scaling, target, TrackScaling, tps, &static, opts, sp, sink)
			if err != nil {
				return nil, err
			}
			if tr != nil {
				an.Tracks = append(an.Tracks, *tr)
			}
		}
	}

	for i := range an.Tracks {
		keys := an.Tracks[i].Keys
		if n := len(keys); n > 0 && float64(keys[n-1]) > an.Duration {
			an.Duration = float64(keys[n-1])
		}
	}
	return an, nil
}

func trackValues(raw *RawScene, rt *RawTrack, comps int) ([]float32, error) {
	if rt.Buffer < 0 || rt.Buffer >= len(raw.TrackData) {
		return nil, indexErr("track buffer", rt.Buffer, len(raw.TrackData))
	}
	data := raw.TrackData[rt.Buffer]
	perKey := comps
	if rt.Interp == InterpSpline {
		perKey = 3 * comps
	}
	if len(data) != len(rt.Times)*perKey {
		return nil, &UnsupportedError{Kind: "track", Detail: fmt.Sprintf("value buffer %d holds %d floats for %d keys of stride %d", rt.Buffer, len(data), len(rt.Times), perKey)}
	}
	for i := 1; i < len(rt.Times); i++ {
		if rt.Times[i] < rt.Times[i-1] {
			return nil, &UnsupportedError{Kind: "track", Detail: "keys not sorted"}
		}
	}
	return data, nil
}

func normalizeKeys(times []float32, tps float64) []float32 {
	keys := make([]float32, len(times))
	for i, t := range times {
		keys[i] = float32(float64(t) / tps)
	}
	return keys
}

func buildVecTrack(raw *RawScene, rt *RawTrack, target uint32, kind TrackKind, tps float64, static *staticTRS, opts Options, sp *splineSet, sink *DiagSink) (*AnimationTrack, error) {
	n := len(rt.Times)
	if n == 0 {
		return nil, nil
	}
	data, err := trackValues(raw, rt, 3)
	if err != nil {
		return nil, err
	}
	if rt.Interp == InterpSpline {
		data, err = sp.process(rt.Buffer, rt.Times, data, 3, 1/tps, sink)
		if err != nil {
			return nil, err
		}
	}

	tr := &AnimationTrack{
		Target: target,
		Kind:   kind,
		Interp: rt.Interp,
		Before: rt.Before,
		After:  rt.After,
		Keys:   normalizeKeys(rt.Times, tps),
	}
	stride, off := 3, 0
	if rt.Interp == InterpSpline {
		stride, off = 9, 3
	}
	for i := 0; i < n; i++ {
		v := vec3.T{data[i*stride+off], data[i*stride+off+1], data[i*stride+off+2]}
		tr.Vec = append(tr.Vec, v)
		if rt.Interp == InterpSpline {
			tr.VecIn = append(tr.VecIn, vec3.T{data[i*stride], data[i*stride+1], data[i*stride+2]})
			tr.VecOut = append(tr.VecOut, vec3.T{data[i*stride+6], data[i*stride+7], data[i*stride+8]})
		}
	}

	// dummy-track elision: a 1-key track equal to the component
	// decomposed from the rest transform carries nothing. Best effort;
	// keeping a track that could have been dropped is never an error.
	if opts.ElideDummyTracks && n == 1 {
		want := static.t
		if kind == TrackScaling {
			want = static.s
		}
		got := dvec3.T{float64(tr.Vec[0][0]), float64(tr.Vec[0][1]), float64(tr.Vec[0][2])}
		if vecNearEqual(&got, &want, elideEps) {
			sink.report(Diag{Kind: DiagDummyTrackElided, Detail: fmt.Sprintf("node %d %s", target, kindName(kind))})
			return nil, nil
		}
	}
	return tr, nil
}

func buildQuatTrack(raw *RawScene, rt *RawTrack, target uint32, tps float64, static *staticTRS, opts Options, sp *splineSet, sink *DiagSink) (*AnimationTrack, error) {
	n := len(rt.Times)
	if n == 0 {
		return nil, nil
	}
	data, err := trackValues(raw, rt, 4)
	if err != nil {
		return nil, err
	}
	if rt.Interp == InterpSpline {
		data, err = sp.process(rt.Buffer, rt.Times, data, 4, 1/tps, sink)
		if err != nil {
			return nil, err
		}
	}

	tr := &AnimationTrack{
		Target: target,
		Kind:   TrackRotation,
		Interp: rt.Interp,
		Before: rt.Before,
		After:  rt.After,
		Keys:   normalizeKeys(rt.Times, tps),
	}
	stride, off := 4, 0
	if rt.Interp == InterpSpline {
		stride, off = 12, 4
	}
	quatAt := func(i, o int) quaternion.T {
		return quaternion.T{
			float64(data[i*stride+o]),
			float64(data[i*stride+o+1]),
			float64(data[i*stride+o+2]),
			float64(data[i*stride+o+3]),
		}
	}
	for i := 0; i < n; i++ {
		tr.Quat = append(tr.Quat, quatAt(i, off))
		if rt.Interp == InterpSpline {
			tr.QuatIn = append(tr.QuatIn, quatAt(i, 0))
			tr.QuatOut = append(tr.QuatOut, quatAt(i, 8))
		}
	}

	if opts.ElideDummyTracks && n == 1 {
		if quatNearEqual(&tr.Quat[0], &static.r, elideEps) {
			sink.report(Diag{Kind: DiagDummyTrackElided, Detail: fmt.Sprintf("node %d rotation", target)})
			return nil, nil
		}
	}

	if rt.Interp != InterpSpline {
		repairRotation(tr, sink)
	}
	return tr, nil
}

// repairRotation enforces shortest-path continuity by flipping the
// sign of any key whose dot product with its (possibly already
// flipped) predecessor is negative, then renormalizes any key whose
// norm drifted from 1. Both are reported, neither fails.
func repairRotation(tr *AnimationTrack, sink *DiagSink) {
	flipped := false
	for i := 1; i < len(tr.Quat); i++ {
		if quatDot(&tr.Quat[i-1], &tr.Quat[i]) < 0 {
			q := &tr.Quat[i]
			q[0], q[1], q[2], q[3] = -q[0], -q[1], -q[2], -q[3]
			flipped = true
		}
	}
	if flipped {
		sink.report(Diag{Kind: DiagQuaternionFlipped, Detail: fmt.Sprintf("node %d", tr.Target)})
	}
	renormed := false
	for i := range tr.Quat {
		if l := quatLen(&tr.Quat[i]); l < 1-quatNormEps || l > 1+quatNormEps {
			quatNormalize(&tr.Quat[i])
			renormed = true
		}
	}
	if renormed {
		sink.report(Diag{Kind: DiagQuaternionRenormalized, Detail: fmt.Sprintf("node %d", tr.Target)})
	}
}

func kindName(k TrackKind) string {
	switch k {
	case TrackTranslation:
		return "translation"
	case TrackRotation:
		return "rotation"
	default:
		return "scaling"
	}
}

package assetdb

import "go.uber.org/zap"

// DiagKind classifies a recoverable patch applied while building a
// document. Diagnostics never fail an operation; the patched value is
// used and the occurrence is reported here.
type DiagKind uint8

const (
	DiagDummyTrackElided DiagKind = iota
	DiagQuaternionFlipped
	DiagQuaternionRenormalized
	DiagSplineTangentsRescaled
	DiagCustomAttributeDropped
	DiagAmbientForcedBlack
	DiagPaddingBoneSkipped
	DiagZeroTickRate
	DiagUnresolvedAttachment
	DiagUnresolvedJoint
	DiagAssetSkipped
)

var diagNames = map[DiagKind]string{
	DiagDummyTrackElided:       "dummy track elided",
	DiagQuaternionFlipped:      "quaternion flipped",
	DiagQuaternionRenormalized: "quaternion renormalized",
	DiagSplineTangentsRescaled: "spline tangents rescaled",
	DiagCustomAttributeDropped: "custom attribute dropped",
	DiagAmbientForcedBlack:     "ambient color forced to black",
	DiagPaddingBoneSkipped:     "padding bone skipped",
	DiagZeroTickRate:           "zero tick rate replaced",
	DiagUnresolvedAttachment:   "unresolved attachment",
	DiagUnresolvedJoint:        "unresolved joint",
	DiagAssetSkipped:           "asset skipped",
}

// Diag is one diagnostic record.
type Diag struct {
	Kind   DiagKind
	Asset  string
	Detail string
}

func (d Diag) String() string {
	s := diagNames[d.Kind]
	if d.Asset != "" {
		s += " (" + d.Asset + ")"
	}
	if d.Detail != "" {
		s += ": " + d.Detail
	}
	return s
}

// DiagSink collects diagnostics for one open document. It replaces any
// process-wide logger: every document owns its own sink. A nil sink is
// valid and drops everything.
type DiagSink struct {
	log   *zap.Logger
	diags []Diag
}

// NewDiagSink returns a sink that records diagnostics. logger may be
// nil; if set, every diagnostic is also mirrored there.
func NewDiagSink(logger *zap.Logger) *DiagSink {
	return &DiagSink{log: logger}
}

func (s *DiagSink) report(d Diag) {
	if s == nil {
		return
	}
	s.diags = append(s.diags, d)
	if s.log != nil {
		s.log.Warn(diagNames[d.Kind],
			zap.String("asset", d.Asset),
			zap.String("detail", d.Detail))
	}
}

// Diags returns every diagnostic reported so far, in order.
func (s *DiagSink) Diags() []Diag {
	if s == nil {
		return nil
	}
	return s.diags
}

// Count returns how many diagnostics of the given kind were reported.
func (s *DiagSink) Count(kind DiagKind) int {
	if s == nil {
		return 0
	}
	n := 0
	for _, d := range s.diags {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

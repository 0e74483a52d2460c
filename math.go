package assetdb

import (
	"math"

	dmat "github.com/flywave/go3d/float64/mat4"
	"github.com/flywave/go3d/float64/quaternion"
	dvec3 "github.com/flywave/go3d/float64/vec3"
)

const (
	// matrixEps is the component tolerance for bone identity and
	// static-transform comparisons; floating-point equality in the
	// source formats, not bit equality.
	matrixEps = 1e-6
	// quatNormEps is the norm deviation above which a quaternion key
	// gets renormalized.
	quatNormEps = 1e-4
	// elideEps is the tolerance of the dummy-track heuristic.
	elideEps = 1e-4
)

func matNearEqual(a, b *dmat.T, eps float64) bool {
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			if math.Abs(a[c][r]-b[c][r]) > eps {
				return false
			}
		}
	}
	return true
}

// decomposeTRS splits an affine matrix into translation, rotation and
// scale. Columns hold the basis vectors, translation sits in the
// fourth column.
func decomposeTRS(m *dmat.T) (t dvec3.T, r quaternion.T, s dvec3.T) {
	t = dvec3.T{m[3][0], m[3][1], m[3][2]}
	cols := [3]dvec3.T{
		{m[0][0], m[0][1], m[0][2]},
		{m[1][0], m[1][1], m[1][2]},
		{m[2][0], m[2][1], m[2][2]},
	}
	for i := range cols {
		s[i] = cols[i].Length()
	}
	cross := dvec3.Cross(&cols[1], &cols[2])
	if dvec3.Dot(&cols[0], &cross) < 0 {
		s[0] = -s[0]
	}
	for i := range cols {
		if s[i] != 0 {
			cols[i] = cols[i].Scaled(1 / s[i])
		}
	}
	r = quatFromColumns(&cols)
	return
}

// quatFromColumns builds a unit quaternion from three orthonormal
// basis columns. cols[c][r] is row r of column c.
func quatFromColumns(cols *[3]dvec3.T) quaternion.T {
	m00, m01, m02 := cols[0][0], cols[1][0], cols[2][0]
	m10, m11, m12 := cols[0][1], cols[1][1], cols[2][1]
	m20, m21, m22 := cols[0][2], cols[1][2], cols[2][2]

	trace := m00 + m11 + m22
	var q quaternion.T
	switch {
	case trace > 0:
		s := math.Sqrt(trace+1) * 2
		q = quaternion.T{(m21 - m12) / s, (m02 - m20) / s, (m10 - m01) / s, s / 4}
	case m00 > m11 && m00 > m22:
		s := math.Sqrt(1+m00-m11-m22) * 2
		q = quaternion.T{s / 4, (m01 + m10) / s, (m02 + m20) / s, (m21 - m12) / s}
	case m11 > m22:
		s := math.Sqrt(1+m11-m00-m22) * 2
		q = quaternion.T{(m01 + m10) / s, s / 4, (m12 + m21) / s, (m02 - m20) / s}
	default:
		s := math.Sqrt(1+m22-m00-m11) * 2
		q = quaternion.T{(m02 + m20) / s, (m12 + m21) / s, s / 4, (m10 - m01) / s}
	}
	quatNormalize(&q)
	return q
}

func quatDot(a, b *quaternion.T) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] + a[3]*b[3]
}

func quatLen(q *quaternion.T) float64 {
	return math.Sqrt(quatDot(q, q))
}

func quatNormalize(q *quaternion.T) {
	l := quatLen(q)
	if l == 0 {
		*q = quaternion.T{0, 0, 0, 1}
		return
	}
	q[0] /= l
	q[1] /= l
	q[2] /= l
	q[3] /= l
}

// quatNearEqual compares two rotations ignoring quaternion sign.
func quatNearEqual(a, b *quaternion.T, eps float64) bool {
	an, bn := *a, *b
	quatNormalize(&an)
	quatNormalize(&bn)
	return math.Abs(quatDot(&an, &bn)) >= 1-eps
}

func vecNearEqual(a, b *dvec3.T, eps float64) bool {
	return math.Abs(a[0]-b[0]) <= eps &&
		math.Abs(a[1]-b[1]) <= eps &&
		math.Abs(a[2]-b[2]) <= eps
}

func addPoint(bx *[6]float64, p *[3]float64) {
	bx[0] = math.Min(bx[0], p[0])
	bx[1] = math.Min(bx[1], p[1])
	bx[2] = math.Min(bx[2], p[2])

	bx[3] = math.Max(bx[3], p[0])
	bx[4] = math.Max(bx[4], p[1])
	bx[5] = math.Max(bx[5], p[2])
}

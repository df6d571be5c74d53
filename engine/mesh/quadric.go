package mesh

import (
	"github.com/spaghettifunk/dataverse/engine/math"
)

// Quadric is a symmetric 4x4 error matrix stored as its ten unique
// coefficients. Accumulating the plane quadrics of every face around a
// vertex yields the squared point-to-plane error of moving that vertex.
type Quadric struct {
	A2, AB, AC, AD float64
	B2, BC, BD     float64
	C2, CD         float64
	D2             float64
}

// AddPlane accumulates the quadric of the plane ax+by+cz+d=0, weighted
// by w. Callers pass the face area as w so large faces dominate.
func (q *Quadric) AddPlane(a, b, c, d, w float64) {
	q.A2 += w * a * a
	q.AB += w * a * b
	q.AC += w * a * c
	q.AD += w * a * d
	q.B2 += w * b * b
	q.BC += w * b * c
	q.BD += w * b * d
	q.C2 += w * c * c
	q.CD += w * c * d
	q.D2 += w * d * d
}

// Add accumulates another quadric into q.
func (q *Quadric) Add(other *Quadric) {
	q.A2 += other.A2
	q.AB += other.AB
	q.AC += other.AC
	q.AD += other.AD
	q.B2 += other.B2
	q.BC += other.BC
	q.BD += other.BD
	q.C2 += other.C2
	q.CD += other.CD
	q.D2 += other.D2
}

// Error evaluates v^T Q v for the homogeneous point (x, y, z, 1).
func (q *Quadric) Error(v math.Vec3) float64 {
	x := float64(v.X)
	y := float64(v.Y)
	z := float64(v.Z)
	return q.A2*x*x + 2*q.AB*x*y + 2*q.AC*x*z + 2*q.AD*x +
		q.B2*y*y + 2*q.BC*y*z + 2*q.BD*y +
		q.C2*z*z + 2*q.CD*z +
		q.D2
}

// faceQuadric builds the area-weighted plane quadric of the triangle
// p0-p1-p2. Degenerate (zero-area) faces contribute nothing.
func faceQuadric(p0, p1, p2 math.Vec3) Quadric {
	var q Quadric
	n := math.FaceNormal(p0, p1, p2)
	length := n.Length()
	if length == 0 {
		return q
	}
	area := float64(length) * 0.5
	unit := n.MulScalar(1.0 / length)
	d := -float64(unit.Dot(p0))
	q.AddPlane(float64(unit.X), float64(unit.Y), float64(unit.Z), d, area)
	return q
}

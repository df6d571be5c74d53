package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spaghettifunk/dataverse/engine/math"
)

func TestQuadricPlaneError(t *testing.T) {
	// The plane z = 0 with unit weight.
	var q Quadric
	q.AddPlane(0, 0, 1, 0, 1)

	// Points on the plane have zero error; off-plane error grows with
	// the squared distance.
	assert.InDelta(t, 0, q.Error(math.NewVec3(5, -3, 0)), 1e-12)
	assert.InDelta(t, 1, q.Error(math.NewVec3(0, 0, 1)), 1e-12)
	assert.InDelta(t, 4, q.Error(math.NewVec3(2, 7, -2)), 1e-12)
}

func TestQuadricAccumulation(t *testing.T) {
	// Two orthogonal planes through the origin: only the origin's line
	// of intersection is error-free.
	var a, b Quadric
	a.AddPlane(0, 0, 1, 0, 1)
	b.AddPlane(1, 0, 0, 0, 1)
	a.Add(&b)

	assert.InDelta(t, 0, a.Error(math.NewVec3(0, 9, 0)), 1e-12)
	assert.InDelta(t, 2, a.Error(math.NewVec3(1, 0, 1)), 1e-12)
}

func TestFaceQuadric(t *testing.T) {
	p0 := math.NewVec3(0, 0, 0)
	p1 := math.NewVec3(1, 0, 0)
	p2 := math.NewVec3(0, 1, 0)
	q := faceQuadric(p0, p1, p2)

	// Every triangle corner lies on the face plane.
	assert.InDelta(t, 0, q.Error(p0), 1e-9)
	assert.InDelta(t, 0, q.Error(p1), 1e-9)
	assert.InDelta(t, 0, q.Error(p2), 1e-9)
	// The weight is the face area, so unit offset costs area*1.
	assert.InDelta(t, 0.5, q.Error(math.NewVec3(0, 0, 1)), 1e-9)

	// Degenerate faces contribute nothing.
	zero := faceQuadric(p0, p1, math.NewVec3(2, 0, 0))
	assert.Equal(t, Quadric{}, zero)
}

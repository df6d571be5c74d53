package mesh

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/dataverse/engine/core"
	"github.com/spaghettifunk/dataverse/engine/math"
)

// gridMesh builds a flat (n+1)x(n+1) vertex grid on the z=0 plane
// triangulated into 2*n*n faces, wound consistently.
func gridMesh(n int) *RawMesh {
	m := &RawMesh{}
	for y := 0; y <= n; y++ {
		for x := 0; x <= n; x++ {
			m.Vertices = append(m.Vertices, math.NewVec3(float32(x), float32(y), 0))
		}
	}
	stride := uint32(n + 1)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			v0 := uint32(y)*stride + uint32(x)
			v1 := v0 + 1
			v2 := v0 + stride
			v3 := v2 + 1
			m.Faces = append(m.Faces, Face{v0, v1, v3}, Face{v0, v3, v2})
		}
	}
	return m
}

func tetrahedron() *RawMesh {
	return &RawMesh{
		Vertices: []math.Vec3{
			math.NewVec3(0, 0, 0),
			math.NewVec3(1, 0, 0),
			math.NewVec3(0, 1, 0),
			math.NewVec3(0, 0, 1),
		},
		Faces: []Face{{0, 2, 1}, {0, 1, 3}, {0, 3, 2}, {1, 2, 3}},
	}
}

// requireValidResult checks the structural integrity of a decimation
// output: indices in range, no degenerate faces, counts consistent.
func requireValidResult(t *testing.T, dm *DecimatedMesh) {
	t.Helper()
	require.NotEmpty(t, dm.Vertices)
	require.Equal(t, dm.AchievedFaces, len(dm.Faces))
	for _, f := range dm.Faces {
		for _, vi := range f {
			require.Less(t, int(vi), len(dm.Vertices))
		}
		require.NotEqual(t, f[0], f[1])
		require.NotEqual(t, f[1], f[2])
		require.NotEqual(t, f[2], f[0])
	}
}

func TestDecimateTargetAboveSource(t *testing.T) {
	m := tetrahedron()
	dm, err := Decimate(context.Background(), m, 100)
	require.NoError(t, err)
	assert.Equal(t, 4, dm.AchievedFaces)
	assert.Equal(t, 0.0, dm.RatioApplied)
	assert.Equal(t, m.Faces, dm.Faces)
	assert.Equal(t, m.Vertices, dm.Vertices)
}

func TestDecimateTargetBelowFloor(t *testing.T) {
	// Targets under the tetrahedron floor are clamped up to it.
	dm, err := Decimate(context.Background(), tetrahedron(), 1)
	require.NoError(t, err)
	assert.Equal(t, 4, dm.AchievedFaces)
}

func TestDecimateGrid(t *testing.T) {
	m := gridMesh(12)
	source := m.FaceCount()
	require.Equal(t, 288, source)

	target := 120
	dm, err := Decimate(context.Background(), m, target)
	require.NoError(t, err)
	requireValidResult(t, dm)

	assert.LessOrEqual(t, dm.AchievedFaces, target)
	assert.GreaterOrEqual(t, dm.AchievedFaces, MinimumFaces)
	assert.InDelta(t, 1.0-float64(dm.AchievedFaces)/float64(source), dm.RatioApplied, 1e-9)
	assert.Greater(t, dm.FootprintBytes(), 0)

	// The input must be untouched.
	assert.Equal(t, 288, m.FaceCount())
	assert.Equal(t, math.NewVec3(0, 0, 0), m.Vertices[0])
}

func TestDecimateDeterministic(t *testing.T) {
	a, err := Decimate(context.Background(), gridMesh(10), 60)
	require.NoError(t, err)
	b, err := Decimate(context.Background(), gridMesh(10), 60)
	require.NoError(t, err)

	assert.Equal(t, a.AchievedFaces, b.AchievedFaces)
	assert.Equal(t, a.Vertices, b.Vertices)
	assert.Equal(t, a.Faces, b.Faces)
}

func TestDecimateInvalidMesh(t *testing.T) {
	_, err := Decimate(context.Background(), &RawMesh{}, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidMesh)

	bad := &RawMesh{
		Vertices: []math.Vec3{math.NewVec3Zero(), math.NewVec3(1, 0, 0), math.NewVec3(0, 1, 0)},
		Faces:    []Face{{0, 1, 99}},
	}
	_, err = Decimate(context.Background(), bad, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidMesh)
}

func TestDecimateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Decimate(ctx, gridMesh(24), MinimumFaces)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRawMeshValidate(t *testing.T) {
	assert.NoError(t, tetrahedron().Validate())
	assert.ErrorIs(t, (&RawMesh{}).Validate(), core.ErrInvalidMesh)

	oob := tetrahedron()
	oob.Faces[0][2] = 42
	assert.ErrorIs(t, oob.Validate(), core.ErrInvalidMesh)
}

func TestRawMeshBounds(t *testing.T) {
	ext := gridMesh(4).Bounds()
	assert.Equal(t, math.NewVec3(0, 0, 0), ext.Min)
	assert.Equal(t, math.NewVec3(4, 4, 0), ext.Max)
}

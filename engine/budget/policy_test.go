package budget

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveTargetRatioAndCeiling(t *testing.T) {
	// The documented deployment scenario: 200k faces, aggressive ratio,
	// absolute ceiling. The ratio target (10000) undercuts the ceiling.
	d := ResolveTarget(200000, Budget{DecimationRatio: 0.95, MaxFaces: 15000})
	assert.False(t, d.Skip)
	assert.Equal(t, 10000, d.TargetFaces)

	// A mid-size mesh where the ceiling is the binding constraint.
	d = ResolveTarget(200000, Budget{DecimationRatio: 0.5, MaxFaces: 15000})
	assert.False(t, d.Skip)
	assert.Equal(t, 15000, d.TargetFaces)

	// A small mesh is not degraded by the ceiling alone.
	d = ResolveTarget(1000, Budget{DecimationRatio: 0, MaxFaces: 15000})
	assert.False(t, d.Skip)
	assert.Equal(t, 1000, d.TargetFaces)

	// The float representation of (1 - 0.95) must not lift the target by
	// one extra face.
	d = ResolveTarget(1000, Budget{DecimationRatio: 0.95, MaxFaces: 15000})
	assert.False(t, d.Skip)
	assert.Equal(t, 50, d.TargetFaces)
}

func TestResolveTargetFloor(t *testing.T) {
	d := ResolveTarget(40, Budget{DecimationRatio: 0.99, MaxFaces: 15000})
	assert.False(t, d.Skip)
	assert.Equal(t, 4, d.TargetFaces)

	// The floor never exceeds the source face count.
	d = ResolveTarget(6, Budget{DecimationRatio: 0.5})
	assert.False(t, d.Skip)
	assert.LessOrEqual(t, d.TargetFaces, 6)
	assert.GreaterOrEqual(t, d.TargetFaces, 3)
}

func TestResolveTargetDisable3D(t *testing.T) {
	d := ResolveTarget(100, Budget{Disable3D: true, DecimationRatio: 0.5})
	assert.True(t, d.Skip)
	assert.NotEmpty(t, d.Reason)
}

func TestResolveTargetNoFaces(t *testing.T) {
	d := ResolveTarget(0, Budget{DecimationRatio: 0.5})
	assert.True(t, d.Skip)
}

func TestResolveTargetOverBudgetEvenAtFloor(t *testing.T) {
	// Even the decimated mesh's estimate cannot fit one kilobyte.
	d := ResolveTarget(200000, Budget{
		DecimationRatio:  0.95,
		MaxFaces:         15000,
		TotalByteCeiling: 1024,
	})
	assert.True(t, d.Skip)
	assert.NotEmpty(t, d.Reason)

	// A generous ceiling admits the same mesh.
	d = ResolveTarget(200000, Budget{
		DecimationRatio:  0.95,
		MaxFaces:         15000,
		TotalByteCeiling: 64 << 20,
	})
	assert.False(t, d.Skip)
}

func TestResolveTargetMonotonic(t *testing.T) {
	source := 100000

	// Increasing maxFaces never decreases the target.
	prev := -1
	for _, maxFaces := range []int{100, 1000, 5000, 20000, 80000, 200000} {
		d := ResolveTarget(source, Budget{DecimationRatio: 0.9, MaxFaces: maxFaces})
		assert.False(t, d.Skip)
		assert.GreaterOrEqual(t, d.TargetFaces, prev, "maxFaces=%d", maxFaces)
		prev = d.TargetFaces
	}

	// Decreasing the ratio never decreases the target.
	prev = -1
	for _, ratio := range []float64{0.99, 0.95, 0.75, 0.5, 0.25, 0.0} {
		d := ResolveTarget(source, Budget{DecimationRatio: ratio, MaxFaces: source})
		assert.False(t, d.Skip)
		assert.GreaterOrEqual(t, d.TargetFaces, prev, "ratio=%v", ratio)
		prev = d.TargetFaces
	}
}

func TestEstimateBytes(t *testing.T) {
	assert.Equal(t, int64(0), EstimateBytes(0, 0))
	assert.Equal(t, int64(32+24), EstimateBytes(1, 1))
	// Estimates stay conservative relative to the raw data size.
	assert.Greater(t, EstimateBytes(100, 200), int64(100*12+200*12))
}

// Package budget decides how aggressively a mesh must be reduced to fit
// the configured memory ceiling, or whether 3D loading should be skipped
// outright. It is pure decision logic: no I/O, no state.
package budget

import (
	stdmath "math"

	"github.com/spaghettifunk/dataverse/engine/math"
	"github.com/spaghettifunk/dataverse/engine/mesh"
)

// Conservative per-element byte costs used for footprint estimates.
// Deliberately above the raw float32/uint32 sizes to cover normals,
// index-width slack and allocator overhead.
const (
	PerVertexBytes = 32
	PerFaceBytes   = 24
)

// Budget is the process-wide memory configuration, read once at startup
// and immutable afterwards.
type Budget struct {
	// TotalByteCeiling caps the estimated footprint of a single
	// decimated mesh. Zero means no ceiling.
	TotalByteCeiling int64
	// DecimationRatio is the fraction of faces to remove (0..1).
	DecimationRatio float64
	// MaxFaces is the absolute face ceiling. Zero means no ceiling.
	MaxFaces int
	// Disable3D turns the whole 3D pipeline off.
	Disable3D bool
}

// Decision is the outcome of resolving a budget against a source mesh.
type Decision struct {
	Skip        bool
	Reason      string
	TargetFaces int
}

// EstimateBytes returns the conservative footprint estimate for a mesh
// with the given element counts.
func EstimateBytes(vertexCount, faceCount int) int64 {
	return int64(vertexCount)*PerVertexBytes + int64(faceCount)*PerFaceBytes
}

// estimateVertices approximates the vertex count of a triangle mesh
// from its face count. A closed manifold has roughly half as many
// vertices as faces.
func estimateVertices(faceCount int) int {
	v := faceCount / 2
	if v < 3 {
		v = 3
	}
	return v
}

// ResolveTarget computes the decimation target for a source mesh, or a
// Skip decision when the budget rules 3D out entirely. Both the ratio
// and the absolute face ceiling are applied; whichever yields the
// smaller target wins, floored at mesh.MinimumFaces.
func ResolveTarget(sourceFaceCount int, b Budget) Decision {
	if b.Disable3D {
		return Decision{Skip: true, Reason: "3D disabled by configuration"}
	}
	if sourceFaceCount <= 0 {
		return Decision{Skip: true, Reason: "source mesh has no faces"}
	}

	target := sourceFaceCount
	if b.DecimationRatio > 0 {
		ratio := math.Clamp(b.DecimationRatio, 0.0, 0.99)
		// Absorb the float representation error of (1 - ratio) before
		// ceiling, so a 0.95 ratio on 200000 faces yields exactly 10000
		// and not one face above it.
		target = int(stdmath.Ceil(float64(sourceFaceCount)*(1.0-ratio) - 1e-9))
	}
	if b.MaxFaces > 0 && b.MaxFaces < target {
		target = b.MaxFaces
	}
	if target < mesh.MinimumFaces {
		target = mesh.MinimumFaces
	}
	if target > sourceFaceCount {
		target = sourceFaceCount
	}

	if b.TotalByteCeiling > 0 {
		// Even the floor-decimated mesh must fit; if it cannot, the
		// asset is unviewable under this budget.
		floor := math.Clamp(target, mesh.MinimumFaces, sourceFaceCount)
		if EstimateBytes(estimateVertices(floor), floor) > b.TotalByteCeiling {
			return Decision{Skip: true, Reason: "estimated footprint exceeds memory ceiling"}
		}
	}

	return Decision{TargetFaces: target}
}

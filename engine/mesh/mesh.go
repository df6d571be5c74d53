package mesh

import (
	"fmt"
	"time"

	"github.com/spaghettifunk/dataverse/engine/core"
	"github.com/spaghettifunk/dataverse/engine/math"
)

// Face is a triangle defined by three indices into a vertex sequence.
type Face [3]uint32

// RawMesh is the full-resolution triangle mesh as read from storage.
// It is treated as immutable: every pipeline stage that consumes it
// builds its own working copies and drops the reference when done.
type RawMesh struct {
	Vertices []math.Vec3
	Faces    []Face
}

// DecimatedMesh is the reduced mesh held by a view slot, plus the
// metadata the renderer and the UI need to describe what they got.
type DecimatedMesh struct {
	Vertices []math.Vec3
	Faces    []Face

	AssetID       string
	AchievedFaces int
	RatioApplied  float64
	Generation    uint64
	CreatedAt     time.Time
}

// VertexCount returns the number of vertices.
func (m *RawMesh) VertexCount() int {
	return len(m.Vertices)
}

// FaceCount returns the number of triangles.
func (m *RawMesh) FaceCount() int {
	return len(m.Faces)
}

// Validate performs the structural checks shared by the source reader
// and the decimator: a non-empty vertex set and every face index within
// bounds. Failures wrap core.ErrInvalidMesh.
func (m *RawMesh) Validate() error {
	if len(m.Vertices) == 0 {
		return fmt.Errorf("%w: empty vertex set", core.ErrInvalidMesh)
	}
	limit := uint32(len(m.Vertices))
	for fi, f := range m.Faces {
		for _, idx := range f {
			if idx >= limit {
				return fmt.Errorf("%w: face %d references vertex %d of %d", core.ErrInvalidMesh, fi, idx, limit)
			}
		}
	}
	return nil
}

// Bounds computes the axis-aligned extents of the mesh.
func (m *RawMesh) Bounds() math.Extents3D {
	if len(m.Vertices) == 0 {
		return math.Extents3D{}
	}
	ext := math.Extents3D{Min: m.Vertices[0], Max: m.Vertices[0]}
	for _, v := range m.Vertices[1:] {
		ext.Min = ext.Min.Min(v)
		ext.Max = ext.Max.Max(v)
	}
	return ext
}

// FootprintBytes returns the actual in-memory size of the mesh data:
// three float32 per vertex, three uint32 per face.
func (m *DecimatedMesh) FootprintBytes() int {
	return len(m.Vertices)*12 + len(m.Faces)*12
}

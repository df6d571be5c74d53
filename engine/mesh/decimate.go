package mesh

import (
	"container/heap"
	"context"
	"time"

	"github.com/spaghettifunk/dataverse/engine/math"
)

// MinimumFaces is the smallest face count a decimation may target: a
// tetrahedron, the minimum viable closed mesh.
const MinimumFaces = 4

// cancelCheckInterval controls how often the collapse loop polls the
// context. Collapses are microseconds each, so polling every batch keeps
// cancellation latency low without a per-iteration syscall.
const cancelCheckInterval = 512

// Decimate reduces m to at most targetFaces triangles with iterative
// edge collapses ordered by quadric error. The input is never mutated.
//
// The target may be geometrically unreachable; Decimate then stops at
// the last non-degenerate configuration and reports the achieved count
// in the result rather than failing. If targetFaces is already >= the
// source face count the source data is returned unchanged with
// RatioApplied 0.
func Decimate(ctx context.Context, m *RawMesh, targetFaces int) (*DecimatedMesh, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if targetFaces < MinimumFaces {
		targetFaces = MinimumFaces
	}

	source := m.FaceCount()
	if targetFaces >= source {
		return &DecimatedMesh{
			Vertices:      m.Vertices,
			Faces:         m.Faces,
			AchievedFaces: source,
			RatioApplied:  0,
			CreatedAt:     time.Now(),
		}, nil
	}

	d := newDecimator(m)
	if err := d.run(ctx, targetFaces); err != nil {
		return nil, err
	}

	vertices, faces := d.compact()
	achieved := len(faces)
	return &DecimatedMesh{
		Vertices:      vertices,
		Faces:         faces,
		AchievedFaces: achieved,
		RatioApplied:  1.0 - float64(achieved)/float64(source),
		CreatedAt:     time.Now(),
	}, nil
}

// candidate is a single potential edge collapse. ver0/ver1 snapshot the
// endpoint versions at push time; a mismatch at pop time means the
// neighborhood changed and the entry is stale.
type candidate struct {
	cost     float64
	variance float64
	edgeID   int
	v0, v1   int32
	ver0     uint32
	ver1     uint32
	pos      math.Vec3
}

// candidateHeap orders collapses by error, then by local curvature
// variance (flatter neighborhoods first), then by edge discovery index
// so identical inputs always collapse in the same order.
type candidateHeap []candidate

func (h candidateHeap) Len() int { return len(h) }
func (h candidateHeap) Less(i, j int) bool {
	if h[i].cost != h[j].cost {
		return h[i].cost < h[j].cost
	}
	if h[i].variance != h[j].variance {
		return h[i].variance < h[j].variance
	}
	return h[i].edgeID < h[j].edgeID
}
func (h candidateHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *candidateHeap) Push(x any) {
	*h = append(*h, x.(candidate))
}

func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}

type decimator struct {
	positions []math.Vec3
	quadrics  []Quadric
	faces     [][3]int32
	faceAlive []bool
	vertAlive []bool
	version   []uint32
	// vertFaces is append-only: faces that die or move away stay listed
	// and are filtered through faceAlive on every walk.
	vertFaces  [][]int32
	aliveFaces int

	queue   candidateHeap
	edgeIDs map[uint64]int
	nextID  int
}

func newDecimator(m *RawMesh) *decimator {
	nv := len(m.Vertices)
	nf := len(m.Faces)

	d := &decimator{
		positions:  make([]math.Vec3, nv),
		quadrics:   make([]Quadric, nv),
		faces:      make([][3]int32, nf),
		faceAlive:  make([]bool, nf),
		vertAlive:  make([]bool, nv),
		version:    make([]uint32, nv),
		vertFaces:  make([][]int32, nv),
		aliveFaces: nf,
		edgeIDs:    make(map[uint64]int),
	}
	copy(d.positions, m.Vertices)
	for i := range d.vertAlive {
		d.vertAlive[i] = true
	}

	for fi, f := range m.Faces {
		d.faces[fi] = [3]int32{int32(f[0]), int32(f[1]), int32(f[2])}
		d.faceAlive[fi] = true
		for _, vi := range d.faces[fi] {
			d.vertFaces[vi] = append(d.vertFaces[vi], int32(fi))
		}
		q := faceQuadric(m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]])
		for _, vi := range f {
			d.quadrics[vi].Add(&q)
		}
	}

	// Seed the queue with every edge, discovered in face order so edge
	// ids are reproducible.
	for fi := range d.faces {
		f := d.faces[fi]
		d.pushEdge(f[0], f[1])
		d.pushEdge(f[1], f[2])
		d.pushEdge(f[2], f[0])
	}
	heap.Init(&d.queue)
	return d
}

func edgeKey(a, b int32) uint64 {
	if a > b {
		a, b = b, a
	}
	return uint64(a)<<32 | uint64(uint32(b))
}

// pushEdge queues a collapse candidate for the edge (a, b), assigning a
// stable id on first discovery.
func (d *decimator) pushEdge(a, b int32) {
	if a == b {
		return
	}
	if a > b {
		a, b = b, a
	}
	key := edgeKey(a, b)
	id, ok := d.edgeIDs[key]
	if !ok {
		id = d.nextID
		d.nextID++
		d.edgeIDs[key] = id
	}

	qa := d.quadrics[a]
	qa.Add(&d.quadrics[b])
	pos, cost := bestCollapsePosition(&qa, d.positions[a], d.positions[b])

	d.queue = append(d.queue, candidate{
		cost:     cost,
		variance: d.localNormalVariance(a, b),
		edgeID:   id,
		v0:       a,
		v1:       b,
		ver0:     d.version[a],
		ver1:     d.version[b],
		pos:      pos,
	})
}

// pushEdgeFixed is pushEdge for an already-initialized heap.
func (d *decimator) pushEdgeFixed(a, b int32) {
	before := len(d.queue)
	d.pushEdge(a, b)
	if len(d.queue) > before {
		heap.Fix(&d.queue, len(d.queue)-1)
	}
}

// bestCollapsePosition evaluates the merged quadric at both endpoints
// and the midpoint and picks the cheapest. Solving the full 3x3 system
// for the true optimum buys little on dense scan meshes and can place
// vertices far outside the hull on near-singular quadrics.
func bestCollapsePosition(q *Quadric, p0, p1 math.Vec3) (math.Vec3, float64) {
	mid := p0.Add(p1).MulScalar(0.5)
	best := p0
	bestErr := q.Error(p0)
	if e := q.Error(p1); e < bestErr {
		best, bestErr = p1, e
	}
	if e := q.Error(mid); e < bestErr {
		best, bestErr = mid, e
	}
	return best, bestErr
}

// localNormalVariance measures how uneven the face normals around the
// edge (a, b) are: the average angular deviation from the mean normal.
// Flat regions score near zero and are preferred when collapse costs tie.
func (d *decimator) localNormalVariance(a, b int32) float64 {
	var normals []math.Vec3
	seen := make(map[int32]bool)
	for _, vi := range [2]int32{a, b} {
		for _, fi := range d.vertFaces[vi] {
			if !d.faceAlive[fi] || seen[fi] {
				continue
			}
			seen[fi] = true
			f := d.faces[fi]
			n := math.FaceNormal(d.positions[f[0]], d.positions[f[1]], d.positions[f[2]]).Normalized()
			normals = append(normals, n)
		}
	}
	if len(normals) < 2 {
		return 0
	}
	var mean math.Vec3
	for _, n := range normals {
		mean = mean.Add(n)
	}
	mean = mean.Normalized()
	variance := 0.0
	for _, n := range normals {
		variance += 1.0 - float64(n.Dot(mean))
	}
	return variance / float64(len(normals))
}

// sharesAliveFace reports whether (a, b) is still an edge of the alive
// surface.
func (d *decimator) sharesAliveFace(a, b int32) bool {
	for _, fi := range d.vertFaces[a] {
		if !d.faceAlive[fi] {
			continue
		}
		f := d.faces[fi]
		if (f[0] == b || f[1] == b || f[2] == b) &&
			(f[0] == a || f[1] == a || f[2] == a) {
			return true
		}
	}
	return false
}

func (d *decimator) run(ctx context.Context, targetFaces int) error {
	pops := 0
	for d.aliveFaces > targetFaces && d.queue.Len() > 0 {
		pops++
		if pops%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		c := heap.Pop(&d.queue).(candidate)
		if !d.vertAlive[c.v0] || !d.vertAlive[c.v1] {
			continue
		}
		if d.version[c.v0] != c.ver0 || d.version[c.v1] != c.ver1 {
			continue
		}
		if !d.sharesAliveFace(c.v0, c.v1) {
			continue
		}

		removed := d.countDoomedFaces(c.v0, c.v1)
		if d.aliveFaces-removed < MinimumFaces {
			continue
		}
		if !d.collapseIsSafe(c.v0, c.v1, c.pos) {
			continue
		}

		d.collapse(c)
	}
	return ctx.Err()
}

// countDoomedFaces counts alive faces containing both endpoints; these
// degenerate to a line when the edge collapses and are removed.
func (d *decimator) countDoomedFaces(a, b int32) int {
	count := 0
	for _, fi := range d.vertFaces[a] {
		if !d.faceAlive[fi] {
			continue
		}
		f := d.faces[fi]
		if f[0] == b || f[1] == b || f[2] == b {
			count++
		}
	}
	return count
}

// collapseIsSafe simulates moving both endpoints to pos and rejects the
// collapse if any surviving neighbor face would invert its normal or
// lose essentially all of its area.
func (d *decimator) collapseIsSafe(a, b int32, pos math.Vec3) bool {
	const minArea = 1e-12
	seen := make(map[int32]bool)
	for _, vi := range [2]int32{a, b} {
		for _, fi := range d.vertFaces[vi] {
			if !d.faceAlive[fi] || seen[fi] {
				continue
			}
			seen[fi] = true
			f := d.faces[fi]

			hasA := f[0] == a || f[1] == a || f[2] == a
			hasB := f[0] == b || f[1] == b || f[2] == b
			if hasA && hasB {
				// Doomed face, removed by the collapse itself.
				continue
			}

			var before, after [3]math.Vec3
			for i, idx := range f {
				before[i] = d.positions[idx]
				if idx == a || idx == b {
					after[i] = pos
				} else {
					after[i] = d.positions[idx]
				}
			}
			oldNormal := math.FaceNormal(before[0], before[1], before[2])
			newNormal := math.FaceNormal(after[0], after[1], after[2])
			if float64(newNormal.LengthSquared()) < minArea {
				return false
			}
			if oldNormal.Dot(newNormal) < 0 {
				return false
			}
		}
	}
	return true
}

// collapse merges v1 into v0 at the candidate position and refreshes
// the queue entries around the surviving vertex.
func (d *decimator) collapse(c candidate) {
	a, b := c.v0, c.v1

	for _, fi := range d.vertFaces[b] {
		if !d.faceAlive[fi] {
			continue
		}
		f := &d.faces[fi]
		if f[0] == a || f[1] == a || f[2] == a {
			d.faceAlive[fi] = false
			d.aliveFaces--
			continue
		}
		for i := range f {
			if f[i] == b {
				f[i] = a
			}
		}
		d.vertFaces[a] = append(d.vertFaces[a], fi)
	}

	d.positions[a] = c.pos
	d.quadrics[a].Add(&d.quadrics[b])
	d.vertAlive[b] = false
	d.version[a]++
	d.version[b]++

	// Re-queue the surviving vertex's edges with fresh costs.
	pushed := make(map[int32]bool)
	for _, fi := range d.vertFaces[a] {
		if !d.faceAlive[fi] {
			continue
		}
		f := d.faces[fi]
		for _, vi := range f {
			if vi == a || pushed[vi] {
				continue
			}
			pushed[vi] = true
			d.pushEdgeFixed(a, vi)
		}
	}
}

// compact rebuilds dense vertex and face slices from the surviving
// subset, preserving the original relative ordering of both.
func (d *decimator) compact() ([]math.Vec3, []Face) {
	used := make([]bool, len(d.positions))
	for fi, alive := range d.faceAlive {
		if !alive {
			continue
		}
		for _, vi := range d.faces[fi] {
			used[vi] = true
		}
	}

	remap := make([]uint32, len(d.positions))
	vertices := make([]math.Vec3, 0, d.aliveFaces*3/2)
	for vi, u := range used {
		if !u {
			continue
		}
		remap[vi] = uint32(len(vertices))
		vertices = append(vertices, d.positions[vi])
	}

	faces := make([]Face, 0, d.aliveFaces)
	for fi, alive := range d.faceAlive {
		if !alive {
			continue
		}
		f := d.faces[fi]
		faces = append(faces, Face{remap[f[0]], remap[f[1]], remap[f[2]]})
	}
	return vertices, faces
}

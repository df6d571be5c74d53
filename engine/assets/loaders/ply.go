package loaders

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spaghettifunk/dataverse/engine/math"
	"github.com/spaghettifunk/dataverse/engine/mesh"
)

// PlyLoader reads ASCII PLY artifacts. Meshes carry a face element;
// scan point clouds often carry vertices only, and those are thinned to
// MaxPoints with a deterministic stride so a huge cloud never lands in
// memory at full density.
type PlyLoader struct {
	// MaxPoints bounds vertex-only artifacts. Zero means keep all.
	MaxPoints int
}

type plyHeader struct {
	vertexCount int
	faceCount   int
	// x/y/z positions within the vertex property list.
	xProp, yProp, zProp int
	propCount           int
}

func (pl *PlyLoader) Load(path string) (*mesh.RawMesh, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	header, err := parsePlyHeader(scanner, path)
	if err != nil {
		return nil, err
	}

	m := &mesh.RawMesh{
		Vertices: make([]math.Vec3, 0, header.vertexCount),
	}

	for i := 0; i < header.vertexCount; i++ {
		if !scanner.Scan() {
			return nil, fmt.Errorf("ply %s: truncated vertex element", path)
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) < header.propCount {
			return nil, fmt.Errorf("ply %s: vertex %d has %d of %d properties", path, i, len(fields), header.propCount)
		}
		v, err := parsePlyVertex(fields, header)
		if err != nil {
			return nil, fmt.Errorf("ply %s: vertex %d: %w", path, i, err)
		}
		m.Vertices = append(m.Vertices, v)
	}

	for i := 0; i < header.faceCount; i++ {
		if !scanner.Scan() {
			return nil, fmt.Errorf("ply %s: truncated face element", path)
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			return nil, fmt.Errorf("ply %s: empty face %d", path, i)
		}
		count, err := strconv.Atoi(fields[0])
		if err != nil || count < 3 || len(fields) < count+1 {
			return nil, fmt.Errorf("ply %s: malformed face %d", path, i)
		}
		indices := make([]uint32, count)
		for j := 0; j < count; j++ {
			idx, err := strconv.ParseUint(fields[j+1], 10, 32)
			if err != nil {
				return nil, fmt.Errorf("ply %s: face %d: %w", path, i, err)
			}
			indices[j] = uint32(idx)
		}
		for j := 1; j+1 < count; j++ {
			m.Faces = append(m.Faces, mesh.Face{indices[0], indices[j], indices[j+1]})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(m.Faces) == 0 && pl.MaxPoints > 0 && len(m.Vertices) > pl.MaxPoints {
		m.Vertices = stridedSubsample(m.Vertices, pl.MaxPoints)
	}
	return m, nil
}

func parsePlyHeader(scanner *bufio.Scanner, path string) (*plyHeader, error) {
	if !scanner.Scan() || strings.TrimSpace(scanner.Text()) != "ply" {
		return nil, fmt.Errorf("ply %s: missing magic", path)
	}

	header := &plyHeader{xProp: -1, yProp: -1, zProp: -1}
	currentElement := ""
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "format":
			if len(fields) < 2 || fields[1] != "ascii" {
				return nil, fmt.Errorf("ply %s: only ascii format is supported", path)
			}
		case "comment":
		case "element":
			if len(fields) < 3 {
				return nil, fmt.Errorf("ply %s: malformed element", path)
			}
			count, err := strconv.Atoi(fields[2])
			if err != nil {
				return nil, fmt.Errorf("ply %s: element count: %w", path, err)
			}
			currentElement = fields[1]
			switch currentElement {
			case "vertex":
				header.vertexCount = count
			case "face":
				header.faceCount = count
			}
		case "property":
			if currentElement != "vertex" || len(fields) < 3 {
				continue
			}
			switch fields[len(fields)-1] {
			case "x":
				header.xProp = header.propCount
			case "y":
				header.yProp = header.propCount
			case "z":
				header.zProp = header.propCount
			}
			header.propCount++
		case "end_header":
			if header.xProp < 0 || header.yProp < 0 || header.zProp < 0 {
				return nil, fmt.Errorf("ply %s: vertex element lacks x/y/z properties", path)
			}
			return header, nil
		}
	}
	return nil, fmt.Errorf("ply %s: unterminated header", path)
}

func parsePlyVertex(fields []string, header *plyHeader) (math.Vec3, error) {
	var v math.Vec3
	x, err := strconv.ParseFloat(fields[header.xProp], 32)
	if err != nil {
		return v, err
	}
	y, err := strconv.ParseFloat(fields[header.yProp], 32)
	if err != nil {
		return v, err
	}
	z, err := strconv.ParseFloat(fields[header.zProp], 32)
	if err != nil {
		return v, err
	}
	v.X, v.Y, v.Z = float32(x), float32(y), float32(z)
	return v, nil
}

// stridedSubsample keeps every n-th point so repeated loads of the same
// cloud produce the same thinned result.
func stridedSubsample(points []math.Vec3, max int) []math.Vec3 {
	stride := (len(points) + max - 1) / max
	out := make([]math.Vec3, 0, max)
	for i := 0; i < len(points) && len(out) < max; i += stride {
		out = append(out, points[i])
	}
	return out
}

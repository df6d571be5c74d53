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

// ObjLoader reads Wavefront OBJ geometry: vertex positions and faces.
// Normals, texture coordinates, materials and groups are skipped; the
// pipeline only needs positions and index triples. Polygonal faces are
// fan-triangulated the way the upstream tooling triangulates quads.
type ObjLoader struct{}

func (ol *ObjLoader) Load(path string) (*mesh.RawMesh, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	m := &mesh.RawMesh{}
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				return nil, fmt.Errorf("obj %s:%d: vertex needs 3 components", path, lineNo)
			}
			var pos [3]float32
			for i := 0; i < 3; i++ {
				value, err := strconv.ParseFloat(fields[i+1], 32)
				if err != nil {
					return nil, fmt.Errorf("obj %s:%d: %w", path, lineNo, err)
				}
				pos[i] = float32(value)
			}
			m.Vertices = append(m.Vertices, math.Vec3{X: pos[0], Y: pos[1], Z: pos[2]})
		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("obj %s:%d: face needs at least 3 indices", path, lineNo)
			}
			indices := make([]uint32, 0, len(fields)-1)
			for _, field := range fields[1:] {
				idx, err := parseObjIndex(field, len(m.Vertices))
				if err != nil {
					return nil, fmt.Errorf("obj %s:%d: %w", path, lineNo, err)
				}
				indices = append(indices, idx)
			}
			for i := 1; i+1 < len(indices); i++ {
				m.Faces = append(m.Faces, mesh.Face{indices[0], indices[i], indices[i+1]})
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// WriteObj writes positions and faces back out as a minimal OBJ file,
// used by the offline preprocessing path to persist a decimated mesh.
func WriteObj(path string, vertices []math.Vec3, faces []mesh.Face) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	for _, v := range vertices {
		fmt.Fprintf(w, "v %g %g %g\n", v.X, v.Y, v.Z)
	}
	for _, f := range faces {
		fmt.Fprintf(w, "f %d %d %d\n", f[0]+1, f[1]+1, f[2]+1)
	}
	return w.Flush()
}

// parseObjIndex resolves one face vertex reference ("7", "7/1", "7//3",
// or a negative relative index) to a zero-based vertex index. Range
// checking is left to mesh validation so corrupt files surface through
// the shared taxonomy.
func parseObjIndex(field string, vertexCount int) (uint32, error) {
	if slash := strings.IndexByte(field, '/'); slash >= 0 {
		field = field[:slash]
	}
	value, err := strconv.Atoi(field)
	if err != nil {
		return 0, err
	}
	if value < 0 {
		value = vertexCount + value + 1
	}
	if value <= 0 {
		return 0, fmt.Errorf("face index %q resolves to nothing", field)
	}
	return uint32(value - 1), nil
}

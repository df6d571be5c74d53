package loaders

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/dataverse/engine/math"
	"github.com/spaghettifunk/dataverse/engine/mesh"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestObjLoaderTriangles(t *testing.T) {
	path := writeTempFile(t, "tri.obj", `
# simple pyramid base
v 0 0 0
v 1 0 0
v 0 1 0
v 0 0 1
f 1 2 3
f 1 2 4
`)
	var loader ObjLoader
	m, err := loader.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, m.VertexCount())
	assert.Equal(t, 2, m.FaceCount())
	assert.Equal(t, math.Vec3{X: 1, Y: 0, Z: 0}, m.Vertices[1])
	assert.Equal(t, mesh.Face{0, 1, 2}, m.Faces[0])
}

func TestObjLoaderQuadTriangulation(t *testing.T) {
	path := writeTempFile(t, "quad.obj", `
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
f 1 2 3 4
`)
	var loader ObjLoader
	m, err := loader.Load(path)
	require.NoError(t, err)
	require.Equal(t, 2, m.FaceCount())
	assert.Equal(t, mesh.Face{0, 1, 2}, m.Faces[0])
	assert.Equal(t, mesh.Face{0, 2, 3}, m.Faces[1])
}

func TestObjLoaderIndexForms(t *testing.T) {
	// Slashed references and negative relative indices both resolve to
	// the same positions.
	path := writeTempFile(t, "forms.obj", `
v 0 0 0
v 1 0 0
v 0 1 0
f 1/1 2//2 3/1/1
f -3 -2 -1
`)
	var loader ObjLoader
	m, err := loader.Load(path)
	require.NoError(t, err)
	require.Equal(t, 2, m.FaceCount())
	assert.Equal(t, m.Faces[0], m.Faces[1])
}

func TestObjLoaderMalformed(t *testing.T) {
	var loader ObjLoader

	_, err := loader.Load(writeTempFile(t, "badv.obj", "v 0 0\n"))
	assert.Error(t, err)

	_, err = loader.Load(writeTempFile(t, "badf.obj", "v 0 0 0\nf 1 2\n"))
	assert.Error(t, err)

	_, err = loader.Load(writeTempFile(t, "badidx.obj", "v 0 0 0\nf 0 1 1\n"))
	assert.Error(t, err)

	_, err = loader.Load(writeTempFile(t, "nan.obj", "v a b c\n"))
	assert.Error(t, err)

	_, err = loader.Load(filepath.Join(t.TempDir(), "missing.obj"))
	assert.Error(t, err)
}

func TestObjLoaderOutOfRangeSurvivesParse(t *testing.T) {
	// Range checks are deferred to mesh validation.
	path := writeTempFile(t, "oob.obj", "v 0 0 0\nf 1 2 3\n")
	var loader ObjLoader
	m, err := loader.Load(path)
	require.NoError(t, err)
	assert.Error(t, m.Validate())
}

func TestWriteObjRoundTrip(t *testing.T) {
	vertices := []math.Vec3{
		{X: 0, Y: 0, Z: 0},
		{X: 1.5, Y: 0, Z: 0},
		{X: 0, Y: 2.25, Z: 0},
	}
	faces := []mesh.Face{{0, 1, 2}}

	path := filepath.Join(t.TempDir(), "out.obj")
	require.NoError(t, WriteObj(path, vertices, faces))

	var loader ObjLoader
	m, err := loader.Load(path)
	require.NoError(t, err)
	assert.Equal(t, vertices, m.Vertices)
	assert.Equal(t, faces, m.Faces)
}

package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/dataverse/engine/assets/loaders"
)

// gridObj builds a flat triangulated grid with 2*n*n faces as OBJ text.
func gridObj(n int) string {
	var b strings.Builder
	for y := 0; y <= n; y++ {
		for x := 0; x <= n; x++ {
			fmt.Fprintf(&b, "v %d %d 0\n", x, y)
		}
	}
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			v0 := y*(n+1) + x + 1
			v1 := v0 + 1
			v2 := v0 + n + 1
			v3 := v2 + 1
			fmt.Fprintf(&b, "f %d %d %d\n", v0, v1, v3)
			fmt.Fprintf(&b, "f %d %d %d\n", v0, v3, v2)
		}
	}
	return b.String()
}

func TestPreprocessWritesDecimatedArtifact(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.obj")
	out := filepath.Join(dir, "out.obj")
	require.NoError(t, os.WriteFile(in, []byte(gridObj(10)), 0o644))

	preprocessIn = in
	preprocessOut = out
	preprocessRatio = 0.5
	preprocessMaxFaces = 15000
	require.NoError(t, preprocess())

	var loader loaders.ObjLoader
	m, err := loader.Load(out)
	require.NoError(t, err)
	assert.NoError(t, m.Validate())
	// 200 source faces halved.
	assert.LessOrEqual(t, m.FaceCount(), 100)
	assert.Greater(t, m.FaceCount(), 0)
}

func TestPreprocessMissingInput(t *testing.T) {
	preprocessIn = filepath.Join(t.TempDir(), "absent.obj")
	preprocessOut = filepath.Join(t.TempDir(), "out.obj")
	preprocessRatio = 0.5
	preprocessMaxFaces = 15000
	assert.Error(t, preprocess())
}

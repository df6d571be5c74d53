package assets

import "github.com/spaghettifunk/dataverse/engine/mesh"

// Loader parses one on-disk artifact format into a RawMesh. Loaders are
// stateless; they hold no reference to the returned mesh.
type Loader interface {
	Load(path string) (*mesh.RawMesh, error)
}

package core

import (
	"errors"
)

var (
	// ErrAssetNotFound is returned when an asset id has no mesh artifact
	// behind it. Non-retryable; the caller should fall back to a
	// "no 3D model available" surface.
	ErrAssetNotFound = errors.New("asset not found")

	// ErrMeshCorrupt is returned when a stored artifact fails structural
	// validation (out-of-bounds face index, empty vertex set).
	ErrMeshCorrupt = errors.New("mesh corrupt")

	// ErrInvalidMesh is the in-memory counterpart of ErrMeshCorrupt,
	// raised when a RawMesh handed to the decimator fails the same checks.
	ErrInvalidMesh = errors.New("invalid mesh")

	ErrUnknown = errors.New("unknown")
)

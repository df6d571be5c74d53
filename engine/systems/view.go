package systems

import (
	"context"
	"sync"

	"github.com/spaghettifunk/dataverse/engine/mesh"
)

// SlotState is the lifecycle position of one asset's 3D view.
type SlotState uint8

const (
	// No mesh held; activation starts the pipeline from scratch.
	SlotUnloaded SlotState = iota
	// Reading the raw artifact from storage.
	SlotLoading
	// Reducing the raw mesh to the budget target.
	SlotDecimating
	// Holding one decimated mesh for the renderer.
	SlotReady
	// The budget policy ruled 3D out for this asset. Not a failure.
	SlotSkipped
	// The pipeline hit a terminal data error.
	SlotFailed
)

func (s SlotState) String() string {
	switch s {
	case SlotUnloaded:
		return "unloaded"
	case SlotLoading:
		return "loading"
	case SlotDecimating:
		return "decimating"
	case SlotReady:
		return "ready"
	case SlotSkipped:
		return "skipped"
	case SlotFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ViewSlot is the per-asset state owned by the mesh system: at most one
// live decimated mesh, plus the bookkeeping to cancel and restart the
// pipeline. Each slot has its own lock so unrelated assets never
// contend.
type ViewSlot struct {
	AssetID string

	mu         sync.Mutex
	state      SlotState
	mesh       *mesh.DecimatedMesh
	reason     string
	err        error
	generation uint64

	// runID distinguishes the pipeline currently allowed to write this
	// slot; deactivation bumps it so a cancelled run's late writes land
	// nowhere.
	runID  uint64
	cancel context.CancelFunc
	done   chan struct{}
}

// Status is an immutable snapshot of a slot, safe to hand to callers.
type Status struct {
	AssetID    string
	State      SlotState
	Reason     string
	Generation uint64
}

func newViewSlot(assetID string) *ViewSlot {
	settled := make(chan struct{})
	close(settled)
	return &ViewSlot{
		AssetID: assetID,
		state:   SlotUnloaded,
		done:    settled,
	}
}

func (vs *ViewSlot) snapshotLocked() Status {
	return Status{
		AssetID:    vs.AssetID,
		State:      vs.state,
		Reason:     vs.reason,
		Generation: vs.generation,
	}
}

// Snapshot returns the slot's current status.
func (vs *ViewSlot) Snapshot() Status {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return vs.snapshotLocked()
}

// transition moves the slot to state if runID still owns it. It returns
// false when a deactivation (or a newer activation) took over.
func (vs *ViewSlot) transition(runID uint64, state SlotState) bool {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	if vs.runID != runID {
		return false
	}
	vs.state = state
	return true
}

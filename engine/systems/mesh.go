package systems

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/spaghettifunk/dataverse/engine/budget"
	"github.com/spaghettifunk/dataverse/engine/core"
	"github.com/spaghettifunk/dataverse/engine/mesh"
)

// Reader obtains the raw mesh for an asset id. Implementations must not
// retain the returned mesh.
type Reader interface {
	Read(assetID string) (*mesh.RawMesh, error)
}

// Surveyor caches element counts across activations so a hopelessly
// over-budget asset can be skipped without re-reading its geometry.
type Surveyor interface {
	CachedCounts(assetID string) (vertices, faces int64, ok bool)
	RecordSurvey(assetID string, vertices, faces int)
}

// MeshSystemConfig sizes the lifecycle manager.
type MeshSystemConfig struct {
	Budget budget.Budget
	// Workers bounds how many asset pipelines run concurrently.
	Workers int
	// QueueSize is the job backlog; zero defaults to Workers*2.
	QueueSize int
}

// MeshSystem owns every view slot and drives the acquisition/decimation
// pipeline: activation reads, reduces and caches exactly one mesh per
// visible asset view; deactivation is the only way that memory comes
// back.
type MeshSystem struct {
	budget   budget.Budget
	reader   Reader
	surveyor Surveyor
	jobs     *JobSystem

	slotsMu sync.Mutex
	slots   map[string]*ViewSlot
}

func NewMeshSystem(cfg MeshSystemConfig, reader Reader, surveyor Surveyor) (*MeshSystem, error) {
	if reader == nil {
		return nil, fmt.Errorf("func NewMeshSystem - reader must not be nil")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.Workers * 2
	}
	jobs, err := NewJobSystem(cfg.Workers, cfg.QueueSize)
	if err != nil {
		return nil, err
	}
	return &MeshSystem{
		budget:   cfg.Budget,
		reader:   reader,
		surveyor: surveyor,
		jobs:     jobs,
		slots:    make(map[string]*ViewSlot),
	}, nil
}

func (ms *MeshSystem) slot(assetID string) *ViewSlot {
	ms.slotsMu.Lock()
	defer ms.slotsMu.Unlock()
	vs, ok := ms.slots[assetID]
	if !ok {
		vs = newViewSlot(assetID)
		ms.slots[assetID] = vs
	}
	return vs
}

// Activate starts (or reuses) the pipeline for an asset view that just
// became visible. It returns immediately with the slot's status; use
// Await to block until the pipeline settles. A second Activate while a
// pipeline is in flight or a mesh is held is a no-op returning the
// existing state, so the same asset never runs two pipelines at once.
func (ms *MeshSystem) Activate(assetID string) Status {
	core.MetricsActivation()
	vs := ms.slot(assetID)

	vs.mu.Lock()
	switch vs.state {
	case SlotLoading, SlotDecimating, SlotReady:
		// Idempotent: the pipeline already ran or is running.
		snap := vs.snapshotLocked()
		vs.mu.Unlock()
		return snap
	}

	// Skipped and Failed are terminal per activation; an explicit new
	// Activate is the sanctioned way to re-run them.
	if ms.budget.Disable3D {
		vs.state = SlotSkipped
		vs.reason = "3D disabled by configuration"
		vs.err = nil
		snap := vs.snapshotLocked()
		vs.mu.Unlock()
		core.MetricsSkip()
		return snap
	}

	vs.runID++
	runID := vs.runID
	ctx, cancel := context.WithCancel(context.Background())
	vs.cancel = cancel
	done := make(chan struct{})
	vs.done = done
	vs.state = SlotLoading
	vs.reason = ""
	vs.err = nil
	snap := vs.snapshotLocked()
	vs.mu.Unlock()

	activation := uuid.New().String()[:8]
	ms.jobs.AddWorkNonBlocking(JobTask{
		Name: fmt.Sprintf("pipeline/%s/%s", assetID, activation),
		Ctx:  ctx,
		OnStart: func(ctx context.Context) error {
			return ms.runPipeline(ctx, vs, runID, activation)
		},
		OnComplete: func() { close(done) },
		OnFailure: func(err error) {
			if errors.Is(err, ErrJobSystemClosed) {
				// The pool rejected the job; nothing ran, so the slot
				// must be settled here or Await would never return.
				ms.settleFailure(vs, runID, err)
			}
			close(done)
		},
	})
	return snap
}

// Deactivate drops whatever the slot holds, whether a finished mesh or
// an in-flight pipeline, and returns it to Unloaded. This is the sole
// memory reclamation path; there is no background eviction.
func (ms *MeshSystem) Deactivate(assetID string) Status {
	vs := ms.slot(assetID)

	vs.mu.Lock()
	defer vs.mu.Unlock()

	if vs.cancel != nil {
		vs.cancel()
		vs.cancel = nil
	}
	// Orphan any in-flight run so its late writes land nowhere.
	vs.runID++
	if vs.mesh != nil {
		core.MetricsRelease(vs.mesh.FootprintBytes())
		vs.mesh = nil
	}
	vs.state = SlotUnloaded
	vs.reason = ""
	vs.err = nil
	return vs.snapshotLocked()
}

// State returns the slot's current status without touching the
// pipeline.
func (ms *MeshSystem) State(assetID string) Status {
	return ms.slot(assetID).Snapshot()
}

// Mesh exposes the held decimated mesh while the slot is Ready.
func (ms *MeshSystem) Mesh(assetID string) (*mesh.DecimatedMesh, bool) {
	vs := ms.slot(assetID)
	vs.mu.Lock()
	defer vs.mu.Unlock()
	if vs.state != SlotReady || vs.mesh == nil {
		return nil, false
	}
	return vs.mesh, true
}

// Await blocks until the asset's pipeline settles (Ready, Skipped,
// Failed or back to Unloaded) or ctx expires.
func (ms *MeshSystem) Await(ctx context.Context, assetID string) (Status, error) {
	vs := ms.slot(assetID)
	for {
		vs.mu.Lock()
		if vs.state != SlotLoading && vs.state != SlotDecimating {
			snap := vs.snapshotLocked()
			vs.mu.Unlock()
			return snap, nil
		}
		done := vs.done
		vs.mu.Unlock()

		select {
		case <-ctx.Done():
			return vs.Snapshot(), ctx.Err()
		case <-done:
		}
	}
}

// Statuses returns a snapshot of every known slot.
func (ms *MeshSystem) Statuses() []Status {
	ms.slotsMu.Lock()
	slots := make([]*ViewSlot, 0, len(ms.slots))
	for _, vs := range ms.slots {
		slots = append(slots, vs)
	}
	ms.slotsMu.Unlock()

	out := make([]Status, 0, len(slots))
	for _, vs := range slots {
		out = append(out, vs.Snapshot())
	}
	return out
}

// Shutdown deactivates every slot and drains the worker pool.
func (ms *MeshSystem) Shutdown() error {
	ms.slotsMu.Lock()
	ids := make([]string, 0, len(ms.slots))
	for id := range ms.slots {
		ids = append(ids, id)
	}
	ms.slotsMu.Unlock()

	for _, id := range ids {
		ms.Deactivate(id)
	}
	return ms.jobs.Shutdown()
}

// runPipeline is one activation: read, resolve the budget target,
// decimate, publish. Every stage re-checks that the run still owns the
// slot so a deactivation mid-flight discards all partial work.
func (ms *MeshSystem) runPipeline(ctx context.Context, vs *ViewSlot, runID uint64, activation string) error {
	assetID := vs.AssetID

	// Budget ruling from cached counts, before any I/O.
	if ms.surveyor != nil {
		if _, faces, ok := ms.surveyor.CachedCounts(assetID); ok && faces >= 0 {
			if decision := budget.ResolveTarget(int(faces), ms.budget); decision.Skip {
				ms.settleSkip(vs, runID, decision.Reason)
				core.LogInfo("[%s] skipping %q without read: %s", activation, assetID, decision.Reason)
				return nil
			}
		}
	}

	raw, err := ms.reader.Read(assetID)
	if err != nil {
		ms.settleFailure(vs, runID, err)
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if ms.surveyor != nil {
		ms.surveyor.RecordSurvey(assetID, raw.VertexCount(), raw.FaceCount())
	}

	sourceFaces := raw.FaceCount()
	decision := budget.ResolveTarget(sourceFaces, ms.budget)
	if decision.Skip {
		raw = nil
		ms.settleSkip(vs, runID, decision.Reason)
		core.LogInfo("[%s] skipping %q: %s", activation, assetID, decision.Reason)
		return nil
	}

	if !vs.transition(runID, SlotDecimating) {
		// Deactivated while loading; drop the raw mesh here and now.
		return nil
	}

	clock := core.NewClock()
	clock.Start()
	decimated, err := mesh.Decimate(ctx, raw, decision.TargetFaces)
	raw = nil
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		ms.settleFailure(vs, runID, err)
		return err
	}
	clock.Update()

	vs.mu.Lock()
	if vs.runID != runID {
		// Deactivated during decimation; the result is discarded and
		// the slot stays Unloaded.
		vs.mu.Unlock()
		return nil
	}
	vs.generation++
	decimated.AssetID = assetID
	decimated.Generation = vs.generation
	vs.mesh = decimated
	vs.state = SlotReady
	vs.reason = ""
	vs.mu.Unlock()

	core.MetricsDecimation(clock.ElapsedSeconds(), sourceFaces-decimated.AchievedFaces, decimated.FootprintBytes())
	core.LogInfo("[%s] %q ready: %d -> %d faces (%.1f%% reduction) in %.1fms",
		activation, assetID, sourceFaces, decimated.AchievedFaces,
		decimated.RatioApplied*100, clock.ElapsedSeconds()*1000)
	return nil
}

func (ms *MeshSystem) settleSkip(vs *ViewSlot, runID uint64, reason string) {
	vs.mu.Lock()
	if vs.runID == runID {
		vs.state = SlotSkipped
		vs.reason = reason
		vs.cancel = nil
	}
	vs.mu.Unlock()
	core.MetricsSkip()
}

func (ms *MeshSystem) settleFailure(vs *ViewSlot, runID uint64, err error) {
	vs.mu.Lock()
	if vs.runID == runID {
		vs.state = SlotFailed
		vs.reason = err.Error()
		vs.err = err
		vs.cancel = nil
	}
	vs.mu.Unlock()
	core.MetricsFailure()
	core.LogError("pipeline for %q failed: %s", vs.AssetID, err.Error())
}

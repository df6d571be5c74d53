package engine

import (
	"github.com/spaghettifunk/dataverse/engine/assets"
	"github.com/spaghettifunk/dataverse/engine/catalog"
	"github.com/spaghettifunk/dataverse/engine/config"
	"github.com/spaghettifunk/dataverse/engine/core"
	"github.com/spaghettifunk/dataverse/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

// Engine wires the mesh pipeline together: catalog, asset manager and
// the mesh lifecycle system, configured once at startup.
type Engine struct {
	currentStage Stage
	cfg          config.Config

	assetManager *assets.Manager
	catalogStore *catalog.Store
	meshSystem   *systems.MeshSystem
}

func New(cfg config.Config) (*Engine, error) {
	return &Engine{
		currentStage: EngineStageUninitialized,
		cfg:          cfg,
	}, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing

	core.SetLogLevel(e.cfg.Log.Level)
	if err := core.MetricsInitialize(); err != nil {
		return err
	}

	store, err := catalog.Open(e.cfg.Assets.CatalogPath)
	if err != nil {
		core.LogError(err.Error())
		return err
	}
	e.catalogStore = store
	indexer := catalog.NewIndexer(store)

	am, err := assets.NewManager(e.cfg.Assets.Dir, e.cfg.Assets.MaxPoints, indexer)
	if err != nil {
		core.LogError(err.Error())
		return err
	}
	if err := am.Initialize(); err != nil {
		core.LogError(err.Error())
		return err
	}
	e.assetManager = am

	meshSystem, err := systems.NewMeshSystem(systems.MeshSystemConfig{
		Budget:  e.cfg.Budget(),
		Workers: e.cfg.Mesh.Workers,
	}, am, indexer)
	if err != nil {
		core.LogError(err.Error())
		return err
	}
	e.meshSystem = meshSystem

	e.currentStage = EngineStageInitialized
	core.LogInfo("engine initialized: %d artifacts indexed, budget ratio %.2f, max faces %d",
		am.Count(), e.cfg.Mesh.DecimationRatio, e.cfg.Mesh.MaxFaces)
	return nil
}

// MeshSystem exposes the lifecycle manager to the serving edge.
func (e *Engine) MeshSystem() *systems.MeshSystem {
	return e.meshSystem
}

// Assets exposes the artifact index.
func (e *Engine) Assets() *assets.Manager {
	return e.assetManager
}

// Catalog exposes the persistent asset registry.
func (e *Engine) Catalog() *catalog.Store {
	return e.catalogStore
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	core.LogInfo("shutting down")

	if e.meshSystem != nil {
		if err := e.meshSystem.Shutdown(); err != nil {
			core.LogError(err.Error())
		}
	}
	if e.assetManager != nil {
		if err := e.assetManager.Shutdown(); err != nil {
			core.LogError(err.Error())
		}
	}
	if e.catalogStore != nil {
		if err := e.catalogStore.Close(); err != nil {
			core.LogError(err.Error())
		}
	}
	return nil
}

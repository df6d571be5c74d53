package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/dataverse/engine/assets/loaders"
	"github.com/spaghettifunk/dataverse/engine/core"
	"github.com/spaghettifunk/dataverse/engine/mesh"
)

// Kind classifies an artifact by what its format can carry.
type Kind uint8

const (
	KindNone Kind = iota
	KindMesh
	KindPointCloud
)

type AssetInfo struct {
	ID        string
	Path      string
	Kind      Kind
	IndexedAt time.Time
}

// Indexer receives catalog updates as artifacts appear, change or
// vanish under the asset root. A nil Indexer is valid.
type Indexer interface {
	Upsert(info AssetInfo)
	Remove(id string)
}

// Manager indexes the mesh artifacts under a root directory and reads
// them on demand. It keeps an fsnotify watch on the root so artifacts
// dropped in (or re-exported) after startup become visible without a
// restart. It never caches mesh data: the lifecycle manager owns that.
type Manager struct {
	root    string
	assets  map[string]AssetInfo
	loaders map[Kind]Loader
	indexer Indexer

	mutex sync.RWMutex

	done     chan struct{}
	fsnotify *fsnotify.Watcher
	isClosed bool
}

// NewManager creates a Manager for the artifact directory at root.
// maxPoints bounds vertex-only PLY clouds; indexer may be nil.
func NewManager(root string, maxPoints int, indexer Indexer) (*Manager, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	m := &Manager{
		root:     root,
		assets:   make(map[string]AssetInfo),
		loaders:  make(map[Kind]Loader),
		indexer:  indexer,
		fsnotify: fsWatch,
		done:     make(chan struct{}),
	}
	m.registerLoader(KindMesh, &loaders.ObjLoader{})
	m.registerLoader(KindPointCloud, &loaders.PlyLoader{MaxPoints: maxPoints})
	return m, nil
}

func (m *Manager) Initialize() error {
	go m.start()

	if err := m.watchRecursive(m.root, false); err != nil {
		return err
	}
	core.LogInfo("asset manager indexing '%s' (%d artifacts)", m.root, m.Count())
	return nil
}

func (m *Manager) registerLoader(kind Kind, loader Loader) {
	m.loaders[kind] = loader
}

// Read loads and validates the mesh artifact for assetID. It holds no
// reference to the returned mesh. Errors follow the reader taxonomy:
// core.ErrAssetNotFound when no artifact exists for the id, and
// core.ErrMeshCorrupt when the artifact fails parsing or structural
// validation.
func (m *Manager) Read(assetID string) (*mesh.RawMesh, error) {
	m.mutex.RLock()
	info, exists := m.assets[assetID]
	m.mutex.RUnlock()
	if !exists {
		return nil, fmt.Errorf("%w: %q", core.ErrAssetNotFound, assetID)
	}

	loader, ok := m.loaders[info.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: no loader for artifact %q", core.ErrAssetNotFound, info.Path)
	}

	raw, err := loader.Load(info.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %q", core.ErrAssetNotFound, assetID)
		}
		return nil, fmt.Errorf("%w: %v", core.ErrMeshCorrupt, err)
	}
	if err := raw.Validate(); err != nil {
		core.LogError("asset %q failed structural validation: %v", assetID, err)
		return nil, fmt.Errorf("%w: %v", core.ErrMeshCorrupt, err)
	}
	return raw, nil
}

// Lookup returns the index entry for assetID.
func (m *Manager) Lookup(assetID string) (AssetInfo, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	info, ok := m.assets[assetID]
	return info, ok
}

// List returns a snapshot of every indexed artifact.
func (m *Manager) List() []AssetInfo {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	out := make([]AssetInfo, 0, len(m.assets))
	for _, info := range m.assets {
		out = append(out, info)
	}
	return out
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.assets)
}

func (m *Manager) Shutdown() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.isClosed {
		return errors.New("asset manager already closed")
	}
	m.isClosed = true
	close(m.done)
	return nil
}

func (m *Manager) start() {
	for {
		select {
		case e := <-m.fsnotify.Events:
			s, err := os.Stat(e.Name)
			if err == nil && s != nil && s.IsDir() {
				if e.Op&fsnotify.Create != 0 {
					m.watchRecursive(e.Name, false)
				}
				continue
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				m.handleFileEvent(e.Name)
			}
			// Can't stat a deleted entry, so unconditionally drop it
			// from both the index and the watch list.
			if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				m.removeAsset(e.Name)
				m.fsnotify.Remove(e.Name)
			}

		case e := <-m.fsnotify.Errors:
			core.LogError(e.Error())

		case <-m.done:
			m.fsnotify.Close()
			return
		}
	}
}

// watchRecursive adds all directories under the given one to the watch
// list and indexes the files already present.
func (m *Manager) watchRecursive(path string, unWatch bool) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			if unWatch {
				return m.fsnotify.Remove(walkPath)
			}
			return m.fsnotify.Add(walkPath)
		}
		m.handleFileEvent(walkPath)
		return nil
	})
}

// handleFileEvent indexes a created or modified artifact.
func (m *Manager) handleFileEvent(path string) {
	kind := determineAssetKind(path)
	if kind == KindNone {
		return
	}
	info := AssetInfo{
		ID:        assetIDFromPath(path),
		Path:      path,
		Kind:      kind,
		IndexedAt: time.Now(),
	}

	m.mutex.Lock()
	m.assets[info.ID] = info
	m.mutex.Unlock()

	if m.indexer != nil {
		m.indexer.Upsert(info)
	}
}

// removeAsset drops the index entry when its artifact was deleted.
func (m *Manager) removeAsset(path string) {
	id := assetIDFromPath(path)

	m.mutex.Lock()
	_, existed := m.assets[id]
	delete(m.assets, id)
	m.mutex.Unlock()

	if existed && m.indexer != nil {
		m.indexer.Remove(id)
	}
}

// assetIDFromPath derives the asset id from the artifact file name:
// "assets/garching_cleaned.obj" -> "garching_cleaned".
func assetIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func determineAssetKind(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".obj":
		return KindMesh
	case ".ply":
		return KindPointCloud
	default:
		return KindNone
	}
}

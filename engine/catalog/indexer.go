package catalog

import (
	"github.com/spaghettifunk/dataverse/engine/assets"
	"github.com/spaghettifunk/dataverse/engine/core"
)

// Indexer adapts the Store to the asset manager's index feed, keeping
// the catalog in step with the artifact directory.
type Indexer struct {
	store *Store
}

func NewIndexer(s *Store) *Indexer {
	return &Indexer{store: s}
}

func (ix *Indexer) Upsert(info assets.AssetInfo) {
	if err := ix.store.UpsertEntry(info.ID, info.Path, kindName(info.Kind)); err != nil {
		core.LogError("catalog upsert %q: %v", info.ID, err)
	}
}

func (ix *Indexer) Remove(id string) {
	if err := ix.store.DeleteEntry(id); err != nil {
		core.LogError("catalog delete %q: %v", id, err)
	}
}

// CachedCounts returns the element counts cached by a previous survey.
// ok is false when the asset is unknown or has never been surveyed.
func (ix *Indexer) CachedCounts(assetID string) (vertices, faces int64, ok bool) {
	entry, err := ix.store.GetEntry(assetID)
	if err != nil {
		core.LogError("catalog lookup %q: %v", assetID, err)
		return 0, 0, false
	}
	if entry == nil || entry.FaceCount < 0 {
		return 0, 0, false
	}
	return entry.VertexCount, entry.FaceCount, true
}

// RecordSurvey caches the counts observed during a read.
func (ix *Indexer) RecordSurvey(assetID string, vertices, faces int) {
	if err := ix.store.RecordSurvey(assetID, vertices, faces); err != nil {
		core.LogError("catalog survey %q: %v", assetID, err)
	}
}

func kindName(kind assets.Kind) string {
	if kind == assets.KindPointCloud {
		return "pointcloud"
	}
	return "mesh"
}

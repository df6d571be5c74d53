// Package catalog persists the asset registry: which artifact backs
// each asset id, and the cached element counts that let the budget
// policy rule an asset out without reading its geometry.
package catalog

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one cataloged asset.
type Entry struct {
	ID          string
	Path        string
	Kind        string
	FaceCount   int64 // -1 when the artifact has never been surveyed
	VertexCount int64 // -1 when the artifact has never been surveyed
	UpdatedAt   int64
}

// Store wraps the sqlite connection backing the catalog.
type Store struct {
	*sql.DB
	Path string
}

const schema = `
CREATE TABLE IF NOT EXISTS assets (
    id           TEXT PRIMARY KEY,
    path         TEXT NOT NULL,
    kind         TEXT NOT NULL CHECK (kind IN ('mesh', 'pointcloud')),
    face_count   INTEGER NOT NULL DEFAULT -1,
    vertex_count INTEGER NOT NULL DEFAULT -1,
    updated_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_assets_kind ON assets(kind);
`

// Open opens (or creates) the catalog database at the given path,
// configures pragmas and applies the schema.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create catalog dir: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return initStore(sqlDB, path)
}

// OpenMemory opens an in-memory catalog for testing.
func OpenMemory() (*Store, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	return initStore(sqlDB, ":memory:")
}

func initStore(sqlDB *sql.DB, path string) (*Store, error) {
	s := &Store{DB: sqlDB, Path: path}
	if err := s.configurePragmas(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	if _, err := s.Exec(schema); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return s, nil
}

func (s *Store) configurePragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := s.Exec(p); err != nil {
			return fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	return nil
}

// UpsertEntry registers or refreshes an asset. Element counts are reset
// to unknown when the artifact path changed or the file was rewritten,
// since the cached survey no longer describes what is on disk.
func (s *Store) UpsertEntry(id, path, kind string) error {
	now := time.Now().UnixMilli()
	_, err := s.Exec(`
		INSERT INTO assets (id, path, kind, face_count, vertex_count, updated_at)
		VALUES (?, ?, ?, -1, -1, ?)
		ON CONFLICT(id) DO UPDATE SET
			path = excluded.path,
			kind = excluded.kind,
			face_count = -1,
			vertex_count = -1,
			updated_at = excluded.updated_at
	`, id, path, kind, now)
	if err != nil {
		return fmt.Errorf("upsert asset: %w", err)
	}
	return nil
}

// RecordSurvey caches the element counts observed during a read so the
// next activation can make its budget decision without touching disk.
func (s *Store) RecordSurvey(id string, vertexCount, faceCount int) error {
	now := time.Now().UnixMilli()
	_, err := s.Exec(`
		UPDATE assets SET face_count = ?, vertex_count = ?, updated_at = ?
		WHERE id = ?
	`, faceCount, vertexCount, now, id)
	if err != nil {
		return fmt.Errorf("record survey: %w", err)
	}
	return nil
}

// GetEntry returns the cataloged asset, or nil if not found.
func (s *Store) GetEntry(id string) (*Entry, error) {
	var e Entry
	err := s.QueryRow(`
		SELECT id, path, kind, face_count, vertex_count, updated_at
		FROM assets WHERE id = ?
	`, id).Scan(&e.ID, &e.Path, &e.Kind, &e.FaceCount, &e.VertexCount, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get asset: %w", err)
	}
	return &e, nil
}

// DeleteEntry removes an asset whose artifact disappeared.
func (s *Store) DeleteEntry(id string) error {
	if _, err := s.Exec(`DELETE FROM assets WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}
	return nil
}

// ListEntries returns every cataloged asset ordered by id.
func (s *Store) ListEntries() ([]Entry, error) {
	rows, err := s.Query(`
		SELECT id, path, kind, face_count, vertex_count, updated_at
		FROM assets ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Path, &e.Kind, &e.FaceCount, &e.VertexCount, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

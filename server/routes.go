package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spaghettifunk/dataverse/engine/core"
	"github.com/spaghettifunk/dataverse/engine/systems"
)

type viewResponse struct {
	AssetID    string `json:"asset_id"`
	State      string `json:"state"`
	Reason     string `json:"reason,omitempty"`
	Generation uint64 `json:"generation,omitempty"`
}

func toViewResponse(st systems.Status) viewResponse {
	return viewResponse{
		AssetID:    st.AssetID,
		State:      st.State.String(),
		Reason:     st.Reason,
		Generation: st.Generation,
	}
}

// handleActivate marks a 3D view visible and kicks off (or reuses) its
// pipeline. With ?wait=true the response carries the settled state
// instead of the in-flight one.
func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "assetID")
	if assetID == "" {
		http.Error(w, `{"error":"asset id required"}`, http.StatusBadRequest)
		return
	}

	system := s.engine.MeshSystem()
	st := system.Activate(assetID)

	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		settled, err := system.Await(r.Context(), assetID)
		if err != nil {
			// The client went away; treat its timeout as an implicit
			// deactivation so the pipeline stops burning memory.
			system.Deactivate(assetID)
			core.LogDebug("activation wait for %q abandoned: %v", assetID, err)
			return
		}
		st = settled
	}

	status := http.StatusAccepted
	if st.State != systems.SlotLoading && st.State != systems.SlotDecimating {
		status = http.StatusOK
	}
	writeJSON(w, status, toViewResponse(st))
}

// handleDeactivate releases whatever the view holds. This is the only
// path that reclaims mesh memory.
func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "assetID")
	st := s.engine.MeshSystem().Deactivate(assetID)
	writeJSON(w, http.StatusOK, toViewResponse(st))
}

func (s *Server) handleViewState(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "assetID")
	writeJSON(w, http.StatusOK, toViewResponse(s.engine.MeshSystem().State(assetID)))
}

type meshResponse struct {
	AssetID       string       `json:"asset_id"`
	Vertices      [][3]float32 `json:"vertices"`
	Faces         [][3]uint32  `json:"faces"`
	AchievedFaces int          `json:"achieved_faces"`
	RatioApplied  float64      `json:"ratio_applied"`
	Generation    uint64       `json:"generation"`
	CreatedAt     time.Time    `json:"created_at"`
}

// handleViewMesh hands the held decimated mesh to the rendering
// surface. 409 means the view is not Ready; the state endpoint says
// why.
func (s *Server) handleViewMesh(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "assetID")
	dm, ok := s.engine.MeshSystem().Mesh(assetID)
	if !ok {
		st := s.engine.MeshSystem().State(assetID)
		writeJSON(w, http.StatusConflict, toViewResponse(st))
		return
	}

	resp := meshResponse{
		AssetID:       dm.AssetID,
		Vertices:      make([][3]float32, len(dm.Vertices)),
		Faces:         make([][3]uint32, len(dm.Faces)),
		AchievedFaces: dm.AchievedFaces,
		RatioApplied:  dm.RatioApplied,
		Generation:    dm.Generation,
		CreatedAt:     dm.CreatedAt,
	}
	for i, v := range dm.Vertices {
		resp.Vertices[i] = [3]float32{v.X, v.Y, v.Z}
	}
	for i, f := range dm.Faces {
		resp.Faces[i] = [3]uint32(f)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	entries, err := s.engine.Catalog().ListEntries()
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	type assetResponse struct {
		ID          string `json:"id"`
		Kind        string `json:"kind"`
		FaceCount   int64  `json:"face_count"`
		VertexCount int64  `json:"vertex_count"`
	}
	out := make([]assetResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, assetResponse{
			ID:          e.ID,
			Kind:        e.Kind,
			FaceCount:   e.FaceCount,
			VertexCount: e.VertexCount,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snap := core.MetricsSnapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"activations":        snap.Activations,
		"decimations":        snap.Decimations,
		"skips":              snap.Skips,
		"failures":           snap.Failures,
		"faces_removed":      snap.FacesRemoved,
		"resident_bytes":     snap.ResidentBytes,
		"decimation_avg_ms":  snap.MSavg,
		"views":              len(s.engine.MeshSystem().Statuses()),
	})
}

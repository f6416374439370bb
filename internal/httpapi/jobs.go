package httpapi

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/chatvault/chatvault/internal/jobevents"
	"github.com/chatvault/chatvault/internal/types"
)

type submitJobRequest struct {
	Type       string `json:"type"`
	TargetID   string `json:"target_id"`
	TargetName string `json:"target_name"`
	Pattern    string `json:"pattern"`
}

type submitJobResponse struct {
	Job          types.Job `json:"job"`
	Deduplicated bool      `json:"deduplicated"`
}

func (srv *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var req submitJobRequest
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	job, dup, err := srv.coordinator.Submit(r.Context(), types.JobType(req.Type), req.TargetID, req.TargetName, types.Pattern(req.Pattern))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	status := http.StatusCreated
	if dup {
		status = http.StatusOK
	}
	writeJSON(w, status, submitJobResponse{Job: job, Deduplicated: dup})
}

func (srv *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := srv.store.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (srv *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	job, err := srv.store.GetJob(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if job.ResultPath != "" {
		_ = os.Remove(job.ResultPath)
	}
	if err := srv.store.DeleteJob(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleStreamJob serves `GET /api/jobs/:id/stream` by delegating to
// internal/jobevents' SSE handler, scoped to this one job ID.
func (srv *Server) handleStreamJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	handler := jobevents.NewEventStreamHandler(srv.bus.ForJob(id))
	handler.ServeHTTP(w, r)
}

func (srv *Server) handleDownloadJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	job, err := srv.store.GetJob(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if job.Status != types.JobDone || job.ResultPath == "" {
		writeError(w, http.StatusNotFound, "job has no result artifact")
		return
	}
	http.ServeFile(w, r, job.ResultPath)
}

func (srv *Server) handleCheckJob(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	targetID := q.Get("target_id")
	pattern := types.Pattern(q.Get("pattern"))
	if targetID == "" || pattern == "" {
		writeError(w, http.StatusBadRequest, "target_id and pattern are required")
		return
	}

	job, found, err := srv.coordinator.Check(r.Context(), targetID, pattern)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if !found {
		writeJSON(w, http.StatusOK, map[string]bool{"found": false})
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Found bool      `json:"found"`
		Job   types.Job `json:"job"`
	}{Found: true, Job: job})
}

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dgallion1/docassess/internal/pipeline"
	"github.com/go-chi/chi/v5"
)

const maxBatchSize = 100

type submitRequest struct {
	Org   string `json:"org"`
	JobID string `json:"job_id"`
}

func (r *submitRequest) validate() error {
	r.Org = strings.TrimSpace(r.Org)
	r.JobID = strings.TrimSpace(r.JobID)
	if r.Org == "" {
		return errors.New("org is required")
	}
	if r.JobID == "" {
		return errors.New("job_id is required")
	}
	return nil
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid json body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	run, err := s.orchestrator.Submit(req.Org, req.JobID)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, pipeline.ErrQueueFull) {
			code = http.StatusServiceUnavailable
		}
		jsonError(w, err.Error(), code)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(submitResponse(run))
}

func (s *Server) handleBatchSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req struct {
		Jobs []submitRequest `json:"jobs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid json body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Jobs) == 0 {
		jsonError(w, "at least one job is required", http.StatusBadRequest)
		return
	}
	if len(req.Jobs) > maxBatchSize {
		jsonError(w, fmt.Sprintf("at most %d jobs per batch", maxBatchSize), http.StatusBadRequest)
		return
	}

	results := make([]map[string]any, 0, len(req.Jobs))
	for _, job := range req.Jobs {
		if err := job.validate(); err != nil {
			results = append(results, map[string]any{
				"org":    job.Org,
				"job_id": job.JobID,
				"error":  err.Error(),
			})
			continue
		}

		run, err := s.orchestrator.Submit(job.Org, job.JobID)
		if err != nil {
			results = append(results, map[string]any{
				"org":    job.Org,
				"job_id": job.JobID,
				"error":  err.Error(),
			})
			continue
		}
		results = append(results, submitResponse(run))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{"runs": results})
}

func (s *Server) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	run := s.orchestrator.GetRun(runID)
	if run == nil {
		jsonError(w, "run not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(run.Snapshot())
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	org := r.URL.Query().Get("org")
	runs := s.orchestrator.ListRuns(org)

	out := make([]map[string]any, 0, len(runs))
	for _, run := range runs {
		snap := run.Snapshot()
		out = append(out, map[string]any{
			"run_id":     snap.ID,
			"org":        snap.Org,
			"job_id":     snap.JobID,
			"status":     snap.Status,
			"phase":      snap.Phase,
			"created_at": snap.CreatedAt,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"runs": out})
}

func submitResponse(run *pipeline.Run) map[string]any {
	snap := run.Snapshot()
	return map[string]any{
		"run_id":   snap.ID,
		"org":      snap.Org,
		"job_id":   snap.JobID,
		"status":   snap.Status,
		"poll_url": fmt.Sprintf("/api/evaluations/%s", snap.ID),
	}
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

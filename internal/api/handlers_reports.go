package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/qcsr/internal/pipeline"
)

// reportParams reads the optional analysis parameters from the form.
func reportParams(r *http.Request) (map[string]any, error) {
	section := r.FormValue("section")
	switch section {
	case "":
		return nil, nil
	case "Summary", "History":
		return map[string]any{"section": section}, nil
	}
	return nil, fmt.Errorf("section must be Summary or History, got %q", section)
}

func (s *Server) submit(filename string, data []byte, params map[string]any) (map[string]any, int) {
	job := pipeline.NewJob(filename, data, params)
	if err := s.orchestrator.Submit(job); err != nil {
		code := http.StatusServiceUnavailable
		var full *pipeline.ErrQueueFull
		if errors.As(err, &full) {
			code = http.StatusTooManyRequests
		}
		return map[string]any{"filename": filename, "error": err.Error()}, code
	}
	return map[string]any{
		"filename": filename,
		"job_id":   job.ID,
		"status":   pipeline.StatusQueued,
		"poll_url": fmt.Sprintf("/api/reports/%s/status", job.ID),
	}, http.StatusAccepted
}

// handleSubmitReport queues one report for extraction and storage.
func (s *Server) handleSubmitReport(w http.ResponseWriter, r *http.Request) {
	defer cleanupForm(r)
	filename, data, err := s.readUpload(w, r)
	if err != nil {
		writeUploadError(w, err)
		return
	}
	params, err := reportParams(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	body, code := s.submit(filename, data, params)
	writeJSON(w, code, body)
}

func (s *Server) handleBatchSubmit(w http.ResponseWriter, r *http.Request) {
	defer cleanupForm(r)
	if err := s.parseForm(w, r, 10); err != nil {
		writeUploadError(w, err)
		return
	}
	params, err := reportParams(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}

	jobs := make([]map[string]any, 0, len(files))
	for _, fh := range files {
		filename, data, err := s.readFile(fh)
		if err != nil {
			jobs = append(jobs, map[string]any{"filename": filename, "error": err.Error()})
			continue
		}
		body, _ := s.submit(filename, data, params)
		jobs = append(jobs, body)
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"jobs": jobs})
}

func (s *Server) job(w http.ResponseWriter, r *http.Request) *pipeline.Job {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
	}
	return job
}

func (s *Server) handleReportStatus(w http.ResponseWriter, r *http.Request) {
	job := s.job(w, r)
	if job == nil {
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

// handleReportResults returns what a finished job produced. Duplicates are
// answered from the result store.
func (s *Server) handleReportResults(w http.ResponseWriter, r *http.Request) {
	job := s.job(w, r)
	if job == nil {
		return
	}
	snap := job.Snapshot()

	switch snap.Status {
	case pipeline.StatusCompleted:
		writeJSON(w, http.StatusOK, map[string]any{
			"job_id":      snap.ID,
			"doc_id":      snap.DocID,
			"results":     job.Published(),
			"categorized": job.Extracted(),
		})
	case pipeline.StatusDupSkipped:
		stored, err := s.orchestrator.Store().Results(r.Context(), snap.DocID)
		if err != nil {
			jsonError(w, "failed to load results: "+err.Error(), http.StatusBadGateway)
			return
		}
		if stored == nil {
			jsonError(w, "stored results not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"job_id":    snap.ID,
			"doc_id":    snap.DocID,
			"duplicate": true,
			"results":   stored.Results,
		})
	case pipeline.StatusFailed:
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"job_id": snap.ID,
			"status": snap.Status,
			"phase":  snap.Phase,
			"errors": snap.Progress.Errors,
		})
	default:
		writeJSON(w, http.StatusConflict, map[string]any{
			"job_id": snap.ID,
			"status": snap.Status,
			"error":  "job not finished",
		})
	}
}

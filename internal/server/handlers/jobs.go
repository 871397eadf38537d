package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/triagekit/triagekit/internal/errors"
	"github.com/triagekit/triagekit/pkg/bugstore"
)

// GetJob handles GET /jobs/{job_id}: full job state including its bugs.
func (a *API) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")

	job, err := bugstore.GetJob(r.Context(), a.DB, jobID)
	if errors.Is(err, bugstore.ErrJobNotFound) {
		apperrors.WriteError(w, r, apperrors.CodeNotFound, "job not found", map[string]any{"job_id": jobID})
		return
	}
	if err != nil {
		a.Log.Error("get job", zap.String("job", jobID), zap.Error(err))
		apperrors.WriteError(w, r, apperrors.CodeInternal, "could not load job", nil)
		return
	}

	a.writeJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /jobs: all jobs, newest first, without per-job bug
// detail.
func (a *API) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := bugstore.ListJobs(r.Context(), a.DB)
	if err != nil {
		a.Log.Error("list jobs", zap.Error(err))
		apperrors.WriteError(w, r, apperrors.CodeInternal, "could not list jobs", nil)
		return
	}

	a.writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

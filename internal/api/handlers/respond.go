package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/convictionhq/conviction/internal/jobs"
	"github.com/convictionhq/conviction/internal/research"
	"github.com/convictionhq/conviction/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps service and store errors onto HTTP statuses.
// Conflicts carry the id of the job already holding the slot so the
// caller can attach to it instead of resubmitting.
func writeServiceError(w http.ResponseWriter, err error) {
	var verr *research.ValidationError
	if errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, verr.Error())
		return
	}
	var cerr *research.ConflictError
	if errors.As(err, &cerr) {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":           cerr.Error(),
			"existing_job_id": cerr.ExistingJobID.String(),
		})
		return
	}
	if errors.Is(err, jobs.ErrRateLimited) {
		w.Header().Set("Retry-After", "5")
		writeError(w, http.StatusTooManyRequests, err.Error())
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeError(w, http.StatusInternalServerError, "internal error")
}

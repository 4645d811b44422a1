package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/studycontrol/studycontrol/internal/assessment"
	"github.com/studycontrol/studycontrol/internal/catalog"
	"github.com/studycontrol/studycontrol/internal/filetask"
	"github.com/studycontrol/studycontrol/internal/schedule"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return false
	}
	return true
}

// writeErr maps domain errors onto the HTTP surface: policy denials are
// 403 with a machine-readable reason, lookups 404, the double-start race
// 409. Anything unrecognized is a 500.
func writeErr(w http.ResponseWriter, err error) {
	var denied *assessment.AttemptDenied
	switch {
	case errors.As(err, &denied):
		writeJSON(w, http.StatusForbidden, map[string]string{
			"error": "attempt denied", "reason": string(denied.Reason),
		})
	case errors.Is(err, assessment.ErrAttemptOpen):
		http.Error(w, "attempt already open", http.StatusConflict)
	case errors.Is(err, assessment.ErrTestNotFound),
		errors.Is(err, assessment.ErrAttemptNotFound),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, filetask.ErrTaskNotFound),
		errors.Is(err, filetask.ErrSubmissionNotFound),
		errors.Is(err, schedule.ErrPlanNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, filetask.ErrBadExtension),
		errors.Is(err, filetask.ErrUnknownCategory):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, filetask.ErrNotAvailable),
		errors.Is(err, catalog.ErrGroupFull),
		errors.Is(err, catalog.ErrAlreadyEnrolled),
		errors.Is(err, catalog.ErrNoRequest):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

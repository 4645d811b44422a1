package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/studycontrol/studycontrol/internal/assessment"
	"github.com/studycontrol/studycontrol/internal/rbac"
)

// StartAttemptHandler opens an attempt for the calling student.
// POST /attempts  { "test_id": "..." }
func StartAttemptHandler(store assessment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			TestID string `json:"test_id"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.TestID == "" {
			http.Error(w, "test_id required", http.StatusBadRequest)
			return
		}
		userID := rbac.SubjectFromContext(r.Context())
		rt, err := store.StartAttempt(r.Context(), req.TestID, userID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, assessment.StudentView(rt))
	}
}

// SubmitAttemptHandler closes the attempt with the selected answers.
// POST /attempts/{attemptID}/submit  { "answer_ids": ["..."] }
func SubmitAttemptHandler(store assessment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID := chi.URLParam(r, "attemptID")
		var req struct {
			AnswerIDs []string `json:"answer_ids"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		rt, err := store.GetAttempt(r.Context(), attemptID)
		if err != nil {
			writeErr(w, err)
			return
		}
		if rt.UserID != rbac.SubjectFromContext(r.Context()) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		rt, err = store.Submit(r.Context(), attemptID, req.AnswerIDs)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"id":      rt.ID,
			"percent": rt.Percent,
			"passed":  rt.Passed,
		})
	}
}

// GetAttemptHandler returns the snapshot. While the attempt is open the
// student gets the view without correctness flags; once closed the full
// snapshot is returned for review.
func GetAttemptHandler(store assessment.Store, checker *rbac.Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rt, err := store.GetAttemptSnapshot(r.Context(), chi.URLParam(r, "attemptID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		sub := rbac.SubjectFromContext(r.Context())
		role := rbac.RoleFromContext(r.Context())
		if rt.UserID != sub && !checker.Has(role, "attempt:view-all") {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if rt.Open() && !checker.Has(role, "attempt:view-all") {
			writeJSON(w, http.StatusOK, assessment.StudentView(rt))
			return
		}
		writeJSON(w, http.StatusOK, rt)
	}
}

// ListAttemptsHandler lists attempts. Students are pinned to their own;
// staff may filter by user_id, test_id and open.
func ListAttemptsHandler(store assessment.Store, checker *rbac.Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		opts := assessment.AttemptListOpts{
			TestID: q.Get("test_id"),
			UserID: q.Get("user_id"),
		}
		switch q.Get("open") {
		case "true":
			t := true
			opts.Open = &t
		case "false":
			f := false
			opts.Open = &f
		}
		role := rbac.RoleFromContext(r.Context())
		if !checker.Has(role, "attempt:view-all") {
			opts.UserID = rbac.SubjectFromContext(r.Context())
		}
		list, err := store.ListAttempts(r.Context(), opts)
		if err != nil {
			writeErr(w, err)
			return
		}
		if list == nil {
			list = []assessment.ResultTest{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// CountdownHandler reports the time left on an attempt, clamped at zero.
// A missing or closed attempt reads as expired rather than an error, so
// a polling timer widget never breaks mid-exam.
func CountdownHandler(store assessment.Store, now func() time.Time) http.HandlerFunc {
	if now == nil {
		now = time.Now
	}
	zero := map[string]int{"minutes": 0, "seconds": 0}
	return func(w http.ResponseWriter, r *http.Request) {
		rt, err := store.GetAttempt(r.Context(), chi.URLParam(r, "attemptID"))
		if err != nil {
			writeJSON(w, http.StatusOK, zero)
			return
		}
		if !rt.Open() {
			writeJSON(w, http.StatusOK, zero)
			return
		}
		min, sec := assessment.Remaining(rt.TimeLimitMin, time.Unix(rt.StartedAt, 0), now())
		if min < 0 || sec < 0 {
			writeJSON(w, http.StatusOK, zero)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"minutes": min, "seconds": sec})
	}
}

// PutTestHandler creates or replaces a test definition. Staff only.
// PUT /tests
func PutTestHandler(store assessment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var t assessment.Test
		if !decodeJSON(w, r, &t) {
			return
		}
		if t.ID == "" || t.LessonID == "" {
			http.Error(w, "id and lesson_id required", http.StatusBadRequest)
			return
		}
		if err := store.PutTest(r.Context(), t); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"id": t.ID})
	}
}

// GetTestHandler returns the live definition including correct flags.
// Staff only; students only ever see snapshots.
func GetTestHandler(store assessment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := store.GetTest(r.Context(), chi.URLParam(r, "testID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

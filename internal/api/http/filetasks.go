package httpapi

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/studycontrol/studycontrol/internal/filetask"
	"github.com/studycontrol/studycontrol/internal/rbac"
)

const maxUploadBytes = 64 << 20 // 64 MiB

// PutFileTaskHandler creates or updates a file task. Staff only.
// PUT /filetasks
func PutFileTaskHandler(svc *filetask.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var t filetask.FileTask
		if !decodeJSON(w, r, &t) {
			return
		}
		if t.ID == "" || t.LessonID == "" {
			http.Error(w, "id and lesson_id required", http.StatusBadRequest)
			return
		}
		if err := svc.PutTask(r.Context(), t); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"id": t.ID})
	}
}

// SubmitFileHandler accepts a multipart upload as the student's current
// submission. POST /filetasks/{fileTaskID}/submission, field "file".
func SubmitFileHandler(svc *filetask.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(8 << 20); err != nil {
			http.Error(w, "bad multipart body", http.StatusBadRequest)
			return
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "file field required", http.StatusBadRequest)
			return
		}
		defer f.Close()

		rf, err := svc.Submit(r.Context(),
			chi.URLParam(r, "fileTaskID"),
			rbac.SubjectFromContext(r.Context()),
			hdr.Filename, f)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, rf)
	}
}

// GetOwnSubmissionHandler returns the caller's submission for a task.
// GET /filetasks/{fileTaskID}/submission
func GetOwnSubmissionHandler(svc *filetask.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rf, err := svc.Get(r.Context(),
			chi.URLParam(r, "fileTaskID"),
			rbac.SubjectFromContext(r.Context()))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rf)
	}
}

// ListSubmissionsHandler is the staff review queue, pending first.
// GET /filetasks/{fileTaskID}/submissions
func ListSubmissionsHandler(svc *filetask.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListForTask(r.Context(), chi.URLParam(r, "fileTaskID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		if list == nil {
			list = []filetask.ResultFile{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// ReviewFileHandler records a verdict on a submission. Staff only.
// POST /files/{resultFileID}/review  { "accepted": true | false | null }
func ReviewFileHandler(svc *filetask.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Accepted *bool `json:"accepted"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		rf, err := svc.Review(r.Context(), chi.URLParam(r, "resultFileID"), req.Accepted)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rf)
	}
}

// DownloadFileHandler streams the stored upload. Owners and reviewers
// only.
func DownloadFileHandler(svc *filetask.Service, checker *rbac.Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rc, rf, err := svc.OpenBlob(r.Context(), chi.URLParam(r, "resultFileID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		defer rc.Close()

		sub := rbac.SubjectFromContext(r.Context())
		role := rbac.RoleFromContext(r.Context())
		if rf.UserID != sub && !checker.Has(role, "file:review") {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Disposition", `attachment; filename="`+rf.FileName+`"`)
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = io.Copy(w, rc)
	}
}

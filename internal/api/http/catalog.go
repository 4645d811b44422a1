package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/studycontrol/studycontrol/internal/catalog"
	"github.com/studycontrol/studycontrol/internal/rbac"
)

func CreateCourseHandler(store *catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var c catalog.Course
		if !decodeJSON(w, r, &c) {
			return
		}
		if c.Name == "" {
			http.Error(w, "name required", http.StatusBadRequest)
			return
		}
		c.OwnerID = rbac.SubjectFromContext(r.Context())
		c, err := store.CreateCourse(r.Context(), c)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, c)
	}
}

func ListCoursesHandler(store *catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.ListCourses(r.Context())
		if err != nil {
			writeErr(w, err)
			return
		}
		if list == nil {
			list = []catalog.Course{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func GetCourseHandler(store *catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := store.GetCourse(r.Context(), chi.URLParam(r, "courseID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func CreateDisciplineHandler(store *catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var d catalog.Discipline
		if !decodeJSON(w, r, &d) {
			return
		}
		d.CourseID = chi.URLParam(r, "courseID")
		if d.Name == "" {
			http.Error(w, "name required", http.StatusBadRequest)
			return
		}
		d, err := store.CreateDiscipline(r.Context(), d)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, d)
	}
}

func ListDisciplinesHandler(store *catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.ListDisciplines(r.Context(), chi.URLParam(r, "courseID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		if list == nil {
			list = []catalog.Discipline{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func CreateLessonHandler(store *catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var l catalog.Lesson
		if !decodeJSON(w, r, &l) {
			return
		}
		l.DisciplineID = chi.URLParam(r, "disciplineID")
		if l.Name == "" {
			http.Error(w, "name required", http.StatusBadRequest)
			return
		}
		l, err := store.CreateLesson(r.Context(), l)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, l)
	}
}

func ListLessonsHandler(store *catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.ListLessons(r.Context(), chi.URLParam(r, "disciplineID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		if list == nil {
			list = []catalog.Lesson{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func CreateGroupHandler(store *catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var g catalog.Group
		if !decodeJSON(w, r, &g) {
			return
		}
		g.CourseID = chi.URLParam(r, "courseID")
		if g.Name == "" {
			http.Error(w, "name required", http.StatusBadRequest)
			return
		}
		g, err := store.CreateGroup(r.Context(), g)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, g)
	}
}

func ListGroupsHandler(store *catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.ListGroups(r.Context(), chi.URLParam(r, "courseID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		if list == nil {
			list = []catalog.Group{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func GetGroupHandler(store *catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, err := store.GetGroup(r.Context(), chi.URLParam(r, "groupID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, g)
	}
}

// RequestEnrollmentHandler queues the caller for a seat in the group.
// POST /groups/{groupID}/request
func RequestEnrollmentHandler(store *catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := store.RequestEnrollment(r.Context(),
			chi.URLParam(r, "groupID"),
			rbac.SubjectFromContext(r.Context()))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "requested"})
	}
}

// CancelRequestHandler lets the caller withdraw a pending request.
// DELETE /groups/{groupID}/request
func CancelRequestHandler(store *catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := store.CancelRequest(r.Context(),
			chi.URLParam(r, "groupID"),
			rbac.SubjectFromContext(r.Context()))
		if err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ApproveRequestHandler moves a queued user onto the roster. Staff only.
// POST /groups/{groupID}/approve  { "user_id": "..." }
func ApproveRequestHandler(store *catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID string `json:"user_id"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.UserID == "" {
			http.Error(w, "user_id required", http.StatusBadRequest)
			return
		}
		if err := store.ApproveRequest(r.Context(), chi.URLParam(r, "groupID"), req.UserID); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "enrolled"})
	}
}

// RemoveStudentHandler drops a user from the roster. Staff only.
// DELETE /groups/{groupID}/students/{userID}
func RemoveStudentHandler(store *catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := store.RemoveStudent(r.Context(),
			chi.URLParam(r, "groupID"), chi.URLParam(r, "userID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

package httpapi

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	auth "github.com/studycontrol/studycontrol/internal/auth/middleware"
	"github.com/studycontrol/studycontrol/internal/assessment"
	"github.com/studycontrol/studycontrol/internal/catalog"
	"github.com/studycontrol/studycontrol/internal/eventlog"
	"github.com/studycontrol/studycontrol/internal/filetask"
	"github.com/studycontrol/studycontrol/internal/rbac"
	"github.com/studycontrol/studycontrol/internal/schedule"
)

type Deps struct {
	DB       *sql.DB
	Auth     *auth.AuthService
	Attempts assessment.Store
	Catalog  *catalog.Store
	Files    *filetask.Service
	Plans    *schedule.Store
	Events   *eventlog.Repo
	Now      func() time.Time

	CORSOrigins []string
}

// NewRouter assembles the full HTTP surface. Public: login and probes.
// Everything else sits behind the JWT and per-route permission guards.
func NewRouter(d Deps) http.Handler {
	checker := rbac.NewChecker(nil)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		if err := d.DB.PingContext(req.Context()); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Post("/auth/login", auth.LoginHandler(d.Auth, d.DB))

	r.Group(func(r chi.Router) {
		r.Use(auth.JWTMiddleware(d.Auth))
		r.Use(auth.AttachRoleFromDB(d.DB, true))

		// catalog browsing
		r.With(rbac.Require("catalog:view")).Get("/courses", ListCoursesHandler(d.Catalog))
		r.With(rbac.Require("catalog:view")).Get("/courses/{courseID}", GetCourseHandler(d.Catalog))
		r.With(rbac.Require("catalog:view")).Get("/courses/{courseID}/disciplines", ListDisciplinesHandler(d.Catalog))
		r.With(rbac.Require("catalog:view")).Get("/disciplines/{disciplineID}/lessons", ListLessonsHandler(d.Catalog))
		r.With(rbac.Require("catalog:view")).Get("/courses/{courseID}/groups", ListGroupsHandler(d.Catalog))
		r.With(rbac.Require("catalog:view")).Get("/groups/{groupID}", GetGroupHandler(d.Catalog))

		// catalog authoring
		r.With(rbac.Require("catalog:edit")).Post("/courses", CreateCourseHandler(d.Catalog))
		r.With(rbac.Require("catalog:edit")).Post("/courses/{courseID}/disciplines", CreateDisciplineHandler(d.Catalog))
		r.With(rbac.Require("catalog:edit")).Post("/disciplines/{disciplineID}/lessons", CreateLessonHandler(d.Catalog))
		r.With(rbac.Require("group:manage")).Post("/courses/{courseID}/groups", CreateGroupHandler(d.Catalog))
		r.With(rbac.Require("catalog:edit")).Put("/tests", PutTestHandler(d.Attempts))
		r.With(rbac.Require("catalog:edit")).Get("/tests/{testID}", GetTestHandler(d.Attempts))
		r.With(rbac.Require("catalog:edit")).Put("/filetasks", PutFileTaskHandler(d.Files))

		// enrollment
		r.With(rbac.Require("group:request")).Post("/groups/{groupID}/request", RequestEnrollmentHandler(d.Catalog))
		r.With(rbac.Require("group:request")).Delete("/groups/{groupID}/request", CancelRequestHandler(d.Catalog))
		r.With(rbac.Require("group:manage")).Post("/groups/{groupID}/approve", ApproveRequestHandler(d.Catalog))
		r.With(rbac.Require("group:manage")).Delete("/groups/{groupID}/students/{userID}", RemoveStudentHandler(d.Catalog))

		// scheduling
		r.With(rbac.Require("plan:schedule")).Put("/plans/{kind}", SavePlanHandler(d.Plans))

		// attempts
		r.With(rbac.Require("attempt:start")).Post("/attempts", StartAttemptHandler(d.Attempts))
		r.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).Get("/attempts", ListAttemptsHandler(d.Attempts, checker))
		r.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).Get("/attempts/{attemptID}", GetAttemptHandler(d.Attempts, checker))
		r.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).Get("/attempts/{attemptID}/countdown", CountdownHandler(d.Attempts, d.Now))
		r.With(rbac.Require("attempt:submit")).Post("/attempts/{attemptID}/submit", SubmitAttemptHandler(d.Attempts))

		// file tasks
		r.With(rbac.Require("file:submit")).Post("/filetasks/{fileTaskID}/submission", SubmitFileHandler(d.Files))
		r.With(rbac.RequireAny("file:view-own", "file:review")).Get("/filetasks/{fileTaskID}/submission", GetOwnSubmissionHandler(d.Files))
		r.With(rbac.Require("file:review")).Get("/filetasks/{fileTaskID}/submissions", ListSubmissionsHandler(d.Files))
		r.With(rbac.Require("file:review")).Post("/files/{resultFileID}/review", ReviewFileHandler(d.Files))
		r.With(rbac.RequireAny("file:view-own", "file:review")).Get("/files/{resultFileID}/download", DownloadFileHandler(d.Files, checker))

		// admin
		r.With(rbac.Require("users:manage")).Post("/users", CreateUserHandler(d.DB))
		r.With(rbac.Require("users:list")).Get("/users", ListUsersHandler(d.DB))
		r.With(rbac.Require("events:read")).Get("/events", listEventsHandler(d.Events))
	})

	return r
}

func listEventsHandler(events *eventlog.Repo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		after, _ := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		list, err := events.List(r.Context(), after, limit)
		if err != nil {
			writeErr(w, err)
			return
		}
		if list == nil {
			list = []eventlog.Event{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/studycontrol/studycontrol/internal/schedule"
)

// SavePlanHandler upserts the window binding a lesson, test or file task
// to a group. Staff only.
// PUT /plans/{kind}  { "target_id": "...", "group_id": "...", "start_at": n, "end_at": n }
func SavePlanHandler(plans *schedule.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind := schedule.Kind(chi.URLParam(r, "kind"))
		switch kind {
		case schedule.KindLesson, schedule.KindTest, schedule.KindFile:
		default:
			http.Error(w, "unknown plan kind", http.StatusBadRequest)
			return
		}
		var req struct {
			TargetID string `json:"target_id"`
			GroupID  string `json:"group_id"`
			StartAt  *int64 `json:"start_at"`
			EndAt    *int64 `json:"end_at"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.TargetID == "" || req.GroupID == "" {
			http.Error(w, "target_id and group_id required", http.StatusBadRequest)
			return
		}
		p, err := plans.Save(r.Context(), kind, req.TargetID, req.GroupID, req.StartAt, req.EndAt)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

package schedule

import "time"

type Kind string

const (
	KindLesson Kind = "lesson"
	KindTest   Kind = "test"
	KindFile   Kind = "file"
)

// Plannable is anything a staff member can put on a group's timetable.
// Tests and file tasks implement it; the store never sees concrete types.
type Plannable interface {
	PlanKind() Kind
	PlanTargetID() string
}

// Plan is a per-group time window. EndAt is always nil for lesson plans.
// A nil StartAt means "created but not yet scheduled".
type Plan struct {
	ID       string `json:"id"`
	Kind     Kind   `json:"kind"`
	TargetID string `json:"target_id"`
	GroupID  string `json:"group_id"`
	StartAt  *int64 `json:"start_at,omitempty"`
	EndAt    *int64 `json:"end_at,omitempty"`
}

// Scheduled reports whether the plan has all timestamps a student-visible
// window needs: start for lessons, start and end for tests/files.
func (p Plan) Scheduled() bool {
	if p.StartAt == nil {
		return false
	}
	if p.Kind == KindLesson {
		return true
	}
	return p.EndAt != nil
}

// Active reports whether at falls inside the closed interval [start, end].
// Both boundary instants count.
func (p Plan) Active(at time.Time) bool {
	if p.Kind == KindLesson || !p.Scheduled() {
		return false
	}
	now := at.Unix()
	return *p.StartAt <= now && now <= *p.EndAt
}

// normalize swaps an inverted range instead of rejecting it. Callers must
// not assume input order is kept.
func normalize(start, end *int64) (*int64, *int64) {
	if start != nil && end != nil && *start > *end {
		return end, start
	}
	return start, end
}

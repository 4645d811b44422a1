package catalog

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrGroupFull       = errors.New("group is full")
	ErrAlreadyEnrolled = errors.New("already enrolled")
	ErrNoRequest       = errors.New("no pending request")
)

type Course struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
	OwnerID     string `json:"owner_id,omitempty"`
	CreatedAt   int64  `json:"created_at"`
}

type Discipline struct {
	ID          string `json:"id"`
	CourseID    string `json:"course_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	TeacherID   string `json:"teacher_id,omitempty"`
}

type Lesson struct {
	ID           string `json:"id"`
	DisciplineID string `json:"discipline_id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
}

// Group is a cohort working through one course on a shared calendar.
// MaxUsers caps the roster; requests wait until staff approves.
type Group struct {
	ID         string   `json:"id"`
	CourseID   string   `json:"course_id"`
	Name       string   `json:"name"`
	StudyStart int64    `json:"study_start"`
	StudyEnd   int64    `json:"study_end"`
	MaxUsers   int      `json:"max_users"`
	Students   []string `json:"students,omitempty"`
	Requests   []string `json:"requests,omitempty"`
}

package filetask

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/studycontrol/studycontrol/internal/schedule"
)

var (
	ErrTaskNotFound       = errors.New("file task not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrBadExtension       = errors.New("file extension not allowed for this task")
	ErrNotAvailable       = errors.New("file task is not open for submission")
	ErrUnknownCategory    = errors.New("unknown file task category")
)

const (
	CategoryImage    = "image"
	CategoryDocument = "document"
	CategoryArchive  = "archive"
)

// categoryExts gates uploads by task category. Extensions are matched
// case-insensitively.
var categoryExts = map[string][]string{
	CategoryImage:    {".jpg", ".jpeg", ".png", ".gif"},
	CategoryDocument: {".pdf", ".doc", ".docx", ".odt", ".txt"},
	CategoryArchive:  {".zip", ".rar", ".7z", ".tar", ".gz"},
}

// AllowedExt reports whether fileName's extension fits the category.
func AllowedExt(category, fileName string) bool {
	ext := strings.ToLower(filepath.Ext(fileName))
	for _, e := range categoryExts[category] {
		if ext == e {
			return true
		}
	}
	return false
}

type FileTask struct {
	ID       string `json:"id"`
	LessonID string `json:"lesson_id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

func (t FileTask) PlanKind() schedule.Kind { return schedule.KindFile }
func (t FileTask) PlanTargetID() string    { return t.ID }

// ResultFile is one student's current submission for a task. Accepted is
// tri-state: nil awaiting review, true accepted, false rejected.
// Resubmitting replaces the file and resets Accepted to nil.
type ResultFile struct {
	ID          string `json:"id"`
	FileTaskID  string `json:"file_task_id"`
	UserID      string `json:"user_id"`
	BlobKey     string `json:"-"`
	FileName    string `json:"file_name"`
	Accepted    *bool  `json:"accepted"`
	SubmittedAt int64  `json:"submitted_at"`
	ReviewedAt  *int64 `json:"reviewed_at,omitempty"`
}

func (r ResultFile) Pending() bool { return r.Accepted == nil }
func (r ResultFile) Passed() bool  { return r.Accepted != nil && *r.Accepted }

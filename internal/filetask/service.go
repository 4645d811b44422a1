package filetask

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/studycontrol/studycontrol/internal/eventlog"
	"github.com/studycontrol/studycontrol/internal/schedule"
	"github.com/studycontrol/studycontrol/internal/storage"
)

type Service struct {
	db     *sql.DB
	plans  *schedule.Store
	blobs  storage.BlobStore
	events *eventlog.Repo
	now    func() time.Time
}

func NewService(db *sql.DB, plans *schedule.Store, blobs storage.BlobStore, events *eventlog.Repo, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{db: db, plans: plans, blobs: blobs, events: events, now: now}
}

func (s *Service) PutTask(ctx context.Context, t FileTask) error {
	if t.Category == "" {
		t.Category = CategoryDocument
	}
	if _, ok := categoryExts[t.Category]; !ok {
		return ErrUnknownCategory
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO file_tasks (id, lesson_id, name, category)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, category=EXCLUDED.category`,
		t.ID, t.LessonID, t.Name, t.Category)
	return err
}

func (s *Service) GetTask(ctx context.Context, id string) (FileTask, error) {
	var t FileTask
	err := s.db.QueryRowContext(ctx, `SELECT id, lesson_id, name, category
		FROM file_tasks WHERE id=$1`, id).
		Scan(&t.ID, &t.LessonID, &t.Name, &t.Category)
	if errors.Is(err, sql.ErrNoRows) {
		return FileTask{}, ErrTaskNotFound
	}
	return t, err
}

// Submit stores the upload and upserts the student's submission row.
// A resubmission replaces the previous file and resets review state to
// pending, whatever the old verdict was.
func (s *Service) Submit(ctx context.Context, taskID, userID, fileName string, r io.Reader) (ResultFile, error) {
	t, err := s.GetTask(ctx, taskID)
	if err != nil {
		return ResultFile{}, err
	}
	if !AllowedExt(t.Category, fileName) {
		return ResultFile{}, ErrBadExtension
	}

	groupID, err := s.enrolledGroup(ctx, t.LessonID, userID)
	if err != nil {
		return ResultFile{}, err
	}
	if groupID == "" {
		return ResultFile{}, ErrNotAvailable
	}
	open, err := s.plans.Available(ctx, t, t.LessonID, groupID, s.now())
	if err != nil {
		return ResultFile{}, err
	}
	if !open {
		return ResultFile{}, ErrNotAvailable
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	key, err := s.blobs.Put(taskID+"/"+userID+"/"+uuid.NewString()+ext, r)
	if err != nil {
		return ResultFile{}, err
	}

	var oldKey string
	err = s.db.QueryRowContext(ctx,
		`SELECT blob_key FROM result_files WHERE file_task_id=$1 AND user_id=$2`,
		taskID, userID).Scan(&oldKey)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return ResultFile{}, err
	}

	rf := ResultFile{
		ID:          uuid.NewString(),
		FileTaskID:  taskID,
		UserID:      userID,
		BlobKey:     key,
		FileName:    fileName,
		SubmittedAt: s.now().Unix(),
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO result_files
		(id, file_task_id, user_id, blob_key, file_name, accepted, submitted_at, reviewed_at)
		VALUES ($1,$2,$3,$4,$5,NULL,$6,NULL)
		ON CONFLICT (file_task_id, user_id) DO UPDATE SET
		  blob_key=EXCLUDED.blob_key, file_name=EXCLUDED.file_name,
		  accepted=NULL, submitted_at=EXCLUDED.submitted_at, reviewed_at=NULL`,
		rf.ID, rf.FileTaskID, rf.UserID, rf.BlobKey, rf.FileName, rf.SubmittedAt); err != nil {
		return ResultFile{}, err
	}
	if oldKey != "" && oldKey != key {
		_ = s.blobs.Delete(oldKey)
	}

	// the upsert keeps the original row id on resubmission
	stored, err := s.Get(ctx, taskID, userID)
	if err != nil {
		return ResultFile{}, err
	}
	if s.events != nil {
		_ = s.events.Append(ctx, eventlog.TypeFileSubmitted, stored.ID,
			map[string]any{"file_task_id": taskID, "user_id": userID, "file_name": fileName})
	}
	return stored, nil
}

func (s *Service) Get(ctx context.Context, taskID, userID string) (ResultFile, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, `SELECT id, file_task_id, user_id, blob_key,
		file_name, accepted, submitted_at, reviewed_at
		FROM result_files WHERE file_task_id=$1 AND user_id=$2`, taskID, userID))
}

func (s *Service) GetByID(ctx context.Context, id string) (ResultFile, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, `SELECT id, file_task_id, user_id, blob_key,
		file_name, accepted, submitted_at, reviewed_at
		FROM result_files WHERE id=$1`, id))
}

// ListForTask returns every submission for a task, pending first.
func (s *Service) ListForTask(ctx context.Context, taskID string) ([]ResultFile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, file_task_id, user_id, blob_key,
		file_name, accepted, submitted_at, reviewed_at
		FROM result_files WHERE file_task_id=$1
		ORDER BY accepted IS NOT NULL, submitted_at`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ResultFile
	for rows.Next() {
		rf, err := s.scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rf)
	}
	return out, rows.Err()
}

// Review records the verdict. accepted nil clears the verdict back to
// pending; true/false stamp reviewed_at.
func (s *Service) Review(ctx context.Context, resultFileID string, accepted *bool) (ResultFile, error) {
	rf, err := s.GetByID(ctx, resultFileID)
	if err != nil {
		return ResultFile{}, err
	}

	var reviewedAt any
	if accepted != nil {
		reviewedAt = s.now().Unix()
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE result_files SET accepted=$1, reviewed_at=$2 WHERE id=$3`,
		acceptedArg(accepted), reviewedAt, resultFileID); err != nil {
		return ResultFile{}, err
	}

	rf, err = s.GetByID(ctx, resultFileID)
	if err != nil {
		return ResultFile{}, err
	}
	if s.events != nil {
		_ = s.events.Append(ctx, eventlog.TypeFileReviewed, rf.ID,
			map[string]any{"file_task_id": rf.FileTaskID, "user_id": rf.UserID, "accepted": accepted})
	}
	return rf, nil
}

// OpenBlob streams the stored upload for review or download.
func (s *Service) OpenBlob(ctx context.Context, resultFileID string) (io.ReadCloser, ResultFile, error) {
	rf, err := s.GetByID(ctx, resultFileID)
	if err != nil {
		return nil, ResultFile{}, err
	}
	rc, err := s.blobs.Get(rf.BlobKey)
	if err != nil {
		return nil, ResultFile{}, err
	}
	return rc, rf, nil
}

type rowScanner interface{ Scan(dest ...any) error }

func (s *Service) scanOne(row *sql.Row) (ResultFile, error) {
	rf, err := s.scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ResultFile{}, ErrSubmissionNotFound
	}
	return rf, err
}

func (s *Service) scanRow(row rowScanner) (ResultFile, error) {
	var rf ResultFile
	var accepted sql.NullBool
	var reviewed sql.NullInt64
	err := row.Scan(&rf.ID, &rf.FileTaskID, &rf.UserID, &rf.BlobKey,
		&rf.FileName, &accepted, &rf.SubmittedAt, &reviewed)
	if err != nil {
		return ResultFile{}, err
	}
	if accepted.Valid {
		rf.Accepted = &accepted.Bool
	}
	if reviewed.Valid {
		rf.ReviewedAt = &reviewed.Int64
	}
	return rf, nil
}

func (s *Service) enrolledGroup(ctx context.Context, lessonID, userID string) (string, error) {
	var groupID string
	err := s.db.QueryRowContext(ctx, `
		SELECT g.id
		  FROM groups g
		  JOIN group_students gs ON gs.group_id = g.id
		  JOIN disciplines d ON d.course_id = g.course_id
		  JOIN lessons l ON l.discipline_id = d.id
		 WHERE l.id = $1 AND gs.user_id = $2
		 LIMIT 1`, lessonID, userID).Scan(&groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return groupID, nil
}

func acceptedArg(a *bool) any {
	if a == nil {
		return nil
	}
	return *a
}

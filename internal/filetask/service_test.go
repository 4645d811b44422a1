package filetask

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/studycontrol/studycontrol/internal/db"
	"github.com/studycontrol/studycontrol/internal/eventlog"
	"github.com/studycontrol/studycontrol/internal/schedule"
	"github.com/studycontrol/studycontrol/internal/storage"
)

func newTestService(t *testing.T) (*Service, *schedule.Store) {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	dbh, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	dbh.SetMaxOpenConns(1)
	if err := db.EnsureSchema(context.Background(), dbh, db.DriverSQLite); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	t.Cleanup(func() { dbh.Close() })

	seed := []string{
		`INSERT INTO courses (id, name, slug, created_at) VALUES ('crs-1','Go','go',0)`,
		`INSERT INTO disciplines (id, course_id, name) VALUES ('dis-1','crs-1','Backend')`,
		`INSERT INTO lessons (id, discipline_id, name) VALUES ('les-1','dis-1','HTTP')`,
		`INSERT INTO groups (id, course_id, name, study_start, study_end) VALUES ('grp-1','crs-1','G1',0,9999999999)`,
		`INSERT INTO group_students (group_id, user_id) VALUES ('grp-1','stu-1')`,
	}
	for _, q := range seed {
		if _, err := dbh.Exec(q); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	blobs, err := storage.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("blob store: %v", err)
	}
	plans := schedule.NewStore(dbh)
	clock := time.Unix(1_700_000_000, 0)
	svc := NewService(dbh, plans, blobs, eventlog.New(dbh), func() time.Time { return clock })

	// lesson scheduled, task window open around the clock instant
	ctx := context.Background()
	lessonStart := clock.Add(-time.Hour).Unix()
	if _, err := plans.Save(ctx, schedule.KindLesson, "les-1", "grp-1", &lessonStart, nil); err != nil {
		t.Fatalf("lesson plan: %v", err)
	}
	if err := svc.PutTask(ctx, FileTask{ID: "ft-1", LessonID: "les-1", Name: "essay", Category: CategoryDocument}); err != nil {
		t.Fatalf("put task: %v", err)
	}
	start := clock.Add(-time.Hour).Unix()
	end := clock.Add(time.Hour).Unix()
	if _, err := plans.Save(ctx, schedule.KindFile, "ft-1", "grp-1", &start, &end); err != nil {
		t.Fatalf("file plan: %v", err)
	}
	return svc, plans
}

func TestSubmitValidatesExtension(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Submit(context.Background(), "ft-1", "stu-1", "essay.exe", strings.NewReader("x"))
	if !errors.Is(err, ErrBadExtension) {
		t.Fatalf("want ErrBadExtension, got %v", err)
	}
	if _, err := svc.Submit(context.Background(), "ft-1", "stu-1", "Essay.PDF", strings.NewReader("x")); err != nil {
		t.Fatalf("extension match must be case-insensitive: %v", err)
	}
}

func TestSubmitOutsideWindow(t *testing.T) {
	svc, plans := newTestService(t)
	ctx := context.Background()

	start := int64(10)
	end := int64(20) // long gone
	if _, err := plans.Save(ctx, schedule.KindFile, "ft-1", "grp-1", &start, &end); err != nil {
		t.Fatalf("shrink window: %v", err)
	}
	_, err := svc.Submit(ctx, "ft-1", "stu-1", "essay.pdf", strings.NewReader("x"))
	if !errors.Is(err, ErrNotAvailable) {
		t.Fatalf("want ErrNotAvailable, got %v", err)
	}
}

func TestSubmitUnenrolledUser(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Submit(context.Background(), "ft-1", "ghost", "essay.pdf", strings.NewReader("x"))
	if !errors.Is(err, ErrNotAvailable) {
		t.Fatalf("want ErrNotAvailable, got %v", err)
	}
}

func TestReviewVerdicts(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	rf, err := svc.Submit(ctx, "ft-1", "stu-1", "essay.pdf", strings.NewReader("v1"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !rf.Pending() {
		t.Fatal("fresh submission must be pending")
	}

	no := false
	rf, err = svc.Review(ctx, rf.ID, &no)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rf.Pending() || rf.Passed() {
		t.Fatal("rejected submission must be neither pending nor passed")
	}
	if rf.ReviewedAt == nil {
		t.Fatal("verdict must stamp reviewed_at")
	}

	yes := true
	rf, err = svc.Review(ctx, rf.ID, &yes)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if !rf.Passed() {
		t.Fatal("accepted submission must pass")
	}

	rf, err = svc.Review(ctx, rf.ID, nil)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if !rf.Pending() || rf.ReviewedAt != nil {
		t.Fatal("nil verdict must return the submission to pending")
	}
}

func TestResubmissionResetsVerdict(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	rf, err := svc.Submit(ctx, "ft-1", "stu-1", "essay.pdf", strings.NewReader("v1"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	yes := true
	if _, err := svc.Review(ctx, rf.ID, &yes); err != nil {
		t.Fatalf("accept: %v", err)
	}

	rf2, err := svc.Submit(ctx, "ft-1", "stu-1", "essay-v2.pdf", strings.NewReader("v2"))
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if rf2.ID != rf.ID {
		t.Fatalf("resubmission must keep the row: %s vs %s", rf2.ID, rf.ID)
	}
	if !rf2.Pending() {
		t.Fatal("resubmission must reset the verdict to pending")
	}
	if rf2.FileName != "essay-v2.pdf" {
		t.Fatalf("file name not replaced: %s", rf2.FileName)
	}

	rc, got, err := svc.OpenBlob(ctx, rf2.ID)
	if err != nil {
		t.Fatalf("open blob: %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != "v2" {
		t.Fatalf("stored blob = %q, want v2", body)
	}
	if got.FileName != "essay-v2.pdf" {
		t.Fatalf("blob metadata stale: %s", got.FileName)
	}
}

func TestCategoryGates(t *testing.T) {
	if AllowedExt(CategoryImage, "photo.png") != true {
		t.Fatal("png is an image")
	}
	if AllowedExt(CategoryImage, "photo.pdf") {
		t.Fatal("pdf is not an image")
	}
	if AllowedExt(CategoryArchive, "code.zip") != true {
		t.Fatal("zip is an archive")
	}
	if AllowedExt("nonsense", "a.pdf") {
		t.Fatal("unknown categories allow nothing")
	}
}

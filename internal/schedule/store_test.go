package schedule

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/studycontrol/studycontrol/internal/db"
)

type fakeTask struct {
	kind Kind
	id   string
}

func (f fakeTask) PlanKind() Kind       { return f.kind }
func (f fakeTask) PlanTargetID() string { return f.id }

func newTestDB(t *testing.T) *sql.DB {
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
		`INSERT INTO tests (id, lesson_id, name) VALUES ('tst-1','les-1','quiz')`,
	}
	for _, q := range seed {
		if _, err := dbh.Exec(q); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return dbh
}

func TestSaveUpsertsPerGroup(t *testing.T) {
	st := NewStore(newTestDB(t))
	ctx := context.Background()
	task := fakeTask{KindTest, "tst-1"}

	p, err := st.Save(ctx, KindTest, "tst-1", "grp-1", ts(100), ts(200))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if *p.StartAt != 100 || *p.EndAt != 200 {
		t.Fatalf("saved window (%v,%v)", p.StartAt, p.EndAt)
	}

	// second save replaces, it does not duplicate
	if _, err := st.Save(ctx, KindTest, "tst-1", "grp-1", ts(300), ts(400)); err != nil {
		t.Fatalf("resave: %v", err)
	}
	p, err = st.Get(ctx, task, "grp-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if *p.StartAt != 300 || *p.EndAt != 400 {
		t.Fatalf("resave did not replace: (%v,%v)", p.StartAt, p.EndAt)
	}
}

func TestSaveSwapsInvertedWindow(t *testing.T) {
	st := NewStore(newTestDB(t))
	p, err := st.Save(context.Background(), KindTest, "tst-1", "grp-1", ts(400), ts(300))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if *p.StartAt != 300 || *p.EndAt != 400 {
		t.Fatalf("window not swapped: (%d,%d)", *p.StartAt, *p.EndAt)
	}
}

func TestGetMissingPlan(t *testing.T) {
	st := NewStore(newTestDB(t))
	_, err := st.Get(context.Background(), fakeTask{KindTest, "tst-1"}, "grp-1")
	if !errors.Is(err, ErrPlanNotFound) {
		t.Fatalf("want ErrPlanNotFound, got %v", err)
	}
}

func TestAvailableNeedsScheduledLesson(t *testing.T) {
	st := NewStore(newTestDB(t))
	ctx := context.Background()
	task := fakeTask{KindTest, "tst-1"}
	at := time.Unix(150, 0)

	// test window exists but the parent lesson was never scheduled
	if _, err := st.Save(ctx, KindTest, "tst-1", "grp-1", ts(100), ts(200)); err != nil {
		t.Fatalf("save test plan: %v", err)
	}
	ok, err := st.Available(ctx, task, "les-1", "grp-1", at)
	if err != nil || ok {
		t.Fatalf("unscheduled lesson must hide the test: ok=%v err=%v", ok, err)
	}

	// lesson plan row with no start still hides it
	if _, err := st.Save(ctx, KindLesson, "les-1", "grp-1", nil, nil); err != nil {
		t.Fatalf("save empty lesson plan: %v", err)
	}
	ok, err = st.Available(ctx, task, "les-1", "grp-1", at)
	if err != nil || ok {
		t.Fatalf("dateless lesson plan must hide the test: ok=%v err=%v", ok, err)
	}

	if _, err := st.Save(ctx, KindLesson, "les-1", "grp-1", ts(50), nil); err != nil {
		t.Fatalf("schedule lesson: %v", err)
	}
	ok, err = st.Available(ctx, task, "les-1", "grp-1", at)
	if err != nil || !ok {
		t.Fatalf("scheduled lesson + active window must open: ok=%v err=%v", ok, err)
	}

	ok, err = st.Available(ctx, task, "les-1", "grp-1", time.Unix(500, 0))
	if err != nil || ok {
		t.Fatalf("past the window must close: ok=%v err=%v", ok, err)
	}
}

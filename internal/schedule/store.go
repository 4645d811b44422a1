package schedule

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrPlanNotFound = errors.New("plan not found")

type planTable struct {
	table string
	idCol string
}

var tables = map[Kind]planTable{
	KindLesson: {"lesson_plans", "lesson_id"},
	KindTest:   {"test_plans", "test_id"},
	KindFile:   {"file_plans", "file_task_id"},
}

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Save upserts the plan for (kind, target, group), auto-swapping an inverted
// range. Lesson plans ignore end.
func (s *Store) Save(ctx context.Context, kind Kind, targetID, groupID string, start, end *int64) (Plan, error) {
	t, ok := tables[kind]
	if !ok {
		return Plan{}, fmt.Errorf("unknown plan kind: %s", kind)
	}
	start, end = normalize(start, end)
	id := uuid.NewString()

	var err error
	if kind == KindLesson {
		_, err = s.db.ExecContext(ctx, fmt.Sprintf(
			`INSERT INTO %s (id, %s, group_id, start_at) VALUES ($1,$2,$3,$4)
			 ON CONFLICT (%s, group_id) DO UPDATE SET start_at=EXCLUDED.start_at`,
			t.table, t.idCol, t.idCol),
			id, targetID, groupID, start)
	} else {
		_, err = s.db.ExecContext(ctx, fmt.Sprintf(
			`INSERT INTO %s (id, %s, group_id, start_at, end_at) VALUES ($1,$2,$3,$4,$5)
			 ON CONFLICT (%s, group_id) DO UPDATE SET start_at=EXCLUDED.start_at, end_at=EXCLUDED.end_at`,
			t.table, t.idCol, t.idCol),
			id, targetID, groupID, start, end)
	}
	if err != nil {
		return Plan{}, err
	}
	return s.get(ctx, kind, targetID, groupID)
}

// Get returns the plan binding a plannable task to a group.
func (s *Store) Get(ctx context.Context, task Plannable, groupID string) (Plan, error) {
	return s.get(ctx, task.PlanKind(), task.PlanTargetID(), groupID)
}

func (s *Store) get(ctx context.Context, kind Kind, targetID, groupID string) (Plan, error) {
	t, ok := tables[kind]
	if !ok {
		return Plan{}, fmt.Errorf("unknown plan kind: %s", kind)
	}
	p := Plan{Kind: kind, TargetID: targetID, GroupID: groupID}
	var start, end sql.NullInt64
	var row *sql.Row
	if kind == KindLesson {
		row = s.db.QueryRowContext(ctx, fmt.Sprintf(
			`SELECT id, start_at FROM %s WHERE %s=$1 AND group_id=$2`, t.table, t.idCol),
			targetID, groupID)
		if err := row.Scan(&p.ID, &start); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return Plan{}, ErrPlanNotFound
			}
			return Plan{}, err
		}
	} else {
		row = s.db.QueryRowContext(ctx, fmt.Sprintf(
			`SELECT id, start_at, end_at FROM %s WHERE %s=$1 AND group_id=$2`, t.table, t.idCol),
			targetID, groupID)
		if err := row.Scan(&p.ID, &start, &end); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return Plan{}, ErrPlanNotFound
			}
			return Plan{}, err
		}
	}
	if start.Valid {
		p.StartAt = &start.Int64
	}
	if end.Valid {
		p.EndAt = &end.Int64
	}
	return p, nil
}

// Available reports whether a test/file task is open for the group at the
// given instant: its lesson's plan must be scheduled and its own plan must
// be active. lessonID is the task's parent lesson.
func (s *Store) Available(ctx context.Context, task Plannable, lessonID, groupID string, at time.Time) (bool, error) {
	lp, err := s.get(ctx, KindLesson, lessonID, groupID)
	if errors.Is(err, ErrPlanNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !lp.Scheduled() {
		return false, nil
	}
	tp, err := s.Get(ctx, task, groupID)
	if errors.Is(err, ErrPlanNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return tp.Active(at), nil
}

package assessment

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/studycontrol/studycontrol/internal/eventlog"
	"github.com/studycontrol/studycontrol/internal/schedule"
)

type SQLStore struct {
	db     *sql.DB
	plans  *schedule.Store
	events *eventlog.Repo
	now    func() time.Time
}

func NewSQLStore(db *sql.DB, plans *schedule.Store, events *eventlog.Repo, now func() time.Time) *SQLStore {
	if now == nil {
		now = time.Now
	}
	return &SQLStore{db: db, plans: plans, events: events, now: now}
}

// PutTest upserts the test and replaces its question/answer set wholesale.
// Existing snapshots are untouched; only future attempts see the new set.
func (s *SQLStore) PutTest(ctx context.Context, t Test) error {
	if t.Tries <= 0 {
		t.Tries = 3
	}
	if t.PassPercent == 0 {
		t.PassPercent = 60
	}
	if t.TimeLimitMin <= 0 {
		t.TimeLimitMin = 30
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO tests (id, lesson_id, name, tries, pass_percent, time_limit_min)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, tries=EXCLUDED.tries,
		  pass_percent=EXCLUDED.pass_percent, time_limit_min=EXCLUDED.time_limit_min`,
		t.ID, t.LessonID, t.Name, t.Tries, t.PassPercent, t.TimeLimitMin); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE test_id=$1`, t.ID); err != nil {
		return err
	}
	for qi, q := range t.Questions {
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO questions (id, test_id, text, position)
			VALUES ($1,$2,$3,$4)`, q.ID, t.ID, q.Text, qi); err != nil {
			return err
		}
		for ai, a := range q.Answers {
			if a.ID == "" {
				a.ID = uuid.NewString()
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO answers (id, question_id, text, correct, position)
				VALUES ($1,$2,$3,$4,$5)`, a.ID, q.ID, a.Text, a.Correct, ai); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

func (s *SQLStore) GetTest(ctx context.Context, id string) (Test, error) {
	var t Test
	err := s.db.QueryRowContext(ctx, `SELECT id, lesson_id, name, tries, pass_percent, time_limit_min
		FROM tests WHERE id=$1`, id).
		Scan(&t.ID, &t.LessonID, &t.Name, &t.Tries, &t.PassPercent, &t.TimeLimitMin)
	if errors.Is(err, sql.ErrNoRows) {
		return Test{}, ErrTestNotFound
	}
	if err != nil {
		return Test{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT q.id, q.text, q.position,
		       a.id, a.text, a.correct, a.position
		  FROM questions q
		  LEFT JOIN answers a ON a.question_id = q.id
		 WHERE q.test_id = $1
		 ORDER BY q.position, a.position`, id)
	if err != nil {
		return Test{}, err
	}
	defer rows.Close()

	byID := map[string]int{}
	for rows.Next() {
		var (
			qid, qtext         string
			qpos               int
			aid, atext         sql.NullString
			acorrect           sql.NullBool
			apos               sql.NullInt64
		)
		if err := rows.Scan(&qid, &qtext, &qpos, &aid, &atext, &acorrect, &apos); err != nil {
			return Test{}, err
		}
		idx, ok := byID[qid]
		if !ok {
			t.Questions = append(t.Questions, Question{ID: qid, TestID: t.ID, Text: qtext, Position: qpos})
			idx = len(t.Questions) - 1
			byID[qid] = idx
		}
		if aid.Valid {
			t.Questions[idx].Answers = append(t.Questions[idx].Answers, Answer{
				ID: aid.String, QuestionID: qid, Text: atext.String,
				Correct: acorrect.Bool, Position: int(apos.Int64),
			})
		}
	}
	return t, rows.Err()
}

// StartAttempt enforces the attempt policy and freezes the snapshot.
// Opening consumes a slot even if the student never submits.
func (s *SQLStore) StartAttempt(ctx context.Context, testID, userID string) (ResultTest, error) {
	now := s.now()
	t, err := s.GetTest(ctx, testID)
	if err != nil {
		return ResultTest{}, err
	}

	var passedCount int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM result_tests WHERE test_id=$1 AND user_id=$2 AND passed=$3`,
		testID, userID, true).Scan(&passedCount); err != nil {
		return ResultTest{}, err
	}
	if passedCount > 0 {
		return ResultTest{}, &AttemptDenied{Reason: ReasonAlreadyPassed}
	}

	var prior int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM result_tests WHERE test_id=$1 AND user_id=$2`,
		testID, userID).Scan(&prior); err != nil {
		return ResultTest{}, err
	}
	if prior >= t.Tries {
		return ResultTest{}, &AttemptDenied{Reason: ReasonExhausted}
	}

	groupID, err := s.enrolledGroup(ctx, t.LessonID, userID)
	if err != nil {
		return ResultTest{}, err
	}
	if groupID == "" {
		return ResultTest{}, &AttemptDenied{Reason: ReasonNotScheduled}
	}
	open, err := s.plans.Available(ctx, t, t.LessonID, groupID, now)
	if err != nil {
		return ResultTest{}, err
	}
	if !open {
		return ResultTest{}, &AttemptDenied{Reason: ReasonNotScheduled}
	}

	rt := ResultTest{
		ID:           uuid.NewString(),
		TestID:       testID,
		UserID:       userID,
		PassPercent:  t.PassPercent,
		TimeLimitMin: t.TimeLimitMin,
		StartedAt:    now.Unix(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ResultTest{}, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO result_tests
		(id, test_id, user_id, pass_percent, time_limit_min, percent, passed, started_at, submitted_at)
		VALUES ($1,$2,$3,$4,$5,0,$6,$7,NULL)`,
		rt.ID, rt.TestID, rt.UserID, rt.PassPercent, rt.TimeLimitMin, false, rt.StartedAt); err != nil {
		if isUniqueViolation(err) {
			return ResultTest{}, ErrAttemptOpen
		}
		return ResultTest{}, err
	}

	for _, q := range t.Questions {
		rq := ResultQuestion{ID: uuid.NewString(), Text: q.Text, Position: q.Position}
		if _, err := tx.ExecContext(ctx, `INSERT INTO result_questions (id, result_test_id, text, position)
			VALUES ($1,$2,$3,$4)`, rq.ID, rt.ID, rq.Text, rq.Position); err != nil {
			return ResultTest{}, err
		}
		for _, a := range q.Answers {
			ra := ResultAnswer{
				ID: uuid.NewString(), SourceAnswerID: a.ID,
				Text: a.Text, Correct: a.Correct, Position: a.Position,
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO result_answers
				(id, result_question_id, source_answer_id, text, correct, given, position)
				VALUES ($1,$2,$3,$4,$5,$6,$7)`,
				ra.ID, rq.ID, ra.SourceAnswerID, ra.Text, ra.Correct, false, ra.Position); err != nil {
				return ResultTest{}, err
			}
			rq.Answers = append(rq.Answers, ra)
		}
		rt.Questions = append(rt.Questions, rq)
	}
	if err := tx.Commit(); err != nil {
		return ResultTest{}, err
	}

	if s.events != nil {
		_ = s.events.Append(ctx, eventlog.TypeAttemptStarted, rt.ID,
			map[string]any{"test_id": testID, "user_id": userID})
	}
	return rt, nil
}

// Submit applies selections to the snapshot, scores and closes the attempt.
// A closed attempt is returned unchanged: re-submission is a no-op.
func (s *SQLStore) Submit(ctx context.Context, attemptID string, answerIDs []string) (ResultTest, error) {
	rt, err := s.GetAttemptSnapshot(ctx, attemptID)
	if err != nil {
		return ResultTest{}, err
	}
	if !rt.Open() {
		return rt, nil
	}

	selected := make(map[string]bool, len(answerIDs))
	for _, id := range answerIDs {
		selected[id] = true
	}
	for qi := range rt.Questions {
		for ai := range rt.Questions[qi].Answers {
			a := &rt.Questions[qi].Answers[ai]
			a.Given = selected[a.SourceAnswerID]
		}
	}

	rt.Percent = Score(rt.Questions)
	rt.Passed = Passed(rt.Percent, rt.PassPercent)
	submittedAt := s.now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ResultTest{}, err
	}
	defer tx.Rollback()

	for _, q := range rt.Questions {
		for _, a := range q.Answers {
			if !a.Given {
				continue // rows start false; only flips need writing
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE result_answers SET given=$1 WHERE id=$2`, true, a.ID); err != nil {
				return ResultTest{}, err
			}
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE result_tests SET percent=$1, passed=$2, submitted_at=$3 WHERE id=$4`,
		rt.Percent, rt.Passed, submittedAt, rt.ID); err != nil {
		return ResultTest{}, err
	}
	if err := tx.Commit(); err != nil {
		return ResultTest{}, err
	}
	rt.SubmittedAt = &submittedAt

	if s.events != nil {
		_ = s.events.Append(ctx, eventlog.TypeAttemptSubmitted, rt.ID,
			map[string]any{"percent": rt.Percent, "passed": rt.Passed})
	}
	return rt, nil
}

func (s *SQLStore) GetAttempt(ctx context.Context, id string) (ResultTest, error) {
	var rt ResultTest
	var submitted sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT id, test_id, user_id, pass_percent, time_limit_min,
		percent, passed, started_at, submitted_at FROM result_tests WHERE id=$1`, id).
		Scan(&rt.ID, &rt.TestID, &rt.UserID, &rt.PassPercent, &rt.TimeLimitMin,
			&rt.Percent, &rt.Passed, &rt.StartedAt, &submitted)
	if errors.Is(err, sql.ErrNoRows) {
		return ResultTest{}, ErrAttemptNotFound
	}
	if err != nil {
		return ResultTest{}, err
	}
	if submitted.Valid {
		rt.SubmittedAt = &submitted.Int64
	}
	return rt, nil
}

func (s *SQLStore) GetAttemptSnapshot(ctx context.Context, id string) (ResultTest, error) {
	rt, err := s.GetAttempt(ctx, id)
	if err != nil {
		return ResultTest{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT q.id, q.text, q.position,
		       a.id, a.source_answer_id, a.text, a.correct, a.given, a.position
		  FROM result_questions q
		  LEFT JOIN result_answers a ON a.result_question_id = q.id
		 WHERE q.result_test_id = $1
		 ORDER BY q.position, a.position`, id)
	if err != nil {
		return ResultTest{}, err
	}
	defer rows.Close()

	byID := map[string]int{}
	for rows.Next() {
		var (
			qid, qtext       string
			qpos             int
			aid, asrc, atext sql.NullString
			acorrect, agiven sql.NullBool
			apos             sql.NullInt64
		)
		if err := rows.Scan(&qid, &qtext, &qpos, &aid, &asrc, &atext, &acorrect, &agiven, &apos); err != nil {
			return ResultTest{}, err
		}
		idx, ok := byID[qid]
		if !ok {
			rt.Questions = append(rt.Questions, ResultQuestion{ID: qid, Text: qtext, Position: qpos})
			idx = len(rt.Questions) - 1
			byID[qid] = idx
		}
		if aid.Valid {
			rt.Questions[idx].Answers = append(rt.Questions[idx].Answers, ResultAnswer{
				ID: aid.String, SourceAnswerID: asrc.String, Text: atext.String,
				Correct: acorrect.Bool, Given: agiven.Bool, Position: int(apos.Int64),
			})
		}
	}
	return rt, rows.Err()
}

func (s *SQLStore) ListAttempts(ctx context.Context, opts AttemptListOpts) ([]ResultTest, error) {
	where := []string{"1=1"}
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if opts.TestID != "" {
		where = append(where, "test_id="+arg(opts.TestID))
	}
	if opts.UserID != "" {
		where = append(where, "user_id="+arg(opts.UserID))
	}
	if opts.Open != nil {
		if *opts.Open {
			where = append(where, "submitted_at IS NULL")
		} else {
			where = append(where, "submitted_at IS NOT NULL")
		}
	}
	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := `SELECT id, test_id, user_id, pass_percent, time_limit_min, percent, passed, started_at, submitted_at
	  FROM result_tests WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY started_at DESC LIMIT ` + arg(limit) + ` OFFSET ` + arg(opts.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ResultTest
	for rows.Next() {
		var rt ResultTest
		var submitted sql.NullInt64
		if err := rows.Scan(&rt.ID, &rt.TestID, &rt.UserID, &rt.PassPercent, &rt.TimeLimitMin,
			&rt.Percent, &rt.Passed, &rt.StartedAt, &submitted); err != nil {
			return nil, err
		}
		if submitted.Valid {
			rt.SubmittedAt = &submitted.Int64
		}
		out = append(out, rt)
	}
	return out, rows.Err()
}

// enrolledGroup finds the group through which the user can reach this
// lesson, or "" when the user is not on any matching roster.
func (s *SQLStore) enrolledGroup(ctx context.Context, lessonID, userID string) (string, error) {
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

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") || // sqlite
		strings.Contains(msg, "duplicate key value") || // postgres
		strings.Contains(msg, "sqlstate 23505")
}

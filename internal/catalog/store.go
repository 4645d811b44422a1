package catalog

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) CreateCourse(ctx context.Context, c Course) (Course, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Slug == "" {
		c.Slug = slugify(c.Name)
	}
	c.CreatedAt = time.Now().Unix()
	_, err := s.db.ExecContext(ctx, `INSERT INTO courses (id, name, slug, description, owner_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		c.ID, c.Name, c.Slug, c.Description, nullable(c.OwnerID), c.CreatedAt)
	return c, err
}

func (s *Store) GetCourse(ctx context.Context, id string) (Course, error) {
	var c Course
	var owner sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT id, name, slug, description, owner_id, created_at
		FROM courses WHERE id=$1 OR slug=$1`, id).
		Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &owner, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Course{}, ErrNotFound
	}
	c.OwnerID = owner.String
	return c, err
}

func (s *Store) ListCourses(ctx context.Context) ([]Course, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, slug, description, owner_id, created_at
		FROM courses ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Course
	for rows.Next() {
		var c Course
		var owner sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &owner, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.OwnerID = owner.String
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) CreateDiscipline(ctx context.Context, d Discipline) (Discipline, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO disciplines (id, course_id, name, description, teacher_id)
		VALUES ($1,$2,$3,$4,$5)`,
		d.ID, d.CourseID, d.Name, d.Description, nullable(d.TeacherID))
	return d, err
}

func (s *Store) ListDisciplines(ctx context.Context, courseID string) ([]Discipline, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, course_id, name, description, teacher_id
		FROM disciplines WHERE course_id=$1 ORDER BY name`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Discipline
	for rows.Next() {
		var d Discipline
		var teacher sql.NullString
		if err := rows.Scan(&d.ID, &d.CourseID, &d.Name, &d.Description, &teacher); err != nil {
			return nil, err
		}
		d.TeacherID = teacher.String
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) CreateLesson(ctx context.Context, l Lesson) (Lesson, error) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO lessons (id, discipline_id, name, description)
		VALUES ($1,$2,$3,$4)`, l.ID, l.DisciplineID, l.Name, l.Description)
	return l, err
}

func (s *Store) GetLesson(ctx context.Context, id string) (Lesson, error) {
	var l Lesson
	err := s.db.QueryRowContext(ctx, `SELECT id, discipline_id, name, description
		FROM lessons WHERE id=$1`, id).
		Scan(&l.ID, &l.DisciplineID, &l.Name, &l.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return Lesson{}, ErrNotFound
	}
	return l, err
}

func (s *Store) ListLessons(ctx context.Context, disciplineID string) ([]Lesson, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, discipline_id, name, description
		FROM lessons WHERE discipline_id=$1 ORDER BY name`, disciplineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Lesson
	for rows.Next() {
		var l Lesson
		if err := rows.Scan(&l.ID, &l.DisciplineID, &l.Name, &l.Description); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) CreateGroup(ctx context.Context, g Group) (Group, error) {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.MaxUsers <= 0 {
		g.MaxUsers = 25
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO groups (id, course_id, name, study_start, study_end, max_users)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		g.ID, g.CourseID, g.Name, g.StudyStart, g.StudyEnd, g.MaxUsers)
	return g, err
}

// GetGroup loads the group with both rosters.
func (s *Store) GetGroup(ctx context.Context, id string) (Group, error) {
	var g Group
	err := s.db.QueryRowContext(ctx, `SELECT id, course_id, name, study_start, study_end, max_users
		FROM groups WHERE id=$1`, id).
		Scan(&g.ID, &g.CourseID, &g.Name, &g.StudyStart, &g.StudyEnd, &g.MaxUsers)
	if errors.Is(err, sql.ErrNoRows) {
		return Group{}, ErrNotFound
	}
	if err != nil {
		return Group{}, err
	}
	if g.Students, err = s.userList(ctx, `SELECT user_id FROM group_students WHERE group_id=$1 ORDER BY user_id`, id); err != nil {
		return Group{}, err
	}
	if g.Requests, err = s.userList(ctx, `SELECT user_id FROM group_requests WHERE group_id=$1 ORDER BY user_id`, id); err != nil {
		return Group{}, err
	}
	return g, nil
}

func (s *Store) ListGroups(ctx context.Context, courseID string) ([]Group, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, course_id, name, study_start, study_end, max_users
		FROM groups WHERE course_id=$1 ORDER BY name`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.CourseID, &g.Name, &g.StudyStart, &g.StudyEnd, &g.MaxUsers); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// RequestEnrollment queues the user for staff approval. Re-requesting is a
// no-op; an enrolled student cannot also hold a request.
func (s *Store) RequestEnrollment(ctx context.Context, groupID, userID string) error {
	if _, err := s.GetGroup(ctx, groupID); err != nil {
		return err
	}
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM group_students WHERE group_id=$1 AND user_id=$2`,
		groupID, userID).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return ErrAlreadyEnrolled
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO group_requests (group_id, user_id)
		VALUES ($1,$2) ON CONFLICT (group_id, user_id) DO NOTHING`, groupID, userID)
	return err
}

func (s *Store) CancelRequest(ctx context.Context, groupID, userID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM group_requests WHERE group_id=$1 AND user_id=$2`, groupID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNoRequest
	}
	return nil
}

// ApproveRequest moves the user from the request queue onto the roster,
// enforcing the capacity cap inside the transaction.
func (s *Store) ApproveRequest(ctx context.Context, groupID, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var maxUsers int
	err = tx.QueryRowContext(ctx, `SELECT max_users FROM groups WHERE id=$1`, groupID).Scan(&maxUsers)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM group_requests WHERE group_id=$1 AND user_id=$2`, groupID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNoRequest
	}

	var enrolled int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM group_students WHERE group_id=$1`, groupID).Scan(&enrolled); err != nil {
		return err
	}
	if enrolled >= maxUsers {
		return ErrGroupFull
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO group_students (group_id, user_id) VALUES ($1,$2)
		 ON CONFLICT (group_id, user_id) DO NOTHING`, groupID, userID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) RemoveStudent(ctx context.Context, groupID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM group_students WHERE group_id=$1 AND user_id=$2`, groupID, userID)
	return err
}

func (s *Store) userList(ctx context.Context, q, groupID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, q, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func slugify(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		case !prevDash:
			b.WriteByte('-')
			prevDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}

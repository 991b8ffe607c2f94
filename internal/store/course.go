package store

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mlearn/apiserver/types"
)

const courseColumns = `c.id, c.title, c.description, c.category, c.location, c.duration,
	c.professor_id, c.image, c.created_at, c.updated_at`

// CourseRepository handles persistence for courses.
type CourseRepository struct {
	db *sqlx.DB
}

func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns every course with its professor's name.
func (r *CourseRepository) List(ctx context.Context) ([]types.Course, error) {
	query := `
		SELECT ` + courseColumns + `, COALESCE(u.name, '') AS professor_name
		FROM courses c
		LEFT JOIN users u ON u.id = c.professor_id
		ORDER BY c.id`
	courses := []types.Course{}
	if err := r.db.SelectContext(ctx, &courses, query); err != nil {
		return nil, mapError(err)
	}
	return courses, nil
}

// ListByProfessor returns the professor's courses, each with a fresh enrollment count.
func (r *CourseRepository) ListByProfessor(ctx context.Context, professorID int) ([]types.CourseWithCount, error) {
	query := r.db.Rebind(`
		SELECT ` + courseColumns + `, COALESCE(u.name, '') AS professor_name,
			(SELECT COUNT(*) FROM course_students cs WHERE cs.course_id = c.id) AS student_count
		FROM courses c
		LEFT JOIN users u ON u.id = c.professor_id
		WHERE c.professor_id = ?
		ORDER BY c.id`)
	courses := []types.CourseWithCount{}
	if err := r.db.SelectContext(ctx, &courses, query, professorID); err != nil {
		return nil, mapError(err)
	}
	return courses, nil
}

func (r *CourseRepository) Get(ctx context.Context, id int) (types.Course, error) {
	query := r.db.Rebind(`
		SELECT ` + courseColumns + `, COALESCE(u.name, '') AS professor_name
		FROM courses c
		LEFT JOIN users u ON u.id = c.professor_id
		WHERE c.id = ?`)
	var course types.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return types.Course{}, mapError(err)
	}
	return course, nil
}

func (r *CourseRepository) Create(ctx context.Context, course types.Course) (types.Course, error) {
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now

	query := r.db.Rebind(`
		INSERT INTO courses (title, description, category, location, duration, professor_id, image, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)
	if err := r.db.QueryRowxContext(
		ctx,
		query,
		course.Title,
		course.Description,
		course.Category,
		course.Location,
		course.Duration,
		course.ProfessorID,
		nullString(course.Image),
		course.CreatedAt,
		course.UpdatedAt,
	).Scan(&course.ID); err != nil {
		return types.Course{}, mapError(err)
	}
	return course, nil
}

// Update overwrites the scalar fields and image of a course. The owner is never changed.
func (r *CourseRepository) Update(ctx context.Context, course types.Course) (types.Course, error) {
	course.UpdatedAt = time.Now().UTC()

	query := r.db.Rebind(`
		UPDATE courses
		SET title = ?,
			description = ?,
			category = ?,
			location = ?,
			duration = ?,
			image = ?,
			updated_at = ?
		WHERE id = ?`)
	result, err := r.db.ExecContext(
		ctx,
		query,
		course.Title,
		course.Description,
		course.Category,
		course.Location,
		course.Duration,
		nullString(course.Image),
		course.UpdatedAt,
		course.ID,
	)
	if err != nil {
		return types.Course{}, mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Course{}, err
	}
	if affected == 0 {
		return types.Course{}, ErrNotFound
	}
	return course, nil
}

// Delete removes a course together with its enrollments in one transaction
// and returns the number of enrollments removed.
func (r *CourseRepository) Delete(ctx context.Context, id int) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM course_students WHERE course_id = ?`), id)
	if err != nil {
		return 0, mapError(err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	result, err = tx.ExecContext(ctx, tx.Rebind(`DELETE FROM courses WHERE id = ?`), id)
	if err != nil {
		return 0, mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		return 0, ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int(removed), nil
}

// ListStudents returns the roster of a course.
func (r *CourseRepository) ListStudents(ctx context.Context, courseID int) ([]types.RosterEntry, error) {
	query := r.db.Rebind(`
		SELECT u.id, u.name, u.email, cs.enrolled_at
		FROM course_students cs
		JOIN users u ON u.id = cs.student_id
		WHERE cs.course_id = ?
		ORDER BY cs.enrolled_at, u.id`)
	students := []types.RosterEntry{}
	if err := r.db.SelectContext(ctx, &students, query, courseID); err != nil {
		return nil, mapError(err)
	}
	return students, nil
}

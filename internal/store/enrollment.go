package store

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mlearn/apiserver/types"
)

// EnrollmentRepository handles persistence for the student/course relation.
type EnrollmentRepository struct {
	db *sqlx.DB
}

func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Create links a student to a course, copying the course's professor onto the row.
// It returns ErrNotFound when the course does not exist and ErrConflict when the
// pair is already enrolled.
func (r *EnrollmentRepository) Create(ctx context.Context, courseID, studentID int) (types.Enrollment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return types.Enrollment{}, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	enrollment := types.Enrollment{
		CourseID:   courseID,
		StudentID:  studentID,
		EnrolledAt: time.Now().UTC(),
	}

	if err := tx.GetContext(ctx, &enrollment.ProfessorID, tx.Rebind(`SELECT professor_id FROM courses WHERE id = ?`), courseID); err != nil {
		return types.Enrollment{}, mapError(err)
	}

	query := tx.Rebind(`
		INSERT INTO course_students (course_id, student_id, professor_id, enrolled_at)
		VALUES (?, ?, ?, ?)`)
	if _, err := tx.ExecContext(ctx, query, enrollment.CourseID, enrollment.StudentID, enrollment.ProfessorID, enrollment.EnrolledAt); err != nil {
		return types.Enrollment{}, mapError(err)
	}

	if err := tx.Commit(); err != nil {
		return types.Enrollment{}, mapError(err)
	}
	return enrollment, nil
}

// Get returns the enrollment of a student in a course.
func (r *EnrollmentRepository) Get(ctx context.Context, studentID, courseID int) (types.Enrollment, error) {
	query := r.db.Rebind(`
		SELECT course_id, student_id, professor_id, enrolled_at
		FROM course_students
		WHERE student_id = ? AND course_id = ?`)
	var enrollment types.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, courseID); err != nil {
		return types.Enrollment{}, mapError(err)
	}
	return enrollment, nil
}

// Delete removes the enrollment of a student in a course.
func (r *EnrollmentRepository) Delete(ctx context.Context, studentID, courseID int) error {
	query := r.db.Rebind(`DELETE FROM course_students WHERE student_id = ? AND course_id = ?`)
	result, err := r.db.ExecContext(ctx, query, studentID, courseID)
	if err != nil {
		return mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListCoursesForStudent returns the courses a student is subscribed to, in enrollment order.
func (r *EnrollmentRepository) ListCoursesForStudent(ctx context.Context, studentID int) ([]types.Course, error) {
	query := r.db.Rebind(`
		SELECT ` + courseColumns + `, COALESCE(u.name, '') AS professor_name
		FROM course_students cs
		JOIN courses c ON c.id = cs.course_id
		LEFT JOIN users u ON u.id = c.professor_id
		WHERE cs.student_id = ?
		ORDER BY cs.enrolled_at, c.id`)
	courses := []types.Course{}
	if err := r.db.SelectContext(ctx, &courses, query, studentID); err != nil {
		return nil, mapError(err)
	}
	return courses, nil
}

// CountForCourse returns the number of students enrolled in a course.
func (r *EnrollmentRepository) CountForCourse(ctx context.Context, courseID int) (int, error) {
	query := r.db.Rebind(`SELECT COUNT(*) FROM course_students WHERE course_id = ?`)
	var count int
	if err := r.db.GetContext(ctx, &count, query, courseID); err != nil {
		return 0, mapError(err)
	}
	return count, nil
}

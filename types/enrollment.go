package types

import "time"

// Enrollment links a student to a course. The (CourseID, StudentID) pair is unique.
type Enrollment struct {
	CourseID  int `json:"course_id" db:"course_id"`
	StudentID int `json:"student_id" db:"student_id"`

	// ProfessorID is copied from the course when the enrollment is created.
	ProfessorID int `json:"professor_id" db:"professor_id"`

	EnrolledAt time.Time `json:"enrolled_at" db:"enrolled_at"`
}

// RosterEntry is a student enrolled in a given course.
type RosterEntry struct {
	ID         int       `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	Email      string    `json:"email" db:"email"`
	EnrolledAt time.Time `json:"enrolled_at" db:"enrolled_at"`
}

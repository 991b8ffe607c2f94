package types

import "time"

// Course represents an offering published by exactly one professor.
type Course struct {
	// ID is the unique identifier of the course.
	ID int `json:"id" db:"id"`

	// Title is the human-readable name of the course.
	Title string `json:"title" db:"title"`

	// Description is the full course presentation.
	Description string `json:"description" db:"description"`

	// Category is a free-form label such as "Coding" or "Design".
	Category string `json:"category" db:"category"`

	// Location is where the course takes place, typically "Online" or a city.
	Location string `json:"location" db:"location"`

	// Duration is the length of the course in hours. Always positive.
	Duration int `json:"duration" db:"duration"`

	// ProfessorID identifies the owning professor.
	ProfessorID int `json:"professor_id" db:"professor_id"`

	// ProfessorName is the owning professor's display name. It is only
	// populated by read paths that join the users table.
	ProfessorName string `json:"professor_name,omitempty" db:"professor_name"`

	// Image is the stored path of the course image, or nil when none was uploaded.
	Image *string `json:"image" db:"image"`

	// CreatedAt is the timestamp at which the course was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the course.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CourseWithCount is a course annotated with its current number of enrolled students.
// The count is computed from enrollment rows on every read.
type CourseWithCount struct {
	Course
	StudentCount int `json:"studentCount" db:"student_count"`
}

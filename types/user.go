package types

import (
	"strings"
	"time"
)

// Role designates what a user can do on the marketplace.
// The set is closed and a user's role never changes after registration.
type Role string

const (
	// RoleStudent browses the catalog and subscribes to courses.
	RoleStudent Role = "Student"

	// RoleProfessor publishes and manages courses.
	RoleProfessor Role = "Professor"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleProfessor
}

func (r Role) String() string {
	return string(r)
}

// User represents an account in the system, either a student or a professor.
// It contains identity, credential, role, and profile data.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Email is the user's unique email address. It is the lookup key for
	// profile operations and is never changed after registration.
	Email string `json:"email" db:"email"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// Role is either "Student" or "Professor".
	Role Role `json:"role" db:"role"`

	// Name is the user's display or full name.
	Name string `json:"name" db:"name"`

	Phone   string `json:"phone" db:"phone"`
	City    string `json:"city" db:"city"`
	Country string `json:"country" db:"country"`

	// Presentation is a free-form introduction text shown on the profile.
	Presentation string `json:"presentation" db:"presentation"`

	// Interests is a comma-delimited list of interest labels.
	Interests string `json:"interests" db:"interests"`

	// DateOfBirth is formatted as YYYY-MM-DD, or empty when unknown.
	DateOfBirth string `json:"date_of_birth" db:"date_of_birth"`

	// ProfilePicture is the stored path of the avatar, e.g. "/uploads/avatars/...".
	// It is nil when no avatar was ever uploaded.
	ProfilePicture *string `json:"profile_picture" db:"profile_picture"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// InterestList splits Interests into its labels.
func (u User) InterestList() []string {
	return SplitInterests(u.Interests)
}

// SplitInterests splits a comma-delimited interest string, dropping blanks.
func SplitInterests(raw string) []string {
	parts := strings.Split(raw, ",")
	interests := make([]string, 0, len(parts))
	for _, part := range parts {
		interest := strings.TrimSpace(part)
		if interest != "" {
			interests = append(interests, interest)
		}
	}
	return interests
}

// JoinInterests is the inverse of SplitInterests.
func JoinInterests(interests []string) string {
	return strings.Join(SplitInterests(strings.Join(interests, ",")), ",")
}

// Session is the authenticated caller of a request, decoded from its bearer token.
type Session struct {
	UserID int    `json:"user_id"`
	Role   Role   `json:"role"`
	Email  string `json:"email"`
}

package store

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mlearn/apiserver/types"
)

const userColumns = `id, email, password_hash, role, name, phone, city, country,
	presentation, interests, date_of_birth, profile_picture, created_at, updated_at`

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ?`)
	var user types.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return types.User{}, mapError(err)
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower(?)`)
	var user types.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		return types.User{}, mapError(err)
	}
	return user, nil
}

// Create inserts a user. A taken email yields ErrConflict.
func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := r.db.Rebind(`
		INSERT INTO users (email, password_hash, role, name, phone, city, country,
			presentation, interests, date_of_birth, profile_picture, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)
	if err := r.db.QueryRowxContext(
		ctx,
		query,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		user.Name,
		user.Phone,
		user.City,
		user.Country,
		user.Presentation,
		user.Interests,
		user.DateOfBirth,
		nullString(user.ProfilePicture),
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID); err != nil {
		return types.User{}, mapError(err)
	}
	return user, nil
}

// UpdateProfile overwrites the mutable profile columns of the user identified by email.
// Email and role are never written.
func (r *UserRepository) UpdateProfile(ctx context.Context, user types.User) (types.User, error) {
	user.UpdatedAt = time.Now().UTC()

	query := r.db.Rebind(`
		UPDATE users
		SET name = ?,
			phone = ?,
			city = ?,
			country = ?,
			presentation = ?,
			interests = ?,
			date_of_birth = ?,
			profile_picture = ?,
			password_hash = ?,
			updated_at = ?
		WHERE email = ?`)
	result, err := r.db.ExecContext(
		ctx,
		query,
		user.Name,
		user.Phone,
		user.City,
		user.Country,
		user.Presentation,
		user.Interests,
		user.DateOfBirth,
		nullString(user.ProfilePicture),
		user.PasswordHash,
		user.UpdatedAt,
		user.Email,
	)
	if err != nil {
		return types.User{}, mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.User{}, err
	}
	if affected == 0 {
		return types.User{}, ErrNotFound
	}
	return user, nil
}

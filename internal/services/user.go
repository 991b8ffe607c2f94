package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/mlearn/apiserver/internal/storage"
	"github.com/mlearn/apiserver/internal/store"
	"github.com/mlearn/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// hashCost is the bcrypt work factor for new password hashes.
var hashCost = bcrypt.DefaultCost

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	UpdateProfile(ctx context.Context, user types.User) (types.User, error)
}

// FileStore persists uploaded files and returns the path stored on rows.
type FileStore interface {
	Save(ctx context.Context, prefix string, upload storage.Upload) (string, error)
	Remove(ctx context.Context, publicPath string) error
}

// RegisterInput is the payload of a sign-up.
type RegisterInput struct {
	Email    string     `json:"email" validate:"required,max=255"`
	Password string     `json:"password" validate:"required,max=72"`
	Role     types.Role `json:"role" validate:"required,oneof=Student Professor"`
	Name     string     `json:"name" validate:"max=255"`
}

// ProfileUpdate carries every mutable profile field. An empty Password keeps
// the stored credential.
type ProfileUpdate struct {
	Email        string `json:"email"`
	Name         string `json:"name" validate:"max=255"`
	Phone        string `json:"phone" validate:"max=64"`
	City         string `json:"city" validate:"max=255"`
	Country      string `json:"country" validate:"max=255"`
	Presentation string `json:"presentation"`
	Interests    string `json:"interests"`
	DateOfBirth  string `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	Password     string `json:"password" validate:"max=72"`
}

// UserService encapsulates account and profile use-cases.
type UserService struct {
	repo   UserRepository
	files  FileStore
	logger *slog.Logger
}

func NewUserService(repo UserRepository, files FileStore, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{repo: repo, files: files, logger: logger}
}

// Register creates an account with a hashed password.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (types.User, error) {
	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if err := validateStruct(in); err != nil {
		return types.User{}, err
	}

	if _, err := s.repo.GetByEmail(ctx, in.Email); err == nil {
		return types.User{}, ErrDuplicateEmail
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, storageError("lookup user", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), hashCost)
	if err != nil {
		return types.User{}, err
	}

	user, err := s.repo.Create(ctx, types.User{
		Email:        in.Email,
		PasswordHash: string(hashed),
		Role:         in.Role,
		Name:         in.Name,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, ErrDuplicateEmail
		}
		return types.User{}, storageError("create user", err)
	}
	return user, nil
}

// Authenticate checks the password for email and that the account has role.
func (s *UserService) Authenticate(ctx context.Context, email, password string, role types.Role) (types.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return types.User{}, &ValidationError{Message: "email and password are required"}
	}
	if !role.Valid() {
		return types.User{}, &ValidationError{Field: "role", Message: "must be one of Student, Professor"}
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrInvalidCredentials
		}
		return types.User{}, storageError("lookup user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, ErrInvalidCredentials
	}
	if user.Role != role {
		return types.User{}, ErrRoleMismatch
	}
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, userLookupError(err)
	}
	return user, nil
}

func (s *UserService) GetProfileByEmail(ctx context.Context, email string) (types.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return types.User{}, ErrMissingEmail
	}
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return types.User{}, userLookupError(err)
	}
	return user, nil
}

func (s *UserService) GetRoleByEmail(ctx context.Context, email string) (types.Role, error) {
	user, err := s.GetProfileByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	return user.Role, nil
}

// RequireSelf resolves the account keyed by email and checks it belongs to session.
func (s *UserService) RequireSelf(ctx context.Context, session types.Session, email string) (types.User, error) {
	user, err := s.GetProfileByEmail(ctx, email)
	if err != nil {
		return types.User{}, err
	}
	if user.ID != session.UserID {
		return types.User{}, ErrForbidden
	}
	return user, nil
}

// UpdateProfile overwrites the mutable profile fields of the account keyed by
// in.Email. The avatar changes only when one is uploaded.
func (s *UserService) UpdateProfile(ctx context.Context, in ProfileUpdate, avatar *storage.Upload) (types.User, error) {
	in.Email = normalizeEmail(in.Email)
	if in.Email == "" {
		return types.User{}, ErrMissingEmail
	}
	in.DateOfBirth = strings.TrimSpace(in.DateOfBirth)
	if err := validateStruct(in); err != nil {
		return types.User{}, err
	}

	user, err := s.repo.GetByEmail(ctx, in.Email)
	if err != nil {
		return types.User{}, userLookupError(err)
	}

	user.Name = strings.TrimSpace(in.Name)
	user.Phone = strings.TrimSpace(in.Phone)
	user.City = strings.TrimSpace(in.City)
	user.Country = strings.TrimSpace(in.Country)
	user.Presentation = in.Presentation
	user.Interests = types.JoinInterests(types.SplitInterests(in.Interests))
	user.DateOfBirth = in.DateOfBirth

	if in.Password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), hashCost)
		if err != nil {
			return types.User{}, err
		}
		user.PasswordHash = string(hashed)
	}

	previous := user.ProfilePicture
	var uploaded string
	if avatar != nil {
		if s.files == nil {
			return types.User{}, storageError("save avatar", errors.New("no file store configured"))
		}
		uploaded, err = s.files.Save(ctx, storage.AvatarPrefix, *avatar)
		if err != nil {
			return types.User{}, uploadError("profile_picture", "save avatar", err)
		}
		user.ProfilePicture = &uploaded
	}

	updated, err := s.repo.UpdateProfile(ctx, user)
	if err != nil {
		if uploaded != "" {
			s.removeFile(ctx, uploaded)
		}
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, storageError("update profile", err)
	}

	if uploaded != "" && previous != nil && *previous != uploaded {
		s.removeFile(ctx, *previous)
	}
	return updated, nil
}

func (s *UserService) removeFile(ctx context.Context, path string) {
	if err := s.files.Remove(ctx, path); err != nil {
		s.logger.Warn("remove upload failed", "path", path, "error", err)
	}
}

// normalizeEmail is the canonical form emails are stored and looked up in.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func userLookupError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return storageError("lookup user", err)
}

package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/mlearn/apiserver/internal/metrics"
	"github.com/mlearn/apiserver/internal/mq"
	"github.com/mlearn/apiserver/internal/storage"
	"github.com/mlearn/apiserver/internal/store"
	"github.com/mlearn/apiserver/types"
)

// CourseRepository defines persistence operations for courses.
type CourseRepository interface {
	List(ctx context.Context) ([]types.Course, error)
	ListByProfessor(ctx context.Context, professorID int) ([]types.CourseWithCount, error)
	Get(ctx context.Context, id int) (types.Course, error)
	Create(ctx context.Context, course types.Course) (types.Course, error)
	Update(ctx context.Context, course types.Course) (types.Course, error)
	Delete(ctx context.Context, id int) (int, error)
	ListStudents(ctx context.Context, courseID int) ([]types.RosterEntry, error)
}

// EventPublisher receives enrollment events.
type EventPublisher interface {
	Publish(ctx context.Context, event mq.Event)
}

// EnrollmentRecorder counts enrollment changes by action.
type EnrollmentRecorder interface {
	RecordEnrollment(action string, n int)
}

// CourseInput holds the scalar course fields, all required.
type CourseInput struct {
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description" validate:"required"`
	Category    string `json:"category" validate:"required,max=255"`
	Location    string `json:"location" validate:"required,max=255"`
	Duration    int    `json:"duration" validate:"required,gt=0"`
}

func (in *CourseInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	in.Location = strings.TrimSpace(in.Location)
}

// CourseService encapsulates catalog use-cases.
type CourseService struct {
	repo     CourseRepository
	users    UserRepository
	files    FileStore
	events   EventPublisher
	recorder EnrollmentRecorder
	logger   *slog.Logger
}

// CourseServiceDeps groups the collaborators of CourseService. Files, Events
// and Recorder are optional.
type CourseServiceDeps struct {
	Courses  CourseRepository
	Users    UserRepository
	Files    FileStore
	Events   EventPublisher
	Recorder EnrollmentRecorder
	Logger   *slog.Logger
}

func NewCourseService(deps CourseServiceDeps) *CourseService {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CourseService{
		repo:     deps.Courses,
		users:    deps.Users,
		files:    deps.Files,
		events:   deps.Events,
		recorder: deps.Recorder,
		logger:   logger,
	}
}

// Create stores a course owned by professorID, who must be a Professor.
func (s *CourseService) Create(ctx context.Context, professorID int, in CourseInput, image *storage.Upload) (types.Course, error) {
	in.normalize()
	if err := validateStruct(in); err != nil {
		return types.Course{}, err
	}
	if professorID <= 0 {
		return types.Course{}, &ValidationError{Field: "professor_id", Message: "is required"}
	}

	professor, err := s.users.GetByID(ctx, professorID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Course{}, &ValidationError{Field: "professor_id", Message: "must reference a professor"}
		}
		return types.Course{}, storageError("lookup professor", err)
	}
	if professor.Role != types.RoleProfessor {
		return types.Course{}, &ValidationError{Field: "professor_id", Message: "must reference a professor"}
	}

	course := types.Course{
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		Location:    in.Location,
		Duration:    in.Duration,
		ProfessorID: professorID,
	}
	uploaded, err := s.saveImage(ctx, image)
	if err != nil {
		return types.Course{}, err
	}
	if uploaded != "" {
		course.Image = &uploaded
	}

	created, err := s.repo.Create(ctx, course)
	if err != nil {
		s.removeFile(ctx, uploaded)
		if errors.Is(err, store.ErrReferenced) {
			return types.Course{}, &ValidationError{Field: "professor_id", Message: "must reference a professor"}
		}
		return types.Course{}, storageError("create course", err)
	}
	created.ProfessorName = professor.Name
	return created, nil
}

// ListAll returns the whole catalog.
func (s *CourseService) ListAll(ctx context.Context) ([]types.Course, error) {
	courses, err := s.repo.List(ctx)
	if err != nil {
		return nil, storageError("list courses", err)
	}
	return courses, nil
}

// ListByProfessor returns the professor's courses with live enrollment counts.
func (s *CourseService) ListByProfessor(ctx context.Context, professorID int) ([]types.CourseWithCount, error) {
	courses, err := s.repo.ListByProfessor(ctx, professorID)
	if err != nil {
		return nil, storageError("list professor courses", err)
	}
	return courses, nil
}

func (s *CourseService) Get(ctx context.Context, id int) (types.Course, error) {
	course, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Course{}, courseLookupError(err)
	}
	return course, nil
}

// Update overwrites the scalar fields of a course. The image is replaced only
// when a new one is uploaded.
func (s *CourseService) Update(ctx context.Context, id int, in CourseInput, image *storage.Upload) (types.Course, error) {
	in.normalize()
	if err := validateStruct(in); err != nil {
		return types.Course{}, err
	}

	course, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Course{}, courseLookupError(err)
	}

	course.Title = in.Title
	course.Description = in.Description
	course.Category = in.Category
	course.Location = in.Location
	course.Duration = in.Duration

	previous := course.Image
	uploaded, err := s.saveImage(ctx, image)
	if err != nil {
		return types.Course{}, err
	}
	if uploaded != "" {
		course.Image = &uploaded
	}

	updated, err := s.repo.Update(ctx, course)
	if err != nil {
		s.removeFile(ctx, uploaded)
		return types.Course{}, courseLookupError(err)
	}
	if uploaded != "" && previous != nil {
		s.removeFile(ctx, *previous)
	}
	return updated, nil
}

// Delete removes the course and its enrollments, then its image.
func (s *CourseService) Delete(ctx context.Context, id int) error {
	course, err := s.repo.Get(ctx, id)
	if err != nil {
		return courseLookupError(err)
	}

	removed, err := s.repo.Delete(ctx, id)
	if err != nil {
		return courseLookupError(err)
	}
	if course.Image != nil {
		s.removeFile(ctx, *course.Image)
	}

	if s.recorder != nil {
		s.recorder.RecordEnrollment(metrics.ActionCascade, removed)
	}
	if s.events != nil {
		s.events.Publish(ctx, mq.Event{
			Type:        mq.EventCourseDeleted,
			CourseID:    id,
			ProfessorID: course.ProfessorID,
			Removed:     removed,
		})
	}
	return nil
}

// ListStudents returns the roster of an existing course.
func (s *CourseService) ListStudents(ctx context.Context, courseID int) ([]types.RosterEntry, error) {
	if _, err := s.repo.Get(ctx, courseID); err != nil {
		return nil, courseLookupError(err)
	}
	students, err := s.repo.ListStudents(ctx, courseID)
	if err != nil {
		return nil, storageError("list students", err)
	}
	return students, nil
}

// RequireOwner returns the course when session is the Professor who owns it.
func (s *CourseService) RequireOwner(ctx context.Context, session types.Session, courseID int) (types.Course, error) {
	course, err := s.Get(ctx, courseID)
	if err != nil {
		return types.Course{}, err
	}
	if session.Role != types.RoleProfessor || session.UserID != course.ProfessorID {
		return types.Course{}, ErrForbidden
	}
	return course, nil
}

func (s *CourseService) saveImage(ctx context.Context, image *storage.Upload) (string, error) {
	if image == nil {
		return "", nil
	}
	if s.files == nil {
		return "", storageError("save course image", errors.New("no file store configured"))
	}
	path, err := s.files.Save(ctx, storage.CoursePrefix, *image)
	if err != nil {
		return "", uploadError("course_image", "save course image", err)
	}
	return path, nil
}

func (s *CourseService) removeFile(ctx context.Context, path string) {
	if path == "" || s.files == nil {
		return
	}
	if err := s.files.Remove(ctx, path); err != nil {
		s.logger.Warn("remove upload failed", "path", path, "error", err)
	}
}

func courseLookupError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return storageError("course", err)
}

package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mlearn/apiserver/internal/metrics"
	"github.com/mlearn/apiserver/internal/mq"
	"github.com/mlearn/apiserver/internal/store"
	"github.com/mlearn/apiserver/types"
)

// EnrollmentRepository defines persistence operations for course_students.
type EnrollmentRepository interface {
	Create(ctx context.Context, courseID, studentID int) (types.Enrollment, error)
	Get(ctx context.Context, studentID, courseID int) (types.Enrollment, error)
	Delete(ctx context.Context, studentID, courseID int) error
	ListCoursesForStudent(ctx context.Context, studentID int) ([]types.Course, error)
}

// EnrollmentService manages the student to course relation.
type EnrollmentService struct {
	repo     EnrollmentRepository
	users    UserRepository
	events   EventPublisher
	recorder EnrollmentRecorder
	logger   *slog.Logger
}

// EnrollmentServiceDeps groups the collaborators of EnrollmentService. Events
// and Recorder are optional.
type EnrollmentServiceDeps struct {
	Enrollments EnrollmentRepository
	Users       UserRepository
	Events      EventPublisher
	Recorder    EnrollmentRecorder
	Logger      *slog.Logger
}

func NewEnrollmentService(deps EnrollmentServiceDeps) *EnrollmentService {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &EnrollmentService{
		repo:     deps.Enrollments,
		users:    deps.Users,
		events:   deps.Events,
		recorder: deps.Recorder,
		logger:   logger,
	}
}

// Subscribe enrolls a student in a course. Subscribing twice fails with
// ErrAlreadySubscribed.
func (s *EnrollmentService) Subscribe(ctx context.Context, courseID, studentID int) (types.Enrollment, error) {
	if courseID <= 0 {
		return types.Enrollment{}, &ValidationError{Field: "course_id", Message: "is required"}
	}
	if studentID <= 0 {
		return types.Enrollment{}, &ValidationError{Field: "student_id", Message: "is required"}
	}

	student, err := s.users.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Enrollment{}, &ValidationError{Field: "student_id", Message: "must reference a student"}
		}
		return types.Enrollment{}, storageError("lookup student", err)
	}
	if student.Role != types.RoleStudent {
		return types.Enrollment{}, &ValidationError{Field: "student_id", Message: "must reference a student"}
	}

	enrollment, err := s.repo.Create(ctx, courseID, studentID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrReferenced):
			return types.Enrollment{}, ErrInvalidCourse
		case errors.Is(err, store.ErrConflict):
			return types.Enrollment{}, ErrAlreadySubscribed
		default:
			return types.Enrollment{}, storageError("subscribe", err)
		}
	}

	s.record(metrics.ActionSubscribe)
	s.publish(ctx, mq.Event{
		Type:        mq.EventEnrollmentCreated,
		CourseID:    courseID,
		StudentID:   studentID,
		ProfessorID: enrollment.ProfessorID,
		OccurredAt:  enrollment.EnrolledAt,
	})
	return enrollment, nil
}

// Unsubscribe removes the enrollment of studentID in courseID.
func (s *EnrollmentService) Unsubscribe(ctx context.Context, studentID, courseID int) error {
	return s.remove(ctx, studentID, courseID, metrics.ActionUnsubscribe)
}

// RemoveStudent drops a student from a course roster.
func (s *EnrollmentService) RemoveStudent(ctx context.Context, courseID, studentID int) error {
	return s.remove(ctx, studentID, courseID, metrics.ActionRemove)
}

func (s *EnrollmentService) remove(ctx context.Context, studentID, courseID int, action string) error {
	if studentID <= 0 {
		return &ValidationError{Field: "student_id", Message: "is required"}
	}
	if courseID <= 0 {
		return &ValidationError{Field: "course_id", Message: "is required"}
	}

	enrollment, err := s.repo.Get(ctx, studentID, courseID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return storageError(action, err)
	}
	if err := s.repo.Delete(ctx, studentID, courseID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return storageError(action, err)
	}

	s.record(action)
	s.publish(ctx, mq.Event{
		Type:        mq.EventEnrollmentDeleted,
		CourseID:    courseID,
		StudentID:   studentID,
		ProfessorID: enrollment.ProfessorID,
	})
	return nil
}

// ListSubscribed returns the courses a student is enrolled in.
func (s *EnrollmentService) ListSubscribed(ctx context.Context, studentID int) ([]types.Course, error) {
	courses, err := s.repo.ListCoursesForStudent(ctx, studentID)
	if err != nil {
		return nil, storageError("list subscribed courses", err)
	}
	return courses, nil
}

func (s *EnrollmentService) record(action string) {
	if s.recorder != nil {
		s.recorder.RecordEnrollment(action, 1)
	}
}

func (s *EnrollmentService) publish(ctx context.Context, event mq.Event) {
	if s.events != nil {
		s.events.Publish(ctx, event)
	}
}

package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/mlearn/apiserver/internal/services"
	"github.com/mlearn/apiserver/internal/storage"
	"github.com/mlearn/apiserver/types"
)

const (
	formFieldTitle       = "title"
	formFieldDesc        = "description"
	formFieldCategory    = "category"
	formFieldLocation    = "location"
	formFieldDuration    = "duration"
	formFieldProfessorID = "professor_id"
	formFieldCourseImage = "course_image"
	formFieldImage       = "image"
)

// CourseHandler provides HTTP handlers for the catalog and course rosters.
type CourseHandler struct {
	courseService     *services.CourseService
	enrollmentService *services.EnrollmentService
	maxUploadBytes    int64
}

func NewCourseHandler(courseService *services.CourseService, enrollmentService *services.EnrollmentService, maxUploadBytes int64) *CourseHandler {
	return &CourseHandler{
		courseService:     courseService,
		enrollmentService: enrollmentService,
		maxUploadBytes:    maxUploadBytes,
	}
}

// CourseRouter registers catalog and roster routes. authMiddleware guards
// every mutating route.
func CourseRouter(r chi.Router, handler *CourseHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/courses", func(r chi.Router) {
		r.Get("/", handler.ListCourses)
		r.With(authMiddleware).Post("/", handler.CreateCourse)
		r.Route("/{courseID}", func(r chi.Router) {
			r.Get("/", handler.GetCourse)
			r.With(authMiddleware).Put("/", handler.UpdateCourse)
			r.With(authMiddleware).Delete("/", handler.DeleteCourse)
		})
	})
	r.Get("/professor/{professorID}/courses", handler.ListProfessorCourses)
	r.Route("/course/{courseID}/students", func(r chi.Router) {
		r.Get("/", handler.ListStudents)
		r.With(authMiddleware).Get("/export", handler.ExportStudents)
		r.With(authMiddleware).Delete("/{studentID}", handler.RemoveStudent)
	})
}

// ListCourses returns the catalog, or one professor's courses with counts
// when ?professor_id= is given.
func (h *CourseHandler) ListCourses(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get(formFieldProfessorID); raw != "" {
		professorID, err := parseOptionalInt(raw)
		if err != nil || professorID < 1 {
			writeError(w, http.StatusBadRequest, "invalid professor_id")
			return
		}
		courses, err := h.courseService.ListByProfessor(r.Context(), professorID)
		if err != nil {
			writeServiceError(w, r, err, "failed to list courses")
			return
		}
		writeJSON(w, http.StatusOK, courses)
		return
	}

	courses, err := h.courseService.ListAll(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "failed to list courses")
		return
	}
	writeJSON(w, http.StatusOK, courses)
}

func (h *CourseHandler) GetCourse(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "courseID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	course, err := h.courseService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "failed to fetch course")
		return
	}
	writeJSON(w, http.StatusOK, course)
}

func (h *CourseHandler) ListProfessorCourses(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "professorID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	courses, err := h.courseService.ListByProfessor(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "failed to list courses")
		return
	}
	writeJSON(w, http.StatusOK, courses)
}

// CreateCourse accepts a multipart form. professor_id defaults to the caller.
func (h *CourseHandler) CreateCourse(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}
	if session.Role != types.RoleProfessor {
		writeError(w, http.StatusForbidden, "only professors can create courses")
		return
	}

	input, image, err := h.parseCourseForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	professorID, err := parseOptionalInt(r.FormValue(formFieldProfessorID))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid professor_id")
		return
	}
	if professorID == 0 {
		professorID = session.UserID
	}
	if professorID != session.UserID {
		writeServiceError(w, r, services.ErrForbidden, "")
		return
	}

	course, err := h.courseService.Create(r.Context(), professorID, input, image)
	if err != nil {
		writeServiceError(w, r, err, "failed to create course")
		return
	}
	writeJSON(w, http.StatusCreated, CourseResponse{Message: "course created", ID: course.ID, Course: course})
}

func (h *CourseHandler) UpdateCourse(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ownedCourseID(w, r)
	if !ok {
		return
	}

	input, image, err := h.parseCourseForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	course, err := h.courseService.Update(r.Context(), id, input, image)
	if err != nil {
		writeServiceError(w, r, err, "failed to update course")
		return
	}
	writeJSON(w, http.StatusOK, CourseResponse{Message: "course updated", ID: course.ID, Course: course})
}

func (h *CourseHandler) DeleteCourse(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ownedCourseID(w, r)
	if !ok {
		return
	}

	if err := h.courseService.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err, "failed to delete course")
		return
	}
	writeMessage(w, http.StatusOK, "course deleted")
}

func (h *CourseHandler) ListStudents(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "courseID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	students, err := h.courseService.ListStudents(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "failed to list students")
		return
	}
	writeJSON(w, http.StatusOK, students)
}

func (h *CourseHandler) RemoveStudent(w http.ResponseWriter, r *http.Request) {
	courseID, ok := h.ownedCourseID(w, r)
	if !ok {
		return
	}
	studentID, err := parseIDParam(r, "studentID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.enrollmentService.RemoveStudent(r.Context(), courseID, studentID); err != nil {
		writeServiceError(w, r, err, "failed to remove student")
		return
	}
	writeMessage(w, http.StatusOK, "student removed from course")
}

// ExportStudents streams the roster as an xlsx workbook.
func (h *CourseHandler) ExportStudents(w http.ResponseWriter, r *http.Request) {
	courseID, ok := h.ownedCourseID(w, r)
	if !ok {
		return
	}

	students, err := h.courseService.ListStudents(r.Context(), courseID)
	if err != nil {
		writeServiceError(w, r, err, "failed to list students")
		return
	}

	book, err := rosterWorkbook(students)
	if err != nil {
		writeServiceError(w, r, err, "failed to export students")
		return
	}
	defer func() {
		_ = book.Close()
	}()

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="course-%d-students.xlsx"`, courseID))
	w.WriteHeader(http.StatusOK)
	_ = book.Write(w)
}

// ownedCourseID parses {courseID} and checks the caller owns the course.
func (h *CourseHandler) ownedCourseID(w http.ResponseWriter, r *http.Request) (int, bool) {
	session, ok := requireSession(w, r)
	if !ok {
		return 0, false
	}
	id, err := parseIDParam(r, "courseID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, false
	}
	if _, err := h.courseService.RequireOwner(r.Context(), session, id); err != nil {
		writeServiceError(w, r, err, "failed to fetch course")
		return 0, false
	}
	return id, true
}

func (h *CourseHandler) parseCourseForm(r *http.Request) (services.CourseInput, *storage.Upload, error) {
	if err := parseForm(r); err != nil {
		return services.CourseInput{}, nil, err
	}

	duration, err := parseOptionalInt(r.FormValue(formFieldDuration))
	if err != nil {
		return services.CourseInput{}, nil, errors.New("invalid duration")
	}

	image, err := formUpload(r.MultipartForm, h.maxUploadBytes, formFieldCourseImage, formFieldImage)
	if err != nil {
		return services.CourseInput{}, nil, err
	}

	return services.CourseInput{
		Title:       strings.TrimSpace(r.FormValue(formFieldTitle)),
		Description: strings.TrimSpace(r.FormValue(formFieldDesc)),
		Category:    strings.TrimSpace(r.FormValue(formFieldCategory)),
		Location:    strings.TrimSpace(r.FormValue(formFieldLocation)),
		Duration:    duration,
	}, image, nil
}

type CourseResponse struct {
	Message string       `json:"message"`
	ID      int          `json:"id"`
	Course  types.Course `json:"course"`
}

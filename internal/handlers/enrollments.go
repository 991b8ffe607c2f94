package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mlearn/apiserver/internal/services"
	"github.com/mlearn/apiserver/types"
)

// EnrollmentHandler serves subscribe, unsubscribe and subscription listings.
type EnrollmentHandler struct {
	enrollmentService *services.EnrollmentService
}

func NewEnrollmentHandler(enrollmentService *services.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollmentService: enrollmentService}
}

// EnrollmentRouter registers enrollment routes. authMiddleware guards the writes.
func EnrollmentRouter(r chi.Router, handler *EnrollmentHandler, authMiddleware func(http.Handler) http.Handler) {
	r.With(authMiddleware).Post("/course_students", handler.Subscribe)
	r.With(authMiddleware).Delete("/course_students/{studentID}/{courseID}", handler.Unsubscribe)
	r.Get("/student/{studentID}/subscribed-courses", handler.ListSubscribed)
}

// Subscribe enrolls the calling student. student_id defaults to the caller.
func (h *EnrollmentHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}

	var req SubscribeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	studentID := int(req.StudentID)
	if studentID == 0 {
		studentID = session.UserID
	}
	if session.Role != types.RoleStudent || studentID != session.UserID {
		writeServiceError(w, r, services.ErrForbidden, "")
		return
	}

	enrollment, err := h.enrollmentService.Subscribe(r.Context(), int(req.CourseID), studentID)
	if err != nil {
		writeServiceError(w, r, err, "failed to subscribe")
		return
	}
	writeJSON(w, http.StatusCreated, SubscribeResponse{Message: "subscribed to course", Enrollment: enrollment})
}

func (h *EnrollmentHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}
	studentID, err := parseIDParam(r, "studentID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	courseID, err := parseIDParam(r, "courseID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if studentID != session.UserID {
		writeServiceError(w, r, services.ErrForbidden, "")
		return
	}

	if err := h.enrollmentService.Unsubscribe(r.Context(), studentID, courseID); err != nil {
		writeServiceError(w, r, err, "failed to unsubscribe")
		return
	}
	writeMessage(w, http.StatusOK, "unsubscribed from course")
}

func (h *EnrollmentHandler) ListSubscribed(w http.ResponseWriter, r *http.Request) {
	studentID, err := parseIDParam(r, "studentID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	courses, err := h.enrollmentService.ListSubscribed(r.Context(), studentID)
	if err != nil {
		writeServiceError(w, r, err, "failed to list subscribed courses")
		return
	}
	writeJSON(w, http.StatusOK, courses)
}

type SubscribeRequest struct {
	CourseID  flexInt `json:"course_id"`
	StudentID flexInt `json:"student_id"`
}

type SubscribeResponse struct {
	Message    string           `json:"message"`
	Enrollment types.Enrollment `json:"enrollment"`
}

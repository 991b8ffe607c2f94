package handlers

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mlearn/apiserver/internal/services"
)

const defaultMaxUploadBytes = 10 << 20

// API groups what the /api routes need.
type API struct {
	Users          *services.UserService
	Courses        *services.CourseService
	Enrollments    *services.EnrollmentService
	JWTSecret      string
	TokenTTL       time.Duration
	MaxUploadBytes int64
}

// APIRouter registers every /api route on r.
func APIRouter(r chi.Router, api API) {
	if api.MaxUploadBytes <= 0 {
		api.MaxUploadBytes = defaultMaxUploadBytes
	}
	auth := NewAuthHandler(api.Users, api.JWTSecret, api.TokenTTL)

	AuthRouter(r, auth)
	UserRouter(r, NewUserHandler(api.Users, api.MaxUploadBytes), auth.RequireAuth)
	CourseRouter(r, NewCourseHandler(api.Courses, api.Enrollments, api.MaxUploadBytes), auth.RequireAuth)
	EnrollmentRouter(r, NewEnrollmentHandler(api.Enrollments), auth.RequireAuth)
}

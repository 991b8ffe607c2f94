package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/mlearn/apiserver/internal/services"
	"github.com/mlearn/apiserver/types"
)

const (
	formFieldEmail        = "email"
	formFieldAvatar       = "profile_picture"
	formFieldName         = "name"
	formFieldPhone        = "phone"
	formFieldCity         = "city"
	formFieldCountry      = "country"
	formFieldPresentation = "presentation"
	formFieldInterests    = "interests"
	formFieldDateOfBirth  = "date_of_birth"
	formFieldPassword     = "password"
)

// UserHandler serves profile reads and updates.
type UserHandler struct {
	userService    *services.UserService
	maxUploadBytes int64
}

func NewUserHandler(userService *services.UserService, maxUploadBytes int64) *UserHandler {
	return &UserHandler{userService: userService, maxUploadBytes: maxUploadBytes}
}

// UserRouter registers profile routes. authMiddleware guards the update.
func UserRouter(r chi.Router, handler *UserHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Get("/users/profile", handler.GetProfile)
	r.Get("/users/role", handler.GetRole)
	r.With(authMiddleware).Put("/users/update", handler.UpdateProfile)
}

func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.GetProfileByEmail(r.Context(), r.URL.Query().Get(formFieldEmail))
	if err != nil {
		writeServiceError(w, r, err, "failed to load profile")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) GetRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.userService.GetRoleByEmail(r.Context(), r.URL.Query().Get(formFieldEmail))
	if err != nil {
		writeServiceError(w, r, err, "failed to load role")
		return
	}
	writeJSON(w, http.StatusOK, RoleResponse{Role: role})
}

// UpdateProfile accepts a multipart form with an optional profile_picture file.
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}
	if err := parseForm(r); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	email := strings.TrimSpace(r.FormValue(formFieldEmail))
	if email == "" {
		writeServiceError(w, r, services.ErrMissingEmail, "")
		return
	}
	if _, err := h.userService.RequireSelf(r.Context(), session, email); err != nil {
		writeServiceError(w, r, err, "failed to fetch profile")
		return
	}

	avatar, err := formUpload(r.MultipartForm, h.maxUploadBytes, formFieldAvatar)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	update := services.ProfileUpdate{
		Email:        email,
		Name:         r.FormValue(formFieldName),
		Phone:        r.FormValue(formFieldPhone),
		City:         r.FormValue(formFieldCity),
		Country:      r.FormValue(formFieldCountry),
		Presentation: r.FormValue(formFieldPresentation),
		Interests:    strings.Join(r.Form[formFieldInterests], ","),
		DateOfBirth:  r.FormValue(formFieldDateOfBirth),
		Password:     r.FormValue(formFieldPassword),
	}

	user, err := h.userService.UpdateProfile(r.Context(), update, avatar)
	if err != nil {
		writeServiceError(w, r, err, "failed to update profile")
		return
	}
	writeJSON(w, http.StatusOK, ProfileResponse{Message: "profile updated", User: user})
}

type RoleResponse struct {
	Role types.Role `json:"role"`
}

type ProfileResponse struct {
	Message string     `json:"message"`
	User    types.User `json:"user"`
}

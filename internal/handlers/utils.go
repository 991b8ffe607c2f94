package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/mlearn/apiserver/internal/logging"
	"github.com/mlearn/apiserver/internal/services"
	"github.com/mlearn/apiserver/internal/storage"
	"github.com/mlearn/apiserver/types"
)

const (
	maxMultipartMemory = 32 << 20
	maxJSONBodyBytes   = 1 << 20
)

type contextKey string

const contextSessionKey contextKey = "session"

// SessionFromContext returns the session injected by RequireAuth.
func SessionFromContext(ctx context.Context) (types.Session, bool) {
	session, ok := ctx.Value(contextSessionKey).(types.Session)
	if !ok || session.UserID < 1 {
		return types.Session{}, false
	}
	return session, true
}

func withSession(ctx context.Context, session types.Session) context.Context {
	return context.WithValue(ctx, contextSessionKey, session)
}

// MessageResponse is the body of confirmations and errors.
type MessageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, MessageResponse{Message: message})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeMessage(w, status, message)
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
// Storage failures are logged and answered with fallback.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, services.ErrMissingEmail),
		errors.Is(err, services.ErrInvalidCourse):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, services.ErrRoleMismatch),
		errors.Is(err, services.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrDuplicateEmail),
		errors.Is(err, services.ErrAlreadySubscribed):
		writeError(w, http.StatusConflict, err.Error())
	default:
		logging.FromContext(r.Context()).Error(fallback, "error", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func requireSession(w http.ResponseWriter, r *http.Request) (types.Session, bool) {
	session, ok := SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return types.Session{}, false
	}
	return session, true
}

func parseIDParam(r *http.Request, name string) (int, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return errors.New("invalid request")
	}
	return nil
}

// parseForm accepts multipart and urlencoded bodies.
func parseForm(r *http.Request) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			return errors.New("invalid multipart form")
		}
		return nil
	}
	if err := r.ParseForm(); err != nil {
		return errors.New("invalid form")
	}
	return nil
}

func parseOptionalInt(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	return strconv.Atoi(value)
}

// formUpload returns the first file found under one of fields, or nil.
func formUpload(form *multipart.Form, limit int64, fields ...string) (*storage.Upload, error) {
	if form == nil {
		return nil, nil
	}
	for _, field := range fields {
		files := form.File[field]
		if len(files) == 0 {
			continue
		}
		if len(files) > 1 {
			return nil, fmt.Errorf("only one %s file is allowed", field)
		}

		fileHeader := files[0]
		file, err := fileHeader.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", field, err)
		}
		data, err := readFileLimited(file, limit)
		_ = file.Close()
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			return nil, nil
		}
		return &storage.Upload{Filename: fileHeader.Filename, Data: data}, nil
	}
	return nil, nil
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("uploaded file too large")
	}
	return data, nil
}

// flexInt decodes a JSON number or a numeric string.
type flexInt int

func (n *flexInt) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" || raw == "null" {
		*n = 0
		return nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid integer %q", raw)
	}
	*n = flexInt(value)
	return nil
}

package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"github.com/mlearn/apiserver/internal/db/dbtest"
	"github.com/mlearn/apiserver/internal/logging"
	"github.com/mlearn/apiserver/internal/services"
	"github.com/mlearn/apiserver/internal/storage"
	"github.com/mlearn/apiserver/internal/store"
	"github.com/mlearn/apiserver/types"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type testAPI struct {
	router  *chi.Mux
	db      *sqlx.DB
	objects *storage.MemoryBackend
}

func newTestAPI(t *testing.T) testAPI {
	t.Helper()
	conn := dbtest.Open(t)
	logger := logging.Discard()
	objects := storage.NewMemoryBackend()
	uploads := storage.NewUploads(objects)

	userRepo := store.NewUserRepository(conn)
	users := services.NewUserService(userRepo, uploads, logger)
	courses := services.NewCourseService(services.CourseServiceDeps{
		Courses: store.NewCourseRepository(conn),
		Users:   userRepo,
		Files:   uploads,
		Logger:  logger,
	})
	enrollments := services.NewEnrollmentService(services.EnrollmentServiceDeps{
		Enrollments: store.NewEnrollmentRepository(conn),
		Users:       userRepo,
		Logger:      logger,
	})

	router := chi.NewRouter()
	router.Get("/healthz", Healthz(conn))
	UploadsRouter(router, uploads)
	router.Route("/api", func(r chi.Router) {
		APIRouter(r, API{
			Users:          users,
			Courses:        courses,
			Enrollments:    enrollments,
			JWTSecret:      testSecret,
			MaxUploadBytes: 1 << 20,
		})
	})
	return testAPI{router: router, db: conn, objects: objects}
}

func (a testAPI) do(t *testing.T, req *http.Request, token string) *httptest.ResponseRecorder {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a testAPI) doJSON(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	return a.do(t, req, token)
}

func (a testAPI) doForm(t *testing.T, method, path string, fields map[string]string, fileField, filename string, data []byte, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for key, value := range fields {
		require.NoError(t, mw.WriteField(key, value))
	}
	if fileField != "" {
		part, err := mw.CreateFormFile(fileField, filename)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return a.do(t, req, token)
}

type account struct {
	user  types.User
	token string
}

func (a testAPI) signup(t *testing.T, email string, role types.Role) account {
	t.Helper()
	rec := a.doJSON(t, http.MethodPost, "/api/signup", map[string]string{
		"email":    email,
		"password": "pw",
		"role":     string(role),
		"name":     "Name " + email,
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp AuthResponse
	decode(t, rec, &resp)
	require.NotEmpty(t, resp.Token)
	return account{user: resp.User, token: resp.Token}
}

func (a testAPI) createCourse(t *testing.T, prof account, title string) types.Course {
	t.Helper()
	rec := a.doForm(t, http.MethodPost, "/api/courses", courseFields(title), "", "", nil, prof.token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp CourseResponse
	decode(t, rec, &resp)
	return resp.Course
}

func courseFields(title string) map[string]string {
	return map[string]string{
		"title":       title,
		"description": "desc",
		"category":    "Coding",
		"location":    "Online",
		"duration":    "10",
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func message(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp MessageResponse
	decode(t, rec, &resp)
	return resp.Message
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

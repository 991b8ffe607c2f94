package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mlearn/apiserver/internal/logging"
	"github.com/mlearn/apiserver/internal/storage"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Healthz reports 200 when the database answers a ping.
func Healthz(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			logging.FromContext(r.Context()).Error("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
	}
}

type HealthResponse struct {
	Status string `json:"status"`
}

// UploadsRouter serves stored avatars and course images under /uploads/*.
func UploadsRouter(r chi.Router, uploads *storage.Uploads) {
	r.Get("/uploads/*", func(w http.ResponseWriter, r *http.Request) {
		obj, err := uploads.Open(r.Context(), chi.URLParam(r, "*"))
		if err != nil {
			if errors.Is(err, storage.ErrObjectNotFound) {
				writeError(w, http.StatusNotFound, "file not found")
				return
			}
			logging.FromContext(r.Context()).Error("open upload failed", "path", r.URL.Path, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to read file")
			return
		}
		defer func() {
			_ = obj.Close()
		}()

		w.Header().Set("Content-Type", obj.ContentType)
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.WriteHeader(http.StatusOK)
		_, _ = io.Copy(w, obj)
	})
}

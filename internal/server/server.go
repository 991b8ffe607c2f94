package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/mlearn/apiserver/config"
	"github.com/mlearn/apiserver/internal/db"
	"github.com/mlearn/apiserver/internal/handlers"
	"github.com/mlearn/apiserver/internal/logging"
	"github.com/mlearn/apiserver/internal/metrics"
	"github.com/mlearn/apiserver/internal/mq"
	"github.com/mlearn/apiserver/internal/services"
	"github.com/mlearn/apiserver/internal/storage"
	"github.com/mlearn/apiserver/internal/store"
)

// requestTimeout bounds handler time. The server write timeout leaves room
// for the timeout response itself.
const (
	requestTimeout = 30 * time.Second
	writeTimeout   = requestTimeout + 5*time.Second
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sqlx.DB
	objects    storage.ObjectStorage
	broker     mq.Backend
	logger     *slog.Logger
}

// New constructs a Server with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	logger := logging.New(cfg.Log)

	if cfg.Database.AutoMigrate && cfg.Database.Driver == db.DriverPostgres {
		if err := db.MigrateUp(cfg.Database); err != nil {
			return nil, err
		}
	}

	dbConn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	s := &Server{db: dbConn, logger: logger}

	objects, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		_ = s.close()
		return nil, fmt.Errorf("init storage failed: %w", err)
	}
	s.objects = objects
	uploads := storage.NewUploads(s.objects)
	if err := uploads.EnsureBucket(ctx); err != nil {
		_ = s.close()
		return nil, fmt.Errorf("prepare bucket %q failed: %w", uploads.Bucket(), err)
	}

	broker, err := mq.New(ctx, cfg.MQ)
	if err != nil {
		_ = s.close()
		return nil, fmt.Errorf("init message queue failed: %w", err)
	}
	s.broker = broker
	events := mq.NewPublisher(s.broker, cfg.EventsChannel, logger)
	stats := metrics.New()

	userRepo := store.NewUserRepository(dbConn)
	courseRepo := store.NewCourseRepository(dbConn)
	enrollmentRepo := store.NewEnrollmentRepository(dbConn)

	userService := services.NewUserService(userRepo, uploads, logger)
	courseService := services.NewCourseService(services.CourseServiceDeps{
		Courses:  courseRepo,
		Users:    userRepo,
		Files:    uploads,
		Events:   events,
		Recorder: stats,
		Logger:   logger,
	})
	enrollmentService := services.NewEnrollmentService(services.EnrollmentServiceDeps{
		Enrollments: enrollmentRepo,
		Users:       userRepo,
		Events:      events,
		Recorder:    stats,
		Logger:      logger,
	})

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		logging.Middleware(logger),
		stats.Middleware,
		middleware.Recoverer,
		middleware.Timeout(requestTimeout),
	)
	router.Get("/healthz", handlers.Healthz(dbConn))
	router.Method(http.MethodGet, "/metrics", stats.Handler())
	handlers.UploadsRouter(router, uploads)
	router.Route("/api", func(r chi.Router) {
		handlers.APIRouter(r, handlers.API{
			Users:          userService,
			Courses:        courseService,
			Enrollments:    enrollmentService,
			JWTSecret:      cfg.JWTSecret,
			TokenTTL:       cfg.TokenTTL,
			MaxUploadBytes: cfg.MaxUploadBytes,
		})
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 5000
	}

	s.router = router
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server. It returns nil once Shutdown has been called.
func (s *Server) Start() error {
	s.logger.Info("server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and releases the database and broker.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	return errors.Join(err, s.close())
}

func (s *Server) close() error {
	var errs []error
	if s.broker != nil {
		errs = append(errs, s.broker.Close())
	}
	if closer, ok := s.objects.(io.Closer); ok {
		errs = append(errs, closer.Close())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	return errors.Join(errs...)
}

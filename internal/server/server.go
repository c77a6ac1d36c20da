package server

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/manutenzioni/internal/auth"
	"github.com/dukerupert/manutenzioni/internal/backup"
	"github.com/dukerupert/manutenzioni/internal/config"
	"github.com/dukerupert/manutenzioni/internal/csvimport"
	"github.com/dukerupert/manutenzioni/internal/directory"
	"github.com/dukerupert/manutenzioni/internal/handler"
	"github.com/dukerupert/manutenzioni/internal/middleware"
	"github.com/dukerupert/manutenzioni/internal/report"
	"github.com/dukerupert/manutenzioni/internal/storage"
	"github.com/dukerupert/manutenzioni/internal/store"
	"github.com/dukerupert/manutenzioni/internal/task"
	ws "github.com/dukerupert/manutenzioni/internal/websocket"
)

// loginLimit is the number of login attempts allowed per client IP and
// minute.
const loginLimit = 10

type Server struct {
	db           *sql.DB
	hub          *ws.Hub
	notifier     *auth.Notifier
	authH        *handler.AuthHandler
	houseH       *handler.HouseHandler
	vehicleH     *handler.VehicleHandler
	taskH        *handler.TaskHandler
	imageH       *handler.ImageHandler
	fileH        *handler.FileHandler
	importH      *handler.ImportHandler
	reportH      *handler.ReportHandler
	profileH     *handler.ProfileHandler
	directoryH   *handler.DirectoryHandler
	backupH      *handler.BackupHandler
	backups      *backup.Manager
	sessionStore *store.SessionStore
	userStore    *store.UserStore
	profileStore *store.ProfileStore
	rateLimiter  *middleware.RateLimiter
	logger       *slog.Logger
}

func New(db *sql.DB, cfg config.Config, blobs *storage.Storage, logger *slog.Logger) (*Server, error) {
	sections, err := directory.Load(cfg.DirectoryFile)
	if err != nil {
		return nil, fmt.Errorf("load directory: %w", err)
	}

	loc := cfg.Location()
	hub := ws.NewHub(logger.With("component", "websocket"))
	notifier := auth.NewNotifier()
	notifier.Subscribe(func(e auth.Event) {
		hub.Broadcast(ws.NewMessage("session", string(e.Kind), e.UserID, nil))
	})

	houseStore := store.NewHouseStore(db)
	vehicleStore := store.NewVehicleStore(db)
	taskStore := store.NewTaskStore(db)
	imageStore := store.NewImageStore(db)
	logStore := store.NewTaskLogStore(db)
	userStore := store.NewUserStore(db)
	profileStore := store.NewProfileStore(db)
	sessionStore := store.NewSessionStore(db, cfg.SessionTTL)

	taskSvc := task.NewService(taskStore, imageStore, logStore, blobs, hub, logger)
	importer := csvimport.NewImporter(houseStore, taskStore, logger)
	generator := report.NewGenerator(taskStore, loc)
	backupStore := store.NewBackupStore(db)
	backups := backup.NewManager(db, backupStore, blobs, cfg.Backup.Passphrase, logger.With("component", "backup"))

	return &Server{
		db:           db,
		hub:          hub,
		notifier:     notifier,
		authH:        handler.NewAuthHandler(userStore, profileStore, sessionStore, notifier, cfg.SessionTTL, logger.With("component", "auth")),
		houseH:       handler.NewHouseHandler(houseStore, hub, logger.With("component", "house")),
		vehicleH:     handler.NewVehicleHandler(vehicleStore, hub, logger.With("component", "vehicle")),
		taskH:        handler.NewTaskHandler(taskSvc, taskStore, logStore, houseStore, vehicleStore, profileStore, loc, logger.With("component", "task_handler")),
		imageH:       handler.NewImageHandler(taskSvc, logger.With("component", "image")),
		fileH:        handler.NewFileHandler(blobs, logger.With("component", "files")),
		importH:      handler.NewImportHandler(importer, hub, logger.With("component", "import")),
		reportH:      handler.NewReportHandler(generator, loc, logger.With("component", "report")),
		profileH:     handler.NewProfileHandler(profileStore, blobs, hub, logger.With("component", "profile")),
		directoryH:   handler.NewDirectoryHandler(sections),
		backupH:      handler.NewBackupHandler(backups, backupStore, logger.With("component", "backup")),
		backups:      backups,
		sessionStore: sessionStore,
		userStore:    userStore,
		profileStore: profileStore,
		rateLimiter:  middleware.NewRateLimiter(),
		logger:       logger,
	}, nil
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Backups returns the snapshot manager for scheduled backups.
func (s *Server) Backups() *backup.Manager {
	return s.backups
}

// Hub returns the change notification hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.HandleFunc("GET /api/import/templates/{kind}", s.importH.Template)

	// Protected routes, wrapped with RequireAuth
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.userStore, s.profileStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		status = "database unavailable"
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{
		"status":   status,
		"revision": s.hub.Revision(),
		"clients":  s.hub.ClientCount(),
	})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	return middleware.RateLimit(s.rateLimiter, middleware.RealIP, loginLimit, time.Minute)(h).ServeHTTP
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /logout", s.authH.Logout)
	mux.HandleFunc("GET /api/me", s.authH.Me)

	// Houses and vehicles
	mux.HandleFunc("GET /api/houses", s.houseH.List)
	mux.HandleFunc("GET /api/houses/search", s.houseH.List)
	mux.HandleFunc("POST /api/houses", s.houseH.Create)
	mux.HandleFunc("GET /api/houses/{id}", s.houseH.Get)
	mux.HandleFunc("PUT /api/houses/{id}", s.houseH.Update)
	mux.HandleFunc("DELETE /api/houses/{id}", s.houseH.Delete)
	mux.HandleFunc("GET /api/vehicles", s.vehicleH.List)
	mux.HandleFunc("POST /api/vehicles", s.vehicleH.Create)
	mux.HandleFunc("PUT /api/vehicles/{id}", s.vehicleH.Update)
	mux.HandleFunc("DELETE /api/vehicles/{id}", s.vehicleH.Delete)

	// Tasks
	mux.HandleFunc("GET /api/dashboard", s.taskH.Dashboard)
	mux.HandleFunc("POST /api/tasks", s.taskH.Create)
	mux.HandleFunc("GET /api/tasks/completed", s.taskH.Completed)
	mux.HandleFunc("GET /api/tasks/archived", s.taskH.Archived)
	mux.HandleFunc("GET /api/tasks/{id}", s.taskH.Get)
	mux.HandleFunc("PUT /api/tasks/{id}", s.taskH.Update)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.taskH.Delete)
	mux.HandleFunc("POST /api/tasks/{id}/complete", s.taskH.Complete)
	mux.HandleFunc("POST /api/tasks/{id}/restore", s.taskH.Restore)
	mux.HandleFunc("POST /api/tasks/{id}/archive", s.taskH.Archive)
	mux.HandleFunc("GET /api/tasks/{id}/logs", s.taskH.Logs)

	// Images
	mux.HandleFunc("GET /api/tasks/{id}/images", s.imageH.List)
	mux.HandleFunc("POST /api/tasks/{id}/images", s.imageH.Upload)
	mux.HandleFunc("DELETE /api/tasks/{id}/images/{image_id}", s.imageH.Delete)
	mux.HandleFunc("GET /api/files/{bucket}/{key...}", s.fileH.Serve)

	// Import and reports
	mux.HandleFunc("POST /api/import/houses", s.importH.Houses)
	mux.HandleFunc("POST /api/import/tasks", s.importH.Tasks)
	mux.HandleFunc("GET /api/reports/completed", s.reportH.Completed)
	mux.HandleFunc("GET /api/reports/months", s.reportH.Months)

	// Profile, operators, useful numbers, VAT
	mux.HandleFunc("GET /api/profile", s.profileH.Get)
	mux.HandleFunc("PUT /api/profile", s.profileH.Update)
	mux.HandleFunc("POST /api/profile/avatar", s.profileH.Avatar)
	mux.HandleFunc("GET /api/operators", s.profileH.Operators)
	mux.HandleFunc("GET /api/numeri-utili", s.directoryH.List)
	mux.HandleFunc("GET /api/cost/vat", handler.VAT)

	// Administration
	mux.Handle("GET /api/admin/backups", middleware.RequireAdmin(http.HandlerFunc(s.backupH.List)))
	mux.Handle("POST /api/admin/backups", middleware.RequireAdmin(http.HandlerFunc(s.backupH.Run)))

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/manutenzioni/internal/auth"
	"github.com/dukerupert/manutenzioni/internal/backup"
	"github.com/dukerupert/manutenzioni/internal/csvimport"
	"github.com/dukerupert/manutenzioni/internal/database"
	"github.com/dukerupert/manutenzioni/internal/directory"
	"github.com/dukerupert/manutenzioni/internal/model"
	"github.com/dukerupert/manutenzioni/internal/report"
	"github.com/dukerupert/manutenzioni/internal/storage"
	"github.com/dukerupert/manutenzioni/internal/store"
	"github.com/dukerupert/manutenzioni/internal/task"
	ws "github.com/dukerupert/manutenzioni/internal/websocket"
)

type fakeBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeBlobs) Upload(_ context.Context, bucket storage.Bucket, key, _ string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[string(bucket)+"/"+key] = data
	return nil
}

func (f *fakeBlobs) Remove(_ context.Context, bucket storage.Bucket, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.objects, string(bucket)+"/"+k)
	}
	return nil
}

func (f *fakeBlobs) Open(_ context.Context, bucket storage.Bucket, key string) (io.ReadCloser, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[string(bucket)+"/"+key]
	if !ok {
		return nil, "", storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), "image/jpeg", nil
}

func (f *fakeBlobs) PublicURL(bucket storage.Bucket, key string) string {
	return "/api/files/" + string(bucket) + "/" + key
}

func (f *fakeBlobs) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

type testEnv struct {
	mux      *http.ServeMux
	hub      *ws.Hub
	blobs    *fakeBlobs
	houses   *store.HouseStore
	vehicles *store.VehicleStore
	tasks    *store.TaskStore
	users    *store.UserStore
	profiles *store.ProfileStore
	sessions *store.SessionStore
	notifier *auth.Notifier
	user     *model.User
	house    *model.House
}

var rome, _ = time.LoadLocation("Europe/Rome")

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupEnv wires every handler onto a mux. Requests carry the test user's
// AuthContext without going through the session middleware.
func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := quietLogger()
	env := &testEnv{
		mux:      http.NewServeMux(),
		hub:      ws.NewHub(logger),
		blobs:    &fakeBlobs{objects: make(map[string][]byte)},
		houses:   store.NewHouseStore(db),
		vehicles: store.NewVehicleStore(db),
		tasks:    store.NewTaskStore(db),
		users:    store.NewUserStore(db),
		profiles: store.NewProfileStore(db),
		sessions: store.NewSessionStore(db, time.Hour),
		notifier: auth.NewNotifier(),
	}
	images := store.NewImageStore(db)
	logs := store.NewTaskLogStore(db)

	hash, err := auth.HashPassword("segreto123")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	env.user, err = env.users.Create("mario@example.com", hash)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	env.house, err = env.houses.Create(store.HouseInput{Name: "Villa Rossi"})
	if err != nil {
		t.Fatalf("create house: %v", err)
	}

	svc := task.NewService(env.tasks, images, logs, env.blobs, env.hub, logger)
	authH := NewAuthHandler(env.users, env.profiles, env.sessions, env.notifier, time.Hour, logger)
	houseH := NewHouseHandler(env.houses, env.hub, logger)
	vehicleH := NewVehicleHandler(env.vehicles, env.hub, logger)
	taskH := NewTaskHandler(svc, env.tasks, logs, env.houses, env.vehicles, env.profiles, rome, logger)
	imageH := NewImageHandler(svc, logger)
	fileH := NewFileHandler(env.blobs, logger)
	importH := NewImportHandler(csvimport.NewImporter(env.houses, env.tasks, logger), env.hub, logger)
	reportH := NewReportHandler(report.NewGenerator(env.tasks, rome), rome, logger)
	profileH := NewProfileHandler(env.profiles, env.blobs, env.hub, logger)
	sections, _ := directory.Load("")
	dirH := NewDirectoryHandler(sections)
	backups := store.NewBackupStore(db)
	backupH := NewBackupHandler(backup.NewManager(db, backups, env.blobs, "", logger), backups, logger)

	m := env.mux
	m.HandleFunc("POST /login", authH.Login)
	m.HandleFunc("POST /logout", authH.Logout)
	m.HandleFunc("GET /api/me", authH.Me)
	m.HandleFunc("GET /api/houses", houseH.List)
	m.HandleFunc("POST /api/houses", houseH.Create)
	m.HandleFunc("GET /api/houses/{id}", houseH.Get)
	m.HandleFunc("PUT /api/houses/{id}", houseH.Update)
	m.HandleFunc("DELETE /api/houses/{id}", houseH.Delete)
	m.HandleFunc("GET /api/vehicles", vehicleH.List)
	m.HandleFunc("POST /api/vehicles", vehicleH.Create)
	m.HandleFunc("PUT /api/vehicles/{id}", vehicleH.Update)
	m.HandleFunc("DELETE /api/vehicles/{id}", vehicleH.Delete)
	m.HandleFunc("GET /api/dashboard", taskH.Dashboard)
	m.HandleFunc("POST /api/tasks", taskH.Create)
	m.HandleFunc("GET /api/tasks/completed", taskH.Completed)
	m.HandleFunc("GET /api/tasks/archived", taskH.Archived)
	m.HandleFunc("GET /api/tasks/{id}", taskH.Get)
	m.HandleFunc("PUT /api/tasks/{id}", taskH.Update)
	m.HandleFunc("DELETE /api/tasks/{id}", taskH.Delete)
	m.HandleFunc("POST /api/tasks/{id}/complete", taskH.Complete)
	m.HandleFunc("POST /api/tasks/{id}/restore", taskH.Restore)
	m.HandleFunc("POST /api/tasks/{id}/archive", taskH.Archive)
	m.HandleFunc("GET /api/tasks/{id}/logs", taskH.Logs)
	m.HandleFunc("GET /api/tasks/{id}/images", imageH.List)
	m.HandleFunc("POST /api/tasks/{id}/images", imageH.Upload)
	m.HandleFunc("DELETE /api/tasks/{id}/images/{image_id}", imageH.Delete)
	m.HandleFunc("GET /api/files/{bucket}/{key...}", fileH.Serve)
	m.HandleFunc("POST /api/import/houses", importH.Houses)
	m.HandleFunc("POST /api/import/tasks", importH.Tasks)
	m.HandleFunc("GET /api/import/templates/{kind}", importH.Template)
	m.HandleFunc("GET /api/reports/completed", reportH.Completed)
	m.HandleFunc("GET /api/reports/months", reportH.Months)
	m.HandleFunc("GET /api/profile", profileH.Get)
	m.HandleFunc("PUT /api/profile", profileH.Update)
	m.HandleFunc("POST /api/profile/avatar", profileH.Avatar)
	m.HandleFunc("GET /api/operators", profileH.Operators)
	m.HandleFunc("GET /api/numeri-utili", dirH.List)
	m.HandleFunc("GET /api/cost/vat", VAT)
	m.HandleFunc("GET /api/admin/backups", backupH.List)
	m.HandleFunc("POST /api/admin/backups", backupH.Run)
	return env
}

func (env *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	return env.serve(req)
}

func (env *testEnv) serve(req *http.Request) *httptest.ResponseRecorder {
	return env.serveAs(req, auth.AuthContext{
		UserID: env.user.ID,
		Email:  env.user.Email,
		Role:   model.RoleUser,
	})
}

func (env *testEnv) serveAs(req *http.Request, ac auth.AuthContext) *httptest.ResponseRecorder {
	ctx := auth.WithAuth(req.Context(), ac)
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req.WithContext(ctx))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]any](t, rec)["error"].(string)
}

// createTask posts a pending task on the test house and returns its id.
func (env *testEnv) createTask(t *testing.T, description string) string {
	t.Helper()
	rec := env.do(t, "POST", "/api/tasks", map[string]any{
		"tipo_manutenzione": "casa",
		"target_id":         env.house.ID,
		"descrizione":       description,
		"rilevato_da":       "Mario",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create task: status = %d, body = %s", rec.Code, rec.Body)
	}
	return decode[taskResponse](t, rec).Task.ID
}

package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/manutenzioni/internal/backup"
	"github.com/dukerupert/manutenzioni/internal/model"
	"github.com/dukerupert/manutenzioni/internal/store"
)

type BackupHandler struct {
	manager *backup.Manager
	backups *store.BackupStore
	logger  *slog.Logger
}

func NewBackupHandler(m *backup.Manager, bs *store.BackupStore, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{manager: m, backups: bs, logger: logger}
}

// List returns recent snapshots, newest first (?limit, default 20).
func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 200 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		limit = n
	}

	list, err := h.backups.List(limit)
	if err != nil {
		fail(w, h.logger, err, "failed to list backups")
		return
	}
	if list == nil {
		list = []model.Backup{}
	}
	writeJSON(w, http.StatusOK, list)
}

// Run takes a snapshot now.
func (h *BackupHandler) Run(w http.ResponseWriter, r *http.Request) {
	b, err := h.manager.Run(r.Context())
	if err != nil {
		fail(w, h.logger, err, "backup failed")
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

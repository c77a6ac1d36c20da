// Package backup snapshots the SQLite database into object storage.
package backup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dukerupert/manutenzioni/internal/model"
	"github.com/dukerupert/manutenzioni/internal/storage"
	"github.com/dukerupert/manutenzioni/internal/store"
)

var ErrRunning = errors.New("a backup is already running")

// Uploader is the subset of storage.Storage used for snapshots.
type Uploader interface {
	Upload(ctx context.Context, bucket storage.Bucket, key, contentType string, data []byte) error
	Remove(ctx context.Context, bucket storage.Bucket, keys ...string) error
}

type Manager struct {
	running    sync.Mutex
	db         *sql.DB
	backups    *store.BackupStore
	blobs      Uploader
	passphrase string
	logger     *slog.Logger
	now        func() time.Time
}

// NewManager returns a Manager. An empty passphrase uploads snapshots
// unencrypted.
func NewManager(db *sql.DB, bs *store.BackupStore, blobs Uploader, passphrase string, logger *slog.Logger) *Manager {
	return &Manager{
		db:         db,
		backups:    bs,
		blobs:      blobs,
		passphrase: passphrase,
		logger:     logger,
		now:        time.Now,
	}
}

func (m *Manager) objectKey() string {
	key := "db/manutenzioni-" + m.now().UTC().Format("20060102T150405Z") + ".db"
	if m.passphrase != "" {
		key += ".enc"
	}
	return key
}

// Run takes a consistent snapshot with VACUUM INTO, encrypts it when a
// passphrase is configured and uploads it to the backups bucket.
func (m *Manager) Run(ctx context.Context) (*model.Backup, error) {
	if !m.running.TryLock() {
		return nil, ErrRunning
	}
	defer m.running.Unlock()

	record, err := m.backups.Create(m.objectKey(), m.passphrase != "")
	if err != nil {
		return nil, err
	}

	size, err := m.snapshot(ctx, record.ObjectKey)
	if err != nil {
		if ferr := m.backups.MarkFailed(record.ID, err.Error()); ferr != nil {
			m.logger.Error("record failed backup", "id", record.ID, "error", ferr)
		}
		m.logger.Error("backup failed", "key", record.ObjectKey, "error", err)
		return nil, err
	}

	if err := m.backups.MarkCompleted(record.ID, size); err != nil {
		return nil, err
	}
	m.logger.Info("backup completed", "key", record.ObjectKey, "size", size)
	return m.backups.GetByID(record.ID)
}

func (m *Manager) snapshot(ctx context.Context, key string) (int64, error) {
	dir, err := os.MkdirTemp("", "manutenzioni-backup-")
	if err != nil {
		return 0, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "snapshot.db")
	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return 0, fmt.Errorf("vacuum into: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read snapshot: %w", err)
	}

	contentType := "application/vnd.sqlite3"
	if m.passphrase != "" {
		if data, err = Encrypt(data, m.passphrase); err != nil {
			return 0, err
		}
		contentType = "application/octet-stream"
	}

	if err := m.blobs.Upload(ctx, storage.BucketBackups, key, contentType, data); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

// Prune deletes snapshots older than keep, both the records and the objects.
func (m *Manager) Prune(ctx context.Context, keep time.Duration) (int, error) {
	keys, err := m.backups.DeleteOlderThan(m.now().Add(-keep))
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := m.blobs.Remove(ctx, storage.BucketBackups, keys...); err != nil {
		return 0, fmt.Errorf("remove old snapshots: %w", err)
	}
	m.logger.Info("pruned backups", "count", len(keys))
	return len(keys), nil
}

package backup

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/manutenzioni/internal/database"
	"github.com/dukerupert/manutenzioni/internal/model"
	"github.com/dukerupert/manutenzioni/internal/storage"
	"github.com/dukerupert/manutenzioni/internal/store"
)

type fakeUploader struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{objects: make(map[string][]byte)}
}

func (f *fakeUploader) Upload(_ context.Context, bucket storage.Bucket, key, _ string, data []byte) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[string(bucket)+"/"+key] = bytes.Clone(data)
	return nil
}

func (f *fakeUploader) Remove(_ context.Context, bucket storage.Bucket, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.objects, string(bucket)+"/"+k)
	}
	return nil
}

func setupManager(t *testing.T, passphrase string) (*Manager, *fakeUploader, *store.BackupStore) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "manutenzioni.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := store.NewHouseStore(db).Create(store.HouseInput{Name: "Villa Rosa"}); err != nil {
		t.Fatalf("create house: %v", err)
	}

	blobs := newFakeUploader()
	bs := store.NewBackupStore(db)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := NewManager(db, bs, blobs, passphrase, logger)
	m.now = func() time.Time { return time.Date(2026, 10, 19, 3, 0, 0, 0, time.UTC) }
	return m, blobs, bs
}

func TestRunPlain(t *testing.T) {
	m, blobs, _ := setupManager(t, "")

	b, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if b.ObjectKey != "db/manutenzioni-20261019T030000Z.db" {
		t.Errorf("key = %q", b.ObjectKey)
	}
	if b.Status != model.BackupStatusCompleted {
		t.Errorf("status = %q, want completed", b.Status)
	}

	data := blobs.objects["backups/"+b.ObjectKey]
	if !bytes.HasPrefix(data, []byte("SQLite format 3\x00")) {
		t.Error("snapshot is not a SQLite database")
	}
	if b.SizeBytes != int64(len(data)) {
		t.Errorf("size = %d, want %d", b.SizeBytes, len(data))
	}
}

func TestRunEncrypted(t *testing.T) {
	m, blobs, _ := setupManager(t, "segreta")

	b, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !b.Encrypted {
		t.Error("expected encrypted backup")
	}
	if filepath.Ext(b.ObjectKey) != ".enc" {
		t.Errorf("key = %q, want .enc suffix", b.ObjectKey)
	}

	plain, err := Decrypt(blobs.objects["backups/"+b.ObjectKey], "segreta")
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.HasPrefix(plain, []byte("SQLite format 3\x00")) {
		t.Error("decrypted snapshot is not a SQLite database")
	}
}

func TestRunUploadFailure(t *testing.T) {
	m, blobs, bs := setupManager(t, "")
	blobs.uploadErr = storage.ErrDisabled

	if _, err := m.Run(context.Background()); !errors.Is(err, storage.ErrDisabled) {
		t.Fatalf("err = %v, want ErrDisabled", err)
	}

	list, err := bs.List(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Status != model.BackupStatusFailed {
		t.Errorf("backups = %+v, want one failed record", list)
	}
}

func TestRunRejectsConcurrent(t *testing.T) {
	m, _, _ := setupManager(t, "")
	m.running.Lock()
	defer m.running.Unlock()

	if _, err := m.Run(context.Background()); !errors.Is(err, ErrRunning) {
		t.Errorf("err = %v, want ErrRunning", err)
	}
}

func TestPrune(t *testing.T) {
	m, blobs, _ := setupManager(t, "")

	b, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	m.now = time.Now
	n, err := m.Prune(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 0 {
		t.Errorf("pruned = %d, want 0 for a fresh backup", n)
	}

	m.now = func() time.Time { return time.Now().Add(72 * time.Hour) }
	n, err = m.Prune(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned = %d, want 1", n)
	}
	if _, ok := blobs.objects["backups/"+b.ObjectKey]; ok {
		t.Error("object should be removed")
	}
}

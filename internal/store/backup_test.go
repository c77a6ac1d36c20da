package store

import (
	"testing"
	"time"

	"github.com/dukerupert/manutenzioni/internal/database"
	"github.com/dukerupert/manutenzioni/internal/model"
)

func setupBackupTestDB(t *testing.T) *BackupStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewBackupStore(db)
}

func TestBackupLifecycle(t *testing.T) {
	bs := setupBackupTestDB(t)

	b, err := bs.Create("db/manutenzioni-20261019T030000Z.db.enc", true)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.Status != model.BackupStatusRunning {
		t.Errorf("status = %q, want running", b.Status)
	}

	if err := bs.MarkCompleted(b.ID, 4096); err != nil {
		t.Fatalf("complete: %v", err)
	}
	got, err := bs.GetByID(b.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.BackupStatusCompleted {
		t.Errorf("status = %q, want completed", got.Status)
	}
	if got.SizeBytes != 4096 {
		t.Errorf("size = %d, want 4096", got.SizeBytes)
	}
	if !got.Encrypted {
		t.Error("expected encrypted flag")
	}
	if got.CompletedAt == nil {
		t.Error("expected completed_at")
	}
}

func TestBackupGetMissing(t *testing.T) {
	bs := setupBackupTestDB(t)
	got, err := bs.GetByID("missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil", got)
	}
}

func TestBackupMarkFailed(t *testing.T) {
	bs := setupBackupTestDB(t)
	b, _ := bs.Create("db/a.db", false)

	if err := bs.MarkFailed(b.ID, "upload refused"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	got, _ := bs.GetByID(b.ID)
	if got.Status != model.BackupStatusFailed {
		t.Errorf("status = %q, want failed", got.Status)
	}
	if got.ErrorMessage != "upload refused" {
		t.Errorf("error = %q, want upload refused", got.ErrorMessage)
	}
}

func TestBackupDeleteOlderThan(t *testing.T) {
	bs := setupBackupTestDB(t)

	old, _ := bs.Create("db/old.db", false)
	bs.MarkCompleted(old.ID, 10)
	failed, _ := bs.Create("db/failed.db", false)
	bs.MarkFailed(failed.ID, "boom")
	if _, err := bs.db.Exec(`UPDATE backups SET created_at = ?`, time.Now().UTC().Add(-48*time.Hour)); err != nil {
		t.Fatalf("age backups: %v", err)
	}
	recent, _ := bs.Create("db/recent.db", false)
	bs.MarkCompleted(recent.ID, 10)

	keys, err := bs.DeleteOlderThan(time.Now().Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("delete older: %v", err)
	}
	if len(keys) != 1 || keys[0] != "db/old.db" {
		t.Errorf("keys = %v, want [db/old.db]", keys)
	}

	list, err := bs.List(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != recent.ID {
		t.Errorf("remaining = %+v, want only the recent backup", list)
	}
}

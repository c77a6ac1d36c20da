package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dukerupert/manutenzioni/internal/database"
	"github.com/dukerupert/manutenzioni/internal/model"
	"github.com/dukerupert/manutenzioni/internal/store"
)

type countingPurger struct {
	calls int
	err   error
}

func (p *countingPurger) DeleteExpired() (int64, error) {
	p.calls++
	return 0, p.err
}

type countingLimiter struct{ calls int }

func (l *countingLimiter) Cleanup() int {
	l.calls++
	return 0
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCleanupRunsBothPurgers(t *testing.T) {
	p := &countingPurger{}
	l := &countingLimiter{}
	s := NewScheduler(p, l, quietLogger())

	s.Cleanup()

	if p.calls != 1 {
		t.Errorf("session purges = %d, want 1", p.calls)
	}
	if l.calls != 1 {
		t.Errorf("limiter cleanups = %d, want 1", l.calls)
	}
}

func TestCleanupSessionErrorDoesNotSkipLimiter(t *testing.T) {
	p := &countingPurger{err: errors.New("database is locked")}
	l := &countingLimiter{}
	s := NewScheduler(p, l, quietLogger())

	s.Cleanup()

	if l.calls != 1 {
		t.Errorf("limiter cleanups = %d, want 1", l.calls)
	}
}

func TestStartRejectsBadSpec(t *testing.T) {
	s := NewScheduler(&countingPurger{}, nil, quietLogger())
	if err := s.Start("every now and then"); err == nil {
		s.Stop()
		t.Fatal("expected error for invalid spec")
	}
}

func TestStartAndStop(t *testing.T) {
	s := NewScheduler(&countingPurger{}, &countingLimiter{}, quietLogger())
	if err := s.Start("@every 1h"); err != nil {
		t.Fatalf("start: %v", err)
	}
	entries := s.cron.Entries()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if next := entries[0].Next; next.Before(time.Now().Add(59 * time.Minute)) {
		t.Errorf("next run = %v, want about an hour from now", next)
	}
	s.Stop()
}

func TestCleanupRemovesExpiredSessions(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	defer db.Close()

	users := store.NewUserStore(db)
	u, err := users.Create("mario@example.com", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	sessions := store.NewSessionStore(db, time.Hour)
	live, err := sessions.Create(u.ID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)`,
		"stale", u.ID, time.Now().Add(-time.Hour).UTC().Truncate(time.Second)); err != nil {
		t.Fatalf("insert stale session: %v", err)
	}

	NewScheduler(sessions, nil, quietLogger()).Cleanup()

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&n); err != nil {
		t.Fatalf("count sessions: %v", err)
	}
	if n != 1 {
		t.Errorf("sessions = %d, want 1", n)
	}
	if got, _ := sessions.GetByToken(live.Token); got == nil {
		t.Error("live session should survive cleanup")
	}
}

type fakeSnapshotter struct {
	runs   int
	prunes int
	keep   time.Duration
	runErr error
}

func (f *fakeSnapshotter) Run(context.Context) (*model.Backup, error) {
	f.runs++
	if f.runErr != nil {
		return nil, f.runErr
	}
	return &model.Backup{Status: model.BackupStatusCompleted}, nil
}

func (f *fakeSnapshotter) Prune(_ context.Context, keep time.Duration) (int, error) {
	f.prunes++
	f.keep = keep
	return 0, nil
}

func TestBackupPrunesAfterRun(t *testing.T) {
	s := NewScheduler(nil, nil, quietLogger())
	b := &fakeSnapshotter{}

	s.Backup(b, 48*time.Hour)

	if b.runs != 1 || b.prunes != 1 {
		t.Errorf("runs = %d, prunes = %d, want 1 and 1", b.runs, b.prunes)
	}
	if b.keep != 48*time.Hour {
		t.Errorf("keep = %v, want 48h", b.keep)
	}
}

func TestBackupFailureSkipsPrune(t *testing.T) {
	s := NewScheduler(nil, nil, quietLogger())
	b := &fakeSnapshotter{runErr: errors.New("upload refused")}

	s.Backup(b, time.Hour)

	if b.prunes != 0 {
		t.Errorf("prunes = %d, want 0", b.prunes)
	}
}

func TestScheduleBackups(t *testing.T) {
	s := NewScheduler(nil, nil, quietLogger())
	if err := s.ScheduleBackups("not a spec", &fakeSnapshotter{}, time.Hour); err == nil {
		t.Error("expected error for invalid spec")
	}
	if err := s.ScheduleBackups("0 3 * * *", &fakeSnapshotter{}, time.Hour); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if n := len(s.cron.Entries()); n != 1 {
		t.Errorf("entries = %d, want 1", n)
	}
}

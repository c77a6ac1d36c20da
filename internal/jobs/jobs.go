// Package jobs runs periodic housekeeping on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/manutenzioni/internal/model"
	"github.com/robfig/cron/v3"
)

const backupTimeout = 10 * time.Minute

// SessionPurger removes expired sessions and reports how many were deleted.
type SessionPurger interface {
	DeleteExpired() (int64, error)
}

// WindowPurger drops stale rate-limit windows.
type WindowPurger interface {
	Cleanup() int
}

// Snapshotter takes and prunes database backups.
type Snapshotter interface {
	Run(ctx context.Context) (*model.Backup, error)
	Prune(ctx context.Context, keep time.Duration) (int, error)
}

type Scheduler struct {
	cron     *cron.Cron
	sessions SessionPurger
	limiter  WindowPurger
	logger   *slog.Logger
	entry    cron.EntryID
}

func NewScheduler(sessions SessionPurger, limiter WindowPurger, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithChain(cron.Recover(cron.DiscardLogger))),
		sessions: sessions,
		limiter:  limiter,
		logger:   logger,
	}
}

// Start schedules the cleanup with the given spec (standard five-field cron
// or a descriptor such as "@every 1h") and starts the scheduler.
func (s *Scheduler) Start(spec string) error {
	id, err := s.cron.AddFunc(spec, s.Cleanup)
	if err != nil {
		return fmt.Errorf("schedule cleanup %q: %w", spec, err)
	}
	s.entry = id
	s.cron.Start()
	s.logger.Info("housekeeping scheduled", "spec", spec)
	return nil
}

// Stop halts the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Cleanup runs one housekeeping pass.
func (s *Scheduler) Cleanup() {
	if s.sessions != nil {
		if n, err := s.sessions.DeleteExpired(); err != nil {
			s.logger.Error("cleanup expired sessions", "error", err)
		} else if n > 0 {
			s.logger.Info("cleaned up expired sessions", "count", n)
		}
	}
	if s.limiter != nil {
		if n := s.limiter.Cleanup(); n > 0 {
			s.logger.Debug("cleaned up rate limit windows", "count", n)
		}
	}
}

// ScheduleBackups adds a backup job followed by pruning of snapshots older
// than keep. It may be called before or after Start.
func (s *Scheduler) ScheduleBackups(spec string, b Snapshotter, keep time.Duration) error {
	_, err := s.cron.AddFunc(spec, func() { s.Backup(b, keep) })
	if err != nil {
		return fmt.Errorf("schedule backups %q: %w", spec, err)
	}
	s.logger.Info("backups scheduled", "spec", spec, "retention", keep)
	return nil
}

// Backup runs one backup and prune pass.
func (s *Scheduler) Backup(b Snapshotter, keep time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), backupTimeout)
	defer cancel()

	if _, err := b.Run(ctx); err != nil {
		s.logger.Error("scheduled backup", "error", err)
		return
	}
	if _, err := b.Prune(ctx, keep); err != nil {
		s.logger.Error("prune backups", "error", err)
	}
}

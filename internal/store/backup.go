package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/manutenzioni/internal/model"
)

type BackupStore struct {
	db *sql.DB
}

func NewBackupStore(db *sql.DB) *BackupStore {
	return &BackupStore{db: db}
}

func scanBackup(scanner interface{ Scan(...any) error }) (*model.Backup, error) {
	var b model.Backup
	var errMsg sql.NullString
	var completedAt sql.NullTime
	if err := scanner.Scan(&b.ID, &b.ObjectKey, &b.Encrypted, &b.SizeBytes, &b.Status, &errMsg, &b.CreatedAt, &completedAt); err != nil {
		return nil, err
	}
	b.ErrorMessage = errMsg.String
	b.CompletedAt = timePtr(completedAt)
	return &b, nil
}

const backupCols = `id, object_key, encrypted, size_bytes, status, error_message, created_at, completed_at`

// Create records a snapshot that is about to be uploaded.
func (s *BackupStore) Create(objectKey string, encrypted bool) (*model.Backup, error) {
	b := &model.Backup{
		ID:        newID(),
		ObjectKey: objectKey,
		Encrypted: encrypted,
		Status:    model.BackupStatusRunning,
		CreatedAt: utc(time.Now()),
	}
	_, err := s.db.Exec(
		`INSERT INTO backups (id, object_key, encrypted, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		b.ID, b.ObjectKey, b.Encrypted, b.Status, b.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create backup: %w", err)
	}
	return b, nil
}

func (s *BackupStore) GetByID(id string) (*model.Backup, error) {
	b, err := scanBackup(s.db.QueryRow(`SELECT `+backupCols+` FROM backups WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get backup %s: %w", id, err)
	}
	return b, nil
}

// List returns the most recent backups first.
func (s *BackupStore) List(limit int) ([]model.Backup, error) {
	rows, err := s.db.Query(`SELECT `+backupCols+` FROM backups ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	defer rows.Close()

	var backups []model.Backup
	for rows.Next() {
		b, err := scanBackup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backup: %w", err)
		}
		backups = append(backups, *b)
	}
	return backups, rows.Err()
}

func (s *BackupStore) MarkCompleted(id string, sizeBytes int64) error {
	_, err := s.db.Exec(
		`UPDATE backups SET status = ?, size_bytes = ?, completed_at = ?, error_message = NULL WHERE id = ?`,
		model.BackupStatusCompleted, sizeBytes, utc(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("complete backup: %w", err)
	}
	return nil
}

func (s *BackupStore) MarkFailed(id, reason string) error {
	_, err := s.db.Exec(
		`UPDATE backups SET status = ?, error_message = ? WHERE id = ?`,
		model.BackupStatusFailed, reason, id,
	)
	if err != nil {
		return fmt.Errorf("fail backup: %w", err)
	}
	return nil
}

// DeleteOlderThan removes backups created before the given time and returns
// the object keys of the removed completed snapshots.
func (s *BackupStore) DeleteOlderThan(before time.Time) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT object_key FROM backups WHERE created_at < ? AND status = ?`,
		utc(before), model.BackupStatusCompleted,
	)
	if err != nil {
		return nil, fmt.Errorf("select old backups: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan object key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := s.db.Exec(`DELETE FROM backups WHERE created_at < ?`, utc(before)); err != nil {
		return nil, fmt.Errorf("delete old backups: %w", err)
	}
	return keys, nil
}

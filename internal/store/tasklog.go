package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/manutenzioni/internal/model"
)

type TaskLogStore struct {
	db *sql.DB
}

func NewTaskLogStore(db *sql.DB) *TaskLogStore {
	return &TaskLogStore{db: db}
}

func scanTaskLog(scanner interface{ Scan(...any) error }) (*model.TaskLog, error) {
	var l model.TaskLog
	var taskID, actor sql.NullString
	if err := scanner.Scan(&l.ID, &taskID, &l.Action, &actor, &l.Timestamp); err != nil {
		return nil, err
	}
	l.TaskID = stringPtr(taskID)
	l.ActorID = actor.String
	return &l, nil
}

const taskLogCols = `id, task_id, azione, utente_id, timestamp`

// Append records an action on a task. Rows are never updated.
func (s *TaskLogStore) Append(taskID string, action model.TaskAction, actorID string) (*model.TaskLog, error) {
	result, err := s.db.Exec(
		`INSERT INTO task_logs (task_id, azione, utente_id, timestamp) VALUES (?, ?, ?, ?)`,
		taskID, action, nullString(&actorID), utc(time.Now()),
	)
	if err != nil {
		return nil, fmt.Errorf("insert task log: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+taskLogCols+` FROM task_logs WHERE id = ?`, id)
	return scanTaskLog(row)
}

// ListByTask returns the task's log in chronological order.
func (s *TaskLogStore) ListByTask(taskID string) ([]model.TaskLog, error) {
	return s.query(`SELECT `+taskLogCols+` FROM task_logs WHERE task_id = ? ORDER BY id ASC`, taskID)
}

// ListOrphaned returns entries whose task has been deleted.
func (s *TaskLogStore) ListOrphaned() ([]model.TaskLog, error) {
	return s.query(`SELECT ` + taskLogCols + ` FROM task_logs WHERE task_id IS NULL ORDER BY id ASC`)
}

func (s *TaskLogStore) query(q string, args ...any) ([]model.TaskLog, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list task logs: %w", err)
	}
	defer rows.Close()

	var logs []model.TaskLog
	for rows.Next() {
		l, err := scanTaskLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task log: %w", err)
		}
		logs = append(logs, *l)
	}
	return logs, rows.Err()
}

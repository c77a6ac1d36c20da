package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/manutenzioni/internal/model"
	"github.com/shopspring/decimal"
)

type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

// TaskInput carries the editable fields of a task. Status and CompletedAt
// are only honoured by Create and CreateBatch.
type TaskInput struct {
	Target      model.Target
	Description string
	Notes       *string
	Priority    model.Priority
	ReportedBy  string
	Operator    *string
	Cost        *decimal.Decimal
	Status      model.Status
	CompletedAt *time.Time
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	Statuses      []model.Status
	HouseID       string
	VehicleID     string
	Priority      model.Priority
	Search        string
	CompletedFrom *time.Time
	CompletedTo   *time.Time
}

func scanTask(scanner interface{ Scan(...any) error }, extra ...any) (*model.Task, error) {
	var t model.Task
	var houseID, vehicleID, notes, operator sql.NullString
	var cost decimal.NullDecimal
	var completedAt sql.NullTime

	dest := []any{
		&t.ID, &t.Target.Kind, &houseID, &vehicleID, &t.Description, &notes,
		&t.Priority, &t.ReportedBy, &operator, &cost, &t.Status,
		&t.CreatedAt, &completedAt,
	}
	if err := scanner.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	if t.Target.Kind == model.TargetVehicle {
		t.Target.ID = vehicleID.String
	} else {
		t.Target.ID = houseID.String
	}
	t.Notes = stringPtr(notes)
	t.Operator = stringPtr(operator)
	if cost.Valid {
		c := cost.Decimal
		t.Cost = &c
	}
	t.CompletedAt = timePtr(completedAt)
	return &t, nil
}

func scanTaskDetail(scanner interface{ Scan(...any) error }) (*model.TaskDetail, error) {
	var d model.TaskDetail
	t, err := scanTask(scanner, &d.TargetName, &d.TargetSubtext)
	if err != nil {
		return nil, err
	}
	d.Task = *t
	return &d, nil
}

const taskCols = `id, target_kind, house_id, vehicle_id, descrizione, note, priorita, rilevato_da,
	operatore, costo_manutenzione, stato, data_creazione, data_completamento`

const taskDetailSelect = `SELECT t.id, t.target_kind, t.house_id, t.vehicle_id, t.descrizione, t.note,
	t.priorita, t.rilevato_da, t.operatore, t.costo_manutenzione, t.stato, t.data_creazione,
	t.data_completamento, COALESCE(h.nome, v.nome, ''), COALESCE(h.indirizzo, v.tipo, '')
	FROM tasks t
	LEFT JOIN houses h ON h.id = t.house_id
	LEFT JOIN vehicles v ON v.id = t.vehicle_id`

func costValue(c *decimal.Decimal) any {
	if c == nil {
		return nil
	}
	return c.String()
}

func completedValue(t *time.Time) any {
	if t == nil {
		return nil
	}
	return utc(*t)
}

func nullID(id string) any {
	if id == "" {
		return nil
	}
	return id
}

func (in TaskInput) normalised() (TaskInput, error) {
	if err := in.Target.Validate(); err != nil {
		return in, err
	}
	if in.Priority == "" {
		in.Priority = model.PriorityMedium
	}
	if in.Status == "" {
		in.Status = model.StatusPending
	}
	if in.Status == model.StatusPending {
		in.CompletedAt = nil
	}
	return in, nil
}

const insertTask = `INSERT INTO tasks (id, target_kind, house_id, vehicle_id, descrizione, note, priorita,
	rilevato_da, operatore, costo_manutenzione, stato, data_creazione, data_completamento)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func insertArgs(id string, in TaskInput, now time.Time) []any {
	return []any{
		id, in.Target.Kind, nullID(in.Target.HouseID()), nullID(in.Target.VehicleID()),
		in.Description, nullString(in.Notes), in.Priority, in.ReportedBy,
		nullString(in.Operator), costValue(in.Cost), in.Status, now, completedValue(in.CompletedAt),
	}
}

func (s *TaskStore) Create(in TaskInput) (*model.Task, error) {
	in, err := in.normalised()
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	id := newID()
	if _, err := s.db.Exec(insertTask, insertArgs(id, in, utc(time.Now()))...); err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return s.GetByID(id)
}

// CreateBatch inserts all tasks in one transaction; any failure inserts none.
func (s *TaskStore) CreateBatch(inputs []TaskInput) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(insertTask)
	if err != nil {
		return 0, fmt.Errorf("prepare insert task: %w", err)
	}
	defer stmt.Close()

	now := utc(time.Now())
	for i, in := range inputs {
		in, err := in.normalised()
		if err != nil {
			return 0, fmt.Errorf("insert task %d: %w", i, err)
		}
		if _, err := stmt.Exec(insertArgs(newID(), in, now)...); err != nil {
			return 0, fmt.Errorf("insert task %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tasks: %w", err)
	}
	return len(inputs), nil
}

func (s *TaskStore) GetByID(id string) (*model.Task, error) {
	row := s.db.QueryRow(`SELECT `+taskCols+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (s *TaskStore) GetDetail(id string) (*model.TaskDetail, error) {
	row := s.db.QueryRow(taskDetailSelect+` WHERE t.id = ?`, id)
	d, err := scanTaskDetail(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task detail: %w", err)
	}
	return d, nil
}

// List returns tasks matching f, most recent first: completed tasks by
// completion time, pending ones by creation time.
func (s *TaskStore) List(f Filter) ([]model.TaskDetail, error) {
	var where []string
	var args []any

	if len(f.Statuses) > 0 {
		marks := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			marks[i] = "?"
			args = append(args, st)
		}
		where = append(where, "t.stato IN ("+strings.Join(marks, ", ")+")")
	}
	if f.HouseID != "" {
		where = append(where, "t.house_id = ?")
		args = append(args, f.HouseID)
	}
	if f.VehicleID != "" {
		where = append(where, "t.vehicle_id = ?")
		args = append(args, f.VehicleID)
	}
	if f.Priority != "" {
		where = append(where, "t.priorita = ?")
		args = append(args, f.Priority)
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
		where = append(where, `(lower(t.descrizione) LIKE ? ESCAPE '\'
			OR lower(COALESCE(h.nome, v.nome, '')) LIKE ? ESCAPE '\'
			OR lower(COALESCE(t.operatore, '')) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern)
	}
	if f.CompletedFrom != nil {
		where = append(where, "t.data_completamento >= ?")
		args = append(args, utc(*f.CompletedFrom))
	}
	if f.CompletedTo != nil {
		where = append(where, "t.data_completamento <= ?")
		args = append(args, utc(*f.CompletedTo))
	}

	q := taskDetailSelect
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY COALESCE(t.data_completamento, t.data_creazione) DESC, t.id ASC"

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.TaskDetail
	for rows.Next() {
		d, err := scanTaskDetail(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *d)
	}
	return tasks, rows.Err()
}

// ListCompletedBetween returns every task completed within [from, to],
// archived ones included, newest completion first.
func (s *TaskStore) ListCompletedBetween(from, to time.Time) ([]model.TaskDetail, error) {
	return s.List(Filter{
		Statuses:      []model.Status{model.StatusCompleted, model.StatusArchived},
		CompletedFrom: &from,
		CompletedTo:   &to,
	})
}

// Update rewrites the editable fields; status and timestamps are untouched.
func (s *TaskStore) Update(id string, in TaskInput) (*model.Task, error) {
	if err := in.Target.Validate(); err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	if in.Priority == "" {
		in.Priority = model.PriorityMedium
	}
	_, err := s.db.Exec(
		`UPDATE tasks SET target_kind = ?, house_id = ?, vehicle_id = ?, descrizione = ?, note = ?,
		 priorita = ?, rilevato_da = ?, operatore = ?, costo_manutenzione = ? WHERE id = ?`,
		in.Target.Kind, nullID(in.Target.HouseID()), nullID(in.Target.VehicleID()), in.Description,
		nullString(in.Notes), in.Priority, in.ReportedBy, nullString(in.Operator), costValue(in.Cost), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return s.GetByID(id)
}

// UpdateStatus sets status and completion time together.
func (s *TaskStore) UpdateStatus(id string, status model.Status, completedAt *time.Time) (*model.Task, error) {
	_, err := s.db.Exec(
		`UPDATE tasks SET stato = ?, data_completamento = ? WHERE id = ?`,
		status, completedValue(completedAt), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update task status: %w", err)
	}
	return s.GetByID(id)
}

func (s *TaskStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// CountByStatus returns the number of tasks per status. Statuses with no
// tasks are present with a zero count.
func (s *TaskStore) CountByStatus() (map[model.Status]int, error) {
	counts := map[model.Status]int{
		model.StatusPending:   0,
		model.StatusCompleted: 0,
		model.StatusArchived:  0,
	}
	rows, err := s.db.Query(`SELECT stato, COUNT(*) FROM tasks GROUP BY stato`)
	if err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var st model.Status
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, fmt.Errorf("scan task count: %w", err)
		}
		counts[st] = n
	}
	return counts, rows.Err()
}

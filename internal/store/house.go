package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/manutenzioni/internal/model"
)

type HouseStore struct {
	db *sql.DB
}

func NewHouseStore(db *sql.DB) *HouseStore {
	return &HouseStore{db: db}
}

func scanHouse(scanner interface{ Scan(...any) error }) (*model.House, error) {
	var h model.House
	var address, notes sql.NullString
	err := scanner.Scan(&h.ID, &h.Name, &address, &notes, &h.CreatedAt)
	if err != nil {
		return nil, err
	}
	h.Address = stringPtr(address)
	h.Notes = stringPtr(notes)
	return &h, nil
}

const houseCols = `id, nome, indirizzo, note, created_at`

// HouseInput is the writable part of a house.
type HouseInput struct {
	Name    string
	Address *string
	Notes   *string
}

func (s *HouseStore) Create(in HouseInput) (*model.House, error) {
	id := newID()
	_, err := s.db.Exec(
		`INSERT INTO houses (id, nome, indirizzo, note, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, in.Name, nullString(in.Address), nullString(in.Notes), utc(time.Now()),
	)
	if err != nil {
		return nil, fmt.Errorf("insert house: %w", err)
	}
	return s.GetByID(id)
}

// CreateBatch inserts all houses in one transaction; any failure inserts none.
func (s *HouseStore) CreateBatch(inputs []HouseInput) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO houses (id, nome, indirizzo, note, created_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert house: %w", err)
	}
	defer stmt.Close()

	now := utc(time.Now())
	for _, in := range inputs {
		if _, err := stmt.Exec(newID(), in.Name, nullString(in.Address), nullString(in.Notes), now); err != nil {
			return 0, fmt.Errorf("insert house %q: %w", in.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit houses: %w", err)
	}
	return len(inputs), nil
}

func (s *HouseStore) GetByID(id string) (*model.House, error) {
	row := s.db.QueryRow(`SELECT `+houseCols+` FROM houses WHERE id = ?`, id)
	h, err := scanHouse(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get house: %w", err)
	}
	return h, nil
}

func (s *HouseStore) List() ([]model.House, error) {
	return s.query(`SELECT ` + houseCols + ` FROM houses ORDER BY nome COLLATE NOCASE ASC`)
}

// Search matches the query case-insensitively against name or address.
// An empty query lists every house.
func (s *HouseStore) Search(q string) ([]model.House, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return s.List()
	}
	pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
	return s.query(
		`SELECT `+houseCols+` FROM houses
		 WHERE lower(nome) LIKE ? ESCAPE '\' OR lower(COALESCE(indirizzo, '')) LIKE ? ESCAPE '\'
		 ORDER BY nome COLLATE NOCASE ASC`,
		pattern, pattern,
	)
}

func (s *HouseStore) query(q string, args ...any) ([]model.House, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list houses: %w", err)
	}
	defer rows.Close()

	var houses []model.House
	for rows.Next() {
		h, err := scanHouse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan house: %w", err)
		}
		houses = append(houses, *h)
	}
	return houses, rows.Err()
}

// NameIndex maps each house name to its id. With duplicate names the
// oldest house wins.
func (s *HouseStore) NameIndex() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT id, nome FROM houses ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list house names: %w", err)
	}
	defer rows.Close()

	index := make(map[string]string)
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan house name: %w", err)
		}
		index[name] = id
	}
	return index, rows.Err()
}

func (s *HouseStore) Update(id string, in HouseInput) (*model.House, error) {
	_, err := s.db.Exec(
		`UPDATE houses SET nome = ?, indirizzo = ?, note = ? WHERE id = ?`,
		in.Name, nullString(in.Address), nullString(in.Notes), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update house: %w", err)
	}
	return s.GetByID(id)
}

func (s *HouseStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM houses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete house: %w", err)
	}
	return nil
}

func (s *HouseStore) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM houses`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count houses: %w", err)
	}
	return n, nil
}

// CountTasks returns how many tasks reference the house.
func (s *HouseStore) CountTasks(id string) (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM tasks WHERE house_id = ?`, id).Scan(&n); err != nil {
		return 0, fmt.Errorf("count house tasks: %w", err)
	}
	return n, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/manutenzioni/internal/model"
)

type VehicleStore struct {
	db *sql.DB
}

func NewVehicleStore(db *sql.DB) *VehicleStore {
	return &VehicleStore{db: db}
}

func scanVehicle(scanner interface{ Scan(...any) error }) (*model.Vehicle, error) {
	var v model.Vehicle
	var kind sql.NullString
	if err := scanner.Scan(&v.ID, &v.Name, &kind, &v.CreatedAt); err != nil {
		return nil, err
	}
	v.Type = stringPtr(kind)
	return &v, nil
}

const vehicleCols = `id, nome, tipo, created_at`

func (s *VehicleStore) Create(name string, kind *string) (*model.Vehicle, error) {
	id := newID()
	_, err := s.db.Exec(
		`INSERT INTO vehicles (id, nome, tipo, created_at) VALUES (?, ?, ?, ?)`,
		id, name, nullString(kind), utc(time.Now()),
	)
	if err != nil {
		return nil, fmt.Errorf("insert vehicle: %w", err)
	}
	return s.GetByID(id)
}

func (s *VehicleStore) GetByID(id string) (*model.Vehicle, error) {
	row := s.db.QueryRow(`SELECT `+vehicleCols+` FROM vehicles WHERE id = ?`, id)
	v, err := scanVehicle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get vehicle: %w", err)
	}
	return v, nil
}

func (s *VehicleStore) List() ([]model.Vehicle, error) {
	rows, err := s.db.Query(`SELECT ` + vehicleCols + ` FROM vehicles ORDER BY nome COLLATE NOCASE ASC`)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	defer rows.Close()

	var vehicles []model.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vehicle: %w", err)
		}
		vehicles = append(vehicles, *v)
	}
	return vehicles, rows.Err()
}

func (s *VehicleStore) Update(id, name string, kind *string) (*model.Vehicle, error) {
	_, err := s.db.Exec(`UPDATE vehicles SET nome = ?, tipo = ? WHERE id = ?`, name, nullString(kind), id)
	if err != nil {
		return nil, fmt.Errorf("update vehicle: %w", err)
	}
	return s.GetByID(id)
}

func (s *VehicleStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM vehicles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete vehicle: %w", err)
	}
	return nil
}

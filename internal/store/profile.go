package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/manutenzioni/internal/model"
)

type ProfileStore struct {
	db *sql.DB
}

func NewProfileStore(db *sql.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

func scanProfile(scanner interface{ Scan(...any) error }) (*model.Profile, error) {
	var p model.Profile
	var name, surname, avatar sql.NullString
	err := scanner.Scan(&p.ID, &p.Email, &name, &surname, &avatar, &p.Role, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Name = stringPtr(name)
	p.Surname = stringPtr(surname)
	p.AvatarURL = stringPtr(avatar)
	return &p, nil
}

const profileCols = `id, email, nome, cognome, avatar_url, ruolo, created_at, updated_at`

func (s *ProfileStore) GetByID(id string) (*model.Profile, error) {
	row := s.db.QueryRow(`SELECT `+profileCols+` FROM profiles WHERE id = ?`, id)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (s *ProfileStore) Create(id, email, role string) (*model.Profile, error) {
	if role == "" {
		role = model.RoleUser
	}
	_, err := s.db.Exec(`INSERT INTO profiles (id, email, ruolo) VALUES (?, ?, ?)`, id, email, role)
	if err != nil {
		return nil, fmt.Errorf("insert profile: %w", err)
	}
	return s.GetByID(id)
}

// GetOrCreate returns the profile for the user, creating a default one on
// first access.
func (s *ProfileStore) GetOrCreate(id, email string) (*model.Profile, error) {
	_, err := s.db.Exec(
		`INSERT INTO profiles (id, email, ruolo) VALUES (?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		id, email, model.RoleUser,
	)
	if err != nil {
		return nil, fmt.Errorf("ensure profile: %w", err)
	}
	return s.GetByID(id)
}

func (s *ProfileStore) Update(id string, name, surname *string) (*model.Profile, error) {
	_, err := s.db.Exec(
		`UPDATE profiles SET nome = ?, cognome = ? WHERE id = ?`,
		nullString(name), nullString(surname), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return s.GetByID(id)
}

func (s *ProfileStore) SetAvatarURL(id, url string) error {
	_, err := s.db.Exec(`UPDATE profiles SET avatar_url = ? WHERE id = ?`, url, id)
	if err != nil {
		return fmt.Errorf("set avatar url: %w", err)
	}
	return nil
}

// List returns all profiles ordered by name then surname.
func (s *ProfileStore) List() ([]model.Profile, error) {
	rows, err := s.db.Query(
		`SELECT ` + profileCols + ` FROM profiles
		 ORDER BY COALESCE(nome, '') COLLATE NOCASE, COALESCE(cognome, '') COLLATE NOCASE, email`,
	)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []model.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}

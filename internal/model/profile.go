package model

import (
	"strings"
	"time"
)

const RoleUser = "user"

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      *string   `json:"nome"`
	Surname   *string   `json:"cognome"`
	AvatarURL *string   `json:"avatar_url"`
	Role      string    `json:"ruolo"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayName is "nome cognome", falling back to the email.
func (p Profile) DisplayName() string {
	var parts []string
	if p.Name != nil {
		parts = append(parts, *p.Name)
	}
	if p.Surname != nil {
		parts = append(parts, *p.Surname)
	}
	if full := strings.TrimSpace(strings.Join(parts, " ")); full != "" {
		return full
	}
	return p.Email
}

// Initials mirrors the avatar fallback: first letters of name and surname,
// else the first letter of the email, else "U".
func (p Profile) Initials() string {
	var b strings.Builder
	for _, s := range []*string{p.Name, p.Surname} {
		if s != nil {
			if r := []rune(strings.TrimSpace(*s)); len(r) > 0 {
				b.WriteRune(r[0])
			}
		}
	}
	if b.Len() == 0 && p.Email != "" {
		b.WriteRune([]rune(p.Email)[0])
	}
	if b.Len() == 0 {
		return "U"
	}
	return strings.ToUpper(b.String())
}

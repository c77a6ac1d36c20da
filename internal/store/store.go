package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// utc normalises a timestamp before it is written so stored values compare
// lexicographically.
func utc(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func newID() string {
	return uuid.NewString()
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

package model

import "time"

type House struct {
	ID        string    `json:"id"`
	Name      string    `json:"nome"`
	Address   *string   `json:"indirizzo"`
	Notes     *string   `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

type Vehicle struct {
	ID        string    `json:"id"`
	Name      string    `json:"nome"`
	Type      *string   `json:"tipo"`
	CreatedAt time.Time `json:"created_at"`
}

package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Priority string

const (
	PriorityLow    Priority = "bassa"
	PriorityMedium Priority = "media"
	PriorityHigh   Priority = "alta"
)

// ParsePriority accepts the stored values case-insensitively. Empty input
// yields the default, media.
func ParsePriority(s string) (Priority, error) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PriorityMedium, nil
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p, nil
	default:
		return "", fmt.Errorf("invalid priority %q", s)
	}
}

type Status string

const (
	StatusPending   Status = "da_fare"
	StatusCompleted Status = "completata"
	StatusArchived  Status = "archiviata"
)

// ParseStatus accepts the stored values case-insensitively. Empty input
// yields the default, da_fare.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case "":
		return StatusPending, nil
	case StatusPending, StatusCompleted, StatusArchived:
		return st, nil
	default:
		return "", fmt.Errorf("invalid status %q", s)
	}
}

type TargetKind string

const (
	TargetHouse   TargetKind = "casa"
	TargetVehicle TargetKind = "mezzo"
)

// Target is what a task is about: exactly one house or one vehicle.
type Target struct {
	Kind TargetKind `json:"tipo_manutenzione"`
	ID   string     `json:"target_id"`
}

func HouseTarget(houseID string) Target     { return Target{Kind: TargetHouse, ID: houseID} }
func VehicleTarget(vehicleID string) Target { return Target{Kind: TargetVehicle, ID: vehicleID} }

var ErrInvalidTarget = errors.New("task target must be exactly one house or one vehicle")

func (t Target) Validate() error {
	if t.ID == "" {
		return ErrInvalidTarget
	}
	switch t.Kind {
	case TargetHouse, TargetVehicle:
		return nil
	default:
		return ErrInvalidTarget
	}
}

// HouseID returns the id when the target is a house, "" otherwise.
func (t Target) HouseID() string {
	if t.Kind == TargetHouse {
		return t.ID
	}
	return ""
}

// VehicleID returns the id when the target is a vehicle, "" otherwise.
func (t Target) VehicleID() string {
	if t.Kind == TargetVehicle {
		return t.ID
	}
	return ""
}

type Task struct {
	ID          string           `json:"id"`
	Target      Target           `json:"target"`
	Description string           `json:"descrizione"`
	Notes       *string          `json:"note"`
	Priority    Priority         `json:"priorita"`
	ReportedBy  string           `json:"rilevato_da"`
	Operator    *string          `json:"operatore"`
	Cost        *decimal.Decimal `json:"costo_manutenzione"`
	Status      Status           `json:"stato"`
	CreatedAt   time.Time        `json:"data_creazione"`
	CompletedAt *time.Time       `json:"data_completamento"`
}

// TaskDetail is a task joined with its target's display fields.
type TaskDetail struct {
	Task
	TargetName    string `json:"target_nome"`
	TargetSubtext string `json:"target_dettaglio"`
}

type TaskImage struct {
	ID            string    `json:"id"`
	TaskID        string    `json:"task_id"`
	StoragePath   string    `json:"storage_path"`
	ThumbnailPath *string   `json:"thumbnail_path"`
	FileName      string    `json:"file_name"`
	FileSize      int64     `json:"file_size"`
	MimeType      string    `json:"mime_type"`
	UploadedBy    string    `json:"uploaded_by"`
	CreatedAt     time.Time `json:"created_at"`
}

// StorageKeys returns every object key owned by the image.
func (i TaskImage) StorageKeys() []string {
	keys := []string{i.StoragePath}
	if i.ThumbnailPath != nil && *i.ThumbnailPath != "" {
		keys = append(keys, *i.ThumbnailPath)
	}
	return keys
}

type TaskAction string

const (
	ActionCreated   TaskAction = "creata"
	ActionCompleted TaskAction = "completata"
	ActionRestored  TaskAction = "ripristinata"
	ActionArchived  TaskAction = "archiviata"
	ActionDeleted   TaskAction = "eliminata"
)

type TaskLog struct {
	ID        int64      `json:"id"`
	TaskID    *string    `json:"task_id"`
	Action    TaskAction `json:"azione"`
	ActorID   string     `json:"utente_id"`
	Timestamp time.Time  `json:"timestamp"`
}

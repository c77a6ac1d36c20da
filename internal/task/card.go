package task

import (
	"strings"
	"time"

	"github.com/dukerupert/manutenzioni/internal/cost"
	"github.com/dukerupert/manutenzioni/internal/locale"
	"github.com/dukerupert/manutenzioni/internal/model"
)

// Capability is a set of actions a card offers.
type Capability uint8

const (
	CapEdit Capability = 1 << iota
	CapComplete
	CapRestore
	CapArchive
	CapDelete
	CapImages

	CapAll = CapEdit | CapComplete | CapRestore | CapArchive | CapDelete | CapImages
)

func (c Capability) Has(o Capability) bool { return c&o == o }

// Names lists the capabilities in c, in declaration order.
func (c Capability) Names() []string {
	names := []string{}
	for _, n := range []struct {
		cap  Capability
		name string
	}{
		{CapEdit, "edit"},
		{CapComplete, "complete"},
		{CapRestore, "restore"},
		{CapArchive, "archive"},
		{CapDelete, "delete"},
		{CapImages, "images"},
	} {
		if c.Has(n.cap) {
			names = append(names, n.name)
		}
	}
	return names
}

// CapabilitiesFor returns what a task in status s permits.
func CapabilitiesFor(s model.Status) Capability {
	switch s {
	case model.StatusPending:
		return CapEdit | CapComplete | CapDelete | CapImages
	case model.StatusCompleted:
		return CapEdit | CapRestore | CapArchive | CapDelete | CapImages
	case model.StatusArchived:
		return CapDelete
	default:
		return 0
	}
}

// Card is a task with every display field derived.
type Card struct {
	ID            string   `json:"id"`
	Description   string   `json:"descrizione"`
	Notes         string   `json:"note,omitempty"`
	Kind          string   `json:"tipo_manutenzione"`
	LocationName  string   `json:"location_nome"`
	LocationSub   string   `json:"location_dettaglio,omitempty"`
	Priority      string   `json:"priorita"`
	PriorityLabel string   `json:"priorita_label"`
	PriorityColor string   `json:"priorita_colore"`
	BadgeVariant  string   `json:"badge_variant"`
	Status        string   `json:"stato"`
	StatusLabel   string   `json:"stato_label"`
	ReportedBy    string   `json:"rilevato_da"`
	Operator      string   `json:"operatore"`
	CreatedAt     string   `json:"data_creazione"`
	CompletedAt   string   `json:"data_completamento"`
	Cost          string   `json:"costo,omitempty"`
	CostNet       string   `json:"costo_senza_iva,omitempty"`
	Actions       []string `json:"azioni"`
}

func PriorityColor(p model.Priority) string {
	switch p {
	case model.PriorityHigh:
		return "red"
	case model.PriorityMedium:
		return "yellow"
	case model.PriorityLow:
		return "green"
	default:
		return "gray"
	}
}

func BadgeVariant(p model.Priority) string {
	switch p {
	case model.PriorityHigh:
		return "destructive"
	case model.PriorityMedium:
		return "secondary"
	case model.PriorityLow:
		return "default"
	default:
		return "outline"
	}
}

func StatusLabel(s model.Status) string {
	switch s {
	case model.StatusPending:
		return "Da fare"
	case model.StatusCompleted:
		return "Completata"
	case model.StatusArchived:
		return "Archiviata"
	default:
		return string(s)
	}
}

// Present derives a card from d. caps is intersected with what the
// task's status allows.
func Present(d model.TaskDetail, caps Capability, loc *time.Location) Card {
	c := Card{
		ID:            d.ID,
		Description:   d.Description,
		Kind:          string(d.Target.Kind),
		LocationName:  d.TargetName,
		LocationSub:   d.TargetSubtext,
		Priority:      string(d.Priority),
		PriorityLabel: strings.ToUpper(string(d.Priority)),
		PriorityColor: PriorityColor(d.Priority),
		BadgeVariant:  BadgeVariant(d.Priority),
		Status:        string(d.Status),
		StatusLabel:   StatusLabel(d.Status),
		ReportedBy:    d.ReportedBy,
		Operator:      locale.NotAvailable,
		CreatedAt:     locale.ShortDateTime(d.CreatedAt, loc),
		CompletedAt:   locale.ShortDateTimeOrNA(d.CompletedAt, loc),
		Actions:       (caps & CapabilitiesFor(d.Status)).Names(),
	}
	if d.Notes != nil {
		c.Notes = *d.Notes
	}
	if d.Operator != nil && *d.Operator != "" {
		c.Operator = *d.Operator
	}
	if d.Cost != nil {
		c.Cost = cost.Euro(*d.Cost)
		c.CostNet = cost.Euro(cost.NetOf(*d.Cost))
	}
	return c
}

// PresentAll applies Present to every task.
func PresentAll(tasks []model.TaskDetail, caps Capability, loc *time.Location) []Card {
	cards := make([]Card, len(tasks))
	for i, d := range tasks {
		cards[i] = Present(d, caps, loc)
	}
	return cards
}

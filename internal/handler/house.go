package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/manutenzioni/internal/model"
	"github.com/dukerupert/manutenzioni/internal/store"
	"github.com/dukerupert/manutenzioni/internal/task"
)

type HouseHandler struct {
	houseStore *store.HouseStore
	hub        task.Broadcaster
	logger     *slog.Logger
}

func NewHouseHandler(hs *store.HouseStore, hub task.Broadcaster, logger *slog.Logger) *HouseHandler {
	return &HouseHandler{houseStore: hs, hub: hub, logger: logger}
}

type houseRequest struct {
	Name    string  `json:"nome" validate:"required,max=200"`
	Address *string `json:"indirizzo" validate:"omitempty,max=500"`
	Notes   *string `json:"note"`
}

func (req houseRequest) input() store.HouseInput {
	return store.HouseInput{
		Name:    strings.TrimSpace(req.Name),
		Address: optional(req.Address),
		Notes:   optional(req.Notes),
	}
}

// List returns every house by name, or the matches for ?q=.
func (h *HouseHandler) List(w http.ResponseWriter, r *http.Request) {
	houses, err := h.houseStore.Search(r.URL.Query().Get("q"))
	if err != nil {
		fail(w, h.logger, err, "failed to list houses")
		return
	}
	if houses == nil {
		houses = []model.House{}
	}
	writeJSON(w, http.StatusOK, houses)
}

func (h *HouseHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	house, err := h.houseStore.GetByID(id)
	if err != nil {
		fail(w, h.logger, err, "failed to get house")
		return
	}
	if house == nil {
		writeError(w, http.StatusNotFound, "house not found")
		return
	}
	writeJSON(w, http.StatusOK, house)
}

func (h *HouseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req houseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	in := req.input()
	if in.Name == "" {
		writeError(w, http.StatusBadRequest, "nome is required")
		return
	}
	house, err := h.houseStore.Create(in)
	if err != nil {
		fail(w, h.logger, err, "failed to create house")
		return
	}
	h.hub.Notify("house", "created", house.ID)
	writeJSON(w, http.StatusCreated, house)
}

func (h *HouseHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	existing, err := h.houseStore.GetByID(id)
	if err != nil {
		fail(w, h.logger, err, "failed to get house")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "house not found")
		return
	}

	var req houseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	in := req.input()
	if in.Name == "" {
		writeError(w, http.StatusBadRequest, "nome is required")
		return
	}
	house, err := h.houseStore.Update(id, in)
	if err != nil {
		fail(w, h.logger, err, "failed to update house")
		return
	}
	h.hub.Notify("house", "updated", id)
	writeJSON(w, http.StatusOK, house)
}

// Delete refuses with 409 while tasks still reference the house.
func (h *HouseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	existing, err := h.houseStore.GetByID(id)
	if err != nil {
		fail(w, h.logger, err, "failed to get house")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "house not found")
		return
	}
	n, err := h.houseStore.CountTasks(id)
	if err != nil {
		fail(w, h.logger, err, "failed to count tasks")
		return
	}
	if n > 0 {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error": "la casa ha ancora task associate",
			"tasks": n,
		})
		return
	}
	if err := h.houseStore.Delete(id); err != nil {
		fail(w, h.logger, err, "failed to delete house")
		return
	}
	h.hub.Notify("house", "deleted", id)
	w.WriteHeader(http.StatusNoContent)
}

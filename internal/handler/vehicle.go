package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/manutenzioni/internal/model"
	"github.com/dukerupert/manutenzioni/internal/store"
	"github.com/dukerupert/manutenzioni/internal/task"
)

type VehicleHandler struct {
	vehicleStore *store.VehicleStore
	hub          task.Broadcaster
	logger       *slog.Logger
}

func NewVehicleHandler(vs *store.VehicleStore, hub task.Broadcaster, logger *slog.Logger) *VehicleHandler {
	return &VehicleHandler{vehicleStore: vs, hub: hub, logger: logger}
}

type vehicleRequest struct {
	Name string  `json:"nome" validate:"required,max=200"`
	Type *string `json:"tipo" validate:"omitempty,max=100"`
}

func (h *VehicleHandler) List(w http.ResponseWriter, r *http.Request) {
	vehicles, err := h.vehicleStore.List()
	if err != nil {
		fail(w, h.logger, err, "failed to list vehicles")
		return
	}
	if vehicles == nil {
		vehicles = []model.Vehicle{}
	}
	writeJSON(w, http.StatusOK, vehicles)
}

func (h *VehicleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req vehicleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "nome is required")
		return
	}
	v, err := h.vehicleStore.Create(name, optional(req.Type))
	if err != nil {
		fail(w, h.logger, err, "failed to create vehicle")
		return
	}
	h.hub.Notify("vehicle", "created", v.ID)
	writeJSON(w, http.StatusCreated, v)
}

func (h *VehicleHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	existing, err := h.vehicleStore.GetByID(id)
	if err != nil {
		fail(w, h.logger, err, "failed to get vehicle")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "vehicle not found")
		return
	}

	var req vehicleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "nome is required")
		return
	}
	v, err := h.vehicleStore.Update(id, name, optional(req.Type))
	if err != nil {
		fail(w, h.logger, err, "failed to update vehicle")
		return
	}
	h.hub.Notify("vehicle", "updated", id)
	writeJSON(w, http.StatusOK, v)
}

func (h *VehicleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	existing, err := h.vehicleStore.GetByID(id)
	if err != nil {
		fail(w, h.logger, err, "failed to get vehicle")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "vehicle not found")
		return
	}
	if err := h.vehicleStore.Delete(id); err != nil {
		if isConstraint(err) {
			writeError(w, http.StatusConflict, "il mezzo ha ancora task associate")
			return
		}
		fail(w, h.logger, err, "failed to delete vehicle")
		return
	}
	h.hub.Notify("vehicle", "deleted", id)
	w.WriteHeader(http.StatusNoContent)
}

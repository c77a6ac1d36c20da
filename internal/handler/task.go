package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/manutenzioni/internal/auth"
	"github.com/dukerupert/manutenzioni/internal/cost"
	"github.com/dukerupert/manutenzioni/internal/model"
	"github.com/dukerupert/manutenzioni/internal/store"
	"github.com/dukerupert/manutenzioni/internal/task"
)

type TaskHandler struct {
	svc          *task.Service
	taskStore    *store.TaskStore
	logStore     *store.TaskLogStore
	houseStore   *store.HouseStore
	vehicleStore *store.VehicleStore
	profileStore *store.ProfileStore
	loc          *time.Location
	logger       *slog.Logger
}

func NewTaskHandler(svc *task.Service, ts *store.TaskStore, ls *store.TaskLogStore, hs *store.HouseStore, vs *store.VehicleStore, ps *store.ProfileStore, loc *time.Location, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{
		svc:          svc,
		taskStore:    ts,
		logStore:     ls,
		houseStore:   hs,
		vehicleStore: vs,
		profileStore: ps,
		loc:          loc,
		logger:       logger,
	}
}

type taskRequest struct {
	TargetKind  string  `json:"tipo_manutenzione" validate:"required,oneof=casa mezzo"`
	TargetID    string  `json:"target_id" validate:"required,uuid"`
	Description string  `json:"descrizione" validate:"required,max=2000"`
	Notes       *string `json:"note"`
	Priority    string  `json:"priorita" validate:"omitempty,oneof=bassa media alta"`
	ReportedBy  string  `json:"rilevato_da" validate:"required,max=200"`
	Operator    *string `json:"operatore" validate:"omitempty,max=200"`
	OperatorID  *string `json:"operatore_id" validate:"omitempty,uuid"`
	Cost        *string `json:"costo"`
	CostNet     *string `json:"costo_senza_iva"`
}

// inputError is a request problem found while resolving task fields.
type inputError string

func (e inputError) Error() string { return string(e) }

type taskResponse struct {
	Task model.TaskDetail `json:"task"`
	Card task.Card        `json:"card"`
}

// input converts the request, resolving the target, the operator picked
// from the profile list and whichever cost leg was entered.
func (h *TaskHandler) input(req taskRequest) (store.TaskInput, error) {
	var in store.TaskInput

	switch model.TargetKind(req.TargetKind) {
	case model.TargetHouse:
		house, err := h.houseStore.GetByID(req.TargetID)
		if err != nil {
			return in, err
		}
		if house == nil {
			return in, inputError("casa non trovata")
		}
		in.Target = model.HouseTarget(house.ID)
	case model.TargetVehicle:
		v, err := h.vehicleStore.GetByID(req.TargetID)
		if err != nil {
			return in, err
		}
		if v == nil {
			return in, inputError("mezzo non trovato")
		}
		in.Target = model.VehicleTarget(v.ID)
	}

	priority, err := model.ParsePriority(req.Priority)
	if err != nil {
		return in, inputError(err.Error())
	}
	in.Priority = priority
	in.Description = strings.TrimSpace(req.Description)
	in.ReportedBy = strings.TrimSpace(req.ReportedBy)
	in.Notes = optional(req.Notes)
	in.Operator = optional(req.Operator)

	if id := optional(req.OperatorID); id != nil {
		p, err := h.profileStore.GetByID(*id)
		if err != nil {
			return in, err
		}
		if p == nil {
			return in, inputError("operatore non trovato")
		}
		name := p.DisplayName()
		in.Operator = &name
	}

	var amount cost.Amount
	if v := optional(req.Cost); v != nil {
		amount, err = cost.FromGross(*v)
	} else if v := optional(req.CostNet); v != nil {
		amount, err = cost.FromNet(*v)
	}
	if err != nil {
		return in, err
	}
	in.Cost = amount.Value()
	return in, nil
}

func (h *TaskHandler) respond(w http.ResponseWriter, status int, id string) {
	d, err := h.taskStore.GetDetail(id)
	if err != nil {
		fail(w, h.logger, err, "failed to get task")
		return
	}
	if d == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, status, taskResponse{Task: *d, Card: task.Present(*d, task.CapAll, h.loc)})
}

// Dashboard lists pending tasks, optionally narrowed by ?casa= and
// ?priorita=, with the counters shown above them.
func (h *TaskHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.Filter{
		Statuses: []model.Status{model.StatusPending},
		HouseID:  q.Get("casa"),
	}
	if p := q.Get("priorita"); p != "" {
		priority, err := model.ParsePriority(p)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		f.Priority = priority
	}

	tasks, err := h.taskStore.List(f)
	if err != nil {
		fail(w, h.logger, err, "failed to list tasks")
		return
	}
	counts, err := h.taskStore.CountByStatus()
	if err != nil {
		fail(w, h.logger, err, "failed to count tasks")
		return
	}
	houses, err := h.houseStore.Count()
	if err != nil {
		fail(w, h.logger, err, "failed to count houses")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"task": task.PresentAll(tasks, task.CapAll, h.loc),
		"conteggi": map[string]int{
			"da_fare":     counts[model.StatusPending],
			"completate":  counts[model.StatusCompleted],
			"archiviate":  counts[model.StatusArchived],
			"case_totali": houses,
		},
	})
}

func (h *TaskHandler) list(w http.ResponseWriter, r *http.Request, status model.Status) {
	tasks, err := h.taskStore.List(store.Filter{
		Statuses: []model.Status{status},
		Search:   r.URL.Query().Get("q"),
		HouseID:  r.URL.Query().Get("casa"),
	})
	if err != nil {
		fail(w, h.logger, err, "failed to list tasks")
		return
	}
	writeJSON(w, http.StatusOK, task.PresentAll(tasks, task.CapAll, h.loc))
}

// Completed lists completed tasks, searchable with ?q=.
func (h *TaskHandler) Completed(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, model.StatusCompleted)
}

func (h *TaskHandler) Archived(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, model.StatusArchived)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	h.respond(w, http.StatusOK, id)
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	in, err := h.input(req)
	if err != nil {
		h.badInput(w, err)
		return
	}
	t, err := h.svc.Create(r.Context(), auth.UserID(r.Context()), in)
	if err != nil {
		fail(w, h.logger, err, "failed to create task")
		return
	}
	h.respond(w, http.StatusCreated, t.ID)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	existing, err := h.taskStore.GetByID(id)
	if err != nil {
		fail(w, h.logger, err, "failed to get task")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if !task.CapabilitiesFor(existing.Status).Has(task.CapEdit) {
		writeError(w, http.StatusConflict, "una task archiviata non può essere modificata")
		return
	}

	var req taskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	in, err := h.input(req)
	if err != nil {
		h.badInput(w, err)
		return
	}
	if _, err := h.svc.Update(r.Context(), id, in); err != nil {
		fail(w, h.logger, err, "failed to update task")
		return
	}
	h.respond(w, http.StatusOK, id)
}

func (h *TaskHandler) badInput(w http.ResponseWriter, err error) {
	var ie inputError
	if errors.As(err, &ie) {
		writeError(w, http.StatusBadRequest, ie.Error())
		return
	}
	fail(w, h.logger, err, "failed to resolve task fields")
}

// Delete requires ?confirm=true; without it the client gets 428 and
// should ask the user first.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if r.URL.Query().Get("confirm") != "true" {
		writeError(w, http.StatusPreconditionRequired, "conferma l'eliminazione con confirm=true")
		return
	}
	if err := h.svc.Delete(r.Context(), id, auth.UserID(r.Context())); err != nil {
		fail(w, h.logger, err, "failed to delete task")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TaskHandler) transition(tr task.Transition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseIDParam(r, "id")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid id")
			return
		}
		if _, err := h.svc.Apply(r.Context(), id, tr, auth.UserID(r.Context())); err != nil {
			fail(w, h.logger, err, "failed to update task status")
			return
		}
		h.respond(w, http.StatusOK, id)
	}
}

func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(task.Complete)(w, r)
}

func (h *TaskHandler) Restore(w http.ResponseWriter, r *http.Request) {
	h.transition(task.Restore)(w, r)
}

func (h *TaskHandler) Archive(w http.ResponseWriter, r *http.Request) {
	h.transition(task.Archive)(w, r)
}

// Logs returns the audit trail of a task, oldest first.
func (h *TaskHandler) Logs(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	logs, err := h.logStore.ListByTask(id)
	if err != nil {
		fail(w, h.logger, err, "failed to list task logs")
		return
	}
	if logs == nil {
		logs = []model.TaskLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}

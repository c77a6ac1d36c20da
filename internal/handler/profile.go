package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/manutenzioni/internal/auth"
	"github.com/dukerupert/manutenzioni/internal/storage"
	"github.com/dukerupert/manutenzioni/internal/store"
	"github.com/dukerupert/manutenzioni/internal/task"
)

const maxAvatarSize = 5 << 20

// Uploader writes objects and resolves their public address.
type Uploader interface {
	Upload(ctx context.Context, bucket storage.Bucket, key, contentType string, data []byte) error
	PublicURL(bucket storage.Bucket, key string) string
}

type ProfileHandler struct {
	profileStore *store.ProfileStore
	blobs        Uploader
	hub          task.Broadcaster
	logger       *slog.Logger
}

func NewProfileHandler(ps *store.ProfileStore, blobs Uploader, hub task.Broadcaster, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{profileStore: ps, blobs: blobs, hub: hub, logger: logger}
}

type profileRequest struct {
	Name    *string `json:"nome" validate:"omitempty,max=100"`
	Surname *string `json:"cognome" validate:"omitempty,max=100"`
}

// Get returns the caller's profile, creating it on first access.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	p, err := h.profileStore.GetOrCreate(ac.UserID, ac.Email)
	if err != nil {
		fail(w, h.logger, err, "failed to get profile")
		return
	}
	writeJSON(w, http.StatusOK, newMeResponse(p))
}

func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := h.profileStore.GetOrCreate(ac.UserID, ac.Email); err != nil {
		fail(w, h.logger, err, "failed to get profile")
		return
	}
	p, err := h.profileStore.Update(ac.UserID, optional(req.Name), optional(req.Surname))
	if err != nil {
		fail(w, h.logger, err, "failed to update profile")
		return
	}
	h.hub.Notify("profile", "updated", ac.UserID)
	writeJSON(w, http.StatusOK, newMeResponse(p))
}

// Avatar replaces the caller's picture with a 256x256 JPEG crop of the
// uploaded image.
func (h *ProfileHandler) Avatar(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	u, err := readUpload(w, r, maxAvatarSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	jpg, err := storage.Avatar(u.Data)
	if err != nil {
		writeError(w, http.StatusBadRequest, "il file non è un'immagine valida")
		return
	}

	key := ac.UserID + "/avatar.jpg"
	if err := h.blobs.Upload(r.Context(), storage.BucketAvatars, key, "image/jpeg", jpg); err != nil {
		fail(w, h.logger, err, "failed to upload avatar")
		return
	}
	url := fmt.Sprintf("%s?v=%d", h.blobs.PublicURL(storage.BucketAvatars, key), time.Now().Unix())

	if _, err := h.profileStore.GetOrCreate(ac.UserID, ac.Email); err != nil {
		fail(w, h.logger, err, "failed to get profile")
		return
	}
	if err := h.profileStore.SetAvatarURL(ac.UserID, url); err != nil {
		fail(w, h.logger, err, "failed to save avatar")
		return
	}
	h.hub.Notify("profile", "updated", ac.UserID)
	writeJSON(w, http.StatusOK, map[string]string{"avatar_url": url})
}

type operatorOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Operators lists profiles as options for the task form's operator picker.
func (h *ProfileHandler) Operators(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.profileStore.List()
	if err != nil {
		fail(w, h.logger, err, "failed to list operators")
		return
	}
	opts := make([]operatorOption, len(profiles))
	for i, p := range profiles {
		opts[i] = operatorOption{ID: p.ID, Label: p.DisplayName()}
	}
	writeJSON(w, http.StatusOK, opts)
}

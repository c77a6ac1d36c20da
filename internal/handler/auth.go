package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/manutenzioni/internal/auth"
	"github.com/dukerupert/manutenzioni/internal/middleware"
	"github.com/dukerupert/manutenzioni/internal/model"
	"github.com/dukerupert/manutenzioni/internal/store"
)

type AuthHandler struct {
	userStore    *store.UserStore
	profileStore *store.ProfileStore
	sessionStore *store.SessionStore
	notifier     *auth.Notifier
	sessionTTL   time.Duration
	logger       *slog.Logger
}

func NewAuthHandler(us *store.UserStore, ps *store.ProfileStore, ss *store.SessionStore, notifier *auth.Notifier, sessionTTL time.Duration, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		userStore:    us,
		profileStore: ps,
		sessionStore: ss,
		notifier:     notifier,
		sessionTTL:   sessionTTL,
		logger:       logger,
	}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type meResponse struct {
	*model.Profile
	DisplayName string `json:"display_name"`
	Initials    string `json:"iniziali"`
}

func newMeResponse(p *model.Profile) meResponse {
	return meResponse{Profile: p, DisplayName: p.DisplayName(), Initials: p.Initials()}
}

// Login checks the credentials, opens a session and sets the cookie. The
// token is also returned for clients that send it as a bearer token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := h.userStore.GetByEmail(email)
	if err != nil {
		h.logger.Error("login lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "credenziali non valide")
		return
	}

	sess, err := h.sessionStore.Create(user.ID)
	if err != nil {
		h.logger.Error("create session", "error", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	profile, err := h.profileStore.GetOrCreate(user.ID, user.Email)
	if err != nil {
		h.logger.Error("ensure profile", "error", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		MaxAge:   int(h.sessionTTL / time.Second),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	h.notifier.Publish(auth.Event{Kind: auth.EventSignedIn, UserID: user.ID})
	h.logger.Info("user signed in", "user_id", user.ID)

	writeJSON(w, http.StatusOK, map[string]any{
		"token":      sess.Token,
		"expires_at": sess.ExpiresAt,
		"profile":    newMeResponse(profile),
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if ok {
		if err := h.sessionStore.Delete(ac.SessionID); err != nil {
			h.logger.Error("delete session", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	if ok {
		h.notifier.Publish(auth.Event{Kind: auth.EventSignedOut, UserID: ac.UserID})
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	profile, err := h.profileStore.GetOrCreate(ac.UserID, ac.Email)
	if err != nil {
		h.logger.Error("get profile", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get profile")
		return
	}
	writeJSON(w, http.StatusOK, newMeResponse(profile))
}

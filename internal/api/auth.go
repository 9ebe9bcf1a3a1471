package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/blocknote-app/blocknote/internal/auth"
	"github.com/blocknote-app/blocknote/internal/errs"
	"github.com/blocknote-app/blocknote/internal/obs"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerResponse struct {
	User *auth.User `json:"user"`
}

type loginResponse struct {
	Token string     `json:"token"`
	User  *auth.User `json:"user"`
}

// Register handles POST /api/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, r, errs.Invalid("request body must be valid JSON"))
		return
	}

	user, err := h.users.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	obs.From(r.Context()).Info("user registered", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, registerResponse{User: user})
}

// Login handles POST /api/login. A successful login returns a bearer token
// for API clients and sets a session cookie for browsers.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, r, errs.Invalid("request body must be valid JSON"))
		return
	}

	user, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	sessionID, err := h.sessions.Create(r.Context(), user.ID)
	if err != nil {
		writeErr(w, r, fmt.Errorf("create session: %w", err))
		return
	}
	token, err := h.tokens.Generate(user.ID)
	if err != nil {
		writeErr(w, r, fmt.Errorf("generate token: %w", err))
		return
	}

	auth.SetCookie(w, sessionID, h.secureCookies, h.sessionDuration)
	obs.From(r.Context()).Info("user logged in", "user_id", user.ID)
	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: user})
}

// Logout handles POST /api/logout. Destroys the session if one is present;
// always succeeds so logout is idempotent.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if sessionID, err := auth.GetFromRequest(r); err == nil {
		if err := h.sessions.Destroy(r.Context(), sessionID); err != nil {
			obs.From(r.Context()).Warn("destroy session failed", "err", err)
		}
	}
	auth.ClearCookie(w, h.secureCookies)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

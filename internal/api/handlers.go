// Package api exposes the JSON HTTP surface: account endpoints, note CRUD,
// search, and the tag list. Every error is rendered through the errs code
// mapping so handlers never leak raw storage errors.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/blocknote-app/blocknote/internal/auth"
	"github.com/blocknote-app/blocknote/internal/errs"
	"github.com/blocknote-app/blocknote/internal/notes"
	"github.com/blocknote-app/blocknote/internal/obs"
)

// Handler wraps the services behind the JSON API.
type Handler struct {
	notes    *notes.Service
	users    *auth.UserService
	sessions *auth.SessionService
	tokens   *auth.TokenService

	secureCookies   bool
	sessionDuration time.Duration
}

// NewHandler creates a new API handler.
func NewHandler(notesSvc *notes.Service, users *auth.UserService, sessions *auth.SessionService, tokens *auth.TokenService) *Handler {
	return &Handler{
		notes:           notesSvc,
		users:           users,
		sessions:        sessions,
		tokens:          tokens,
		sessionDuration: auth.DefaultSessionDuration,
	}
}

// SetCookiePolicy controls the Secure flag and lifetime of session cookies.
func (h *Handler) SetCookiePolicy(secure bool, duration time.Duration) {
	h.secureCookies = secure
	if duration > 0 {
		h.sessionDuration = duration
	}
}

// RegisterRoutes registers the public routes on mux and returns the handler
// for the protected routes, which the caller wraps in auth middleware.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) http.Handler {
	mux.HandleFunc("POST /api/register", h.Register)
	mux.HandleFunc("POST /api/login", h.Login)
	mux.HandleFunc("POST /api/logout", h.Logout)
	mux.HandleFunc("GET /api/health", h.Health)

	protected := http.NewServeMux()
	protected.HandleFunc("GET /api/notes", h.ListNotes)
	protected.HandleFunc("POST /api/notes", h.CreateNote)
	protected.HandleFunc("GET /api/notes/{id}", h.GetNote)
	protected.HandleFunc("PUT /api/notes/{id}", h.UpdateNote)
	protected.HandleFunc("DELETE /api/notes/{id}", h.DeleteNote)
	protected.HandleFunc("GET /api/tags", h.ListTags)
	return protected
}

// Health handles GET /api/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListNotes handles GET /api/notes with search, filter, and pagination
// query parameters.
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	params, err := parseSearchParams(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	result, err := h.notes.List(r.Context(), auth.UserID(r.Context()), params)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetNote handles GET /api/notes/{id}.
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	note, err := h.notes.Get(r.Context(), auth.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// CreateNote handles POST /api/notes.
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var params notes.CreateParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeErr(w, r, errs.Invalid("request body must be valid JSON"))
		return
	}

	note, err := h.notes.Create(r.Context(), auth.UserID(r.Context()), params)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// UpdateNote handles PUT /api/notes/{id}. Absent fields are left untouched.
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	var params notes.UpdateParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeErr(w, r, errs.Invalid("request body must be valid JSON"))
		return
	}

	note, err := h.notes.Update(r.Context(), auth.UserID(r.Context()), r.PathValue("id"), params)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/notes/{id}.
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	err := h.notes.Delete(r.Context(), auth.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "note deleted"})
}

// ListTags handles GET /api/tags.
func (h *Handler) ListTags(w http.ResponseWriter, r *http.Request) {
	result, err := h.notes.ListTags(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// parseSearchParams reads the list query parameters. Unparseable page and
// limit values are rejected rather than silently defaulted; tags arrive as a
// comma-separated list.
func parseSearchParams(r *http.Request) (notes.SearchParams, error) {
	q := r.URL.Query()
	params := notes.SearchParams{Query: q.Get("query")}

	if raw := q.Get("tags"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name != "" {
				params.Tags = append(params.Tags, name)
			}
		}
	}

	if raw := q.Get("isArchived"); raw != "" {
		archived, err := strconv.ParseBool(raw)
		if err != nil {
			return params, errs.Invalid("isArchived must be true or false",
				errs.FieldError{Field: "isArchived", Message: "must be true or false"})
		}
		params.IsArchived = &archived
	}

	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return params, errs.Invalid("page must be an integer",
				errs.FieldError{Field: "page", Message: "must be an integer"})
		}
		params.Page = page
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return params, errs.Invalid("limit must be an integer",
				errs.FieldError{Field: "limit", Message: "must be an integer"})
		}
		params.Limit = limit
	}

	return params, nil
}

// errorResponse is the uniform error envelope.
type errorResponse struct {
	Error   string            `json:"error"`
	Details []errs.FieldError `json:"details,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeErr maps a service error onto the wire. 5xx causes are logged with
// correlation; the response body stays generic.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status := errs.HTTPStatus(errs.CodeOf(err))
	if status >= http.StatusInternalServerError {
		obs.From(r.Context()).Error("request failed", "err", err,
			"method", r.Method, "path", r.URL.Path)
	}
	writeJSON(w, status, errorResponse{
		Error:   errs.MessageOf(err),
		Details: errs.FieldsOf(err),
	})
}

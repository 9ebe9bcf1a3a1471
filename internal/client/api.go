// Package client is the programmatic consumer of the notes API: a typed HTTP
// client plus a read-through cache with optimistic mutations. Reads serve
// fresh cache entries without touching the network; writes update the cache
// immediately and reconcile with the server response, rolling back on
// failure.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/blocknote-app/blocknote/internal/errs"
	"github.com/blocknote-app/blocknote/internal/notes"
)

// API is the remote surface the client mutates against. Satisfied by
// HTTPAPI in production and by fakes in tests.
type API interface {
	ListNotes(ctx context.Context, params notes.SearchParams) (*notes.ListResult, error)
	GetNote(ctx context.Context, id string) (*notes.Note, error)
	CreateNote(ctx context.Context, params notes.CreateParams) (*notes.Note, error)
	UpdateNote(ctx context.Context, id string, params notes.UpdateParams) (*notes.Note, error)
	DeleteNote(ctx context.Context, id string) error
	ListTags(ctx context.Context) (*notes.TagListResult, error)
}

// HTTPAPI talks to a running server over HTTP with a bearer token.
type HTTPAPI struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewHTTPAPI creates an HTTP-backed API client. baseURL is the server root
// without a trailing slash, token the bearer token from /api/login.
func NewHTTPAPI(baseURL, token string) *HTTPAPI {
	return &HTTPAPI{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// ListNotes fetches a page of notes matching the search parameters.
func (a *HTTPAPI) ListNotes(ctx context.Context, params notes.SearchParams) (*notes.ListResult, error) {
	q := url.Values{}
	if params.Query != "" {
		q.Set("query", params.Query)
	}
	if len(params.Tags) > 0 {
		q.Set("tags", strings.Join(params.Tags, ","))
	}
	if params.IsArchived != nil {
		q.Set("isArchived", strconv.FormatBool(*params.IsArchived))
	}
	if params.Page > 0 {
		q.Set("page", strconv.Itoa(params.Page))
	}
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}

	path := "/api/notes"
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var result notes.ListResult
	if err := a.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetNote fetches a single note.
func (a *HTTPAPI) GetNote(ctx context.Context, id string) (*notes.Note, error) {
	var note notes.Note
	if err := a.do(ctx, http.MethodGet, "/api/notes/"+url.PathEscape(id), nil, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

// CreateNote creates a note.
func (a *HTTPAPI) CreateNote(ctx context.Context, params notes.CreateParams) (*notes.Note, error) {
	var note notes.Note
	if err := a.do(ctx, http.MethodPost, "/api/notes", params, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

// UpdateNote applies a partial update to a note.
func (a *HTTPAPI) UpdateNote(ctx context.Context, id string, params notes.UpdateParams) (*notes.Note, error) {
	var note notes.Note
	if err := a.do(ctx, http.MethodPut, "/api/notes/"+url.PathEscape(id), params, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

// DeleteNote deletes a note.
func (a *HTTPAPI) DeleteNote(ctx context.Context, id string) error {
	return a.do(ctx, http.MethodDelete, "/api/notes/"+url.PathEscape(id), nil, nil)
}

// ListTags fetches the tag list with note counts.
func (a *HTTPAPI) ListTags(ctx context.Context) (*notes.TagListResult, error) {
	var result notes.TagListResult
	if err := a.do(ctx, http.MethodGet, "/api/tags", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// do runs one request cycle: encode body, set auth, decode response or map
// the error envelope back to a coded error.
func (a *HTTPAPI) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeError turns an error envelope back into a coded error so callers can
// branch on errs.CodeOf the same way server-side code does.
func decodeError(resp *http.Response) error {
	var envelope struct {
		Error   string            `json:"error"`
		Details []errs.FieldError `json:"details"`
	}
	message := resp.Status
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Error != "" {
		message = envelope.Error
	}

	code := codeFromStatus(resp.StatusCode)
	if len(envelope.Details) > 0 && code == errs.InvalidArgument {
		return errs.Invalid(message, envelope.Details...)
	}
	return errs.New(code, message)
}

func codeFromStatus(status int) errs.Code {
	switch status {
	case http.StatusBadRequest:
		return errs.InvalidArgument
	case http.StatusUnauthorized:
		return errs.Unauthenticated
	case http.StatusNotFound:
		return errs.NotFound
	case http.StatusConflict:
		return errs.FailedPrecondition
	default:
		return errs.Internal
	}
}

package notes

import (
	"encoding/json"
	"time"

	"github.com/blocknote-app/blocknote/internal/content"
)

const (
	// DefaultLimit is the default number of notes per page.
	DefaultLimit = 20

	// MaxLimit is the maximum number of notes per page.
	MaxLimit = 100
)

// Note is a user's note with resolved block content and its current tag set.
// Tags are always the live membership of the association table, never a
// stored copy.
type Note struct {
	ID         string          `json:"id"`
	UserID     string          `json:"userId"`
	Title      string          `json:"title"`
	Content    content.Content `json:"content"`
	Tags       []string        `json:"tags"`
	IsArchived bool            `json:"isArchived"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
	LastEdited time.Time       `json:"lastEdited"`
}

// CreateParams contains parameters for creating a note. Content is the raw
// block content JSON, validated before any row is written.
type CreateParams struct {
	Title   string          `json:"title"`
	Content json.RawMessage `json:"content"`
	Tags    []string        `json:"tags"`
}

// UpdateParams contains parameters for a partial update. Nil fields are left
// untouched; Tags nil means "keep the current association", while an empty
// non-nil slice clears every tag.
type UpdateParams struct {
	Title      *string         `json:"title,omitempty"`
	Content    json.RawMessage `json:"content,omitempty"`
	Tags       *[]string       `json:"tags,omitempty"`
	IsArchived *bool           `json:"isArchived,omitempty"`
}

// SearchParams narrows and pages a list query. Tags use OR semantics: a note
// qualifies when it carries at least one of the supplied names.
type SearchParams struct {
	Query      string
	Tags       []string
	IsArchived *bool
	Page       int
	Limit      int
}

// ListResult is a page of notes with the total match count before paging.
type ListResult struct {
	Notes []Note `json:"notes"`
	Total int    `json:"total"`
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
}

// TagInfo is a tag name with its current note count.
type TagInfo struct {
	Name      string `json:"name"`
	NoteCount int    `json:"noteCount"`
}

// TagListResult is the full tag list for a user.
type TagListResult struct {
	Tags  []TagInfo `json:"tags"`
	Total int       `json:"total"`
}

package notes

import (
	"context"
	"fmt"
	"strings"

	"github.com/blocknote-app/blocknote/internal/content"
	"github.com/blocknote-app/blocknote/internal/db"
	"github.com/blocknote-app/blocknote/internal/errs"
	"github.com/blocknote-app/blocknote/internal/obs"
)

// List runs the search pipeline: SQL narrows the candidate set by owner,
// archive status, and tag membership; the free-text query is then matched in
// Go against the title and the extracted block text. Total counts every match
// before paging, so an out-of-range page returns an empty slice with the real
// total.
func (s *Service) List(ctx context.Context, userID string, params SearchParams) (*ListResult, error) {
	if userID == "" {
		return nil, errs.New(errs.Unauthenticated, "unauthorized")
	}

	page := params.Page
	if page < 1 {
		page = 1
	}
	limit := params.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	rows, err := s.store.ListNotes(ctx, db.ListNotesParams{
		UserID:     userID,
		IsArchived: params.IsArchived,
		Tags:       params.Tags,
	})
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}

	matched := rows
	if q := strings.ToLower(strings.TrimSpace(params.Query)); q != "" {
		matched = matched[:0:0]
		for _, row := range rows {
			if matchesQuery(ctx, row, q) {
				matched = append(matched, row)
			}
		}
	}

	total := len(matched)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	pageRows := matched[start:end]

	notes := make([]Note, 0, len(pageRows))
	for _, row := range pageRows {
		resolved, err := s.resolveContent(ctx, row)
		if err != nil {
			return nil, err
		}
		tagNames, err := s.store.ListNoteTagNames(ctx, row.ID)
		if err != nil {
			return nil, fmt.Errorf("read note tags: %w", err)
		}
		notes = append(notes, noteFromRow(row, resolved, tagNames))
	}

	return &ListResult{
		Notes: notes,
		Total: total,
		Page:  page,
		Limit: limit,
	}, nil
}

// matchesQuery reports whether the lowercased query is a substring of the
// note title or its extracted block text. A row whose stored content fails to
// parse still matches on title alone; the row is logged, not dropped.
func matchesQuery(ctx context.Context, row db.NoteRow, query string) bool {
	if strings.Contains(strings.ToLower(row.Title), query) {
		return true
	}
	resolved, err := content.Deserialize(row.Content)
	if err != nil {
		obs.From(ctx).Warn("skipping unreadable content during search",
			"note_id", row.ID, "err", err)
		return false
	}
	return strings.Contains(strings.ToLower(content.ExtractText(resolved)), query)
}

package notes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/blocknote-app/blocknote/internal/db"
	"github.com/blocknote-app/blocknote/internal/errs"
)

// reconcileTags replaces a note's tag associations with the given names:
// every existing association is cleared, then each name is linked in input
// order, creating missing tag rows along the way. Names match case
// sensitively and exactly; duplicates collapse to their first occurrence.
// Tag rows themselves are never deleted here, so a tag orphaned by the
// clear step survives for future reuse. Must run inside the caller's
// transaction.
func (s *Service) reconcileTags(ctx context.Context, q *db.Queries, userID, noteID string, names []string, nowMillis int64) ([]string, error) {
	if err := q.DeleteNoteTags(ctx, noteID); err != nil {
		return nil, fmt.Errorf("clear note tags: %w", err)
	}

	processed := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if name == "" {
			return nil, errs.Invalid("tag names must not be empty",
				errs.FieldError{Field: "tags", Message: "must not contain empty names"})
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		tagID, err := s.findOrCreateTag(ctx, q, userID, name, nowMillis)
		if err != nil {
			return nil, err
		}
		if err := q.CreateNoteTag(ctx, noteID, tagID); err != nil {
			return nil, fmt.Errorf("link tag %q: %w", name, err)
		}
		processed = append(processed, name)
	}
	return processed, nil
}

// findOrCreateTag returns the id of the user's tag with the exact name,
// inserting a new row when absent.
func (s *Service) findOrCreateTag(ctx context.Context, q *db.Queries, userID, name string, nowMillis int64) (string, error) {
	existing, err := q.GetTagByName(ctx, userID, name)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("look up tag %q: %w", name, err)
	}

	tagID := uuid.New().String()
	err = q.CreateTag(ctx, db.CreateTagParams{
		ID:        tagID,
		UserID:    userID,
		Name:      name,
		CreatedAt: nowMillis,
		UpdatedAt: nowMillis,
	})
	if err != nil {
		return "", fmt.Errorf("create tag %q: %w", name, err)
	}
	return tagID, nil
}

// ListTags returns every tag of the user with its note count, in name order.
// Tags no longer attached to any note are included with a zero count.
func (s *Service) ListTags(ctx context.Context, userID string) (*TagListResult, error) {
	if userID == "" {
		return nil, errs.New(errs.Unauthenticated, "unauthorized")
	}

	rows, err := s.store.ListTagsWithCounts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}

	tags := make([]TagInfo, 0, len(rows))
	for _, row := range rows {
		tags = append(tags, TagInfo{
			Name:      row.Name,
			NoteCount: int(row.NoteCount),
		})
	}
	return &TagListResult{Tags: tags, Total: len(tags)}, nil
}

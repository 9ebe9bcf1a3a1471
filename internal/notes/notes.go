// Package notes implements note repository operations scoped to an owning
// user: create, get, update, delete, the list/search pipeline, and tag
// reconciliation. A note id owned by another user behaves exactly like a
// missing id so existence is never disclosed across users.
package notes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/blocknote-app/blocknote/internal/content"
	"github.com/blocknote-app/blocknote/internal/db"
	"github.com/blocknote-app/blocknote/internal/errs"
	"github.com/blocknote-app/blocknote/internal/obs"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Service handles note operations using the db layer.
type Service struct {
	store *db.Store
	clock Clock
}

// NewService creates a new notes service.
func NewService(store *db.Store) *Service {
	return &Service{store: store, clock: realClock{}}
}

// SetClock replaces the clock used by the service. Intended for testing.
func (s *Service) SetClock(c Clock) {
	s.clock = c
}

// Create validates title and content, writes the note, and reconciles its
// tags, all in one transaction. Nothing is written when validation fails.
func (s *Service) Create(ctx context.Context, userID string, params CreateParams) (*Note, error) {
	if userID == "" {
		return nil, errs.New(errs.Unauthenticated, "unauthorized")
	}
	if params.Title == "" {
		return nil, errs.Invalid("title is required",
			errs.FieldError{Field: "title", Message: "required"})
	}

	resolved, err := content.Validate(params.Content)
	if err != nil {
		return nil, err
	}
	serialized, err := content.Serialize(resolved)
	if err != nil {
		return nil, fmt.Errorf("serialize content: %w", err)
	}

	noteID := uuid.New().String()
	now := s.clock.Now().UTC()
	nowMillis := now.UnixMilli()

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := s.store.WithTx(tx)
	err = q.CreateNote(ctx, db.CreateNoteParams{
		ID:         noteID,
		UserID:     userID,
		Title:      params.Title,
		Content:    serialized,
		IsArchived: false,
		CreatedAt:  nowMillis,
		UpdatedAt:  nowMillis,
		LastEdited: nowMillis,
	})
	if err != nil {
		return nil, fmt.Errorf("create note: %w", err)
	}

	tagNames, err := s.reconcileTags(ctx, q, userID, noteID, params.Tags, nowMillis)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create: %w", err)
	}

	return &Note{
		ID:         noteID,
		UserID:     userID,
		Title:      params.Title,
		Content:    resolved,
		Tags:       tagNames,
		IsArchived: false,
		CreatedAt:  millisTime(nowMillis),
		UpdatedAt:  millisTime(nowMillis),
		LastEdited: millisTime(nowMillis),
	}, nil
}

// Get retrieves a note by id, scoped to the owning user.
func (s *Service) Get(ctx context.Context, userID, id string) (*Note, error) {
	if userID == "" {
		return nil, errs.New(errs.Unauthenticated, "unauthorized")
	}
	if id == "" {
		return nil, errs.Invalid("note id is required",
			errs.FieldError{Field: "id", Message: "required"})
	}

	row, err := s.store.GetNote(ctx, userID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.New(errs.NotFound, "note not found")
	}
	if err != nil {
		return nil, fmt.Errorf("read note: %w", err)
	}

	resolved, err := s.resolveContent(ctx, row)
	if err != nil {
		return nil, err
	}

	tagNames, err := s.store.ListNoteTagNames(ctx, row.ID)
	if err != nil {
		return nil, fmt.Errorf("read note tags: %w", err)
	}

	note := noteFromRow(row, resolved, tagNames)
	return &note, nil
}

// Update applies a partial update. updated_at and last_edited always refresh
// on success, even when only the archive flag changed. Tags are replaced only
// when supplied.
func (s *Service) Update(ctx context.Context, userID, id string, params UpdateParams) (*Note, error) {
	if userID == "" {
		return nil, errs.New(errs.Unauthenticated, "unauthorized")
	}
	if id == "" {
		return nil, errs.Invalid("note id is required",
			errs.FieldError{Field: "id", Message: "required"})
	}
	if params.Title != nil && *params.Title == "" {
		return nil, errs.Invalid("title must not be empty",
			errs.FieldError{Field: "title", Message: "must not be empty"})
	}

	existing, err := s.store.GetNote(ctx, userID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.New(errs.NotFound, "note not found")
	}
	if err != nil {
		return nil, fmt.Errorf("read note: %w", err)
	}

	newTitle := existing.Title
	if params.Title != nil {
		newTitle = *params.Title
	}

	newSerialized := existing.Content
	var resolved content.Content
	if params.Content != nil {
		resolved, err = content.Validate(params.Content)
		if err != nil {
			return nil, err
		}
		newSerialized, err = content.Serialize(resolved)
		if err != nil {
			return nil, fmt.Errorf("serialize content: %w", err)
		}
	} else {
		resolved, err = s.resolveContent(ctx, existing)
		if err != nil {
			return nil, err
		}
	}

	newArchived := existing.IsArchived
	if params.IsArchived != nil {
		newArchived = *params.IsArchived
	}

	nowMillis := s.clock.Now().UTC().UnixMilli()

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := s.store.WithTx(tx)
	affected, err := q.UpdateNote(ctx, db.UpdateNoteParams{
		ID:         id,
		UserID:     userID,
		Title:      newTitle,
		Content:    newSerialized,
		IsArchived: newArchived,
		UpdatedAt:  nowMillis,
		LastEdited: nowMillis,
	})
	if err != nil {
		return nil, fmt.Errorf("update note: %w", err)
	}
	if affected == 0 {
		return nil, errs.New(errs.NotFound, "note not found")
	}

	var tagNames []string
	if params.Tags != nil {
		tagNames, err = s.reconcileTags(ctx, q, userID, id, *params.Tags, nowMillis)
		if err != nil {
			return nil, err
		}
	} else {
		tagNames, err = q.ListNoteTagNames(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("read note tags: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}

	return &Note{
		ID:         id,
		UserID:     userID,
		Title:      newTitle,
		Content:    resolved,
		Tags:       tagNames,
		IsArchived: newArchived,
		CreatedAt:  millisTime(existing.CreatedAt),
		UpdatedAt:  millisTime(nowMillis),
		LastEdited: millisTime(nowMillis),
	}, nil
}

// Delete removes a note's associations and then the note itself. Tags are
// never deleted as a side effect.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if userID == "" {
		return errs.New(errs.Unauthenticated, "unauthorized")
	}
	if id == "" {
		return errs.Invalid("note id is required",
			errs.FieldError{Field: "id", Message: "required"})
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := s.store.WithTx(tx)

	// Scope check first so foreign-owned ids never clear associations.
	if _, err := q.GetNote(ctx, userID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errs.New(errs.NotFound, "note not found")
		}
		return fmt.Errorf("read note: %w", err)
	}

	if err := q.DeleteNoteTags(ctx, id); err != nil {
		return fmt.Errorf("delete note tags: %w", err)
	}
	if _, err := q.DeleteNote(ctx, userID, id); err != nil {
		return fmt.Errorf("delete note: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}

// resolveContent deserializes a stored content string. A row that fails to
// parse is a data-integrity fault: logged here and surfaced as a generic
// internal error, never as silently empty content.
func (s *Service) resolveContent(ctx context.Context, row db.NoteRow) (content.Content, error) {
	resolved, err := content.Deserialize(row.Content)
	if err != nil {
		obs.From(ctx).Error("stored note content failed to deserialize",
			"note_id", row.ID, "err", err)
		return content.Content{}, errs.Wrap(errs.Internal, "note content is unreadable", err)
	}
	return resolved, nil
}

func noteFromRow(row db.NoteRow, resolved content.Content, tagNames []string) Note {
	if tagNames == nil {
		tagNames = []string{}
	}
	return Note{
		ID:         row.ID,
		UserID:     row.UserID,
		Title:      row.Title,
		Content:    resolved,
		Tags:       tagNames,
		IsArchived: row.IsArchived,
		CreatedAt:  millisTime(row.CreatedAt),
		UpdatedAt:  millisTime(row.UpdatedAt),
		LastEdited: millisTime(row.LastEdited),
	}
}

// millisTime converts stored Unix milliseconds to UTC time.
func millisTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

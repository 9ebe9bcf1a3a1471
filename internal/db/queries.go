package db

import (
	"context"
	"fmt"
	"strings"
)

// UserRow is a row of the users table.
type UserRow struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    int64
	UpdatedAt    int64
}

// SessionRow is a row of the sessions table.
type SessionRow struct {
	SessionID string
	UserID    string
	ExpiresAt int64
	CreatedAt int64
}

// NoteRow is a row of the notes table. Content is the serialized block
// content string.
type NoteRow struct {
	ID         string
	UserID     string
	Title      string
	Content    string
	IsArchived bool
	CreatedAt  int64
	UpdatedAt  int64
	LastEdited int64
}

// TagRow is a row of the tags table.
type TagRow struct {
	ID        string
	UserID    string
	Name      string
	CreatedAt int64
	UpdatedAt int64
}

// TagCountRow is a tag joined with its note count.
type TagCountRow struct {
	TagRow
	NoteCount int64
}

// CreateUserParams holds the columns for a new user row.
type CreateUserParams struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    int64
	UpdatedAt    int64
}

// CreateUser inserts a user row.
func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, arg.ID, arg.Email, arg.PasswordHash, arg.CreatedAt, arg.UpdatedAt)
	return err
}

// GetUserByEmail returns the user with the given email, or sql.ErrNoRows.
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (UserRow, error) {
	var u UserRow
	err := q.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, created_at, updated_at
		FROM users WHERE email = ?
	`, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// GetUserByID returns the user with the given id, or sql.ErrNoRows.
func (q *Queries) GetUserByID(ctx context.Context, id string) (UserRow, error) {
	var u UserRow
	err := q.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, created_at, updated_at
		FROM users WHERE id = ?
	`, id).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// UpsertSessionParams holds the columns for a session row.
type UpsertSessionParams struct {
	SessionID string
	UserID    string
	ExpiresAt int64
	CreatedAt int64
}

// UpsertSession inserts or replaces a session row.
func (q *Queries) UpsertSession(ctx context.Context, arg UpsertSessionParams) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sessions (session_id, user_id, expires_at, created_at)
		VALUES (?, ?, ?, ?)
	`, arg.SessionID, arg.UserID, arg.ExpiresAt, arg.CreatedAt)
	return err
}

// GetValidSession returns the session if it exists and has not expired.
func (q *Queries) GetValidSession(ctx context.Context, sessionID string, now int64) (SessionRow, error) {
	var s SessionRow
	err := q.db.QueryRowContext(ctx, `
		SELECT session_id, user_id, expires_at, created_at
		FROM sessions WHERE session_id = ? AND expires_at > ?
	`, sessionID, now).Scan(&s.SessionID, &s.UserID, &s.ExpiresAt, &s.CreatedAt)
	return s, err
}

// DeleteSession removes a session row.
func (q *Queries) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID)
	return err
}

// DeleteExpiredSessions removes all sessions that expired before now.
func (q *Queries) DeleteExpiredSessions(ctx context.Context, now int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now)
	return err
}

// CreateNoteParams holds the columns for a new note row.
type CreateNoteParams struct {
	ID         string
	UserID     string
	Title      string
	Content    string
	IsArchived bool
	CreatedAt  int64
	UpdatedAt  int64
	LastEdited int64
}

// CreateNote inserts a note row.
func (q *Queries) CreateNote(ctx context.Context, arg CreateNoteParams) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO notes (id, user_id, title, content, is_archived, created_at, updated_at, last_edited)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, arg.ID, arg.UserID, arg.Title, arg.Content, arg.IsArchived, arg.CreatedAt, arg.UpdatedAt, arg.LastEdited)
	return err
}

// GetNote returns a note scoped to its owner, or sql.ErrNoRows when the id
// is absent or owned by someone else.
func (q *Queries) GetNote(ctx context.Context, userID, id string) (NoteRow, error) {
	var n NoteRow
	err := q.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, content, is_archived, created_at, updated_at, last_edited
		FROM notes WHERE id = ? AND user_id = ?
	`, id, userID).Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &n.IsArchived, &n.CreatedAt, &n.UpdatedAt, &n.LastEdited)
	return n, err
}

// ListNotesParams narrows the candidate set for a list query. Tags, when
// non-empty, selects notes holding at least one of the named tags (OR
// semantics); IsArchived, when non-nil, filters by exact archive status.
type ListNotesParams struct {
	UserID     string
	IsArchived *bool
	Tags       []string
}

// ListNotes returns the candidate notes for the search pipeline, ordered by
// last_edited descending with id as a deterministic tie-break.
func (q *Queries) ListNotes(ctx context.Context, arg ListNotesParams) ([]NoteRow, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT n.id, n.user_id, n.title, n.content, n.is_archived, n.created_at, n.updated_at, n.last_edited
		FROM notes n
		WHERE n.user_id = ?`)
	args := []any{arg.UserID}

	if arg.IsArchived != nil {
		sb.WriteString(` AND n.is_archived = ?`)
		args = append(args, *arg.IsArchived)
	}

	if len(arg.Tags) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(arg.Tags)), ", ")
		fmt.Fprintf(&sb, ` AND EXISTS (
			SELECT 1 FROM note_tags nt
			JOIN tags t ON t.id = nt.tag_id
			WHERE nt.note_id = n.id AND t.user_id = n.user_id AND t.name IN (%s)
		)`, placeholders)
		for _, name := range arg.Tags {
			args = append(args, name)
		}
	}

	sb.WriteString(` ORDER BY n.last_edited DESC, n.id DESC`)

	rows, err := q.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var notes []NoteRow
	for rows.Next() {
		var n NoteRow
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &n.IsArchived, &n.CreatedAt, &n.UpdatedAt, &n.LastEdited); err != nil {
			return nil, fmt.Errorf("scan note row: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate note rows: %w", err)
	}
	return notes, nil
}

// UpdateNoteParams holds the full set of columns written on update. Partial
// merge semantics are the service layer's job; the row is written whole.
type UpdateNoteParams struct {
	ID         string
	UserID     string
	Title      string
	Content    string
	IsArchived bool
	UpdatedAt  int64
	LastEdited int64
}

// UpdateNote writes a note row scoped to its owner. Returns the number of
// rows affected (0 when the note does not exist for that user).
func (q *Queries) UpdateNote(ctx context.Context, arg UpdateNoteParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE notes SET title = ?, content = ?, is_archived = ?, updated_at = ?, last_edited = ?
		WHERE id = ? AND user_id = ?
	`, arg.Title, arg.Content, arg.IsArchived, arg.UpdatedAt, arg.LastEdited, arg.ID, arg.UserID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteNote removes a note row scoped to its owner. Associated note_tags
// rows cascade. Returns the number of rows affected.
func (q *Queries) DeleteNote(ctx context.Context, userID, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteNoteTags removes every association for a note.
func (q *Queries) DeleteNoteTags(ctx context.Context, noteID string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM note_tags WHERE note_id = ?`, noteID)
	return err
}

// GetTagByName returns the user's tag with the exact name, or sql.ErrNoRows.
// Matching is case-sensitive.
func (q *Queries) GetTagByName(ctx context.Context, userID, name string) (TagRow, error) {
	var t TagRow
	err := q.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, created_at, updated_at
		FROM tags WHERE user_id = ? AND name = ?
	`, userID, name).Scan(&t.ID, &t.UserID, &t.Name, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// CreateTagParams holds the columns for a new tag row.
type CreateTagParams struct {
	ID        string
	UserID    string
	Name      string
	CreatedAt int64
	UpdatedAt int64
}

// CreateTag inserts a tag row.
func (q *Queries) CreateTag(ctx context.Context, arg CreateTagParams) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO tags (id, user_id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, arg.ID, arg.UserID, arg.Name, arg.CreatedAt, arg.UpdatedAt)
	return err
}

// CreateNoteTag inserts an association row.
func (q *Queries) CreateNoteTag(ctx context.Context, noteID, tagID string) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO note_tags (note_id, tag_id) VALUES (?, ?)
	`, noteID, tagID)
	return err
}

// ListNoteTagNames returns the current tag names for a note, in name order.
func (q *Queries) ListNoteTagNames(ctx context.Context, noteID string) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT t.name
		FROM note_tags nt
		JOIN tags t ON t.id = nt.tag_id
		WHERE nt.note_id = ?
		ORDER BY t.name
	`, noteID)
	if err != nil {
		return nil, fmt.Errorf("list note tags: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan tag name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tag names: %w", err)
	}
	return names, nil
}

// ListTagsWithCounts returns every tag of the user with its note count,
// ordered by name. Tags with zero notes are included.
func (q *Queries) ListTagsWithCounts(ctx context.Context, userID string) ([]TagCountRow, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT t.id, t.user_id, t.name, t.created_at, t.updated_at, COUNT(nt.note_id)
		FROM tags t
		LEFT JOIN note_tags nt ON nt.tag_id = t.id
		WHERE t.user_id = ?
		GROUP BY t.id, t.user_id, t.name, t.created_at, t.updated_at
		ORDER BY t.name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var tags []TagCountRow
	for rows.Next() {
		var t TagCountRow
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name, &t.CreatedAt, &t.UpdatedAt, &t.NoteCount); err != nil {
			return nil, fmt.Errorf("scan tag row: %w", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tag rows: %w", err)
	}
	return tags, nil
}

// IsUniqueViolation reports whether err is a SQLite unique constraint
// failure (duplicate email or tag name).
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

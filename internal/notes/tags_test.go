package notes_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/blocknote-app/blocknote/internal/notes"
)

// TestTags_ReconcileReusesExistingRows tests that assigning the same tag name
// to several notes reuses one tag row per user instead of creating
// duplicates.
func TestTags_ReconcileReusesExistingRows(t *testing.T) {
	svc, _, userID := newTestService(t)
	ctx := context.Background()

	seedNote(t, svc, userID, "first", "body", "project")
	seedNote(t, svc, userID, "second", "body", "project")

	tags, err := svc.ListTags(ctx, userID)
	if err != nil {
		t.Fatalf("ListTags failed: %v", err)
	}
	if len(tags.Tags) != 1 {
		t.Fatalf("want a single project tag row, got %v", tags.Tags)
	}
	if tags.Tags[0].NoteCount != 2 {
		t.Fatalf("want note count 2, got %d", tags.Tags[0].NoteCount)
	}
}

// TestTags_ReconcileIsDeterministic tests delete-then-insert semantics:
// reassigning the same set twice leaves the association unchanged, and
// duplicates in the input collapse to one link.
func TestTags_ReconcileIsDeterministic(t *testing.T) {
	svc, _, userID := newTestService(t)
	ctx := context.Background()

	created := seedNote(t, svc, userID, "note", "body", "a", "b")

	same := []string{"a", "b", "a", "b"}
	updated, err := svc.Update(ctx, userID, created.ID, notes.UpdateParams{Tags: &same})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if !reflect.DeepEqual(updated.Tags, []string{"a", "b"}) {
		t.Fatalf("duplicates should collapse in input order, got %v", updated.Tags)
	}

	got, err := svc.Get(ctx, userID, created.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !reflect.DeepEqual(got.Tags, []string{"a", "b"}) {
		t.Fatalf("association changed by no-op reassignment: %v", got.Tags)
	}
}

// TestTags_ReconcileReplacesWholeSet tests that an update's tag list fully
// replaces the previous association and that removed tags survive as
// zero-count rows.
func TestTags_ReconcileReplacesWholeSet(t *testing.T) {
	svc, _, userID := newTestService(t)
	ctx := context.Background()

	created := seedNote(t, svc, userID, "note", "body", "old-a", "old-b")

	replacement := []string{"new"}
	updated, err := svc.Update(ctx, userID, created.ID, notes.UpdateParams{Tags: &replacement})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if !reflect.DeepEqual(updated.Tags, []string{"new"}) {
		t.Fatalf("want tags [new], got %v", updated.Tags)
	}

	tags, err := svc.ListTags(ctx, userID)
	if err != nil {
		t.Fatalf("ListTags failed: %v", err)
	}
	counts := map[string]int{}
	for _, tag := range tags.Tags {
		counts[tag.Name] = tag.NoteCount
	}
	want := map[string]int{"old-a": 0, "old-b": 0, "new": 1}
	if !reflect.DeepEqual(counts, want) {
		t.Fatalf("want counts %v, got %v", want, counts)
	}
}

// TestTags_RejectsEmptyName tests that an empty tag name fails validation and
// rolls back the whole update.
func TestTags_RejectsEmptyName(t *testing.T) {
	svc, _, userID := newTestService(t)
	ctx := context.Background()

	created := seedNote(t, svc, userID, "note", "body", "keep")

	bad := []string{"fine", ""}
	if _, err := svc.Update(ctx, userID, created.ID, notes.UpdateParams{Tags: &bad}); err == nil {
		t.Fatal("empty tag name accepted")
	}

	got, err := svc.Get(ctx, userID, created.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !reflect.DeepEqual(got.Tags, []string{"keep"}) {
		t.Fatalf("failed update must not change tags, got %v", got.Tags)
	}
}

// TestTags_ListOrderedByName tests that the tag list is sorted by name.
func TestTags_ListOrderedByName(t *testing.T) {
	svc, _, userID := newTestService(t)
	ctx := context.Background()

	seedNote(t, svc, userID, "note", "body", "zebra", "apple", "mango")

	tags, err := svc.ListTags(ctx, userID)
	if err != nil {
		t.Fatalf("ListTags failed: %v", err)
	}
	var names []string
	for _, tag := range tags.Tags {
		names = append(names, tag.Name)
	}
	if !reflect.DeepEqual(names, []string{"apple", "mango", "zebra"}) {
		t.Fatalf("want name order, got %v", names)
	}
	if tags.Total != 3 {
		t.Fatalf("want total 3, got %d", tags.Total)
	}
}

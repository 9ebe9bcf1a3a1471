package notes_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/blocknote-app/blocknote/internal/notes"
)

// seedNote creates a note and fails the test on error.
func seedNote(t *testing.T, svc *notes.Service, userID, title, body string, tags ...string) *notes.Note {
	t.Helper()
	created, err := svc.Create(context.Background(), userID, notes.CreateParams{
		Title:   title,
		Content: simpleContentJSON(t, body),
		Tags:    tags,
	})
	if err != nil {
		t.Fatalf("seed note %q: %v", title, err)
	}
	return created
}

// TestSearch_QueryMatchesTitleAndContent tests case-insensitive substring
// matching over both the title and the extracted block text.
func TestSearch_QueryMatchesTitleAndContent(t *testing.T) {
	svc, _, userID := newTestService(t)
	ctx := context.Background()

	seedNote(t, svc, userID, "Meeting Notes", "discussed the roadmap")
	seedNote(t, svc, userID, "shopping", "buy a MEETING room whiteboard")
	seedNote(t, svc, userID, "recipes", "pasta carbonara")

	result, err := svc.List(ctx, userID, notes.SearchParams{Query: "meeting"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if result.Total != 2 {
		t.Fatalf("want 2 matches for %q, got %d", "meeting", result.Total)
	}

	result, err = svc.List(ctx, userID, notes.SearchParams{Query: "CARBONARA"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if result.Total != 1 || result.Notes[0].Title != "recipes" {
		t.Fatalf("uppercase query should match content text, got %+v", result.Notes)
	}

	result, err = svc.List(ctx, userID, notes.SearchParams{Query: "zebra"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if result.Total != 0 || len(result.Notes) != 0 {
		t.Fatalf("want no matches for zebra, got %+v", result)
	}
}

// TestSearch_TagFilterUsesOrSemantics tests that supplying several tags
// selects notes carrying at least one of them, with exact case-sensitive
// name matching.
func TestSearch_TagFilterUsesOrSemantics(t *testing.T) {
	svc, _, userID := newTestService(t)
	ctx := context.Background()

	seedNote(t, svc, userID, "a", "body", "work")
	seedNote(t, svc, userID, "b", "body", "home")
	seedNote(t, svc, userID, "c", "body", "work", "home")
	seedNote(t, svc, userID, "d", "body")
	seedNote(t, svc, userID, "e", "body", "Work") // distinct from "work"

	result, err := svc.List(ctx, userID, notes.SearchParams{Tags: []string{"work", "home"}})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if result.Total != 3 {
		t.Fatalf("want 3 notes for work OR home, got %d", result.Total)
	}

	result, err = svc.List(ctx, userID, notes.SearchParams{Tags: []string{"Work"}})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if result.Total != 1 || result.Notes[0].Title != "e" {
		t.Fatalf("tag match must be case-sensitive, got %+v", result.Notes)
	}
}

// TestSearch_ArchiveFilter tests the three-way archive narrowing: omitted
// returns everything, true only archived, false only active.
func TestSearch_ArchiveFilter(t *testing.T) {
	svc, _, userID := newTestService(t)
	ctx := context.Background()

	active := seedNote(t, svc, userID, "active", "body")
	archived := seedNote(t, svc, userID, "archived", "body")
	flag := true
	if _, err := svc.Update(ctx, userID, archived.ID, notes.UpdateParams{IsArchived: &flag}); err != nil {
		t.Fatalf("archive note: %v", err)
	}

	all, err := svc.List(ctx, userID, notes.SearchParams{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if all.Total != 2 {
		t.Fatalf("unfiltered list should include archived notes, got %d", all.Total)
	}

	onlyArchived := true
	result, err := svc.List(ctx, userID, notes.SearchParams{IsArchived: &onlyArchived})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if result.Total != 1 || result.Notes[0].ID != archived.ID {
		t.Fatalf("want only archived note, got %+v", result.Notes)
	}

	onlyActive := false
	result, err = svc.List(ctx, userID, notes.SearchParams{IsArchived: &onlyActive})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if result.Total != 1 || result.Notes[0].ID != active.ID {
		t.Fatalf("want only active note, got %+v", result.Notes)
	}
}

// TestSearch_PaginationBoundaries tests page math with 5 notes and limit 2:
// page 3 holds the last note, page 4 is empty, and total always reports the
// full match count.
func TestSearch_PaginationBoundaries(t *testing.T) {
	svc, _, userID := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		seedNote(t, svc, userID, fmt.Sprintf("note-%d", i), "body")
	}

	cases := []struct {
		page      int
		wantCount int
	}{
		{1, 2},
		{2, 2},
		{3, 1},
		{4, 0},
	}
	for _, tc := range cases {
		result, err := svc.List(ctx, userID, notes.SearchParams{Page: tc.page, Limit: 2})
		if err != nil {
			t.Fatalf("List page %d failed: %v", tc.page, err)
		}
		if len(result.Notes) != tc.wantCount {
			t.Fatalf("page %d: want %d notes, got %d", tc.page, tc.wantCount, len(result.Notes))
		}
		if result.Total != 5 {
			t.Fatalf("page %d: want total 5, got %d", tc.page, result.Total)
		}
		if result.Page != tc.page || result.Limit != 2 {
			t.Fatalf("page %d: echo mismatch: %+v", tc.page, result)
		}
	}
}

// TestSearch_NormalizesPageAndLimit tests defaulting: page below 1 becomes 1,
// limit 0 becomes the default, and oversized limits clamp to the maximum.
func TestSearch_NormalizesPageAndLimit(t *testing.T) {
	svc, _, userID := newTestService(t)
	ctx := context.Background()

	seedNote(t, svc, userID, "only", "body")

	result, err := svc.List(ctx, userID, notes.SearchParams{Page: -3, Limit: 0})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if result.Page != 1 || result.Limit != notes.DefaultLimit {
		t.Fatalf("want page 1 limit %d, got page %d limit %d", notes.DefaultLimit, result.Page, result.Limit)
	}

	result, err = svc.List(ctx, userID, notes.SearchParams{Limit: 10_000})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if result.Limit != notes.MaxLimit {
		t.Fatalf("want limit clamped to %d, got %d", notes.MaxLimit, result.Limit)
	}
}

// TestSearch_CombinedFilters tests the full pipeline: tag narrowing, archive
// filter, and text query applied together.
func TestSearch_CombinedFilters(t *testing.T) {
	svc, _, userID := newTestService(t)
	ctx := context.Background()

	match := seedNote(t, svc, userID, "project plan", "launch checklist", "work")
	seedNote(t, svc, userID, "project ideas", "random thoughts", "personal")
	buried := seedNote(t, svc, userID, "old project plan", "launch checklist", "work")
	flag := true
	if _, err := svc.Update(ctx, userID, buried.ID, notes.UpdateParams{IsArchived: &flag}); err != nil {
		t.Fatalf("archive note: %v", err)
	}

	onlyActive := false
	result, err := svc.List(ctx, userID, notes.SearchParams{
		Query:      "launch",
		Tags:       []string{"work"},
		IsArchived: &onlyActive,
	})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if result.Total != 1 || result.Notes[0].ID != match.ID {
		t.Fatalf("combined filters: want exactly %s, got %+v", match.ID, result.Notes)
	}
}

// TestSearch_ScopedToUser tests that one user's list never includes another
// user's notes even with identical filters.
func TestSearch_ScopedToUser(t *testing.T) {
	svc, store, userID := newTestService(t)
	ctx := context.Background()
	otherID := createTestUser(t, store, "other@test.com")

	seedNote(t, svc, userID, "mine", "body", "shared-name")
	if _, err := svc.Create(ctx, otherID, notes.CreateParams{
		Title:   "theirs",
		Content: simpleContentJSON(t, "body"),
		Tags:    []string{"shared-name"},
	}); err != nil {
		t.Fatalf("create other user note: %v", err)
	}

	result, err := svc.List(ctx, userID, notes.SearchParams{Tags: []string{"shared-name"}})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if result.Total != 1 || result.Notes[0].Title != "mine" {
		t.Fatalf("list leaked across users: %+v", result.Notes)
	}
}

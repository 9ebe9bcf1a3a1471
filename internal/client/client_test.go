package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/blocknote-app/blocknote/internal/content"
	"github.com/blocknote-app/blocknote/internal/notes"
)

type manualClock struct{ now time.Time }

func (c *manualClock) Now() time.Time          { return c.now }
func (c *manualClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

// fakeAPI implements API with per-method hooks and call counters.
type fakeAPI struct {
	listCalls   int
	getCalls    int
	updateCalls int

	onList   func(params notes.SearchParams) (*notes.ListResult, error)
	onGet    func(id string) (*notes.Note, error)
	onCreate func(params notes.CreateParams) (*notes.Note, error)
	onUpdate func(id string, params notes.UpdateParams) (*notes.Note, error)
	onDelete func(id string) error
}

func (f *fakeAPI) ListNotes(_ context.Context, params notes.SearchParams) (*notes.ListResult, error) {
	f.listCalls++
	if f.onList != nil {
		return f.onList(params)
	}
	return &notes.ListResult{Notes: []notes.Note{}, Page: 1, Limit: notes.DefaultLimit}, nil
}

func (f *fakeAPI) GetNote(_ context.Context, id string) (*notes.Note, error) {
	f.getCalls++
	if f.onGet != nil {
		return f.onGet(id)
	}
	n := testNote(id, "remote")
	return &n, nil
}

func (f *fakeAPI) CreateNote(_ context.Context, params notes.CreateParams) (*notes.Note, error) {
	if f.onCreate != nil {
		return f.onCreate(params)
	}
	n := testNote("new-id", params.Title)
	return &n, nil
}

func (f *fakeAPI) UpdateNote(_ context.Context, id string, params notes.UpdateParams) (*notes.Note, error) {
	f.updateCalls++
	if f.onUpdate != nil {
		return f.onUpdate(id, params)
	}
	n := testNote(id, "updated")
	if params.Title != nil {
		n.Title = *params.Title
	}
	return &n, nil
}

func (f *fakeAPI) DeleteNote(_ context.Context, id string) error {
	if f.onDelete != nil {
		return f.onDelete(id)
	}
	return nil
}

func (f *fakeAPI) ListTags(context.Context) (*notes.TagListResult, error) {
	return &notes.TagListResult{Tags: []notes.TagInfo{}}, nil
}

func testNote(id, title string) notes.Note {
	return notes.Note{
		ID:      id,
		UserID:  "user-1",
		Title:   title,
		Content: content.Content{Time: 1, Blocks: []content.Block{}, Version: content.EditorVersion},
		Tags:    []string{},
	}
}

func newTestClient() (*Client, *fakeAPI, *manualClock) {
	api := &fakeAPI{}
	c := New(api)
	clock := newManualClock()
	c.SetClock(clock)
	c.Cache().SetClock(clock)
	return c, api, clock
}

// TestClient_Get_ServesFreshCacheEntry tests the TTL discipline: a second
// read within the TTL hits the cache, a read after expiry refetches.
func TestClient_Get_ServesFreshCacheEntry(t *testing.T) {
	c, api, clock := newTestClient()
	ctx := context.Background()

	if _, err := c.Get(ctx, "n1"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if _, err := c.Get(ctx, "n1"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if api.getCalls != 1 {
		t.Fatalf("fresh cache entry should serve the second read, got %d calls", api.getCalls)
	}

	clock.Advance(DefaultTTL + time.Second)
	if _, err := c.Get(ctx, "n1"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if api.getCalls != 2 {
		t.Fatalf("expired entry should refetch, got %d calls", api.getCalls)
	}
}

// TestClient_List_InvalidatedByMutation tests that any successful mutation
// stales every cached list, forcing the next read through the network.
func TestClient_List_InvalidatedByMutation(t *testing.T) {
	c, api, _ := newTestClient()
	ctx := context.Background()
	params := notes.SearchParams{Query: "x", Tags: []string{"b", "a"}}

	if _, err := c.List(ctx, params); err != nil {
		t.Fatalf("List failed: %v", err)
	}
	// Tag order must not defeat the cache key.
	if _, err := c.List(ctx, notes.SearchParams{Query: "x", Tags: []string{"a", "b"}}); err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if api.listCalls != 1 {
		t.Fatalf("equivalent queries should share an entry, got %d calls", api.listCalls)
	}

	if _, err := c.Create(ctx, notes.CreateParams{Title: "new"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := c.List(ctx, params); err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if api.listCalls != 2 {
		t.Fatalf("mutation should stale cached lists, got %d calls", api.listCalls)
	}
}

// TestClient_Update_OptimisticThenCommit tests that the patch lands in the
// cache before the network call and the server copy replaces it after.
func TestClient_Update_OptimisticThenCommit(t *testing.T) {
	c, api, _ := newTestClient()
	ctx := context.Background()

	if _, err := c.Get(ctx, "n1"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	var duringCall string
	api.onUpdate = func(id string, params notes.UpdateParams) (*notes.Note, error) {
		if cached, ok := c.Cache().GetDetail(id); ok {
			duringCall = cached.Title
		}
		n := testNote(id, "server title")
		return &n, nil
	}

	title := "optimistic title"
	got, err := c.Update(ctx, "n1", notes.UpdateParams{Title: &title})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if duringCall != "optimistic title" {
		t.Fatalf("cache during call: want optimistic title, got %q", duringCall)
	}
	if got.Title != "server title" {
		t.Fatalf("want server copy returned, got %q", got.Title)
	}
	cached, ok := c.Cache().GetDetail("n1")
	if !ok || cached.Title != "server title" {
		t.Fatalf("want server copy committed to cache, got %+v", cached)
	}
}

// TestClient_Update_RollbackOnFailure tests the rollback scenario: the cached
// note shows the optimistic title during the call and the original title
// after the server rejects it.
func TestClient_Update_RollbackOnFailure(t *testing.T) {
	c, api, _ := newTestClient()
	ctx := context.Background()

	api.onGet = func(id string) (*notes.Note, error) {
		n := testNote(id, "original")
		return &n, nil
	}
	if _, err := c.Get(ctx, "n1"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	boom := errors.New("server rejected update")
	api.onUpdate = func(string, notes.UpdateParams) (*notes.Note, error) { return nil, boom }

	title := "doomed"
	if _, err := c.Update(ctx, "n1", notes.UpdateParams{Title: &title}); !errors.Is(err, boom) {
		t.Fatalf("want the server error surfaced, got %v", err)
	}

	cached, ok := c.Cache().GetDetail("n1")
	if !ok || cached.Title != "original" {
		t.Fatalf("want rollback to original, got %+v", cached)
	}
}

// TestClient_Update_SupersededRollbackIsNoop tests the single-flight-per-id
// discipline: when a second mutation starts before the first settles, the
// first failure must not clobber the second's optimistic state.
func TestClient_Update_SupersededRollbackIsNoop(t *testing.T) {
	c, api, _ := newTestClient()
	ctx := context.Background()

	api.onGet = func(id string) (*notes.Note, error) {
		n := testNote(id, "original")
		return &n, nil
	}
	if _, err := c.Get(ctx, "n1"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	boom := errors.New("first update failed")
	second := "second"
	api.onUpdate = func(id string, params notes.UpdateParams) (*notes.Note, error) {
		if *params.Title == "first" {
			// A newer mutation lands while the first is in flight.
			api.onUpdate = func(id string, params notes.UpdateParams) (*notes.Note, error) {
				n := testNote(id, *params.Title)
				return &n, nil
			}
			if _, err := c.Update(ctx, id, notes.UpdateParams{Title: &second}); err != nil {
				t.Fatalf("second Update failed: %v", err)
			}
			return nil, boom
		}
		n := testNote(id, *params.Title)
		return &n, nil
	}

	first := "first"
	if _, err := c.Update(ctx, "n1", notes.UpdateParams{Title: &first}); !errors.Is(err, boom) {
		t.Fatalf("want first update's error, got %v", err)
	}

	cached, ok := c.Cache().GetDetail("n1")
	if !ok || cached.Title != "second" {
		t.Fatalf("superseded rollback must not clobber newer state, got %+v", cached)
	}
}

// TestClient_Delete_OptimisticWithRestore tests that the detail entry
// disappears immediately and reappears only when the server rejects the
// delete.
func TestClient_Delete_OptimisticWithRestore(t *testing.T) {
	c, api, _ := newTestClient()
	ctx := context.Background()

	api.onGet = func(id string) (*notes.Note, error) {
		n := testNote(id, "keeper")
		return &n, nil
	}
	if _, err := c.Get(ctx, "n1"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	var goneDuringCall bool
	boom := errors.New("delete rejected")
	api.onDelete = func(id string) error {
		_, ok := c.Cache().GetDetail(id)
		goneDuringCall = !ok
		return boom
	}

	if err := c.Delete(ctx, "n1"); !errors.Is(err, boom) {
		t.Fatalf("want server error surfaced, got %v", err)
	}
	if !goneDuringCall {
		t.Fatal("detail entry should be gone during the network call")
	}
	cached, ok := c.Cache().GetDetail("n1")
	if !ok || cached.Title != "keeper" {
		t.Fatalf("failed delete should restore the entry, got %+v", cached)
	}

	// A successful delete stays deleted.
	api.onDelete = nil
	if err := c.Delete(ctx, "n1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := c.Cache().GetDetail("n1"); ok {
		t.Fatal("successful delete should leave no detail entry")
	}
}

// TestClient_Update_RejectsInvalidContentLocally tests that a bad content
// patch fails before any network traffic or cache change.
func TestClient_Update_RejectsInvalidContentLocally(t *testing.T) {
	c, api, _ := newTestClient()
	ctx := context.Background()

	if _, err := c.Get(ctx, "n1"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	before, _ := c.Cache().GetDetail("n1")

	_, err := c.Update(ctx, "n1", notes.UpdateParams{Content: []byte(`{"blocks":"nope"}`)})
	if err == nil {
		t.Fatal("invalid content accepted")
	}
	if api.updateCalls != 0 {
		t.Fatalf("invalid patch must not reach the network, got %d calls", api.updateCalls)
	}
	after, _ := c.Cache().GetDetail("n1")
	if before.Title != after.Title {
		t.Fatal("invalid patch must not change the cache")
	}
}

package client

import (
	"context"
	"sync"

	"github.com/blocknote-app/blocknote/internal/content"
	"github.com/blocknote-app/blocknote/internal/notes"
)

// Client is a read-through cache over an API with optimistic mutations.
// Updates and deletes apply to the cache before the network call and are
// reconciled with the server response: a success commits the server's copy,
// a failure rolls the cache back to the pre-mutation snapshot.
//
// Mutations on the same note id carry a generation number. When a second
// mutation starts before the first settles, it supersedes the first: the
// first outcome no longer touches the cache, so a stale rollback cannot
// clobber the newer optimistic state.
type Client struct {
	api   API
	cache *Cache
	clock Clock

	mu   sync.Mutex
	gens map[string]uint64
}

// New creates a client over the given API with a fresh cache.
func New(api API) *Client {
	return &Client{
		api:   api,
		cache: NewCache(DefaultTTL),
		clock: realClock{},
		gens:  make(map[string]uint64),
	}
}

// Cache exposes the underlying cache, mainly for tests and manual
// invalidation.
func (c *Client) Cache() *Cache {
	return c.cache
}

// SetClock replaces the clock used for optimistic timestamps. Intended for
// testing.
func (c *Client) SetClock(clock Clock) {
	c.clock = clock
}

// List returns notes for the search parameters, serving a fresh cache entry
// when one exists.
func (c *Client) List(ctx context.Context, params notes.SearchParams) (*notes.ListResult, error) {
	if cached, ok := c.cache.GetList(params); ok {
		return cached, nil
	}
	result, err := c.api.ListNotes(ctx, params)
	if err != nil {
		return nil, err
	}
	c.cache.SetList(params, result)
	return result, nil
}

// Get returns a note by id, serving a fresh cache entry when one exists.
func (c *Client) Get(ctx context.Context, id string) (*notes.Note, error) {
	if cached, ok := c.cache.GetDetail(id); ok {
		return cached, nil
	}
	note, err := c.api.GetNote(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.SetDetail(note)
	return note, nil
}

// Tags returns the tag list. Tag results are not cached; they are cheap and
// change with every reconciliation.
func (c *Client) Tags(ctx context.Context) (*notes.TagListResult, error) {
	return c.api.ListTags(ctx)
}

// Create creates a note. No optimistic entry exists before the server
// responds, since the id is server-assigned; on success the server note goes
// into the detail cache and list entries are staled.
func (c *Client) Create(ctx context.Context, params notes.CreateParams) (*notes.Note, error) {
	note, err := c.api.CreateNote(ctx, params)
	if err != nil {
		return nil, err
	}
	c.cache.SetDetail(note)
	c.cache.InvalidateLists()
	return note, nil
}

// Update applies a partial update optimistically: the patch is merged onto
// the cached note immediately, then reconciled with the server response.
func (c *Client) Update(ctx context.Context, id string, params notes.UpdateParams) (*notes.Note, error) {
	// Validate content locally so a bad patch never becomes optimistic state.
	var patched *content.Content
	if params.Content != nil {
		resolved, err := content.Validate(params.Content)
		if err != nil {
			return nil, err
		}
		patched = &resolved
	}

	gen, snapshot, hadSnapshot := c.beginMutation(id)

	if cached, ok := c.cache.GetDetail(id); ok {
		c.cache.SetDetail(c.mergePatch(cached, params, patched))
	}

	note, err := c.api.UpdateNote(ctx, id, params)
	if err != nil {
		c.rollback(id, gen, snapshot, hadSnapshot)
		return nil, err
	}

	c.commit(id, gen, note)
	c.cache.InvalidateLists()
	return note, nil
}

// Delete removes a note optimistically: the detail entry disappears at once
// and is restored only if the server rejects the delete.
func (c *Client) Delete(ctx context.Context, id string) error {
	gen, snapshot, hadSnapshot := c.beginMutation(id)
	c.cache.RemoveDetail(id)

	if err := c.api.DeleteNote(ctx, id); err != nil {
		c.rollback(id, gen, snapshot, hadSnapshot)
		return err
	}

	c.bumpIfCurrent(id, gen)
	c.cache.InvalidateLists()
	return nil
}

// beginMutation snapshots the current cached note and claims the next
// generation for the id.
func (c *Client) beginMutation(id string) (gen uint64, snapshot *notes.Note, hadSnapshot bool) {
	snapshot, hadSnapshot = c.cache.GetDetail(id)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[id]++
	return c.gens[id], snapshot, hadSnapshot
}

// isCurrent reports whether gen is still the latest mutation for the id.
func (c *Client) isCurrent(id string, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[id] == gen
}

// commit installs the server note unless a later mutation superseded this
// one.
func (c *Client) commit(id string, gen uint64, note *notes.Note) {
	if c.isCurrent(id, gen) {
		c.cache.SetDetail(note)
	}
}

// rollback restores the pre-mutation snapshot. A superseded rollback is a
// no-op so it cannot clobber a newer mutation's optimistic state.
func (c *Client) rollback(id string, gen uint64, snapshot *notes.Note, hadSnapshot bool) {
	if !c.isCurrent(id, gen) {
		return
	}
	if hadSnapshot {
		c.cache.SetDetail(snapshot)
	} else {
		c.cache.RemoveDetail(id)
	}
}

// bumpIfCurrent retires the generation after a successful delete so a
// concurrent stale outcome cannot resurrect the entry.
func (c *Client) bumpIfCurrent(id string, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[id] == gen {
		c.gens[id]++
	}
}

// mergePatch applies an update onto a cached note, stamping the optimistic
// timestamps the way the server would.
func (c *Client) mergePatch(cached *notes.Note, params notes.UpdateParams, patched *content.Content) *notes.Note {
	merged := *cached
	if params.Title != nil {
		merged.Title = *params.Title
	}
	if patched != nil {
		merged.Content = *patched
	}
	if params.Tags != nil {
		merged.Tags = append([]string(nil), (*params.Tags)...)
	}
	if params.IsArchived != nil {
		merged.IsArchived = *params.IsArchived
	}
	now := c.clock.Now().UTC()
	merged.UpdatedAt = now
	merged.LastEdited = now
	return &merged
}

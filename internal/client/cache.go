package client

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/blocknote-app/blocknote/internal/notes"
)

// DefaultTTL bounds how long a cache entry serves reads without a refetch.
const DefaultTTL = 5 * time.Minute

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type listEntry struct {
	result    *notes.ListResult
	fetchedAt time.Time
	stale     bool
}

type detailEntry struct {
	note      *notes.Note
	fetchedAt time.Time
}

// Cache holds list results keyed by their canonical query tuple and note
// details keyed by id. Entries age out after the TTL; list entries can also
// be marked stale early when a mutation changes what any list might contain.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	clock   Clock
	lists   map[string]listEntry
	details map[string]detailEntry
}

// NewCache creates a cache with the given TTL (DefaultTTL when ttl <= 0).
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		ttl:     ttl,
		clock:   realClock{},
		lists:   make(map[string]listEntry),
		details: make(map[string]detailEntry),
	}
}

// SetClock replaces the clock used by the cache. Intended for testing.
func (c *Cache) SetClock(clock Clock) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clock = clock
}

// listKey canonicalizes search parameters so logically equal queries share a
// cache entry regardless of tag order.
func listKey(params notes.SearchParams) string {
	tags := append([]string(nil), params.Tags...)
	sort.Strings(tags)

	archived := "any"
	if params.IsArchived != nil {
		archived = fmt.Sprintf("%t", *params.IsArchived)
	}
	return fmt.Sprintf("q=%s&tags=%s&archived=%s&page=%d&limit=%d",
		params.Query, strings.Join(tags, ","), archived, params.Page, params.Limit)
}

// GetList returns the cached result for the query tuple when present, fresh,
// and not marked stale.
func (c *Cache) GetList(params notes.SearchParams) (*notes.ListResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.lists[listKey(params)]
	if !ok || entry.stale || c.clock.Now().Sub(entry.fetchedAt) >= c.ttl {
		return nil, false
	}
	return entry.result, true
}

// SetList stores a list result for the query tuple.
func (c *Cache) SetList(params notes.SearchParams, result *notes.ListResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lists[listKey(params)] = listEntry{result: result, fetchedAt: c.clock.Now()}
}

// InvalidateLists marks every list entry stale. Mutations call this instead
// of patching individual lists, since any list might gain or lose the note.
func (c *Cache) InvalidateLists() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.lists {
		entry.stale = true
		c.lists[key] = entry
	}
}

// GetDetail returns the cached note when present and fresh.
func (c *Cache) GetDetail(id string) (*notes.Note, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.details[id]
	if !ok || c.clock.Now().Sub(entry.fetchedAt) >= c.ttl {
		return nil, false
	}
	return entry.note, true
}

// SetDetail stores a note in the detail cache.
func (c *Cache) SetDetail(note *notes.Note) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.details[note.ID] = detailEntry{note: note, fetchedAt: c.clock.Now()}
}

// RemoveDetail drops a note from the detail cache.
func (c *Cache) RemoveDetail(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.details, id)
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lists = make(map[string]listEntry)
	c.details = make(map[string]detailEntry)
}

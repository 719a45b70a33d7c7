package catalog

import (
	"sync"

	"github.com/clipworks/evclip/internal/urlx"
)

// Cache holds the last bulk-sync payload for offline URL matching. Lookup
// tolerance matches the server's: related hosts with identical paths.
type Cache struct {
	mu     sync.RWMutex
	events []Event
	links  []OrganizerLink
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{}
}

// Update replaces the cache contents with a fresh sync payload.
func (c *Cache) Update(res *SyncResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = res.Events
	c.links = res.OrganizerLinks
}

// Len returns the number of cached events.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.events)
}

// Match resolves a URL against the cached events and organizer links. An
// event URL match wins over an organizer link; no hit returns no_match.
func (c *Cache) Match(pageURL string) *LookupResult {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for i := range c.events {
		if urlx.MatchFlexible(pageURL, c.events[i].NormalizedURL) {
			ev := c.events[i]
			return &LookupResult{MatchType: MatchEvent, Event: &ev}
		}
	}
	for i := range c.links {
		if urlx.MatchFlexible(pageURL, c.links[i].NormalizedURL) {
			if ev := c.eventByID(c.links[i].EventID); ev != nil {
				return &LookupResult{MatchType: MatchLinkDiscovery, Event: ev}
			}
		}
	}
	return &LookupResult{MatchType: MatchNone}
}

func (c *Cache) eventByID(id int64) *Event {
	for i := range c.events {
		if c.events[i].ID == id {
			ev := c.events[i]
			return &ev
		}
	}
	return nil
}

package session

import (
	"sync"
	"time"

	"resume-agent/internal/model"
)

// ttlCache is the in-process fallback tier. Size-bounded, safe for
// concurrent use; entries expire on the session's own TTL clock (measured
// from CreatedAt). The mutex is never held across anything that blocks.
type ttlCache struct {
	mu      sync.Mutex
	entries map[string]*model.Session
	order   []string // insertion order, for capacity eviction
	ttl     time.Duration
	maxSize int
}

func newTTLCache(ttl time.Duration, maxSize int) *ttlCache {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &ttlCache{
		entries: make(map[string]*model.Session),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

func (c *ttlCache) get(id string, now time.Time) (*model.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	if s.Expired(now, c.ttl) {
		delete(c.entries, id)
		return nil, false
	}
	copied := *s
	return &copied, true
}

func (c *ttlCache) put(s *model.Session) {
	copied := *s
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[copied.ID]; !exists {
		c.order = append(c.order, copied.ID)
	}
	c.entries[copied.ID] = &copied

	for len(c.entries) > c.maxSize && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

func (c *ttlCache) touch(id string, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.entries[id]; ok {
		s.LastActive = at
	}
}

// sweep removes expired entries and returns how many were dropped.
func (c *ttlCache) sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	kept := c.order[:0]
	for _, id := range c.order {
		s, ok := c.entries[id]
		if !ok {
			continue
		}
		if s.Expired(now, c.ttl) {
			delete(c.entries, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	c.order = kept
	return removed
}

func (c *ttlCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

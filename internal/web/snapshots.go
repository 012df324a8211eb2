package web

import (
	"sync"
	"time"

	"github.com/justestif/go-music-personality/internal/listening"
)

const defaultSnapshotTTL = 10 * time.Minute

type cachedSnapshot struct {
	snap     *listening.Snapshot
	storedAt time.Time
}

// SnapshotCache keeps the last snapshot fetched for each session so the
// personality partial can reuse it. The most recent Put wins.
type SnapshotCache struct {
	mu      sync.Mutex
	entries map[string]cachedSnapshot
	ttl     time.Duration
	now     func() time.Time
}

// NewSnapshotCache creates a cache whose entries live for ttl.
func NewSnapshotCache(ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{
		entries: make(map[string]cachedSnapshot),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the session's snapshot, or nil if absent or stale.
func (c *SnapshotCache) Get(sessionID string) *listening.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[sessionID]
	if !ok {
		return nil
	}
	if c.now().Sub(entry.storedAt) > c.ttl {
		delete(c.entries, sessionID)
		return nil
	}
	return entry.snap
}

// Put stores snap for the session and drops stale entries.
func (c *SnapshotCache) Put(sessionID string, snap *listening.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for id, entry := range c.entries {
		if now.Sub(entry.storedAt) > c.ttl {
			delete(c.entries, id)
		}
	}
	c.entries[sessionID] = cachedSnapshot{snap: snap, storedAt: now}
}

// Delete removes the session's snapshot.
func (c *SnapshotCache) Delete(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, sessionID)
}

// Len returns the number of cached snapshots.
func (c *SnapshotCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

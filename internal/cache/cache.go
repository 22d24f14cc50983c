package cache

import (
	"sync"
	"time"

	"urltree/pkg/types"
)

// SnapshotCache keeps built trees in memory. A snapshot's lifetime runs from
// the moment its tree was built, not from when it entered the cache, so a
// snapshot reloaded from disk expires on the same schedule it had before.
type SnapshotCache struct {
	mu        sync.RWMutex
	snapshots map[string]*types.Snapshot
	ttl       time.Duration
	maxSize   int
	now       func() time.Time

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a snapshot cache holding at most maxSize trees for ttl each.
func New(ttl time.Duration, maxSize int) *SnapshotCache {
	c := &SnapshotCache{
		snapshots: make(map[string]*types.Snapshot),
		ttl:       ttl,
		maxSize:   maxSize,
		now:       time.Now,
		done:      make(chan struct{}),
	}

	go c.sweep()

	return c
}

// Close stops the background sweep. It is safe to call more than once.
func (c *SnapshotCache) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// born is the instant a snapshot's lifetime starts: its build time, or the
// time it was cached for snapshots that never recorded one.
func born(snapshot *types.Snapshot) time.Time {
	if !snapshot.BuiltAt.IsZero() {
		return snapshot.BuiltAt
	}
	return snapshot.CachedAt
}

// Remaining returns how long snapshot stays fresh. Zero or negative means it
// has expired.
func (c *SnapshotCache) Remaining(snapshot *types.Snapshot) time.Duration {
	return c.ttl - c.now().Sub(born(snapshot))
}

// Fresh reports whether snapshot is still within the cache TTL.
func (c *SnapshotCache) Fresh(snapshot *types.Snapshot) bool {
	return c.Remaining(snapshot) > 0
}

// Get returns the snapshot stored under key, or nil if absent or expired.
func (c *SnapshotCache) Get(key string) *types.Snapshot {
	c.mu.RLock()
	snapshot := c.snapshots[key]
	c.mu.RUnlock()

	if snapshot == nil || !c.Fresh(snapshot) {
		return nil
	}
	return snapshot
}

// Set stores snapshot under key and stamps CachedAt. An already expired
// snapshot is not stored and Set reports false. Adding a new key to a full
// cache evicts the snapshot built longest ago.
func (c *SnapshotCache) Set(key string, snapshot *types.Snapshot) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot.CachedAt = c.now()
	if !c.Fresh(snapshot) {
		return false
	}
	if _, ok := c.snapshots[key]; !ok && len(c.snapshots) >= c.maxSize {
		c.evictOldestLocked()
	}
	c.snapshots[key] = snapshot
	return true
}

// Delete removes the snapshot stored under key.
func (c *SnapshotCache) Delete(key string) {
	c.mu.Lock()
	delete(c.snapshots, key)
	c.mu.Unlock()
}

func (c *SnapshotCache) evictOldestLocked() {
	var victim string
	var victimBorn time.Time
	for key, snapshot := range c.snapshots {
		if b := born(snapshot); victim == "" || b.Before(victimBorn) {
			victim, victimBorn = key, b
		}
	}
	if victim != "" {
		delete(c.snapshots, victim)
	}
}

func (c *SnapshotCache) sweep() {
	ticker := time.NewTicker(c.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.dropExpired()
		}
	}
}

func (c *SnapshotCache) dropExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, snapshot := range c.snapshots {
		if !c.Fresh(snapshot) {
			delete(c.snapshots, key)
		}
	}
}

// Size returns the number of stored snapshots, expired ones included until
// the next sweep.
func (c *SnapshotCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.snapshots)
}

// Clear removes every snapshot.
func (c *SnapshotCache) Clear() {
	c.mu.Lock()
	c.snapshots = make(map[string]*types.Snapshot)
	c.mu.Unlock()
}

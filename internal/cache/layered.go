package cache

import (
	"time"

	"go.uber.org/zap"

	"urltree/internal/logging"
	"urltree/pkg/types"
)

// Persistent is the durable tier behind the in-memory cache.
type Persistent interface {
	GetSnapshot(key string) (*types.Snapshot, error)
	SetSnapshot(snapshot *types.Snapshot, ttl time.Duration) error
}

// Layered serves snapshots from memory first and falls back to persistent
// storage, promoting disk hits into memory. Freshness is decided by the
// memory tier for both.
type Layered struct {
	memory     *SnapshotCache
	persistent Persistent
}

// NewLayered combines memory and persistent tiers. persistent may be nil.
func NewLayered(memory *SnapshotCache, persistent Persistent) *Layered {
	return &Layered{memory: memory, persistent: persistent}
}

// Get returns the snapshot for key from the first tier that has it.
func (l *Layered) Get(key string) (*types.Snapshot, bool) {
	if snapshot := l.memory.Get(key); snapshot != nil {
		return snapshot, true
	}
	if l.persistent == nil {
		return nil, false
	}

	snapshot, err := l.persistent.GetSnapshot(key)
	if err != nil {
		logging.L().Warn("persistent snapshot read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if snapshot == nil || !l.memory.Set(key, snapshot) {
		return nil, false
	}
	return snapshot, true
}

// Set writes the snapshot to both tiers. The disk entry expires together
// with the memory one. An expired snapshot is written nowhere; a persistent
// write failure is returned.
func (l *Layered) Set(key string, snapshot *types.Snapshot) error {
	snapshot.Key = key
	if !l.memory.Set(key, snapshot) || l.persistent == nil {
		return nil
	}
	return l.persistent.SetSnapshot(snapshot, l.memory.Remaining(snapshot))
}

// Invalidate drops the in-memory copy of key.
func (l *Layered) Invalidate(key string) {
	l.memory.Delete(key)
}

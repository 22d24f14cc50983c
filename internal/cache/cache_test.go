package cache

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"urltree/internal/tree"
	"urltree/pkg/types"
)

func newSnapshot(host string) *types.Snapshot {
	return &types.Snapshot{
		Tree:    tree.Result{{Host: host, Entries: []tree.Entry{tree.File("a.txt")}}},
		BuiltAt: time.Now(),
	}
}

func TestSnapshotCache_SetAndGet(t *testing.T) {
	cache := New(time.Minute, 10)
	defer cache.Close()

	snapshot := newSnapshot("h")
	cache.Set("files", snapshot)

	retrieved := cache.Get("files")
	if retrieved == nil {
		t.Fatal("Expected snapshot, got nil")
	}
	if retrieved.Tree[0].Host != "h" {
		t.Errorf("Expected host h, got %s", retrieved.Tree[0].Host)
	}
	if retrieved.CachedAt.IsZero() {
		t.Error("Expected CachedAt to be set")
	}
}

func TestSnapshotCache_Expiration(t *testing.T) {
	cache := New(50*time.Millisecond, 10)
	defer cache.Close()

	cache.Set("files", newSnapshot("h"))

	if retrieved := cache.Get("files"); retrieved == nil {
		t.Error("Expected snapshot to be available immediately")
	}

	time.Sleep(100 * time.Millisecond)

	if retrieved := cache.Get("files"); retrieved != nil {
		t.Error("Expected snapshot to be expired")
	}
}

func TestSnapshotCache_AgeCountsFromBuild(t *testing.T) {
	cache := New(time.Minute, 10)
	defer cache.Close()

	stale := newSnapshot("old")
	stale.BuiltAt = time.Now().Add(-time.Hour)
	if cache.Set("files", stale) {
		t.Error("Expected Set to refuse a snapshot older than the TTL")
	}
	if cache.Get("files") != nil {
		t.Error("Expected stale snapshot not to be served")
	}

	now := time.Now()
	cache.now = func() time.Time { return now }
	aging := newSnapshot("h")
	aging.BuiltAt = now.Add(-50 * time.Second)
	if !cache.Set("files", aging) {
		t.Fatal("Expected Set to store a fresh snapshot")
	}
	if got := cache.Remaining(aging); got != 10*time.Second {
		t.Errorf("Remaining() = %v, want 10s", got)
	}

	cache.now = func() time.Time { return now.Add(11 * time.Second) }
	if cache.Get("files") != nil {
		t.Error("Expected snapshot to expire a TTL after it was built")
	}
	cache.dropExpired()
	if cache.Size() != 0 {
		t.Errorf("Expected sweep to drop expired snapshot, size %d", cache.Size())
	}
}

func TestSnapshotCache_MaxSize(t *testing.T) {
	maxSize := 3
	cache := New(time.Minute, maxSize)
	defer cache.Close()

	for i := 0; i < maxSize; i++ {
		cache.Set(fmt.Sprintf("key%d", i), newSnapshot(fmt.Sprintf("h%d", i)))
		time.Sleep(time.Millisecond)
	}

	if cache.Size() != maxSize {
		t.Errorf("Expected cache size %d, got %d", maxSize, cache.Size())
	}

	cache.Set("new", newSnapshot("new"))

	if cache.Size() != maxSize {
		t.Errorf("Expected cache size %d after eviction, got %d", maxSize, cache.Size())
	}
	if cache.Get("new") == nil {
		t.Error("Expected new item to be in cache")
	}
	if cache.Get("key0") != nil {
		t.Error("Expected oldest item to be evicted")
	}

	// Overwriting an existing key does not evict
	cache.Set("new", newSnapshot("again"))
	if cache.Get("key1") == nil {
		t.Error("Overwrite should not evict other entries")
	}
}

func TestSnapshotCache_DeleteAndClear(t *testing.T) {
	cache := New(time.Minute, 10)
	defer cache.Close()

	for i := 0; i < 5; i++ {
		cache.Set(fmt.Sprintf("key%d", i), newSnapshot("h"))
	}

	cache.Delete("key0")
	if cache.Size() != 4 {
		t.Errorf("Expected cache size 4 after delete, got %d", cache.Size())
	}

	cache.Clear()
	if cache.Size() != 0 {
		t.Errorf("Expected cache size 0 after clear, got %d", cache.Size())
	}
}

type fakePersistent struct {
	snapshots map[string]*types.Snapshot
	ttls      map[string]time.Duration
	getErr    error
	setErr    error
}

func newFakePersistent() *fakePersistent {
	return &fakePersistent{
		snapshots: make(map[string]*types.Snapshot),
		ttls:      make(map[string]time.Duration),
	}
}

func (f *fakePersistent) GetSnapshot(key string) (*types.Snapshot, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.snapshots[key], nil
}

func (f *fakePersistent) SetSnapshot(snapshot *types.Snapshot, ttl time.Duration) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.snapshots[snapshot.Key] = snapshot
	f.ttls[snapshot.Key] = ttl
	return nil
}

func TestLayered_SetWritesBothTiers(t *testing.T) {
	memory := New(time.Minute, 10)
	defer memory.Close()
	disk := newFakePersistent()
	layered := NewLayered(memory, disk)

	if err := layered.Set("files", newSnapshot("h")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if memory.Get("files") == nil {
		t.Error("Expected snapshot in memory")
	}
	if disk.snapshots["files"] == nil {
		t.Fatal("Expected snapshot on disk")
	}
	if ttl := disk.ttls["files"]; ttl <= 0 || ttl > time.Minute {
		t.Errorf("Expected disk TTL within the cache TTL, got %v", ttl)
	}
}

func TestLayered_PromotesDiskHits(t *testing.T) {
	memory := New(time.Minute, 10)
	defer memory.Close()
	disk := newFakePersistent()
	snapshot := newSnapshot("disk")
	snapshot.Key = "files"
	disk.snapshots["files"] = snapshot

	layered := NewLayered(memory, disk)
	got, ok := layered.Get("files")
	if !ok || got.Tree[0].Host != "disk" {
		t.Fatalf("Get() = %v, %v", got, ok)
	}
	if memory.Get("files") == nil {
		t.Error("Expected disk hit to be promoted to memory")
	}
}

func TestLayered_StaleDiskSnapshotIgnored(t *testing.T) {
	memory := New(time.Minute, 10)
	defer memory.Close()
	disk := newFakePersistent()
	snapshot := newSnapshot("old")
	snapshot.BuiltAt = time.Now().Add(-time.Hour)
	disk.snapshots["files"] = snapshot

	layered := NewLayered(memory, disk)
	if _, ok := layered.Get("files"); ok {
		t.Error("Expected stale snapshot to be ignored")
	}
}

func TestLayered_PromotedSnapshotKeepsItsAge(t *testing.T) {
	memory := New(time.Minute, 10)
	defer memory.Close()
	disk := newFakePersistent()
	snapshot := newSnapshot("disk")
	snapshot.BuiltAt = time.Now().Add(-50 * time.Second)
	disk.snapshots["files"] = snapshot

	layered := NewLayered(memory, disk)
	if _, ok := layered.Get("files"); !ok {
		t.Fatal("Expected disk hit")
	}

	memory.now = func() time.Time { return time.Now().Add(15 * time.Second) }
	delete(disk.snapshots, "files")
	if _, ok := layered.Get("files"); ok {
		t.Error("Expected promoted snapshot to expire a TTL after it was built")
	}
}

func TestLayered_Errors(t *testing.T) {
	memory := New(time.Minute, 10)
	defer memory.Close()
	disk := newFakePersistent()
	disk.getErr = errors.New("read failed")
	disk.setErr = errors.New("write failed")

	layered := NewLayered(memory, disk)
	if _, ok := layered.Get("files"); ok {
		t.Error("Expected miss on read error")
	}
	if err := layered.Set("files", newSnapshot("h")); err == nil {
		t.Error("Expected write error")
	}
	if _, ok := layered.Get("files"); !ok {
		t.Error("Memory tier should still serve after a disk write failure")
	}

	layered.Invalidate("files")
	if _, ok := layered.Get("files"); ok {
		t.Error("Expected miss after invalidate")
	}
}

func TestLayered_MemoryOnly(t *testing.T) {
	memory := New(time.Minute, 10)
	defer memory.Close()
	layered := NewLayered(memory, nil)

	if _, ok := layered.Get("files"); ok {
		t.Error("Expected miss")
	}
	if err := layered.Set("files", newSnapshot("h")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, ok := layered.Get("files"); !ok {
		t.Error("Expected hit")
	}
}

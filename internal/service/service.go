// Package service builds the host trees from the upstream source and keeps
// the latest snapshot cached.
package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"urltree/internal/logging"
	"urltree/internal/metrics"
	"urltree/internal/source"
	"urltree/internal/tree"
	"urltree/pkg/types"
)

// SnapshotKey is the cache key of the served tree.
const SnapshotKey = "files"

// Store keeps serialized snapshots.
type Store interface {
	Get(key string) (*types.Snapshot, bool)
	Set(key string, snapshot *types.Snapshot) error
}

// PayloadRecorder keeps the raw upstream body for debugging.
type PayloadRecorder interface {
	SetRawPayload(data []byte) error
}

// rawPayloader is implemented by sources that keep their last response body.
type rawPayloader interface {
	RawPayload() []byte
}

// Config wires a FilesService.
type Config struct {
	Source   source.Source
	Store    Store
	Policy   tree.Policy
	Payloads PayloadRecorder // optional
}

// FilesService serves the cached tree, rebuilding it on a miss.
type FilesService struct {
	source   source.Source
	store    Store
	builder  tree.Builder
	payloads PayloadRecorder

	mu  sync.Mutex
	now func() time.Time
}

// New creates a files service.
func New(cfg Config) *FilesService {
	return &FilesService{
		source:   cfg.Source,
		store:    cfg.Store,
		builder:  tree.Builder{Policy: cfg.Policy},
		payloads: cfg.Payloads,
		now:      time.Now,
	}
}

// EnsureCached builds and stores the snapshot unless one is already cached.
func (s *FilesService) EnsureCached(ctx context.Context) error {
	_, err := s.Files(ctx)
	return err
}

// Files returns the cached snapshot, rebuilding it on a miss.
func (s *FilesService) Files(ctx context.Context) (*types.Snapshot, error) {
	if snapshot, ok := s.store.Get(SnapshotKey); ok {
		metrics.RecordCacheLookup(true)
		return snapshot, nil
	}
	metrics.RecordCacheLookup(false)

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another request may have rebuilt while we waited.
	if snapshot, ok := s.store.Get(SnapshotKey); ok {
		return snapshot, nil
	}
	return s.rebuild(ctx)
}

// Refresh rebuilds the snapshot unconditionally.
func (s *FilesService) Refresh(ctx context.Context) (*types.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rebuild(ctx)
}

func (s *FilesService) rebuild(ctx context.Context) (*types.Snapshot, error) {
	logger := logging.WithContext(ctx)

	items, err := s.source.Fetch(ctx)
	if err != nil {
		logger.Error("fetching url list failed", zap.Error(err))
		return nil, err
	}
	s.recordPayload(logger)

	start := s.now()
	urls := types.URLs(items)
	forest, conflicts, err := s.builder.Build(urls)
	if err != nil {
		logger.Error("building tree failed", zap.Error(err), zap.String("policy", s.builder.Policy.String()))
		return nil, err
	}
	for _, c := range conflicts {
		logger.Warn("name used as both file and directory",
			zap.String("host", c.Host),
			zap.String("path", c.Path),
			zap.String("url", c.URL),
		)
	}

	snapshot := &types.Snapshot{
		Key:     SnapshotKey,
		Tree:    tree.Format(forest),
		Stats:   forest.Stats(),
		Links:   tree.BuildLinks(urls),
		BuiltAt: s.now(),
	}
	metrics.RecordBuild(snapshot.BuiltAt.Sub(start), snapshot.Stats.Hosts, snapshot.Stats.Directories, snapshot.Stats.Files, len(conflicts))

	if err := s.store.Set(SnapshotKey, snapshot); err != nil {
		logger.Warn("storing snapshot failed", zap.Error(err))
	}

	logger.Info("tree built",
		zap.Int("urls", len(items)),
		zap.Int("hosts", snapshot.Stats.Hosts),
		zap.Int("directories", snapshot.Stats.Directories),
		zap.Int("files", snapshot.Stats.Files),
		zap.Int("conflicts", len(conflicts)),
	)
	return snapshot, nil
}

func (s *FilesService) recordPayload(logger *zap.Logger) {
	if s.payloads == nil {
		return
	}
	raw, ok := s.source.(rawPayloader)
	if !ok {
		return
	}
	if data := raw.RawPayload(); data != nil {
		if err := s.payloads.SetRawPayload(data); err != nil {
			logger.Warn("storing raw payload failed", zap.Error(err))
		}
	}
}

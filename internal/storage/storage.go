package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"urltree/pkg/types"
)

const (
	snapshotPrefix = "snapshot:"
	payloadKey     = "payload:latest"
)

type PersistentStore struct {
	db *badger.DB
}

func New(dataDir string) (*PersistentStore, error) {
	if dataDir == "" {
		dataDir = "./.data"
	}

	opts := badger.DefaultOptions(dataDir)
	opts.Logger = nil // Disable BadgerDB logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	return &PersistentStore{
		db: db,
	}, nil
}

func (s *PersistentStore) Close() error {
	return s.db.Close()
}

// GetSnapshot returns the snapshot stored under key, or nil if there is none
// or it has expired.
func (s *PersistentStore) GetSnapshot(key string) (*types.Snapshot, error) {
	var snapshot *types.Snapshot

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(snapshotPrefix + key))
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			snapshot = &types.Snapshot{}
			return json.Unmarshal(val, snapshot)
		})
	})

	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	return snapshot, nil
}

// SetSnapshot stores a snapshot. A positive ttl lets badger expire it.
func (s *PersistentStore) SetSnapshot(snapshot *types.Snapshot, ttl time.Duration) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(snapshotPrefix+snapshot.Key), data)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
}

func (s *PersistentStore) DeleteSnapshot(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(snapshotPrefix + key))
	})
}

func (s *PersistentStore) CountSnapshots() (int, error) {
	count := 0

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false // We only need to count, not read values
		iter := txn.NewIterator(opts)
		defer iter.Close()

		prefix := []byte(snapshotPrefix)
		for iter.Seek(prefix); iter.ValidForPrefix(prefix); iter.Next() {
			count++
		}
		return nil
	})

	if err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}

	return count, nil
}

// SetRawPayload keeps the last upstream response body for debugging
func (s *PersistentStore) SetRawPayload(data []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(payloadKey), data)
	})
}

// GetRawPayload returns the last upstream response body, or nil
func (s *PersistentStore) GetRawPayload() ([]byte, error) {
	var data []byte

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(payloadKey))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})

	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get raw payload: %w", err)
	}

	return data, nil
}

func (s *PersistentStore) RunGarbageCollection() error {
	return s.db.RunValueLogGC(0.5)
}

package lds

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore is the non-durable Backend used when persistent storage is
// unavailable. Work recorded here survives only the current session; the
// manager surfaces a warning when it falls back to this store.
type MemoryStore struct {
	mu         sync.RWMutex
	partitions map[string]map[string]Document
	sequences  map[string]int64
}

// NewMemoryStore creates an empty memory-only store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		partitions: make(map[string]map[string]Document),
		sequences:  make(map[string]int64),
	}
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}

// Put upserts a record by primary key.
func (s *MemoryStore) Put(ctx context.Context, partition string, doc Document) error {
	if err := checkPartition(partition); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.partitions[partition]
	if !ok {
		p = make(map[string]Document)
		s.partitions[partition] = p
	}
	// Copy the payload so callers can't mutate stored state.
	stored := Document{Key: doc.Key, Payload: append([]byte(nil), doc.Payload...)}
	p[doc.Key] = stored
	return nil
}

// Get returns a record by primary key; the boolean reports presence.
func (s *MemoryStore) Get(ctx context.Context, partition, key string) (Document, bool, error) {
	if err := checkPartition(partition); err != nil {
		return Document{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.partitions[partition][key]
	if !ok {
		return Document{}, false, nil
	}
	return Document{Key: doc.Key, Payload: append([]byte(nil), doc.Payload...)}, true, nil
}

// GetAll returns every record in the partition, empty slice if none.
func (s *MemoryStore) GetAll(ctx context.Context, partition string) ([]Document, error) {
	if err := checkPartition(partition); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := []Document{}
	for _, doc := range s.partitions[partition] {
		docs = append(docs, Document{Key: doc.Key, Payload: append([]byte(nil), doc.Payload...)})
	}
	return docs, nil
}

// GetByIndex returns records whose top-level payload field equals value.
func (s *MemoryStore) GetByIndex(ctx context.Context, partition, field, value string) ([]Document, error) {
	if err := checkPartition(partition); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := []Document{}
	for _, doc := range s.partitions[partition] {
		var fields map[string]interface{}
		if err := json.Unmarshal(doc.Payload, &fields); err != nil {
			return nil, fmt.Errorf("getByIndex %s/%s: %w", partition, doc.Key, err)
		}
		if fmt.Sprintf("%v", fields[field]) == value {
			docs = append(docs, Document{Key: doc.Key, Payload: append([]byte(nil), doc.Payload...)})
		}
	}
	return docs, nil
}

// Delete removes a record; absent keys are a no-op.
func (s *MemoryStore) Delete(ctx context.Context, partition, key string) error {
	if err := checkPartition(partition); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.partitions[partition], key)
	return nil
}

// Clear removes all records in the partition.
func (s *MemoryStore) Clear(ctx context.Context, partition string) error {
	if err := checkPartition(partition); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.partitions, partition)
	return nil
}

// NextSequence increments and returns the partition's counter. Unlike the
// SQLite store the values reset with the process, which is acceptable since
// nothing recorded in a memory session outlives it.
func (s *MemoryStore) NextSequence(ctx context.Context, partition string) (int64, error) {
	if err := checkPartition(partition); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sequences[partition]++
	return s.sequences[partition], nil
}

package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store with the same freshness rules as
// DiskStore. Payloads are kept encoded, so values round-trip exactly as they
// would through disk.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	policy  Policy
	codec   Codec
	now     func() time.Time
}

type memoryEntry struct {
	payload   []byte
	createdAt time.Time
}

// NewMemoryStore creates a new in-memory store with the given policy.
func NewMemoryStore(policy Policy) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		policy:  policy.withDefaults(),
		codec:   JSONCodec{},
		now:     time.Now,
	}
}

// Read decodes the fresh entry for key into dst. Expired entries are
// removed lazily.
func (s *MemoryStore) Read(ctx context.Context, key string, dst any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return false, nil
	}

	if !s.policy.Fresh(s.now().Sub(entry.createdAt)) {
		s.mu.Lock()
		// Only drop the entry we inspected, not a newer write.
		if s.entries[key] == entry {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return false, nil
	}

	if err := s.codec.Unmarshal(entry.payload, dst); err != nil {
		return false, corruptEntry(key, err)
	}
	return true, nil
}

// Write encodes value and replaces the entry for key.
func (s *MemoryStore) Write(ctx context.Context, key string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := s.codec.Marshal(value)
	if err != nil {
		return unencodable(key, err)
	}

	s.mu.Lock()
	s.entries[key] = &memoryEntry{
		payload:   payload,
		createdAt: s.now(),
	}
	s.mu.Unlock()

	return nil
}

// Delete removes a value from the store. Idempotent - no error on miss.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, including expired ones not yet
// removed.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)

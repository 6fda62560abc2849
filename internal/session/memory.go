package session

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	slot      Slot
	expiresAt time.Time
}

// MemoryStore keeps slots in process. Suitable for a single instance.
// Expired slots are swept on write, at most once per TTL.
type MemoryStore struct {
	mu        sync.RWMutex
	slots     map[string]memoryEntry
	ttl       time.Duration
	now       func() time.Time
	lastSweep time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		slots: make(map[string]memoryEntry),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Slot, error) {
	s.mu.RLock()
	entry, ok := s.slots[id]
	s.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	if s.expired(entry, s.now()) {
		s.mu.Lock()
		// A Put may have refreshed the slot since the read.
		if current, ok := s.slots[id]; ok && s.expired(current, s.now()) {
			delete(s.slots, id)
		}
		s.mu.Unlock()
		return nil, nil
	}
	slot := entry.slot
	return &slot, nil
}

func (s *MemoryStore) Put(_ context.Context, id string, slot Slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.ttl > 0 && now.Sub(s.lastSweep) >= s.ttl {
		s.sweep(now)
	}
	s.slots[id] = memoryEntry{slot: slot, expiresAt: now.Add(s.ttl)}
	return nil
}

// sweep drops every expired slot. Callers hold the write lock.
func (s *MemoryStore) sweep(now time.Time) {
	for id, entry := range s.slots {
		if s.expired(entry, now) {
			delete(s.slots, id)
		}
	}
	s.lastSweep = now
}

func (s *MemoryStore) expired(e memoryEntry, now time.Time) bool {
	return s.ttl > 0 && now.After(e.expiresAt)
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.slots, id)
	return nil
}

// Len returns the number of stored slots, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.slots)
}

package idempotency

import (
	"sync"
	"time"
)

// MemoryRepository is an in-process Repository. Suitable for a single
// API instance; replays only dedupe against the same process.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewMemoryRepository returns an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string]*Record)}
}

// Get returns a copy of the record for a key.
func (r *MemoryRepository) Get(key string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	clone := *record
	return &clone, nil
}

// Store saves a new record. The stored copy is detached from the
// caller's value.
func (r *MemoryRepository) Store(record *Record) error {
	if err := ValidateKey(record.Key); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[record.Key]; exists {
		return ErrKeyExists
	}

	clone := *record
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now()
	}
	r.records[record.Key] = &clone
	return nil
}

// DeleteOlderThan removes records created before now minus age.
func (r *MemoryRepository) DeleteOlderThan(age time.Duration) (int64, error) {
	cutoff := time.Now().Add(-age)

	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for key, record := range r.records {
		if record.CreatedAt.Before(cutoff) {
			delete(r.records, key)
			deleted++
		}
	}
	return deleted, nil
}

// Len reports the number of stored records.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

package repository

import (
	"context"
	"sync"
	"time"
)

// MemoryRateLimitRepository counts requests in process. Counters are lost on restart.
type MemoryRateLimitRepository struct {
	mu         sync.Mutex
	rateLimits map[int64]*rateLimitEntry
	now        func() time.Time
}

func NewMemoryRateLimitRepository() *MemoryRateLimitRepository {
	return &MemoryRateLimitRepository{
		rateLimits: make(map[int64]*rateLimitEntry),
		now:        time.Now,
	}
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func (r *MemoryRateLimitRepository) CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.rateLimits[userID]
	if !ok || !now.Before(entry.expiresAt) {
		entry = &rateLimitEntry{expiresAt: now.Add(window)}
		r.rateLimits[userID] = entry
	}
	entry.count++

	return entry.count <= limit, nil
}

// Cleanup drops counters whose window has passed.
func (r *MemoryRateLimitRepository) Cleanup() int {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, entry := range r.rateLimits {
		if !now.Before(entry.expiresAt) {
			delete(r.rateLimits, id)
			removed++
		}
	}
	return removed
}

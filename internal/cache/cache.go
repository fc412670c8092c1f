// Package cache holds the in-memory stores that sit between the fetchers and
// their upstreams. Both stores are overwrite-only and safe for concurrent use.
package cache

import (
	"sync"
	"time"

	"coinpulse/internal/models"
)

// Freshness keeps the latest payload per key and only serves it while it is
// younger than the TTL. Expired entries are not pruned, they are replaced by
// the next Put.
type Freshness[T any] struct {
	mu      sync.RWMutex
	entries map[string]models.Entry[T]
	ttl     time.Duration
	now     func() time.Time
}

func NewFreshness[T any](ttl time.Duration) *Freshness[T] {
	return &Freshness[T]{
		entries: make(map[string]models.Entry[T]),
		ttl:     ttl,
		now:     time.Now,
	}
}

// WithClock replaces the time source, used by tests.
func (c *Freshness[T]) WithClock(now func() time.Time) *Freshness[T] {
	c.now = now
	return c
}

func (c *Freshness[T]) Get(key string) (models.Entry[T], bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || !entry.Valid(c.now(), c.ttl) {
		return models.Entry[T]{}, false
	}
	return entry, true
}

func (c *Freshness[T]) Put(key string, payload T) {
	c.PutAt(key, payload, c.now())
}

// PutAt stores payload as captured at the given time.
func (c *Freshness[T]) PutAt(key string, payload T, at time.Time) {
	entry := models.Entry[T]{Payload: payload, CapturedAt: at}

	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
}

// TTL returns the freshness window.
func (c *Freshness[T]) TTL() time.Duration {
	return c.ttl
}

// Fallback keeps the last successful payload per key for the lifetime of the
// process.
type Fallback[T any] struct {
	mu      sync.RWMutex
	entries map[string]models.Entry[T]
	now     func() time.Time
}

func NewFallback[T any]() *Fallback[T] {
	return &Fallback[T]{
		entries: make(map[string]models.Entry[T]),
		now:     time.Now,
	}
}

func (s *Fallback[T]) WithClock(now func() time.Time) *Fallback[T] {
	s.now = now
	return s
}

func (s *Fallback[T]) Get(key string) (models.Entry[T], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[key]
	return entry, ok
}

func (s *Fallback[T]) Put(key string, payload T) {
	s.PutAt(key, payload, s.now())
}

func (s *Fallback[T]) PutAt(key string, payload T, at time.Time) {
	entry := models.Entry[T]{Payload: payload, CapturedAt: at}

	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()
}

// Len reports how many keys have a stored payload.
func (s *Fallback[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

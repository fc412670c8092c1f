package models

import "time"

// TTL constants for cache expiration
const (
	QuoteTTL     = 60 * time.Second // Quote freshness window
	NarrativeTTL = 5 * time.Minute  // Generated analysis lifetime
)

// Entry pairs a cached payload with the time it was captured.
// Entries are never mutated; a newer Put for the same key replaces them.
type Entry[T any] struct {
	Payload    T
	CapturedAt time.Time
}

// Valid checks if the entry is still inside its TTL
func (e Entry[T]) Valid(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.CapturedAt) < ttl
}

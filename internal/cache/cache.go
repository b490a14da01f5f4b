package cache

import "time"

// Cache stores encoded layout results keyed by a content hash.
type Cache interface {
	// Get returns the value and true if the key is present and not expired.
	Get(key string) ([]byte, bool)

	// Set stores value under key. A ttl of 0 uses the cache default.
	Set(key string, value []byte, ttl time.Duration)

	Delete(key string)
	Clear()
	Stats() Stats
}

// Stats is a point-in-time view of cache counters.
type Stats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	KeysAdded uint64 `json:"keys_added"`
	Evictions uint64 `json:"evictions"`
	Size      int64  `json:"size_bytes"`
	Items     int64  `json:"items"`
}

// HitRatio returns hits over lookups, or 0 before the first lookup.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

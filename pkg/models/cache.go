package models

import "time"

// CacheEntry stores a cached persona answer.
type CacheEntry struct {
	Key       string    `json:"key"`
	Persona   string    `json:"persona"`
	Response  string    `json:"response"`
	CreatedAt time.Time `json:"created_at"`
}

// CacheStats reports cache performance metrics.
type CacheStats struct {
	Entries int64 `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

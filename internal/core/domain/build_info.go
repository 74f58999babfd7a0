package domain

import "time"

// BuildInfo records the last successful run of an operation.
type BuildInfo struct {
	OperationName string    `json:"operation,omitzero"`
	CacheKey      string    `json:"cache_key,omitzero"`
	OutputHash    string    `json:"output_hash,omitzero"`
	Timestamp     time.Time `json:"timestamp,omitzero"`
}

// CacheSource names the tier a cache entry was read from.
type CacheSource string

const (
	// CacheSourceLocal is the on-disk tier.
	CacheSourceLocal CacheSource = "local"
	// CacheSourceCloud is the network tier.
	CacheSourceCloud CacheSource = "cloud"
)

// CacheEntry is an archive blob restored from a cache tier.
// Promoted is set when a cloud hit was also written back to the local tier.
type CacheEntry struct {
	Key      string
	Blob     []byte
	Source   CacheSource
	Promoted bool
}

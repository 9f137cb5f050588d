// Package cache memoizes validation and scoring results. Both are pure
// functions of section text plus evidence, so caching never changes behavior.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache defines the interface for memoization storage
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// SectionKey builds a cache key from section text and an evidence fingerprint.
func SectionKey(sectionText, evidenceFingerprint string) string {
	hash := sha256.Sum256([]byte(sectionText))
	return "refiner:v1:" + hex.EncodeToString(hash[:]) + ":" + evidenceFingerprint
}

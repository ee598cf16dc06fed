// Package cache provides content-addressed caching for parsed graphs and
// computed plans.
//
// A Cache stores opaque byte values under string keys with a TTL. Keys are
// produced by a Keyer from content hashes, so a changed graph file or a
// different feature request never reuses a stale entry. File-backed and
// Redis-backed implementations are provided, plus a null cache for tests and
// for disabling caching entirely.
package cache

import (
	"context"
	"time"
)

// DefaultTTL is the cache duration used when callers do not override it.
const DefaultTTL = 24 * time.Hour

// Cache stores opaque byte values under string keys.
type Cache interface {
	// Get retrieves a value. The second return reports a hit.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores a value with a TTL. A zero TTL means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes a value. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases backing resources.
	Close() error
}

// Keyer generates cache keys for the cacheable artifact types.
type Keyer interface {
	// GraphKey generates a key for a parsed graph, from the content hash
	// of its source file.
	GraphKey(sourceHash string) string
	// PlanKey generates a key for a computed plan, from the graph hash and
	// the resolution request.
	PlanKey(graphHash string, root string, features []string) string
}

// DefaultKeyer is the standard key scheme.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer { return &DefaultKeyer{} }

// GraphKey generates a key for a parsed graph.
func (k *DefaultKeyer) GraphKey(sourceHash string) string {
	return "graph:" + sourceHash
}

// PlanKey generates a key for a computed plan. The request (root + features)
// is hashed into the key so different requests never collide.
func (k *DefaultKeyer) PlanKey(graphHash string, root string, features []string) string {
	return hashKey("plan", graphHash, root, features)
}

// ScopedKeyer wraps a Keyer with a prefix for namespace isolation,
// e.g. separating cache entries per project checkout.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// GraphKey generates a prefixed graph key.
func (k *ScopedKeyer) GraphKey(sourceHash string) string {
	return k.prefix + k.inner.GraphKey(sourceHash)
}

// PlanKey generates a prefixed plan key.
func (k *ScopedKeyer) PlanKey(graphHash string, root string, features []string) string {
	return k.prefix + k.inner.PlanKey(graphHash, root, features)
}

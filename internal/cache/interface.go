// Package cache defines the namespaced, TTL-aware key/value abstraction the
// confirmation core is built on, plus a Redis-backed and an in-memory
// implementation of it.
package cache

import (
	"context"
	"errors"
	"time"
)

// Provider is the storage contract every confirmation-core component is
// built against. A Provider is always scoped to one namespace and composes
// physical keys as "{namespace}:{key}"; index keys as
// "{namespace}:{indexName}:{indexValue}".
//
// Implementations never return a backend error from an operation that has a
// documented safe default (see each method); they log it instead. Only
// operations with no safe default (Set, Update, Increment, ClearNamespace)
// propagate backend failures, wrapped as ErrUnavailable.
type Provider interface {
	// Set stores value under key with the given ttl (0 means the
	// provider's configured default) and registers key under each
	// index in indexes (index name -> index value).
	Set(ctx context.Context, key string, value any, ttl time.Duration, indexes map[string]string) error

	// Get retrieves and, if deserialize is true, JSON-decodes the value
	// stored under key. found is false if the key is absent or expired.
	Get(ctx context.Context, key string, deserialize bool, dest any) (found bool, err error)

	// Delete removes key and, if indexes is non-nil, cleans up the
	// corresponding index memberships. ok is false if key did not exist.
	Delete(ctx context.Context, key string, indexes map[string]string) (ok bool, err error)

	// Exists reports whether key is present and unexpired.
	Exists(ctx context.Context, key string) (bool, error)

	// Update JSON-decodes the current value, applies patch field-by-field
	// on top of it, and re-stores the merged value with the given ttl (0
	// means the provider's configured default, not the key's remaining
	// TTL). Returns an error if key is absent or not a JSON object.
	Update(ctx context.Context, key string, patch map[string]any, ttl time.Duration) error

	// SetTTL refreshes the expiry of an existing key. ok is false if key
	// does not exist.
	SetTTL(ctx context.Context, key string, ttl time.Duration) (ok bool, err error)

	// GetTTL returns the remaining TTL of key. found is false if the key
	// is absent. A negative duration with found=true means "no expiry".
	GetTTL(ctx context.Context, key string) (ttl time.Duration, found bool, err error)

	// Increment adds amount to the integer stored at key, creating it
	// with the given ttl if absent, and returns the new value.
	Increment(ctx context.Context, key string, amount int64, ttl time.Duration) (int64, error)

	// GetByIndex JSON-decodes every live value registered under
	// (indexName, indexValue) into the slice pointed to by dest, which
	// must be a pointer to a slice of the target type.
	GetByIndex(ctx context.Context, indexName, indexValue string, dest any) error

	// GetKeysByIndex returns the set of live keys registered under
	// (indexName, indexValue), without fetching their values.
	GetKeysByIndex(ctx context.Context, indexName, indexValue string) (map[string]struct{}, error)

	// ClearNamespace deletes every key in this provider's namespace and
	// returns the number of keys removed. Intended for tests.
	ClearNamespace(ctx context.Context) (int, error)
}

// ErrUnavailable wraps backend faults on operations that have no safe
// default to fall back to.
var ErrUnavailable = errors.New("cache backend unavailable")

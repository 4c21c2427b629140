package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time // zero value means no expiry
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// memoryIndex is a secondary-index set (the in-process analogue of a Redis
// SET key), carrying its own TTL. Every addition extends that TTL to cover
// the added entry's TTL and never shortens it, so a live member stays
// reachable through the index.
type memoryIndex struct {
	members   map[string]struct{}
	expiresAt time.Time
}

func (i memoryIndex) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && now.After(i.expiresAt)
}

// MemoryProvider is a dependency-free Provider backed by an in-process map,
// guarded by a single mutex, with lazily-checked expiration: an entry past
// its TTL is only reclaimed the next time something touches its key.
// Intended for tests and for embedders that don't want a Redis dependency.
type MemoryProvider struct {
	mu         sync.RWMutex
	namespace  string
	defaultTTL time.Duration
	logger     *slog.Logger
	entries    map[string]memoryEntry
	indexes    map[string]memoryIndex // indexKey -> member set with its own TTL
}

// NewMemoryProvider constructs an empty MemoryProvider.
func NewMemoryProvider(namespace string, defaultTTL time.Duration, logger *slog.Logger) *MemoryProvider {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultTTL <= 0 {
		defaultTTL = 15 * time.Minute
	}
	return &MemoryProvider{
		namespace:  namespace,
		defaultTTL: defaultTTL,
		logger:     logger,
		entries:    make(map[string]memoryEntry),
		indexes:    make(map[string]memoryIndex),
	}
}

func (p *MemoryProvider) makeKey(key string) string {
	return fmt.Sprintf("%s:%s", p.namespace, key)
}

func (p *MemoryProvider) makeIndexKey(indexName, indexValue string) string {
	return fmt.Sprintf("%s:%s:%s", p.namespace, indexName, indexValue)
}

// getLocked returns the live entry at physical key, deleting and reporting
// absence if it has expired. Caller must hold p.mu for writing.
func (p *MemoryProvider) getLocked(physical string, now time.Time) (memoryEntry, bool) {
	e, ok := p.entries[physical]
	if !ok {
		return memoryEntry{}, false
	}
	if e.expired(now) {
		delete(p.entries, physical)
		return memoryEntry{}, false
	}
	return e, true
}

func (p *MemoryProvider) Set(ctx context.Context, key string, value any, ttl time.Duration, indexes map[string]string) error {
	if ttl <= 0 {
		ttl = p.defaultTTL
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: marshal value for key %q: %w", key, err)
	}

	physical := p.makeKey(key)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[physical] = memoryEntry{data: data, expiresAt: time.Now().Add(ttl)}
	expiresAt := time.Now().Add(ttl)
	for indexName, indexValue := range indexes {
		idxKey := p.makeIndexKey(indexName, indexValue)
		idx, ok := p.indexes[idxKey]
		if !ok || idx.expired(time.Now()) {
			idx = memoryIndex{members: make(map[string]struct{})}
		}
		idx.members[physical] = struct{}{}
		if expiresAt.After(idx.expiresAt) {
			idx.expiresAt = expiresAt
		}
		p.indexes[idxKey] = idx
	}
	return nil
}

func (p *MemoryProvider) Get(ctx context.Context, key string, deserialize bool, dest any) (bool, error) {
	physical := p.makeKey(key)
	p.mu.Lock()
	e, ok := p.getLocked(physical, time.Now())
	p.mu.Unlock()
	if !ok {
		return false, nil
	}
	if !deserialize {
		if s, ok := dest.(*string); ok {
			*s = string(e.data)
		}
		return true, nil
	}
	// Deep-copy via unmarshal so callers can never mutate stored bytes.
	if err := json.Unmarshal(e.data, dest); err != nil {
		p.logger.Warn("cache value unmarshal failed, treating as miss", "key", key, "error", err)
		return false, nil
	}
	return true, nil
}

func (p *MemoryProvider) Delete(ctx context.Context, key string, indexes map[string]string) (bool, error) {
	physical := p.makeKey(key)
	p.mu.Lock()
	defer p.mu.Unlock()
	_, existed := p.getLocked(physical, time.Now())
	delete(p.entries, physical)
	for indexName, indexValue := range indexes {
		idxKey := p.makeIndexKey(indexName, indexValue)
		if idx, ok := p.indexes[idxKey]; ok {
			delete(idx.members, physical)
		}
	}
	return existed, nil
}

func (p *MemoryProvider) Exists(ctx context.Context, key string) (bool, error) {
	physical := p.makeKey(key)
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.getLocked(physical, time.Now())
	return ok, nil
}

func (p *MemoryProvider) Update(ctx context.Context, key string, patch map[string]any, ttl time.Duration) error {
	physical := p.makeKey(key)
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.getLocked(physical, time.Now())
	if !ok {
		return fmt.Errorf("cache: update: key %q not found", key)
	}

	current := make(map[string]any)
	if err := json.Unmarshal(e.data, &current); err != nil {
		return fmt.Errorf("cache: update: value at %q is not a JSON object: %w", key, err)
	}
	for field, v := range patch {
		current[field] = v
	}
	data, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("cache: marshal updated value for key %q: %w", key, err)
	}
	if ttl <= 0 {
		ttl = p.defaultTTL
	}
	p.entries[physical] = memoryEntry{data: data, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (p *MemoryProvider) SetTTL(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	physical := p.makeKey(key)
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.getLocked(physical, time.Now())
	if !ok {
		return false, nil
	}
	e.expiresAt = time.Now().Add(ttl)
	p.entries[physical] = e
	return true, nil
}

func (p *MemoryProvider) GetTTL(ctx context.Context, key string) (time.Duration, bool, error) {
	physical := p.makeKey(key)
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.getLocked(physical, time.Now())
	if !ok {
		return 0, false, nil
	}
	if e.expiresAt.IsZero() {
		return -1, true, nil
	}
	remaining := time.Until(e.expiresAt)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true, nil
}

func (p *MemoryProvider) Increment(ctx context.Context, key string, amount int64, ttl time.Duration) (int64, error) {
	physical := p.makeKey(key)
	p.mu.Lock()
	defer p.mu.Unlock()

	var n int64
	if e, ok := p.getLocked(physical, time.Now()); ok {
		json.Unmarshal(e.data, &n)
	}
	n += amount

	data, _ := json.Marshal(n)
	expiresAt := time.Time{}
	if existing, ok := p.entries[physical]; ok {
		expiresAt = existing.expiresAt
	} else if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	p.entries[physical] = memoryEntry{data: data, expiresAt: expiresAt}
	return n, nil
}

func (p *MemoryProvider) GetByIndex(ctx context.Context, indexName, indexValue string, dest any) error {
	keys, err := p.GetKeysByIndex(ctx, indexName, indexValue)
	if err != nil {
		return err
	}

	p.mu.RLock()
	raw := make([]json.RawMessage, 0, len(keys))
	for physical := range keys {
		if e, ok := p.entries[physical]; ok {
			raw = append(raw, json.RawMessage(e.data))
		}
	}
	p.mu.RUnlock()

	merged, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(merged, dest)
}

func (p *MemoryProvider) GetKeysByIndex(ctx context.Context, indexName, indexValue string) (map[string]struct{}, error) {
	idxKey := p.makeIndexKey(indexName, indexValue)
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	idx, ok := p.indexes[idxKey]
	if !ok {
		return map[string]struct{}{}, nil
	}
	if idx.expired(now) {
		delete(p.indexes, idxKey)
		return map[string]struct{}{}, nil
	}
	result := make(map[string]struct{}, len(idx.members))
	for physical := range idx.members {
		if _, ok := p.getLocked(physical, now); ok {
			result[physical] = struct{}{}
		} else {
			delete(idx.members, physical)
		}
	}
	return result, nil
}

func (p *MemoryProvider) ClearNamespace(ctx context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.entries)
	p.entries = make(map[string]memoryEntry)
	p.indexes = make(map[string]memoryIndex)
	return n, nil
}

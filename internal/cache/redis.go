package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisProvider is the production Provider, backed by a single Redis
// database. All keys it touches are namespaced so several providers can
// safely share one Redis instance.
type RedisProvider struct {
	client     *redis.Client
	namespace  string
	defaultTTL time.Duration
	logger     *slog.Logger
}

// NewRedisProvider wraps an already-constructed *redis.Client. The caller
// owns the client's lifecycle (pooling, auth, TLS); the provider only adds
// namespacing, indexing and TTL bookkeeping on top of it.
func NewRedisProvider(client *redis.Client, namespace string, defaultTTL time.Duration, logger *slog.Logger) *RedisProvider {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultTTL <= 0 {
		defaultTTL = 15 * time.Minute
	}
	return &RedisProvider{client: client, namespace: namespace, defaultTTL: defaultTTL, logger: logger}
}

func (p *RedisProvider) makeKey(key string) string {
	return fmt.Sprintf("%s:%s", p.namespace, key)
}

func (p *RedisProvider) makeIndexKey(indexName, indexValue string) string {
	return fmt.Sprintf("%s:%s:%s", p.namespace, indexName, indexValue)
}

func (p *RedisProvider) Set(ctx context.Context, key string, value any, ttl time.Duration, indexes map[string]string) error {
	if ttl <= 0 {
		ttl = p.defaultTTL
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: marshal value for key %q: %w", key, err)
	}

	physical := p.makeKey(key)
	pipe := p.client.TxPipeline()
	pipe.Set(ctx, physical, data, ttl)
	for indexName, indexValue := range indexes {
		indexKey := p.makeIndexKey(indexName, indexValue)
		pipe.SAdd(ctx, indexKey, physical)
		pipe.Expire(ctx, indexKey, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		p.logger.Error("cache set failed", "key", key, "error", err)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	p.logger.Debug("cache set", "key", key, "ttl", ttl)
	return nil
}

func (p *RedisProvider) Get(ctx context.Context, key string, deserialize bool, dest any) (bool, error) {
	val, err := p.client.Get(ctx, p.makeKey(key)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		p.logger.Warn("cache get failed, treating as miss", "key", key, "error", err)
		return false, nil
	}
	if !deserialize {
		if s, ok := dest.(*string); ok {
			*s = val
		}
		return true, nil
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		p.logger.Warn("cache value unmarshal failed, treating as miss", "key", key, "error", err)
		return false, nil
	}
	return true, nil
}

func (p *RedisProvider) Delete(ctx context.Context, key string, indexes map[string]string) (bool, error) {
	physical := p.makeKey(key)
	pipe := p.client.TxPipeline()
	delCmd := pipe.Del(ctx, physical)
	for indexName, indexValue := range indexes {
		pipe.SRem(ctx, p.makeIndexKey(indexName, indexValue), physical)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		p.logger.Warn("cache delete failed", "key", key, "error", err)
		return false, nil
	}
	return delCmd.Val() > 0, nil
}

func (p *RedisProvider) Exists(ctx context.Context, key string) (bool, error) {
	n, err := p.client.Exists(ctx, p.makeKey(key)).Result()
	if err != nil {
		p.logger.Warn("cache exists check failed, treating as absent", "key", key, "error", err)
		return false, nil
	}
	return n > 0, nil
}

func (p *RedisProvider) Update(ctx context.Context, key string, patch map[string]any, ttl time.Duration) error {
	physical := p.makeKey(key)
	val, err := p.client.Get(ctx, physical).Result()
	if err == redis.Nil {
		return fmt.Errorf("cache: update: key %q not found", key)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	current := make(map[string]any)
	if err := json.Unmarshal([]byte(val), &current); err != nil {
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
	if err := p.client.Set(ctx, physical, data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (p *RedisProvider) SetTTL(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := p.client.Expire(ctx, p.makeKey(key), ttl).Result()
	if err != nil {
		p.logger.Warn("cache set ttl failed", "key", key, "error", err)
		return false, nil
	}
	return ok, nil
}

func (p *RedisProvider) GetTTL(ctx context.Context, key string) (time.Duration, bool, error) {
	ttl, err := p.client.TTL(ctx, p.makeKey(key)).Result()
	if err != nil {
		p.logger.Warn("cache get ttl failed", "key", key, "error", err)
		return 0, false, nil
	}
	// go-redis passes TTL's -2 (absent) and -1 (no expiry) replies through
	// as raw durations, not scaled to seconds.
	if ttl == -2 {
		return 0, false, nil
	}
	if ttl == -1 {
		return -1, true, nil
	}
	return ttl, true, nil
}

func (p *RedisProvider) Increment(ctx context.Context, key string, amount int64, ttl time.Duration) (int64, error) {
	physical := p.makeKey(key)
	n, err := p.client.IncrBy(ctx, physical, amount).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if ttl > 0 {
		p.client.Expire(ctx, physical, ttl)
	}
	return n, nil
}

func (p *RedisProvider) GetByIndex(ctx context.Context, indexName, indexValue string, dest any) error {
	keys, err := p.GetKeysByIndex(ctx, indexName, indexValue)
	if err != nil {
		return err
	}
	raw := make([]json.RawMessage, 0, len(keys))
	for physical := range keys {
		val, err := p.client.Get(ctx, physical).Result()
		if err != nil {
			continue
		}
		raw = append(raw, json.RawMessage(val))
	}
	merged, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(merged, dest)
}

func (p *RedisProvider) GetKeysByIndex(ctx context.Context, indexName, indexValue string) (map[string]struct{}, error) {
	indexKey := p.makeIndexKey(indexName, indexValue)
	members, err := p.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		p.logger.Warn("cache index read failed, treating as empty", "index_key", indexKey, "error", err)
		return map[string]struct{}{}, nil
	}

	result := make(map[string]struct{}, len(members))
	for _, physical := range members {
		exists, err := p.client.Exists(ctx, physical).Result()
		if err != nil || exists == 0 {
			p.client.SRem(ctx, indexKey, physical)
			continue
		}
		result[physical] = struct{}{}
	}
	return result, nil
}

func (p *RedisProvider) ClearNamespace(ctx context.Context) (int, error) {
	pattern := p.namespace + ":*"
	var cursor uint64
	var deleted int
	for {
		keys, next, err := p.client.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return deleted, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if len(keys) > 0 {
			n, err := p.client.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
			deleted += int(n)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return deleted, nil
}

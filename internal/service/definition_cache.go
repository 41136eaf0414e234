package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-testflow/internal/config"
	"github.com/stemsi/exstem-testflow/internal/model"
)

// ErrCacheMiss is returned by DefinitionCache.Get when nothing is cached.
var ErrCacheMiss = errors.New("definition not cached")

// DefinitionCache stores full test definitions, answer key included.
type DefinitionCache interface {
	Get(ctx context.Context, testID uuid.UUID) (*model.TestDefinition, error)
	Set(ctx context.Context, def *model.TestDefinition) error
	Delete(ctx context.Context, testID uuid.UUID) error
}

// RedisDefinitionCache keeps definitions as JSON strings under
// test:{id}:definition and tracks cached ids in a set.
type RedisDefinitionCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisDefinitionCache creates a cache with the given entry TTL. A zero
// TTL keeps entries until they are deleted.
func NewRedisDefinitionCache(rdb *redis.Client, ttl time.Duration) *RedisDefinitionCache {
	return &RedisDefinitionCache{rdb: rdb, ttl: ttl}
}

func (c *RedisDefinitionCache) Get(ctx context.Context, testID uuid.UUID) (*model.TestDefinition, error) {
	data, err := c.rdb.Get(ctx, config.CacheKey.TestDefinitionKey(testID.String())).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("get definition: %w", err)
	}

	var def model.TestDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("unmarshal definition: %w", err)
	}
	return &def, nil
}

func (c *RedisDefinitionCache) Set(ctx context.Context, def *model.TestDefinition) error {
	raw, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("marshal definition: %w", err)
	}

	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, config.CacheKey.TestDefinitionKey(def.ID.String()), raw, c.ttl)
	pipe.SAdd(ctx, config.CacheKey.PublishedTestsKey(), def.ID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache to redis: %w", err)
	}
	return nil
}

func (c *RedisDefinitionCache) Delete(ctx context.Context, testID uuid.UUID) error {
	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, config.CacheKey.TestDefinitionKey(testID.String()))
	pipe.SRem(ctx, config.CacheKey.PublishedTestsKey(), testID.String())
	_, err := pipe.Exec(ctx)
	return err
}

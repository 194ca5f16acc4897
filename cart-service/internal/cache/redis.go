package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fjod/traced_shop/cart-service/internal/domain"
	"github.com/fjod/traced_shop/pkg/telemetry"
)

const baseTTL = 15 * time.Minute

func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: baseTTL,
	}
}

type RedisCache struct {
	client  redis.UniversalClient
	baseTTL time.Duration
}

func (r *RedisCache) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	ctx, span := telemetry.StartSpan(ctx, "cache.get", cacheAttrs(userID)...)
	defer span.End()

	data, err := r.client.Get(ctx, cacheKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return nil, ErrCacheMiss
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	span.SetAttributes(attribute.Bool("cache.hit", true))

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}

	return &cart, nil
}

// Set stores the cart with a jittered TTL so entries written together do
// not expire together.
func (r *RedisCache) Set(ctx context.Context, userID string, cart *domain.Cart) error {
	ctx, span := telemetry.StartSpan(ctx, "cache.set", cacheAttrs(userID)...)
	defer span.End()

	data, err := json.Marshal(cart)
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	jitter := time.Duration(rand.IntN(5)) * time.Minute
	if err := r.client.Set(ctx, cacheKey(userID), data, r.baseTTL+jitter).Err(); err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, userID string) error {
	ctx, span := telemetry.StartSpan(ctx, "cache.delete", cacheAttrs(userID)...)
	defer span.End()

	if err := r.client.Del(ctx, cacheKey(userID)).Err(); err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("redis delete failed: %w", err)
	}

	return nil
}

func cacheKey(userID string) string {
	return fmt.Sprintf("cart:%s", userID)
}

func cacheAttrs(userID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("db.system", "redis"),
		attribute.String("user.id", userID),
	}
}

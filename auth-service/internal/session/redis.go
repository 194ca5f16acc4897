package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fjod/traced_shop/auth-service/internal/domain"
	"github.com/fjod/traced_shop/pkg/telemetry"
)

const keyPrefix = "auth:session:"

// RedisStore lets sessions survive auth-service restarts. Entries expire
// with the session.
type RedisStore struct {
	client redis.UniversalClient
	now    func() time.Time
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func (r *RedisStore) Save(ctx context.Context, s *domain.Session) error {
	ctx, span := telemetry.StartSpan(ctx, "session.save", sessionAttrs(s.ID)...)
	defer span.End()

	ttl := s.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return fmt.Errorf("session %s already expired", s.ID)
	}

	data, err := json.Marshal(s)
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("marshal session failed: %w", err)
	}
	if err := r.client.Set(ctx, keyPrefix+s.ID, data, ttl).Err(); err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	ctx, span := telemetry.StartSpan(ctx, "session.get", sessionAttrs(id)...)
	defer span.End()

	data, err := r.client.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var s domain.Session
	if err := json.Unmarshal(data, &s); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("unmarshal session failed: %w", err)
	}
	if s.Expired(r.now()) {
		return nil, ErrSessionNotFound
	}
	return &s, nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "session.delete", sessionAttrs(id)...)
	defer span.End()

	if err := r.client.Del(ctx, keyPrefix+id).Err(); err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func sessionAttrs(id string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("db.system", "redis"),
		attribute.String("session.id", id),
	}
}

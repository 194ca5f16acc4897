package cache

import (
	"context"
	"errors"

	"github.com/fjod/traced_shop/cart-service/internal/domain"
)

type CartCache interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Set(ctx context.Context, userID string, cart *domain.Cart) error
	Delete(ctx context.Context, userID string) error
}

var ErrCacheMiss = errors.New("cache miss")

// Nop is used when no Redis is configured; every read misses.
type Nop struct{}

func (Nop) Get(context.Context, string) (*domain.Cart, error) { return nil, ErrCacheMiss }
func (Nop) Set(context.Context, string, *domain.Cart) error { return nil }
func (Nop) Delete(context.Context, string) error { return nil }

package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/fjod/traced_shop/cart-service/internal/cache"
	"github.com/fjod/traced_shop/cart-service/internal/domain"
	"github.com/fjod/traced_shop/cart-service/internal/repository"
	"github.com/fjod/traced_shop/pkg/logger"
	"github.com/fjod/traced_shop/pkg/telemetry"
)

// ErrProductLookup wraps failures talking to product-service other than a
// plain "not found".
var ErrProductLookup = errors.New("product lookup failed")

type ProductCatalog interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

type CartService struct {
	repo     repository.CartRepository
	cache    cache.CartCache
	products ProductCatalog
	log      *zap.Logger
	sfg      singleflight.Group // Prevents cache stampede
	// generations counts writes per user. A load that overlaps a write
	// must not leave its snapshot in the cache.
	generations sync.Map // userID -> *atomic.Uint64
}

func NewCartService(repo repository.CartRepository, c cache.CartCache, products ProductCatalog, log *zap.Logger) *CartService {
	if c == nil {
		c = cache.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CartService{
		repo:     repo,
		cache:    c,
		products: products,
		log:      log,
	}
}

// GetCart returns the user's cart, or an empty one. Item names and prices
// are refreshed from the catalogue; items whose lookup fails keep the values
// stored when they were added.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.refreshItems(ctx, cart)
	return cart, nil
}

func (s *CartService) loadCart(ctx context.Context, userID string) (*domain.Cart, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.For(ctx, s.log).Warn("cache get error", zap.Error(err))
		}

		gen := s.generation(userID)
		before := gen.Load()
		cart, err = s.repo.GetCart(ctx, userID)
		if errors.Is(err, repository.ErrCartNotFound) {
			return domain.NewCart(userID), nil
		}
		if err != nil {
			return nil, err
		}

		if err := s.cache.Set(ctx, userID, cart); err != nil {
			logger.For(ctx, s.log).Warn("cache set error", zap.Error(err))
		}
		// Writers bump the generation before deleting the key, so either
		// this check sees the bump or the writer's delete lands after Set.
		if gen.Load() != before {
			s.deleteCached(ctx, userID)
		}
		return cart, nil
	})
	if err != nil {
		return nil, err
	}

	// shared between callers of the same flight
	return v.(*domain.Cart).Clone(), nil
}

func (s *CartService) generation(userID string) *atomic.Uint64 {
	v, _ := s.generations.LoadOrStore(userID, new(atomic.Uint64))
	return v.(*atomic.Uint64)
}

func (s *CartService) refreshItems(ctx context.Context, cart *domain.Cart) {
	if len(cart.Items) == 0 || s.products == nil {
		return
	}

	ctx, span := telemetry.StartSpan(ctx, "refresh-cart-items", attribute.Int("cart.items", len(cart.Items)))
	defer span.End()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := range cart.Items {
		g.Go(func() error {
			p, err := s.products.GetProduct(gctx, cart.Items[i].ProductID)
			if err != nil {
				logger.For(gctx, s.log).Warn("failed to refresh cart item",
					zap.String("product_id", cart.Items[i].ProductID), zap.Error(err))
				return nil
			}
			cart.Items[i].Price = p.Price
			cart.Items[i].Name = p.Name
			return nil
		})
	}
	_ = g.Wait()
}

// AddItem snapshots the product's price and name and stores the item. The
// returned cart reflects the write.
func (s *CartService) AddItem(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	product, err := s.products.GetProduct(ctx, productID)
	if errors.Is(err, domain.ErrProductNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProductLookup, err)
	}

	item := domain.CartItem{
		ProductID: product.ID,
		Quantity:  quantity,
		Price:     product.Price,
		Name:      product.Name,
	}
	if err := s.repo.AddItem(ctx, userID, item); err != nil {
		logger.For(ctx, s.log).Error("repo add item error", zap.Error(err))
		return nil, err
	}

	s.invalidateCache(ctx, userID)
	return s.stored(ctx, userID)
}

func (s *CartService) UpdateQuantity(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	if err := s.repo.UpdateItemQuantity(ctx, userID, productID, quantity); err != nil {
		if !errors.Is(err, repository.ErrItemNotFound) {
			logger.For(ctx, s.log).Error("repo update item quantity error", zap.Error(err))
		}
		return nil, err
	}

	s.invalidateCache(ctx, userID)
	return s.stored(ctx, userID)
}

func (s *CartService) RemoveItem(ctx context.Context, userID, productID string) (*domain.Cart, error) {
	if err := s.repo.RemoveItem(ctx, userID, productID); err != nil {
		if !errors.Is(err, repository.ErrCartNotFound) {
			logger.For(ctx, s.log).Error("repo remove item error", zap.Error(err))
		}
		return nil, err
	}

	s.invalidateCache(ctx, userID)
	return s.stored(ctx, userID)
}

// ClearCart is idempotent: clearing a missing cart succeeds.
func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	err := s.repo.DeleteCart(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		logger.For(ctx, s.log).Error("repo delete cart error", zap.Error(err))
		return err
	}

	s.invalidateCache(ctx, userID)
	return nil
}

func (s *CartService) stored(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.repo.GetCart(ctx, userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return domain.NewCart(userID), nil
	}
	return cart, err
}

// ClearOrderedItems removes what an order bought from the user's cart and
// reports how many lines it removed. A cart created after orderedAt, and
// items added or changed after it, belong to a later shopping session and
// are kept. With no product ids the whole checked-out cart is dropped. The
// cart is deleted once it is empty.
func (s *CartService) ClearOrderedItems(ctx context.Context, userID string, orderedAt time.Time, productIDs []string) (int, error) {
	cart, err := s.repo.GetCart(ctx, userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if !orderedAt.IsZero() && cart.CreatedAt.After(orderedAt) {
		return 0, nil
	}

	ordered := make(map[string]bool, len(productIDs))
	for _, id := range productIDs {
		ordered[id] = true
	}

	removed := 0
	kept := 0
	for _, it := range cart.Items {
		stale := orderedAt.IsZero() || !it.AddedAt.After(orderedAt)
		if stale && (len(productIDs) == 0 || ordered[it.ProductID]) {
			if err := s.repo.RemoveItem(ctx, userID, it.ProductID); err != nil && !errors.Is(err, repository.ErrCartNotFound) {
				return removed, err
			}
			removed++
			continue
		}
		kept++
	}

	if kept == 0 {
		if err := s.repo.DeleteCart(ctx, userID); err != nil && !errors.Is(err, repository.ErrCartNotFound) {
			return removed, err
		}
	}
	s.invalidateCache(ctx, userID)
	return removed, nil
}

// invalidateCache outlives request cancellation so a client hanging up
// cannot leave a stale cart behind.
func (s *CartService) invalidateCache(ctx context.Context, userID string) {
	s.generation(userID).Add(1)
	// later readers must not join a load that started before this write
	s.sfg.Forget(userID)
	s.deleteCached(ctx, userID)
}

func (s *CartService) deleteCached(ctx context.Context, userID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		logger.For(ctx, s.log).Warn("cache invalidate error", zap.Error(err))
	}
}

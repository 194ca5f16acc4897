package repository

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/traced_shop/cart-service/internal/domain"
)

// MemoryRepository keeps carts in a map guarded by a RWMutex. Carts are
// copied on the way in and out so callers never share state with the map.
type MemoryRepository struct {
	mu    sync.RWMutex
	carts map[string]*domain.Cart
	now   func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		carts: make(map[string]*domain.Cart),
		now:   time.Now,
	}
}

func (m *MemoryRepository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	cart, ok := m.carts[userID]
	if !ok {
		return nil, ErrCartNotFound
	}
	return cart.Clone(), nil
}

func (m *MemoryRepository) AddItem(ctx context.Context, userID string, item domain.CartItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	item.AddedAt = now

	cart, ok := m.carts[userID]
	if !ok {
		cart = &domain.Cart{UserID: userID, CreatedAt: now}
		m.carts[userID] = cart
	}
	cart.UpdatedAt = now

	for i := range cart.Items {
		if cart.Items[i].ProductID == item.ProductID {
			cart.Items[i] = item
			return nil
		}
	}
	cart.Items = append(cart.Items, item)
	return nil
}

func (m *MemoryRepository) UpdateItemQuantity(ctx context.Context, userID string, productID string, quantity int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cart, ok := m.carts[userID]
	if !ok {
		return ErrItemNotFound
	}
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			cart.Items[i].Quantity = quantity
			cart.UpdatedAt = m.now()
			return nil
		}
	}
	return ErrItemNotFound
}

func (m *MemoryRepository) RemoveItem(ctx context.Context, userID string, productID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cart, ok := m.carts[userID]
	if !ok {
		return ErrCartNotFound
	}
	items := cart.Items[:0]
	for _, it := range cart.Items {
		if it.ProductID != productID {
			items = append(items, it)
		}
	}
	cart.Items = items
	cart.UpdatedAt = m.now()
	return nil
}

func (m *MemoryRepository) DeleteCart(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.carts[userID]; !ok {
		return ErrCartNotFound
	}
	delete(m.carts, userID)
	return nil
}

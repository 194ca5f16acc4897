package repository

import (
	"context"
	"errors"

	"github.com/fjod/traced_shop/cart-service/internal/domain"
)

var (
	ErrCartNotFound = errors.New("cart not found")
	ErrItemNotFound = errors.New("item not found in cart")
)

// CartRepository defines the interface for cart data operations
// Consumers define this interface, not the storage implementations
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	// AddItem inserts the item, or replaces quantity, price and name when
	// the product is already in the cart. A missing cart is created.
	AddItem(ctx context.Context, userID string, item domain.CartItem) error
	UpdateItemQuantity(ctx context.Context, userID string, productID string, quantity int) error
	RemoveItem(ctx context.Context, userID string, productID string) error
	DeleteCart(ctx context.Context, userID string) error
}

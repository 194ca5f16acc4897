package repository

import (
	"context"
	"errors"

	"github.com/fjod/traced_shop/orders-service/internal/domain"
)

var ErrOrderNotFound = errors.New("order not found")

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByID(ctx context.Context, id string) (*domain.Order, error)
	// ListOrdersByUserID returns newest orders first.
	ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error)
	// UpdateStatus applies the lifecycle check and the write atomically.
	// changed is false when the order already had the status.
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (order *domain.Order, changed bool, err error)
	Close() error
}

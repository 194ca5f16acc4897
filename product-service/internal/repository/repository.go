package repository

import (
	"context"
	"errors"

	"github.com/fjod/traced_shop/product-service/internal/domain"
)

var ErrProductNotFound = errors.New("product not found")

// ProductRepository is read-only; the catalogue is seeded at startup.
type ProductRepository interface {
	GetAllProducts(ctx context.Context) ([]*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductsByCategory(ctx context.Context, category string) ([]*domain.Product, error)
	Close() error
}

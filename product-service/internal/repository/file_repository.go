package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/fjod/traced_shop/pkg/filestore"
	"github.com/fjod/traced_shop/product-service/internal/domain"
)

// FileRepository serves the catalogue from a flat JSON file loaded once at
// startup. A missing file is created from the seed products. Immutable
// after construction.
type FileRepository struct {
	products []*domain.Product
	byID     map[string]*domain.Product
}

func NewFileRepository(path string) (*FileRepository, error) {
	var products []*domain.Product
	err := filestore.ReadJSON(path, &products)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		products = domain.SeedProducts()
		if err := filestore.WriteJSON(path, products); err != nil {
			return nil, fmt.Errorf("seed products: %w", err)
		}
	case err != nil:
		return nil, err
	}

	return newFileRepository(products), nil
}

func newFileRepository(products []*domain.Product) *FileRepository {
	r := &FileRepository{
		products: products,
		byID:     make(map[string]*domain.Product, len(products)),
	}
	for _, p := range products {
		r.byID[p.ID] = p
	}
	return r
}

func (r *FileRepository) GetAllProducts(_ context.Context) ([]*domain.Product, error) {
	out := make([]*domain.Product, 0, len(r.products))
	for _, p := range r.products {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (r *FileRepository) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	p, ok := r.byID[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *FileRepository) GetProductsByCategory(_ context.Context, category string) ([]*domain.Product, error) {
	var out []*domain.Product
	for _, p := range r.products {
		if p.Category == category {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *FileRepository) Close() error { return nil }

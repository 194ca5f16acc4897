package repository

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"sync"
	"time"

	"github.com/fjod/traced_shop/orders-service/internal/domain"
	"github.com/fjod/traced_shop/pkg/filestore"
)

// FileRepository keeps all orders in memory and rewrites the JSON file on
// every change. The in-memory state only changes after the file write
// succeeds.
type FileRepository struct {
	mu     sync.RWMutex
	path   string
	orders []*domain.Order
	now    func() time.Time
}

func NewFileRepository(path string) (*FileRepository, error) {
	var orders []*domain.Order
	if err := filestore.ReadJSON(path, &orders); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load orders: %w", err)
	}
	return &FileRepository{path: path, orders: orders, now: time.Now}, nil
}

func (r *FileRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := append(slices.Clip(r.orders), order.Clone())
	if err := filestore.WriteJSON(r.path, next); err != nil {
		return fmt.Errorf("persist orders: %w", err)
	}
	r.orders = next
	return nil
}

func (r *FileRepository) GetOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := r.index(id); i >= 0 {
		return r.orders[i].Clone(), nil
	}
	return nil, ErrOrderNotFound
}

func (r *FileRepository) ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	out := make([]*domain.Order, 0)
	for _, o := range r.orders {
		if o.UserID == userID {
			out = append(out, o.Clone())
		}
	}
	r.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b *domain.Order) int {
		return cmp.Compare(b.CreatedAt.UnixNano(), a.CreatedAt.UnixNano())
	})
	return out, nil
}

func (r *FileRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.index(id)
	if i < 0 {
		return nil, false, ErrOrderNotFound
	}
	if r.orders[i].Status == status {
		return r.orders[i].Clone(), false, nil
	}

	updated := r.orders[i].Clone()
	if err := updated.ApplyStatus(status, r.now()); err != nil {
		return nil, false, err
	}

	next := slices.Clone(r.orders)
	next[i] = updated
	if err := filestore.WriteJSON(r.path, next); err != nil {
		return nil, false, fmt.Errorf("persist orders: %w", err)
	}
	r.orders = next
	return updated.Clone(), true, nil
}

func (r *FileRepository) Close() error { return nil }

func (r *FileRepository) index(id string) int {
	return slices.IndexFunc(r.orders, func(o *domain.Order) bool { return o.ID == id })
}

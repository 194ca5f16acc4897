package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjod/traced_shop/orders-service/internal/domain"
)

// runContract checks the behaviour every OrderRepository must share.
func runContract(t *testing.T, repo OrderRepository) {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	older := domain.NewOrder("user-1", []domain.OrderItem{
		{ProductID: "1", Name: "Gaming Laptop", Quantity: 1, Price: 1299.99},
	}, base.Add(-time.Hour))
	newer := domain.NewOrder("user-1", []domain.OrderItem{
		{ProductID: "2", Name: "Smartphone", Quantity: 2, Price: 799.99},
	}, base)
	other := domain.NewOrder("user-2", nil, base)

	for _, o := range []*domain.Order{older, newer, other} {
		require.NoError(t, repo.CreateOrder(ctx, o))
	}

	t.Run("get", func(t *testing.T) {
		fetched, err := repo.GetOrderByID(ctx, newer.ID)
		require.NoError(t, err)
		assert.Equal(t, newer.UserID, fetched.UserID)
		assert.Equal(t, 1599.98, fetched.Total)
		assert.Equal(t, domain.OrderStatusPending, fetched.Status)
		require.Len(t, fetched.Items, 1)
		assert.Equal(t, "Smartphone", fetched.Items[0].Name)
		assert.WithinDuration(t, newer.CreatedAt, fetched.CreatedAt, time.Millisecond)

		_, err = repo.GetOrderByID(ctx, "00000000-0000-0000-0000-000000000000")
		assert.ErrorIs(t, err, ErrOrderNotFound)
		_, err = repo.GetOrderByID(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})

	t.Run("list newest first", func(t *testing.T) {
		orders, err := repo.ListOrdersByUserID(ctx, "user-1")
		require.NoError(t, err)
		require.Len(t, orders, 2)
		assert.Equal(t, newer.ID, orders[0].ID)
		assert.Equal(t, older.ID, orders[1].ID)

		none, err := repo.ListOrdersByUserID(ctx, "nobody")
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)
	})

	t.Run("status lifecycle", func(t *testing.T) {
		updated, changed, err := repo.UpdateStatus(ctx, older.ID, domain.OrderStatusPaid)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, domain.OrderStatusPaid, updated.Status)

		again, changed, err := repo.UpdateStatus(ctx, older.ID, domain.OrderStatusPaid)
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, updated.UpdatedAt.UnixMilli(), again.UpdatedAt.UnixMilli())

		_, _, err = repo.UpdateStatus(ctx, older.ID, domain.OrderStatusPending)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)

		fetched, err := repo.GetOrderByID(ctx, older.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusPaid, fetched.Status)

		_, _, err = repo.UpdateStatus(ctx, "00000000-0000-0000-0000-000000000000", domain.OrderStatusPaid)
		assert.ErrorIs(t, err, ErrOrderNotFound)
		_, _, err = repo.UpdateStatus(ctx, "not-a-uuid", domain.OrderStatusPaid)
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})
}

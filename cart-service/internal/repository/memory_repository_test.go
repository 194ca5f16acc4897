package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjod/traced_shop/cart-service/internal/domain"
)

func TestMemory_GetCart_NotFound(t *testing.T) {
	repo := NewMemoryRepository()

	cart, err := repo.GetCart(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrCartNotFound)
	assert.Nil(t, cart)
}

func TestMemory_AddItem_ReplacesExistingProduct(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	require.NoError(t, repo.AddItem(ctx, "user1", domain.CartItem{ProductID: "1", Quantity: 2, Price: 10}))
	require.NoError(t, repo.AddItem(ctx, "user1", domain.CartItem{ProductID: "1", Quantity: 5, Price: 12}))
	require.NoError(t, repo.AddItem(ctx, "user1", domain.CartItem{ProductID: "2", Quantity: 1}))

	cart, err := repo.GetCart(ctx, "user1")
	require.NoError(t, err)
	require.Len(t, cart.Items, 2)
	assert.Equal(t, 5, cart.Items[0].Quantity)
	assert.Equal(t, 12.0, cart.Items[0].Price)
	assert.False(t, cart.Items[0].AddedAt.IsZero())
}

func TestMemory_GetCart_ReturnsCopy(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	require.NoError(t, repo.AddItem(ctx, "user1", domain.CartItem{ProductID: "1", Quantity: 2}))

	cart, err := repo.GetCart(ctx, "user1")
	require.NoError(t, err)
	cart.Items[0].Quantity = 99

	again, err := repo.GetCart(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, 2, again.Items[0].Quantity)
}

func TestMemory_UpdateItemQuantity(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	assert.ErrorIs(t, repo.UpdateItemQuantity(ctx, "user1", "1", 3), ErrItemNotFound)

	require.NoError(t, repo.AddItem(ctx, "user1", domain.CartItem{ProductID: "1", Quantity: 2}))
	require.NoError(t, repo.UpdateItemQuantity(ctx, "user1", "1", 7))
	assert.ErrorIs(t, repo.UpdateItemQuantity(ctx, "user1", "2", 3), ErrItemNotFound)

	cart, err := repo.GetCart(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, 7, cart.Items[0].Quantity)
}

func TestMemory_RemoveItem(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	assert.ErrorIs(t, repo.RemoveItem(ctx, "user1", "1"), ErrCartNotFound)

	require.NoError(t, repo.AddItem(ctx, "user1", domain.CartItem{ProductID: "1", Quantity: 2}))
	require.NoError(t, repo.AddItem(ctx, "user1", domain.CartItem{ProductID: "2", Quantity: 3}))
	require.NoError(t, repo.RemoveItem(ctx, "user1", "1"))
	// removing an absent product leaves the cart alone
	require.NoError(t, repo.RemoveItem(ctx, "user1", "42"))

	cart, err := repo.GetCart(ctx, "user1")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "2", cart.Items[0].ProductID)
}

func TestMemory_DeleteCart(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	require.NoError(t, repo.AddItem(ctx, "user1", domain.CartItem{ProductID: "1", Quantity: 2}))
	require.NoError(t, repo.DeleteCart(ctx, "user1"))
	assert.ErrorIs(t, repo.DeleteCart(ctx, "user1"), ErrCartNotFound)

	_, err := repo.GetCart(ctx, "user1")
	assert.ErrorIs(t, err, ErrCartNotFound)
}

func TestMemory_ConcurrentAdds(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = repo.AddItem(ctx, "user1", domain.CartItem{ProductID: fmt.Sprint(i), Quantity: 1})
			_, _ = repo.GetCart(ctx, "user1")
		}(i)
	}
	wg.Wait()

	cart, err := repo.GetCart(ctx, "user1")
	require.NoError(t, err)
	assert.Len(t, cart.Items, 50)
}

func TestMemory_CancelledContext(t *testing.T) {
	repo := NewMemoryRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.GetCart(ctx, "user1")
	assert.ErrorIs(t, err, context.Canceled)
}

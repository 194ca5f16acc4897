package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"

	"github.com/fjod/traced_shop/cart-service/internal/domain"
)

func setupTestDB(t *testing.T) (*MongoRepository, func()) {
	if testing.Short() {
		t.Skip("skipping MongoDB container test in short mode")
	}
	ctx := context.Background()

	// Start MongoDB container
	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)

	repo := NewMongoRepository(db)
	require.NoError(t, repo.CreateIndexes(ctx))

	cleanup := func() {
		_ = db.Client().Disconnect(ctx)
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return repo, cleanup
}

func TestMongo_GetCart_NotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	cart, err := repo.GetCart(context.Background(), "nonexistent")

	assert.ErrorIs(t, err, ErrCartNotFound)
	assert.Nil(t, cart)
}

func TestMongo_AddItem_NewCart(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	item := domain.CartItem{ProductID: "1", Quantity: 3, Price: 1299.99, Name: "Gaming Laptop"}
	require.NoError(t, repo.AddItem(ctx, "user123", item))

	cart, err := repo.GetCart(ctx, "user123")
	require.NoError(t, err)
	assert.Equal(t, "user123", cart.UserID)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "1", cart.Items[0].ProductID)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.Equal(t, "Gaming Laptop", cart.Items[0].Name)
	assert.False(t, cart.CreatedAt.IsZero())
}

func TestMongo_AddItem_ExistingItem_ReplacesSnapshot(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.AddItem(ctx, "user123", domain.CartItem{ProductID: "1", Quantity: 2, Price: 10}))
	require.NoError(t, repo.AddItem(ctx, "user123", domain.CartItem{ProductID: "1", Quantity: 5, Price: 11}))

	cart, err := repo.GetCart(ctx, "user123")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)
	assert.Equal(t, 11.0, cart.Items[0].Price)
}

func TestMongo_UpdateItemQuantity(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.AddItem(ctx, "user123", domain.CartItem{ProductID: "1", Quantity: 2}))
	require.NoError(t, repo.UpdateItemQuantity(ctx, "user123", "1", 10))
	assert.ErrorIs(t, repo.UpdateItemQuantity(ctx, "user123", "2", 10), ErrItemNotFound)

	cart, err := repo.GetCart(ctx, "user123")
	require.NoError(t, err)
	assert.Equal(t, 10, cart.Items[0].Quantity)
}

func TestMongo_RemoveItem(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.AddItem(ctx, "user123", domain.CartItem{ProductID: "1", Quantity: 2}))
	require.NoError(t, repo.AddItem(ctx, "user123", domain.CartItem{ProductID: "2", Quantity: 3}))
	require.NoError(t, repo.RemoveItem(ctx, "user123", "1"))

	cart, err := repo.GetCart(ctx, "user123")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "2", cart.Items[0].ProductID)

	assert.ErrorIs(t, repo.RemoveItem(ctx, "other", "1"), ErrCartNotFound)
}

func TestMongo_DeleteCart(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.AddItem(ctx, "user123", domain.CartItem{ProductID: "1", Quantity: 2}))
	require.NoError(t, repo.DeleteCart(ctx, "user123"))

	_, err := repo.GetCart(ctx, "user123")
	assert.ErrorIs(t, err, ErrCartNotFound)
	assert.ErrorIs(t, repo.DeleteCart(ctx, "user123"), ErrCartNotFound)
}

func TestMongo_ContextCancellation(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Nanosecond)
	defer cancel()

	time.Sleep(10 * time.Millisecond) // Ensure context is cancelled

	_, err := repo.GetCart(ctx, "user123")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "context")
}

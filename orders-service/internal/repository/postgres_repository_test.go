package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/fjod/traced_shop/orders-service/internal/domain"
)

func setupPostgres(t *testing.T) *PostgresRepository {
	if testing.Short() {
		t.Skip("skipping Postgres container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	repo, err := NewPostgresRepository(Credentials{
		Host:     host,
		Port:     port.Int(),
		User:     "testuser",
		Password: "testpass",
		DBName:   "testdb",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	require.NoError(t, repo.RunMigrations())
	// second run is a no-op
	require.NoError(t, repo.RunMigrations())
	return repo
}

func TestPostgres_Contract(t *testing.T) {
	runContract(t, setupPostgres(t))
}

func TestPostgres_TotalKeepsCents(t *testing.T) {
	repo := setupPostgres(t)
	ctx := context.Background()

	order := domain.NewOrder("user-1", []domain.OrderItem{{ProductID: "1", Quantity: 3, Price: 0.1}}, time.Now().UTC())
	require.NoError(t, repo.CreateOrder(ctx, order))

	fetched, err := repo.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.3, fetched.Total)
}

func TestPostgres_UnknownIDIsNotFound(t *testing.T) {
	repo := setupPostgres(t)

	_, err := repo.GetOrderByID(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

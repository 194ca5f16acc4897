package main

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fjod/traced_shop/cart-service/internal/cache"
	"github.com/fjod/traced_shop/cart-service/internal/consumer"
	carthttp "github.com/fjod/traced_shop/cart-service/internal/http"
	"github.com/fjod/traced_shop/cart-service/internal/products"
	"github.com/fjod/traced_shop/cart-service/internal/repository"
	"github.com/fjod/traced_shop/cart-service/internal/service"
	"github.com/fjod/traced_shop/pkg/app"
	"github.com/fjod/traced_shop/pkg/auth"
	"github.com/fjod/traced_shop/pkg/config"
	"github.com/fjod/traced_shop/pkg/events"
	"github.com/fjod/traced_shop/pkg/svcclient"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, "cart-service", "3003", func(l *config.Loader) {
		l.SetDefault("product_service_url", "http://product-service:3002")
		l.SetDefault("cart_store", "memory")
		l.SetDefault("mongo_uri", "mongodb://localhost:27017")
		l.SetDefault("mongo_db_name", "cartdb")
		l.SetDefault("redis_addr", "")
		l.SetDefault("redis_password", "")
		l.SetDefault("kafka_brokers", "")
	})
	if err != nil {
		log.Fatalf("failed to start cart-service: %v", err)
	}
	cfg := a.Config

	repo, closeRepo, err := newRepository(ctx, cfg, a.Logger)
	if err != nil {
		a.Logger.Fatal("failed to open cart store", zap.Error(err))
	}
	defer closeRepo()

	var cartCache cache.CartCache = cache.Nop{}
	if addr := cfg.String("redis_addr"); addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.String("redis_password"),
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			a.Logger.Fatal("redis connection failed", zap.String("addr", addr), zap.Error(err))
		}
		cartCache = cache.NewRedisCache(redisClient)
		a.Logger.Info("redis cache enabled", zap.String("addr", addr))
	}

	productClient := svcclient.New(svcclient.Config{
		Source:  a.Base.ServiceName,
		Target:  "product-service",
		BaseURL: cfg.String("product_service_url"),
		Logger:  a.Logger,
	})
	svc := service.NewCartService(repo, cartCache, products.NewClient(productClient), a.Logger)

	if brokers := cfg.Strings("kafka_brokers"); len(brokers) > 0 {
		c := events.NewConsumer(events.OrderEventsTopic, consumer.GroupID,
			consumer.NewOrderCreatedHandler(svc, a.Logger), a.Logger, brokers...)
		defer c.Close()
		go c.Run(ctx)
		a.Logger.Info("order events consumer started", zap.Strings("brokers", brokers))
	}

	carthttp.NewCartHandler(svc, a.Logger).Routes(a.Router, auth.NewIssuer(a.Base.JWTSecret))

	if err := a.Run(ctx); err != nil {
		a.Logger.Fatal("server error", zap.Error(err))
	}
}

func newRepository(ctx context.Context, cfg *config.Loader, log *zap.Logger) (repository.CartRepository, func(), error) {
	if cfg.String("cart_store") != "mongo" {
		return repository.NewMemoryRepository(), func() {}, nil
	}

	db, err := repository.ConnectMongoDB(ctx, cfg.String("mongo_uri"), cfg.String("mongo_db_name"))
	if err != nil {
		return nil, nil, err
	}
	repo := repository.NewMongoRepository(db)
	if err := repo.CreateIndexes(ctx); err != nil {
		log.Warn("failed to create cart indexes", zap.Error(err))
	}
	log.Info("connected to MongoDB", zap.String("database", cfg.String("mongo_db_name")))

	return repo, func() { _ = db.Client().Disconnect(context.Background()) }, nil
}

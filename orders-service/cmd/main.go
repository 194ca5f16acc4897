package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	"github.com/fjod/traced_shop/orders-service/internal/carts"
	ordershttp "github.com/fjod/traced_shop/orders-service/internal/http"
	"github.com/fjod/traced_shop/orders-service/internal/repository"
	"github.com/fjod/traced_shop/orders-service/internal/service"
	"github.com/fjod/traced_shop/pkg/app"
	"github.com/fjod/traced_shop/pkg/auth"
	"github.com/fjod/traced_shop/pkg/config"
	"github.com/fjod/traced_shop/pkg/events"
	"github.com/fjod/traced_shop/pkg/svcclient"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, "orders-service", "3004", func(l *config.Loader) {
		l.SetDefault("cart_service_url", "http://cart-service:3003")
		l.SetDefault("order_store", "file")
		l.SetDefault("orders_file", "./data/orders.json")
		l.SetDefault("db_host", "localhost")
		l.SetDefault("db_port", 5432)
		l.SetDefault("db_user", "postgres")
		l.SetDefault("db_password", "postgres")
		l.SetDefault("db_name", "orders")
		l.SetDefault("kafka_brokers", "")
	})
	if err != nil {
		log.Fatalf("failed to start orders-service: %v", err)
	}
	cfg := a.Config

	repo, err := newRepository(cfg, a.Logger)
	if err != nil {
		a.Logger.Fatal("failed to open order store", zap.Error(err))
	}
	defer repo.Close()

	var publisher events.Publisher = events.NopPublisher{}
	if brokers := cfg.Strings("kafka_brokers"); len(brokers) > 0 {
		publisher = events.NewKafkaPublisher(events.OrderEventsTopic, brokers...)
		a.Logger.Info("publishing order events", zap.Strings("brokers", brokers))
	}
	defer publisher.Close()

	cartClient := svcclient.New(svcclient.Config{
		Source:  a.Base.ServiceName,
		Target:  "cart-service",
		BaseURL: cfg.String("cart_service_url"),
		Logger:  a.Logger,
	})
	svc := service.NewOrderService(repo, carts.NewClient(cartClient), publisher, a.Logger)

	ordershttp.NewOrderHandler(svc, a.Logger).Routes(a.Router, auth.NewIssuer(a.Base.JWTSecret))

	if err := a.Run(ctx); err != nil {
		a.Logger.Fatal("server error", zap.Error(err))
	}
}

func newRepository(cfg *config.Loader, log *zap.Logger) (repository.OrderRepository, error) {
	if cfg.String("order_store") != "postgres" {
		path := cfg.String("orders_file")
		log.Info("using file order store", zap.String("path", path))
		return repository.NewFileRepository(path)
	}

	repo, err := repository.NewPostgresRepository(repository.Credentials{
		Host:     cfg.String("db_host"),
		Port:     cfg.Int("db_port"),
		User:     cfg.String("db_user"),
		Password: cfg.String("db_password"),
		DBName:   cfg.String("db_name"),
	})
	if err != nil {
		return nil, err
	}
	if err := repo.RunMigrations(); err != nil {
		_ = repo.Close()
		return nil, err
	}
	log.Info("connected to PostgreSQL", zap.String("database", cfg.String("db_name")))
	return repo, nil
}

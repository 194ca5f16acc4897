package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	gatewayhttp "github.com/fjod/traced_shop/api-gateway/internal/http"
	"github.com/fjod/traced_shop/pkg/app"
	"github.com/fjod/traced_shop/pkg/config"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, "api-gateway", "8080", func(l *config.Loader) {
		l.SetDefault("auth_service_url", "http://auth-service:3001")
		l.SetDefault("product_service_url", "http://product-service:3002")
		l.SetDefault("cart_service_url", "http://cart-service:3003")
		l.SetDefault("order_service_url", "http://orders-service:3004")
		l.SetDefault("todo_service_url", "http://todo-service:8000")
	})
	if err != nil {
		log.Fatalf("failed to start api-gateway: %v", err)
	}
	cfg := a.Config

	routes := gatewayhttp.DefaultRoutes(
		cfg.String("auth_service_url"),
		cfg.String("product_service_url"),
		cfg.String("cart_service_url"),
		cfg.String("order_service_url"),
		cfg.String("todo_service_url"),
	)
	if err := gatewayhttp.Mount(a.Router, a.Base.ServiceName, routes, a.Logger); err != nil {
		a.Logger.Fatal("invalid upstream configuration", zap.Error(err))
	}

	if err := a.Run(ctx); err != nil {
		a.Logger.Fatal("server error", zap.Error(err))
	}
}

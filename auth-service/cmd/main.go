package main

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	authhttp "github.com/fjod/traced_shop/auth-service/internal/http"
	"github.com/fjod/traced_shop/auth-service/internal/repository"
	"github.com/fjod/traced_shop/auth-service/internal/service"
	"github.com/fjod/traced_shop/auth-service/internal/session"
	"github.com/fjod/traced_shop/pkg/app"
	"github.com/fjod/traced_shop/pkg/auth"
	"github.com/fjod/traced_shop/pkg/config"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, "auth-service", "3001", func(l *config.Loader) {
		l.SetDefault("users_file", "./data/users.json")
		l.SetDefault("session_store", "memory")
		l.SetDefault("redis_addr", "localhost:6379")
		l.SetDefault("redis_password", "")
	})
	if err != nil {
		log.Fatalf("failed to start auth-service: %v", err)
	}
	cfg := a.Config

	users, err := repository.NewFileUserRepository(cfg.String("users_file"))
	if err != nil {
		a.Logger.Fatal("failed to load users", zap.Error(err))
	}

	var sessions session.Store
	if cfg.String("session_store") == "redis" {
		addr := cfg.String("redis_addr")
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.String("redis_password"),
		})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			a.Logger.Fatal("redis connection failed", zap.String("addr", addr), zap.Error(err))
		}
		sessions = session.NewRedisStore(client)
		a.Logger.Info("using redis session store", zap.String("addr", addr))
	} else {
		memory := session.NewMemoryStore()
		defer memory.Close()
		sessions = memory
	}

	issuer := auth.NewIssuer(a.Base.JWTSecret)
	svc := service.NewAuthService(users, sessions, issuer, a.Logger)
	authhttp.NewAuthHandler(svc, a.Logger).Routes(a.Router, issuer)

	if err := a.Run(ctx); err != nil {
		a.Logger.Fatal("server error", zap.Error(err))
	}
}

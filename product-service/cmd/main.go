package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	"github.com/fjod/traced_shop/pkg/app"
	"github.com/fjod/traced_shop/pkg/config"
	producthttp "github.com/fjod/traced_shop/product-service/internal/http"
	"github.com/fjod/traced_shop/product-service/internal/repository"
)

func main() {
	ctx := context.Background()

	a, err := app.New(ctx, "product-service", "3002", func(l *config.Loader) {
		l.SetDefault("product_store", "file")
		l.SetDefault("products_file", "./data/products.json")
		l.SetDefault("db_path", "./data/products.db")
	})
	if err != nil {
		log.Fatalf("failed to start product-service: %v", err)
	}

	repo, err := newRepository(a.Config)
	if err != nil {
		a.Logger.Fatal("failed to open product store", zap.Error(err))
	}
	defer repo.Close()

	producthttp.NewProductHandler(repo, a.Logger).Routes(a.Router)

	if err := a.Run(ctx); err != nil {
		a.Logger.Fatal("server error", zap.Error(err))
	}
}

func newRepository(cfg *config.Loader) (repository.ProductRepository, error) {
	if cfg.String("product_store") == "sqlite" {
		repo, err := repository.NewSQLiteRepository(cfg.String("db_path"))
		if err != nil {
			return nil, err
		}
		if err := repo.RunMigrations(); err != nil {
			repo.Close()
			return nil, err
		}
		return repo, nil
	}
	return repository.NewFileRepository(cfg.String("products_file"))
}

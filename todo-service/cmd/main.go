package main

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"go.elastic.co/apm/module/apmhttp/v2"
	"go.elastic.co/apm/v2"
	"go.uber.org/zap"

	"github.com/fjod/traced_shop/pkg/app"
	"github.com/fjod/traced_shop/pkg/config"
	todohttp "github.com/fjod/traced_shop/todo-service/internal/http"
	"github.com/fjod/traced_shop/todo-service/internal/repository"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, "todo-service", "8000", func(l *config.Loader) {
		l.SetDefault("db_path", "./data/todos.db")
	})
	if err != nil {
		log.Fatalf("failed to start todo-service: %v", err)
	}

	// ELASTIC_APM_SERVER_URL and friends are read from the environment.
	tracer, err := apm.NewTracerOptions(apm.TracerOptions{
		ServiceName:        a.Base.ServiceName,
		ServiceVersion:     a.Base.ServiceVersion,
		ServiceEnvironment: a.Base.Environment,
	})
	if err != nil {
		a.Logger.Fatal("failed to init Elastic APM", zap.Error(err))
	}
	defer tracer.Close()

	dbPath := a.Config.String("db_path")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		a.Logger.Fatal("failed to create data directory", zap.Error(err))
	}
	repo, err := repository.NewSQLiteRepository(dbPath)
	if err != nil {
		a.Logger.Fatal("failed to open todo database", zap.Error(err))
	}
	defer repo.Close()

	if err := repo.RunMigrations(); err != nil {
		a.Logger.Fatal("failed to run migrations", zap.Error(err))
	}
	seeded, err := repo.Seed(ctx)
	if err != nil {
		a.Logger.Fatal("failed to seed todos", zap.Error(err))
	}
	if seeded {
		a.Logger.Info("initialized database with sample todos")
	}

	todohttp.NewTodoHandler(repo, a.Logger).Routes(a.Router)

	if err := a.Serve(ctx, apmhttp.Wrap(a.Router, apmhttp.WithTracer(tracer))); err != nil {
		a.Logger.Fatal("server error", zap.Error(err))
	}
}

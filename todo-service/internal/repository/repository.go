package repository

import (
	"context"
	"errors"

	"github.com/fjod/traced_shop/todo-service/internal/domain"
)

var ErrTodoNotFound = errors.New("todo not found")

type TodoRepository interface {
	Create(ctx context.Context, in domain.TodoCreate) (*domain.Todo, error)
	Get(ctx context.Context, id int64) (*domain.Todo, error)
	List(ctx context.Context, skip, limit int) ([]*domain.Todo, error)
	Update(ctx context.Context, id int64, u domain.TodoUpdate) (*domain.Todo, error)
	Delete(ctx context.Context, id int64) (*domain.Todo, error)
	Close() error
}

var _ TodoRepository = (*SQLiteRepository)(nil)

package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.elastic.co/apm/module/apmsql/v2"
	"modernc.org/sqlite"

	"github.com/fjod/traced_shop/todo-service/internal/domain"
)

const driverName = "sqlite"

//go:embed migrations/*.sql
var migrationsFS embed.FS

var registerOnce sync.Once

// registerDriver makes the APM-wrapped sqlite driver available as
// apmsql.DriverPrefix+"sqlite". Queries run with a transaction in their
// context are reported as db spans.
func registerDriver() {
	registerOnce.Do(func() {
		apmsql.Register(driverName, &sqlite.Driver{})
	})
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dsn string) (*SQLiteRepository, error) {
	registerDriver()

	db, err := apmsql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// :memory: databases are per connection
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) RunMigrations() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("could not open migrations: %w", err)
	}

	driver, err := migratesqlite.WithInstance(r.db, &migratesqlite.Config{MigrationsTable: "todos_schema_migrations"})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

// Seed inserts the sample todos when the table is empty. It reports whether
// anything was inserted.
func (r *SQLiteRepository) Seed(ctx context.Context) (bool, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM todos").Scan(&count); err != nil {
		return false, fmt.Errorf("failed to count todos: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, t := range domain.SeedTodos() {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO todos (title, description, completed) VALUES (?, ?, ?)",
			t.Title, t.Description, t.Completed,
		); err != nil {
			return false, fmt.Errorf("failed to seed todo: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit seed: %w", err)
	}
	return true, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, in domain.TodoCreate) (*domain.Todo, error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO todos (title, description, completed) VALUES (?, ?, ?)",
		in.Title, in.Description, in.Completed,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert todo: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read todo id: %w", err)
	}
	return &domain.Todo{
		ID:          id,
		Title:       in.Title,
		Description: in.Description,
		Completed:   in.Completed,
	}, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id int64) (*domain.Todo, error) {
	return r.get(ctx, r.db, id)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *SQLiteRepository) get(ctx context.Context, q querier, id int64) (*domain.Todo, error) {
	var t domain.Todo
	err := q.QueryRowContext(ctx,
		"SELECT id, title, description, completed FROM todos WHERE id = ?", id,
	).Scan(&t.ID, &t.Title, &t.Description, &t.Completed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTodoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query todo: %w", err)
	}
	return &t, nil
}

// List pages through todos in id order. The result is never nil.
func (r *SQLiteRepository) List(ctx context.Context, skip, limit int) ([]*domain.Todo, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, title, description, completed FROM todos ORDER BY id LIMIT ? OFFSET ?",
		limit, skip,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query todos: %w", err)
	}
	defer rows.Close()

	todos := []*domain.Todo{}
	for rows.Next() {
		var t domain.Todo
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Completed); err != nil {
			return nil, fmt.Errorf("failed to scan todo: %w", err)
		}
		todos = append(todos, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return todos, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, id int64, u domain.TodoUpdate) (*domain.Todo, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	t, err := r.get(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	u.Apply(t)

	if _, err := tx.ExecContext(ctx,
		"UPDATE todos SET title = ?, description = ?, completed = ? WHERE id = ?",
		t.Title, t.Description, t.Completed, id,
	); err != nil {
		return nil, fmt.Errorf("failed to update todo: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit update: %w", err)
	}
	return t, nil
}

// Delete removes the todo and returns it as it was.
func (r *SQLiteRepository) Delete(ctx context.Context, id int64) (*domain.Todo, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	t, err := r.get(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM todos WHERE id = ?", id); err != nil {
		return nil, fmt.Errorf("failed to delete todo: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit delete: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

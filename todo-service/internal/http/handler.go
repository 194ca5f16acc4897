package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.elastic.co/apm/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fjod/traced_shop/pkg/httpx"
	"github.com/fjod/traced_shop/pkg/logger"
	"github.com/fjod/traced_shop/pkg/telemetry"
	"github.com/fjod/traced_shop/todo-service/internal/domain"
	"github.com/fjod/traced_shop/todo-service/internal/repository"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

type TodoHandler struct {
	repo repository.TodoRepository
	log  *zap.Logger
}

func NewTodoHandler(repo repository.TodoRepository, log *zap.Logger) *TodoHandler {
	return &TodoHandler{repo: repo, log: log}
}

func (h *TodoHandler) Routes(r chi.Router) {
	r.Route("/todos", func(r chi.Router) {
		r.Post("/", h.CreateTodo)
		r.Get("/", h.ListTodos)
		r.Get("/{id}", h.GetTodo)
		r.Put("/{id}", h.UpdateTodo)
		r.Delete("/{id}", h.DeleteTodo)
	})
	r.Get("/error", h.Error)
}

// startSpans opens an OpenTelemetry span and an Elastic APM span for the
// same operation. The APM span is a no-op outside an APM transaction.
func startSpans(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span, func()) {
	ctx, span := telemetry.StartSpan(ctx, name, attrs...)
	apmSpan, ctx := apm.StartSpan(ctx, name, "app")
	return ctx, span, func() {
		apmSpan.End()
		span.End()
	}
}

func (h *TodoHandler) CreateTodo(w http.ResponseWriter, r *http.Request) {
	ctx, span, end := startSpans(r.Context(), "createTodo")
	defer end()

	var in domain.TodoCreate
	if err := httpx.DecodeAndValidate(r, &in); err != nil {
		logger.For(ctx, h.log).Warn("invalid todo", zap.Error(err))
		httpx.RespondError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	todo, err := h.repo.Create(ctx, in)
	if err != nil {
		h.internalError(ctx, w, r, span, "createTodo", err)
		return
	}

	span.SetAttributes(attribute.Int64("todo.id", todo.ID))
	logger.For(ctx, h.log).Info("todo created", zap.Int64("todo_id", todo.ID))
	httpx.RespondJSON(w, http.StatusCreated, todo)
}

func (h *TodoHandler) ListTodos(w http.ResponseWriter, r *http.Request) {
	ctx, span, end := startSpans(r.Context(), "listTodos")
	defer end()

	skip, limit, err := paging(r)
	if err != nil {
		httpx.RespondError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	span.SetAttributes(attribute.Int("todo.skip", skip), attribute.Int("todo.limit", limit))

	todos, err := h.repo.List(ctx, skip, limit)
	if err != nil {
		h.internalError(ctx, w, r, span, "listTodos", err)
		return
	}

	logger.For(ctx, h.log).Info("todos fetched", zap.Int("count", len(todos)))
	httpx.RespondJSON(w, http.StatusOK, todos)
}

func (h *TodoHandler) GetTodo(w http.ResponseWriter, r *http.Request) {
	id, ok := todoID(w, r)
	if !ok {
		return
	}
	ctx, span, end := startSpans(r.Context(), "readTodo", attribute.Int64("todo.id", id))
	defer end()

	todo, err := h.repo.Get(ctx, id)
	if err != nil {
		h.respondRepoError(ctx, w, r, span, "readTodo", err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, todo)
}

func (h *TodoHandler) UpdateTodo(w http.ResponseWriter, r *http.Request) {
	id, ok := todoID(w, r)
	if !ok {
		return
	}
	ctx, span, end := startSpans(r.Context(), "updateTodo", attribute.Int64("todo.id", id))
	defer end()

	var u domain.TodoUpdate
	if err := httpx.DecodeAndValidate(r, &u); err != nil {
		httpx.RespondError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	todo, err := h.repo.Update(ctx, id, u)
	if err != nil {
		h.respondRepoError(ctx, w, r, span, "updateTodo", err)
		return
	}
	logger.For(ctx, h.log).Info("todo updated", zap.Int64("todo_id", id))
	httpx.RespondJSON(w, http.StatusOK, todo)
}

func (h *TodoHandler) DeleteTodo(w http.ResponseWriter, r *http.Request) {
	id, ok := todoID(w, r)
	if !ok {
		return
	}
	ctx, span, end := startSpans(r.Context(), "deleteTodo", attribute.Int64("todo.id", id))
	defer end()

	todo, err := h.repo.Delete(ctx, id)
	if err != nil {
		h.respondRepoError(ctx, w, r, span, "deleteTodo", err)
		return
	}
	logger.For(ctx, h.log).Info("todo deleted", zap.Int64("todo_id", id))
	httpx.RespondJSON(w, http.StatusOK, todo)
}

// Error always fails. It exists to exercise error reporting end to end.
func (h *TodoHandler) Error(w http.ResponseWriter, r *http.Request) {
	ctx, span, end := startSpans(r.Context(), "errorHandler")
	defer end()

	err := errors.New("this is an error")
	telemetry.RecordError(span, err)
	apm.CaptureError(ctx, err).Send()
	logger.For(ctx, h.log).Error("triggered error endpoint", zap.String("operation", "errorHandler"))
	httpx.RespondError(w, r, http.StatusInternalServerError, "internal_error", "This is an error")
}

func (h *TodoHandler) respondRepoError(ctx context.Context, w http.ResponseWriter, r *http.Request, span trace.Span, op string, err error) {
	if errors.Is(err, repository.ErrTodoNotFound) {
		logger.For(ctx, h.log).Info("todo not found", zap.String("operation", op))
		httpx.RespondError(w, r, http.StatusNotFound, "not_found", "ToDo not found")
		return
	}
	h.internalError(ctx, w, r, span, op, err)
}

func (h *TodoHandler) internalError(ctx context.Context, w http.ResponseWriter, r *http.Request, span trace.Span, op string, err error) {
	telemetry.RecordError(span, err)
	apm.CaptureError(ctx, err).Send()
	logger.For(ctx, h.log).Error("database error", zap.String("operation", op), zap.Error(err))
	httpx.RespondError(w, r, http.StatusInternalServerError, "internal_error", "database error")
}

func todoID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, r, http.StatusBadRequest, "invalid_id", "Invalid ID")
		return 0, false
	}
	return id, true
}

// paging reads skip and limit. A missing or zero limit means defaultLimit;
// larger limits are capped at maxLimit.
func paging(r *http.Request) (skip, limit int, err error) {
	q := r.URL.Query()
	if s := q.Get("skip"); s != "" {
		if skip, err = strconv.Atoi(s); err != nil || skip < 0 {
			return 0, 0, errors.New("skip must be a non-negative integer")
		}
	}
	if s := q.Get("limit"); s != "" {
		if limit, err = strconv.Atoi(s); err != nil || limit < 0 {
			return 0, 0, errors.New("limit must be a non-negative integer")
		}
	}
	if limit == 0 {
		limit = defaultLimit
	}
	return skip, min(limit, maxLimit), nil
}

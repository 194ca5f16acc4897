package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fjod/traced_shop/orders-service/internal/domain"
	"github.com/fjod/traced_shop/orders-service/internal/repository"
	"github.com/fjod/traced_shop/orders-service/internal/service"
	"github.com/fjod/traced_shop/pkg/auth"
	"github.com/fjod/traced_shop/pkg/httpx"
	"github.com/fjod/traced_shop/pkg/logger"
	"github.com/fjod/traced_shop/pkg/svcclient"
	"github.com/fjod/traced_shop/pkg/telemetry"
)

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type OrderHandler struct {
	svc *service.OrderService
	log *zap.Logger
}

func NewOrderHandler(svc *service.OrderService, log *zap.Logger) *OrderHandler {
	return &OrderHandler{svc: svc, log: log}
}

// Routes registers the order API. The second path segment is a user id for
// reads and an order id for status updates, so it is named {id}.
func (h *OrderHandler) Routes(r chi.Router, issuer *auth.Issuer) {
	r.Route("/api/orders", func(r chi.Router) {
		r.Use(auth.Middleware(issuer))

		r.With(auth.RequireOwner("userId")).Post("/checkout/{userId}", h.Checkout)
		r.Route("/{id}", func(r chi.Router) {
			r.With(auth.RequireOwner("id")).Get("/", h.ListOrders)
			r.With(auth.RequireOwner("id")).Get("/{orderId}", h.GetOrder)
			r.Put("/status", h.UpdateStatus)
		})
	})
}

func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	ctx := r.Context()

	order, err := h.svc.Checkout(ctx, userID)
	switch {
	case errors.Is(err, service.ErrEmptyCart):
		httpx.RespondError(w, r, http.StatusBadRequest, "empty_cart", "Cart is empty")
		return
	case errors.Is(err, svcclient.ErrUnavailable):
		logger.For(ctx, h.log).Error("checkout failed", zap.String("user_id", userID), zap.Error(err))
		httpx.RespondError(w, r, http.StatusServiceUnavailable, "upstream_unavailable", "cart service is unavailable")
		return
	case errors.Is(err, service.ErrCartLookup):
		logger.For(ctx, h.log).Error("checkout failed", zap.String("user_id", userID), zap.Error(err))
		httpx.RespondError(w, r, http.StatusBadGateway, "upstream_error", "Failed to fetch cart")
		return
	case err != nil:
		logger.For(ctx, h.log).Error("checkout failed", zap.String("user_id", userID), zap.Error(err))
		httpx.RespondError(w, r, http.StatusInternalServerError, "internal_error", "failed to create order")
		return
	}

	httpx.RespondJSON(w, http.StatusCreated, order)
}

func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	ctx, span := telemetry.StartSpan(r.Context(), "get-orders", attribute.String("user.id", userID))
	defer span.End()

	orders, err := h.svc.ListOrders(ctx, userID)
	if err != nil {
		telemetry.RecordError(span, err)
		logger.For(ctx, h.log).Error("failed to list orders", zap.String("user_id", userID), zap.Error(err))
		httpx.RespondError(w, r, http.StatusInternalServerError, "internal_error", "failed to list orders")
		return
	}

	span.SetAttributes(attribute.Int("order.count", len(orders)))
	httpx.RespondJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	orderID := chi.URLParam(r, "orderId")
	ctx, span := telemetry.StartSpan(r.Context(), "get-order",
		attribute.String("user.id", userID),
		attribute.String("order.id", orderID),
	)
	defer span.End()

	order, err := h.svc.GetOrder(ctx, userID, orderID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx, span := telemetry.StartSpan(r.Context(), "update-order-status", attribute.String("order.id", orderID))
	defer span.End()

	var req UpdateStatusRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	span.SetAttributes(attribute.String("order.status", req.Status))

	user, _ := auth.UserFromContext(ctx)
	order, err := h.svc.UpdateStatus(ctx, user.UserID, orderID, req.Status)
	if err != nil {
		if !errors.Is(err, repository.ErrOrderNotFound) {
			telemetry.RecordError(span, err)
		}
		h.respondError(w, r, err)
		return
	}

	logger.For(ctx, h.log).Info("order status updated",
		zap.String("order_id", order.ID),
		zap.String("status", string(order.Status)),
	)
	httpx.RespondJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repository.ErrOrderNotFound):
		httpx.RespondError(w, r, http.StatusNotFound, "not_found", "Order not found")
	case errors.Is(err, domain.ErrInvalidStatus):
		httpx.RespondError(w, r, http.StatusBadRequest, "invalid_status", err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		httpx.RespondError(w, r, http.StatusConflict, "invalid_transition", err.Error())
	default:
		logger.For(r.Context(), h.log).Error("order operation failed", zap.Error(err))
		httpx.RespondError(w, r, http.StatusInternalServerError, "internal_error", "order operation failed")
	}
}

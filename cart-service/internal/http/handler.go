package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fjod/traced_shop/cart-service/internal/domain"
	"github.com/fjod/traced_shop/cart-service/internal/repository"
	"github.com/fjod/traced_shop/cart-service/internal/service"
	"github.com/fjod/traced_shop/pkg/auth"
	"github.com/fjod/traced_shop/pkg/httpx"
	"github.com/fjod/traced_shop/pkg/logger"
	"github.com/fjod/traced_shop/pkg/svcclient"
	"github.com/fjod/traced_shop/pkg/telemetry"
)

type AddItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"min=1"`
}

type UpdateItemRequest struct {
	Quantity int `json:"quantity" validate:"min=1"`
}

type CartResponse struct {
	*domain.Cart
	Total float64 `json:"total"`
}

type CartHandler struct {
	svc *service.CartService
	log *zap.Logger
}

func NewCartHandler(svc *service.CartService, log *zap.Logger) *CartHandler {
	return &CartHandler{svc: svc, log: log}
}

func (h *CartHandler) Routes(r chi.Router, issuer *auth.Issuer) {
	r.Route("/api/cart/{userId}", func(r chi.Router) {
		r.Use(auth.Middleware(issuer))
		r.Use(auth.RequireOwner("userId"))

		r.Get("/", h.GetCart)
		r.Delete("/", h.ClearCart)
		r.Post("/items", h.AddItem)
		r.Put("/items/{productId}", h.UpdateItem)
		r.Delete("/items/{productId}", h.RemoveItem)
	})
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	ctx, span := telemetry.StartSpan(r.Context(), "get-cart", attribute.String("user.id", userID))
	defer span.End()

	cart, err := h.svc.GetCart(ctx, userID)
	if err != nil {
		telemetry.RecordError(span, err)
		logger.For(ctx, h.log).Error("failed to load cart", zap.String("user_id", userID), zap.Error(err))
		httpx.RespondError(w, r, http.StatusInternalServerError, "internal_error", "failed to load cart")
		return
	}

	span.SetAttributes(attribute.Int("cart.items", len(cart.Items)))
	httpx.RespondJSON(w, http.StatusOK, newCartResponse(cart))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	ctx, span := telemetry.StartSpan(r.Context(), "add-to-cart", attribute.String("user.id", userID))
	defer span.End()

	var req AddItemRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		logger.For(ctx, h.log).Info("invalid add item request", zap.String("user_id", userID), zap.Error(err))
		httpx.RespondError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	span.SetAttributes(
		attribute.String("product.id", req.ProductID),
		attribute.Int("quantity", req.Quantity),
	)

	cart, err := h.svc.AddItem(ctx, userID, req.ProductID, req.Quantity)
	if err != nil {
		h.respondServiceError(w, r, err)
		telemetry.RecordError(span, err)
		return
	}

	logger.For(ctx, h.log).Info("item added to cart",
		zap.String("user_id", userID),
		zap.String("product_id", req.ProductID),
		zap.Int("quantity", req.Quantity),
	)
	httpx.RespondJSON(w, http.StatusOK, newCartResponse(cart))
}

func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	productID := chi.URLParam(r, "productId")
	ctx, span := telemetry.StartSpan(r.Context(), "update-cart-item",
		attribute.String("user.id", userID),
		attribute.String("product.id", productID),
	)
	defer span.End()

	var req UpdateItemRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	span.SetAttributes(attribute.Int("quantity", req.Quantity))

	cart, err := h.svc.UpdateQuantity(ctx, userID, productID, req.Quantity)
	if err != nil {
		h.respondServiceError(w, r, err)
		telemetry.RecordError(span, err)
		return
	}

	httpx.RespondJSON(w, http.StatusOK, newCartResponse(cart))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	productID := chi.URLParam(r, "productId")
	ctx, span := telemetry.StartSpan(r.Context(), "remove-from-cart",
		attribute.String("user.id", userID),
		attribute.String("product.id", productID),
	)
	defer span.End()

	cart, err := h.svc.RemoveItem(ctx, userID, productID)
	if err != nil {
		h.respondServiceError(w, r, err)
		telemetry.RecordError(span, err)
		return
	}

	httpx.RespondJSON(w, http.StatusOK, newCartResponse(cart))
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	ctx, span := telemetry.StartSpan(r.Context(), "clear-cart", attribute.String("user.id", userID))
	defer span.End()

	if err := h.svc.ClearCart(ctx, userID); err != nil {
		h.respondServiceError(w, r, err)
		telemetry.RecordError(span, err)
		return
	}

	logger.For(ctx, h.log).Info("cart cleared", zap.String("user_id", userID))
	httpx.RespondJSON(w, http.StatusOK, map[string]string{"message": "Cart cleared"})
}

func (h *CartHandler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		httpx.RespondError(w, r, http.StatusNotFound, "product_not_found", "Product not found")
	case errors.Is(err, repository.ErrCartNotFound):
		httpx.RespondError(w, r, http.StatusNotFound, "cart_not_found", "Cart not found")
	case errors.Is(err, repository.ErrItemNotFound):
		httpx.RespondError(w, r, http.StatusNotFound, "item_not_found", "Item not found in cart")
	case errors.Is(err, svcclient.ErrUnavailable):
		httpx.RespondError(w, r, http.StatusServiceUnavailable, "upstream_unavailable", "product service is unavailable")
	case errors.Is(err, service.ErrProductLookup):
		logger.For(r.Context(), h.log).Error("product lookup failed", zap.Error(err))
		httpx.RespondError(w, r, http.StatusBadGateway, "upstream_error", "failed to verify product")
	default:
		logger.For(r.Context(), h.log).Error("cart operation failed", zap.Error(err))
		httpx.RespondError(w, r, http.StatusInternalServerError, "internal_error", "cart operation failed")
	}
}

func newCartResponse(c *domain.Cart) CartResponse {
	return CartResponse{Cart: c, Total: c.Total()}
}

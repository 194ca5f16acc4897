package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fjod/traced_shop/pkg/httpx"
	"github.com/fjod/traced_shop/pkg/logger"
	"github.com/fjod/traced_shop/pkg/telemetry"
	"github.com/fjod/traced_shop/product-service/internal/domain"
	"github.com/fjod/traced_shop/product-service/internal/repository"
)

type ProductHandler struct {
	repo repository.ProductRepository
	log  *zap.Logger
}

func NewProductHandler(repo repository.ProductRepository, log *zap.Logger) *ProductHandler {
	return &ProductHandler{repo: repo, log: log}
}

func (h *ProductHandler) Routes(r chi.Router) {
	r.Get("/api/products", h.GetProducts)
	r.Get("/api/products/{id}", h.GetProduct)
	r.Get("/api/products/category/{category}", h.GetProductsByCategory)
}

func (h *ProductHandler) GetProducts(w http.ResponseWriter, r *http.Request) {
	ctx, span := telemetry.StartSpan(r.Context(), "get-products")
	defer span.End()

	products, err := h.repo.GetAllProducts(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		logger.For(ctx, h.log).Error("failed to fetch products", zap.Error(err))
		httpx.RespondError(w, r, http.StatusInternalServerError, "internal_error", "failed to fetch products")
		return
	}
	if products == nil {
		products = []*domain.Product{}
	}

	span.SetAttributes(attribute.Int("product.count", len(products)))
	httpx.RespondJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, span := telemetry.StartSpan(r.Context(), "get-product", attribute.String("product.id", id))
	defer span.End()

	product, err := h.repo.GetProduct(ctx, id)
	if errors.Is(err, repository.ErrProductNotFound) {
		logger.For(ctx, h.log).Info("product not found", zap.String("product_id", id))
		httpx.RespondError(w, r, http.StatusNotFound, "not_found", "Product not found")
		return
	}
	if err != nil {
		telemetry.RecordError(span, err)
		logger.For(ctx, h.log).Error("failed to fetch product", zap.String("product_id", id), zap.Error(err))
		httpx.RespondError(w, r, http.StatusInternalServerError, "internal_error", "failed to fetch product")
		return
	}

	httpx.RespondJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) GetProductsByCategory(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	ctx, span := telemetry.StartSpan(r.Context(), "get-products-by-category", attribute.String("product.category", category))
	defer span.End()

	products, err := h.repo.GetProductsByCategory(ctx, category)
	if err != nil {
		telemetry.RecordError(span, err)
		logger.For(ctx, h.log).Error("failed to fetch products by category", zap.String("category", category), zap.Error(err))
		httpx.RespondError(w, r, http.StatusInternalServerError, "internal_error", "failed to fetch products")
		return
	}
	if len(products) == 0 {
		httpx.RespondError(w, r, http.StatusNotFound, "not_found", "No products found in this category")
		return
	}

	span.SetAttributes(attribute.Int("product.count", len(products)))
	httpx.RespondJSON(w, http.StatusOK, products)
}

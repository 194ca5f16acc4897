package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fjod/traced_shop/orders-service/internal/carts"
	"github.com/fjod/traced_shop/orders-service/internal/domain"
	"github.com/fjod/traced_shop/orders-service/internal/repository"
	"github.com/fjod/traced_shop/pkg/events"
	"github.com/fjod/traced_shop/pkg/logger"
	"github.com/fjod/traced_shop/pkg/telemetry"
)

var (
	ErrEmptyCart = errors.New("cart is empty")
	// ErrCartLookup wraps any failure reading the cart from cart-service.
	ErrCartLookup = errors.New("failed to fetch cart")
)

type CartClient interface {
	GetCart(ctx context.Context, userID string) (*carts.Cart, error)
	ClearCart(ctx context.Context, userID string) error
}

type OrderService struct {
	repo      repository.OrderRepository
	carts     CartClient
	publisher events.Publisher
	log       *zap.Logger
	now       func() time.Time
}

func NewOrderService(repo repository.OrderRepository, carts CartClient, publisher events.Publisher, log *zap.Logger) *OrderService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderService{
		repo:      repo,
		carts:     carts,
		publisher: publisher,
		log:       log,
		now:       time.Now,
	}
}

// Checkout turns the user's cart into a pending order. Clearing the cart
// and publishing order.created happen after the order is stored; their
// failures are logged and recorded on the span but never undo the order.
func (s *OrderService) Checkout(ctx context.Context, userID string) (*domain.Order, error) {
	ctx, span := telemetry.StartSpan(ctx, "checkout", attribute.String("user.id", userID))
	defer span.End()

	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("%w: %w", ErrCartLookup, err)
	}
	if len(cart.Items) == 0 {
		return nil, ErrEmptyCart
	}

	order := domain.NewOrder(userID, cart.Items, s.now())
	span.SetAttributes(
		attribute.String("order.id", order.ID),
		attribute.Int("order.items", len(order.Items)),
		attribute.Float64("order.total", order.Total),
	)

	if err := s.repo.CreateOrder(ctx, order); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("create order: %w", err)
	}

	log := logger.For(ctx, s.log)
	if err := s.carts.ClearCart(ctx, userID); err != nil {
		span.AddEvent("cart clear failed", trace.WithAttributes(attribute.String("error", err.Error())))
		log.Warn("failed to clear cart after checkout", zap.String("order_id", order.ID), zap.Error(err))
	}
	if err := s.publisher.Publish(ctx, events.OrderCreated, order.ID, order); err != nil {
		span.AddEvent("order event not published", trace.WithAttributes(attribute.String("error", err.Error())))
		log.Warn("failed to publish order event", zap.String("order_id", order.ID), zap.Error(err))
	}

	log.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("user_id", userID),
		zap.Float64("total", order.Total),
	)
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]*domain.Order, error) {
	return s.repo.ListOrdersByUserID(ctx, userID)
}

// GetOrder hides orders of other users behind ErrOrderNotFound.
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, repository.ErrOrderNotFound
	}
	return order, nil
}

// UpdateStatus moves an order of userID along its lifecycle and publishes
// order.status_changed when the status actually changed.
func (s *OrderService) UpdateStatus(ctx context.Context, userID, orderID, status string) (*domain.Order, error) {
	next, err := domain.ParseStatus(status)
	if err != nil {
		return nil, err
	}

	if _, err := s.GetOrder(ctx, userID, orderID); err != nil {
		return nil, err
	}

	updated, changed, err := s.repo.UpdateStatus(ctx, orderID, next)
	if err != nil {
		return nil, err
	}

	if changed {
		if err := s.publisher.Publish(ctx, events.OrderStatusChanged, updated.ID, updated); err != nil {
			logger.For(ctx, s.log).Warn("failed to publish status event", zap.String("order_id", updated.ID), zap.Error(err))
		}
	}
	return updated, nil
}

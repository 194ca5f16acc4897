// Package consumer clears carts when order-service reports a checkout. It
// backs up the best-effort DELETE order-service sends right after creating
// the order, so clearing must be idempotent and must not touch a cart the
// user started after checkout.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fjod/traced_shop/pkg/events"
	"github.com/fjod/traced_shop/pkg/logger"
)

const GroupID = "cart-service-consumer"

type orderCreated struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	Items  []struct {
		ProductID string `json:"productId"`
	} `json:"items"`
	CreatedAt time.Time `json:"createdAt"`
}

type CartClearer interface {
	ClearOrderedItems(ctx context.Context, userID string, orderedAt time.Time, productIDs []string) (int, error)
}

// NewOrderCreatedHandler ignores every event type except order.created.
func NewOrderCreatedHandler(carts CartClearer, log *zap.Logger) events.Handler {
	return func(ctx context.Context, msg events.Message) error {
		if msg.Type != events.OrderCreated {
			return nil
		}

		var evt orderCreated
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			return fmt.Errorf("decode %s: %w", msg.Type, err)
		}
		if evt.UserID == "" {
			return fmt.Errorf("%s event %s has no userId", msg.Type, evt.ID)
		}

		trace.SpanFromContext(ctx).SetAttributes(
			attribute.String("order.id", evt.ID),
			attribute.String("user.id", evt.UserID),
		)

		productIDs := make([]string, 0, len(evt.Items))
		for _, it := range evt.Items {
			productIDs = append(productIDs, it.ProductID)
		}

		removed, err := carts.ClearOrderedItems(ctx, evt.UserID, evt.CreatedAt, productIDs)
		if err != nil {
			return fmt.Errorf("clear cart for %s: %w", evt.UserID, err)
		}
		trace.SpanFromContext(ctx).SetAttributes(attribute.Int("cart.items_removed", removed))
		logger.For(ctx, log).Info("cart cleared after checkout",
			zap.String("order_id", evt.ID),
			zap.String("user_id", evt.UserID),
			zap.Int("items_removed", removed),
		)
		return nil
	}
}

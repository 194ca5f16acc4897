// Package carts reads and clears carts in cart-service on behalf of the
// user placing an order.
package carts

import (
	"context"
	"fmt"
	"net/url"

	"github.com/fjod/traced_shop/orders-service/internal/domain"
	"github.com/fjod/traced_shop/pkg/svcclient"
)

type Cart struct {
	UserID string             `json:"userId"`
	Items  []domain.OrderItem `json:"items"`
}

type Client struct {
	http *svcclient.Client
}

func NewClient(c *svcclient.Client) *Client {
	return &Client{http: c}
}

// GetCart forwards the caller's Authorization header taken from ctx.
func (c *Client) GetCart(ctx context.Context, userID string) (*Cart, error) {
	var cart Cart
	if err := c.http.Get(ctx, cartPath(userID), &cart); err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return &cart, nil
}

func (c *Client) ClearCart(ctx context.Context, userID string) error {
	if err := c.http.Delete(ctx, cartPath(userID)); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func cartPath(userID string) string {
	return "/api/cart/" + url.PathEscape(userID)
}

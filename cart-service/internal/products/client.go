// Package products looks up catalogue entries in product-service.
package products

import (
	"context"
	"fmt"
	"net/url"

	"github.com/fjod/traced_shop/cart-service/internal/domain"
	"github.com/fjod/traced_shop/pkg/svcclient"
)

type Client struct {
	http *svcclient.Client
}

func NewClient(c *svcclient.Client) *Client {
	return &Client{http: c}
}

// GetProduct returns domain.ErrProductNotFound when product-service answers
// 404. Any other failure is returned as is.
func (c *Client) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := c.http.Get(ctx, "/api/products/"+url.PathEscape(id), &p)
	if svcclient.IsNotFound(err) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}
	return &p, nil
}

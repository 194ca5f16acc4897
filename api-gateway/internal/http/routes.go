package http

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/fjod/traced_shop/api-gateway/internal/proxy"
)

// Route sends every request under Prefix to Upstream with the path intact.
type Route struct {
	Prefix   string
	Upstream proxy.Upstream
}

func DefaultRoutes(auth, products, cart, orders, todos string) []Route {
	return []Route{
		{"/api/auth", proxy.Upstream{Name: "auth-service", BaseURL: auth}},
		{"/api/products", proxy.Upstream{Name: "product-service", BaseURL: products}},
		{"/api/cart", proxy.Upstream{Name: "cart-service", BaseURL: cart}},
		{"/api/orders", proxy.Upstream{Name: "orders-service", BaseURL: orders}},
		{"/todos", proxy.Upstream{Name: "todo-service", BaseURL: todos}},
	}
}

// Mount registers a reverse proxy per route on r.
func Mount(r chi.Router, source string, routes []Route, log *zap.Logger) error {
	for _, rt := range routes {
		p, err := proxy.New(proxy.Config{
			Source:   source,
			Upstream: rt.Upstream,
			Logger:   log,
		})
		if err != nil {
			return err
		}
		r.Handle(rt.Prefix, p)
		r.Handle(rt.Prefix+"/*", p)
		log.Info("proxy route registered",
			zap.String("prefix", rt.Prefix),
			zap.String("upstream", rt.Upstream.Name),
			zap.String("url", rt.Upstream.BaseURL),
		)
	}
	return nil
}

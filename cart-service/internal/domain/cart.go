package domain

import (
	"errors"
	"time"
)

var ErrProductNotFound = errors.New("product not found")

type Cart struct {
	ID        string     `json:"-" bson:"_id,omitempty"`
	UserID    string     `json:"userId" bson:"user_id"`
	Items     []CartItem `json:"items" bson:"items"`
	CreatedAt time.Time  `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time  `json:"updatedAt" bson:"updated_at"`
}

// CartItem keeps a snapshot of the product's price and name taken when the
// item was added.
type CartItem struct {
	ProductID string    `json:"productId" bson:"product_id"`
	Quantity  int       `json:"quantity" bson:"quantity"`
	Price     float64   `json:"price" bson:"price"`
	Name      string    `json:"productName" bson:"name"`
	AddedAt   time.Time `json:"addedAt" bson:"added_at"`
}

// Product is the part of product-service's model the cart needs.
type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
}

func NewCart(userID string) *Cart {
	now := time.Now()
	return &Cart{
		UserID:    userID,
		Items:     []CartItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (c *Cart) Clone() *Cart {
	cp := *c
	cp.Items = make([]CartItem, len(c.Items))
	copy(cp.Items, c.Items)
	return &cp
}

func (c *Cart) Total() float64 {
	var total float64
	for _, it := range c.Items {
		total += it.Price * float64(it.Quantity)
	}
	return total
}

package domain

type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
}

// SeedProducts is the catalogue written on first start.
func SeedProducts() []*Product {
	return []*Product{
		{ID: "1", Name: "Gaming Laptop", Description: "High-performance gaming laptop", Price: 1299.99, Category: "Electronics"},
		{ID: "2", Name: "Smartphone", Description: "Latest model smartphone", Price: 799.99, Category: "Electronics"},
		{ID: "3", Name: "Headphones", Description: "Wireless noise-canceling headphones", Price: 199.99, Category: "Electronics"},
	}
}

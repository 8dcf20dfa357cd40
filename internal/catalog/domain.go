package catalog

import "time"

// Product is a catalog item the distributor sells on a round. BuyPrice and
// SellPrice are the live prices; sale items snapshot them at submit time.
type Product struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	BuyPrice    float64   `json:"buy_price" db:"buy_price"`
	SellPrice   float64   `json:"sell_price" db:"sell_price"`
	Active      bool      `json:"active" db:"active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// ============================================================================
// REQUEST / RESPONSE TYPES
// ============================================================================

// CreateProductRequest creates a new product.
type CreateProductRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=120"`
	Description string  `json:"description" validate:"max=500"`
	BuyPrice    float64 `json:"buy_price" validate:"gte=0"`
	SellPrice   float64 `json:"sell_price" validate:"gte=0"`
}

// UpdateProductRequest updates product fields. Nil fields are left untouched.
type UpdateProductRequest struct {
	Name        *string  `json:"name" validate:"omitempty,min=1,max=120"`
	Description *string  `json:"description" validate:"omitempty,max=500"`
	BuyPrice    *float64 `json:"buy_price" validate:"omitempty,gte=0"`
	SellPrice   *float64 `json:"sell_price" validate:"omitempty,gte=0"`
	Active      *bool    `json:"active"`
}

// ListProductsRequest filters product listings.
type ListProductsRequest struct {
	ActiveOnly bool
	Limit      int
	Offset     int
}

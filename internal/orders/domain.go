package orders

import (
	"time"

	"github.com/reparto-app/reparto/internal/sales"
)

// SaleView is the slice of the current sale the order editor needs.
type SaleView struct {
	ID       int64
	SaleDate time.Time
	Status   sales.Status
}

// OrderLine is one product on a customer's order. UnitPrice is the sell
// price snapshotted when the line was written.
type OrderLine struct {
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Subtotal    float64 `json:"subtotal"`
}

// ProductOption is a product the customer can add to the order.
type ProductOption struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	SellPrice float64 `json:"sell_price"`
}

// OrderView is the token-scoped order page. Message explains the sale
// state in the customer's language when the order can no longer change.
type OrderView struct {
	CustomerName      string          `json:"customer_name"`
	SaleID            int64           `json:"sale_id"`
	SaleDate          string          `json:"sale_date"`
	SaleStatus        string          `json:"sale_status"`
	IsOpen            bool            `json:"is_open"`
	MessageCode       string          `json:"message_code,omitempty"`
	Message           string          `json:"message,omitempty"`
	CurrentOrder      []OrderLine     `json:"current_order"`
	TotalAmount       float64         `json:"total_amount"`
	AvailableProducts []ProductOption `json:"available_products"`
}

// SubmitItem is one requested line. Quantities are whole units.
type SubmitItem struct {
	ProductID int64 `json:"product_id" validate:"required"`
	Quantity  int   `json:"quantity" validate:"required,min=1"`
}

// SubmitOrderRequest replaces the customer's order wholesale. An empty
// item list clears the order.
type SubmitOrderRequest struct {
	Items []SubmitItem `json:"items" validate:"dive"`
}

// SubmitResult confirms a replacement.
type SubmitResult struct {
	MessageCode string      `json:"message_code"`
	Message     string      `json:"message"`
	Order       []OrderLine `json:"order"`
	TotalAmount float64     `json:"total_amount"`
}

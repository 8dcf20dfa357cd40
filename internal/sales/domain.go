package sales

import "time"

// Status is the sale lifecycle state.
//
//	draft       customers may edit their orders
//	closed      orders frozen, route editable
//	in_progress delivery round underway
//	completed   every route entry resolved
type Status string

const (
	StatusDraft      Status = "draft"
	StatusClosed     Status = "closed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// transitions holds the admin-reachable lifecycle edges. closed -> draft is
// the admin reopen; in_progress -> completed normally happens through the
// delivery engine's auto-complete but stays reachable by hand.
var transitions = map[Status][]Status{
	StatusDraft:      {StatusClosed},
	StatusClosed:     {StatusDraft, StatusInProgress},
	StatusInProgress: {StatusCompleted},
	StatusCompleted:  {},
}

// IsValid reports whether the status is a known lifecycle state.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusClosed, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// CanTransitionTo reports whether the edge s -> next exists.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CanEditOrders reports whether customers may still change their orders.
func (s Status) CanEditOrders() bool {
	return s == StatusDraft
}

// CanEditRoute reports whether the delivery route may still be rearranged.
func (s Status) CanEditRoute() bool {
	return s == StatusDraft || s == StatusClosed
}

// ============================================================================
// ENTITIES
// ============================================================================

// Sale is one delivery round. Totals are always derived from the item
// snapshots, never stored.
type Sale struct {
	ID            int64     `json:"id" db:"id"`
	SaleDate      time.Time `json:"sale_date" db:"sale_date"`
	Status        Status    `json:"status" db:"status"`
	Notes         *string   `json:"notes,omitempty" db:"notes"`
	TotalRevenue  float64   `json:"total_revenue"`
	TotalBenefit  float64   `json:"total_benefit"`
	CustomerCount int       `json:"customer_count"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// CustomerSale is one customer's order within a sale.
type CustomerSale struct {
	ID           int64      `json:"id" db:"id"`
	SaleID       int64      `json:"sale_id" db:"sale_id"`
	CustomerID   int64      `json:"customer_id" db:"customer_id"`
	CustomerName string     `json:"customer_name"`
	TotalAmount  float64    `json:"total_amount"`
	Items        []SaleItem `json:"items"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// SaleItem is an order line with prices frozen at submit time.
type SaleItem struct {
	ID              int64   `json:"id" db:"id"`
	CustomerSaleID  int64   `json:"-" db:"customer_sale_id"`
	ProductID       int64   `json:"product_id" db:"product_id"`
	ProductName     string  `json:"product_name" db:"product_name"`
	Quantity        int     `json:"quantity" db:"quantity"`
	SellPriceAtSale float64 `json:"sell_price_at_sale" db:"sell_price_at_sale"`
	BuyPriceAtSale  float64 `json:"buy_price_at_sale" db:"buy_price_at_sale"`
}

// SaleDetail bundles a sale with its per-customer orders.
type SaleDetail struct {
	Sale
	CustomerSales []CustomerSale `json:"customer_sales"`
}

// ============================================================================
// REQUEST TYPES
// ============================================================================

// CreateSaleRequest opens a new draft sale.
type CreateSaleRequest struct {
	SaleDate string  `json:"sale_date" validate:"required,datetime=2006-01-02"`
	Notes    *string `json:"notes" validate:"omitempty,max=500"`
}

// ChangeStatusRequest moves a sale along its lifecycle.
type ChangeStatusRequest struct {
	Status Status `json:"status" validate:"required"`
}

// ListSalesRequest filters sale listings.
type ListSalesRequest struct {
	Status *Status
	Limit  int
	Offset int
}

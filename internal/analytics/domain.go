// Package analytics aggregates sales figures for the admin dashboard.
package analytics

import "time"

// Summary holds the headline figures for a date range.
type Summary struct {
	TotalSales     int     `json:"total_sales"`
	TotalRevenue   float64 `json:"total_revenue"`
	TotalProfit    float64 `json:"total_profit"`
	TotalCollected float64 `json:"total_collected"`
	TotalCustomers int     `json:"total_customers"`
	TotalProducts  int     `json:"total_products"`
}

// StatusCount is the sale count per lifecycle state.
type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// TopProduct ranks products by revenue inside the range.
type TopProduct struct {
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	Revenue     float64 `json:"revenue"`
}

// TopCustomer ranks customers by spend inside the range.
type TopCustomer struct {
	CustomerID int64   `json:"customer_id"`
	Name       string  `json:"name"`
	Orders     int     `json:"orders"`
	TotalSpent float64 `json:"total_spent"`
}

// Report is the full dashboard payload.
type Report struct {
	From          string        `json:"from,omitempty"`
	To            string        `json:"to,omitempty"`
	Summary       Summary       `json:"summary"`
	SalesByStatus []StatusCount `json:"sales_by_status"`
	TopProducts   []TopProduct  `json:"top_products"`
	TopCustomers  []TopCustomer `json:"top_customers"`
}

// DateRange filters a report by sale date. Nil bounds are open.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

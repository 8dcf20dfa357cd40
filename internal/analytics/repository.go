package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store abstracts the aggregate queries.
type Store interface {
	Summary(ctx context.Context, rng DateRange) (Summary, error)
	SalesByStatus(ctx context.Context, rng DateRange) ([]StatusCount, error)
	TopProducts(ctx context.Context, rng DateRange, limit int) ([]TopProduct, error)
	TopCustomers(ctx context.Context, rng DateRange, limit int) ([]TopCustomer, error)
	DayFigures(ctx context.Context, day time.Time) (DayFigures, error)
}

// DayFigures feeds the end-of-day digest.
type DayFigures struct {
	SalesCompleted  int
	TotalRevenue    float64
	TotalCollected  float64
	DeliveriesDone  int
	DeliveriesSkips int
}

// Repository provides PostgreSQL backed analytics queries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// rangeClause builds a sale_date filter for queries aliasing sales as s.
func rangeClause(rng DateRange, args []any) (string, []any) {
	clause := ""
	if rng.From != nil {
		args = append(args, *rng.From)
		clause += fmt.Sprintf(" AND s.sale_date >= $%d", len(args))
	}
	if rng.To != nil {
		args = append(args, *rng.To)
		clause += fmt.Sprintf(" AND s.sale_date <= $%d", len(args))
	}
	return clause, args
}

// Summary aggregates the headline figures.
func (r *Repository) Summary(ctx context.Context, rng DateRange) (Summary, error) {
	clause, args := rangeClause(rng, nil)
	query := `
		SELECT COUNT(DISTINCT s.id),
		       COALESCE(SUM(i.quantity * i.sell_price_at_sale), 0),
		       COALESCE(SUM(i.quantity * (i.sell_price_at_sale - i.buy_price_at_sale)), 0),
		       COUNT(DISTINCT cs.customer_id)
		FROM sales s
		LEFT JOIN customer_sales cs ON cs.sale_id = s.id
		LEFT JOIN customer_sale_items i ON i.customer_sale_id = cs.id
		WHERE TRUE` + clause

	var out Summary
	if err := r.pool.QueryRow(ctx, query, args...).
		Scan(&out.TotalSales, &out.TotalRevenue, &out.TotalProfit, &out.TotalCustomers); err != nil {
		return Summary{}, fmt.Errorf("analytics summary: %w", err)
	}

	collectedQuery := `
		SELECT COALESCE(SUM(re.amount_collected), 0)
		FROM route_entries re
		JOIN sales s ON s.id = re.sale_id
		WHERE re.status = 'completed'` + clause
	if err := r.pool.QueryRow(ctx, collectedQuery, args...).Scan(&out.TotalCollected); err != nil {
		return Summary{}, fmt.Errorf("analytics collected: %w", err)
	}

	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM products WHERE active`).Scan(&out.TotalProducts); err != nil {
		return Summary{}, fmt.Errorf("analytics products: %w", err)
	}
	return out, nil
}

// SalesByStatus counts sales per lifecycle state.
func (r *Repository) SalesByStatus(ctx context.Context, rng DateRange) ([]StatusCount, error) {
	clause, args := rangeClause(rng, nil)
	query := `
		SELECT s.status, COUNT(*)
		FROM sales s
		WHERE TRUE` + clause + `
		GROUP BY s.status
		ORDER BY s.status`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sales by status: %w", err)
	}
	defer rows.Close()

	var counts []StatusCount
	for rows.Next() {
		var c StatusCount
		if err := rows.Scan(&c.Status, &c.Count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// TopProducts ranks products by revenue.
func (r *Repository) TopProducts(ctx context.Context, rng DateRange, limit int) ([]TopProduct, error) {
	clause, args := rangeClause(rng, nil)
	args = append(args, limit)
	query := fmt.Sprintf(`
		SELECT i.product_name, SUM(i.quantity), SUM(i.quantity * i.sell_price_at_sale)
		FROM customer_sale_items i
		JOIN customer_sales cs ON cs.id = i.customer_sale_id
		JOIN sales s ON s.id = cs.sale_id
		WHERE TRUE%s
		GROUP BY i.product_name
		ORDER BY SUM(i.quantity * i.sell_price_at_sale) DESC, i.product_name
		LIMIT $%d`, clause, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("top products: %w", err)
	}
	defer rows.Close()

	var products []TopProduct
	for rows.Next() {
		var p TopProduct
		if err := rows.Scan(&p.ProductName, &p.Quantity, &p.Revenue); err != nil {
			return nil, fmt.Errorf("scan top product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// TopCustomers ranks customers by spend.
func (r *Repository) TopCustomers(ctx context.Context, rng DateRange, limit int) ([]TopCustomer, error) {
	clause, args := rangeClause(rng, nil)
	args = append(args, limit)
	query := fmt.Sprintf(`
		SELECT c.id, c.name, COUNT(DISTINCT cs.id),
		       COALESCE(SUM(i.quantity * i.sell_price_at_sale), 0)
		FROM customers c
		JOIN customer_sales cs ON cs.customer_id = c.id
		JOIN sales s ON s.id = cs.sale_id
		LEFT JOIN customer_sale_items i ON i.customer_sale_id = cs.id
		WHERE TRUE%s
		GROUP BY c.id, c.name
		ORDER BY COALESCE(SUM(i.quantity * i.sell_price_at_sale), 0) DESC, c.name
		LIMIT $%d`, clause, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("top customers: %w", err)
	}
	defer rows.Close()

	var customers []TopCustomer
	for rows.Next() {
		var c TopCustomer
		if err := rows.Scan(&c.CustomerID, &c.Name, &c.Orders, &c.TotalSpent); err != nil {
			return nil, fmt.Errorf("scan top customer: %w", err)
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

// DayFigures aggregates one calendar day for the digest job.
func (r *Repository) DayFigures(ctx context.Context, day time.Time) (DayFigures, error) {
	var out DayFigures
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(DISTINCT s.id) FILTER (WHERE s.status = 'completed'),
		       COALESCE(SUM(i.quantity * i.sell_price_at_sale), 0)
		FROM sales s
		LEFT JOIN customer_sales cs ON cs.sale_id = s.id
		LEFT JOIN customer_sale_items i ON i.customer_sale_id = cs.id
		WHERE s.sale_date = $1`, day).
		Scan(&out.SalesCompleted, &out.TotalRevenue)
	if err != nil {
		return DayFigures{}, fmt.Errorf("day figures: %w", err)
	}

	err = r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(re.amount_collected) FILTER (WHERE re.status = 'completed'), 0),
		       COUNT(*) FILTER (WHERE re.status = 'completed'),
		       COUNT(*) FILTER (WHERE re.status = 'skipped')
		FROM route_entries re
		JOIN sales s ON s.id = re.sale_id
		WHERE s.sale_date = $1`, day).
		Scan(&out.TotalCollected, &out.DeliveriesDone, &out.DeliveriesSkips)
	if err != nil {
		return DayFigures{}, fmt.Errorf("day deliveries: %w", err)
	}
	return out, nil
}

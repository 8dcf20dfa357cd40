package sales

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reparto-app/reparto/internal/platform/httpx"
	"github.com/reparto-app/reparto/internal/stream"
)

var (
	// ErrSaleNotFound indicates the sale does not exist.
	ErrSaleNotFound = fmt.Errorf("%w: sale", httpx.ErrNotFound)
)

// Store abstracts sale persistence.
type Store interface {
	Insert(ctx context.Context, saleDate string, notes *string) (int64, error)
	Get(ctx context.Context, id int64) (*Sale, error)
	List(ctx context.Context, req ListSalesRequest) ([]Sale, int, error)
	ListCustomerSales(ctx context.Context, saleID int64) ([]CustomerSale, error)
	SetStatus(ctx context.Context, id int64, from, to Status) error
	Delete(ctx context.Context, id int64) error
	Summaries(ctx context.Context) ([]stream.SaleSummary, error)
}

// Repository provides PostgreSQL backed persistence for sales.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// saleQuery derives totals from the item snapshots on every read.
const saleQuery = `
	SELECT s.id, s.sale_date, s.status, s.notes, s.created_at, s.updated_at,
	       COALESCE(SUM(i.quantity * i.sell_price_at_sale), 0) AS total_revenue,
	       COALESCE(SUM(i.quantity * (i.sell_price_at_sale - i.buy_price_at_sale)), 0) AS total_benefit,
	       COUNT(DISTINCT cs.id) AS customer_count
	FROM sales s
	LEFT JOIN customer_sales cs ON cs.sale_id = s.id
	LEFT JOIN customer_sale_items i ON i.customer_sale_id = cs.id`

func scanSale(row pgx.Row) (*Sale, error) {
	var s Sale
	err := row.Scan(&s.ID, &s.SaleDate, &s.Status, &s.Notes, &s.CreatedAt, &s.UpdatedAt,
		&s.TotalRevenue, &s.TotalBenefit, &s.CustomerCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSaleNotFound
		}
		return nil, fmt.Errorf("scan sale: %w", err)
	}
	return &s, nil
}

// Insert creates a draft sale.
func (r *Repository) Insert(ctx context.Context, saleDate string, notes *string) (int64, error) {
	const query = `
		INSERT INTO sales (sale_date, status, notes)
		VALUES ($1, 'draft', $2)
		RETURNING id`
	var id int64
	if err := r.pool.QueryRow(ctx, query, saleDate, notes).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert sale: %w", err)
	}
	return id, nil
}

// Get fetches a sale with derived totals.
func (r *Repository) Get(ctx context.Context, id int64) (*Sale, error) {
	query := saleQuery + ` WHERE s.id = $1 GROUP BY s.id`
	return scanSale(r.pool.QueryRow(ctx, query, id))
}

// List returns sales newest first plus the filtered total.
func (r *Repository) List(ctx context.Context, req ListSalesRequest) ([]Sale, int, error) {
	where := ""
	args := []any{}
	if req.Status != nil {
		where = ` WHERE s.status = $1`
		args = append(args, *req.Status)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sales s`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count sales: %w", err)
	}

	query := saleQuery + where + ` GROUP BY s.id ORDER BY s.sale_date DESC, s.id DESC`
	if req.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
		args = append(args, req.Limit, req.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list sales: %w", err)
	}
	defer rows.Close()

	var sales []Sale
	for rows.Next() {
		var s Sale
		if err := rows.Scan(&s.ID, &s.SaleDate, &s.Status, &s.Notes, &s.CreatedAt, &s.UpdatedAt,
			&s.TotalRevenue, &s.TotalBenefit, &s.CustomerCount); err != nil {
			return nil, 0, fmt.Errorf("scan sale row: %w", err)
		}
		sales = append(sales, s)
	}
	return sales, total, rows.Err()
}

// ListCustomerSales loads the per-customer orders of a sale, items included.
func (r *Repository) ListCustomerSales(ctx context.Context, saleID int64) ([]CustomerSale, error) {
	const query = `
		SELECT cs.id, cs.sale_id, cs.customer_id, c.name,
		       COALESCE(SUM(i.quantity * i.sell_price_at_sale), 0), cs.updated_at
		FROM customer_sales cs
		JOIN customers c ON c.id = cs.customer_id
		LEFT JOIN customer_sale_items i ON i.customer_sale_id = cs.id
		WHERE cs.sale_id = $1
		GROUP BY cs.id, c.name
		ORDER BY c.name, cs.customer_id`

	rows, err := r.pool.Query(ctx, query, saleID)
	if err != nil {
		return nil, fmt.Errorf("list customer sales: %w", err)
	}
	defer rows.Close()

	var customerSales []CustomerSale
	index := map[int64]int{}
	ids := []int64{}
	for rows.Next() {
		var cs CustomerSale
		if err := rows.Scan(&cs.ID, &cs.SaleID, &cs.CustomerID, &cs.CustomerName, &cs.TotalAmount, &cs.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan customer sale: %w", err)
		}
		index[cs.ID] = len(customerSales)
		ids = append(ids, cs.ID)
		customerSales = append(customerSales, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return customerSales, nil
	}

	const itemQuery = `
		SELECT id, customer_sale_id, product_id, product_name, quantity,
		       sell_price_at_sale, buy_price_at_sale
		FROM customer_sale_items
		WHERE customer_sale_id = ANY($1)
		ORDER BY id`
	itemRows, err := r.pool.Query(ctx, itemQuery, ids)
	if err != nil {
		return nil, fmt.Errorf("list sale items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var item SaleItem
		if err := itemRows.Scan(&item.ID, &item.CustomerSaleID, &item.ProductID, &item.ProductName,
			&item.Quantity, &item.SellPriceAtSale, &item.BuyPriceAtSale); err != nil {
			return nil, fmt.Errorf("scan sale item: %w", err)
		}
		if pos, ok := index[item.CustomerSaleID]; ok {
			customerSales[pos].Items = append(customerSales[pos].Items, item)
		}
	}
	return customerSales, itemRows.Err()
}

// SetStatus flips the lifecycle state, guarded by the expected current
// state so concurrent admins cannot race past the transition table.
func (r *Repository) SetStatus(ctx context.Context, id int64, from, to Status) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE sales SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`, to, id, from)
	if err != nil {
		return fmt.Errorf("set sale status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: sale %d no longer %s", httpx.ErrInvalidState, id, from)
	}
	return nil
}

// Delete removes a sale and, through cascades, its orders and route.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sales WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete sale: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSaleNotFound
	}
	return nil
}

// Summaries feeds the event-stream snapshot with the recent sale list.
func (r *Repository) Summaries(ctx context.Context) ([]stream.SaleSummary, error) {
	const query = `
		SELECT id, to_char(sale_date, 'YYYY-MM-DD'), status
		FROM sales
		ORDER BY sale_date DESC, id DESC
		LIMIT 50`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sale summaries: %w", err)
	}
	defer rows.Close()

	var summaries []stream.SaleSummary
	for rows.Next() {
		var s stream.SaleSummary
		if err := rows.Scan(&s.ID, &s.SaleDate, &s.Status); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

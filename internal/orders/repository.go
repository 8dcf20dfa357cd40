package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reparto-app/reparto/internal/platform/db"
	"github.com/reparto-app/reparto/internal/platform/httpx"
	"github.com/reparto-app/reparto/internal/sales"
)

var (
	// ErrNoActiveSale indicates there is no sale for the customer to order
	// against.
	ErrNoActiveSale = fmt.Errorf("%w: no active sale", httpx.ErrNotFound)
	// ErrSaleNotFound indicates the addressed sale id does not exist.
	ErrSaleNotFound = fmt.Errorf("%w: sale", httpx.ErrNotFound)
	// ErrProductNotFound indicates a requested product is unknown or
	// retired.
	ErrProductNotFound = fmt.Errorf("%w: product", httpx.ErrNotFound)
)

// Store abstracts order persistence.
type Store interface {
	CurrentSale(ctx context.Context) (*SaleView, error)
	SaleByID(ctx context.Context, saleID int64) (*SaleView, error)
	CustomerOrder(ctx context.Context, saleID, customerID int64) ([]OrderLine, error)
	ActiveProducts(ctx context.Context) ([]ProductOption, error)
	ReplaceOrder(ctx context.Context, saleID, customerID int64, items []SubmitItem) ([]OrderLine, error)
}

// Repository provides PostgreSQL backed persistence for customer orders.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CurrentSale returns the most recent sale, the round the customer app is
// pointed at.
func (r *Repository) CurrentSale(ctx context.Context) (*SaleView, error) {
	const query = `SELECT id, sale_date, status FROM sales ORDER BY sale_date DESC, id DESC LIMIT 1`
	var sale SaleView
	if err := r.pool.QueryRow(ctx, query).Scan(&sale.ID, &sale.SaleDate, &sale.Status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveSale
		}
		return nil, fmt.Errorf("current sale: %w", err)
	}
	return &sale, nil
}

// SaleByID loads one specific sale, letting the customer app revisit a
// past round.
func (r *Repository) SaleByID(ctx context.Context, saleID int64) (*SaleView, error) {
	const query = `SELECT id, sale_date, status FROM sales WHERE id = $1`
	var sale SaleView
	if err := r.pool.QueryRow(ctx, query, saleID).Scan(&sale.ID, &sale.SaleDate, &sale.Status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w %d", ErrSaleNotFound, saleID)
		}
		return nil, fmt.Errorf("sale by id: %w", err)
	}
	return &sale, nil
}

// CustomerOrder loads the customer's lines for a sale, oldest line first.
func (r *Repository) CustomerOrder(ctx context.Context, saleID, customerID int64) ([]OrderLine, error) {
	const query = `
		SELECT i.product_id, i.product_name, i.quantity, i.sell_price_at_sale
		FROM customer_sale_items i
		JOIN customer_sales cs ON cs.id = i.customer_sale_id
		WHERE cs.sale_id = $1 AND cs.customer_id = $2
		ORDER BY i.id`
	rows, err := r.pool.Query(ctx, query, saleID, customerID)
	if err != nil {
		return nil, fmt.Errorf("customer order: %w", err)
	}
	defer rows.Close()
	return scanLines(rows)
}

// ActiveProducts lists the catalog the customer can order from.
func (r *Repository) ActiveProducts(ctx context.Context) ([]ProductOption, error) {
	const query = `SELECT id, name, sell_price FROM products WHERE active ORDER BY name, id`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("active products: %w", err)
	}
	defer rows.Close()

	var options []ProductOption
	for rows.Next() {
		var p ProductOption
		if err := rows.Scan(&p.ID, &p.Name, &p.SellPrice); err != nil {
			return nil, fmt.Errorf("scan product option: %w", err)
		}
		options = append(options, p)
	}
	return options, rows.Err()
}

// ReplaceOrder swaps the customer's order for the given lines in one
// transaction, snapshotting product prices as they are now. An empty item
// list removes the order entirely so the customer drops off the route
// build.
func (r *Repository) ReplaceOrder(ctx context.Context, saleID, customerID int64, items []SubmitItem) ([]OrderLine, error) {
	var lines []OrderLine
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		// Lock the sale row and re-check its status so a submit cannot
		// land after the admin closes the sale mid-request.
		var status sales.Status
		err := tx.QueryRow(ctx,
			`SELECT status FROM sales WHERE id = $1 FOR UPDATE`, saleID).Scan(&status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w %d", ErrSaleNotFound, saleID)
			}
			return fmt.Errorf("lock sale: %w", err)
		}
		if !status.CanEditOrders() {
			return ErrOrdersLocked
		}

		if len(items) == 0 {
			_, err := tx.Exec(ctx,
				`DELETE FROM customer_sales WHERE sale_id = $1 AND customer_id = $2`, saleID, customerID)
			if err != nil {
				return fmt.Errorf("clear order: %w", err)
			}
			return nil
		}

		ids := make([]int64, len(items))
		for i, item := range items {
			ids[i] = item.ProductID
		}
		products, err := loadProducts(ctx, tx, ids)
		if err != nil {
			return err
		}

		var orderID int64
		err = tx.QueryRow(ctx, `
			INSERT INTO customer_sales (sale_id, customer_id)
			VALUES ($1, $2)
			ON CONFLICT (sale_id, customer_id) DO UPDATE SET updated_at = NOW()
			RETURNING id`, saleID, customerID).Scan(&orderID)
		if err != nil {
			return fmt.Errorf("upsert order: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`DELETE FROM customer_sale_items WHERE customer_sale_id = $1`, orderID); err != nil {
			return fmt.Errorf("clear order lines: %w", err)
		}

		for _, item := range items {
			p := products[item.ProductID]
			_, err := tx.Exec(ctx, `
				INSERT INTO customer_sale_items
					(customer_sale_id, product_id, product_name, quantity, sell_price_at_sale, buy_price_at_sale)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				orderID, p.id, p.name, item.Quantity, p.sellPrice, p.buyPrice)
			if err != nil {
				return fmt.Errorf("insert order line: %w", err)
			}
			lines = append(lines, OrderLine{
				ProductID:   p.id,
				ProductName: p.name,
				Quantity:    item.Quantity,
				UnitPrice:   p.sellPrice,
				Subtotal:    float64(item.Quantity) * p.sellPrice,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lines, nil
}

type productSnapshot struct {
	id        int64
	name      string
	sellPrice float64
	buyPrice  float64
}

func loadProducts(ctx context.Context, tx pgx.Tx, ids []int64) (map[int64]productSnapshot, error) {
	rows, err := tx.Query(ctx,
		`SELECT id, name, sell_price, buy_price FROM products WHERE id = ANY($1) AND active`, ids)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	defer rows.Close()

	products := make(map[int64]productSnapshot, len(ids))
	for rows.Next() {
		var p productSnapshot
		if err := rows.Scan(&p.id, &p.name, &p.sellPrice, &p.buyPrice); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products[p.id] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, id := range ids {
		if _, ok := products[id]; !ok {
			return nil, fmt.Errorf("%w %d", ErrProductNotFound, id)
		}
	}
	return products, nil
}

func scanLines(rows pgx.Rows) ([]OrderLine, error) {
	var lines []OrderLine
	for rows.Next() {
		var line OrderLine
		if err := rows.Scan(&line.ProductID, &line.ProductName, &line.Quantity, &line.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		line.Subtotal = float64(line.Quantity) * line.UnitPrice
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

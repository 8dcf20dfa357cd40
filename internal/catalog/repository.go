package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reparto-app/reparto/internal/platform/httpx"
)

var (
	// ErrProductNotFound indicates the product does not exist.
	ErrProductNotFound = fmt.Errorf("%w: product", httpx.ErrNotFound)
	// ErrDuplicateName indicates a product with that name already exists.
	ErrDuplicateName = fmt.Errorf("%w: product name", httpx.ErrDuplicate)
)

// Store abstracts product persistence so the service can be exercised
// against an in-memory implementation in tests.
type Store interface {
	Insert(ctx context.Context, p Product) (int64, error)
	Get(ctx context.Context, id int64) (*Product, error)
	List(ctx context.Context, req ListProductsRequest) ([]Product, int, error)
	Update(ctx context.Context, id int64, updates map[string]any) error
	Deactivate(ctx context.Context, id int64) error
}

// Repository provides PostgreSQL backed persistence for the catalog.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const productColumns = `id, name, description, buy_price, sell_price, active, created_at, updated_at`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.BuyPrice, &p.SellPrice, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("scan product: %w", err)
	}
	return &p, nil
}

// Insert creates a product and returns its id.
func (r *Repository) Insert(ctx context.Context, p Product) (int64, error) {
	const query = `
		INSERT INTO products (name, description, buy_price, sell_price, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	var id int64
	err := r.pool.QueryRow(ctx, query, p.Name, p.Description, p.BuyPrice, p.SellPrice, p.Active).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrDuplicateName
		}
		return 0, fmt.Errorf("insert product: %w", err)
	}
	return id, nil
}

// Get fetches a product by id.
func (r *Repository) Get(ctx context.Context, id int64) (*Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	return scanProduct(r.pool.QueryRow(ctx, query, id))
}

// List returns products matching the filter plus the unfiltered total.
func (r *Repository) List(ctx context.Context, req ListProductsRequest) ([]Product, int, error) {
	where := ""
	if req.ActiveOnly {
		where = " WHERE active"
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	query := `SELECT ` + productColumns + ` FROM products` + where + ` ORDER BY name, id`
	args := []any{}
	if req.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
		args = append(args, req.Limit, req.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.BuyPrice, &p.SellPrice, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

// Update applies a partial column update.
func (r *Repository) Update(ctx context.Context, id int64, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	sets := make([]string, 0, len(updates)+1)
	args := make([]any, 0, len(updates)+1)
	i := 1
	for col, val := range updates {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, i))
		args = append(args, val)
		i++
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE products SET %s WHERE id = $%d`, strings.Join(sets, ", "), i)
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateName
		}
		return fmt.Errorf("update product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// Deactivate soft-deletes a product so historical sale items keep their name.
func (r *Repository) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE products SET active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

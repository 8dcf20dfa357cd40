package customers

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reparto-app/reparto/internal/platform/httpx"
)

var (
	// ErrCustomerNotFound indicates the customer does not exist.
	ErrCustomerNotFound = fmt.Errorf("%w: customer", httpx.ErrNotFound)
	// ErrTokenCollision indicates the generated token is already in use.
	ErrTokenCollision = fmt.Errorf("%w: access token", httpx.ErrDuplicate)
)

// Store abstracts customer persistence.
type Store interface {
	Insert(ctx context.Context, c Customer) (int64, error)
	Get(ctx context.Context, id int64) (*Customer, error)
	GetByToken(ctx context.Context, token string) (*Customer, error)
	List(ctx context.Context, req ListCustomersRequest) ([]Customer, int, error)
	Update(ctx context.Context, id int64, updates map[string]any) error
	ReplaceToken(ctx context.Context, id int64, token string) error
	Delete(ctx context.Context, id int64) error
}

// Repository provides PostgreSQL backed persistence for customers.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const customerColumns = `id, name, phone, address, credit, access_token, created_at, updated_at`

func scanCustomer(row pgx.Row) (*Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Address, &c.Credit, &c.AccessToken, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("scan customer: %w", err)
	}
	return &c, nil
}

// Insert creates a customer and returns its id.
func (r *Repository) Insert(ctx context.Context, c Customer) (int64, error) {
	const query = `
		INSERT INTO customers (name, phone, address, credit, access_token)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	var id int64
	err := r.pool.QueryRow(ctx, query, c.Name, c.Phone, c.Address, c.Credit, c.AccessToken).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrTokenCollision
		}
		return 0, fmt.Errorf("insert customer: %w", err)
	}
	return id, nil
}

// Get fetches a customer by id.
func (r *Repository) Get(ctx context.Context, id int64) (*Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`
	return scanCustomer(r.pool.QueryRow(ctx, query, id))
}

// GetByToken resolves an access token. Unknown tokens surface as invalid,
// never as not-found, so the API cannot be probed for customer existence.
func (r *Repository) GetByToken(ctx context.Context, token string) (*Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE access_token = $1`
	c, err := scanCustomer(r.pool.QueryRow(ctx, query, token))
	if err != nil {
		if errors.Is(err, ErrCustomerNotFound) {
			return nil, httpx.ErrInvalidToken
		}
		return nil, err
	}
	return c, nil
}

// List returns customers matching the filter plus the total.
func (r *Repository) List(ctx context.Context, req ListCustomersRequest) ([]Customer, int, error) {
	where := ""
	args := []any{}
	if req.Search != "" {
		where = ` WHERE name ILIKE $1`
		args = append(args, "%"+req.Search+"%")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM customers`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count customers: %w", err)
	}

	query := `SELECT ` + customerColumns + ` FROM customers` + where + ` ORDER BY name, id`
	if req.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
		args = append(args, req.Limit, req.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var customers []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Address, &c.Credit, &c.AccessToken, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan customer row: %w", err)
		}
		customers = append(customers, c)
	}
	return customers, total, rows.Err()
}

// Update applies a partial column update.
func (r *Repository) Update(ctx context.Context, id int64, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	query := `UPDATE customers SET updated_at = NOW()`
	args := []any{}
	for col, val := range updates {
		args = append(args, val)
		query += fmt.Sprintf(", %s = $%d", col, len(args))
	}
	args = append(args, id)
	query += fmt.Sprintf(" WHERE id = $%d", len(args))

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCustomerNotFound
	}
	return nil
}

// ReplaceToken swaps the access token in a single statement, so the old
// token stops resolving the moment the new one exists.
func (r *Repository) ReplaceToken(ctx context.Context, id int64, token string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE customers SET access_token = $1, updated_at = NOW() WHERE id = $2`, token, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrTokenCollision
		}
		return fmt.Errorf("replace token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCustomerNotFound
	}
	return nil
}

// Delete removes a customer with no sale history.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("%w: customer has sale history", httpx.ErrInvalidState)
		}
		return fmt.Errorf("delete customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCustomerNotFound
	}
	return nil
}

package notify

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reparto-app/reparto/internal/platform/httpx"
)

// ErrDeviceNotFound indicates the device is not registered to this customer.
var ErrDeviceNotFound = fmt.Errorf("%w: device", httpx.ErrNotFound)

// Store abstracts device persistence.
type Store interface {
	Upsert(ctx context.Context, customerID int64, pushToken, platform string) (*Device, error)
	Delete(ctx context.Context, customerID, deviceID int64) error
	ListByCustomer(ctx context.Context, customerID int64) ([]Device, error)
	ListAll(ctx context.Context) ([]Device, error)
}

// Repository provides PostgreSQL backed persistence for devices.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Upsert registers a device, re-owning the push token if another customer
// held it before. Phones change hands; the token follows the phone.
func (r *Repository) Upsert(ctx context.Context, customerID int64, pushToken, platform string) (*Device, error) {
	const query = `
		INSERT INTO devices (customer_id, push_token, platform)
		VALUES ($1, $2, $3)
		ON CONFLICT (push_token) DO UPDATE SET customer_id = $1, platform = $3
		RETURNING id, customer_id, push_token, platform, created_at`
	var d Device
	err := r.pool.QueryRow(ctx, query, customerID, pushToken, platform).
		Scan(&d.ID, &d.CustomerID, &d.PushToken, &d.Platform, &d.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert device: %w", err)
	}
	return &d, nil
}

// Delete removes a device the customer owns.
func (r *Repository) Delete(ctx context.Context, customerID, deviceID int64) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM devices WHERE id = $1 AND customer_id = $2`, deviceID, customerID)
	if err != nil {
		return fmt.Errorf("delete device: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// ListByCustomer returns the customer's registered devices.
func (r *Repository) ListByCustomer(ctx context.Context, customerID int64) ([]Device, error) {
	return r.list(ctx, `WHERE customer_id = $1`, customerID)
}

// ListAll returns every registered device. The dispatcher fans broadcast
// notifications out over this set.
func (r *Repository) ListAll(ctx context.Context) ([]Device, error) {
	return r.list(ctx, ``)
}

func (r *Repository) list(ctx context.Context, where string, args ...any) ([]Device, error) {
	query := `SELECT id, customer_id, push_token, platform, created_at FROM devices ` + where + ` ORDER BY id`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		var d Device
		if err := rows.Scan(&d.ID, &d.CustomerID, &d.PushToken, &d.Platform, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

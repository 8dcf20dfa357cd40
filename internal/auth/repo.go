package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reparto-app/reparto/internal/shared"
)

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*Admin, error)
	CreateSession(ctx context.Context, id string, adminID int64, expiresAt time.Time, ip, ua string) error
	DeleteSession(ctx context.Context, id string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByEmail fetches an admin by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*Admin, error) {
	const query = `
		SELECT id, email, name, password_hash, is_active, created_at, updated_at
		FROM admins
		WHERE email = $1`
	var a Admin
	err := r.pool.QueryRow(ctx, query, email).
		Scan(&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("find admin: %w", err)
	}
	return &a, nil
}

// CreateSession records a login session in the database for auditing. The
// authoritative session state lives in Redis.
func (r *PGRepository) CreateSession(ctx context.Context, id string, adminID int64, expiresAt time.Time, ip, ua string) error {
	const query = `
		INSERT INTO admin_sessions (id, admin_id, created_at, expires_at, ip, ua)
		VALUES ($1, $2, NOW(), $3, NULLIF($4, ''), NULLIF($5, ''))`
	if _, err := r.pool.Exec(ctx, query, id, adminID, expiresAt.UTC(), ip, ua); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// DeleteSession removes a session record from the database.
func (r *PGRepository) DeleteSession(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM admin_sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)

package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reparto-app/reparto/internal/platform/httpx"
	"github.com/reparto-app/reparto/internal/sales"
)

var (
	// ErrSaleNotFound indicates the sale does not exist.
	ErrSaleNotFound = fmt.Errorf("%w: sale", httpx.ErrNotFound)
	// ErrEntryNotFound indicates the customer has no stop on this route.
	ErrEntryNotFound = fmt.Errorf("%w: route entry", httpx.ErrNotFound)
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store abstracts route persistence for the progress engine.
type Store interface {
	GetSaleInfo(ctx context.Context, saleID int64) (*SaleInfo, error)
	CurrentSale(ctx context.Context) (*SaleInfo, error)
	ListEntries(ctx context.Context, saleID int64) ([]RouteEntry, error)
	GetCustomerEntry(ctx context.Context, saleID, customerID int64) (*RouteEntry, error)
	WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error
}

// TxStore exposes the transactional operations of the engine. Every
// mutation of route state happens through it.
type TxStore interface {
	GetSaleInfoForUpdate(ctx context.Context, saleID int64) (*SaleInfo, error)
	ListEntriesForUpdate(ctx context.Context, saleID int64) ([]RouteEntry, error)
	HasRoute(ctx context.Context, saleID int64) (bool, error)
	ListCustomerOrders(ctx context.Context, saleID int64) ([]CustomerOrderSummary, error)
	InsertEntries(ctx context.Context, entries []RouteEntry) error
	ApplySequences(ctx context.Context, saleID int64, positions []RoutePosition) error
	SetNext(ctx context.Context, saleID, customerID int64) error
	ClearNext(ctx context.Context, saleID int64) error
	ResolveEntry(ctx context.Context, entryID int64, status EntryStatus, amountCollected *float64, completedAt *time.Time, skipReason *string) error
	ResetEntry(ctx context.Context, entryID int64) error
	AdjustCustomerCredit(ctx context.Context, customerID int64, delta float64) error
	SetSaleStatus(ctx context.Context, saleID int64, from, to sales.Status) error
}

// Repository provides PostgreSQL backed persistence for delivery routes.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps the callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(ctx, &txRepo{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// ============================================================================
// SALE LOOKUPS
// ============================================================================

func getSaleInfo(ctx context.Context, q dbtx, saleID int64, forUpdate bool) (*SaleInfo, error) {
	query := `SELECT id, status, sale_date FROM sales WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var info SaleInfo
	if err := q.QueryRow(ctx, query, saleID).Scan(&info.ID, &info.Status, &info.SaleDate); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSaleNotFound
		}
		return nil, fmt.Errorf("get sale: %w", err)
	}
	return &info, nil
}

// GetSaleInfo fetches the sale slice the engine needs.
func (r *Repository) GetSaleInfo(ctx context.Context, saleID int64) (*SaleInfo, error) {
	return getSaleInfo(ctx, r.pool, saleID, false)
}

// CurrentSale returns the most recent sale, which is the round the
// customer app follows.
func (r *Repository) CurrentSale(ctx context.Context) (*SaleInfo, error) {
	const query = `SELECT id, status, sale_date FROM sales ORDER BY sale_date DESC, id DESC LIMIT 1`
	var info SaleInfo
	if err := r.pool.QueryRow(ctx, query).Scan(&info.ID, &info.Status, &info.SaleDate); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSaleNotFound
		}
		return nil, fmt.Errorf("current sale: %w", err)
	}
	return &info, nil
}

func (t *txRepo) GetSaleInfoForUpdate(ctx context.Context, saleID int64) (*SaleInfo, error) {
	return getSaleInfo(ctx, t.tx, saleID, true)
}

// ============================================================================
// ENTRY LOOKUPS
// ============================================================================

// entryColumns joins the live customer record for name and credit balance.
// total_amount is reconstructed from the frozen split.
const entryColumns = `
	re.id, re.sale_id, re.customer_id, c.name, re.sequence_order, re.status,
	re.credit_to_apply, re.amount_to_collect, re.amount_collected,
	re.completed_at, re.skip_reason, re.is_next, re.version, c.credit`

func scanEntries(rows pgx.Rows) ([]RouteEntry, error) {
	defer rows.Close()
	var entries []RouteEntry
	for rows.Next() {
		var e RouteEntry
		if err := rows.Scan(&e.ID, &e.SaleID, &e.CustomerID, &e.CustomerName, &e.SequenceOrder,
			&e.Status, &e.CreditToApply, &e.AmountToCollect, &e.AmountCollected,
			&e.CompletedAt, &e.SkipReason, &e.IsNext, &e.Version, &e.CustomerCredit); err != nil {
			return nil, fmt.Errorf("scan route entry: %w", err)
		}
		e.TotalAmount = e.CreditToApply + e.AmountToCollect
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func listEntries(ctx context.Context, q dbtx, saleID int64, forUpdate bool) ([]RouteEntry, error) {
	query := `SELECT ` + entryColumns + `
		FROM route_entries re
		JOIN customers c ON c.id = re.customer_id
		WHERE re.sale_id = $1
		ORDER BY re.sequence_order`
	if forUpdate {
		query += ` FOR UPDATE OF re`
	}
	rows, err := q.Query(ctx, query, saleID)
	if err != nil {
		return nil, fmt.Errorf("list route entries: %w", err)
	}
	return scanEntries(rows)
}

// ListEntries loads the route in sequence order, items included.
func (r *Repository) ListEntries(ctx context.Context, saleID int64) ([]RouteEntry, error) {
	entries, err := listEntries(ctx, r.pool, saleID, false)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return entries, nil
	}

	const itemQuery = `
		SELECT cs.customer_id, i.product_name, i.quantity, i.sell_price_at_sale
		FROM customer_sales cs
		JOIN customer_sale_items i ON i.customer_sale_id = cs.id
		WHERE cs.sale_id = $1
		ORDER BY i.id`
	rows, err := r.pool.Query(ctx, itemQuery, saleID)
	if err != nil {
		return nil, fmt.Errorf("list route items: %w", err)
	}
	defer rows.Close()

	byCustomer := map[int64]int{}
	for i := range entries {
		byCustomer[entries[i].CustomerID] = i
	}
	for rows.Next() {
		var customerID int64
		var item RouteItem
		if err := rows.Scan(&customerID, &item.ProductName, &item.Quantity, &item.SellPriceAtSale); err != nil {
			return nil, fmt.Errorf("scan route item: %w", err)
		}
		if pos, ok := byCustomer[customerID]; ok {
			entries[pos].Items = append(entries[pos].Items, item)
		}
	}
	return entries, rows.Err()
}

// GetCustomerEntry fetches one customer's stop on a sale's route.
func (r *Repository) GetCustomerEntry(ctx context.Context, saleID, customerID int64) (*RouteEntry, error) {
	query := `SELECT ` + entryColumns + `
		FROM route_entries re
		JOIN customers c ON c.id = re.customer_id
		WHERE re.sale_id = $1 AND re.customer_id = $2`
	rows, err := r.pool.Query(ctx, query, saleID, customerID)
	if err != nil {
		return nil, fmt.Errorf("get route entry: %w", err)
	}
	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrEntryNotFound
	}
	return &entries[0], nil
}

func (t *txRepo) ListEntriesForUpdate(ctx context.Context, saleID int64) ([]RouteEntry, error) {
	return listEntries(ctx, t.tx, saleID, true)
}

func (t *txRepo) HasRoute(ctx context.Context, saleID int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM route_entries WHERE sale_id = $1)`, saleID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("route exists: %w", err)
	}
	return exists, nil
}

// ListCustomerOrders summarises the sale's orders for default route
// construction, in customer-name order with id as tiebreak.
func (t *txRepo) ListCustomerOrders(ctx context.Context, saleID int64) ([]CustomerOrderSummary, error) {
	const query = `
		SELECT cs.customer_id, c.name, c.credit,
		       COALESCE(SUM(i.quantity * i.sell_price_at_sale), 0)
		FROM customer_sales cs
		JOIN customers c ON c.id = cs.customer_id
		LEFT JOIN customer_sale_items i ON i.customer_sale_id = cs.id
		WHERE cs.sale_id = $1
		GROUP BY cs.customer_id, c.name, c.credit
		HAVING COALESCE(SUM(i.quantity * i.sell_price_at_sale), 0) > 0
		ORDER BY c.name, cs.customer_id`
	rows, err := t.tx.Query(ctx, query, saleID)
	if err != nil {
		return nil, fmt.Errorf("list customer orders: %w", err)
	}
	defer rows.Close()

	var orders []CustomerOrderSummary
	for rows.Next() {
		var o CustomerOrderSummary
		if err := rows.Scan(&o.CustomerID, &o.CustomerName, &o.Credit, &o.TotalAmount); err != nil {
			return nil, fmt.Errorf("scan customer order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// ============================================================================
// MUTATIONS
// ============================================================================

func (t *txRepo) InsertEntries(ctx context.Context, entries []RouteEntry) error {
	const query = `
		INSERT INTO route_entries
			(sale_id, customer_id, sequence_order, status, credit_to_apply, amount_to_collect, is_next, version)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, 1)`
	for _, e := range entries {
		if _, err := t.tx.Exec(ctx, query,
			e.SaleID, e.CustomerID, e.SequenceOrder, e.Status, e.CreditToApply, e.AmountToCollect); err != nil {
			return fmt.Errorf("insert route entry: %w", err)
		}
	}
	return nil
}

// ApplySequences renumbers entries and bumps their versions.
func (t *txRepo) ApplySequences(ctx context.Context, saleID int64, positions []RoutePosition) error {
	const query = `
		UPDATE route_entries
		SET sequence_order = $1, version = version + 1, updated_at = NOW()
		WHERE sale_id = $2 AND customer_id = $3`
	for _, p := range positions {
		tag, err := t.tx.Exec(ctx, query, p.Sequence, saleID, p.CustomerID)
		if err != nil {
			return fmt.Errorf("apply sequence: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrEntryNotFound
		}
	}
	return nil
}

func (t *txRepo) SetNext(ctx context.Context, saleID, customerID int64) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE route_entries SET is_next = TRUE, updated_at = NOW()
		 WHERE sale_id = $1 AND customer_id = $2`, saleID, customerID)
	if err != nil {
		return fmt.Errorf("set next: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (t *txRepo) ClearNext(ctx context.Context, saleID int64) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE route_entries SET is_next = FALSE, updated_at = NOW()
		 WHERE sale_id = $1 AND is_next`, saleID)
	if err != nil {
		return fmt.Errorf("clear next: %w", err)
	}
	return nil
}

func (t *txRepo) ResolveEntry(ctx context.Context, entryID int64, status EntryStatus, amountCollected *float64, completedAt *time.Time, skipReason *string) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE route_entries
		 SET status = $1, amount_collected = $2, completed_at = $3, skip_reason = $4,
		     is_next = FALSE, updated_at = NOW()
		 WHERE id = $5`,
		status, amountCollected, completedAt, skipReason, entryID)
	if err != nil {
		return fmt.Errorf("resolve entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (t *txRepo) ResetEntry(ctx context.Context, entryID int64) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE route_entries
		 SET status = 'pending', amount_collected = NULL, completed_at = NULL,
		     skip_reason = NULL, is_next = FALSE, updated_at = NOW()
		 WHERE id = $1`, entryID)
	if err != nil {
		return fmt.Errorf("reset entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (t *txRepo) AdjustCustomerCredit(ctx context.Context, customerID int64, delta float64) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE customers SET credit = GREATEST(credit + $1, 0), updated_at = NOW() WHERE id = $2`,
		delta, customerID)
	if err != nil {
		return fmt.Errorf("adjust credit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (t *txRepo) SetSaleStatus(ctx context.Context, saleID int64, from, to sales.Status) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE sales SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
		to, saleID, from)
	if err != nil {
		return fmt.Errorf("set sale status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: sale %d no longer %s", httpx.ErrInvalidState, saleID, from)
	}
	return nil
}

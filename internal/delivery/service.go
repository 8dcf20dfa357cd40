package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/reparto-app/reparto/internal/platform/httpx"
	"github.com/reparto-app/reparto/internal/sales"
	"github.com/reparto-app/reparto/internal/stream"
)

var (
	// ErrRouteLocked blocks route edits once the round has started.
	ErrRouteLocked = fmt.Errorf("%w: route can no longer be edited", httpx.ErrInvalidState)
	// ErrSaleNotStarted blocks progress operations outside in_progress.
	ErrSaleNotStarted = fmt.Errorf("%w: delivery not in progress", httpx.ErrInvalidState)
	// ErrSaleCompleted blocks resets once the sale has completed.
	ErrSaleCompleted = fmt.Errorf("%w: sale already completed", httpx.ErrInvalidState)
	// ErrNotPending indicates the stop was already resolved.
	ErrNotPending = fmt.Errorf("%w: entry already resolved", httpx.ErrInvalidState)
	// ErrNotResolved indicates there is nothing to reset.
	ErrNotResolved = fmt.Errorf("%w: entry still pending", httpx.ErrInvalidState)
	// ErrReasonRequired rejects skips without a reason.
	ErrReasonRequired = fmt.Errorf("%w: skip reason required", httpx.ErrValidation)
	// ErrStaleRoute rejects reorders based on an outdated route view.
	ErrStaleRoute = fmt.Errorf("%w: route changed since it was loaded", httpx.ErrStaleWrite)
	// ErrRouteMismatch rejects saved orders that are not a permutation of
	// the sale's customers.
	ErrRouteMismatch = fmt.Errorf("%w: route must contain each customer exactly once", httpx.ErrValidation)
)

// EventPublisher pushes sale lifecycle events to the stream broker.
type EventPublisher interface {
	Publish(ctx context.Context, evt stream.Event) error
}

// ServiceConfig tunes the engine.
type ServiceConfig struct {
	// MinutesPerStop feeds the customer-facing arrival estimate.
	MinutesPerStop int
}

// Service is the delivery route and progress engine.
type Service struct {
	store    Store
	events   EventPublisher
	logger   *slog.Logger
	cfg      ServiceConfig
	validate *validator.Validate
}

// NewService constructs a delivery service.
func NewService(store Store, events EventPublisher, logger *slog.Logger, cfg ServiceConfig) *Service {
	if cfg.MinutesPerStop <= 0 {
		cfg.MinutesPerStop = 10
	}
	return &Service{
		store:    store,
		events:   events,
		logger:   logger,
		cfg:      cfg,
		validate: validator.New(),
	}
}

// ============================================================================
// ROUTE CONSTRUCTION AND ORDERING
// ============================================================================

// EnsureRoute builds the default route if the sale has none yet. Called
// when a sale starts its round; a route the admin saved earlier survives
// untouched.
func (s *Service) EnsureRoute(ctx context.Context, saleID int64) error {
	return s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		if _, err := tx.GetSaleInfoForUpdate(ctx, saleID); err != nil {
			return err
		}
		exists, err := tx.HasRoute(ctx, saleID)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
		return s.buildDefaultRoute(ctx, tx, saleID)
	})
}

// buildDefaultRoute seeds one pending stop per customer with a non-empty
// order, in name order. Credit is applied up to the order total and the
// resulting split is frozen on the entry.
func (s *Service) buildDefaultRoute(ctx context.Context, tx TxStore, saleID int64) error {
	orders, err := tx.ListCustomerOrders(ctx, saleID)
	if err != nil {
		return err
	}
	entries := make([]RouteEntry, 0, len(orders))
	for i, order := range orders {
		credit := order.Credit
		if credit > order.TotalAmount {
			credit = order.TotalAmount
		}
		entries = append(entries, RouteEntry{
			SaleID:          saleID,
			CustomerID:      order.CustomerID,
			SequenceOrder:   i + 1,
			Status:          EntryPending,
			CreditToApply:   credit,
			AmountToCollect: order.TotalAmount - credit,
			TotalAmount:     order.TotalAmount,
		})
	}
	return tx.InsertEntries(ctx, entries)
}

// GetRoute loads the route with freshly computed progress.
func (s *Service) GetRoute(ctx context.Context, saleID int64) (*Route, error) {
	info, err := s.store.GetSaleInfo(ctx, saleID)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.ListEntries(ctx, saleID)
	if err != nil {
		return nil, err
	}
	return &Route{
		SaleID:     saleID,
		SaleStatus: info.Status,
		Entries:    entries,
		Progress:   ComputeProgress(entries),
	}, nil
}

// SaveRoute replaces the route order wholesale. Only reachable while the
// sale is draft or closed; the order must be a permutation of the sale's
// customers and is renumbered densely from 1.
func (s *Service) SaveRoute(ctx context.Context, saleID int64, req SaveRouteRequest) (*Route, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", httpx.ErrValidation, err)
	}

	err := s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		info, err := tx.GetSaleInfoForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if !info.Status.CanEditRoute() {
			return ErrRouteLocked
		}

		exists, err := tx.HasRoute(ctx, saleID)
		if err != nil {
			return err
		}
		if !exists {
			if err := s.buildDefaultRoute(ctx, tx, saleID); err != nil {
				return err
			}
		}

		entries, err := tx.ListEntriesForUpdate(ctx, saleID)
		if err != nil {
			return err
		}

		if len(req.Positions) != len(entries) {
			return ErrRouteMismatch
		}
		onRoute := make(map[int64]bool, len(entries))
		for _, e := range entries {
			onRoute[e.CustomerID] = true
		}
		seen := make(map[int64]bool, len(req.Positions))
		for _, p := range req.Positions {
			if !onRoute[p.CustomerID] || seen[p.CustomerID] {
				return ErrRouteMismatch
			}
			seen[p.CustomerID] = true
		}

		positions := make([]RoutePosition, len(req.Positions))
		copy(positions, req.Positions)
		sort.SliceStable(positions, func(i, j int) bool {
			return positions[i].Sequence < positions[j].Sequence
		})
		for i := range positions {
			positions[i].Sequence = i + 1
		}
		return tx.ApplySequences(ctx, saleID, positions)
	})
	if err != nil {
		return nil, err
	}
	return s.GetRoute(ctx, saleID)
}

// MoveEntry swaps a customer with their neighbour one step up or down the
// route and renumbers densely. Moves past the edges are no-ops.
func (s *Service) MoveEntry(ctx context.Context, saleID int64, req MoveRequest) (*Route, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", httpx.ErrValidation, err)
	}

	err := s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		info, err := tx.GetSaleInfoForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if !info.Status.CanEditRoute() {
			return ErrRouteLocked
		}

		entries, err := tx.ListEntriesForUpdate(ctx, saleID)
		if err != nil {
			return err
		}

		idx := -1
		for i := range entries {
			if entries[i].CustomerID == req.CustomerID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrEntryNotFound
		}
		if req.Version != nil && entries[idx].Version != *req.Version {
			return ErrStaleRoute
		}

		target := idx - 1
		if req.Direction == "down" {
			target = idx + 1
		}
		if target < 0 || target >= len(entries) {
			return nil
		}

		entries[idx], entries[target] = entries[target], entries[idx]
		positions := make([]RoutePosition, len(entries))
		for i := range entries {
			positions[i] = RoutePosition{CustomerID: entries[i].CustomerID, Sequence: i + 1}
		}
		return tx.ApplySequences(ctx, saleID, positions)
	})
	if err != nil {
		return nil, err
	}
	return s.GetRoute(ctx, saleID)
}

// ============================================================================
// PROGRESS ENGINE
// ============================================================================

// SelectNext marks one pending stop as the next delivery and clears the
// flag everywhere else, keeping at most one is_next per sale.
func (s *Service) SelectNext(ctx context.Context, saleID, customerID int64) (*Route, error) {
	err := s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		info, err := tx.GetSaleInfoForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if info.Status != sales.StatusInProgress {
			return ErrSaleNotStarted
		}

		entry, err := findEntry(ctx, tx, saleID, customerID)
		if err != nil {
			return err
		}
		if entry.Status != EntryPending {
			return ErrNotPending
		}

		if err := tx.ClearNext(ctx, saleID); err != nil {
			return err
		}
		return tx.SetNext(ctx, saleID, customerID)
	})
	if err != nil {
		return nil, err
	}
	return s.GetRoute(ctx, saleID)
}

// Complete resolves a stop as delivered. A missing amount defaults to the
// frozen amount_to_collect, and the applied credit is deducted from the
// customer's balance. Resolving the last pending stop completes the sale.
func (s *Service) Complete(ctx context.Context, saleID, customerID int64, req CompleteRequest) (*Route, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", httpx.ErrValidation, err)
	}

	var autoCompleted bool
	err := s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		entries, entry, err := s.pendingEntry(ctx, tx, saleID, customerID)
		if err != nil {
			return err
		}

		amount := entry.AmountToCollect
		if req.AmountCollected != nil {
			amount = *req.AmountCollected
		}
		now := time.Now().UTC()
		if err := tx.ResolveEntry(ctx, entry.ID, EntryCompleted, &amount, &now, nil); err != nil {
			return err
		}
		if entry.CreditToApply > 0 {
			if err := tx.AdjustCustomerCredit(ctx, customerID, -entry.CreditToApply); err != nil {
				return err
			}
		}

		autoCompleted, err = maybeCompleteSale(ctx, tx, saleID, entries, entry.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if autoCompleted {
		s.publishCompleted(ctx, saleID)
	}
	return s.GetRoute(ctx, saleID)
}

// Skip resolves a stop as skipped. The reason is mandatory and kept for
// the customer to see.
func (s *Service) Skip(ctx context.Context, saleID, customerID int64, req SkipRequest) (*Route, error) {
	req.Reason = strings.TrimSpace(req.Reason)
	if req.Reason == "" {
		return nil, ErrReasonRequired
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", httpx.ErrValidation, err)
	}

	var autoCompleted bool
	err := s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		entries, entry, err := s.pendingEntry(ctx, tx, saleID, customerID)
		if err != nil {
			return err
		}

		if err := tx.ResolveEntry(ctx, entry.ID, EntrySkipped, nil, nil, &req.Reason); err != nil {
			return err
		}

		autoCompleted, err = maybeCompleteSale(ctx, tx, saleID, entries, entry.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if autoCompleted {
		s.publishCompleted(ctx, saleID)
	}
	return s.GetRoute(ctx, saleID)
}

// Reset puts a resolved stop back to pending, restoring deducted credit.
// Refused once the sale has completed: a finished round is immutable.
func (s *Service) Reset(ctx context.Context, saleID, customerID int64) (*Route, error) {
	err := s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		info, err := tx.GetSaleInfoForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if info.Status == sales.StatusCompleted {
			return ErrSaleCompleted
		}
		if info.Status != sales.StatusInProgress {
			return ErrSaleNotStarted
		}

		entry, err := findEntry(ctx, tx, saleID, customerID)
		if err != nil {
			return err
		}
		if !entry.Status.IsResolved() {
			return ErrNotResolved
		}

		if entry.Status == EntryCompleted && entry.CreditToApply > 0 {
			if err := tx.AdjustCustomerCredit(ctx, customerID, entry.CreditToApply); err != nil {
				return err
			}
		}
		return tx.ResetEntry(ctx, entry.ID)
	})
	if err != nil {
		return nil, err
	}
	return s.GetRoute(ctx, saleID)
}

// CustomerStatus is the token-scoped delivery view. A zero saleID targets
// the current sale; a positive one addresses a specific round. Customers
// without a stop yet see a pending status with no queue details.
func (s *Service) CustomerStatus(ctx context.Context, customerID, saleID int64) (*CustomerStatus, error) {
	var info *SaleInfo
	var err error
	if saleID > 0 {
		info, err = s.store.GetSaleInfo(ctx, saleID)
	} else {
		info, err = s.store.CurrentSale(ctx)
	}
	if err != nil {
		return nil, err
	}

	status := &CustomerStatus{
		SaleStatus:     string(info.Status),
		DeliveryStatus: string(EntryPending),
	}

	entry, err := s.store.GetCustomerEntry(ctx, info.ID, customerID)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return status, nil
		}
		return nil, err
	}

	status.DeliveryStatus = string(entry.Status)
	status.IsNext = entry.IsNext
	status.CompletedAt = entry.CompletedAt
	status.AmountCollected = entry.AmountCollected
	status.SkipReason = entry.SkipReason

	if entry.Status == EntryPending && info.Status == sales.StatusInProgress {
		entries, err := s.store.ListEntries(ctx, info.ID)
		if err != nil {
			return nil, err
		}
		ahead := 0
		for _, other := range entries {
			if other.Status == EntryPending && other.SequenceOrder < entry.SequenceOrder {
				ahead++
			}
		}
		position := ahead + 1
		estimate := position * s.cfg.MinutesPerStop
		status.PositionInQueue = &position
		status.DeliveriesAhead = &ahead
		status.EstimatedMinutes = &estimate
	}
	return status, nil
}

// ============================================================================
// HELPERS
// ============================================================================

func findEntry(ctx context.Context, tx TxStore, saleID, customerID int64) (*RouteEntry, error) {
	entries, err := tx.ListEntriesForUpdate(ctx, saleID)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].CustomerID == customerID {
			return &entries[i], nil
		}
	}
	return nil, ErrEntryNotFound
}

// pendingEntry loads the locked route and the customer's stop, enforcing
// that the sale is in progress and the stop still pending.
func (s *Service) pendingEntry(ctx context.Context, tx TxStore, saleID, customerID int64) ([]RouteEntry, *RouteEntry, error) {
	info, err := tx.GetSaleInfoForUpdate(ctx, saleID)
	if err != nil {
		return nil, nil, err
	}
	if info.Status != sales.StatusInProgress {
		return nil, nil, ErrSaleNotStarted
	}

	entries, err := tx.ListEntriesForUpdate(ctx, saleID)
	if err != nil {
		return nil, nil, err
	}
	for i := range entries {
		if entries[i].CustomerID == customerID {
			if entries[i].Status != EntryPending {
				return nil, nil, ErrNotPending
			}
			return entries, &entries[i], nil
		}
	}
	return nil, nil, ErrEntryNotFound
}

// maybeCompleteSale flips the sale to completed when the stop being
// resolved was the last pending one, inside the same transaction.
func maybeCompleteSale(ctx context.Context, tx TxStore, saleID int64, entries []RouteEntry, resolvedID int64) (bool, error) {
	for _, e := range entries {
		if e.ID != resolvedID && e.Status == EntryPending {
			return false, nil
		}
	}
	if err := tx.SetSaleStatus(ctx, saleID, sales.StatusInProgress, sales.StatusCompleted); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) publishCompleted(ctx context.Context, saleID int64) {
	if s.events == nil {
		return
	}
	info, err := s.store.GetSaleInfo(ctx, saleID)
	if err != nil {
		s.logger.Warn("load sale for event", slog.Any("error", err), slog.Int64("sale_id", saleID))
		return
	}
	evt := stream.Event{
		Type: stream.EventSaleStatusChanged,
		Sale: stream.SaleSummary{
			ID:       info.ID,
			SaleDate: info.SaleDate.Format("2006-01-02"),
			Status:   string(info.Status),
		},
		At: time.Now().UTC(),
	}
	if err := s.events.Publish(ctx, evt); err != nil {
		s.logger.Warn("publish sale event", slog.Any("error", err), slog.Int64("sale_id", saleID))
	}
}

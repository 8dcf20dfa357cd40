package sales

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/reparto-app/reparto/internal/platform/httpx"
	"github.com/reparto-app/reparto/internal/stream"
)

// RouteBuilder prepares the delivery route when a sale starts its round.
// Implemented by the delivery service; the builder must be idempotent so a
// saved route survives the start.
type RouteBuilder interface {
	EnsureRoute(ctx context.Context, saleID int64) error
}

// EventPublisher pushes sale lifecycle events to the stream broker.
type EventPublisher interface {
	Publish(ctx context.Context, evt stream.Event) error
}

// Service provides business logic for the sale lifecycle.
type Service struct {
	store    Store
	routes   RouteBuilder
	events   EventPublisher
	logger   *slog.Logger
	validate *validator.Validate
}

// NewService constructs a sales service.
func NewService(store Store, events EventPublisher, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		events:   events,
		logger:   logger,
		validate: validator.New(),
	}
}

// SetRouteBuilder wires the delivery engine in after construction, keeping
// the sales -> delivery dependency one-directional at compile time.
func (s *Service) SetRouteBuilder(rb RouteBuilder) {
	s.routes = rb
}

// CreateSale opens a new draft sale and announces it on the stream.
func (s *Service) CreateSale(ctx context.Context, req CreateSaleRequest) (*Sale, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", httpx.ErrValidation, err)
	}

	id, err := s.store.Insert(ctx, req.SaleDate, req.Notes)
	if err != nil {
		return nil, err
	}

	sale, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, stream.EventSaleCreated, sale)
	return sale, nil
}

// GetSale fetches a sale with its per-customer orders.
func (s *Service) GetSale(ctx context.Context, id int64) (*SaleDetail, error) {
	sale, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	customerSales, err := s.store.ListCustomerSales(ctx, id)
	if err != nil {
		return nil, err
	}
	return &SaleDetail{Sale: *sale, CustomerSales: customerSales}, nil
}

// ListSales returns sales newest first.
func (s *Service) ListSales(ctx context.Context, req ListSalesRequest) ([]Sale, int, error) {
	if req.Status != nil && !req.Status.IsValid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", httpx.ErrValidation, *req.Status)
	}
	return s.store.List(ctx, req)
}

// ChangeStatus moves a sale along the lifecycle. Starting the round
// (closed -> in_progress) first makes sure a route exists, preserving a
// route the admin saved beforehand.
func (s *Service) ChangeStatus(ctx context.Context, id int64, req ChangeStatusRequest) (*Sale, error) {
	if !req.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", httpx.ErrValidation, req.Status)
	}

	sale, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sale.Status.CanTransitionTo(req.Status) {
		return nil, fmt.Errorf("%w: cannot move sale from %s to %s", httpx.ErrInvalidState, sale.Status, req.Status)
	}

	if req.Status == StatusInProgress {
		if s.routes == nil {
			return nil, fmt.Errorf("route builder not configured")
		}
		if err := s.routes.EnsureRoute(ctx, id); err != nil {
			return nil, fmt.Errorf("prepare route: %w", err)
		}
	}

	if err := s.store.SetStatus(ctx, id, sale.Status, req.Status); err != nil {
		return nil, err
	}

	fresh, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, stream.EventSaleStatusChanged, fresh)
	return fresh, nil
}

// DeleteSale removes a draft sale.
func (s *Service) DeleteSale(ctx context.Context, id int64) error {
	sale, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if sale.Status != StatusDraft {
		return fmt.Errorf("%w: only draft sales can be deleted", httpx.ErrInvalidState)
	}
	return s.store.Delete(ctx, id)
}

// Summaries supplies the event-stream snapshot.
func (s *Service) Summaries(ctx context.Context) ([]stream.SaleSummary, error) {
	return s.store.Summaries(ctx)
}

// publish emits an event without letting broker trouble fail the request.
func (s *Service) publish(ctx context.Context, typ stream.EventType, sale *Sale) {
	if s.events == nil || sale == nil {
		return
	}
	evt := stream.Event{
		Type: typ,
		Sale: stream.SaleSummary{
			ID:       sale.ID,
			SaleDate: sale.SaleDate.Format("2006-01-02"),
			Status:   string(sale.Status),
		},
		At: time.Now().UTC(),
	}
	if err := s.events.Publish(ctx, evt); err != nil {
		s.logger.Warn("publish sale event", slog.Any("error", err), slog.Int64("sale_id", sale.ID))
	}
}

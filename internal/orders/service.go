package orders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"

	"github.com/reparto-app/reparto/internal/customers"
	"github.com/reparto-app/reparto/internal/platform/httpx"
	"github.com/reparto-app/reparto/internal/sales"
	"github.com/reparto-app/reparto/internal/stream"
)

// ErrOrdersLocked indicates the sale no longer accepts order changes.
var ErrOrdersLocked = fmt.Errorf("%w: orders can no longer be modified", httpx.ErrInvalidState)

// EventPublisher pushes sale lifecycle events to the stream broker.
type EventPublisher interface {
	Publish(ctx context.Context, evt stream.Event) error
}

// Service is the token-scoped order editor.
type Service struct {
	store    Store
	events   EventPublisher
	logger   *slog.Logger
	validate *validator.Validate
}

// NewService constructs an orders service.
func NewService(store Store, events EventPublisher, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		events:   events,
		logger:   logger,
		validate: validator.New(),
	}
}

// GetOrder assembles the order page for one sale: the customer's lines,
// the catalog, and a state message when ordering is closed. A zero saleID
// targets the most recent sale.
func (s *Service) GetOrder(ctx context.Context, customer *customers.Customer, saleID int64, lang language.Tag) (*OrderView, error) {
	sale, err := s.resolveSale(ctx, saleID)
	if err != nil {
		return nil, err
	}

	lines, err := s.store.CustomerOrder(ctx, sale.ID, customer.ID)
	if err != nil {
		return nil, err
	}
	products, err := s.store.ActiveProducts(ctx)
	if err != nil {
		return nil, err
	}

	view := &OrderView{
		CustomerName:      customer.Name,
		SaleID:            sale.ID,
		SaleDate:          sale.SaleDate.Format("2006-01-02"),
		SaleStatus:        string(sale.Status),
		IsOpen:            sale.Status.CanEditOrders(),
		CurrentOrder:      lines,
		TotalAmount:       orderTotal(lines),
		AvailableProducts: products,
	}
	if code := statusCode(sale.Status); code != "" {
		view.MessageCode = code
		view.Message = Message(code, lang)
	}
	return view, nil
}

// SubmitOrder replaces the customer's order wholesale. Only possible while
// the sale is a draft; an empty item list clears the order. A zero saleID
// targets the most recent sale.
func (s *Service) SubmitOrder(ctx context.Context, customer *customers.Customer, saleID int64, req SubmitOrderRequest, lang language.Tag) (*SubmitResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", httpx.ErrValidation, err)
	}

	sale, err := s.resolveSale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	// Fast reject; the store re-checks under a row lock when writing.
	if !sale.Status.CanEditOrders() {
		return nil, ErrOrdersLocked
	}

	lines, err := s.store.ReplaceOrder(ctx, sale.ID, customer.ID, mergeItems(req.Items))
	if err != nil {
		return nil, err
	}
	s.publishChanged(ctx, sale)

	code := CodeOrderUpdated
	if len(lines) == 0 {
		code = CodeOrderCleared
	}
	return &SubmitResult{
		MessageCode: code,
		Message:     Message(code, lang),
		Order:       lines,
		TotalAmount: orderTotal(lines),
	}, nil
}

// resolveSale loads the addressed sale, defaulting to the most recent
// one when no id is given.
func (s *Service) resolveSale(ctx context.Context, saleID int64) (*SaleView, error) {
	if saleID > 0 {
		return s.store.SaleByID(ctx, saleID)
	}
	return s.store.CurrentSale(ctx)
}

// mergeItems collapses duplicate product ids, summing quantities and
// keeping first-seen order.
func mergeItems(items []SubmitItem) []SubmitItem {
	merged := make([]SubmitItem, 0, len(items))
	index := make(map[int64]int, len(items))
	for _, item := range items {
		if pos, ok := index[item.ProductID]; ok {
			merged[pos].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}
	return merged
}

func orderTotal(lines []OrderLine) float64 {
	var total float64
	for _, line := range lines {
		total += line.Subtotal
	}
	return total
}

func statusCode(status sales.Status) string {
	switch status {
	case sales.StatusClosed:
		return CodeSaleClosed
	case sales.StatusInProgress:
		return CodeDeliveryInProgress
	case sales.StatusCompleted:
		return CodeSaleCompleted
	}
	return ""
}

func (s *Service) publishChanged(ctx context.Context, sale *SaleView) {
	if s.events == nil {
		return
	}
	evt := stream.Event{
		Type: stream.EventSaleOrdersChanged,
		Sale: stream.SaleSummary{
			ID:       sale.ID,
			SaleDate: sale.SaleDate.Format("2006-01-02"),
			Status:   string(sale.Status),
		},
		At: time.Now().UTC(),
	}
	if err := s.events.Publish(ctx, evt); err != nil {
		s.logger.Warn("publish order event", slog.Any("error", err), slog.Int64("sale_id", sale.ID))
	}
}

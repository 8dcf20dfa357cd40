package orders

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/reparto-app/reparto/internal/customers"
	"github.com/reparto-app/reparto/internal/platform/httpx"
	"github.com/reparto-app/reparto/internal/sales"
	"github.com/reparto-app/reparto/internal/stream"
)

// ============================================================================
// MOCK STORE
// ============================================================================

type mockStore struct {
	sale     *SaleView
	past     map[int64]*SaleView
	orders   map[int64][]OrderLine
	products []ProductOption

	// closeOnReplace flips the sale to closed at the start of
	// ReplaceOrder, standing in for an admin closing it mid-request.
	closeOnReplace bool
}

func newMockStore(status sales.Status) *mockStore {
	return &mockStore{
		sale: &SaleView{
			ID:       1,
			SaleDate: time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC),
			Status:   status,
		},
		past:   make(map[int64]*SaleView),
		orders: make(map[int64][]OrderLine),
		products: []ProductOption{
			{ID: 100, Name: "Pan de pueblo", SellPrice: 1.50},
			{ID: 200, Name: "Rosquillas", SellPrice: 2.20},
		},
	}
}

func (m *mockStore) CurrentSale(context.Context) (*SaleView, error) {
	if m.sale == nil {
		return nil, ErrNoActiveSale
	}
	copied := *m.sale
	return &copied, nil
}

func (m *mockStore) SaleByID(_ context.Context, saleID int64) (*SaleView, error) {
	if m.sale != nil && m.sale.ID == saleID {
		copied := *m.sale
		return &copied, nil
	}
	if sale, ok := m.past[saleID]; ok {
		copied := *sale
		return &copied, nil
	}
	return nil, ErrSaleNotFound
}

func (m *mockStore) CustomerOrder(_ context.Context, _ int64, customerID int64) ([]OrderLine, error) {
	return m.orders[customerID], nil
}

func (m *mockStore) ActiveProducts(context.Context) ([]ProductOption, error) {
	return m.products, nil
}

func (m *mockStore) ReplaceOrder(_ context.Context, _ int64, customerID int64, items []SubmitItem) ([]OrderLine, error) {
	if m.closeOnReplace {
		m.sale.Status = sales.StatusClosed
	}
	// The real store re-checks the status under a row lock.
	if !m.sale.Status.CanEditOrders() {
		return nil, ErrOrdersLocked
	}
	if len(items) == 0 {
		delete(m.orders, customerID)
		return nil, nil
	}
	catalog := make(map[int64]ProductOption, len(m.products))
	for _, p := range m.products {
		catalog[p.ID] = p
	}
	lines := make([]OrderLine, 0, len(items))
	for _, item := range items {
		product, ok := catalog[item.ProductID]
		if !ok {
			return nil, ErrProductNotFound
		}
		lines = append(lines, OrderLine{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    item.Quantity,
			UnitPrice:   product.SellPrice,
			Subtotal:    product.SellPrice * float64(item.Quantity),
		})
	}
	m.orders[customerID] = lines
	return lines, nil
}

type mockPublisher struct {
	events []stream.Event
}

func (p *mockPublisher) Publish(_ context.Context, evt stream.Event) error {
	p.events = append(p.events, evt)
	return nil
}

func newTestService(store *mockStore) (*Service, *mockPublisher) {
	pub := &mockPublisher{}
	svc := NewService(store, pub, slog.New(slog.DiscardHandler))
	return svc, pub
}

func testCustomer() *customers.Customer {
	return &customers.Customer{ID: 7, Name: "Ana García"}
}

// ============================================================================
// ORDER PAGE
// ============================================================================

func TestGetOrderOpenDraft(t *testing.T) {
	store := newMockStore(sales.StatusDraft)
	svc, _ := newTestService(store)

	view, err := svc.GetOrder(context.Background(), testCustomer(), 0, language.Spanish)
	require.NoError(t, err)

	assert.True(t, view.IsOpen)
	assert.Empty(t, view.MessageCode)
	assert.Equal(t, "2026-08-29", view.SaleDate)
	assert.Len(t, view.AvailableProducts, 2)
	assert.Zero(t, view.TotalAmount)
}

func TestGetOrderClosedSaleCarriesMessage(t *testing.T) {
	store := newMockStore(sales.StatusClosed)
	svc, _ := newTestService(store)

	view, err := svc.GetOrder(context.Background(), testCustomer(), 0, language.English)
	require.NoError(t, err)

	assert.False(t, view.IsOpen)
	assert.Equal(t, CodeSaleClosed, view.MessageCode)
	assert.Equal(t, "Ordering is closed", view.Message)
}

func TestGetOrderStatusCodes(t *testing.T) {
	cases := map[sales.Status]string{
		sales.StatusInProgress: CodeDeliveryInProgress,
		sales.StatusCompleted:  CodeSaleCompleted,
	}
	for status, code := range cases {
		store := newMockStore(status)
		svc, _ := newTestService(store)

		view, err := svc.GetOrder(context.Background(), testCustomer(), 0, language.Spanish)
		require.NoError(t, err)
		assert.Equal(t, code, view.MessageCode)
	}
}

func TestGetOrderAddressesSaleByID(t *testing.T) {
	store := newMockStore(sales.StatusDraft)
	store.past[5] = &SaleView{
		ID:       5,
		SaleDate: time.Date(2026, 8, 22, 0, 0, 0, 0, time.UTC),
		Status:   sales.StatusCompleted,
	}
	svc, _ := newTestService(store)

	view, err := svc.GetOrder(context.Background(), testCustomer(), 5, language.Spanish)
	require.NoError(t, err)
	assert.Equal(t, int64(5), view.SaleID)
	assert.Equal(t, "2026-08-22", view.SaleDate)
	assert.False(t, view.IsOpen)
	assert.Equal(t, CodeSaleCompleted, view.MessageCode)
}

func TestGetOrderUnknownSale(t *testing.T) {
	store := newMockStore(sales.StatusDraft)
	svc, _ := newTestService(store)

	_, err := svc.GetOrder(context.Background(), testCustomer(), 99, language.Spanish)
	assert.ErrorIs(t, err, ErrSaleNotFound)
	assert.ErrorIs(t, err, httpx.ErrNotFound)
}

// ============================================================================
// SUBMIT
// ============================================================================

func TestSubmitOrderReplacesWholesale(t *testing.T) {
	store := newMockStore(sales.StatusDraft)
	store.orders[7] = []OrderLine{{ProductID: 200, ProductName: "Rosquillas", Quantity: 5, UnitPrice: 2.20, Subtotal: 11}}
	svc, pub := newTestService(store)

	res, err := svc.SubmitOrder(context.Background(), testCustomer(), 0, SubmitOrderRequest{
		Items: []SubmitItem{{ProductID: 100, Quantity: 2}},
	}, language.Spanish)
	require.NoError(t, err)

	// Old lines are gone, not merged with the new submission.
	require.Len(t, res.Order, 1)
	assert.Equal(t, int64(100), res.Order[0].ProductID)
	assert.Equal(t, 3.0, res.TotalAmount)
	assert.Equal(t, CodeOrderUpdated, res.MessageCode)
	assert.Equal(t, "Pedido actualizado", res.Message)

	require.Len(t, pub.events, 1)
	assert.Equal(t, stream.EventSaleOrdersChanged, pub.events[0].Type)
}

func TestSubmitEmptyOrderClears(t *testing.T) {
	store := newMockStore(sales.StatusDraft)
	store.orders[7] = []OrderLine{{ProductID: 100, Quantity: 1, Subtotal: 1.5}}
	svc, _ := newTestService(store)

	res, err := svc.SubmitOrder(context.Background(), testCustomer(), 0, SubmitOrderRequest{}, language.Spanish)
	require.NoError(t, err)

	assert.Equal(t, CodeOrderCleared, res.MessageCode)
	assert.Empty(t, res.Order)
	assert.Zero(t, res.TotalAmount)
	assert.Empty(t, store.orders[7])
}

func TestSubmitOrderLockedOutsideDraft(t *testing.T) {
	for _, status := range []sales.Status{sales.StatusClosed, sales.StatusInProgress, sales.StatusCompleted} {
		store := newMockStore(status)
		svc, pub := newTestService(store)

		_, err := svc.SubmitOrder(context.Background(), testCustomer(), 0, SubmitOrderRequest{
			Items: []SubmitItem{{ProductID: 100, Quantity: 1}},
		}, language.Spanish)
		assert.ErrorIs(t, err, ErrOrdersLocked)
		assert.Empty(t, pub.events)
	}
}

func TestSubmitOrderRejectedWhenSaleClosesMidRequest(t *testing.T) {
	store := newMockStore(sales.StatusDraft)
	store.closeOnReplace = true
	svc, pub := newTestService(store)

	// The pre-check sees a draft, but the sale closes before the write
	// lands; the store-level re-check must refuse it.
	_, err := svc.SubmitOrder(context.Background(), testCustomer(), 0, SubmitOrderRequest{
		Items: []SubmitItem{{ProductID: 100, Quantity: 1}},
	}, language.Spanish)
	assert.ErrorIs(t, err, ErrOrdersLocked)
	assert.Empty(t, store.orders[7])
	assert.Empty(t, pub.events)
}

func TestSubmitOrderToUnknownSale(t *testing.T) {
	store := newMockStore(sales.StatusDraft)
	svc, _ := newTestService(store)

	_, err := svc.SubmitOrder(context.Background(), testCustomer(), 42, SubmitOrderRequest{
		Items: []SubmitItem{{ProductID: 100, Quantity: 1}},
	}, language.Spanish)
	assert.ErrorIs(t, err, ErrSaleNotFound)
}

func TestSubmitOrderUnknownProduct(t *testing.T) {
	store := newMockStore(sales.StatusDraft)
	svc, _ := newTestService(store)

	_, err := svc.SubmitOrder(context.Background(), testCustomer(), 0, SubmitOrderRequest{
		Items: []SubmitItem{{ProductID: 999, Quantity: 1}},
	}, language.Spanish)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestSubmitOrderValidatesQuantity(t *testing.T) {
	store := newMockStore(sales.StatusDraft)
	svc, _ := newTestService(store)

	_, err := svc.SubmitOrder(context.Background(), testCustomer(), 0, SubmitOrderRequest{
		Items: []SubmitItem{{ProductID: 100, Quantity: 0}},
	}, language.Spanish)
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestMergeItemsCollapsesDuplicates(t *testing.T) {
	merged := mergeItems([]SubmitItem{
		{ProductID: 100, Quantity: 2},
		{ProductID: 200, Quantity: 1},
		{ProductID: 100, Quantity: 3},
	})

	require.Len(t, merged, 2)
	assert.Equal(t, int64(100), merged[0].ProductID)
	assert.Equal(t, 5, merged[0].Quantity)
	assert.Equal(t, int64(200), merged[1].ProductID)
}

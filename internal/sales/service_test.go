package sales

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reparto-app/reparto/internal/platform/httpx"
	"github.com/reparto-app/reparto/internal/stream"
)

// ============================================================================
// MOCK STORE
// ============================================================================

type mockStore struct {
	sales  map[int64]*Sale
	nextID int64
}

func newMockStore() *mockStore {
	return &mockStore{sales: make(map[int64]*Sale), nextID: 1}
}

func (m *mockStore) Insert(_ context.Context, saleDate string, notes *string) (int64, error) {
	date, err := time.Parse("2006-01-02", saleDate)
	if err != nil {
		return 0, err
	}
	id := m.nextID
	m.nextID++
	m.sales[id] = &Sale{ID: id, SaleDate: date, Status: StatusDraft, Notes: notes}
	return id, nil
}

func (m *mockStore) Get(_ context.Context, id int64) (*Sale, error) {
	sale, ok := m.sales[id]
	if !ok {
		return nil, ErrSaleNotFound
	}
	copied := *sale
	return &copied, nil
}

func (m *mockStore) List(_ context.Context, req ListSalesRequest) ([]Sale, int, error) {
	var out []Sale
	for _, s := range m.sales {
		if req.Status != nil && s.Status != *req.Status {
			continue
		}
		out = append(out, *s)
	}
	return out, len(out), nil
}

func (m *mockStore) ListCustomerSales(context.Context, int64) ([]CustomerSale, error) {
	return nil, nil
}

func (m *mockStore) SetStatus(_ context.Context, id int64, from, to Status) error {
	sale, ok := m.sales[id]
	if !ok {
		return ErrSaleNotFound
	}
	if sale.Status != from {
		return ErrSaleNotFound
	}
	sale.Status = to
	return nil
}

func (m *mockStore) Delete(_ context.Context, id int64) error {
	if _, ok := m.sales[id]; !ok {
		return ErrSaleNotFound
	}
	delete(m.sales, id)
	return nil
}

func (m *mockStore) Summaries(context.Context) ([]stream.SaleSummary, error) {
	var out []stream.SaleSummary
	for _, s := range m.sales {
		out = append(out, stream.SaleSummary{
			ID:       s.ID,
			SaleDate: s.SaleDate.Format("2006-01-02"),
			Status:   string(s.Status),
		})
	}
	return out, nil
}

func (m *mockStore) seed(status Status) int64 {
	id := m.nextID
	m.nextID++
	m.sales[id] = &Sale{ID: id, SaleDate: time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC), Status: status}
	return id
}

type mockPublisher struct {
	events []stream.Event
}

func (p *mockPublisher) Publish(_ context.Context, evt stream.Event) error {
	p.events = append(p.events, evt)
	return nil
}

type mockRouteBuilder struct {
	ensured []int64
	err     error
}

func (b *mockRouteBuilder) EnsureRoute(_ context.Context, saleID int64) error {
	if b.err != nil {
		return b.err
	}
	b.ensured = append(b.ensured, saleID)
	return nil
}

func newTestService(store *mockStore) (*Service, *mockPublisher, *mockRouteBuilder) {
	pub := &mockPublisher{}
	rb := &mockRouteBuilder{}
	svc := NewService(store, pub, slog.New(slog.DiscardHandler))
	svc.SetRouteBuilder(rb)
	return svc, pub, rb
}

// ============================================================================
// LIFECYCLE
// ============================================================================

func TestCreateSaleStartsAsDraft(t *testing.T) {
	store := newMockStore()
	svc, pub, _ := newTestService(store)

	sale, err := svc.CreateSale(context.Background(), CreateSaleRequest{SaleDate: "2026-08-29"})
	require.NoError(t, err)

	assert.Equal(t, StatusDraft, sale.Status)
	require.Len(t, pub.events, 1)
	assert.Equal(t, stream.EventSaleCreated, pub.events[0].Type)
	assert.Equal(t, "2026-08-29", pub.events[0].Sale.SaleDate)
}

func TestCreateSaleRejectsBadDate(t *testing.T) {
	store := newMockStore()
	svc, _, _ := newTestService(store)

	_, err := svc.CreateSale(context.Background(), CreateSaleRequest{SaleDate: "29/08/2026"})
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestStatusTransitionTable(t *testing.T) {
	cases := []struct {
		from Status
		to   Status
		ok   bool
	}{
		{StatusDraft, StatusClosed, true},
		{StatusDraft, StatusInProgress, false},
		{StatusDraft, StatusCompleted, false},
		{StatusClosed, StatusDraft, true},
		{StatusClosed, StatusInProgress, true},
		{StatusClosed, StatusCompleted, false},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusDraft, false},
		{StatusInProgress, StatusClosed, false},
		{StatusCompleted, StatusDraft, false},
		{StatusCompleted, StatusClosed, false},
		{StatusCompleted, StatusInProgress, false},
	}

	for _, tc := range cases {
		t.Run(string(tc.from)+"_to_"+string(tc.to), func(t *testing.T) {
			store := newMockStore()
			id := store.seed(tc.from)
			svc, _, _ := newTestService(store)

			sale, err := svc.ChangeStatus(context.Background(), id, ChangeStatusRequest{Status: tc.to})
			if tc.ok {
				require.NoError(t, err)
				assert.Equal(t, tc.to, sale.Status)
			} else {
				assert.ErrorIs(t, err, httpx.ErrInvalidState)
			}
		})
	}
}

func TestReopenReturnsSaleToDraft(t *testing.T) {
	store := newMockStore()
	id := store.seed(StatusClosed)
	svc, pub, _ := newTestService(store)

	sale, err := svc.ChangeStatus(context.Background(), id, ChangeStatusRequest{Status: StatusDraft})
	require.NoError(t, err)

	assert.Equal(t, StatusDraft, sale.Status)
	assert.True(t, sale.Status.CanEditOrders())
	require.Len(t, pub.events, 1)
	assert.Equal(t, stream.EventSaleStatusChanged, pub.events[0].Type)
}

func TestStartingRoundBuildsRoute(t *testing.T) {
	store := newMockStore()
	id := store.seed(StatusClosed)
	svc, _, rb := newTestService(store)

	sale, err := svc.ChangeStatus(context.Background(), id, ChangeStatusRequest{Status: StatusInProgress})
	require.NoError(t, err)

	assert.Equal(t, StatusInProgress, sale.Status)
	assert.Equal(t, []int64{id}, rb.ensured)
}

func TestRouteBuildFailureAbortsStart(t *testing.T) {
	store := newMockStore()
	id := store.seed(StatusClosed)
	svc, pub, rb := newTestService(store)
	rb.err = assert.AnError

	_, err := svc.ChangeStatus(context.Background(), id, ChangeStatusRequest{Status: StatusInProgress})
	require.Error(t, err)

	fresh, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, fresh.Status)
	assert.Empty(t, pub.events)
}

func TestChangeStatusRejectsUnknownStatus(t *testing.T) {
	store := newMockStore()
	id := store.seed(StatusDraft)
	svc, _, _ := newTestService(store)

	_, err := svc.ChangeStatus(context.Background(), id, ChangeStatusRequest{Status: "shipped"})
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestChangeStatusUnknownSale(t *testing.T) {
	store := newMockStore()
	svc, _, _ := newTestService(store)

	_, err := svc.ChangeStatus(context.Background(), 42, ChangeStatusRequest{Status: StatusClosed})
	assert.ErrorIs(t, err, ErrSaleNotFound)
}

// ============================================================================
// DELETE
// ============================================================================

func TestDeleteSaleDraftOnly(t *testing.T) {
	store := newMockStore()
	draftID := store.seed(StatusDraft)
	closedID := store.seed(StatusClosed)
	svc, _, _ := newTestService(store)

	require.NoError(t, svc.DeleteSale(context.Background(), draftID))
	_, err := store.Get(context.Background(), draftID)
	assert.ErrorIs(t, err, ErrSaleNotFound)

	err = svc.DeleteSale(context.Background(), closedID)
	assert.ErrorIs(t, err, httpx.ErrInvalidState)
}

// ============================================================================
// LISTING
// ============================================================================

func TestListSalesFiltersByStatus(t *testing.T) {
	store := newMockStore()
	store.seed(StatusDraft)
	store.seed(StatusClosed)
	store.seed(StatusClosed)
	svc, _, _ := newTestService(store)

	closed := StatusClosed
	sales, total, err := svc.ListSales(context.Background(), ListSalesRequest{Status: &closed})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, sales, 2)
}

func TestListSalesRejectsUnknownStatus(t *testing.T) {
	store := newMockStore()
	svc, _, _ := newTestService(store)

	bogus := Status("archived")
	_, _, err := svc.ListSales(context.Background(), ListSalesRequest{Status: &bogus})
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

package customers

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reparto-app/reparto/internal/platform/httpx"
)

// ============================================================================
// MOCK STORE
// ============================================================================

type mockStore struct {
	customers map[int64]*Customer
	byToken   map[string]int64
	nextID    int64
}

func newMockStore() *mockStore {
	return &mockStore{
		customers: make(map[int64]*Customer),
		byToken:   make(map[string]int64),
		nextID:    1,
	}
}

func (m *mockStore) Insert(_ context.Context, c Customer) (int64, error) {
	if _, taken := m.byToken[c.AccessToken]; taken {
		return 0, ErrTokenCollision
	}
	c.ID = m.nextID
	m.nextID++
	m.customers[c.ID] = &c
	m.byToken[c.AccessToken] = c.ID
	return c.ID, nil
}

func (m *mockStore) Get(_ context.Context, id int64) (*Customer, error) {
	c, ok := m.customers[id]
	if !ok {
		return nil, ErrCustomerNotFound
	}
	copied := *c
	return &copied, nil
}

func (m *mockStore) GetByToken(_ context.Context, token string) (*Customer, error) {
	id, ok := m.byToken[token]
	if !ok {
		return nil, httpx.ErrInvalidToken
	}
	return m.Get(context.Background(), id)
}

func (m *mockStore) List(_ context.Context, _ ListCustomersRequest) ([]Customer, int, error) {
	out := make([]Customer, 0, len(m.customers))
	for _, c := range m.customers {
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (m *mockStore) Update(_ context.Context, id int64, updates map[string]any) error {
	c, ok := m.customers[id]
	if !ok {
		return ErrCustomerNotFound
	}
	if name, ok := updates["name"]; ok {
		c.Name = name.(string)
	}
	if credit, ok := updates["credit"]; ok {
		c.Credit = credit.(float64)
	}
	return nil
}

func (m *mockStore) ReplaceToken(_ context.Context, id int64, token string) error {
	c, ok := m.customers[id]
	if !ok {
		return ErrCustomerNotFound
	}
	delete(m.byToken, c.AccessToken)
	c.AccessToken = token
	m.byToken[token] = id
	return nil
}

func (m *mockStore) Delete(_ context.Context, id int64) error {
	c, ok := m.customers[id]
	if !ok {
		return ErrCustomerNotFound
	}
	delete(m.byToken, c.AccessToken)
	delete(m.customers, id)
	return nil
}

// sequenceIssuer hands out predictable tokens.
type sequenceIssuer struct {
	n int
}

func (s *sequenceIssuer) Issue() string {
	s.n++
	return fmt.Sprintf("token-%d", s.n)
}

func newTestService(store *mockStore) *Service {
	svc := NewService(store)
	svc.SetTokenIssuer(&sequenceIssuer{})
	return svc
}

// ============================================================================
// TOKEN LIFECYCLE
// ============================================================================

func TestCreateCustomerIssuesToken(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)

	c, err := svc.CreateCustomer(context.Background(), CreateCustomerRequest{Name: "Ana García", Credit: 2})
	require.NoError(t, err)

	assert.Equal(t, "token-1", c.AccessToken)
	assert.Equal(t, 2.0, c.Credit)
}

func TestCreateCustomerRetriesOnTokenCollision(t *testing.T) {
	store := newMockStore()
	store.byToken["token-1"] = 99
	svc := newTestService(store)

	c, err := svc.CreateCustomer(context.Background(), CreateCustomerRequest{Name: "Benito Sanz"})
	require.NoError(t, err)
	assert.Equal(t, "token-2", c.AccessToken)
}

func TestRotateTokenInvalidatesOldOne(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)

	created, err := svc.CreateCustomer(context.Background(), CreateCustomerRequest{Name: "Carmen López"})
	require.NoError(t, err)
	oldToken := created.AccessToken

	rotated, err := svc.RotateToken(context.Background(), created.ID)
	require.NoError(t, err)
	assert.NotEqual(t, oldToken, rotated.AccessToken)

	// The new token resolves, the old one is dead.
	resolved, err := svc.ResolveToken(context.Background(), rotated.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, created.ID, resolved.ID)

	_, err = svc.ResolveToken(context.Background(), oldToken)
	assert.ErrorIs(t, err, httpx.ErrInvalidToken)
}

func TestResolveTokenRejectsEmpty(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)

	_, err := svc.ResolveToken(context.Background(), "")
	assert.ErrorIs(t, err, httpx.ErrInvalidToken)
}

// ============================================================================
// CRUD
// ============================================================================

func TestCreateCustomerValidation(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)

	_, err := svc.CreateCustomer(context.Background(), CreateCustomerRequest{Name: ""})
	assert.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.CreateCustomer(context.Background(), CreateCustomerRequest{Name: "Ana", Credit: -1})
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestUpdateCustomerPartial(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)

	created, err := svc.CreateCustomer(context.Background(), CreateCustomerRequest{Name: "Ana", Credit: 4})
	require.NoError(t, err)

	name := "Ana María"
	updated, err := svc.UpdateCustomer(context.Background(), created.ID, UpdateCustomerRequest{Name: &name})
	require.NoError(t, err)

	assert.Equal(t, "Ana María", updated.Name)
	assert.Equal(t, 4.0, updated.Credit)
	assert.Equal(t, created.AccessToken, updated.AccessToken)
}

func TestGetCustomerNotFound(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)

	_, err := svc.GetCustomer(context.Background(), 42)
	assert.ErrorIs(t, err, ErrCustomerNotFound)
}

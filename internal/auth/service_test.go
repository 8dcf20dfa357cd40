package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/reparto-app/reparto/internal/shared"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockRepository struct {
	admins   map[string]*Admin
	sessions map[string]int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		admins:   make(map[string]*Admin),
		sessions: make(map[string]int64),
	}
}

func (m *mockRepository) FindByEmail(_ context.Context, email string) (*Admin, error) {
	admin, ok := m.admins[email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *admin
	return &copied, nil
}

func (m *mockRepository) CreateSession(_ context.Context, id string, adminID int64, _ time.Time, _, _ string) error {
	m.sessions[id] = adminID
	return nil
}

func (m *mockRepository) DeleteSession(_ context.Context, id string) error {
	delete(m.sessions, id)
	return nil
}

func (m *mockRepository) addAdmin(email, password string, active bool) {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	m.admins[email] = &Admin{
		ID:           int64(len(m.admins) + 1),
		Email:        email,
		Name:         "Administrador",
		PasswordHash: string(hash),
		IsActive:     active,
	}
}

// ============================================================================
// AUTHENTICATION
// ============================================================================

func TestAuthenticateSuccess(t *testing.T) {
	repo := newMockRepository()
	repo.addAdmin("admin@reparto.local", "admin123", true)
	svc := NewService(repo)

	admin, err := svc.Authenticate(context.Background(), "admin@reparto.local", "admin123")
	require.NoError(t, err)
	assert.Equal(t, "admin@reparto.local", admin.Email)
}

func TestAuthenticateFailuresAreUniform(t *testing.T) {
	repo := newMockRepository()
	repo.addAdmin("admin@reparto.local", "admin123", true)
	repo.addAdmin("retired@reparto.local", "admin123", false)
	svc := NewService(repo)

	// Unknown account, wrong password, and disabled account must be
	// indistinguishable to the caller.
	cases := []struct {
		email    string
		password string
	}{
		{"nobody@reparto.local", "admin123"},
		{"admin@reparto.local", "wrong"},
		{"retired@reparto.local", "admin123"},
	}
	for _, tc := range cases {
		_, err := svc.Authenticate(context.Background(), tc.email, tc.password)
		assert.ErrorIs(t, err, shared.ErrInvalidCredentials, "email %s", tc.email)
	}
}

func TestSessionAudit(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo)

	require.NoError(t, svc.RegisterSession(context.Background(), "sess-1", 7, time.Now().Add(time.Hour), "10.0.0.1", "test-agent"))
	assert.Equal(t, int64(7), repo.sessions["sess-1"])

	require.NoError(t, svc.RemoveSession(context.Background(), "sess-1"))
	assert.Empty(t, repo.sessions)
}

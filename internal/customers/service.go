package customers

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/reparto-app/reparto/internal/platform/httpx"
)

// uuidIssuer is the default token source.
type uuidIssuer struct{}

func (uuidIssuer) Issue() string { return uuid.NewString() }

// Service provides business logic for customer management and token access.
type Service struct {
	store    Store
	tokens   TokenIssuer
	validate *validator.Validate
}

// NewService constructs a customer service.
func NewService(store Store) *Service {
	return &Service{
		store:    store,
		tokens:   uuidIssuer{},
		validate: validator.New(),
	}
}

// SetTokenIssuer overrides the token source.
func (s *Service) SetTokenIssuer(issuer TokenIssuer) {
	s.tokens = issuer
}

// CreateCustomer registers a customer and issues their access token.
func (s *Service) CreateCustomer(ctx context.Context, req CreateCustomerRequest) (*Customer, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", httpx.ErrValidation, err)
	}

	id, err := s.store.Insert(ctx, Customer{
		Name:        req.Name,
		Phone:       req.Phone,
		Address:     req.Address,
		Credit:      req.Credit,
		AccessToken: s.tokens.Issue(),
	})
	if err != nil {
		// A uuid collision is effectively impossible but retrying once on a
		// duplicate keeps custom issuers honest.
		if errors.Is(err, ErrTokenCollision) {
			id, err = s.store.Insert(ctx, Customer{
				Name:        req.Name,
				Phone:       req.Phone,
				Address:     req.Address,
				Credit:      req.Credit,
				AccessToken: s.tokens.Issue(),
			})
		}
		if err != nil {
			return nil, err
		}
	}
	return s.store.Get(ctx, id)
}

// GetCustomer fetches a customer by id.
func (s *Service) GetCustomer(ctx context.Context, id int64) (*Customer, error) {
	return s.store.Get(ctx, id)
}

// ListCustomers returns customers plus the total count.
func (s *Service) ListCustomers(ctx context.Context, req ListCustomersRequest) ([]Customer, int, error) {
	return s.store.List(ctx, req)
}

// UpdateCustomer applies a partial update and returns the fresh record.
func (s *Service) UpdateCustomer(ctx context.Context, id int64, req UpdateCustomerRequest) (*Customer, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", httpx.ErrValidation, err)
	}

	updates := map[string]any{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Address != nil {
		updates["address"] = *req.Address
	}
	if req.Credit != nil {
		updates["credit"] = *req.Credit
	}

	if err := s.store.Update(ctx, id, updates); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

// DeleteCustomer removes a customer without sale history.
func (s *Service) DeleteCustomer(ctx context.Context, id int64) error {
	return s.store.Delete(ctx, id)
}

// RotateToken issues a fresh access token. The previous token stops
// resolving atomically with the swap.
func (s *Service) RotateToken(ctx context.Context, id int64) (*Customer, error) {
	if err := s.store.ReplaceToken(ctx, id, s.tokens.Issue()); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

// ResolveToken maps an access token to its customer.
func (s *Service) ResolveToken(ctx context.Context, token string) (*Customer, error) {
	if token == "" {
		return nil, httpx.ErrInvalidToken
	}
	return s.store.GetByToken(ctx, token)
}

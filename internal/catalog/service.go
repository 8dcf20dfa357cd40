package catalog

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/reparto-app/reparto/internal/platform/httpx"
)

// Service provides business logic for catalog operations.
type Service struct {
	store    Store
	validate *validator.Validate
}

// NewService constructs a catalog service.
func NewService(store Store) *Service {
	return &Service{
		store:    store,
		validate: validator.New(),
	}
}

// CreateProduct creates a new active product.
func (s *Service) CreateProduct(ctx context.Context, req CreateProductRequest) (*Product, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", httpx.ErrValidation, err)
	}

	id, err := s.store.Insert(ctx, Product{
		Name:        req.Name,
		Description: req.Description,
		BuyPrice:    req.BuyPrice,
		SellPrice:   req.SellPrice,
		Active:      true,
	})
	if err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

// GetProduct fetches a product by id.
func (s *Service) GetProduct(ctx context.Context, id int64) (*Product, error) {
	return s.store.Get(ctx, id)
}

// ListProducts returns products plus the total count.
func (s *Service) ListProducts(ctx context.Context, req ListProductsRequest) ([]Product, int, error) {
	return s.store.List(ctx, req)
}

// UpdateProduct applies a partial update and returns the fresh record.
func (s *Service) UpdateProduct(ctx context.Context, id int64, req UpdateProductRequest) (*Product, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", httpx.ErrValidation, err)
	}

	updates := map[string]any{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.BuyPrice != nil {
		updates["buy_price"] = *req.BuyPrice
	}
	if req.SellPrice != nil {
		updates["sell_price"] = *req.SellPrice
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}

	if err := s.store.Update(ctx, id, updates); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

// DeleteProduct deactivates a product. Sale items keep their price and name
// snapshots, so nothing is physically removed.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	return s.store.Deactivate(ctx, id)
}

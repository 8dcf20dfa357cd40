package notify

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/reparto-app/reparto/internal/platform/httpx"
)

// Service manages the device registry.
type Service struct {
	store    Store
	validate *validator.Validate
}

// NewService constructs a notify service.
func NewService(store Store) *Service {
	return &Service{store: store, validate: validator.New()}
}

// RegisterDevice enrols or re-owns a device for the customer.
func (s *Service) RegisterDevice(ctx context.Context, customerID int64, req RegisterDeviceRequest) (*Device, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", httpx.ErrValidation, err)
	}
	return s.store.Upsert(ctx, customerID, req.PushToken, req.Platform)
}

// UnregisterDevice removes one of the customer's devices.
func (s *Service) UnregisterDevice(ctx context.Context, customerID, deviceID int64) error {
	return s.store.Delete(ctx, customerID, deviceID)
}

// ListDevices returns the customer's registered devices.
func (s *Service) ListDevices(ctx context.Context, customerID int64) ([]Device, error) {
	return s.store.ListByCustomer(ctx, customerID)
}

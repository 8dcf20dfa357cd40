package customers

import "time"

// Customer is a delivery-round customer. AccessToken is the opaque
// credential the mobile client uses; it maps 1:1 to the customer and is
// replaced wholesale on rotation. Credit is a balance applied against
// deliveries when a route is built.
type Customer struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Phone       string    `json:"phone" db:"phone"`
	Address     string    `json:"address" db:"address"`
	Credit      float64   `json:"credit" db:"credit"`
	AccessToken string    `json:"access_token" db:"access_token"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// TokenIssuer produces opaque access tokens. The default issuer is random
// uuid based; tests inject a deterministic one.
type TokenIssuer interface {
	Issue() string
}

// ============================================================================
// REQUEST / RESPONSE TYPES
// ============================================================================

// CreateCustomerRequest creates a new customer.
type CreateCustomerRequest struct {
	Name    string  `json:"name" validate:"required,min=1,max=120"`
	Phone   string  `json:"phone" validate:"max=40"`
	Address string  `json:"address" validate:"max=300"`
	Credit  float64 `json:"credit" validate:"gte=0"`
}

// UpdateCustomerRequest updates customer fields. Nil fields are untouched.
type UpdateCustomerRequest struct {
	Name    *string  `json:"name" validate:"omitempty,min=1,max=120"`
	Phone   *string  `json:"phone" validate:"omitempty,max=40"`
	Address *string  `json:"address" validate:"omitempty,max=300"`
	Credit  *float64 `json:"credit" validate:"omitempty,gte=0"`
}

// ListCustomersRequest filters customer listings.
type ListCustomersRequest struct {
	Search string
	Limit  int
	Offset int
}

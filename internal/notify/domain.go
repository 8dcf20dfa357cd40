// Package notify keeps the device registry and turns sale events into
// queued push notifications.
package notify

import "time"

// Device is one push-notification endpoint registered by a customer.
type Device struct {
	ID         int64     `json:"id"`
	CustomerID int64     `json:"customer_id"`
	PushToken  string    `json:"push_token"`
	Platform   string    `json:"platform"`
	CreatedAt  time.Time `json:"created_at"`
}

// RegisterDeviceRequest enrols a device for the authenticated customer.
type RegisterDeviceRequest struct {
	PushToken string `json:"push_token" validate:"required,min=8,max=512"`
	Platform  string `json:"platform" validate:"required,oneof=ios android web"`
}

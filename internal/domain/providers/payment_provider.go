package providers

import (
	"context"
)

// CheckoutRequest describes a checkout session to be created
type CheckoutRequest struct {
	Amount        int64 // minor units
	Currency      string
	CustomerEmail string
	Description   string
	AppointmentID string
	SuccessURL    string
	CancelURL     string
}

// CheckoutSession is the provider's handle for a created session
type CheckoutSession struct {
	SessionID   string
	CheckoutURL string
}

// SessionStatus is the provider's view of a session's payment outcome
type SessionStatus struct {
	Paid        bool
	MethodType  string
	CheckoutURL string
}

// PaymentProvider defines the interface for external checkout
// providers (Stripe, etc.). The provider is treated as unreliable:
// every error is surfaced to the caller, never swallowed. The session
// ID is stored only as a correlation key; the reservation lifecycle
// remains the source of truth.
type PaymentProvider interface {
	// CreateCheckoutSession creates a hosted checkout session
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)

	// RetrieveSession fetches the current status of a session
	RetrieveSession(ctx context.Context, sessionID string) (*SessionStatus, error)
}

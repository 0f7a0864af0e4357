package entities

import "time"

// PaymentStatus mirrors the provider-side payment state
type PaymentStatus string

const (
	PaymentStatusRequiresMethod PaymentStatus = "requires_payment_method"
	PaymentStatusProcessing     PaymentStatus = "processing"
	PaymentStatusSucceeded      PaymentStatus = "succeeded"
	PaymentStatusFailed         PaymentStatus = "failed"
)

// Payment is the payment record tied to an appointment. At most one
// active payment exists per appointment; it is created when the doctor
// accepts the request and only mutated by confirmation or cancellation.
type Payment struct {
	ID                string        `json:"id" db:"id"`
	AppointmentID     string        `json:"appointment_id" db:"appointment_id"`
	ProviderSessionID string        `json:"provider_session_id" db:"provider_session_id"`
	Amount            int64         `json:"amount" db:"amount"`
	Currency          string        `json:"currency" db:"currency"`
	Status            PaymentStatus `json:"status" db:"status"`
	MethodType        *string       `json:"method_type" db:"method_type"`
	CreatedAt         time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at" db:"updated_at"`
}

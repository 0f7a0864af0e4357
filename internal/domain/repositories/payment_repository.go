package repositories

import (
	"context"

	"github.com/careloop/doctorbooking/internal/domain/entities"
)

// PaymentRepository defines read access to payment records. Writes
// happen through the appointment repository's atomic transition
// methods so the appointment and its payment never diverge.
type PaymentRepository interface {
	// GetByAppointment retrieves the payment record for an appointment
	GetByAppointment(ctx context.Context, appointmentID string) (*entities.Payment, error)

	// GetBySession retrieves a payment record by provider session ID
	GetBySession(ctx context.Context, sessionID string) (*entities.Payment, error)
}

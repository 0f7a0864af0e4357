package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/careloop/doctorbooking/internal/domain/entities"
	"github.com/careloop/doctorbooking/internal/domain/repositories"
	"github.com/careloop/doctorbooking/internal/infrastructure/clients/postgres"
	apperrors "github.com/careloop/doctorbooking/pkg/errors"
)

var paymentColumns = []interface{}{
	"id", "appointment_id", "provider_session_id", "amount", "currency",
	"status", "method_type", "created_at", "updated_at",
}

// PaymentAdapter implements read access to payment records. Writes go
// through the appointment adapter's transactional methods.
type PaymentAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewPaymentAdapter creates a new payment adapter
func NewPaymentAdapter(client *postgres.Client) repositories.PaymentRepository {
	return &PaymentAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// GetByAppointment retrieves the payment record for an appointment
func (a *PaymentAdapter) GetByAppointment(ctx context.Context, appointmentID string) (*entities.Payment, error) {
	return a.getOne(ctx, goqu.Ex{"appointment_id": appointmentID},
		fmt.Sprintf("payment for appointment %s not found", appointmentID))
}

// GetBySession retrieves a payment record by provider session ID
func (a *PaymentAdapter) GetBySession(ctx context.Context, sessionID string) (*entities.Payment, error) {
	return a.getOne(ctx, goqu.Ex{"provider_session_id": sessionID},
		fmt.Sprintf("payment for session %s not found", sessionID))
}

func (a *PaymentAdapter) getOne(ctx context.Context, where goqu.Ex, notFoundMsg string) (*entities.Payment, error) {
	query, args, err := a.db.Select(paymentColumns...).
		From("payments").
		Where(where).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	payment := &entities.Payment{}
	var methodType sql.NullString

	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&payment.ID,
		&payment.AppointmentID,
		&payment.ProviderSessionID,
		&payment.Amount,
		&payment.Currency,
		&payment.Status,
		&methodType,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(notFoundMsg)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get payment", err)
	}

	if methodType.Valid {
		payment.MethodType = &methodType.String
	}
	return payment, nil
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/lib/pq"

	"github.com/careloop/doctorbooking/internal/domain/entities"
	"github.com/careloop/doctorbooking/internal/domain/repositories"
	"github.com/careloop/doctorbooking/internal/infrastructure/clients/postgres"
	apperrors "github.com/careloop/doctorbooking/pkg/errors"
)

// pgUniqueViolation is the postgres error code returned when an insert
// loses the race against the partial unique index
const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation
}

var appointmentColumns = []interface{}{
	"id", "patient_id", "doctor_id", "appointment_date", "start_time", "end_time",
	"status", "lock_expires_at", "description", "report_urls", "payment_session_id",
	"created_at", "updated_at",
}

// AppointmentAdapter implements the AppointmentRepository interface.
// Slot exclusivity rests on the partial unique index
//
//	CREATE UNIQUE INDEX appointments_active_slot_idx
//	ON appointments (doctor_id, appointment_date, start_time)
//	WHERE status IN ('HOLD','REQUESTED','PAYMENT_PENDING','PAID','COMPLETED');
//
// and every status write is a conditional update on the expected
// prior status.
type AppointmentAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewAppointmentAdapter creates a new appointment adapter
func NewAppointmentAdapter(client *postgres.Client) repositories.AppointmentRepository {
	return &AppointmentAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// CreateHold inserts a new HOLD appointment
func (a *AppointmentAdapter) CreateHold(ctx context.Context, appointment *entities.Appointment) error {
	record := goqu.Record{
		"id":                 appointment.ID,
		"patient_id":         appointment.PatientID,
		"doctor_id":          appointment.DoctorID,
		"appointment_date":   appointment.Date,
		"start_time":         appointment.StartTime,
		"end_time":           appointment.EndTime,
		"status":             appointment.Status,
		"lock_expires_at":    appointment.LockExpiresAt,
		"description":        appointment.Description,
		"report_urls":        pq.Array(appointment.ReportURLs),
		"payment_session_id": appointment.PaymentSessionID,
		"created_at":         appointment.CreatedAt,
		"updated_at":         appointment.UpdatedAt,
	}

	query, args, err := a.db.Insert("appointments").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err = a.client.DB().ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewConflictError("slot already held or booked")
		}
		return apperrors.NewInternalError("failed to create appointment hold", err)
	}

	return nil
}

// GetByID retrieves an appointment by ID
func (a *AppointmentAdapter) GetByID(ctx context.Context, id string) (*entities.Appointment, error) {
	query, args, err := a.db.Select(appointmentColumns...).
		From("appointments").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	appointment, err := scanAppointment(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("appointment with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get appointment", err)
	}
	return appointment, nil
}

// FindActiveForSlot returns the active-status appointment occupying
// the slot, or nil when the slot is free
func (a *AppointmentAdapter) FindActiveForSlot(ctx context.Context, doctorID string, date time.Time, start entities.TimeOfDay) (*entities.Appointment, error) {
	query, args, err := a.db.Select(appointmentColumns...).
		From("appointments").
		Where(goqu.Ex{
			"doctor_id":        doctorID,
			"appointment_date": date,
			"start_time":       start,
			"status":           entities.ActiveStatuses(),
		}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	appointment, err := scanAppointment(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query slot occupancy", err)
	}
	return appointment, nil
}

// ListActiveForDate returns all active-status appointments for a
// doctor on a date
func (a *AppointmentAdapter) ListActiveForDate(ctx context.Context, doctorID string, date time.Time) ([]*entities.Appointment, error) {
	query, args, err := a.db.Select(appointmentColumns...).
		From("appointments").
		Where(goqu.Ex{
			"doctor_id":        doctorID,
			"appointment_date": date,
			"status":           entities.ActiveStatuses(),
		}).
		Order(goqu.I("start_time").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	return a.queryAppointments(ctx, query, args)
}

// ListByPatient retrieves a patient's appointments
func (a *AppointmentAdapter) ListByPatient(ctx context.Context, patientID string, filter repositories.AppointmentFilter) ([]*entities.Appointment, error) {
	ds := a.db.Select(appointmentColumns...).
		From("appointments").
		Where(goqu.Ex{"patient_id": patientID})

	if len(filter.Statuses) > 0 {
		ds = ds.Where(goqu.Ex{"status": filter.Statuses})
	}
	if filter.FromDate != nil {
		ds = ds.Where(goqu.C("appointment_date").Gte(*filter.FromDate))
	}

	ds = ds.Order(goqu.I("appointment_date").Asc(), goqu.I("start_time").Asc())

	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	return a.queryAppointments(ctx, query, args)
}

// Transition applies the update only if the status still equals from
func (a *AppointmentAdapter) Transition(ctx context.Context, id string, from entities.AppointmentStatus, update repositories.AppointmentUpdate) error {
	query, args, err := a.buildTransition(id, from, update)
	if err != nil {
		return err
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update appointment status", err)
	}

	return checkTransitionApplied(result, id)
}

// AcceptWithPayment atomically moves the appointment to
// PAYMENT_PENDING and inserts its payment record
func (a *AppointmentAdapter) AcceptWithPayment(ctx context.Context, id string, update repositories.AppointmentUpdate, payment *entities.Payment) error {
	transitionQuery, transitionArgs, err := a.buildTransition(id, entities.AppointmentStatusRequested, update)
	if err != nil {
		return err
	}

	paymentQuery, paymentArgs, err := a.db.Insert("payments").Rows(goqu.Record{
		"id":                  payment.ID,
		"appointment_id":      payment.AppointmentID,
		"provider_session_id": payment.ProviderSessionID,
		"amount":              payment.Amount,
		"currency":            payment.Currency,
		"status":              payment.Status,
		"method_type":         payment.MethodType,
		"created_at":          payment.CreatedAt,
		"updated_at":          payment.UpdatedAt,
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build payment insert", err)
	}

	return a.client.WithinTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, transitionQuery, transitionArgs...)
		if err != nil {
			return apperrors.NewInternalError("failed to update appointment status", err)
		}
		if err := checkTransitionApplied(result, id); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, paymentQuery, paymentArgs...); err != nil {
			return apperrors.NewInternalError("failed to create payment record", err)
		}
		return nil
	})
}

// SettlePayment atomically records the payment outcome on both the
// appointment and its payment record
func (a *AppointmentAdapter) SettlePayment(ctx context.Context, id, sessionID string, apptStatus entities.AppointmentStatus, payStatus entities.PaymentStatus, methodType *string) error {
	now := time.Now()

	transitionQuery, transitionArgs, err := a.buildTransition(id, entities.AppointmentStatusPaymentPending, repositories.AppointmentUpdate{
		Status:    apptStatus,
		ClearLock: true,
	})
	if err != nil {
		return err
	}

	paymentRecord := goqu.Record{
		"status":     payStatus,
		"updated_at": now,
	}
	if methodType != nil {
		paymentRecord["method_type"] = *methodType
	}

	paymentQuery, paymentArgs, err := a.db.Update("payments").
		Set(paymentRecord).
		Where(goqu.Ex{"provider_session_id": sessionID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build payment update", err)
	}

	return a.client.WithinTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, transitionQuery, transitionArgs...)
		if err != nil {
			return apperrors.NewInternalError("failed to update appointment status", err)
		}
		if err := checkTransitionApplied(result, id); err != nil {
			return err
		}

		payResult, err := tx.ExecContext(ctx, paymentQuery, paymentArgs...)
		if err != nil {
			return apperrors.NewInternalError("failed to update payment record", err)
		}
		payRows, err := payResult.RowsAffected()
		if err != nil {
			return apperrors.NewInternalError("failed to get rows affected", err)
		}
		if payRows == 0 {
			return apperrors.NewNotFoundError(fmt.Sprintf("payment for session %s not found", sessionID))
		}
		return nil
	})
}

// ExpireStale flips lapsed-lease appointments to their terminal state.
// When the flip lands on EXPIRED it also fails the open payment rows
// of the expired appointments, in the same transaction, so a lapsed
// payment window never leaves a payment stuck in requires_payment_method.
func (a *AppointmentAdapter) ExpireStale(ctx context.Context, now time.Time, from []entities.AppointmentStatus, to entities.AppointmentStatus) (int64, error) {
	query, args, err := a.db.Update("appointments").
		Set(goqu.Record{
			"status":     to,
			"updated_at": now,
		}).
		Where(
			goqu.Ex{"status": from},
			goqu.C("lock_expires_at").IsNotNull(),
			goqu.C("lock_expires_at").Lt(now),
		).
		ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build expiry query", err)
	}

	paymentQuery, paymentArgs, err := a.db.Update("payments").
		Set(goqu.Record{
			"status":     entities.PaymentStatusFailed,
			"updated_at": now,
		}).
		Where(
			goqu.Ex{"status": entities.PaymentStatusRequiresMethod},
			goqu.C("appointment_id").In(
				a.db.From("appointments").Select("id").Where(goqu.Ex{"status": to}),
			),
		).
		ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build payment expiry query", err)
	}

	var rows int64
	err = a.client.WithinTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return apperrors.NewInternalError("failed to expire stale appointments", err)
		}
		rows, err = result.RowsAffected()
		if err != nil {
			return apperrors.NewInternalError("failed to get rows affected", err)
		}

		if rows > 0 && to == entities.AppointmentStatusExpired {
			if _, err := tx.ExecContext(ctx, paymentQuery, paymentArgs...); err != nil {
				return apperrors.NewInternalError("failed to fail expired payments", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return rows, nil
}

func (a *AppointmentAdapter) buildTransition(id string, from entities.AppointmentStatus, update repositories.AppointmentUpdate) (string, []interface{}, error) {
	record := goqu.Record{
		"status":     update.Status,
		"updated_at": time.Now(),
	}
	if update.ClearLock {
		record["lock_expires_at"] = nil
	} else if update.LockExpiresAt != nil {
		record["lock_expires_at"] = *update.LockExpiresAt
	}
	if update.Description != nil {
		record["description"] = *update.Description
	}
	if update.ReportURLs != nil {
		record["report_urls"] = pq.Array(update.ReportURLs)
	}
	if update.PaymentSessionID != nil {
		record["payment_session_id"] = *update.PaymentSessionID
	}

	query, args, err := a.db.Update("appointments").
		Set(record).
		Where(goqu.Ex{"id": id, "status": from}).
		ToSQL()
	if err != nil {
		return "", nil, apperrors.NewInternalError("failed to build transition query", err)
	}
	return query, args, nil
}

func checkTransitionApplied(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rows == 0 {
		return apperrors.NewConflictError(fmt.Sprintf("appointment %s changed concurrently", id))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAppointment(row rowScanner) (*entities.Appointment, error) {
	appointment := &entities.Appointment{}
	var lockExpiresAt sql.NullTime
	var description, paymentSessionID sql.NullString
	var reportURLs pq.StringArray

	err := row.Scan(
		&appointment.ID,
		&appointment.PatientID,
		&appointment.DoctorID,
		&appointment.Date,
		&appointment.StartTime,
		&appointment.EndTime,
		&appointment.Status,
		&lockExpiresAt,
		&description,
		&reportURLs,
		&paymentSessionID,
		&appointment.CreatedAt,
		&appointment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lockExpiresAt.Valid {
		appointment.LockExpiresAt = &lockExpiresAt.Time
	}
	appointment.Description = description.String
	appointment.ReportURLs = reportURLs
	if paymentSessionID.Valid {
		appointment.PaymentSessionID = &paymentSessionID.String
	}

	return appointment, nil
}

func (a *AppointmentAdapter) queryAppointments(ctx context.Context, query string, args []interface{}) ([]*entities.Appointment, error) {
	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list appointments", err)
	}
	defer rows.Close()

	var appointments []*entities.Appointment
	for rows.Next() {
		appointment, err := scanAppointment(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan appointment", err)
		}
		appointments = append(appointments, appointment)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate appointments", err)
	}

	return appointments, nil
}

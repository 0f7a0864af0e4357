package repositories

import (
	"context"
	"time"

	"github.com/careloop/doctorbooking/internal/domain/entities"
)

// AppointmentUpdate carries the fields a lifecycle transition may
// write alongside the new status
type AppointmentUpdate struct {
	Status           entities.AppointmentStatus
	LockExpiresAt    *time.Time
	ClearLock        bool
	Description      *string
	ReportURLs       []string
	PaymentSessionID *string
}

// AppointmentFilter defines filters for listing appointments
type AppointmentFilter struct {
	Statuses []entities.AppointmentStatus
	FromDate *time.Time
	Limit    int
	Offset   int
}

// AppointmentRepository defines the interface for appointment data
// operations. Slot exclusivity is enforced by the store: a partial
// unique index on (doctor_id, appointment_date, start_time) over
// active statuses arbitrates racing inserts, and every status write is
// a conditional update on the expected prior status.
type AppointmentRepository interface {
	// CreateHold inserts a new HOLD appointment. A unique-index
	// violation (another request won the slot race) surfaces as a
	// conflict error.
	CreateHold(ctx context.Context, appointment *entities.Appointment) error

	// GetByID retrieves an appointment by ID
	GetByID(ctx context.Context, id string) (*entities.Appointment, error)

	// FindActiveForSlot returns the active-status appointment
	// occupying the given slot, or nil when the slot is free
	FindActiveForSlot(ctx context.Context, doctorID string, date time.Time, start entities.TimeOfDay) (*entities.Appointment, error)

	// ListActiveForDate returns all active-status appointments for a
	// doctor on a date, for slot-state projection
	ListActiveForDate(ctx context.Context, doctorID string, date time.Time) ([]*entities.Appointment, error)

	// ListByPatient retrieves a patient's appointments
	ListByPatient(ctx context.Context, patientID string, filter AppointmentFilter) ([]*entities.Appointment, error)

	// Transition applies update to the appointment only if its status
	// still equals from, in a single statement. Zero rows affected
	// surfaces as a conflict error.
	Transition(ctx context.Context, id string, from entities.AppointmentStatus, update AppointmentUpdate) error

	// AcceptWithPayment atomically moves a REQUESTED appointment to
	// PAYMENT_PENDING and inserts its payment record in one
	// transaction. The status check is part of the update.
	AcceptWithPayment(ctx context.Context, id string, update AppointmentUpdate, payment *entities.Payment) error

	// SettlePayment atomically records the payment outcome: the
	// appointment moves from PAYMENT_PENDING to apptStatus and the
	// payment row keyed by sessionID moves to payStatus, in one
	// transaction.
	SettlePayment(ctx context.Context, id, sessionID string, apptStatus entities.AppointmentStatus, payStatus entities.PaymentStatus, methodType *string) error

	// ExpireStale flips every appointment in one of the from statuses
	// whose lease lapsed before now to the to status, returning the
	// number of rows flipped. Used by the optional sweeper.
	ExpireStale(ctx context.Context, now time.Time, from []entities.AppointmentStatus, to entities.AppointmentStatus) (int64, error)
}

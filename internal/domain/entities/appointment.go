package entities

import (
	"time"
)

// AppointmentStatus represents where an appointment sits in the
// hold → request → accept → pay lifecycle
type AppointmentStatus string

const (
	AppointmentStatusHold              AppointmentStatus = "HOLD"
	AppointmentStatusRequested         AppointmentStatus = "REQUESTED"
	AppointmentStatusPaymentPending    AppointmentStatus = "PAYMENT_PENDING"
	AppointmentStatusPaid              AppointmentStatus = "PAID"
	AppointmentStatusCompleted         AppointmentStatus = "COMPLETED"
	AppointmentStatusExpired           AppointmentStatus = "EXPIRED"
	AppointmentStatusCancelledByDoctor AppointmentStatus = "CANCELLED_BY_DOCTOR"
)

// ActiveStatuses are the statuses that participate in slot exclusivity.
// The partial unique index on (doctor_id, appointment_date, start_time)
// covers exactly this set.
func ActiveStatuses() []AppointmentStatus {
	return []AppointmentStatus{
		AppointmentStatusHold,
		AppointmentStatusRequested,
		AppointmentStatusPaymentPending,
		AppointmentStatusPaid,
		AppointmentStatusCompleted,
	}
}

// IsTerminal reports whether the status ends the lifecycle
func (s AppointmentStatus) IsTerminal() bool {
	switch s {
	case AppointmentStatusPaid, AppointmentStatusCompleted,
		AppointmentStatusExpired, AppointmentStatusCancelledByDoctor:
		return true
	}
	return false
}

// Appointment represents a reservation of a single doctor slot
type Appointment struct {
	ID               string            `json:"id" db:"id"`
	PatientID        string            `json:"patient_id" db:"patient_id"`
	DoctorID         string            `json:"doctor_id" db:"doctor_id"`
	Date             time.Time         `json:"appointment_date" db:"appointment_date"`
	StartTime        TimeOfDay         `json:"start_time" db:"start_time"`
	EndTime          TimeOfDay         `json:"end_time" db:"end_time"`
	Status           AppointmentStatus `json:"status" db:"status"`
	LockExpiresAt    *time.Time        `json:"lock_expires_at" db:"lock_expires_at"`
	Description      string            `json:"description" db:"description"`
	ReportURLs       []string          `json:"report_urls" db:"report_urls"`
	PaymentSessionID *string           `json:"payment_session_id" db:"payment_session_id"`
	CreatedAt        time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at" db:"updated_at"`
}

// LeaseExpired reports whether the appointment's lease has lapsed at
// the given instant. Appointments without a lease never expire here.
func (a *Appointment) LeaseExpired(now time.Time) bool {
	return a.LockExpiresAt != nil && a.LockExpiresAt.Before(now)
}

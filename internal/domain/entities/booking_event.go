package entities

import (
	"time"

	"github.com/google/uuid"
)

// BookingEventType represents the type of booking lifecycle event
type BookingEventType string

const (
	BookingEventTypeRequested        BookingEventType = "booking_requested"
	BookingEventTypeAccepted         BookingEventType = "booking_accepted"
	BookingEventTypeRejected         BookingEventType = "booking_rejected"
	BookingEventTypePaid             BookingEventType = "booking_paid"
	BookingEventTypePaymentCancelled BookingEventType = "payment_cancelled"
	BookingEventTypePaymentFailed    BookingEventType = "payment_failed"
)

// BookingEvent is emitted after a lifecycle transition commits. It is
// published post-commit only; a rolled-back transition never produces
// an event.
type BookingEvent struct {
	ID            string            `json:"id"`
	EventType     BookingEventType  `json:"event_type"`
	AppointmentID string            `json:"appointment_id"`
	PatientID     string            `json:"patient_id"`
	DoctorID      string            `json:"doctor_id"`
	Date          time.Time         `json:"appointment_date"`
	StartTime     TimeOfDay         `json:"start_time"`
	EndTime       TimeOfDay         `json:"end_time"`
	Timestamp     time.Time         `json:"timestamp"`
	Details       map[string]string `json:"details,omitempty"`
}

// NewBookingEvent creates a new booking event for an appointment
func NewBookingEvent(eventType BookingEventType, appt *Appointment, details map[string]string) *BookingEvent {
	return &BookingEvent{
		ID:            uuid.New().String(),
		EventType:     eventType,
		AppointmentID: appt.ID,
		PatientID:     appt.PatientID,
		DoctorID:      appt.DoctorID,
		Date:          appt.Date,
		StartTime:     appt.StartTime,
		EndTime:       appt.EndTime,
		Timestamp:     time.Now(),
		Details:       details,
	}
}

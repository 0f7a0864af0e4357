package services

import (
	"context"
	"fmt"

	"github.com/careloop/doctorbooking/internal/domain/entities"
	"github.com/careloop/doctorbooking/internal/domain/providers"
	"github.com/careloop/doctorbooking/internal/domain/repositories"
	"github.com/careloop/doctorbooking/internal/infrastructure/observability"
)

// NotificationService consumes booking lifecycle events from the bus
// and sends emails to the affected parties. Delivery is best-effort:
// events are emitted only after their transition committed, and a
// failed send is logged, never retried against the booking state.
type NotificationService struct {
	bus    providers.EventBus
	sender providers.NotificationSender
	users  repositories.UserRepository
}

// NewNotificationService creates a new notification service
func NewNotificationService(bus providers.EventBus, sender providers.NotificationSender, users repositories.UserRepository) *NotificationService {
	return &NotificationService{
		bus:    bus,
		sender: sender,
		users:  users,
	}
}

// Run subscribes to the booking event channel and dispatches emails
// until ctx is cancelled
func (s *NotificationService) Run(ctx context.Context) error {
	events, err := s.bus.Subscribe(ctx, providers.EventChannelBookings)
	if err != nil {
		return fmt.Errorf("failed to subscribe to booking events: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			s.dispatch(ctx, event)
		}
	}
}

func (s *NotificationService) dispatch(ctx context.Context, event *entities.BookingEvent) {
	logger := observability.ComponentLogger("notifications")

	patient, err := s.users.GetByID(ctx, event.PatientID)
	if err != nil {
		logger.Warn().Err(err).Str("event_id", event.ID).Msg("Failed to load patient for notification")
		return
	}
	doctor, err := s.users.GetByID(ctx, event.DoctorID)
	if err != nil {
		logger.Warn().Err(err).Str("event_id", event.ID).Msg("Failed to load doctor for notification")
		return
	}

	when := fmt.Sprintf("%s at %s", event.Date.Format("Monday, Jan 2 2006"), event.StartTime)

	switch event.EventType {
	case entities.BookingEventTypeRequested:
		s.send(ctx, event, doctor.Email, "New booking request",
			fmt.Sprintf("%s requested an appointment on %s. Please review and accept or reject it.", patient.FullName(), when))

	case entities.BookingEventTypeAccepted:
		body := fmt.Sprintf("Dr. %s accepted your appointment on %s. Please complete the payment to confirm your booking.", doctor.FullName(), when)
		if url := event.Details["checkout_url"]; url != "" {
			body = fmt.Sprintf("%s\n\nPay here: %s", body, url)
		}
		s.send(ctx, event, patient.Email, "Appointment accepted - payment required", body)

	case entities.BookingEventTypeRejected:
		s.send(ctx, event, patient.Email, "Appointment request declined",
			fmt.Sprintf("Dr. %s is unable to take your appointment on %s. Please choose another slot.", doctor.FullName(), when))

	case entities.BookingEventTypePaid:
		s.send(ctx, event, patient.Email, "Appointment confirmed",
			fmt.Sprintf("Your appointment with Dr. %s on %s is confirmed.", doctor.FullName(), when))
		s.send(ctx, event, doctor.Email, "Appointment confirmed",
			fmt.Sprintf("Your appointment with %s on %s is confirmed and paid.", patient.FullName(), when))

	case entities.BookingEventTypePaymentCancelled:
		s.send(ctx, event, patient.Email, "Booking cancelled",
			fmt.Sprintf("Your booking with Dr. %s on %s was cancelled.", doctor.FullName(), when))

	case entities.BookingEventTypePaymentFailed:
		s.send(ctx, event, patient.Email, "Payment not completed",
			fmt.Sprintf("The payment for your appointment on %s was not completed and the booking has lapsed. Please book again.", when))

	default:
		logger.Debug().Str("event_type", string(event.EventType)).Msg("Ignoring unhandled booking event")
	}
}

func (s *NotificationService) send(ctx context.Context, event *entities.BookingEvent, to, subject, body string) {
	if err := s.sender.Send(ctx, to, subject, body); err != nil {
		observability.ComponentLogger("notifications").Warn().Err(err).
			Str("event_id", event.ID).
			Str("recipient", to).
			Msg("Failed to send notification email")
	}
}

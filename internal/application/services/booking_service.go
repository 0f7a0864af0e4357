package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/careloop/doctorbooking/internal/domain/entities"
	"github.com/careloop/doctorbooking/internal/domain/providers"
	"github.com/careloop/doctorbooking/internal/domain/repositories"
	"github.com/careloop/doctorbooking/internal/infrastructure/observability"
	"github.com/careloop/doctorbooking/internal/scheduling"
	"github.com/careloop/doctorbooking/pkg/config"
	apperrors "github.com/careloop/doctorbooking/pkg/errors"
)

// BookingService drives the reservation state machine:
//
//	HOLD -> REQUESTED -> PAYMENT_PENDING -> PAID -> COMPLETED
//
// with escapes to EXPIRED and CANCELLED_BY_DOCTOR. Each lease-bearing
// state carries its own deadline, evaluated lazily on the next touch.
// All coordination goes through the store; the service holds no
// in-process reservation state.
type BookingService struct {
	appointments repositories.AppointmentRepository
	payments     repositories.PaymentRepository
	users        repositories.UserRepository
	availability *AvailabilityService
	provider     providers.PaymentProvider
	attachments  providers.AttachmentStore
	bus          providers.EventBus
	cfg          *config.BookingConfig
	currency     string
	frontendURL  string
	metrics      *observability.Metrics
	now          func() time.Time
}

// NewBookingService creates a new booking service
func NewBookingService(
	appointments repositories.AppointmentRepository,
	payments repositories.PaymentRepository,
	users repositories.UserRepository,
	availability *AvailabilityService,
	provider providers.PaymentProvider,
	attachments providers.AttachmentStore,
	bus providers.EventBus,
	cfg *config.BookingConfig,
	currency string,
	frontendURL string,
	metrics *observability.Metrics,
) *BookingService {
	return &BookingService{
		appointments: appointments,
		payments:     payments,
		users:        users,
		availability: availability,
		provider:     provider,
		attachments:  attachments,
		bus:          bus,
		cfg:          cfg,
		currency:     currency,
		frontendURL:  frontendURL,
		metrics:      metrics,
		now:          time.Now,
	}
}

// PlaceHold reserves a slot exclusively for the patient for a short
// window. Two concurrent holds on the same slot are serialized by the
// store's unique index on active reservations; exactly one succeeds.
func (s *BookingService) PlaceHold(ctx context.Context, principal entities.Principal, doctorID string, date time.Time, start, end entities.TimeOfDay) (*entities.Appointment, error) {
	if principal.Role != entities.RolePatient {
		return nil, apperrors.NewUnauthorizedError("only patients can place holds")
	}

	date = normalizeDate(date)
	now := s.now().UTC()
	if date.Before(normalizeDate(now)) {
		return nil, apperrors.NewValidationError("cannot book a slot in the past")
	}

	availability, err := s.availability.Resolve(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	if !availability.IsActive {
		return nil, apperrors.NewValidationError("doctor is not available on this date")
	}

	slots := scheduling.GenerateSlots(
		availability.StartTime,
		availability.EndTime,
		time.Duration(availability.SlotDuration)*time.Minute,
		availability.BreakStart,
		availability.BreakEnd,
	)
	if !scheduling.ContainsSlot(slots, start, end) {
		return nil, apperrors.NewValidationError("requested slot is not within the doctor's working hours")
	}

	existing, err := s.appointments.FindActiveForSlot(ctx, doctorID, date, start)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		switch {
		case existing.Status == entities.AppointmentStatusPaid || existing.Status == entities.AppointmentStatusCompleted:
			s.countConflict(ctx)
			return nil, apperrors.NewConflictError("slot already booked")
		case !existing.LeaseExpired(now):
			s.countConflict(ctx)
			return nil, apperrors.NewConflictError("slot temporarily held by another user")
		default:
			// Stale occupant. Flip it to its terminal state so the
			// partial unique index admits the new hold; losing this
			// race to another request is an ordinary conflict.
			if err := s.expire(ctx, existing); err != nil {
				if apperrors.IsType(err, apperrors.ErrorTypeConflict) {
					s.countConflict(ctx)
					return nil, apperrors.NewConflictError("slot temporarily held by another user")
				}
				return nil, err
			}
		}
	}

	expiry := now.Add(s.cfg.HoldTTL)
	appointment := &entities.Appointment{
		ID:            uuid.New().String(),
		PatientID:     principal.ID,
		DoctorID:      doctorID,
		Date:          date,
		StartTime:     start,
		EndTime:       end,
		Status:        entities.AppointmentStatusHold,
		LockExpiresAt: &expiry,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.appointments.CreateHold(ctx, appointment); err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeConflict) {
			s.countConflict(ctx)
		}
		return nil, err
	}

	if s.metrics != nil && s.metrics.HoldsPlaced != nil {
		s.metrics.HoldsPlaced.Add(ctx, 1)
	}
	return appointment, nil
}

// SubmitRequest converts a live hold into a booking request for the
// doctor to review. Attachments are uploaded before any state change;
// an upload failure leaves the hold untouched.
func (s *BookingService) SubmitRequest(ctx context.Context, principal entities.Principal, appointmentID, description string, attachments []providers.Attachment) (*entities.Appointment, error) {
	appointment, err := s.ownedByPatient(ctx, principal, appointmentID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if appointment.Status != entities.AppointmentStatusHold {
		return nil, apperrors.NewConflictError("booking request already submitted")
	}
	if appointment.LeaseExpired(now) {
		if err := s.expire(ctx, appointment); err != nil && !apperrors.IsType(err, apperrors.ErrorTypeConflict) {
			return nil, err
		}
		return nil, apperrors.NewExpiredError("hold has expired, please pick a slot again")
	}

	reportURLs := make([]string, 0, len(attachments))
	for _, attachment := range attachments {
		url, err := s.attachments.Store(ctx, appointment.ID, attachment)
		if err != nil {
			return nil, err
		}
		reportURLs = append(reportURLs, url)
	}

	expiry := now.Add(s.cfg.RequestTTL)
	update := repositories.AppointmentUpdate{
		Status:        entities.AppointmentStatusRequested,
		LockExpiresAt: &expiry,
		Description:   &description,
		ReportURLs:    reportURLs,
	}
	if err := s.appointments.Transition(ctx, appointment.ID, entities.AppointmentStatusHold, update); err != nil {
		return nil, err
	}

	appointment.Status = entities.AppointmentStatusRequested
	appointment.LockExpiresAt = &expiry
	appointment.Description = description
	appointment.ReportURLs = reportURLs
	appointment.UpdatedAt = now

	s.publish(ctx, entities.BookingEventTypeRequested, appointment, nil)
	return appointment, nil
}

// Accept moves a live booking request to PAYMENT_PENDING. The checkout
// session is created before the transition; a provider failure leaves
// the request untouched. The conditional update is the backstop
// against two concurrent acceptances.
func (s *BookingService) Accept(ctx context.Context, principal entities.Principal, appointmentID string) (*entities.Appointment, error) {
	appointment, err := s.ownedByDoctor(ctx, principal, appointmentID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if appointment.Status == entities.AppointmentStatusPaymentPending {
		return nil, apperrors.NewConflictError("payment already initiated for this appointment")
	}
	if appointment.Status != entities.AppointmentStatusRequested {
		return nil, apperrors.NewConflictError("appointment is not awaiting acceptance")
	}
	if appointment.LeaseExpired(now) {
		if err := s.expire(ctx, appointment); err != nil && !apperrors.IsType(err, apperrors.ErrorTypeConflict) {
			return nil, err
		}
		return nil, apperrors.NewExpiredError("booking request has expired")
	}

	profile, err := s.users.GetDoctorProfile(ctx, appointment.DoctorID)
	if err != nil {
		return nil, err
	}
	if profile.ConsultationFee <= 0 {
		return nil, apperrors.NewValidationError("consultation fee is not configured")
	}

	patient, err := s.users.GetByID(ctx, appointment.PatientID)
	if err != nil {
		return nil, err
	}

	amount := int64(math.Round(profile.ConsultationFee * 100))
	session, err := s.provider.CreateCheckoutSession(ctx, providers.CheckoutRequest{
		Amount:        amount,
		Currency:      s.currency,
		CustomerEmail: patient.Email,
		Description:   fmt.Sprintf("Consultation on %s at %s", appointment.Date.Format("2006-01-02"), appointment.StartTime),
		AppointmentID: appointment.ID,
		SuccessURL:    fmt.Sprintf("%s/payments/%s/success", s.frontendURL, appointment.ID),
		CancelURL:     fmt.Sprintf("%s/payments/%s/cancel", s.frontendURL, appointment.ID),
	})
	if err != nil {
		return nil, err
	}

	payment := &entities.Payment{
		ID:                uuid.New().String(),
		AppointmentID:     appointment.ID,
		ProviderSessionID: session.SessionID,
		Amount:            amount,
		Currency:          s.currency,
		Status:            entities.PaymentStatusRequiresMethod,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	expiry := now.Add(s.cfg.PaymentTTL)
	update := repositories.AppointmentUpdate{
		Status:           entities.AppointmentStatusPaymentPending,
		LockExpiresAt:    &expiry,
		PaymentSessionID: &session.SessionID,
	}
	if err := s.appointments.AcceptWithPayment(ctx, appointment.ID, update, payment); err != nil {
		return nil, err
	}

	appointment.Status = entities.AppointmentStatusPaymentPending
	appointment.LockExpiresAt = &expiry
	appointment.PaymentSessionID = &session.SessionID
	appointment.UpdatedAt = now

	s.publish(ctx, entities.BookingEventTypeAccepted, appointment, map[string]string{
		"checkout_url": session.CheckoutURL,
	})
	return appointment, nil
}

// Reject cancels a pending hold or booking request
func (s *BookingService) Reject(ctx context.Context, principal entities.Principal, appointmentID string) (*entities.Appointment, error) {
	appointment, err := s.ownedByDoctor(ctx, principal, appointmentID)
	if err != nil {
		return nil, err
	}

	if appointment.Status != entities.AppointmentStatusRequested && appointment.Status != entities.AppointmentStatusHold {
		return nil, apperrors.NewConflictError("appointment can no longer be rejected")
	}

	update := repositories.AppointmentUpdate{
		Status:    entities.AppointmentStatusCancelledByDoctor,
		ClearLock: true,
	}
	if err := s.appointments.Transition(ctx, appointment.ID, appointment.Status, update); err != nil {
		return nil, err
	}

	appointment.Status = entities.AppointmentStatusCancelledByDoctor
	appointment.LockExpiresAt = nil

	s.publish(ctx, entities.BookingEventTypeRejected, appointment, nil)
	return appointment, nil
}

// ConfirmPayment checks the provider's verdict on the checkout session
// and settles the appointment and payment together. The provider
// decides paid or not; the store transition is the source of truth.
func (s *BookingService) ConfirmPayment(ctx context.Context, principal entities.Principal, appointmentID string) (*entities.Appointment, error) {
	appointment, err := s.ownedByPatient(ctx, principal, appointmentID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if appointment.Status == entities.AppointmentStatusPaid {
		return nil, apperrors.NewConflictError("payment already completed")
	}
	if appointment.Status != entities.AppointmentStatusPaymentPending || appointment.PaymentSessionID == nil {
		return nil, apperrors.NewConflictError("no payment in progress for this appointment")
	}
	sessionID := *appointment.PaymentSessionID

	if appointment.LeaseExpired(now) {
		if err := s.appointments.SettlePayment(ctx, appointment.ID, sessionID,
			entities.AppointmentStatusExpired, entities.PaymentStatusFailed, nil); err != nil && !apperrors.IsType(err, apperrors.ErrorTypeConflict) {
			return nil, err
		}
		s.countExpired(ctx, 1)
		return nil, apperrors.NewExpiredError("payment window has expired")
	}

	status, err := s.provider.RetrieveSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if !status.Paid {
		if err := s.appointments.SettlePayment(ctx, appointment.ID, sessionID,
			entities.AppointmentStatusExpired, entities.PaymentStatusFailed, nil); err != nil && !apperrors.IsType(err, apperrors.ErrorTypeConflict) {
			return nil, err
		}
		appointment.Status = entities.AppointmentStatusExpired
		s.publish(ctx, entities.BookingEventTypePaymentFailed, appointment, nil)
		return nil, apperrors.NewExpiredError("payment was not completed")
	}

	var methodType *string
	if status.MethodType != "" {
		methodType = &status.MethodType
	}
	if err := s.appointments.SettlePayment(ctx, appointment.ID, sessionID,
		entities.AppointmentStatusPaid, entities.PaymentStatusSucceeded, methodType); err != nil {
		return nil, err
	}

	appointment.Status = entities.AppointmentStatusPaid
	appointment.LockExpiresAt = nil
	appointment.UpdatedAt = now

	s.publish(ctx, entities.BookingEventTypePaid, appointment, nil)
	return appointment, nil
}

// CancelPayment lets the patient abandon a booking before paying
func (s *BookingService) CancelPayment(ctx context.Context, principal entities.Principal, appointmentID string) error {
	appointment, err := s.ownedByPatient(ctx, principal, appointmentID)
	if err != nil {
		return err
	}

	switch appointment.Status {
	case entities.AppointmentStatusPaid, entities.AppointmentStatusCompleted:
		return apperrors.NewValidationError("appointment is already paid")
	case entities.AppointmentStatusExpired, entities.AppointmentStatusCancelledByDoctor:
		return nil
	case entities.AppointmentStatusPaymentPending:
		if appointment.PaymentSessionID != nil {
			if err := s.appointments.SettlePayment(ctx, appointment.ID, *appointment.PaymentSessionID,
				entities.AppointmentStatusExpired, entities.PaymentStatusFailed, nil); err != nil {
				return err
			}
			break
		}
		fallthrough
	default:
		update := repositories.AppointmentUpdate{
			Status:    entities.AppointmentStatusExpired,
			ClearLock: true,
		}
		if err := s.appointments.Transition(ctx, appointment.ID, appointment.Status, update); err != nil {
			return err
		}
	}

	appointment.Status = entities.AppointmentStatusExpired
	s.publish(ctx, entities.BookingEventTypePaymentCancelled, appointment, nil)
	return nil
}

// PaymentInfo returns the payment record for an appointment, expiring
// a lapsed lease first
func (s *BookingService) PaymentInfo(ctx context.Context, principal entities.Principal, appointmentID string) (*entities.Payment, error) {
	appointment, err := s.appointments.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appointment.PatientID != principal.ID && appointment.DoctorID != principal.ID {
		return nil, apperrors.NewUnauthorizedError("appointment belongs to another user")
	}

	s.lazyExpire(ctx, appointment)
	return s.payments.GetByAppointment(ctx, appointmentID)
}

// PaymentLink returns the hosted checkout URL for a pending payment
func (s *BookingService) PaymentLink(ctx context.Context, principal entities.Principal, appointmentID string) (string, error) {
	appointment, err := s.ownedByPatient(ctx, principal, appointmentID)
	if err != nil {
		return "", err
	}

	if s.lazyExpire(ctx, appointment) {
		return "", apperrors.NewExpiredError("payment window has expired")
	}
	if appointment.Status != entities.AppointmentStatusPaymentPending || appointment.PaymentSessionID == nil {
		return "", apperrors.NewConflictError("no payment in progress for this appointment")
	}

	status, err := s.provider.RetrieveSession(ctx, *appointment.PaymentSessionID)
	if err != nil {
		return "", err
	}
	return status.CheckoutURL, nil
}

// PendingPayments lists the patient's appointments awaiting payment,
// expiring lapsed ones along the way
func (s *BookingService) PendingPayments(ctx context.Context, principal entities.Principal) ([]*entities.Appointment, error) {
	if principal.Role != entities.RolePatient {
		return nil, apperrors.NewUnauthorizedError("only patients can list pending payments")
	}

	appointments, err := s.appointments.ListByPatient(ctx, principal.ID, repositories.AppointmentFilter{
		Statuses: []entities.AppointmentStatus{entities.AppointmentStatusPaymentPending},
	})
	if err != nil {
		return nil, err
	}
	return s.dropExpired(ctx, appointments), nil
}

// UpcomingAppointments lists the patient's active appointments from
// today onward
func (s *BookingService) UpcomingAppointments(ctx context.Context, principal entities.Principal) ([]*entities.Appointment, error) {
	if principal.Role != entities.RolePatient {
		return nil, apperrors.NewUnauthorizedError("only patients can list their appointments")
	}

	today := normalizeDate(s.now().UTC())
	appointments, err := s.appointments.ListByPatient(ctx, principal.ID, repositories.AppointmentFilter{
		Statuses: entities.ActiveStatuses(),
		FromDate: &today,
	})
	if err != nil {
		return nil, err
	}
	return s.dropExpired(ctx, appointments), nil
}

// DoctorDaySlots projects the slot states a patient sees for a
// doctor's date: available, held (with expiry), or booked
func (s *BookingService) DoctorDaySlots(ctx context.Context, doctorID string, date time.Time) ([]entities.SlotView, error) {
	availability, err := s.availability.Resolve(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	if !availability.IsActive {
		return []entities.SlotView{}, nil
	}

	slots := scheduling.GenerateSlots(
		availability.StartTime,
		availability.EndTime,
		time.Duration(availability.SlotDuration)*time.Minute,
		availability.BreakStart,
		availability.BreakEnd,
	)

	reservations, err := s.appointments.ListActiveForDate(ctx, doctorID, normalizeDate(date))
	if err != nil {
		return nil, err
	}

	return scheduling.ProjectSlots(slots, reservations, s.now().UTC()), nil
}

// DoctorRangeSlots projects slot states for each day of a range
// starting today. Sundays and inactive days come back empty.
func (s *BookingService) DoctorRangeSlots(ctx context.Context, doctorID string, days int) (map[string][]entities.SlotView, error) {
	if days < 1 {
		days = 1
	}
	if days > s.cfg.HorizonDays {
		days = s.cfg.HorizonDays
	}

	result := make(map[string][]entities.SlotView, days)
	today := normalizeDate(s.now().UTC())
	for i := 0; i < days; i++ {
		date := today.AddDate(0, 0, i)
		key := date.Format("2006-01-02")

		views, err := s.DoctorDaySlots(ctx, doctorID, date)
		if err != nil {
			if apperrors.IsType(err, apperrors.ErrorTypeValidation) {
				result[key] = []entities.SlotView{}
				continue
			}
			return nil, err
		}
		result[key] = views
	}
	return result, nil
}

// expire flips a stale appointment to its terminal state. The
// acceptance stage cancels rather than expires.
func (s *BookingService) expire(ctx context.Context, appointment *entities.Appointment) error {
	terminal := entities.AppointmentStatusExpired
	if appointment.Status == entities.AppointmentStatusRequested {
		terminal = entities.AppointmentStatusCancelledByDoctor
	}

	// A lapsed payment window also fails its payment record, in the
	// same transaction, so payment history matches appointment history.
	if appointment.Status == entities.AppointmentStatusPaymentPending && appointment.PaymentSessionID != nil {
		if err := s.appointments.SettlePayment(ctx, appointment.ID, *appointment.PaymentSessionID,
			terminal, entities.PaymentStatusFailed, nil); err != nil {
			return err
		}
	} else {
		update := repositories.AppointmentUpdate{
			Status:    terminal,
			ClearLock: true,
		}
		if err := s.appointments.Transition(ctx, appointment.ID, appointment.Status, update); err != nil {
			return err
		}
	}

	appointment.Status = terminal
	appointment.LockExpiresAt = nil
	s.countExpired(ctx, 1)
	return nil
}

// lazyExpire flips the appointment if its lease lapsed; reports
// whether it is now terminal
func (s *BookingService) lazyExpire(ctx context.Context, appointment *entities.Appointment) bool {
	if !appointment.LeaseExpired(s.now().UTC()) {
		return false
	}
	if err := s.expire(ctx, appointment); err != nil && !apperrors.IsType(err, apperrors.ErrorTypeConflict) {
		observability.GetLogger().Warn().Err(err).
			Str("appointment_id", appointment.ID).
			Msg("Failed to expire stale appointment")
		return false
	}
	return true
}

func (s *BookingService) dropExpired(ctx context.Context, appointments []*entities.Appointment) []*entities.Appointment {
	live := make([]*entities.Appointment, 0, len(appointments))
	for _, appointment := range appointments {
		if s.lazyExpire(ctx, appointment) {
			continue
		}
		live = append(live, appointment)
	}
	return live
}

func (s *BookingService) ownedByPatient(ctx context.Context, principal entities.Principal, appointmentID string) (*entities.Appointment, error) {
	if principal.Role != entities.RolePatient {
		return nil, apperrors.NewUnauthorizedError("operation requires the patient role")
	}
	appointment, err := s.appointments.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appointment.PatientID != principal.ID {
		return nil, apperrors.NewUnauthorizedError("appointment belongs to another patient")
	}
	return appointment, nil
}

func (s *BookingService) ownedByDoctor(ctx context.Context, principal entities.Principal, appointmentID string) (*entities.Appointment, error) {
	if principal.Role != entities.RoleDoctor {
		return nil, apperrors.NewUnauthorizedError("operation requires the doctor role")
	}
	appointment, err := s.appointments.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appointment.DoctorID != principal.ID {
		return nil, apperrors.NewUnauthorizedError("appointment belongs to another doctor")
	}
	return appointment, nil
}

// publish emits a lifecycle event after the transition committed.
// Publication is best-effort; a bus failure never unwinds the
// transition.
func (s *BookingService) publish(ctx context.Context, eventType entities.BookingEventType, appointment *entities.Appointment, details map[string]string) {
	if s.bus == nil {
		return
	}
	event := entities.NewBookingEvent(eventType, appointment, details)
	if err := s.bus.Publish(ctx, providers.EventChannelBookings, event); err != nil {
		observability.GetLogger().Warn().Err(err).
			Str("event_type", string(eventType)).
			Str("appointment_id", appointment.ID).
			Msg("Failed to publish booking event")
	}
}

func (s *BookingService) countConflict(ctx context.Context) {
	if s.metrics != nil && s.metrics.HoldConflicts != nil {
		s.metrics.HoldConflicts.Add(ctx, 1)
	}
}

func (s *BookingService) countExpired(ctx context.Context, n int64) {
	if s.metrics != nil && s.metrics.LeasesExpired != nil {
		s.metrics.LeasesExpired.Add(ctx, n)
	}
}

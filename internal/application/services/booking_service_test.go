package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/careloop/doctorbooking/internal/domain/entities"
	"github.com/careloop/doctorbooking/internal/domain/providers"
	"github.com/careloop/doctorbooking/internal/domain/repositories"
	apperrors "github.com/careloop/doctorbooking/pkg/errors"
)

type bookingFixture struct {
	appointments *MockAppointmentRepository
	payments     *MockPaymentRepository
	users        *MockUserRepository
	availRepo    *MockAvailabilityRepository
	provider     *MockPaymentProvider
	attachments  *MockAttachmentStore
	bus          *MockEventBus
	svc          *BookingService
}

func newBookingFixture() *bookingFixture {
	f := &bookingFixture{
		appointments: new(MockAppointmentRepository),
		payments:     new(MockPaymentRepository),
		users:        new(MockUserRepository),
		availRepo:    new(MockAvailabilityRepository),
		provider:     new(MockPaymentProvider),
		attachments:  new(MockAttachmentStore),
		bus:          new(MockEventBus),
	}

	availability := newAvailabilityService(f.availRepo)
	f.svc = NewBookingService(
		f.appointments, f.payments, f.users, availability,
		f.provider, f.attachments, f.bus,
		bookingConfig(), "inr", "http://localhost:3000", nil,
	)
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

func (f *bookingFixture) expectAvailability(doctorID string, date time.Time) {
	f.availRepo.On("GetByDoctorDate", mock.Anything, doctorID, date).
		Return(storedAvailability(doctorID, date), nil)
}

func (f *bookingFixture) expectPublish() {
	f.bus.On("Publish", mock.Anything, providers.EventChannelBookings, mock.Anything).Return(nil)
}

var (
	patient = entities.Principal{ID: "patient-1", Role: entities.RolePatient}
	doctor  = entities.Principal{ID: "doctor-1", Role: entities.RoleDoctor}
)

func futureTime(d time.Duration) *time.Time {
	t := fixedNow.Add(d)
	return &t
}

func heldAppointment(status entities.AppointmentStatus, lease *time.Time) *entities.Appointment {
	return &entities.Appointment{
		ID:            "appt-1",
		PatientID:     "patient-1",
		DoctorID:      "doctor-1",
		Date:          time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC),
		StartTime:     entities.NewTimeOfDay(10, 0),
		EndTime:       entities.NewTimeOfDay(10, 20),
		Status:        status,
		LockExpiresAt: lease,
	}
}

func TestPlaceHold(t *testing.T) {
	date := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)
	start := entities.NewTimeOfDay(10, 0)
	end := entities.NewTimeOfDay(10, 20)

	t.Run("places a hold on a free slot", func(t *testing.T) {
		f := newBookingFixture()
		f.expectAvailability("doctor-1", date)
		f.appointments.On("FindActiveForSlot", mock.Anything, "doctor-1", date, start).Return(nil, nil)
		f.appointments.On("CreateHold", mock.Anything, mock.MatchedBy(func(a *entities.Appointment) bool {
			return a.Status == entities.AppointmentStatusHold &&
				a.PatientID == "patient-1" &&
				a.LockExpiresAt != nil &&
				a.LockExpiresAt.Equal(fixedNow.Add(10*time.Minute))
		})).Return(nil)

		appointment, err := f.svc.PlaceHold(context.Background(), patient, "doctor-1", date, start, end)
		require.NoError(t, err)
		assert.Equal(t, entities.AppointmentStatusHold, appointment.Status)
		f.appointments.AssertExpectations(t)
	})

	t.Run("doctors cannot place holds", func(t *testing.T) {
		f := newBookingFixture()

		_, err := f.svc.PlaceHold(context.Background(), doctor, "doctor-1", date, start, end)
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnauthorized))
	})

	t.Run("rejects past dates", func(t *testing.T) {
		f := newBookingFixture()

		_, err := f.svc.PlaceHold(context.Background(), patient, "doctor-1", date.AddDate(0, 0, -1), start, end)
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	})

	t.Run("rejects a slot not in the generated set", func(t *testing.T) {
		f := newBookingFixture()
		f.expectAvailability("doctor-1", date)

		_, err := f.svc.PlaceHold(context.Background(), patient, "doctor-1", date,
			entities.NewTimeOfDay(10, 5), entities.NewTimeOfDay(10, 25))
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	})

	t.Run("rejects a slot inside the break", func(t *testing.T) {
		f := newBookingFixture()
		f.expectAvailability("doctor-1", date)

		_, err := f.svc.PlaceHold(context.Background(), patient, "doctor-1", date,
			entities.NewTimeOfDay(13, 0), entities.NewTimeOfDay(13, 20))
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	})

	t.Run("paid slot is a permanent conflict", func(t *testing.T) {
		f := newBookingFixture()
		f.expectAvailability("doctor-1", date)
		f.appointments.On("FindActiveForSlot", mock.Anything, "doctor-1", date, start).
			Return(heldAppointment(entities.AppointmentStatusPaid, nil), nil)

		_, err := f.svc.PlaceHold(context.Background(), patient, "doctor-1", date, start, end)
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
		assert.True(t, strings.Contains(err.Error(), "already booked"))
	})

	t.Run("live hold is a recoverable conflict", func(t *testing.T) {
		f := newBookingFixture()
		f.expectAvailability("doctor-1", date)
		f.appointments.On("FindActiveForSlot", mock.Anything, "doctor-1", date, start).
			Return(heldAppointment(entities.AppointmentStatusHold, futureTime(5*time.Minute)), nil)

		_, err := f.svc.PlaceHold(context.Background(), patient, "doctor-1", date, start, end)
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
		assert.True(t, strings.Contains(err.Error(), "temporarily held"))
		f.appointments.AssertNotCalled(t, "CreateHold", mock.Anything, mock.Anything)
	})

	t.Run("stale hold is expired and replaced", func(t *testing.T) {
		f := newBookingFixture()
		f.expectAvailability("doctor-1", date)
		stale := heldAppointment(entities.AppointmentStatusHold, futureTime(-time.Minute))

		f.appointments.On("FindActiveForSlot", mock.Anything, "doctor-1", date, start).Return(stale, nil)
		f.appointments.On("Transition", mock.Anything, stale.ID, entities.AppointmentStatusHold,
			mock.MatchedBy(func(u repositories.AppointmentUpdate) bool {
				return u.Status == entities.AppointmentStatusExpired && u.ClearLock
			})).Return(nil)
		f.appointments.On("CreateHold", mock.Anything, mock.Anything).Return(nil)

		_, err := f.svc.PlaceHold(context.Background(), patient, "doctor-1", date, start, end)
		require.NoError(t, err)
		f.appointments.AssertExpectations(t)
	})

	t.Run("stale booking request cancels rather than expires", func(t *testing.T) {
		f := newBookingFixture()
		f.expectAvailability("doctor-1", date)
		stale := heldAppointment(entities.AppointmentStatusRequested, futureTime(-time.Minute))

		f.appointments.On("FindActiveForSlot", mock.Anything, "doctor-1", date, start).Return(stale, nil)
		f.appointments.On("Transition", mock.Anything, stale.ID, entities.AppointmentStatusRequested,
			mock.MatchedBy(func(u repositories.AppointmentUpdate) bool {
				return u.Status == entities.AppointmentStatusCancelledByDoctor
			})).Return(nil)
		f.appointments.On("CreateHold", mock.Anything, mock.Anything).Return(nil)

		_, err := f.svc.PlaceHold(context.Background(), patient, "doctor-1", date, start, end)
		require.NoError(t, err)
	})

	t.Run("losing the insert race surfaces the store conflict", func(t *testing.T) {
		f := newBookingFixture()
		f.expectAvailability("doctor-1", date)
		f.appointments.On("FindActiveForSlot", mock.Anything, "doctor-1", date, start).Return(nil, nil)
		f.appointments.On("CreateHold", mock.Anything, mock.Anything).
			Return(apperrors.NewConflictError("slot already held or booked"))

		_, err := f.svc.PlaceHold(context.Background(), patient, "doctor-1", date, start, end)
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
	})
}

func TestSubmitRequest(t *testing.T) {
	t.Run("converts a live hold into a request", func(t *testing.T) {
		f := newBookingFixture()
		hold := heldAppointment(entities.AppointmentStatusHold, futureTime(5*time.Minute))

		f.appointments.On("GetByID", mock.Anything, "appt-1").Return(hold, nil)
		f.attachments.On("Store", mock.Anything, "appt-1", mock.Anything).Return("https://cdn.example.com/r1.pdf", nil)
		f.appointments.On("Transition", mock.Anything, "appt-1", entities.AppointmentStatusHold,
			mock.MatchedBy(func(u repositories.AppointmentUpdate) bool {
				return u.Status == entities.AppointmentStatusRequested &&
					u.LockExpiresAt != nil &&
					u.LockExpiresAt.Equal(fixedNow.Add(12*time.Hour)) &&
					len(u.ReportURLs) == 1
			})).Return(nil)
		f.expectPublish()

		got, err := f.svc.SubmitRequest(context.Background(), patient, "appt-1", "knee pain",
			[]providers.Attachment{{FileName: "r1.pdf", Reader: strings.NewReader("data")}})
		require.NoError(t, err)
		assert.Equal(t, entities.AppointmentStatusRequested, got.Status)
		assert.Equal(t, []string{"https://cdn.example.com/r1.pdf"}, got.ReportURLs)
		f.appointments.AssertExpectations(t)
	})

	t.Run("expired hold flips to EXPIRED and reports it", func(t *testing.T) {
		f := newBookingFixture()
		hold := heldAppointment(entities.AppointmentStatusHold, futureTime(-time.Minute))

		f.appointments.On("GetByID", mock.Anything, "appt-1").Return(hold, nil)
		f.appointments.On("Transition", mock.Anything, "appt-1", entities.AppointmentStatusHold,
			mock.MatchedBy(func(u repositories.AppointmentUpdate) bool {
				return u.Status == entities.AppointmentStatusExpired
			})).Return(nil)

		_, err := f.svc.SubmitRequest(context.Background(), patient, "appt-1", "", nil)
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExpired))
		f.attachments.AssertNotCalled(t, "Store", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("attachment failure aborts before any state change", func(t *testing.T) {
		f := newBookingFixture()
		hold := heldAppointment(entities.AppointmentStatusHold, futureTime(5*time.Minute))

		f.appointments.On("GetByID", mock.Anything, "appt-1").Return(hold, nil)
		f.attachments.On("Store", mock.Anything, "appt-1", mock.Anything).
			Return("", apperrors.NewExternalError("upload failed", nil))

		_, err := f.svc.SubmitRequest(context.Background(), patient, "appt-1", "",
			[]providers.Attachment{{FileName: "r1.pdf", Reader: strings.NewReader("data")}})
		require.Error(t, err)
		f.appointments.AssertNotCalled(t, "Transition", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("another patient's hold is inaccessible", func(t *testing.T) {
		f := newBookingFixture()
		hold := heldAppointment(entities.AppointmentStatusHold, futureTime(5*time.Minute))
		hold.PatientID = "someone-else"

		f.appointments.On("GetByID", mock.Anything, "appt-1").Return(hold, nil)

		_, err := f.svc.SubmitRequest(context.Background(), patient, "appt-1", "", nil)
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnauthorized))
	})

	t.Run("a request cannot be submitted twice", func(t *testing.T) {
		f := newBookingFixture()
		requested := heldAppointment(entities.AppointmentStatusRequested, futureTime(time.Hour))

		f.appointments.On("GetByID", mock.Anything, "appt-1").Return(requested, nil)

		_, err := f.svc.SubmitRequest(context.Background(), patient, "appt-1", "", nil)
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
	})
}

func TestAccept(t *testing.T) {
	expectUsers := func(f *bookingFixture, fee float64) {
		f.users.On("GetDoctorProfile", mock.Anything, "doctor-1").
			Return(&entities.DoctorProfile{UserID: "doctor-1", ConsultationFee: fee}, nil)
		f.users.On("GetByID", mock.Anything, "patient-1").
			Return(&entities.User{ID: "patient-1", Email: "pat@example.com", FirstName: "Pat", LastName: "Kumar"}, nil)
	}

	t.Run("moves a live request to payment pending", func(t *testing.T) {
		f := newBookingFixture()
		requested := heldAppointment(entities.AppointmentStatusRequested, futureTime(time.Hour))

		f.appointments.On("GetByID", mock.Anything, "appt-1").Return(requested, nil)
		expectUsers(f, 500)
		f.provider.On("CreateCheckoutSession", mock.Anything, mock.MatchedBy(func(req providers.CheckoutRequest) bool {
			return req.Amount == 50000 && req.Currency == "inr" && req.AppointmentID == "appt-1"
		})).Return(&providers.CheckoutSession{SessionID: "cs_123", CheckoutURL: "https://pay.example.com/cs_123"}, nil)
		f.appointments.On("AcceptWithPayment", mock.Anything, "appt-1",
			mock.MatchedBy(func(u repositories.AppointmentUpdate) bool {
				return u.Status == entities.AppointmentStatusPaymentPending &&
					u.LockExpiresAt != nil &&
					u.LockExpiresAt.Equal(fixedNow.Add(15*time.Minute)) &&
					u.PaymentSessionID != nil && *u.PaymentSessionID == "cs_123"
			}),
			mock.MatchedBy(func(p *entities.Payment) bool {
				return p.Amount == 50000 && p.Status == entities.PaymentStatusRequiresMethod
			})).Return(nil)
		f.expectPublish()

		got, err := f.svc.Accept(context.Background(), doctor, "appt-1")
		require.NoError(t, err)
		assert.Equal(t, entities.AppointmentStatusPaymentPending, got.Status)
		f.appointments.AssertExpectations(t)
	})

	t.Run("expired request cancels on the doctor's behalf", func(t *testing.T) {
		f := newBookingFixture()
		requested := heldAppointment(entities.AppointmentStatusRequested, futureTime(-time.Minute))

		f.appointments.On("GetByID", mock.Anything, "appt-1").Return(requested, nil)
		f.appointments.On("Transition", mock.Anything, "appt-1", entities.AppointmentStatusRequested,
			mock.MatchedBy(func(u repositories.AppointmentUpdate) bool {
				return u.Status == entities.AppointmentStatusCancelledByDoctor
			})).Return(nil)

		_, err := f.svc.Accept(context.Background(), doctor, "appt-1")
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExpired))
		f.provider.AssertNotCalled(t, "CreateCheckoutSession", mock.Anything, mock.Anything)
	})

	t.Run("second acceptance is a conflict", func(t *testing.T) {
		f := newBookingFixture()
		pending := heldAppointment(entities.AppointmentStatusPaymentPending, futureTime(10*time.Minute))

		f.appointments.On("GetByID", mock.Anything, "appt-1").Return(pending, nil)

		_, err := f.svc.Accept(context.Background(), doctor, "appt-1")
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
		assert.True(t, strings.Contains(err.Error(), "already initiated"))
	})

	t.Run("missing consultation fee blocks acceptance", func(t *testing.T) {
		f := newBookingFixture()
		requested := heldAppointment(entities.AppointmentStatusRequested, futureTime(time.Hour))

		f.appointments.On("GetByID", mock.Anything, "appt-1").Return(requested, nil)
		f.users.On("GetDoctorProfile", mock.Anything, "doctor-1").
			Return(&entities.DoctorProfile{UserID: "doctor-1", ConsultationFee: 0}, nil)

		_, err := f.svc.Accept(context.Background(), doctor, "appt-1")
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
		f.provider.AssertNotCalled(t, "CreateCheckoutSession", mock.Anything, mock.Anything)
	})

	t.Run("provider failure leaves the request untouched", func(t *testing.T) {
		f := newBookingFixture()
		requested := heldAppointment(entities.AppointmentStatusRequested, futureTime(time.Hour))

		f.appointments.On("GetByID", mock.Anything, "appt-1").Return(requested, nil)
		expectUsers(f, 500)
		f.provider.On("CreateCheckoutSession", mock.Anything, mock.Anything).
			Return(nil, apperrors.NewExternalError("stripe unreachable", nil))

		_, err := f.svc.Accept(context.Background(), doctor, "appt-1")
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
		f.appointments.AssertNotCalled(t, "AcceptWithPayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("patients cannot accept", func(t *testing.T) {
		f := newBookingFixture()

		_, err := f.svc.Accept(context.Background(), patient, "appt-1")
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnauthorized))
	})
}

func TestReject(t *testing.T) {
	t.Run("cancels a pending request", func(t *testing.T) {
		f := newBookingFixture()
		requested := heldAppointment(entities.AppointmentStatusRequested, futureTime(time.Hour))

		f.appointments.On("GetByID", mock.Anything, "appt-1").Return(requested, nil)
		f.appointments.On("Transition", mock.Anything, "appt-1", entities.AppointmentStatusRequested,
			mock.MatchedBy(func(u repositories.AppointmentUpdate) bool {
				return u.Status == entities.AppointmentStatusCancelledByDoctor && u.ClearLock
			})).Return(nil)
		f.expectPublish()

		got, err := f.svc.Reject(context.Background(), doctor, "appt-1")
		require.NoError(t, err)
		assert.Equal(t, entities.AppointmentStatusCancelledByDoctor, got.Status)
	})

	t.Run("a paid appointment cannot be rejected", func(t *testing.T) {
		f := newBookingFixture()
		paid := heldAppointment(entities.AppointmentStatusPaid, nil)

		f.appointments.On("GetByID", mock.Anything, "appt-1").Return(paid, nil)

		_, err := f.svc.Reject(context.Background(), doctor, "appt-1")
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
	})
}

func TestConfirmPayment(t *testing.T) {
	sessionID := "cs_123"

	pendingAppointment := func(lease *time.Time) *entities.Appointment {
		appointment := heldAppointment(entities.AppointmentStatusPaymentPending, lease)
		appointment.PaymentSessionID = &sessionID
		return appointment
	}

	t.Run("paid session settles PAID and SUCCEEDED together", func(t *testing.T) {
		f := newBookingFixture()

		f.appointments.On("GetByID", mock.Anything, "appt-1").Return(pendingAppointment(futureTime(10*time.Minute)), nil)
		f.provider.On("RetrieveSession", mock.Anything, sessionID).
			Return(&providers.SessionStatus{Paid: true, MethodType: "card"}, nil)
		f.appointments.On("SettlePayment", mock.Anything, "appt-1", sessionID,
			entities.AppointmentStatusPaid, entities.PaymentStatusSucceeded,
			mock.MatchedBy(func(m *string) bool { return m != nil && *m == "card" })).Return(nil)
		f.expectPublish()

		got, err := f.svc.ConfirmPayment(context.Background(), patient, "appt-1")
		require.NoError(t, err)
		assert.Equal(t, entities.AppointmentStatusPaid, got.Status)
		f.appointments.AssertExpectations(t)
	})

	t.Run("unpaid session settles EXPIRED and FAILED together", func(t *testing.T) {
		f := newBookingFixture()

		f.appointments.On("GetByID", mock.Anything, "appt-1").Return(pendingAppointment(futureTime(10*time.Minute)), nil)
		f.provider.On("RetrieveSession", mock.Anything, sessionID).
			Return(&providers.SessionStatus{Paid: false}, nil)
		f.appointments.On("SettlePayment", mock.Anything, "appt-1", sessionID,
			entities.AppointmentStatusExpired, entities.PaymentStatusFailed, (*string)(nil)).Return(nil)
		f.expectPublish()

		_, err := f.svc.ConfirmPayment(context.Background(), patient, "appt-1")
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExpired))
		f.appointments.AssertExpectations(t)
	})

	t.Run("lapsed payment window settles without consulting the provider", func(t *testing.T) {
		f := newBookingFixture()

		f.appointments.On("GetByID", mock.Anything, "appt-1").Return(pendingAppointment(futureTime(-time.Minute)), nil)
		f.appointments.On("SettlePayment", mock.Anything, "appt-1", sessionID,
			entities.AppointmentStatusExpired, entities.PaymentStatusFailed, (*string)(nil)).Return(nil)

		_, err := f.svc.ConfirmPayment(context.Background(), patient, "appt-1")
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExpired))
		f.provider.AssertNotCalled(t, "RetrieveSession", mock.Anything, mock.Anything)
	})

	t.Run("confirming twice is a conflict", func(t *testing.T) {
		f := newBookingFixture()
		paid := heldAppointment(entities.AppointmentStatusPaid, nil)

		f.appointments.On("GetByID", mock.Anything, "appt-1").Return(paid, nil)

		_, err := f.svc.ConfirmPayment(context.Background(), patient, "appt-1")
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
	})
}

func TestCancelPayment(t *testing.T) {
	t.Run("abandons a pending payment", func(t *testing.T) {
		f := newBookingFixture()
		sessionID := "cs_123"
		pending := heldAppointment(entities.AppointmentStatusPaymentPending, futureTime(10*time.Minute))
		pending.PaymentSessionID = &sessionID

		f.appointments.On("GetByID", mock.Anything, "appt-1").Return(pending, nil)
		f.appointments.On("SettlePayment", mock.Anything, "appt-1", sessionID,
			entities.AppointmentStatusExpired, entities.PaymentStatusFailed, (*string)(nil)).Return(nil)
		f.expectPublish()

		err := f.svc.CancelPayment(context.Background(), patient, "appt-1")
		assert.NoError(t, err)
	})

	t.Run("a paid appointment cannot be cancelled", func(t *testing.T) {
		f := newBookingFixture()
		paid := heldAppointment(entities.AppointmentStatusPaid, nil)

		f.appointments.On("GetByID", mock.Anything, "appt-1").Return(paid, nil)

		err := f.svc.CancelPayment(context.Background(), patient, "appt-1")
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	})
}

func TestPendingPayments(t *testing.T) {
	t.Run("drops lapsed entries and settles their payments", func(t *testing.T) {
		f := newBookingFixture()
		staleSession := "cs_stale"
		live := heldAppointment(entities.AppointmentStatusPaymentPending, futureTime(10*time.Minute))
		stale := heldAppointment(entities.AppointmentStatusPaymentPending, futureTime(-time.Minute))
		stale.ID = "appt-2"
		stale.PaymentSessionID = &staleSession

		f.appointments.On("ListByPatient", mock.Anything, "patient-1", mock.Anything).
			Return([]*entities.Appointment{live, stale}, nil)
		f.appointments.On("SettlePayment", mock.Anything, "appt-2", staleSession,
			entities.AppointmentStatusExpired, entities.PaymentStatusFailed, (*string)(nil)).Return(nil)

		got, err := f.svc.PendingPayments(context.Background(), patient)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "appt-1", got[0].ID)
		f.appointments.AssertExpectations(t)
		f.appointments.AssertNotCalled(t, "Transition", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestDoctorDaySlots(t *testing.T) {
	date := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)

	t.Run("projects holds and bookings onto the grid", func(t *testing.T) {
		f := newBookingFixture()
		f.expectAvailability("doctor-1", date)

		booked := heldAppointment(entities.AppointmentStatusPaid, nil)
		held := heldAppointment(entities.AppointmentStatusHold, futureTime(5*time.Minute))
		held.StartTime = entities.NewTimeOfDay(10, 20)
		held.EndTime = entities.NewTimeOfDay(10, 40)

		f.appointments.On("ListActiveForDate", mock.Anything, "doctor-1", date).
			Return([]*entities.Appointment{booked, held}, nil)

		views, err := f.svc.DoctorDaySlots(context.Background(), "doctor-1", date)
		require.NoError(t, err)
		require.NotEmpty(t, views)
		assert.Equal(t, entities.SlotStateBooked, views[0].State)
		assert.Equal(t, entities.SlotStateHold, views[1].State)
		require.NotNil(t, views[1].HoldExpiresAt)
		assert.Equal(t, entities.SlotStateAvailable, views[2].State)
	})

	t.Run("Sunday comes back empty in the range listing", func(t *testing.T) {
		f := newBookingFixture()
		// Monday through Sunday; every non-Sunday day resolves.
		for i := 0; i < 6; i++ {
			day := date.AddDate(0, 0, i)
			f.expectAvailability("doctor-1", day)
			f.appointments.On("ListActiveForDate", mock.Anything, "doctor-1", day).
				Return([]*entities.Appointment{}, nil)
		}

		result, err := f.svc.DoctorRangeSlots(context.Background(), "doctor-1", 7)
		require.NoError(t, err)
		require.Len(t, result, 7)
		assert.Empty(t, result["2026-09-20"])
		assert.NotEmpty(t, result["2026-09-14"])
	})
}

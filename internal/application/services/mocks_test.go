package services

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/careloop/doctorbooking/internal/domain/entities"
	"github.com/careloop/doctorbooking/internal/domain/providers"
	"github.com/careloop/doctorbooking/internal/domain/repositories"
)

type MockAppointmentRepository struct {
	mock.Mock
}

func (m *MockAppointmentRepository) CreateHold(ctx context.Context, appointment *entities.Appointment) error {
	args := m.Called(ctx, appointment)
	return args.Error(0)
}

func (m *MockAppointmentRepository) GetByID(ctx context.Context, id string) (*entities.Appointment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Appointment), args.Error(1)
}

func (m *MockAppointmentRepository) FindActiveForSlot(ctx context.Context, doctorID string, date time.Time, start entities.TimeOfDay) (*entities.Appointment, error) {
	args := m.Called(ctx, doctorID, date, start)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Appointment), args.Error(1)
}

func (m *MockAppointmentRepository) ListActiveForDate(ctx context.Context, doctorID string, date time.Time) ([]*entities.Appointment, error) {
	args := m.Called(ctx, doctorID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Appointment), args.Error(1)
}

func (m *MockAppointmentRepository) ListByPatient(ctx context.Context, patientID string, filter repositories.AppointmentFilter) ([]*entities.Appointment, error) {
	args := m.Called(ctx, patientID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Appointment), args.Error(1)
}

func (m *MockAppointmentRepository) Transition(ctx context.Context, id string, from entities.AppointmentStatus, update repositories.AppointmentUpdate) error {
	args := m.Called(ctx, id, from, update)
	return args.Error(0)
}

func (m *MockAppointmentRepository) AcceptWithPayment(ctx context.Context, id string, update repositories.AppointmentUpdate, payment *entities.Payment) error {
	args := m.Called(ctx, id, update, payment)
	return args.Error(0)
}

func (m *MockAppointmentRepository) SettlePayment(ctx context.Context, id, sessionID string, apptStatus entities.AppointmentStatus, payStatus entities.PaymentStatus, methodType *string) error {
	args := m.Called(ctx, id, sessionID, apptStatus, payStatus, methodType)
	return args.Error(0)
}

func (m *MockAppointmentRepository) ExpireStale(ctx context.Context, now time.Time, from []entities.AppointmentStatus, to entities.AppointmentStatus) (int64, error) {
	args := m.Called(ctx, now, from, to)
	return args.Get(0).(int64), args.Error(1)
}

type MockAvailabilityRepository struct {
	mock.Mock
}

func (m *MockAvailabilityRepository) GetByDoctorDate(ctx context.Context, doctorID string, date time.Time) (*entities.DoctorAvailability, error) {
	args := m.Called(ctx, doctorID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.DoctorAvailability), args.Error(1)
}

func (m *MockAvailabilityRepository) Create(ctx context.Context, availability *entities.DoctorAvailability) error {
	args := m.Called(ctx, availability)
	return args.Error(0)
}

func (m *MockAvailabilityRepository) Upsert(ctx context.Context, availability *entities.DoctorAvailability) error {
	args := m.Called(ctx, availability)
	return args.Error(0)
}

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) GetByAppointment(ctx context.Context, appointmentID string) (*entities.Payment, error) {
	args := m.Called(ctx, appointmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Payment), args.Error(1)
}

func (m *MockPaymentRepository) GetBySession(ctx context.Context, sessionID string) (*entities.Payment, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Payment), args.Error(1)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *entities.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*entities.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

func (m *MockUserRepository) GetDoctorProfile(ctx context.Context, userID string) (*entities.DoctorProfile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.DoctorProfile), args.Error(1)
}

type MockPaymentProvider struct {
	mock.Mock
}

func (m *MockPaymentProvider) CreateCheckoutSession(ctx context.Context, req providers.CheckoutRequest) (*providers.CheckoutSession, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.CheckoutSession), args.Error(1)
}

func (m *MockPaymentProvider) RetrieveSession(ctx context.Context, sessionID string) (*providers.SessionStatus, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.SessionStatus), args.Error(1)
}

type MockAttachmentStore struct {
	mock.Mock
}

func (m *MockAttachmentStore) Store(ctx context.Context, folder string, attachment providers.Attachment) (string, error) {
	args := m.Called(ctx, folder, attachment)
	return args.String(0), args.Error(1)
}

type MockEventBus struct {
	mock.Mock
}

func (m *MockEventBus) Publish(ctx context.Context, channel string, event *entities.BookingEvent) error {
	args := m.Called(ctx, channel, event)
	return args.Error(0)
}

func (m *MockEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.BookingEvent, error) {
	args := m.Called(ctx, channel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan *entities.BookingEvent), args.Error(1)
}

func (m *MockEventBus) Unsubscribe(ctx context.Context, channel string) error {
	args := m.Called(ctx, channel)
	return args.Error(0)
}

func (m *MockEventBus) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockNotificationSender struct {
	mock.Mock
}

func (m *MockNotificationSender) Send(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

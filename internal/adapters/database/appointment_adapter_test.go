package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careloop/doctorbooking/internal/domain/entities"
	"github.com/careloop/doctorbooking/internal/domain/repositories"
	"github.com/careloop/doctorbooking/internal/infrastructure/clients/postgres"
	apperrors "github.com/careloop/doctorbooking/pkg/errors"
)

func setupMockDB(t *testing.T) (repositories.AppointmentRepository, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })
	return NewAppointmentAdapter(postgres.NewClientFromDB(mockDB)), mock
}

func testHold() *entities.Appointment {
	now := time.Now().UTC()
	expiry := now.Add(10 * time.Minute)
	return &entities.Appointment{
		ID:            "appt-1",
		PatientID:     "patient-1",
		DoctorID:      "doctor-1",
		Date:          time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC),
		StartTime:     entities.NewTimeOfDay(10, 0),
		EndTime:       entities.NewTimeOfDay(10, 20),
		Status:        entities.AppointmentStatusHold,
		LockExpiresAt: &expiry,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func appointmentRows(appointment *entities.Appointment) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "patient_id", "doctor_id", "appointment_date", "start_time", "end_time",
		"status", "lock_expires_at", "description", "report_urls", "payment_session_id",
		"created_at", "updated_at",
	})
	var lockExpiresAt interface{}
	if appointment.LockExpiresAt != nil {
		lockExpiresAt = *appointment.LockExpiresAt
	}
	return rows.AddRow(
		appointment.ID, appointment.PatientID, appointment.DoctorID, appointment.Date,
		appointment.StartTime.String(), appointment.EndTime.String(),
		string(appointment.Status), lockExpiresAt, appointment.Description,
		[]byte("{}"), nil, appointment.CreatedAt, appointment.UpdatedAt,
	)
}

func TestCreateHold(t *testing.T) {
	t.Run("inserts the hold", func(t *testing.T) {
		adapter, mock := setupMockDB(t)

		mock.ExpectExec(`INSERT INTO "appointments"`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := adapter.CreateHold(context.Background(), testHold())
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation surfaces as conflict", func(t *testing.T) {
		adapter, mock := setupMockDB(t)

		mock.ExpectExec(`INSERT INTO "appointments"`).
			WillReturnError(&pq.Error{Code: pgUniqueViolation})

		err := adapter.CreateHold(context.Background(), testHold())
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
	})
}

func TestGetByID(t *testing.T) {
	t.Run("returns the appointment", func(t *testing.T) {
		adapter, mock := setupMockDB(t)
		hold := testHold()

		mock.ExpectQuery(`SELECT .+ FROM "appointments"`).
			WillReturnRows(appointmentRows(hold))

		got, err := adapter.GetByID(context.Background(), hold.ID)
		require.NoError(t, err)
		assert.Equal(t, hold.ID, got.ID)
		assert.Equal(t, entities.AppointmentStatusHold, got.Status)
		assert.Equal(t, entities.NewTimeOfDay(10, 0), got.StartTime)
		require.NotNil(t, got.LockExpiresAt)
	})

	t.Run("missing row surfaces as not found", func(t *testing.T) {
		adapter, mock := setupMockDB(t)

		mock.ExpectQuery(`SELECT .+ FROM "appointments"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := adapter.GetByID(context.Background(), "missing")
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
	})
}

func TestFindActiveForSlot(t *testing.T) {
	t.Run("free slot returns nil", func(t *testing.T) {
		adapter, mock := setupMockDB(t)

		mock.ExpectQuery(`SELECT .+ FROM "appointments"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		got, err := adapter.FindActiveForSlot(context.Background(), "doctor-1",
			time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC), entities.NewTimeOfDay(10, 0))
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("occupied slot returns the occupant", func(t *testing.T) {
		adapter, mock := setupMockDB(t)
		hold := testHold()

		mock.ExpectQuery(`SELECT .+ FROM "appointments"`).
			WillReturnRows(appointmentRows(hold))

		got, err := adapter.FindActiveForSlot(context.Background(), hold.DoctorID, hold.Date, hold.StartTime)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, hold.ID, got.ID)
	})
}

func TestTransition(t *testing.T) {
	t.Run("applies the conditional update", func(t *testing.T) {
		adapter, mock := setupMockDB(t)

		mock.ExpectExec(`UPDATE "appointments" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := adapter.Transition(context.Background(), "appt-1",
			entities.AppointmentStatusHold,
			repositories.AppointmentUpdate{Status: entities.AppointmentStatusRequested})
		assert.NoError(t, err)
	})

	t.Run("zero rows surfaces as conflict", func(t *testing.T) {
		adapter, mock := setupMockDB(t)

		mock.ExpectExec(`UPDATE "appointments" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := adapter.Transition(context.Background(), "appt-1",
			entities.AppointmentStatusHold,
			repositories.AppointmentUpdate{Status: entities.AppointmentStatusRequested})
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
	})
}

func TestAcceptWithPayment(t *testing.T) {
	payment := &entities.Payment{
		ID:                "pay-1",
		AppointmentID:     "appt-1",
		ProviderSessionID: "cs_test_123",
		Amount:            50000,
		Currency:          "inr",
		Status:            entities.PaymentStatusRequiresMethod,
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
	expiry := time.Now().Add(15 * time.Minute)
	update := repositories.AppointmentUpdate{
		Status:        entities.AppointmentStatusPaymentPending,
		LockExpiresAt: &expiry,
	}

	t.Run("commits appointment and payment together", func(t *testing.T) {
		adapter, mock := setupMockDB(t)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "appointments" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO "payments"`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := adapter.AcceptWithPayment(context.Background(), "appt-1", update, payment)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when the status check fails", func(t *testing.T) {
		adapter, mock := setupMockDB(t)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "appointments" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := adapter.AcceptWithPayment(context.Background(), "appt-1", update, payment)
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSettlePayment(t *testing.T) {
	methodType := "card"

	t.Run("commits both updates", func(t *testing.T) {
		adapter, mock := setupMockDB(t)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "appointments" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE "payments" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := adapter.SettlePayment(context.Background(), "appt-1", "cs_test_123",
			entities.AppointmentStatusPaid, entities.PaymentStatusSucceeded, &methodType)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when the appointment moved on", func(t *testing.T) {
		adapter, mock := setupMockDB(t)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "appointments" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := adapter.SettlePayment(context.Background(), "appt-1", "cs_test_123",
			entities.AppointmentStatusPaid, entities.PaymentStatusSucceeded, &methodType)
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
	})
}

func TestExpireStale(t *testing.T) {
	t.Run("expiring also fails the open payments", func(t *testing.T) {
		adapter, mock := setupMockDB(t)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "appointments" SET`).
			WillReturnResult(sqlmock.NewResult(0, 3))
		mock.ExpectExec(`UPDATE "payments" SET .+ WHERE \(\("status" = 'requires_payment_method'\)`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		count, err := adapter.ExpireStale(context.Background(), time.Now(),
			[]entities.AppointmentStatus{entities.AppointmentStatusHold, entities.AppointmentStatusPaymentPending},
			entities.AppointmentStatusExpired)
		require.NoError(t, err)
		assert.Equal(t, int64(3), count)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("cancelling skips the payment sweep", func(t *testing.T) {
		adapter, mock := setupMockDB(t)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "appointments" SET`).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		count, err := adapter.ExpireStale(context.Background(), time.Now(),
			[]entities.AppointmentStatus{entities.AppointmentStatusRequested},
			entities.AppointmentStatusCancelledByDoctor)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nothing stale leaves payments untouched", func(t *testing.T) {
		adapter, mock := setupMockDB(t)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "appointments" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		count, err := adapter.ExpireStale(context.Background(), time.Now(),
			[]entities.AppointmentStatus{entities.AppointmentStatusHold, entities.AppointmentStatusPaymentPending},
			entities.AppointmentStatusExpired)
		require.NoError(t, err)
		assert.Equal(t, int64(0), count)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

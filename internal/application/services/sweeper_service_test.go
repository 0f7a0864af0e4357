package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/careloop/doctorbooking/internal/domain/entities"
)

func TestSweep(t *testing.T) {
	repo := new(MockAppointmentRepository)
	svc := NewSweeperService(repo, bookingConfig(), nil)
	svc.now = func() time.Time { return fixedNow }

	repo.On("ExpireStale", mock.Anything, fixedNow,
		[]entities.AppointmentStatus{entities.AppointmentStatusHold, entities.AppointmentStatusPaymentPending},
		entities.AppointmentStatusExpired).Return(int64(2), nil)
	repo.On("ExpireStale", mock.Anything, fixedNow,
		[]entities.AppointmentStatus{entities.AppointmentStatusRequested},
		entities.AppointmentStatusCancelledByDoctor).Return(int64(1), nil)

	svc.Sweep(context.Background())
	repo.AssertExpectations(t)
}

package services

import (
	"context"
	"time"

	"github.com/careloop/doctorbooking/internal/domain/entities"
	"github.com/careloop/doctorbooking/internal/domain/repositories"
	"github.com/careloop/doctorbooking/internal/infrastructure/observability"
	"github.com/careloop/doctorbooking/pkg/config"
)

// SweeperService proactively flips stale reservations so slot displays
// stay accurate without waiting for a client touch. It is hygiene
// only: lazy expiry at read/transition time already guarantees
// correctness.
type SweeperService struct {
	appointments repositories.AppointmentRepository
	interval     time.Duration
	metrics      *observability.Metrics
	now          func() time.Time
}

// NewSweeperService creates a new sweeper service
func NewSweeperService(appointments repositories.AppointmentRepository, cfg *config.BookingConfig, metrics *observability.Metrics) *SweeperService {
	return &SweeperService{
		appointments: appointments,
		interval:     cfg.SweepInterval,
		metrics:      metrics,
		now:          time.Now,
	}
}

// Run sweeps on the configured interval until ctx is cancelled
func (s *SweeperService) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs one pass: lapsed holds and payment windows expire,
// lapsed booking requests cancel on the doctor's behalf
func (s *SweeperService) Sweep(ctx context.Context) {
	logger := observability.ComponentLogger("sweeper")
	now := s.now().UTC()

	expired, err := s.appointments.ExpireStale(ctx, now,
		[]entities.AppointmentStatus{entities.AppointmentStatusHold, entities.AppointmentStatusPaymentPending},
		entities.AppointmentStatusExpired)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to expire stale holds")
	}

	cancelled, err := s.appointments.ExpireStale(ctx, now,
		[]entities.AppointmentStatus{entities.AppointmentStatusRequested},
		entities.AppointmentStatusCancelledByDoctor)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to cancel stale booking requests")
	}

	if total := expired + cancelled; total > 0 {
		if s.metrics != nil && s.metrics.LeasesExpired != nil {
			s.metrics.LeasesExpired.Add(ctx, total)
		}
		logger.Info().
			Int64("expired", expired).
			Int64("cancelled", cancelled).
			Msg("Swept stale reservations")
	}
}

package repositories

import (
	"context"
	"time"

	"github.com/careloop/doctorbooking/internal/domain/entities"
)

// AvailabilityRepository defines the interface for doctor availability
// rows. Rows are unique per (doctor_id, available_date); concurrent
// lazy creations are arbitrated by that constraint.
type AvailabilityRepository interface {
	// GetByDoctorDate retrieves the availability row for a doctor and
	// date; a not-found error when no row exists yet
	GetByDoctorDate(ctx context.Context, doctorID string, date time.Time) (*entities.DoctorAvailability, error)

	// Create inserts a new availability row. A unique-violation (a
	// concurrent resolver won) surfaces as a conflict error so the
	// caller can re-read the winning row.
	Create(ctx context.Context, availability *entities.DoctorAvailability) error

	// Upsert inserts or replaces the doctor's configuration for a date
	Upsert(ctx context.Context, availability *entities.DoctorAvailability) error
}

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/careloop/doctorbooking/internal/domain/entities"
	"github.com/careloop/doctorbooking/internal/domain/repositories"
	"github.com/careloop/doctorbooking/internal/infrastructure/clients/postgres"
	apperrors "github.com/careloop/doctorbooking/pkg/errors"
)

var availabilityColumns = []interface{}{
	"id", "doctor_id", "available_date", "start_time", "end_time",
	"break_start", "break_end", "slot_duration", "is_active",
	"created_at", "updated_at",
}

// AvailabilityAdapter implements the AvailabilityRepository interface.
// Rows are unique per (doctor_id, available_date); the constraint
// arbitrates concurrent lazy creations.
type AvailabilityAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewAvailabilityAdapter creates a new availability adapter
func NewAvailabilityAdapter(client *postgres.Client) repositories.AvailabilityRepository {
	return &AvailabilityAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// GetByDoctorDate retrieves the availability row for a doctor and date
func (a *AvailabilityAdapter) GetByDoctorDate(ctx context.Context, doctorID string, date time.Time) (*entities.DoctorAvailability, error) {
	query, args, err := a.db.Select(availabilityColumns...).
		From("doctor_availability").
		Where(goqu.Ex{"doctor_id": doctorID, "available_date": date}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	availability, err := scanAvailability(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("no availability for doctor %s on %s", doctorID, date.Format("2006-01-02")))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get availability", err)
	}
	return availability, nil
}

// Create inserts a new availability row
func (a *AvailabilityAdapter) Create(ctx context.Context, availability *entities.DoctorAvailability) error {
	query, args, err := a.db.Insert("doctor_availability").
		Rows(availabilityRecord(availability)).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err = a.client.DB().ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewConflictError("availability already exists for this date")
		}
		return apperrors.NewInternalError("failed to create availability", err)
	}
	return nil
}

// Upsert inserts or replaces the doctor's configuration for a date
func (a *AvailabilityAdapter) Upsert(ctx context.Context, availability *entities.DoctorAvailability) error {
	query, args, err := a.db.Insert("doctor_availability").
		Rows(availabilityRecord(availability)).
		OnConflict(goqu.DoUpdate("doctor_id, available_date", goqu.Record{
			"start_time":    availability.StartTime,
			"end_time":      availability.EndTime,
			"break_start":   availability.BreakStart,
			"break_end":     availability.BreakEnd,
			"slot_duration": availability.SlotDuration,
			"is_active":     availability.IsActive,
			"updated_at":    availability.UpdatedAt,
		})).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build upsert query", err)
	}

	if _, err = a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to upsert availability", err)
	}
	return nil
}

func availabilityRecord(availability *entities.DoctorAvailability) goqu.Record {
	return goqu.Record{
		"id":             availability.ID,
		"doctor_id":      availability.DoctorID,
		"available_date": availability.Date,
		"start_time":     availability.StartTime,
		"end_time":       availability.EndTime,
		"break_start":    availability.BreakStart,
		"break_end":      availability.BreakEnd,
		"slot_duration":  availability.SlotDuration,
		"is_active":      availability.IsActive,
		"created_at":     availability.CreatedAt,
		"updated_at":     availability.UpdatedAt,
	}
}

func scanAvailability(row rowScanner) (*entities.DoctorAvailability, error) {
	availability := &entities.DoctorAvailability{}
	var breakStart, breakEnd *entities.TimeOfDay

	err := row.Scan(
		&availability.ID,
		&availability.DoctorID,
		&availability.Date,
		&availability.StartTime,
		&availability.EndTime,
		&breakStart,
		&breakEnd,
		&availability.SlotDuration,
		&availability.IsActive,
		&availability.CreatedAt,
		&availability.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	availability.BreakStart = breakStart
	availability.BreakEnd = breakEnd
	return availability, nil
}

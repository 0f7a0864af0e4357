package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/careloop/doctorbooking/internal/domain/entities"
	"github.com/careloop/doctorbooking/internal/domain/repositories"
	"github.com/careloop/doctorbooking/pkg/config"
	apperrors "github.com/careloop/doctorbooking/pkg/errors"
)

// Default working day applied when a doctor has not configured a date.
var (
	defaultStartTime    = entities.NewTimeOfDay(10, 0)
	defaultEndTime      = entities.NewTimeOfDay(17, 0)
	defaultBreakStart   = entities.NewTimeOfDay(13, 0)
	defaultBreakEnd     = entities.NewTimeOfDay(14, 0)
	defaultSlotDuration = 20
)

// AvailabilityService resolves a doctor's working hours for a date.
// Rows are created lazily with system defaults the first time a date
// inside the booking horizon is queried; concurrent resolutions
// converge on a single row through the store's uniqueness constraint.
type AvailabilityService struct {
	repo repositories.AvailabilityRepository
	cfg  *config.BookingConfig
	now  func() time.Time
}

// NewAvailabilityService creates a new availability service
func NewAvailabilityService(repo repositories.AvailabilityRepository, cfg *config.BookingConfig) *AvailabilityService {
	return &AvailabilityService{
		repo: repo,
		cfg:  cfg,
		now:  time.Now,
	}
}

// Resolve returns the availability row for (doctorID, date), creating
// it with defaults when absent. The date must fall inside the booking
// horizon and not on a Sunday.
func (s *AvailabilityService) Resolve(ctx context.Context, doctorID string, date time.Time) (*entities.DoctorAvailability, error) {
	date = normalizeDate(date)

	if err := s.checkHorizon(date); err != nil {
		return nil, err
	}
	if date.Weekday() == time.Sunday {
		return nil, apperrors.NewValidationError("doctor is not available on Sundays")
	}

	availability, err := s.repo.GetByDoctorDate(ctx, doctorID, date)
	if err == nil {
		return availability, nil
	}
	if !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		return nil, err
	}

	now := s.now().UTC()
	breakStart := defaultBreakStart
	breakEnd := defaultBreakEnd
	created := &entities.DoctorAvailability{
		ID:           uuid.New().String(),
		DoctorID:     doctorID,
		Date:         date,
		StartTime:    defaultStartTime,
		EndTime:      defaultEndTime,
		BreakStart:   &breakStart,
		BreakEnd:     &breakEnd,
		SlotDuration: defaultSlotDuration,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, created); err != nil {
		// A concurrent resolution won the insert race; its row is
		// authoritative.
		if apperrors.IsType(err, apperrors.ErrorTypeConflict) {
			return s.repo.GetByDoctorDate(ctx, doctorID, date)
		}
		return nil, err
	}
	return created, nil
}

// Upsert lets a doctor configure their own working hours for a date
func (s *AvailabilityService) Upsert(ctx context.Context, principal entities.Principal, availability *entities.DoctorAvailability) (*entities.DoctorAvailability, error) {
	if principal.Role != entities.RoleDoctor {
		return nil, apperrors.NewUnauthorizedError("only doctors can configure availability")
	}

	availability.Date = normalizeDate(availability.Date)
	if err := s.checkHorizon(availability.Date); err != nil {
		return nil, err
	}
	if err := validateWorkingDay(availability); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	availability.ID = uuid.New().String()
	availability.DoctorID = principal.ID
	availability.CreatedAt = now
	availability.UpdatedAt = now
	if availability.SlotDuration == 0 {
		availability.SlotDuration = defaultSlotDuration
	}

	if err := s.repo.Upsert(ctx, availability); err != nil {
		return nil, err
	}
	return availability, nil
}

func (s *AvailabilityService) checkHorizon(date time.Time) error {
	today := normalizeDate(s.now().UTC())
	if date.Before(today.AddDate(0, 0, -1)) {
		return apperrors.NewValidationError("date is in the past")
	}
	if date.After(today.AddDate(0, 0, s.cfg.HorizonDays)) {
		return apperrors.NewValidationError("date is beyond the booking horizon")
	}
	return nil
}

func validateWorkingDay(availability *entities.DoctorAvailability) error {
	if !availability.StartTime.Before(availability.EndTime) {
		return apperrors.NewValidationError("start time must be before end time")
	}
	if (availability.BreakStart == nil) != (availability.BreakEnd == nil) {
		return apperrors.NewValidationError("break start and end must be set together")
	}
	if availability.BreakStart != nil {
		if !availability.BreakStart.Before(*availability.BreakEnd) {
			return apperrors.NewValidationError("break start must be before break end")
		}
		if availability.BreakStart.Before(availability.StartTime) || availability.EndTime.Before(*availability.BreakEnd) {
			return apperrors.NewValidationError("break must fall within working hours")
		}
	}
	if availability.SlotDuration < 0 {
		return apperrors.NewValidationError("slot duration must be positive")
	}
	return nil
}

// normalizeDate truncates to midnight UTC so date equality matches the
// store's date column
func normalizeDate(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
}

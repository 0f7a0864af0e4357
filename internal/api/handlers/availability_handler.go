package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/careloop/doctorbooking/internal/api/middleware"
	"github.com/careloop/doctorbooking/internal/domain/entities"
)

// AvailabilityService defines the interface for schedule configuration
type AvailabilityService interface {
	Upsert(ctx context.Context, principal entities.Principal, availability *entities.DoctorAvailability) (*entities.DoctorAvailability, error)
}

// AvailabilityHandler handles doctor availability and slot endpoints
type AvailabilityHandler struct {
	availability AvailabilityService
	bookings     BookingService
}

// NewAvailabilityHandler creates a new availability handler
func NewAvailabilityHandler(availability AvailabilityService, bookings BookingService) *AvailabilityHandler {
	return &AvailabilityHandler{
		availability: availability,
		bookings:     bookings,
	}
}

type upsertAvailabilityRequest struct {
	Date         string  `json:"date" validate:"required"`
	StartTime    string  `json:"start_time" validate:"required"`
	EndTime      string  `json:"end_time" validate:"required"`
	BreakStart   *string `json:"break_start"`
	BreakEnd     *string `json:"break_end"`
	SlotDuration int     `json:"slot_duration"`
	IsActive     *bool   `json:"is_active"`
}

// UpsertAvailability lets a doctor configure working hours for a date
func (h *AvailabilityHandler) UpsertAvailability(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req upsertAvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid date format (use YYYY-MM-DD)")
		return
	}
	startTime, err := entities.ParseTimeOfDay(req.StartTime)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid start_time format (use HH:MM)")
		return
	}
	endTime, err := entities.ParseTimeOfDay(req.EndTime)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid end_time format (use HH:MM)")
		return
	}

	availability := &entities.DoctorAvailability{
		Date:         date,
		StartTime:    startTime,
		EndTime:      endTime,
		SlotDuration: req.SlotDuration,
		IsActive:     true,
	}
	if req.IsActive != nil {
		availability.IsActive = *req.IsActive
	}
	if req.BreakStart != nil && req.BreakEnd != nil {
		breakStart, err := entities.ParseTimeOfDay(*req.BreakStart)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid break_start format (use HH:MM)")
			return
		}
		breakEnd, err := entities.ParseTimeOfDay(*req.BreakEnd)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid break_end format (use HH:MM)")
			return
		}
		availability.BreakStart = &breakStart
		availability.BreakEnd = &breakEnd
	}

	saved, err := h.availability.Upsert(r.Context(), principal, availability)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, saved)
}

// GetDaySlots returns the projected slot states for a doctor's date
func (h *AvailabilityHandler) GetDaySlots(w http.ResponseWriter, r *http.Request) {
	doctorID := r.PathValue("id")
	if doctorID == "" {
		respondWithError(w, http.StatusBadRequest, "doctor ID is required")
		return
	}

	dateParam := r.URL.Query().Get("date")
	if dateParam == "" {
		respondWithError(w, http.StatusBadRequest, "date query parameter is required")
		return
	}
	date, err := time.Parse("2006-01-02", dateParam)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid date format (use YYYY-MM-DD)")
		return
	}

	views, err := h.bookings.DoctorDaySlots(r.Context(), doctorID, date)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"doctor_id": doctorID,
		"date":      dateParam,
		"slots":     views,
	})
}

// GetRangeSlots returns projected slot states for the next N days
func (h *AvailabilityHandler) GetRangeSlots(w http.ResponseWriter, r *http.Request) {
	doctorID := r.PathValue("id")
	if doctorID == "" {
		respondWithError(w, http.StatusBadRequest, "doctor ID is required")
		return
	}

	days := 7
	if daysParam := r.URL.Query().Get("days"); daysParam != "" {
		parsed, err := strconv.Atoi(daysParam)
		if err != nil || parsed < 1 {
			respondWithError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = parsed
	}

	result, err := h.bookings.DoctorRangeSlots(r.Context(), doctorID, days)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"doctor_id": doctorID,
		"days":      result,
	})
}

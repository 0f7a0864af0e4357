package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/careloop/doctorbooking/internal/api/middleware"
	"github.com/careloop/doctorbooking/internal/domain/entities"
	"github.com/careloop/doctorbooking/internal/domain/providers"
)

const maxAttachmentMemory = 10 << 20 // 10 MiB

// BookingService defines the interface for reservation lifecycle operations
type BookingService interface {
	PlaceHold(ctx context.Context, principal entities.Principal, doctorID string, date time.Time, start, end entities.TimeOfDay) (*entities.Appointment, error)
	SubmitRequest(ctx context.Context, principal entities.Principal, appointmentID, description string, attachments []providers.Attachment) (*entities.Appointment, error)
	Accept(ctx context.Context, principal entities.Principal, appointmentID string) (*entities.Appointment, error)
	Reject(ctx context.Context, principal entities.Principal, appointmentID string) (*entities.Appointment, error)
	ConfirmPayment(ctx context.Context, principal entities.Principal, appointmentID string) (*entities.Appointment, error)
	CancelPayment(ctx context.Context, principal entities.Principal, appointmentID string) error
	PaymentInfo(ctx context.Context, principal entities.Principal, appointmentID string) (*entities.Payment, error)
	PaymentLink(ctx context.Context, principal entities.Principal, appointmentID string) (string, error)
	PendingPayments(ctx context.Context, principal entities.Principal) ([]*entities.Appointment, error)
	UpcomingAppointments(ctx context.Context, principal entities.Principal) ([]*entities.Appointment, error)
	DoctorDaySlots(ctx context.Context, doctorID string, date time.Time) ([]entities.SlotView, error)
	DoctorRangeSlots(ctx context.Context, doctorID string, days int) (map[string][]entities.SlotView, error)
}

// BookingHandler handles the reservation lifecycle endpoints
type BookingHandler struct {
	bookings BookingService
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(bookings BookingService) *BookingHandler {
	return &BookingHandler{bookings: bookings}
}

type placeHoldRequest struct {
	DoctorID  string `json:"doctor_id" validate:"required"`
	Date      string `json:"date" validate:"required"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
}

// PlaceHold reserves a slot for the patient for a short window
func (h *BookingHandler) PlaceHold(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req placeHoldRequest
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
	start, err := entities.ParseTimeOfDay(req.StartTime)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid start_time format (use HH:MM)")
		return
	}
	end, err := entities.ParseTimeOfDay(req.EndTime)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid end_time format (use HH:MM)")
		return
	}

	appointment, err := h.bookings.PlaceHold(r.Context(), principal, req.DoctorID, date, start, end)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, appointment)
}

// SubmitRequest converts a hold into a booking request. Accepts
// multipart form data: a description field plus report file parts.
func (h *BookingHandler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	appointmentID := r.PathValue("id")

	if err := r.ParseMultipartForm(maxAttachmentMemory); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid multipart payload")
		return
	}
	description := r.FormValue("description")

	var attachments []providers.Attachment
	if r.MultipartForm != nil {
		for _, header := range r.MultipartForm.File["reports"] {
			file, err := header.Open()
			if err != nil {
				respondWithError(w, http.StatusBadRequest, "failed to read attachment")
				return
			}
			defer file.Close()
			attachments = append(attachments, providers.Attachment{
				FileName:    header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Reader:      file,
			})
		}
	}

	appointment, err := h.bookings.SubmitRequest(r.Context(), principal, appointmentID, description, attachments)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, appointment)
}

// Accept lets the doctor accept a booking request
func (h *BookingHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.bookings.Accept)
}

// Reject lets the doctor decline a booking request
func (h *BookingHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.bookings.Reject)
}

// ConfirmPayment settles the outcome of the checkout session
func (h *BookingHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.bookings.ConfirmPayment)
}

func (h *BookingHandler) transition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, principal entities.Principal, id string) (*entities.Appointment, error)) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	appointment, err := op(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, appointment)
}

// CancelPayment lets the patient abandon an unpaid booking
func (h *BookingHandler) CancelPayment(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := h.bookings.CancelPayment(r.Context(), principal, r.PathValue("id")); err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// PaymentInfo returns the payment record for an appointment
func (h *BookingHandler) PaymentInfo(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	payment, err := h.bookings.PaymentInfo(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, payment)
}

// PaymentLink returns the hosted checkout URL for a pending payment
func (h *BookingHandler) PaymentLink(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	url, err := h.bookings.PaymentLink(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"checkout_url": url})
}

// PendingPayments lists the patient's appointments awaiting payment
func (h *BookingHandler) PendingPayments(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.bookings.PendingPayments)
}

// UpcomingAppointments lists the patient's active appointments
func (h *BookingHandler) UpcomingAppointments(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.bookings.UpcomingAppointments)
}

func (h *BookingHandler) list(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, principal entities.Principal) ([]*entities.Appointment, error)) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	appointments, err := op(r.Context(), principal)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"appointments": appointments,
		"count":        len(appointments),
	})
}

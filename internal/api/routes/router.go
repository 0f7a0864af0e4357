package routes

import (
	"net/http"

	"github.com/careloop/doctorbooking/internal/api/handlers"
	"github.com/careloop/doctorbooking/internal/api/middleware"
	"github.com/careloop/doctorbooking/internal/domain/repositories"
	"github.com/careloop/doctorbooking/internal/infrastructure/observability"
)

// Router holds all route handlers

type Router struct {
	mux *http.ServeMux

	authHandler *handlers.AuthHandler

	availabilityHandler *handlers.AvailabilityHandler

	bookingHandler *handlers.BookingHandler

	jwtSecret string
	sessions  repositories.SessionRepository

	metrics *observability.Metrics
}

// NewRouter creates a new router

func NewRouter(

	authHandler *handlers.AuthHandler,

	availabilityHandler *handlers.AvailabilityHandler,

	bookingHandler *handlers.BookingHandler,

	jwtSecret string,
	sessions repositories.SessionRepository,

	metrics *observability.Metrics,

) *Router {

	return &Router{

		mux: http.NewServeMux(),

		authHandler: authHandler,

		availabilityHandler: availabilityHandler,

		bookingHandler: bookingHandler,

		jwtSecret: jwtSecret,
		sessions:  sessions,

		metrics: metrics,
	}

}

// SetupRoutes configures all application routes

func (r *Router) SetupRoutes() http.Handler {

	// Health check endpoint

	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {

		w.WriteHeader(http.StatusOK)

		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}

	})

	// Auth endpoints

	r.mux.HandleFunc("POST /api/auth/login", r.authHandler.Login)

	r.mux.HandleFunc("POST /api/auth/refresh", r.authHandler.Refresh)

	// Public slot discovery endpoints

	r.mux.HandleFunc("GET /api/doctors/{id}/slots", r.availabilityHandler.GetDaySlots)

	r.mux.HandleFunc("GET /api/doctors/{id}/slots/range", r.availabilityHandler.GetRangeSlots)

	// Everything below requires a valid access token

	authed := middleware.AuthMiddleware(r.jwtSecret, r.sessions)

	protect := func(pattern string, handlerFunc http.HandlerFunc) {
		r.mux.Handle(pattern, authed(handlerFunc))
	}

	protect("POST /api/auth/logout", r.authHandler.Logout)

	// Booking lifecycle endpoints

	protect("POST /api/bookings/hold", r.bookingHandler.PlaceHold)

	protect("POST /api/bookings/{id}/request", r.bookingHandler.SubmitRequest)

	protect("POST /api/bookings/{id}/accept", r.bookingHandler.Accept)

	protect("POST /api/bookings/{id}/reject", r.bookingHandler.Reject)

	protect("POST /api/bookings/{id}/confirm-payment", r.bookingHandler.ConfirmPayment)

	protect("POST /api/bookings/{id}/cancel-payment", r.bookingHandler.CancelPayment)

	protect("GET /api/bookings/{id}/payment", r.bookingHandler.PaymentInfo)

	protect("GET /api/bookings/{id}/payment-link", r.bookingHandler.PaymentLink)

	protect("GET /api/bookings/pending-payments", r.bookingHandler.PendingPayments)

	protect("GET /api/bookings/upcoming", r.bookingHandler.UpcomingAppointments)

	// Doctor schedule configuration

	protect("PUT /api/doctors/availability", r.availabilityHandler.UpsertAvailability)

	// Apply middleware in reverse order (last middleware wraps first)
	// CORS must be outermost so error responses also get CORS headers.

	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)

	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)

	handler = middleware.CORSMiddleware(handler)

	return handler
}

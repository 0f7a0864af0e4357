package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/careloop/doctorbooking/internal/adapters/database"
	"github.com/careloop/doctorbooking/internal/adapters/events"
	"github.com/careloop/doctorbooking/internal/adapters/providers/attachments"
	"github.com/careloop/doctorbooking/internal/adapters/providers/payments"
	"github.com/careloop/doctorbooking/internal/api/handlers"
	"github.com/careloop/doctorbooking/internal/api/routes"
	"github.com/careloop/doctorbooking/internal/application/services"
	"github.com/careloop/doctorbooking/internal/domain/providers"
	"github.com/careloop/doctorbooking/internal/infrastructure/clients/postgres"
	"github.com/careloop/doctorbooking/internal/infrastructure/clients/redis"
	"github.com/careloop/doctorbooking/internal/infrastructure/notifications"
	"github.com/careloop/doctorbooking/internal/infrastructure/observability"
	"github.com/careloop/doctorbooking/pkg/config"
)

func main() {

	// Load .env if present (local development only)
	_ = godotenv.Load()

	// Load configuration

	cfg, err := config.Load()

	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Server.Env)

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	var shutdown func(context.Context) error
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err = observability.Setup(
			ctx,
			cfg.OTEL.ServiceName,
			cfg.OTEL.ServiceVersion,
			cfg.OTEL.Endpoint,
		)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			log.Info().Msg("OpenTelemetry initialized successfully")
		}
	}

	// Initialize metrics
	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize metrics")
	}

	// Initialize database client
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()
	log.Info().Msg("PostgreSQL client initialized successfully")

	// Initialize Redis client
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		// Continue without Redis - booking correctness never depends on the
		// event bus, only notifications do.
		log.Warn().Err(err).Msg("Failed to initialize Redis client")
	} else {
		defer redisClient.Close()
		log.Info().Msg("Redis client initialized successfully")
	}

	// Initialize adapters

	appointmentAdapter := database.NewAppointmentAdapter(pgClient)
	availabilityAdapter := database.NewAvailabilityAdapter(pgClient)
	paymentAdapter := database.NewPaymentAdapter(pgClient)
	userAdapter := database.NewUserAdapter(pgClient)
	sessionAdapter := database.NewSessionAdapter(pgClient)

	// Initialize event bus for booking lifecycle events
	var eventBus providers.EventBus
	if redisClient != nil {
		eventBus = events.NewRedisEventBus(redisClient)
		log.Info().Msg("Event bus initialized successfully")
	} else {
		log.Info().Msg("Event bus disabled (Redis not available)")
	}

	paymentProvider := payments.NewPaymentProvider(&cfg.Stripe)

	var attachmentStore providers.AttachmentStore
	if cfg.Attachments.UploadURL != "" {
		attachmentStore = attachments.NewHTTPStore(cfg.Attachments.UploadURL, cfg.Attachments.APIKey)
	} else {
		log.Warn().Msg("ATTACHMENT_UPLOAD_URL is not set; using mock attachment store")
		attachmentStore = attachments.NewMockStore()
	}

	// Initialize services

	availabilityService := services.NewAvailabilityService(availabilityAdapter, &cfg.Booking)

	bookingService := services.NewBookingService(
		appointmentAdapter,
		paymentAdapter,
		userAdapter,
		availabilityService,
		paymentProvider,
		attachmentStore,
		eventBus,
		&cfg.Booking,
		cfg.Stripe.Currency,
		cfg.Server.FrontendURL,
		metrics,
	)

	authService := services.NewAuthService(userAdapter, sessionAdapter, cfg.Auth.JWTSecret)

	// Start the notification worker if events can flow
	if eventBus != nil {
		emailSender, err := notifications.NewEmailSender(&cfg.SMTP)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize email sender")
		}

		notificationService := services.NewNotificationService(eventBus, emailSender, userAdapter)
		go func() {
			if err := notificationService.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("Notification service stopped")
			}
		}()
		log.Info().Msg("Notification service started")
	}

	// Initialize handlers

	authHandler := handlers.NewAuthHandler(authService)

	availabilityHandler := handlers.NewAvailabilityHandler(availabilityService, bookingService)

	bookingHandler := handlers.NewBookingHandler(bookingService)

	// Set up router

	router := routes.NewRouter(
		authHandler,
		availabilityHandler,
		bookingHandler,
		cfg.Auth.JWTSecret,
		sessionAdapter,
		metrics,
	)

	handler := router.SetupRoutes()

	// Create HTTP server
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", serverAddr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Server shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during server shutdown")
	}

	// Close event bus
	if eventBus != nil {
		if err := eventBus.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing event bus")
		}
	}

	log.Info().Msg("Server stopped")
}

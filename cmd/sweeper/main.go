package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/careloop/doctorbooking/internal/adapters/database"
	"github.com/careloop/doctorbooking/internal/application/services"
	"github.com/careloop/doctorbooking/internal/infrastructure/clients/postgres"
	"github.com/careloop/doctorbooking/internal/infrastructure/observability"
	"github.com/careloop/doctorbooking/pkg/config"
)

// The sweeper flips reservations whose lease lapsed so slot listings
// stay accurate without waiting for a read to touch them. It is safe
// to run zero, one, or many replicas: every flip is a conditional
// update that loses gracefully to a concurrent transition.
func main() {
	var once bool
	var intervalFlag time.Duration
	flag.BoolVar(&once, "once", false, "run a single sweep and exit")
	flag.DurationVar(&intervalFlag, "interval", 0, "override sweep interval (e.g. 30s, 2m)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	observability.InitLogger(cfg.OTEL.ServiceName+"-sweeper", cfg.Server.Env)

	if intervalFlag > 0 {
		cfg.Booking.SweepInterval = intervalFlag
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize metrics")
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	appointmentAdapter := database.NewAppointmentAdapter(pgClient)
	sweeper := services.NewSweeperService(appointmentAdapter, &cfg.Booking, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if once {
		sweeper.Sweep(ctx)
		return
	}

	log.Info().Dur("interval", cfg.Booking.SweepInterval).Msg("Sweeper starting")

	if err := sweeper.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("Sweeper stopped")
	}

	log.Info().Msg("Sweeper shutting down")
}

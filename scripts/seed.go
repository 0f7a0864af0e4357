package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/careloop/doctorbooking/internal/adapters/database"
	"github.com/careloop/doctorbooking/internal/domain/entities"
	"github.com/careloop/doctorbooking/internal/infrastructure/clients/postgres"
	"github.com/careloop/doctorbooking/pkg/config"
)

// schema is applied idempotently on every run. The partial unique
// index on appointments is the concurrency primitive for the whole
// booking flow: at most one active reservation per doctor slot,
// enforced by the store, not by application locks.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY,
	email VARCHAR(255) NOT NULL UNIQUE,
	first_name VARCHAR(100) NOT NULL,
	last_name VARCHAR(100) NOT NULL,
	role VARCHAR(20) NOT NULL CHECK (role IN ('patient', 'doctor')),
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS doctor_profiles (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL UNIQUE REFERENCES users(id),
	consultation_fee NUMERIC(10, 2) NOT NULL DEFAULT 0,
	experience_years INTEGER NOT NULL DEFAULT 0,
	about TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS doctor_availability (
	id UUID PRIMARY KEY,
	doctor_id UUID NOT NULL REFERENCES users(id),
	available_date DATE NOT NULL,
	start_time TIME NOT NULL,
	end_time TIME NOT NULL,
	break_start TIME,
	break_end TIME,
	slot_duration INTEGER NOT NULL DEFAULT 20,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (doctor_id, available_date)
);

CREATE TABLE IF NOT EXISTS appointments (
	id UUID PRIMARY KEY,
	patient_id UUID NOT NULL REFERENCES users(id),
	doctor_id UUID NOT NULL REFERENCES users(id),
	appointment_date DATE NOT NULL,
	start_time TIME NOT NULL,
	end_time TIME NOT NULL,
	status VARCHAR(30) NOT NULL CHECK (status IN (
		'HOLD', 'REQUESTED', 'PAYMENT_PENDING', 'PAID', 'COMPLETED',
		'EXPIRED', 'CANCELLED_BY_DOCTOR'
	)),
	lock_expires_at TIMESTAMPTZ,
	description TEXT NOT NULL DEFAULT '',
	report_urls TEXT[] NOT NULL DEFAULT '{}',
	payment_session_id VARCHAR(255),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS appointments_active_slot_idx
	ON appointments (doctor_id, appointment_date, start_time)
	WHERE status IN ('HOLD', 'REQUESTED', 'PAYMENT_PENDING', 'PAID', 'COMPLETED');

CREATE INDEX IF NOT EXISTS appointments_patient_idx
	ON appointments (patient_id, appointment_date);

CREATE INDEX IF NOT EXISTS appointments_lease_idx
	ON appointments (lock_expires_at)
	WHERE lock_expires_at IS NOT NULL;

CREATE TABLE IF NOT EXISTS payments (
	id UUID PRIMARY KEY,
	appointment_id UUID NOT NULL REFERENCES appointments(id),
	provider_session_id VARCHAR(255) NOT NULL UNIQUE,
	amount BIGINT NOT NULL,
	currency VARCHAR(10) NOT NULL,
	status VARCHAR(40) NOT NULL,
	method_type VARCHAR(40),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS user_sessions (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL REFERENCES users(id),
	refresh_token_hash VARCHAR(64) NOT NULL,
	device_id VARCHAR(255) NOT NULL,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	last_used_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS user_sessions_user_device_idx
	ON user_sessions (user_id, device_id)
	WHERE is_active;
`

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pgClient.Close()

	ctx := context.Background()

	if os.Getenv("RESET_DB") == "true" {
		log.Println("RESET_DB=true detected, truncating tables before seeding")
		_, err := pgClient.DB().ExecContext(ctx, `
			TRUNCATE TABLE
				payments,
				appointments,
				doctor_availability,
				user_sessions,
				doctor_profiles,
				users
			RESTART IDENTITY CASCADE
		`)
		if err != nil {
			log.Fatalf("Failed to reset tables: %v", err)
		}
	}

	if _, err := pgClient.DB().ExecContext(ctx, schema); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}
	log.Println("Schema applied")

	userRepo := database.NewUserAdapter(pgClient)
	availabilityRepo := database.NewAvailabilityAdapter(pgClient)

	// 1. Seed doctors

	doctors := []struct {
		user  entities.User
		fee   float64
		years int
		about string
	}{
		{
			user:  entities.User{ID: uuid.New().String(), Email: "asha.menon@example.com", FirstName: "Asha", LastName: "Menon", Role: entities.RoleDoctor, IsActive: true},
			fee:   500,
			years: 12,
			about: "General physician focused on preventive care.",
		},
		{
			user:  entities.User{ID: uuid.New().String(), Email: "rahul.iyer@example.com", FirstName: "Rahul", LastName: "Iyer", Role: entities.RoleDoctor, IsActive: true},
			fee:   750,
			years: 8,
			about: "Dermatologist, teleconsultation friendly.",
		},
	}

	for _, d := range doctors {
		if err := userRepo.Create(ctx, &d.user); err != nil {
			log.Printf("Failed to create doctor %s: %v", d.user.Email, err)
			continue
		}
		_, err := pgClient.DB().ExecContext(ctx, `
			INSERT INTO doctor_profiles (id, user_id, consultation_fee, experience_years, about)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (user_id) DO NOTHING
		`, uuid.New().String(), d.user.ID, d.fee, d.years, d.about)
		if err != nil {
			log.Printf("Failed to create profile for %s: %v", d.user.Email, err)
		}
	}

	// 2. Seed patients

	patients := []entities.User{
		{ID: uuid.New().String(), Email: "meera.nair@example.com", FirstName: "Meera", LastName: "Nair", Role: entities.RolePatient, IsActive: true},
		{ID: uuid.New().String(), Email: "arjun.pillai@example.com", FirstName: "Arjun", LastName: "Pillai", Role: entities.RolePatient, IsActive: true},
	}

	for i := range patients {
		if err := userRepo.Create(ctx, &patients[i]); err != nil {
			log.Printf("Failed to create patient %s: %v", patients[i].Email, err)
		}
	}

	// 3. Seed explicit availability for the next week. Dates without a
	// row still resolve lazily with defaults; these rows just exercise
	// custom hours and breaks.

	breakStart := entities.NewTimeOfDay(13, 0)
	breakEnd := entities.NewTimeOfDay(14, 0)

	today := time.Now().UTC().Truncate(24 * time.Hour)
	for day := 1; day <= 7; day++ {
		date := today.AddDate(0, 0, day)
		if date.Weekday() == time.Sunday {
			continue
		}
		for _, d := range doctors {
			avail := &entities.DoctorAvailability{
				ID:           uuid.New().String(),
				DoctorID:     d.user.ID,
				Date:         date,
				StartTime:    entities.NewTimeOfDay(9, 30),
				EndTime:      entities.NewTimeOfDay(18, 0),
				BreakStart:   &breakStart,
				BreakEnd:     &breakEnd,
				SlotDuration: 20,
				IsActive:     true,
			}
			if err := availabilityRepo.Upsert(ctx, avail); err != nil {
				log.Printf("Failed to seed availability for %s on %s: %v", d.user.Email, date.Format("2006-01-02"), err)
			}
		}
	}

	log.Println("Seeding complete")
	for _, d := range doctors {
		log.Printf("  doctor: %s (%s)", d.user.Email, d.user.ID)
	}
	for _, p := range patients {
		log.Printf("  patient: %s (%s)", p.Email, p.ID)
	}
}

package repositories

import (
	"context"
	"time"

	"github.com/careloop/doctorbooking/internal/domain/entities"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	// Create creates a new user
	Create(ctx context.Context, user *entities.User) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id string) (*entities.User, error)

	// GetByEmail retrieves a user by email
	GetByEmail(ctx context.Context, email string) (*entities.User, error)

	// GetDoctorProfile retrieves the doctor profile for a user
	GetDoctorProfile(ctx context.Context, userID string) (*entities.DoctorProfile, error)
}

// SessionRepository manages refresh-token sessions. All mutations are
// store-level conditional updates, never in-process state.
type SessionRepository interface {
	// Activate deactivates any existing session for the user/device
	// and inserts the new one, in one transaction
	Activate(ctx context.Context, session *entities.UserSession) error

	// Rotate swaps the refresh token hash only if the stored hash
	// still matches oldHash on an active session; zero rows affected
	// surfaces as a conflict error
	Rotate(ctx context.Context, userID, oldHash, newHash string, now time.Time) error

	// Touch stamps last_used_at on the user's active session; a
	// not-found error when no active session exists
	Touch(ctx context.Context, userID string, now time.Time) error

	// Deactivate terminates the user's active session
	Deactivate(ctx context.Context, userID string) error
}

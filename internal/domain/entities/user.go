package entities

import (
	"time"
)

// Role distinguishes the two kinds of authenticated principals
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

// Principal is the authenticated identity attached to every request by
// the identity provider. Core operations check its role explicitly.
type Principal struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// User represents a user in the system
type User struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	FirstName string    `json:"first_name" db:"first_name"`
	LastName  string    `json:"last_name" db:"last_name"`
	Role      Role      `json:"role" db:"role"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// FullName renders the display name for notifications
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// DoctorProfile carries doctor-specific attributes; the consultation
// fee must be configured before the doctor can accept bookings
type DoctorProfile struct {
	ID              string    `json:"id" db:"id"`
	UserID          string    `json:"user_id" db:"user_id"`
	ConsultationFee float64   `json:"consultation_fee" db:"consultation_fee"`
	ExperienceYears int       `json:"experience_years" db:"experience_years"`
	About           string    `json:"about" db:"about"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// UserSession tracks a refresh-token session. At most one active
// session per (user_id, device_id); rotation uses a conditional update
// keyed on the previous token hash, the same store-level discipline as
// the reservation lock.
type UserSession struct {
	ID               string     `json:"id" db:"id"`
	UserID           string     `json:"user_id" db:"user_id"`
	RefreshTokenHash string     `json:"-" db:"refresh_token_hash"`
	DeviceID         string     `json:"device_id" db:"device_id"`
	IsActive         bool       `json:"is_active" db:"is_active"`
	LastUsedAt       *time.Time `json:"last_used_at" db:"last_used_at"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
}

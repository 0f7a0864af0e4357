package entities

import "time"

// DoctorAvailability describes a doctor's working hours on a single
// date. One row per (doctor_id, available_date); created lazily with
// system defaults the first time a date inside the booking horizon is
// queried.
type DoctorAvailability struct {
	ID           string     `json:"id" db:"id"`
	DoctorID     string     `json:"doctor_id" db:"doctor_id"`
	Date         time.Time  `json:"available_date" db:"available_date"`
	StartTime    TimeOfDay  `json:"start_time" db:"start_time"`
	EndTime      TimeOfDay  `json:"end_time" db:"end_time"`
	BreakStart   *TimeOfDay `json:"break_start" db:"break_start"`
	BreakEnd     *TimeOfDay `json:"break_end" db:"break_end"`
	SlotDuration int        `json:"slot_duration" db:"slot_duration"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// SlotState classifies a generated slot for display
type SlotState string

const (
	SlotStateAvailable SlotState = "available"
	SlotStateHold      SlotState = "hold"
	SlotStateBooked    SlotState = "booked"
)

// Slot is a single bookable half-open interval [Start, End)
type Slot struct {
	Start TimeOfDay `json:"start_time"`
	End   TimeOfDay `json:"end_time"`
}

// SlotView is a slot decorated with its display state
type SlotView struct {
	Start         TimeOfDay  `json:"start_time"`
	End           TimeOfDay  `json:"end_time"`
	State         SlotState  `json:"state"`
	HoldExpiresAt *time.Time `json:"hold_expires_at,omitempty"`
}

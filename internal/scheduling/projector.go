package scheduling

import (
	"time"

	"github.com/careloop/doctorbooking/internal/domain/entities"
)

// ProjectSlots classifies each generated slot against the active
// reservations for that doctor and date. Read-only: display-time
// classification is advisory, authoritative expiry lives in the
// booking service.
//
//   - PAID / COMPLETED reservations mark the slot booked
//   - HOLD / PAYMENT_PENDING with a live lease mark it held, with the
//     lease expiry surfaced
//   - anything else (lapsed lease, no reservation) leaves it available
func ProjectSlots(slots []entities.Slot, reservations []*entities.Appointment, now time.Time) []entities.SlotView {
	type occupancy struct {
		state     entities.SlotState
		expiresAt *time.Time
	}

	occupied := make(map[entities.TimeOfDay]occupancy, len(reservations))
	for _, appt := range reservations {
		switch appt.Status {
		case entities.AppointmentStatusPaid, entities.AppointmentStatusCompleted:
			occupied[appt.StartTime] = occupancy{state: entities.SlotStateBooked}
		case entities.AppointmentStatusHold, entities.AppointmentStatusPaymentPending:
			if appt.LockExpiresAt != nil && appt.LockExpiresAt.After(now) {
				occupied[appt.StartTime] = occupancy{state: entities.SlotStateHold, expiresAt: appt.LockExpiresAt}
			}
		}
	}

	views := make([]entities.SlotView, 0, len(slots))
	for _, s := range slots {
		view := entities.SlotView{Start: s.Start, End: s.End, State: entities.SlotStateAvailable}
		if occ, ok := occupied[s.Start]; ok {
			view.State = occ.state
			view.HoldExpiresAt = occ.expiresAt
		}
		views = append(views, view)
	}
	return views
}

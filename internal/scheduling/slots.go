// Package scheduling holds the pure slot arithmetic: generating the
// canonical slot sequence for a working day and projecting reservation
// state onto it for display. Nothing here touches storage.
package scheduling

import (
	"time"

	"github.com/careloop/doctorbooking/internal/domain/entities"
)

// GenerateSlots produces the ordered sequence of bookable half-open
// intervals between start and end. A slot is emitted only if it fits
// entirely before end. Slots starting inside [breakStart, breakEnd)
// are suppressed, not shifted, so a break leaves a gap without
// compressing the surrounding slots.
func GenerateSlots(start, end entities.TimeOfDay, slotDuration time.Duration, breakStart, breakEnd *entities.TimeOfDay) []entities.Slot {
	if slotDuration <= 0 {
		return nil
	}

	var slots []entities.Slot
	for cursor := start; !cursor.Add(slotDuration).After(end); cursor = cursor.Add(slotDuration) {
		if breakStart != nil && breakEnd != nil && !cursor.Before(*breakStart) && cursor.Before(*breakEnd) {
			continue
		}
		slots = append(slots, entities.Slot{Start: cursor, End: cursor.Add(slotDuration)})
	}
	return slots
}

// ContainsSlot reports whether the requested interval is one of the
// generated slots
func ContainsSlot(slots []entities.Slot, start, end entities.TimeOfDay) bool {
	for _, s := range slots {
		if s.Start == start && s.End == end {
			return true
		}
	}
	return false
}

package providers

import (
	"context"

	"github.com/careloop/doctorbooking/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to
// booking lifecycle events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.BookingEvent) error

	// Subscribe subscribes to events on a channel
	Subscribe(ctx context.Context, channel string) (<-chan *entities.BookingEvent, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

// EventChannelBookings is the channel carrying all booking lifecycle
// events
const EventChannelBookings = "bookings:events"

// EventChannelDoctorPrefix is the prefix for doctor-specific channels
const EventChannelDoctorPrefix = "bookings:doctor:"

// GetDoctorChannel returns the channel name for a specific doctor
func GetDoctorChannel(doctorID string) string {
	return EventChannelDoctorPrefix + doctorID
}

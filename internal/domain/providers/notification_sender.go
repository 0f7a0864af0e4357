package providers

import "context"

// NotificationSender delivers outbound notifications. Fire-and-forget:
// delivery failure must never roll back a committed state transition.
type NotificationSender interface {
	// Send delivers a message to the recipient
	Send(ctx context.Context, to, subject, body string) error
}

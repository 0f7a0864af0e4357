package providers

import (
	"context"
	"io"
)

// Attachment is a patient-supplied document to persist
type Attachment struct {
	FileName    string
	ContentType string
	Reader      io.Reader
}

// AttachmentStore persists patient documents attached to a booking
// request. A failed upload aborts the transition before any state
// change commits.
type AttachmentStore interface {
	// Store uploads the attachment and returns its public URL
	Store(ctx context.Context, folder string, attachment Attachment) (string, error)
}

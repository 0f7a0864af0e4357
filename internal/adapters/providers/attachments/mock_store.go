package attachments

import (
	"context"
	"fmt"
	"io"

	"github.com/careloop/doctorbooking/internal/domain/providers"
)

// MockStore discards uploads and returns a deterministic URL; used in
// local development and tests.
type MockStore struct{}

// NewMockStore creates a mock attachment store
func NewMockStore() providers.AttachmentStore {
	return &MockStore{}
}

// Store drains the reader and returns a fake URL
func (s *MockStore) Store(ctx context.Context, folder string, attachment providers.Attachment) (string, error) {
	if _, err := io.Copy(io.Discard, attachment.Reader); err != nil {
		return "", err
	}
	return fmt.Sprintf("https://example.com/uploads/%s/%s", folder, attachment.FileName), nil
}

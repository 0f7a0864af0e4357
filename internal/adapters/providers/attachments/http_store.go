package attachments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/careloop/doctorbooking/internal/domain/providers"
	apperrors "github.com/careloop/doctorbooking/pkg/errors"
)

// HTTPStore implements AttachmentStore against an upload service that
// accepts multipart posts and returns the stored object's URL.
type HTTPStore struct {
	uploadURL string
	apiKey    string
	client    *http.Client
}

// NewHTTPStore creates a new HTTP-backed attachment store
func NewHTTPStore(uploadURL, apiKey string) providers.AttachmentStore {
	return &HTTPStore{
		uploadURL: uploadURL,
		apiKey:    apiKey,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Store uploads the attachment and returns its public URL
func (s *HTTPStore) Store(ctx context.Context, folder string, attachment providers.Attachment) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writer.WriteField("folder", folder); err != nil {
		return "", apperrors.NewInternalError("failed to build upload request", err)
	}
	part, err := writer.CreateFormFile("file", attachment.FileName)
	if err != nil {
		return "", apperrors.NewInternalError("failed to build upload request", err)
	}
	if _, err := io.Copy(part, attachment.Reader); err != nil {
		return "", apperrors.NewInternalError("failed to read attachment", err)
	}
	if err := writer.Close(); err != nil {
		return "", apperrors.NewInternalError("failed to build upload request", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.uploadURL, &buf)
	if err != nil {
		return "", apperrors.NewInternalError("failed to build upload request", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", apperrors.NewExternalError("attachment upload failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", apperrors.NewExternalError(fmt.Sprintf("attachment upload failed: status %d", resp.StatusCode), nil)
	}

	var result struct {
		SecureURL string `json:"secure_url"`
		URL       string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", apperrors.NewExternalError("failed to decode upload response", err)
	}
	if result.SecureURL != "" {
		return result.SecureURL, nil
	}
	if result.URL == "" {
		return "", apperrors.NewExternalError("upload response missing url", nil)
	}
	return result.URL, nil
}

package payments

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/careloop/doctorbooking/internal/domain/providers"
	apperrors "github.com/careloop/doctorbooking/pkg/errors"
)

// MockAdapter provides deterministic checkout sessions for local
// development. Sessions start unpaid; MarkPaid flips them so the
// confirmation path can be exercised end to end.
type MockAdapter struct {
	mu       sync.Mutex
	sessions map[string]*providers.SessionStatus
}

// NewMockAdapter creates a mock payment provider
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		sessions: make(map[string]*providers.SessionStatus),
	}
}

// CreateCheckoutSession returns a mock session reference
func (m *MockAdapter) CreateCheckoutSession(ctx context.Context, req providers.CheckoutRequest) (*providers.CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := fmt.Sprintf("mock_cs_%d", time.Now().UnixNano())
	url := fmt.Sprintf("https://example.com/checkout/%s", id)
	m.sessions[id] = &providers.SessionStatus{Paid: false, CheckoutURL: url}

	return &providers.CheckoutSession{SessionID: id, CheckoutURL: url}, nil
}

// RetrieveSession fetches the current status of a session
func (m *MockAdapter) RetrieveSession(ctx context.Context, sessionID string) (*providers.SessionStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status, ok := m.sessions[sessionID]
	if !ok {
		return nil, apperrors.NewExternalError("unknown mock session", nil)
	}
	copied := *status
	return &copied, nil
}

// MarkPaid flips a mock session to paid; development helper only
func (m *MockAdapter) MarkPaid(sessionID, methodType string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if status, ok := m.sessions[sessionID]; ok {
		status.Paid = true
		status.MethodType = methodType
	}
}

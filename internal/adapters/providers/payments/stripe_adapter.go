package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/careloop/doctorbooking/internal/domain/providers"
	apperrors "github.com/careloop/doctorbooking/pkg/errors"
	"github.com/careloop/doctorbooking/pkg/retry"
)

// StripeAdapter implements PaymentProvider against the Stripe Checkout
// API. Requests are form-encoded per the Stripe wire format; transient
// failures are retried within the request-path budget.
type StripeAdapter struct {
	secretKey string
	client    *http.Client
	baseURL   string
}

// NewStripeAdapter creates a new Stripe adapter
func NewStripeAdapter(secretKey string) providers.PaymentProvider {
	return &StripeAdapter{
		secretKey: secretKey,
		client:    &http.Client{Timeout: 10 * time.Second},
		baseURL:   "https://api.stripe.com/v1",
	}
}

// CreateCheckoutSession creates a hosted checkout session
func (a *StripeAdapter) CreateCheckoutSession(ctx context.Context, req providers.CheckoutRequest) (*providers.CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", req.SuccessURL)
	form.Set("cancel_url", req.CancelURL)
	form.Set("customer_email", req.CustomerEmail)
	form.Set("client_reference_id", req.AppointmentID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", req.Currency)
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(req.Amount, 10))
	form.Set("line_items[0][price_data][product_data][name]", req.Description)
	form.Set("metadata[appointment_id]", req.AppointmentID)

	var session struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	err := retry.Do(ctx, retry.ProviderConfig(), func() error {
		return a.do(ctx, "POST", "/checkout/sessions", form, &session)
	})
	if err != nil {
		return nil, apperrors.NewExternalError("failed to create checkout session", err)
	}

	return &providers.CheckoutSession{
		SessionID:   session.ID,
		CheckoutURL: session.URL,
	}, nil
}

// RetrieveSession fetches the current status of a session
func (a *StripeAdapter) RetrieveSession(ctx context.Context, sessionID string) (*providers.SessionStatus, error) {
	var session struct {
		PaymentStatus string `json:"payment_status"`
		URL           string `json:"url"`
		PaymentIntent *struct {
			PaymentMethod *struct {
				Type string `json:"type"`
			} `json:"payment_method"`
		} `json:"payment_intent"`
	}

	path := fmt.Sprintf("/checkout/sessions/%s?expand[]=payment_intent.payment_method", url.PathEscape(sessionID))
	err := retry.Do(ctx, retry.ProviderConfig(), func() error {
		return a.do(ctx, "GET", path, nil, &session)
	})
	if err != nil {
		return nil, apperrors.NewExternalError("failed to retrieve checkout session", err)
	}

	status := &providers.SessionStatus{
		Paid:        session.PaymentStatus == "paid",
		CheckoutURL: session.URL,
	}
	if session.PaymentIntent != nil && session.PaymentIntent.PaymentMethod != nil {
		status.MethodType = session.PaymentIntent.PaymentMethod.Type
	}
	return status, nil
}

func (a *StripeAdapter) do(ctx context.Context, method, path string, form url.Values, out interface{}) error {
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+a.secretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("stripe api error: status %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		return fmt.Errorf("stripe api error: status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

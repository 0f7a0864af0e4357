package payments

import (
	"github.com/rs/zerolog/log"

	"github.com/careloop/doctorbooking/internal/domain/providers"
	"github.com/careloop/doctorbooking/pkg/config"
)

// NewPaymentProvider selects the payment provider from configuration.
// An unset secret key falls back to the mock provider for local
// development; there is no runtime fallback from a configured provider
// because a silently mocked payment would confirm an unpaid booking.
func NewPaymentProvider(cfg *config.StripeConfig) providers.PaymentProvider {
	if cfg.Provider == "mock" || cfg.SecretKey == "" {
		log.Warn().Msg("Payment provider not configured, using mock checkout sessions")
		return NewMockAdapter()
	}
	return NewStripeAdapter(cfg.SecretKey)
}

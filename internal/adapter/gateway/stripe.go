package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"wallet-ledger/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
)

// StripeGateway charges a saved payment method through a confirmed PaymentIntent.
type StripeGateway struct {
	api *client.API
	log zerolog.Logger
}

// StripeConfig configures the Stripe adapter. APIURL overrides the Stripe endpoint (tests, proxies).
type StripeConfig struct {
	SecretKey string
	APIURL    string
	Timeout   time.Duration
}

// NewStripeGateway builds a Stripe client with its own HTTP client and no SDK-level retries.
func NewStripeGateway(cfg StripeConfig, log zerolog.Logger) *StripeGateway {
	backendCfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: cfg.Timeout},
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	}
	if cfg.APIURL != "" {
		backendCfg.URL = stripe.String(cfg.APIURL)
	}

	api := client.New(cfg.SecretKey, &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendCfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendCfg),
	})

	return &StripeGateway{api: api, log: log}
}

// Charge creates and confirms a PaymentIntent. The idempotency key is forwarded so a
// resubmitted attempt cannot bill twice.
func (g *StripeGateway) Charge(ctx context.Context, req ports.ChargeRequest) (*ports.ChargeResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.Amount),
		Currency:      stripe.String(strings.ToLower(req.Currency)),
		PaymentMethod: stripe.String(req.PaymentMethodRef),
		Confirm:       stripe.Bool(true),
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			if stripeErr.Type == stripe.ErrorTypeCard {
				g.log.Info().
					Str("code", string(stripeErr.Code)).
					Str("decline_code", string(stripeErr.DeclineCode)).
					Msg("Stripe declined charge")
				return &ports.ChargeResult{
					Status:        ports.ChargeStatusDeclined,
					DeclineReason: declineReason(stripeErr),
				}, nil
			}
			if stripeErr.HTTPStatusCode >= http.StatusInternalServerError {
				return nil, fmt.Errorf("stripe payment intent: %s: %w", stripeErr.Msg, ErrServer)
			}
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("stripe payment intent: %w", ErrTimeout)
		}
		return nil, fmt.Errorf("stripe payment intent: %w", err)
	}

	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		reason := "payment intent " + string(pi.Status)
		if pi.LastPaymentError != nil {
			reason = declineReason(pi.LastPaymentError)
		}
		return &ports.ChargeResult{
			Status:        ports.ChargeStatusDeclined,
			ChargeID:      pi.ID,
			DeclineReason: reason,
		}, nil
	}

	return &ports.ChargeResult{
		Status:   ports.ChargeStatusSucceeded,
		ChargeID: pi.ID,
	}, nil
}

func declineReason(e *stripe.Error) string {
	if e.DeclineCode != "" {
		return string(e.DeclineCode)
	}
	if e.Code != "" {
		return string(e.Code)
	}
	return e.Msg
}

// Package stripe implements checkout.Provider on Stripe payment intents.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	stripeapi "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/paymentintent"

	"studioops/backend/internal/checkout"
	"studioops/backend/internal/domain"
)

const metadataAppointmentID = "appointment_id"

type Config struct {
	SecretKey string
	// AccountID, when set, routes intents to a connected account.
	AccountID string
	Currency  string
	// BaseURL overrides the API endpoint. Empty means Stripe's.
	BaseURL string
	Timeout time.Duration
}

type Provider struct {
	client    paymentintent.Client
	accountID string
	currency  string
}

func New(cfg Config) (*Provider, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, errors.New("stripe secret key is required")
	}
	if cfg.Currency == "" {
		cfg.Currency = string(stripeapi.CurrencyUSD)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	backendCfg := &stripeapi.BackendConfig{
		HTTPClient:        &http.Client{Timeout: cfg.Timeout},
		MaxNetworkRetries: stripeapi.Int64(0),
		LeveledLogger:     &stripeapi.LeveledLogger{Level: stripeapi.LevelError},
	}
	if cfg.BaseURL != "" {
		backendCfg.URL = stripeapi.String(cfg.BaseURL)
	}

	return &Provider{
		client: paymentintent.Client{
			B:   stripeapi.GetBackendWithConfig(stripeapi.APIBackend, backendCfg),
			Key: cfg.SecretKey,
		},
		accountID: cfg.AccountID,
		currency:  strings.ToLower(cfg.Currency),
	}, nil
}

func (p *Provider) CreateIntent(ctx context.Context, appointmentID uuid.UUID, amount domain.Money) (checkout.Intent, error) {
	params := &stripeapi.PaymentIntentParams{
		Amount:             stripeapi.Int64(int64(amount)),
		Currency:           stripeapi.String(p.currency),
		PaymentMethodTypes: stripeapi.StringSlice([]string{"card"}),
	}
	params.Context = ctx
	params.AddMetadata(metadataAppointmentID, appointmentID.String())
	p.scope(&params.Params)

	pi, err := p.client.New(params)
	if err != nil {
		return checkout.Intent{}, translate(err)
	}
	return checkout.Intent{
		IntentID:     pi.ID,
		ClientSecret: pi.ClientSecret,
		AccountID:    p.accountID,
		Amount:       domain.Money(pi.Amount),
	}, nil
}

func (p *Provider) ConfirmIntent(ctx context.Context, clientSecret, paymentMethodID string) error {
	intentID, ok := checkout.IntentIDFromSecret(clientSecret)
	if !ok {
		return &checkout.ProviderError{Message: "invalid client secret"}
	}

	var (
		pi  *stripeapi.PaymentIntent
		err error
	)
	if paymentMethodID != "" {
		params := &stripeapi.PaymentIntentConfirmParams{
			PaymentMethod: stripeapi.String(paymentMethodID),
		}
		params.Context = ctx
		p.scope(&params.Params)
		pi, err = p.client.Confirm(intentID, params)
	} else {
		params := &stripeapi.PaymentIntentParams{}
		params.Context = ctx
		p.scope(&params.Params)
		pi, err = p.client.Get(intentID, params)
	}
	if err != nil {
		return translate(err)
	}

	switch pi.Status {
	case stripeapi.PaymentIntentStatusSucceeded, stripeapi.PaymentIntentStatusProcessing:
		return nil
	}
	if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
		return &checkout.ProviderError{Message: pi.LastPaymentError.Msg}
	}
	return &checkout.ProviderError{Message: fmt.Sprintf("payment %s", strings.ReplaceAll(string(pi.Status), "_", " "))}
}

func (p *Provider) IntentDetails(ctx context.Context, intentID string) (checkout.IntentDetails, error) {
	params := &stripeapi.PaymentIntentParams{}
	params.Context = ctx
	params.AddExpand("latest_charge")
	p.scope(&params.Params)

	pi, err := p.client.Get(intentID, params)
	if err != nil {
		return checkout.IntentDetails{}, translate(err)
	}

	details := checkout.IntentDetails{
		Reference: pi.ID,
		Amount:    domain.Money(pi.AmountReceived),
		Succeeded: pi.Status == stripeapi.PaymentIntentStatusSucceeded,
	}
	if ch := pi.LatestCharge; ch != nil && ch.PaymentMethodDetails != nil && ch.PaymentMethodDetails.Card != nil {
		details.CardBrand = string(ch.PaymentMethodDetails.Card.Brand)
		details.CardLast4 = ch.PaymentMethodDetails.Card.Last4
	}
	return details, nil
}

func (p *Provider) scope(params *stripeapi.Params) {
	if p.accountID != "" {
		params.SetStripeAccount(p.accountID)
	}
}

// translate keeps Stripe's user-facing message, such as a decline reason.
func translate(err error) error {
	var se *stripeapi.Error
	if errors.As(err, &se) && se.Msg != "" {
		return &checkout.ProviderError{Message: se.Msg, Err: err}
	}
	return &checkout.ProviderError{Message: err.Error(), Err: err}
}

var _ checkout.Provider = (*Provider)(nil)

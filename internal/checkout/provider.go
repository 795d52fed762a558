package checkout

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"studioops/backend/internal/domain"
)

// Provider is the external card processor.
type Provider interface {
	CreateIntent(ctx context.Context, appointmentID uuid.UUID, amount domain.Money) (Intent, error)
	// ConfirmIntent confirms with paymentMethodID when given, otherwise it
	// checks that the client already confirmed the intent.
	ConfirmIntent(ctx context.Context, clientSecret, paymentMethodID string) error
	IntentDetails(ctx context.Context, intentID string) (IntentDetails, error)
}

type Intent struct {
	IntentID     string       `json:"intent_id"`
	ClientSecret string       `json:"client_secret"`
	AccountID    string       `json:"provider_account_id"`
	Amount       domain.Money `json:"amount"`
}

type IntentDetails struct {
	Reference string
	CardBrand string
	CardLast4 string
	Amount    domain.Money
	Succeeded bool
}

// ProviderError carries the processor's own message, such as a card decline,
// so it can be shown to the operator as-is.
type ProviderError struct {
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IntentIDFromSecret recovers the intent id from a client secret of the form
// "<intent id>_secret_<random>".
func IntentIDFromSecret(clientSecret string) (string, bool) {
	id, _, ok := strings.Cut(clientSecret, "_secret_")
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

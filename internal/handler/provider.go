package handler

import (
	"context"

	"github.com/coachware/coachpay/internal/model"
	"github.com/coachware/coachpay/internal/stripeapi"
)

// ProviderClient is the slice of the payment-provider wrapper the
// handlers consume. *stripeapi.Client satisfies it; tests substitute
// fakes.
type ProviderClient interface {
	CreateCustomer(email, name string) (string, error)
	CreateConnectedAccount(email, name string) (string, error)
	CreateOnboardingLink(accountID, refreshURL, returnURL string) (string, error)
	GetAccountStatus(accountID string) (*model.AccountStatus, error)
	CreateProduct(name string) (string, error)
	DeactivateProduct(productID string) error
	CreateRecurringPrice(productID string, amountCents int64, currency, interval string) (string, error)
	CreateCheckoutSession(p stripeapi.CheckoutParams) (sessionID, url string, err error)
	CreateTerminalPaymentIntent(p stripeapi.TerminalChargeParams) (intentID, clientSecret string, err error)
	CreateConnectionToken(accountID string) (string, error)
	VerifyWebhookSignature(payload []byte, sigHeader string) error
	FetchThinEvent(ctx context.Context, eventID string) (*stripeapi.ThinEvent, error)
}

var _ ProviderClient = (*stripeapi.Client)(nil)

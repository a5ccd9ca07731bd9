// Package stripeapi wraps the Stripe SDK calls the payment handlers
// need. The client is constructed once in main and injected; handlers
// never touch the SDK directly.
package stripeapi

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	stripe "github.com/stripe/stripe-go/v82"

	"github.com/coachware/coachpay/internal/model"
	"github.com/stripe/stripe-go/v82/account"
	"github.com/stripe/stripe-go/v82/accountlink"
	checksession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/price"
	"github.com/stripe/stripe-go/v82/product"
	"github.com/stripe/stripe-go/v82/terminal/connectiontoken"
	"github.com/stripe/stripe-go/v82/webhook"
)

type Config struct {
	SecretKey     string
	WebhookSecret string
	// APIBase overrides the API host for the thin-event fetch; tests
	// point it at a local server. Empty means the production host.
	APIBase    string
	HTTPClient *http.Client
}

type Client struct {
	cfg        Config
	apiBase    string
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	stripe.Key = cfg.SecretKey
	base := cfg.APIBase
	if base == "" {
		base = "https://api.stripe.com"
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{cfg: cfg, apiBase: base, httpClient: hc}
}

// CreateCustomer creates a Stripe customer and returns the customer ID.
func (c *Client) CreateCustomer(email, name string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	if name != "" {
		params.Name = stripe.String(name)
	}
	cust, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	return cust.ID, nil
}

// CreateConnectedAccount creates an Express sub-merchant account for a coach.
func (c *Client) CreateConnectedAccount(email, name string) (string, error) {
	params := &stripe.AccountParams{
		Type:  stripe.String(string(stripe.AccountTypeExpress)),
		Email: stripe.String(email),
		BusinessProfile: &stripe.AccountBusinessProfileParams{
			Name: stripe.String(name),
		},
		Capabilities: &stripe.AccountCapabilitiesParams{
			CardPayments: &stripe.AccountCapabilitiesCardPaymentsParams{
				Requested: stripe.Bool(true),
			},
			Transfers: &stripe.AccountCapabilitiesTransfersParams{
				Requested: stripe.Bool(true),
			},
		},
	}
	acct, err := account.New(params)
	if err != nil {
		return "", fmt.Errorf("create connected account: %w", err)
	}
	return acct.ID, nil
}

// CreateOnboardingLink generates a single-use onboarding redirect for a
// connected account. Completion must be re-checked via GetAccount, not
// inferred from the return redirect.
func (c *Client) CreateOnboardingLink(accountID, refreshURL, returnURL string) (string, error) {
	params := &stripe.AccountLinkParams{
		Account:    stripe.String(accountID),
		RefreshURL: stripe.String(refreshURL),
		ReturnURL:  stripe.String(returnURL),
		Type:       stripe.String(string(stripe.AccountLinkTypeAccountOnboarding)),
	}
	link, err := accountlink.New(params)
	if err != nil {
		return "", fmt.Errorf("create onboarding link: %w", err)
	}
	return link.URL, nil
}

// GetAccountStatus fetches the live connected-account state. Onboarding
// changes outside this system's control, so the result is never cached
// beyond the request.
func (c *Client) GetAccountStatus(accountID string) (*model.AccountStatus, error) {
	acct, err := account.GetByID(accountID, nil)
	if err != nil {
		return nil, fmt.Errorf("get connected account: %w", err)
	}
	return &model.AccountStatus{
		AccountID:          acct.ID,
		OnboardingComplete: acct.DetailsSubmitted,
		ChargesEnabled:     acct.ChargesEnabled,
		PayoutsEnabled:     acct.PayoutsEnabled,
	}, nil
}

// CreateProduct creates an upstream product for a recurring plan.
func (c *Client) CreateProduct(name string) (string, error) {
	p, err := product.New(&stripe.ProductParams{
		Name: stripe.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("create product: %w", err)
	}
	return p.ID, nil
}

// DeactivateProduct marks a product inactive. Products with live
// subscribers cannot be deleted, so archiving is the only removal path.
func (c *Client) DeactivateProduct(productID string) error {
	_, err := product.Update(productID, &stripe.ProductParams{
		Active: stripe.Bool(false),
	})
	if err != nil {
		return fmt.Errorf("deactivate product: %w", err)
	}
	return nil
}

// CreateRecurringPrice creates a recurring price under a product.
func (c *Client) CreateRecurringPrice(productID string, amountCents int64, currency, interval string) (string, error) {
	p, err := price.New(&stripe.PriceParams{
		Product:    stripe.String(productID),
		UnitAmount: stripe.Int64(amountCents),
		Currency:   stripe.String(currency),
		Recurring: &stripe.PriceRecurringParams{
			Interval: stripe.String(interval),
		},
	})
	if err != nil {
		return "", fmt.Errorf("create recurring price: %w", err)
	}
	return p.ID, nil
}

// CheckoutParams describes one checkout session. Destination and
// ApplicationFeeCents are both set or both empty: callers must omit the
// fee split entirely when the coach cannot take destination charges.
type CheckoutParams struct {
	CustomerID          string
	Mode                string // "payment" or "subscription"
	AmountCents         int64  // ad-hoc price, one-time kinds
	Currency            string
	Description         string
	PriceID             string // stored recurring price, subscription kinds
	TrialDays           int64
	Destination         string
	ApplicationFeeCents int64
	SuccessURL          string
	CancelURL           string
}

// CreateCheckoutSession builds a checkout session and returns its id and URL.
func (c *Client) CreateCheckoutSession(p CheckoutParams) (sessionID, url string, err error) {
	params := &stripe.CheckoutSessionParams{
		Customer:   stripe.String(p.CustomerID),
		Mode:       stripe.String(p.Mode),
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
	}
	params.SetIdempotencyKey(uuid.NewString())

	if p.PriceID != "" {
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(p.PriceID),
			Quantity: stripe.Int64(1),
		}}
	} else {
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(p.Currency),
				UnitAmount: stripe.Int64(p.AmountCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(p.Description),
				},
			},
			Quantity: stripe.Int64(1),
		}}
	}

	switch p.Mode {
	case string(stripe.CheckoutSessionModePayment):
		if p.Destination != "" {
			params.PaymentIntentData = &stripe.CheckoutSessionPaymentIntentDataParams{
				ApplicationFeeAmount: stripe.Int64(p.ApplicationFeeCents),
				TransferData: &stripe.CheckoutSessionPaymentIntentDataTransferDataParams{
					Destination: stripe.String(p.Destination),
				},
			}
		}
	case string(stripe.CheckoutSessionModeSubscription):
		if p.TrialDays > 0 {
			params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
				TrialPeriodDays: stripe.Int64(p.TrialDays),
			}
		}
	}

	sess, err := checksession.New(params)
	if err != nil {
		return "", "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.ID, sess.URL, nil
}

// TerminalChargeParams describes a card-present payment intent routed
// as a destination charge with the coach as merchant of record.
type TerminalChargeParams struct {
	CustomerID          string
	AmountCents         int64
	Currency            string
	Description         string
	AccountID           string
	ApplicationFeeCents int64
	CaptureMethod       string
}

// CreateTerminalPaymentIntent creates a card-present payment intent and
// returns its id and client secret.
func (c *Client) CreateTerminalPaymentIntent(p TerminalChargeParams) (intentID, clientSecret string, err error) {
	params := &stripe.PaymentIntentParams{
		Amount:               stripe.Int64(p.AmountCents),
		Currency:             stripe.String(p.Currency),
		Customer:             stripe.String(p.CustomerID),
		Description:          stripe.String(p.Description),
		PaymentMethodTypes:   stripe.StringSlice([]string{"card_present"}),
		CaptureMethod:        stripe.String(p.CaptureMethod),
		OnBehalfOf:           stripe.String(p.AccountID),
		ApplicationFeeAmount: stripe.Int64(p.ApplicationFeeCents),
		TransferData: &stripe.PaymentIntentTransferDataParams{
			Destination: stripe.String(p.AccountID),
		},
	}
	params.SetIdempotencyKey(uuid.NewString())
	pi, err := paymentintent.New(params)
	if err != nil {
		return "", "", fmt.Errorf("create terminal payment intent: %w", err)
	}
	return pi.ID, pi.ClientSecret, nil
}

// CreateConnectionToken issues a reader credential scoped to the given
// connected account.
func (c *Client) CreateConnectionToken(accountID string) (string, error) {
	params := &stripe.TerminalConnectionTokenParams{}
	params.SetStripeAccount(accountID)
	tok, err := connectiontoken.New(params)
	if err != nil {
		return "", fmt.Errorf("create connection token: %w", err)
	}
	return tok.Secret, nil
}

// VerifyWebhookSignature checks the Stripe-Signature header against the
// raw payload. Nothing may be parsed before this passes.
func (c *Client) VerifyWebhookSignature(payload []byte, sigHeader string) error {
	return webhook.ValidatePayload(payload, sigHeader, c.cfg.WebhookSecret)
}

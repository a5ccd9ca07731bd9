package handler

import (
	"context"
	"database/sql"
	"testing"

	"github.com/coachware/coachpay/internal/database"
	"github.com/coachware/coachpay/internal/model"
	"github.com/coachware/coachpay/internal/stripeapi"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// fakeProvider is a canned ProviderClient. Tests embed it and override
// the methods they exercise; every call is recorded for assertions.
type fakeProvider struct {
	customers      int
	accounts       int
	checkouts      []stripeapi.CheckoutParams
	terminalCharge []stripeapi.TerminalChargeParams
	deactivated    []string
	accountStatus  *model.AccountStatus
	err            error
}

func (p *fakeProvider) CreateCustomer(email, name string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.customers++
	return "cus_fake", nil
}

func (p *fakeProvider) CreateConnectedAccount(email, name string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.accounts++
	return "acct_fake", nil
}

func (p *fakeProvider) CreateOnboardingLink(accountID, refreshURL, returnURL string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return "https://connect.stripe.example/onboard", nil
}

func (p *fakeProvider) GetAccountStatus(accountID string) (*model.AccountStatus, error) {
	if p.err != nil {
		return nil, p.err
	}
	if p.accountStatus != nil {
		return p.accountStatus, nil
	}
	return &model.AccountStatus{AccountID: accountID}, nil
}

func (p *fakeProvider) CreateProduct(name string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return "prod_fake", nil
}

func (p *fakeProvider) DeactivateProduct(productID string) error {
	if p.err != nil {
		return p.err
	}
	p.deactivated = append(p.deactivated, productID)
	return nil
}

func (p *fakeProvider) CreateRecurringPrice(productID string, amountCents int64, currency, interval string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return "price_fake", nil
}

func (p *fakeProvider) CreateCheckoutSession(params stripeapi.CheckoutParams) (string, string, error) {
	if p.err != nil {
		return "", "", p.err
	}
	p.checkouts = append(p.checkouts, params)
	return "cs_fake", "https://checkout.stripe.example/cs_fake", nil
}

func (p *fakeProvider) CreateTerminalPaymentIntent(params stripeapi.TerminalChargeParams) (string, string, error) {
	if p.err != nil {
		return "", "", p.err
	}
	p.terminalCharge = append(p.terminalCharge, params)
	return "pi_fake", "pi_fake_secret", nil
}

func (p *fakeProvider) CreateConnectionToken(accountID string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return "pst_fake", nil
}

func (p *fakeProvider) VerifyWebhookSignature(payload []byte, sigHeader string) error {
	return nil
}

func (p *fakeProvider) FetchThinEvent(ctx context.Context, eventID string) (*stripeapi.ThinEvent, error) {
	return nil, p.err
}

package model

import "time"

// Person roles.
const (
	RoleCoach  = "coach"
	RoleClient = "client"
)

type Person struct {
	ID               int64     `json:"id"`
	Role             string    `json:"role"`
	Email            string    `json:"email"`
	Name             string    `json:"name"`
	StripeCustomerID *string   `json:"stripe_customer_id"`
	StripeAccountID  *string   `json:"stripe_account_id"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// AccountStatus is the provider-derived onboarding state of a coach's
// connected account. Never persisted; fetched per request.
type AccountStatus struct {
	AccountID          string `json:"account_id"`
	OnboardingComplete bool   `json:"onboarding_complete"`
	ChargesEnabled     bool   `json:"charges_enabled"`
	PayoutsEnabled     bool   `json:"payouts_enabled"`
}

type Plan struct {
	ID                int64     `json:"id"`
	CoachID           int64     `json:"coach_id"`
	Name              string    `json:"name"`
	AmountCents       int64     `json:"amount_cents"`
	Currency          string    `json:"currency"`
	Interval          string    `json:"interval"`
	Addon             bool      `json:"addon"`
	StripeProductID   string    `json:"stripe_product_id"`
	StripePriceID     string    `json:"stripe_price_id"`
	Active            bool      `json:"active"`
	CheckoutSessionID *string   `json:"checkout_session_id"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type Program struct {
	ID                int64     `json:"id"`
	CoachID           int64     `json:"coach_id"`
	Title             string    `json:"title"`
	PriceCents        int64     `json:"price_cents"`
	Currency          string    `json:"currency"`
	CheckoutSessionID *string   `json:"checkout_session_id"`
	CreatedAt         time.Time `json:"created_at"`
}

type Appointment struct {
	ID                int64     `json:"id"`
	CoachID           int64     `json:"coach_id"`
	ClientID          int64     `json:"client_id"`
	Description       string    `json:"description"`
	PriceCents        int64     `json:"price_cents"`
	Currency          string    `json:"currency"`
	StartsAt          time.Time `json:"starts_at"`
	CheckoutSessionID *string   `json:"checkout_session_id"`
	CreatedAt         time.Time `json:"created_at"`
}

// Payment is a record of a direct (terminal) or session-based charge.
type Payment struct {
	ID              int64     `json:"id"`
	CoachID         int64     `json:"coach_id"`
	Kind            string    `json:"kind"`
	AmountCents     int64     `json:"amount_cents"`
	FeeCents        int64     `json:"fee_cents"`
	Currency        string    `json:"currency"`
	Description     string    `json:"description"`
	PaymentIntentID *string   `json:"payment_intent_id"`
	CreatedAt       time.Time `json:"created_at"`
}

// Subscription tiers.
const (
	TierFree = "free"
	TierPaid = "paid"
)

// FreeClientLimit is the client cap applied to free-tier coaches.
const FreeClientLimit = 5

// Subscription is the convergence point of the two entitlement sources:
// the Stripe webhook path writes the web_* fields, the mobile sync path
// writes the mobile_* fields, and the effective tier is recomputed from
// both so neither writer clobbers the other.
type Subscription struct {
	ID                   int64      `json:"id"`
	CoachID              int64      `json:"coach_id"`
	Tier                 string     `json:"tier"`
	ClientLimit          *int64     `json:"client_limit"`
	ExpiresAt            *time.Time `json:"expires_at"`
	WebStatus            string     `json:"web_status"`
	StripeSubscriptionID *string    `json:"stripe_subscription_id"`
	CancelAtPeriodEnd    bool       `json:"cancel_at_period_end"`
	WebPeriodEnd         *time.Time `json:"web_period_end"`
	MobileActive         bool       `json:"mobile_active"`
	MobileExpiresAt      *time.Time `json:"mobile_expires_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// WebhookEvent tracks a processed provider event id for deduplication.
type WebhookEvent struct {
	ID          int64     `json:"id"`
	EventID     string    `json:"event_id"`
	Type        string    `json:"type"`
	ProcessedAt time.Time `json:"processed_at"`
}

type Session struct {
	ID        int64     `json:"id"`
	Token     string    `json:"token"`
	PersonID  int64     `json:"person_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

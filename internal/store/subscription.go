package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/coachware/coachpay/internal/model"
)

// SubscriptionStore holds one row per coach that both the webhook
// reconciliation path and the mobile entitlement sync write to. Each
// writer updates only its own source columns and then recomputes the
// effective tier, so the two never clobber each other's input.
type SubscriptionStore struct {
	db *sql.DB
}

func NewSubscriptionStore(db *sql.DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

func scanSubscription(scanner interface{ Scan(...any) error }) (*model.Subscription, error) {
	var sub model.Subscription
	var clientLimit sql.NullInt64
	var expiresAt, webPeriodEnd, mobileExpiresAt sql.NullTime
	var stripeSubID sql.NullString
	var cancelAtPeriodEnd, mobileActive int
	err := scanner.Scan(
		&sub.ID, &sub.CoachID, &sub.Tier, &clientLimit, &expiresAt,
		&sub.WebStatus, &stripeSubID, &cancelAtPeriodEnd, &webPeriodEnd,
		&mobileActive, &mobileExpiresAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if clientLimit.Valid {
		sub.ClientLimit = &clientLimit.Int64
	}
	if expiresAt.Valid {
		sub.ExpiresAt = &expiresAt.Time
	}
	if stripeSubID.Valid {
		sub.StripeSubscriptionID = &stripeSubID.String
	}
	if webPeriodEnd.Valid {
		sub.WebPeriodEnd = &webPeriodEnd.Time
	}
	if mobileExpiresAt.Valid {
		sub.MobileExpiresAt = &mobileExpiresAt.Time
	}
	sub.CancelAtPeriodEnd = cancelAtPeriodEnd != 0
	sub.MobileActive = mobileActive != 0
	return &sub, nil
}

const subscriptionCols = `id, coach_id, tier, client_limit, expires_at, web_status, stripe_subscription_id, cancel_at_period_end, web_period_end, mobile_active, mobile_expires_at, updated_at`

// Ensure returns the coach's subscription row, creating a free-tier row
// on first use.
func (s *SubscriptionStore) Ensure(coachID int64) (*model.Subscription, error) {
	sub, err := s.GetByCoachID(coachID)
	if err != nil {
		return nil, err
	}
	if sub != nil {
		return sub, nil
	}
	limit := int64(model.FreeClientLimit)
	_, err = s.db.Exec(
		`INSERT INTO subscriptions (coach_id, tier, client_limit) VALUES (?, ?, ?)
		 ON CONFLICT(coach_id) DO NOTHING`,
		coachID, model.TierFree, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("insert subscription: %w", err)
	}
	return s.GetByCoachID(coachID)
}

func (s *SubscriptionStore) GetByCoachID(coachID int64) (*model.Subscription, error) {
	row := s.db.QueryRow(`SELECT `+subscriptionCols+` FROM subscriptions WHERE coach_id = ?`, coachID)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription by coach: %w", err)
	}
	return sub, nil
}

func (s *SubscriptionStore) GetByStripeID(stripeSubID string) (*model.Subscription, error) {
	row := s.db.QueryRow(
		`SELECT `+subscriptionCols+` FROM subscriptions WHERE stripe_subscription_id = ?`,
		stripeSubID,
	)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription by stripe id: %w", err)
	}
	return sub, nil
}

// SetWebState records the provider subscription state for a coach and
// recomputes the effective tier.
func (s *SubscriptionStore) SetWebState(coachID int64, status, stripeSubID string, cancelAtPeriodEnd bool, periodEnd *time.Time) (*model.Subscription, error) {
	if _, err := s.Ensure(coachID); err != nil {
		return nil, err
	}
	cancel := 0
	if cancelAtPeriodEnd {
		cancel = 1
	}
	var subID any
	if stripeSubID != "" {
		subID = stripeSubID
	}
	var end any
	if periodEnd != nil {
		end = periodEnd.UTC()
	}
	_, err := s.db.Exec(
		`UPDATE subscriptions SET web_status = ?, stripe_subscription_id = COALESCE(?, stripe_subscription_id),
		 cancel_at_period_end = ?, web_period_end = ?, updated_at = CURRENT_TIMESTAMP WHERE coach_id = ?`,
		status, subID, cancel, end, coachID,
	)
	if err != nil {
		return nil, fmt.Errorf("set web subscription state: %w", err)
	}
	return s.recompute(coachID)
}

// SetMobileState records the mobile entitlement for a coach and
// recomputes the effective tier.
func (s *SubscriptionStore) SetMobileState(coachID int64, active bool, expiresAt *time.Time) (*model.Subscription, error) {
	if _, err := s.Ensure(coachID); err != nil {
		return nil, err
	}
	activeInt := 0
	if active {
		activeInt = 1
	}
	var end any
	if expiresAt != nil {
		end = expiresAt.UTC()
	}
	_, err := s.db.Exec(
		`UPDATE subscriptions SET mobile_active = ?, mobile_expires_at = ?, updated_at = CURRENT_TIMESTAMP WHERE coach_id = ?`,
		activeInt, end, coachID,
	)
	if err != nil {
		return nil, fmt.Errorf("set mobile subscription state: %w", err)
	}
	return s.recompute(coachID)
}

// Recompute re-derives the effective tier from the stored source
// columns without changing either source's input.
func (s *SubscriptionStore) Recompute(coachID int64) (*model.Subscription, error) {
	if _, err := s.Ensure(coachID); err != nil {
		return nil, err
	}
	return s.recompute(coachID)
}

func (s *SubscriptionStore) recompute(coachID int64) (*model.Subscription, error) {
	sub, err := s.GetByCoachID(coachID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, fmt.Errorf("recompute subscription: coach %d has no row", coachID)
	}
	tier, limit, expiresAt := model.ComputeEntitlement(sub.WebStatus, sub.WebPeriodEnd, sub.MobileActive, sub.MobileExpiresAt)
	var limitVal any
	if limit != nil {
		limitVal = *limit
	}
	var expVal any
	if expiresAt != nil {
		expVal = expiresAt.UTC()
	}
	_, err = s.db.Exec(
		`UPDATE subscriptions SET tier = ?, client_limit = ?, expires_at = ? WHERE coach_id = ?`,
		tier, limitVal, expVal, coachID,
	)
	if err != nil {
		return nil, fmt.Errorf("recompute subscription: %w", err)
	}
	return s.GetByCoachID(coachID)
}

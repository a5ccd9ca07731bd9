package store

import (
	"testing"
	"time"

	"github.com/coachware/coachpay/internal/model"
)

func setupSubscriptionTest(t *testing.T) (*SubscriptionStore, *model.Person) {
	t.Helper()
	db := setupTestDB(t)
	coach, err := NewPersonStore(db).Create(model.RoleCoach, "coach@example.com", "Coach", "")
	if err != nil {
		t.Fatalf("create coach: %v", err)
	}
	return NewSubscriptionStore(db), coach
}

func TestSubscriptionEnsureDefaultsToFree(t *testing.T) {
	ss, coach := setupSubscriptionTest(t)

	sub, err := ss.Ensure(coach.ID)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if sub.Tier != model.TierFree {
		t.Errorf("tier = %q, want %q", sub.Tier, model.TierFree)
	}
	if sub.ClientLimit == nil || *sub.ClientLimit != model.FreeClientLimit {
		t.Errorf("client limit = %v, want %d", sub.ClientLimit, model.FreeClientLimit)
	}
	if sub.ExpiresAt != nil {
		t.Error("expected nil expiry on free tier")
	}
}

func TestSubscriptionEnsureIdempotent(t *testing.T) {
	ss, coach := setupSubscriptionTest(t)

	first, _ := ss.Ensure(coach.ID)
	second, err := ss.Ensure(coach.ID)
	if err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("ensure created a second row: %d vs %d", first.ID, second.ID)
	}
}

func TestSubscriptionWebStateActivates(t *testing.T) {
	ss, coach := setupSubscriptionTest(t)

	periodEnd := time.Now().UTC().Add(30 * 24 * time.Hour)
	sub, err := ss.SetWebState(coach.ID, "active", "sub_123", false, &periodEnd)
	if err != nil {
		t.Fatalf("set web state: %v", err)
	}
	if sub.Tier != model.TierPaid {
		t.Errorf("tier = %q, want %q", sub.Tier, model.TierPaid)
	}
	if sub.ClientLimit != nil {
		t.Error("expected nil client limit on paid tier")
	}
	if sub.ExpiresAt == nil {
		t.Fatal("expected expiry from web period end")
	}
}

func TestSubscriptionWebCancellationDowngrades(t *testing.T) {
	ss, coach := setupSubscriptionTest(t)

	periodEnd := time.Now().UTC().Add(30 * 24 * time.Hour)
	ss.SetWebState(coach.ID, "active", "sub_123", false, &periodEnd)

	sub, err := ss.SetWebState(coach.ID, "canceled", "sub_123", false, nil)
	if err != nil {
		t.Fatalf("set web state: %v", err)
	}
	if sub.Tier != model.TierFree {
		t.Errorf("tier = %q, want %q", sub.Tier, model.TierFree)
	}
	if sub.ClientLimit == nil || *sub.ClientLimit != model.FreeClientLimit {
		t.Errorf("client limit = %v, want %d", sub.ClientLimit, model.FreeClientLimit)
	}
}

func TestSubscriptionMobileLapseKeepsActiveWebSub(t *testing.T) {
	ss, coach := setupSubscriptionTest(t)

	periodEnd := time.Now().UTC().Add(30 * 24 * time.Hour)
	ss.SetWebState(coach.ID, "active", "sub_123", false, &periodEnd)

	// A lapsed mobile entitlement must not clobber a live web subscription.
	sub, err := ss.SetMobileState(coach.ID, false, nil)
	if err != nil {
		t.Fatalf("set mobile state: %v", err)
	}
	if sub.Tier != model.TierPaid {
		t.Errorf("tier = %q, want %q", sub.Tier, model.TierPaid)
	}
}

func TestSubscriptionMobileLifetime(t *testing.T) {
	ss, coach := setupSubscriptionTest(t)

	sub, err := ss.SetMobileState(coach.ID, true, &model.LifetimeExpiry)
	if err != nil {
		t.Fatalf("set mobile state: %v", err)
	}
	if sub.Tier != model.TierPaid {
		t.Errorf("tier = %q, want %q", sub.Tier, model.TierPaid)
	}
	if sub.ExpiresAt == nil || !sub.ExpiresAt.Equal(model.LifetimeExpiry) {
		t.Errorf("expires at = %v, want lifetime sentinel", sub.ExpiresAt)
	}
}

func TestSubscriptionLaterExpiryWins(t *testing.T) {
	ss, coach := setupSubscriptionTest(t)

	webEnd := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	mobileEnd := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	ss.SetWebState(coach.ID, "active", "sub_123", false, &webEnd)
	sub, _ := ss.SetMobileState(coach.ID, true, &mobileEnd)

	if sub.ExpiresAt == nil || !sub.ExpiresAt.Equal(mobileEnd) {
		t.Errorf("expires at = %v, want later mobile expiry %v", sub.ExpiresAt, mobileEnd)
	}
}

func TestSubscriptionGetByStripeID(t *testing.T) {
	ss, coach := setupSubscriptionTest(t)

	ss.SetWebState(coach.ID, "active", "sub_abc", false, nil)
	sub, err := ss.GetByStripeID("sub_abc")
	if err != nil {
		t.Fatalf("get by stripe id: %v", err)
	}
	if sub == nil {
		t.Fatal("expected subscription, got nil")
	}
	if sub.CoachID != coach.ID {
		t.Errorf("coach id = %d, want %d", sub.CoachID, coach.ID)
	}
}

package handler

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coachware/coachpay/internal/model"
	"github.com/coachware/coachpay/internal/store"
	"github.com/coachware/coachpay/internal/stripeapi"
)

func TestClassifyEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    envelopeKind
	}{
		{
			name:    "standard event with data.object",
			payload: `{"id":"evt_1","type":"customer.updated","data":{"object":{"id":"cus_1"}}}`,
			want:    envelopeStandard,
		},
		{
			name:    "thin event with related_object and no data",
			payload: `{"id":"evt_2","type":"customer.subscription.updated","related_object":{"id":"sub_1","type":"subscription"}}`,
			want:    envelopeThin,
		},
		{
			name:    "thin event with empty data",
			payload: `{"id":"evt_3","type":"account.updated","related_object":{"id":"acct_1"},"data":{}}`,
			want:    envelopeThin,
		},
		{
			name:    "both related_object and data.object treated as standard",
			payload: `{"id":"evt_4","related_object":{"id":"x"},"data":{"object":{"id":"x"}}}`,
			want:    envelopeStandard,
		},
		{
			name:    "garbage treated as standard",
			payload: `not json at all`,
			want:    envelopeStandard,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyEnvelope([]byte(tt.payload)); got != tt.want {
				t.Errorf("classifyEnvelope() = %v, want %v", got, tt.want)
			}
		})
	}
}

// webhookProvider fakes just the webhook slice of ProviderClient.
type webhookProvider struct {
	fakeProvider
	verifyErr  error
	thinEvents map[string]*stripeapi.ThinEvent
	fetched    []string
}

func (p *webhookProvider) VerifyWebhookSignature(payload []byte, sigHeader string) error {
	return p.verifyErr
}

func (p *webhookProvider) FetchThinEvent(ctx context.Context, eventID string) (*stripeapi.ThinEvent, error) {
	p.fetched = append(p.fetched, eventID)
	ev, ok := p.thinEvents[eventID]
	if !ok {
		return nil, fmt.Errorf("no such event %s", eventID)
	}
	return ev, nil
}

func newWebhookTest(t *testing.T) (*WebhookHandler, *webhookProvider, *store.PersonStore, *store.SubscriptionStore) {
	t.Helper()
	db := setupTestDB(t)
	persons := store.NewPersonStore(db)
	subs := store.NewSubscriptionStore(db)
	events := store.NewWebhookEventStore(db)
	provider := &webhookProvider{thinEvents: map[string]*stripeapi.ThinEvent{}}
	h := NewWebhookHandler(provider, persons, subs, events, slog.New(slog.DiscardHandler))
	return h, provider, persons, subs
}

func coachWithCustomer(t *testing.T, persons *store.PersonStore, customerID string) *model.Person {
	t.Helper()
	coach, err := persons.Create(model.RoleCoach, customerID+"@example.com", "Coach", "hash")
	if err != nil {
		t.Fatalf("create coach: %v", err)
	}
	if err := persons.UpdateStripeCustomerID(coach.ID, customerID); err != nil {
		t.Fatalf("set customer id: %v", err)
	}
	return coach
}

func postWebhook(h *WebhookHandler, payload string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewBufferString(payload))
	req.Header.Set("Stripe-Signature", "t=1,v1=sig")
	w := httptest.NewRecorder()
	h.HandleWebhook(w, req)
	return w
}

func subscriptionEventPayload(eventID, customerID, status string, periodEnd int64) string {
	return fmt.Sprintf(`{
		"id": %q,
		"type": "customer.subscription.updated",
		"data": {"object": {
			"id": "sub_1",
			"status": %q,
			"cancel_at_period_end": false,
			"customer": {"id": %q},
			"items": {"data": [{"id": "si_1", "current_period_end": %d}]}
		}}
	}`, eventID, status, customerID, periodEnd)
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	h, provider, _, _ := newWebhookTest(t)
	provider.verifyErr = fmt.Errorf("signature mismatch")

	w := postWebhook(h, `{"id":"evt_1","type":"customer.updated","data":{"object":{}}}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestHandleWebhookSubscriptionUpdated(t *testing.T) {
	h, _, persons, subs := newWebhookTest(t)
	coach := coachWithCustomer(t, persons, "cus_sub")
	periodEnd := time.Now().Add(30 * 24 * time.Hour).Unix()

	w := postWebhook(h, subscriptionEventPayload("evt_sub_1", "cus_sub", "active", periodEnd))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	sub, err := subs.GetByCoachID(coach.ID)
	if err != nil {
		t.Fatalf("get subscription: %v", err)
	}
	if sub == nil || sub.Tier != model.TierPaid {
		t.Fatalf("tier = %+v, want paid", sub)
	}
	if sub.WebStatus != "active" {
		t.Errorf("web status = %q, want active", sub.WebStatus)
	}
	if sub.StripeSubscriptionID == nil || *sub.StripeSubscriptionID != "sub_1" {
		t.Errorf("stripe subscription id = %v, want sub_1", sub.StripeSubscriptionID)
	}
	if sub.ClientLimit != nil {
		t.Errorf("client limit = %v, want unlimited", *sub.ClientLimit)
	}
}

func TestHandleWebhookSubscriptionDeleted(t *testing.T) {
	h, _, persons, subs := newWebhookTest(t)
	coach := coachWithCustomer(t, persons, "cus_del")
	periodEnd := time.Now().Add(30 * 24 * time.Hour).Unix()

	postWebhook(h, subscriptionEventPayload("evt_del_1", "cus_del", "active", periodEnd))

	payload := `{
		"id": "evt_del_2",
		"type": "customer.subscription.deleted",
		"data": {"object": {
			"id": "sub_1",
			"status": "active",
			"customer": {"id": "cus_del"},
			"items": {"data": []}
		}}
	}`
	w := postWebhook(h, payload)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	sub, err := subs.GetByCoachID(coach.ID)
	if err != nil {
		t.Fatalf("get subscription: %v", err)
	}
	if sub.WebStatus != "canceled" {
		t.Errorf("web status = %q, want canceled", sub.WebStatus)
	}
	if sub.Tier != model.TierFree {
		t.Errorf("tier = %q, want free after deletion", sub.Tier)
	}
}

func TestHandleWebhookThinEventMatchesStandard(t *testing.T) {
	h, provider, persons, subs := newWebhookTest(t)
	coach := coachWithCustomer(t, persons, "cus_thin")
	periodEnd := time.Now().Add(30 * 24 * time.Hour).Unix()

	provider.thinEvents["evt_thin_1"] = &stripeapi.ThinEvent{
		ID:   "evt_thin_1",
		Type: "customer.subscription.updated",
		Data: []byte(fmt.Sprintf(`{"object": {
			"id": "sub_1",
			"status": "active",
			"cancel_at_period_end": false,
			"customer": {"id": "cus_thin"},
			"items": {"data": [{"id": "si_1", "current_period_end": %d}]}
		}}`, periodEnd)),
	}

	payload := `{"id":"evt_thin_1","type":"customer.subscription.updated","related_object":{"id":"sub_1","type":"subscription"}}`
	w := postWebhook(h, payload)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if len(provider.fetched) != 1 || provider.fetched[0] != "evt_thin_1" {
		t.Fatalf("fetched = %v, want [evt_thin_1]", provider.fetched)
	}

	thin, err := subs.GetByCoachID(coach.ID)
	if err != nil {
		t.Fatalf("get subscription: %v", err)
	}

	// The same event delivered full-payload must land the same state.
	h2, _, persons2, subs2 := newWebhookTest(t)
	coach2 := coachWithCustomer(t, persons2, "cus_thin")
	postWebhook(h2, subscriptionEventPayload("evt_thin_1", "cus_thin", "active", periodEnd))
	full, err := subs2.GetByCoachID(coach2.ID)
	if err != nil {
		t.Fatalf("get subscription: %v", err)
	}

	if thin.Tier != full.Tier || thin.WebStatus != full.WebStatus {
		t.Errorf("thin state (%s, %s) != full state (%s, %s)", thin.Tier, thin.WebStatus, full.Tier, full.WebStatus)
	}
	if (thin.WebPeriodEnd == nil) != (full.WebPeriodEnd == nil) {
		t.Fatalf("period end presence differs: thin %v, full %v", thin.WebPeriodEnd, full.WebPeriodEnd)
	}
	if thin.WebPeriodEnd != nil && !thin.WebPeriodEnd.Equal(*full.WebPeriodEnd) {
		t.Errorf("period end differs: thin %v, full %v", thin.WebPeriodEnd, full.WebPeriodEnd)
	}
}

func TestHandleWebhookDuplicateAppliedOnce(t *testing.T) {
	h, _, persons, subs := newWebhookTest(t)
	coach := coachWithCustomer(t, persons, "cus_dup")
	periodEnd := time.Now().Add(30 * 24 * time.Hour).Unix()

	first := postWebhook(h, subscriptionEventPayload("evt_dup", "cus_dup", "active", periodEnd))
	if first.Code != http.StatusOK {
		t.Fatalf("first delivery status = %d", first.Code)
	}

	sub, _ := subs.GetByCoachID(coach.ID)
	firstUpdated := sub.UpdatedAt

	// Redelivery with a different status must be a no-op: the id wins.
	second := postWebhook(h, subscriptionEventPayload("evt_dup", "cus_dup", "canceled", periodEnd))
	if second.Code != http.StatusOK {
		t.Fatalf("duplicate delivery status = %d", second.Code)
	}

	sub, _ = subs.GetByCoachID(coach.ID)
	if sub.WebStatus != "active" {
		t.Errorf("web status after duplicate = %q, want active", sub.WebStatus)
	}
	if !sub.UpdatedAt.Equal(firstUpdated) {
		t.Errorf("row changed on duplicate delivery")
	}
}

func TestHandleWebhookUnknownCustomerAcknowledged(t *testing.T) {
	h, _, _, _ := newWebhookTest(t)
	periodEnd := time.Now().Add(30 * 24 * time.Hour).Unix()

	w := postWebhook(h, subscriptionEventPayload("evt_unknown", "cus_missing", "active", periodEnd))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d for unknown customer", w.Code, http.StatusOK)
	}
}

func TestHandleWebhookUnknownTypeAcknowledged(t *testing.T) {
	h, _, _, _ := newWebhookTest(t)

	w := postWebhook(h, `{"id":"evt_odd","type":"invoice.finalized","data":{"object":{"id":"in_1"}}}`)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d for unhandled type", w.Code, http.StatusOK)
	}
}

package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	stripe "github.com/stripe/stripe-go/v82"

	"github.com/coachware/coachpay/internal/model"
	"github.com/coachware/coachpay/internal/store"
)

const webhookBodyLimit = 1 << 20 // 1 MiB

// envelopeKind classifies an inbound webhook payload.
type envelopeKind int

const (
	// envelopeStandard is a full-payload event: data.object carries the
	// affected resource.
	envelopeStandard envelopeKind = iota
	// envelopeThin carries only the event id and type; the payload must
	// be fetched with a follow-up call.
	envelopeThin
)

// classifyEnvelope distinguishes a thin event envelope from a standard
// one. Thin envelopes name a related_object and carry no data.object.
// Anything unparseable is treated as standard so a malformed thin
// notification is retried through the normal path rather than dropped.
func classifyEnvelope(payload []byte) envelopeKind {
	var probe struct {
		RelatedObject *struct {
			ID string `json:"id"`
		} `json:"related_object"`
		Data *struct {
			Object json.RawMessage `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return envelopeStandard
	}
	if probe.RelatedObject != nil && (probe.Data == nil || len(probe.Data.Object) == 0) {
		return envelopeThin
	}
	return envelopeStandard
}

// WebhookHandler reconciles asynchronous payment-provider events into
// local subscription state. Delivery is at-least-once and unordered;
// the event-id dedup gate is the only replay protection.
type WebhookHandler struct {
	stripe  ProviderClient
	persons *store.PersonStore
	subs    *store.SubscriptionStore
	events  *store.WebhookEventStore
	logger  *slog.Logger
}

func NewWebhookHandler(
	sc ProviderClient,
	persons *store.PersonStore,
	subs *store.SubscriptionStore,
	events *store.WebhookEventStore,
	logger *slog.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		stripe:  sc,
		persons: persons,
		subs:    subs,
		events:  events,
		logger:  logger,
	}
}

func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, webhookBodyLimit))
	if err != nil {
		respondError(w, http.StatusBadRequest, "read body")
		return
	}

	// Nothing is parsed before the signature passes.
	if err := h.stripe.VerifyWebhookSignature(body, r.Header.Get("Stripe-Signature")); err != nil {
		respondError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	eventID, eventType, objRaw, err := h.resolveEvent(r.Context(), body)
	if err != nil {
		h.logger.Error("resolve webhook event", "error", err)
		respondError(w, http.StatusBadGateway, "failed to resolve event")
		return
	}
	if eventID == "" {
		respondError(w, http.StatusBadRequest, "event missing id")
		return
	}

	fresh, err := h.events.MarkProcessing(eventID, eventType)
	if err != nil {
		h.logger.Error("record webhook event", "event_id", eventID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !fresh {
		h.logger.Info("duplicate webhook delivery acknowledged", "event_id", eventID, "type", eventType)
		respondJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	if err := h.dispatch(eventType, objRaw); err != nil {
		// A partially-applied event must not stay recorded, or the
		// provider retry would be swallowed by the dedup gate.
		if unmarkErr := h.events.Unmark(eventID); unmarkErr != nil {
			h.logger.Error("unmark webhook event", "event_id", eventID, "error", unmarkErr)
		}
		h.logger.Error("dispatch webhook event", "event_id", eventID, "type", eventType, "error", err)
		respondError(w, http.StatusInternalServerError, "event processing failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"received": true})
}

// resolveEvent normalizes both envelope shapes to (id, type, object).
func (h *WebhookHandler) resolveEvent(ctx context.Context, body []byte) (eventID, eventType string, objRaw []byte, err error) {
	switch classifyEnvelope(body) {
	case envelopeThin:
		var envelope struct {
			ID   string `json:"id"`
			Type string `json:"type"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return "", "", nil, fmt.Errorf("parse thin envelope: %w", err)
		}
		full, err := h.stripe.FetchThinEvent(ctx, envelope.ID)
		if err != nil {
			return "", "", nil, err
		}
		var data struct {
			Object json.RawMessage `json:"object"`
		}
		if len(full.Data) > 0 {
			if err := json.Unmarshal(full.Data, &data); err != nil {
				return "", "", nil, fmt.Errorf("parse thin event data: %w", err)
			}
		}
		return full.ID, full.Type, data.Object, nil

	default:
		var event stripe.Event
		if err := json.Unmarshal(body, &event); err != nil {
			return "", "", nil, fmt.Errorf("parse event: %w", err)
		}
		var objRaw []byte
		if event.Data != nil {
			objRaw = event.Data.Raw
		}
		return event.ID, string(event.Type), objRaw, nil
	}
}

// dispatch applies one event. Unknown types are acknowledged without
// effect: the provider retries on non-2xx, so erroring on them would
// cause a retry storm.
func (h *WebhookHandler) dispatch(eventType string, objRaw []byte) error {
	switch eventType {
	case "account.updated":
		return h.handleAccountUpdated(objRaw)
	case "capability.updated":
		return h.handleCapabilityUpdated(objRaw)
	case "checkout.session.completed":
		return h.handleCheckoutCompleted(objRaw)
	case "customer.subscription.updated":
		return h.handleSubscriptionChanged(objRaw, "")
	case "customer.subscription.deleted":
		return h.handleSubscriptionChanged(objRaw, "canceled")
	case "customer.updated":
		return h.handleCustomerUpdated(objRaw)
	default:
		h.logger.Info("ignoring webhook event type", "type", eventType)
		return nil
	}
}

func (h *WebhookHandler) handleAccountUpdated(objRaw []byte) error {
	var acct stripe.Account
	if err := json.Unmarshal(objRaw, &acct); err != nil {
		return fmt.Errorf("unmarshal account: %w", err)
	}
	coach, err := h.persons.GetByStripeAccountID(acct.ID)
	if err != nil {
		return err
	}
	if coach == nil {
		h.logger.Warn("account.updated for unknown account", "account_id", acct.ID)
		return nil
	}
	h.logger.Info("connected account updated",
		"coach_id", coach.ID, "account_id", acct.ID,
		"details_submitted", acct.DetailsSubmitted,
		"charges_enabled", acct.ChargesEnabled,
		"payouts_enabled", acct.PayoutsEnabled)
	return nil
}

func (h *WebhookHandler) handleCapabilityUpdated(objRaw []byte) error {
	var capability stripe.Capability
	if err := json.Unmarshal(objRaw, &capability); err != nil {
		return fmt.Errorf("unmarshal capability: %w", err)
	}
	accountID := ""
	if capability.Account != nil {
		accountID = capability.Account.ID
	}
	h.logger.Info("capability updated", "account_id", accountID, "capability", capability.ID, "status", capability.Status)
	return nil
}

func (h *WebhookHandler) handleCheckoutCompleted(objRaw []byte) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(objRaw, &sess); err != nil {
		return fmt.Errorf("unmarshal checkout session: %w", err)
	}
	if sess.Customer == nil || sess.Subscription == nil {
		// One-time purchases have nothing to reconcile here.
		return nil
	}
	coach, err := h.coachByCustomerID(sess.Customer.ID)
	if err != nil || coach == nil {
		return err
	}
	if _, err := h.subs.SetWebState(coach.ID, "active", sess.Subscription.ID, false, nil); err != nil {
		return err
	}
	h.logger.Info("subscription linked from checkout", "coach_id", coach.ID, "subscription_id", sess.Subscription.ID)
	return nil
}

// handleSubscriptionChanged applies ..updated and ..deleted events.
// statusOverride forces the terminal state for deletions, whose payload
// status may lag.
func (h *WebhookHandler) handleSubscriptionChanged(objRaw []byte, statusOverride string) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(objRaw, &sub); err != nil {
		return fmt.Errorf("unmarshal subscription: %w", err)
	}
	if sub.Customer == nil {
		h.logger.Warn("subscription event without customer", "subscription_id", sub.ID)
		return nil
	}
	coach, err := h.coachByCustomerID(sub.Customer.ID)
	if err != nil || coach == nil {
		return err
	}

	status := string(sub.Status)
	if statusOverride != "" {
		status = statusOverride
	}
	updated, err := h.subs.SetWebState(coach.ID, status, sub.ID, sub.CancelAtPeriodEnd, periodEnd(&sub))
	if err != nil {
		return err
	}
	h.logger.Info("subscription state reconciled",
		"coach_id", coach.ID, "subscription_id", sub.ID,
		"status", status, "tier", updated.Tier)
	return nil
}

func (h *WebhookHandler) handleCustomerUpdated(objRaw []byte) error {
	var cust stripe.Customer
	if err := json.Unmarshal(objRaw, &cust); err != nil {
		return fmt.Errorf("unmarshal customer: %w", err)
	}
	coach, err := h.coachByCustomerID(cust.ID)
	if err != nil || coach == nil {
		return err
	}
	// Re-derive the effective tier so a stale record converges.
	if _, err := h.subs.Recompute(coach.ID); err != nil {
		return err
	}
	return nil
}

// coachByCustomerID maps an external customer id to a local coach. An
// unknown customer or a non-coach person is logged and skipped, never
// an error: erroring would make the provider retry forever.
func (h *WebhookHandler) coachByCustomerID(customerID string) (*model.Person, error) {
	person, err := h.persons.GetByStripeCustomerID(customerID)
	if err != nil {
		return nil, err
	}
	if person == nil {
		h.logger.Warn("webhook for unknown customer", "customer_id", customerID)
		return nil, nil
	}
	if person.Role != model.RoleCoach {
		h.logger.Info("webhook for non-coach customer ignored", "person_id", person.ID)
		return nil, nil
	}
	return person, nil
}

// periodEnd extracts the current period end, which lives on the
// subscription items in the current API shape.
func periodEnd(sub *stripe.Subscription) *time.Time {
	if sub.Items == nil || len(sub.Items.Data) == 0 {
		return nil
	}
	end := sub.Items.Data[0].CurrentPeriodEnd
	if end <= 0 {
		return nil
	}
	t := time.Unix(end, 0).UTC()
	return &t
}

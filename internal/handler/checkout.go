package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coachware/coachpay/internal/directory"
	"github.com/coachware/coachpay/internal/model"
	"github.com/coachware/coachpay/internal/money"
	"github.com/coachware/coachpay/internal/store"
	"github.com/coachware/coachpay/internal/stripeapi"
)

// Purchase kinds accepted by the checkout builder.
type purchaseKind string

const (
	kindProgram              purchaseKind = "program"
	kindAppointment          purchaseKind = "appointment"
	kindTerminalPayment      purchaseKind = "terminal_payment"
	kindPlatformSubscription purchaseKind = "platform_subscription"
)

const trialDays = 14

type checkoutRequest struct {
	Kind          purchaseKind `json:"kind"`
	ProgramID     int64        `json:"program_id"`
	AppointmentID int64        `json:"appointment_id"`
	PlanID        int64        `json:"plan_id"`
	Amount        float64      `json:"amount"`
	Currency      string       `json:"currency"`
	Description   string       `json:"description"`
}

func (r checkoutRequest) validate() error {
	switch r.Kind {
	case kindProgram:
		if r.ProgramID == 0 {
			return fmt.Errorf("program_id is required")
		}
	case kindAppointment:
		if r.AppointmentID == 0 {
			return fmt.Errorf("appointment_id is required")
		}
	case kindTerminalPayment:
		if r.Amount <= 0 {
			return fmt.Errorf("amount must be positive")
		}
	case kindPlatformSubscription:
		if r.PlanID == 0 {
			return fmt.Errorf("plan_id is required")
		}
	case "":
		return fmt.Errorf("kind is required")
	default:
		return fmt.Errorf("unknown kind %q", r.Kind)
	}
	return nil
}

// purchaseIntent is the resolved form of a checkout request: one
// variant per purchase kind, carrying everything the session build
// needs plus where to persist the resulting session id.
type purchaseIntent struct {
	kind            purchaseKind
	coachID         int64
	amountCents     int64
	currency        string
	description     string
	priceID         string // recurring kinds
	trialDays       int64
	feeRate         float64
	recordSessionID func(sessionID string, feeCents int64) error
}

// CheckoutHandler builds fee-split checkout sessions for the four
// purchase kinds.
type CheckoutHandler struct {
	stripe    ProviderClient
	persons   *store.PersonStore
	plans     *store.PlanStore
	purchases *store.PurchaseStore
	dir       *directory.Directory
	baseURL   string
	logger    *slog.Logger
}

func NewCheckoutHandler(
	sc ProviderClient,
	persons *store.PersonStore,
	plans *store.PlanStore,
	purchases *store.PurchaseStore,
	dir *directory.Directory,
	baseURL string,
	logger *slog.Logger,
) *CheckoutHandler {
	return &CheckoutHandler{
		stripe:    sc,
		persons:   persons,
		plans:     plans,
		purchases: purchases,
		dir:       dir,
		baseURL:   baseURL,
		logger:    logger,
	}
}

// CreateSession builds a checkout session for the requested purchase.
func (h *CheckoutHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	buyerID := PersonIDFromContext(r.Context())
	if buyerID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	intent, errStatus, err := h.resolveIntent(req, buyerID)
	if err != nil {
		respondError(w, errStatus, err.Error())
		return
	}

	// Buyer and seller records are independent; resolve them in parallel.
	var (
		wg       sync.WaitGroup
		buyer    *model.Person
		coach    *model.Person
		buyerErr error
		coachErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		buyer, buyerErr = h.persons.GetByID(buyerID)
	}()
	go func() {
		defer wg.Done()
		coach, coachErr = h.persons.GetByID(intent.coachID)
	}()
	wg.Wait()

	if buyerErr != nil || coachErr != nil {
		h.logger.Error("resolve checkout parties", "buyer_err", buyerErr, "coach_err", coachErr)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if buyer == nil {
		respondError(w, http.StatusNotFound, "buyer not found")
		return
	}
	if coach == nil {
		respondError(w, http.StatusNotFound, "coach not found")
		return
	}

	customerID, err := h.dir.EnsureCustomer(buyer)
	if err != nil {
		h.logger.Error("ensure buyer customer", "buyer_id", buyer.ID, "error", err)
		respondProviderError(w, err)
		return
	}

	destination, feeCents, err := h.resolveFeeSplit(intent, coach)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	params := stripeapi.CheckoutParams{
		CustomerID:          customerID,
		Currency:            intent.currency,
		Description:         intent.description,
		Destination:         destination,
		ApplicationFeeCents: feeCents,
		SuccessURL:          h.baseURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:           h.baseURL + "/checkout/cancel",
	}
	if intent.priceID != "" {
		params.Mode = "subscription"
		params.PriceID = intent.priceID
		params.TrialDays = intent.trialDays
	} else {
		params.Mode = "payment"
		params.AmountCents = intent.amountCents
	}

	sessionID, url, err := h.stripe.CreateCheckoutSession(params)
	if err != nil {
		h.logger.Error("create checkout session", "kind", intent.kind, "coach_id", coach.ID, "error", err)
		respondProviderError(w, err)
		return
	}

	if intent.recordSessionID != nil {
		if err := intent.recordSessionID(sessionID, feeCents); err != nil {
			// The session exists upstream; surface the linkage failure
			// instead of pretending reconciliation will work.
			h.logger.Error("persist checkout session id", "session_id", sessionID, "error", err)
			respondError(w, http.StatusInternalServerError, "failed to record session")
			return
		}
	}

	h.logger.Info("checkout session created",
		"kind", intent.kind, "coach_id", coach.ID, "session_id", sessionID,
		"amount_cents", intent.amountCents, "fee_cents", feeCents)
	respondJSON(w, http.StatusOK, map[string]string{"url": url, "session_id": sessionID})
}

// resolveIntent loads the purchase record behind the request and
// normalizes it into a purchaseIntent. The switch is exhaustive over
// the four kinds; validate has already rejected anything else.
func (h *CheckoutHandler) resolveIntent(req checkoutRequest, buyerID int64) (*purchaseIntent, int, error) {
	switch req.Kind {
	case kindProgram:
		prog, err := h.purchases.GetProgram(req.ProgramID)
		if err != nil {
			return nil, http.StatusInternalServerError, fmt.Errorf("internal error")
		}
		if prog == nil {
			return nil, http.StatusNotFound, fmt.Errorf("program not found")
		}
		id := prog.ID
		return &purchaseIntent{
			kind:        kindProgram,
			coachID:     prog.CoachID,
			amountCents: prog.PriceCents,
			currency:    money.NormalizeCurrency(prog.Currency),
			description: prog.Title,
			feeRate:     money.CoachingFeeRate,
			recordSessionID: func(sessionID string, _ int64) error {
				return h.purchases.SetProgramCheckoutSession(id, sessionID)
			},
		}, 0, nil

	case kindAppointment:
		appt, err := h.purchases.GetAppointment(req.AppointmentID)
		if err != nil {
			return nil, http.StatusInternalServerError, fmt.Errorf("internal error")
		}
		if appt == nil {
			return nil, http.StatusNotFound, fmt.Errorf("appointment not found")
		}
		id := appt.ID
		return &purchaseIntent{
			kind:        kindAppointment,
			coachID:     appt.CoachID,
			amountCents: appt.PriceCents,
			currency:    money.NormalizeCurrency(appt.Currency),
			description: appt.Description,
			feeRate:     money.CoachingFeeRate,
			recordSessionID: func(sessionID string, _ int64) error {
				return h.purchases.SetAppointmentCheckoutSession(id, sessionID)
			},
		}, 0, nil

	case kindTerminalPayment:
		// The caller is the coach taking an in-person payment.
		amountCents := money.ToCents(req.Amount)
		currency := money.NormalizeCurrency(req.Currency)
		coachID := buyerID
		description := req.Description
		return &purchaseIntent{
			kind:        kindTerminalPayment,
			coachID:     coachID,
			amountCents: amountCents,
			currency:    currency,
			description: description,
			feeRate:     money.TerminalFeeRate,
			recordSessionID: func(sessionID string, feeCents int64) error {
				// The session id keeps the payment row joinable when
				// the completion webhook lands.
				_, err := h.purchases.CreatePayment(coachID, string(kindTerminalPayment), amountCents, feeCents, currency, description, sessionID)
				return err
			},
		}, 0, nil

	case kindPlatformSubscription:
		plan, err := h.plans.GetByID(req.PlanID)
		if err != nil {
			return nil, http.StatusInternalServerError, fmt.Errorf("internal error")
		}
		if plan == nil || !plan.Active {
			return nil, http.StatusNotFound, fmt.Errorf("plan not found")
		}
		trial := int64(trialDays)
		if plan.Addon {
			trial = 0
		}
		id := plan.ID
		return &purchaseIntent{
			kind:        kindPlatformSubscription,
			coachID:     buyerID,
			amountCents: plan.AmountCents,
			currency:    money.NormalizeCurrency(plan.Currency),
			description: plan.Name,
			priceID:     plan.StripePriceID,
			trialDays:   trial,
			recordSessionID: func(sessionID string, _ int64) error {
				return h.plans.SetCheckoutSession(id, sessionID)
			},
		}, 0, nil
	}
	return nil, http.StatusBadRequest, fmt.Errorf("unknown kind %q", req.Kind)
}

// resolveFeeSplit decides destination routing. A coach whose account
// cannot take charges degrades program/appointment checkouts to a
// platform-only charge with no fee split; terminal payments hard-fail
// instead. Platform subscriptions are never split.
func (h *CheckoutHandler) resolveFeeSplit(intent *purchaseIntent, coach *model.Person) (destination string, feeCents int64, err error) {
	if intent.kind == kindPlatformSubscription {
		return "", 0, nil
	}

	connected := false
	if coach.StripeAccountID != nil && *coach.StripeAccountID != "" {
		status, statusErr := h.stripe.GetAccountStatus(*coach.StripeAccountID)
		if statusErr != nil {
			h.logger.Warn("account status unavailable, skipping fee split", "coach_id", coach.ID, "error", statusErr)
		} else if status.ChargesEnabled {
			connected = true
		}
	}

	if !connected {
		if intent.kind == kindTerminalPayment {
			return "", 0, fmt.Errorf("coach has no connected account accepting charges")
		}
		return "", 0, nil
	}
	return *coach.StripeAccountID, money.Fee(intent.amountCents, intent.feeRate), nil
}

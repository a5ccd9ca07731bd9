package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coachware/coachpay/internal/directory"
	"github.com/coachware/coachpay/internal/model"
	"github.com/coachware/coachpay/internal/money"
	"github.com/coachware/coachpay/internal/store"
	"github.com/coachware/coachpay/internal/stripeapi"
)

// TerminalHandler issues reader connection tokens and creates
// card-present payment intents for in-person charges.
type TerminalHandler struct {
	stripe        ProviderClient
	persons       *store.PersonStore
	purchases     *store.PurchaseStore
	dir           *directory.Directory
	captureMethod string
	logger        *slog.Logger
}

func NewTerminalHandler(
	sc ProviderClient,
	persons *store.PersonStore,
	purchases *store.PurchaseStore,
	dir *directory.Directory,
	captureMethod string,
	logger *slog.Logger,
) *TerminalHandler {
	// Automatic capture is the shipped default: it trades post-auth
	// adjustment (tips) for not having to capture explicitly.
	if captureMethod == "" {
		captureMethod = "automatic"
	}
	return &TerminalHandler{
		stripe:        sc,
		persons:       persons,
		purchases:     purchases,
		dir:           dir,
		captureMethod: captureMethod,
		logger:        logger,
	}
}

// ConnectionToken issues a short-lived reader credential scoped to the
// coach's connected account, so the physical reader authenticates as
// that sub-merchant.
func (h *TerminalHandler) ConnectionToken(w http.ResponseWriter, r *http.Request) {
	coach, ok := h.requireConnectedCoach(w, r)
	if !ok {
		return
	}

	token, err := h.stripe.CreateConnectionToken(*coach.StripeAccountID)
	if err != nil {
		h.logger.Error("create connection token", "coach_id", coach.ID, "error", err)
		respondProviderError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"secret": token})
}

type terminalChargeRequest struct {
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Description string  `json:"description"`
	ClientEmail string  `json:"client_email"`
	ClientName  string  `json:"client_name"`
}

// Charge creates a card-present payment intent routed as a destination
// charge with the coach as merchant of record.
func (h *TerminalHandler) Charge(w http.ResponseWriter, r *http.Request) {
	coach, ok := h.requireConnectedCoach(w, r)
	if !ok {
		return
	}

	var req terminalChargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Amount <= 0 {
		respondError(w, http.StatusBadRequest, "amount must be positive")
		return
	}

	customerID, err := h.ensureChargeCustomer(coach.ID, req)
	if err != nil {
		h.logger.Error("ensure terminal customer", "coach_id", coach.ID, "error", err)
		respondProviderError(w, err)
		return
	}

	amountCents := money.ToCents(req.Amount)
	feeCents := money.Fee(amountCents, money.TerminalFeeRate)
	currency := money.NormalizeCurrency(req.Currency)

	intentID, clientSecret, err := h.stripe.CreateTerminalPaymentIntent(stripeapi.TerminalChargeParams{
		CustomerID:          customerID,
		AmountCents:         amountCents,
		Currency:            currency,
		Description:         req.Description,
		AccountID:           *coach.StripeAccountID,
		ApplicationFeeCents: feeCents,
		CaptureMethod:       h.captureMethod,
	})
	if err != nil {
		h.logger.Error("create terminal payment intent", "coach_id", coach.ID, "error", err)
		respondProviderError(w, err)
		return
	}

	if _, err := h.purchases.CreatePayment(coach.ID, "terminal", amountCents, feeCents, currency, req.Description, intentID); err != nil {
		h.logger.Error("record terminal payment", "intent_id", intentID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to record payment")
		return
	}

	h.logger.Info("terminal charge created",
		"coach_id", coach.ID, "intent_id", intentID,
		"amount_cents", amountCents, "fee_cents", feeCents)
	respondJSON(w, http.StatusOK, map[string]string{"client_secret": clientSecret, "payment_intent_id": intentID})
}

// ensureChargeCustomer reuses the buyer's stored customer when the
// request names a known client, otherwise creates a one-off customer
// for the walk-in.
func (h *TerminalHandler) ensureChargeCustomer(coachID int64, req terminalChargeRequest) (string, error) {
	if req.ClientEmail != "" {
		if existing, err := h.persons.GetByEmail(req.ClientEmail); err == nil && existing != nil {
			return h.dir.EnsureCustomer(existing)
		}
	}
	email := req.ClientEmail
	if email == "" {
		email = "walk-in@coachpay.local"
	}
	return h.stripe.CreateCustomer(email, req.ClientName)
}

func (h *TerminalHandler) requireConnectedCoach(w http.ResponseWriter, r *http.Request) (*model.Person, bool) {
	personID := PersonIDFromContext(r.Context())
	if personID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	person, err := h.persons.GetByID(personID)
	if err != nil {
		h.logger.Error("get person", "person_id", personID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	if person == nil {
		respondError(w, http.StatusNotFound, "person not found")
		return nil, false
	}
	if person.StripeAccountID == nil || *person.StripeAccountID == "" {
		respondError(w, http.StatusBadRequest, "coach has no connected account")
		return nil, false
	}
	return person, true
}

package handler

import (
	"log/slog"
	"net/http"

	"github.com/coachware/coachpay/internal/model"
	"github.com/coachware/coachpay/internal/store"
)

// ConnectHandler provisions per-coach sub-merchant accounts and reports
// their onboarding state.
type ConnectHandler struct {
	stripe  ProviderClient
	persons *store.PersonStore
	baseURL string
	logger  *slog.Logger
}

func NewConnectHandler(sc ProviderClient, persons *store.PersonStore, baseURL string, logger *slog.Logger) *ConnectHandler {
	return &ConnectHandler{
		stripe:  sc,
		persons: persons,
		baseURL: baseURL,
		logger:  logger,
	}
}

// CreateAccount provisions a connected account for the calling coach.
// Calling it again is a no-op returning the stored account id; two
// upstream accounts must never exist for one coach.
func (h *ConnectHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	coach, ok := h.requireCoach(w, r)
	if !ok {
		return
	}

	if coach.StripeAccountID != nil && *coach.StripeAccountID != "" {
		respondJSON(w, http.StatusOK, map[string]string{"account_id": *coach.StripeAccountID})
		return
	}

	accountID, err := h.stripe.CreateConnectedAccount(coach.Email, coach.Name)
	if err != nil {
		h.logger.Error("create connected account", "coach_id", coach.ID, "error", err)
		respondProviderError(w, err)
		return
	}
	if err := h.persons.UpdateStripeAccountID(coach.ID, accountID); err != nil {
		h.logger.Error("persist connected account id", "coach_id", coach.ID, "account_id", accountID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to save account")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"account_id": accountID})
}

// OnboardingLink issues a single-use onboarding redirect for the coach's
// connected account.
func (h *ConnectHandler) OnboardingLink(w http.ResponseWriter, r *http.Request) {
	coach, ok := h.requireCoach(w, r)
	if !ok {
		return
	}
	if coach.StripeAccountID == nil || *coach.StripeAccountID == "" {
		respondError(w, http.StatusNotFound, "no connected account")
		return
	}

	url, err := h.stripe.CreateOnboardingLink(
		*coach.StripeAccountID,
		h.baseURL+"/connect/refresh",
		h.baseURL+"/connect/return",
	)
	if err != nil {
		h.logger.Error("create onboarding link", "coach_id", coach.ID, "error", err)
		respondProviderError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"url": url})
}

// Status reads through to the provider for the live account state. The
// return redirect is not proof of completed onboarding, so clients call
// this after returning.
func (h *ConnectHandler) Status(w http.ResponseWriter, r *http.Request) {
	coach, ok := h.requireCoach(w, r)
	if !ok {
		return
	}
	if coach.StripeAccountID == nil || *coach.StripeAccountID == "" {
		respondError(w, http.StatusNotFound, "no connected account")
		return
	}

	status, err := h.stripe.GetAccountStatus(*coach.StripeAccountID)
	if err != nil {
		h.logger.Error("get account status", "coach_id", coach.ID, "error", err)
		respondProviderError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, status)
}

func (h *ConnectHandler) requireCoach(w http.ResponseWriter, r *http.Request) (*model.Person, bool) {
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
	if person.Role != model.RoleCoach {
		respondError(w, http.StatusBadRequest, "person is not a coach")
		return nil, false
	}
	return person, true
}

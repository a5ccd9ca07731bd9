package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/coachware/coachpay/internal/money"
	"github.com/coachware/coachpay/internal/store"
)

// PlanHandler manages recurring billing plans: upstream product/price
// pairs mirrored into local rows.
type PlanHandler struct {
	stripe ProviderClient
	plans  *store.PlanStore
	logger *slog.Logger
}

func NewPlanHandler(sc ProviderClient, plans *store.PlanStore, logger *slog.Logger) *PlanHandler {
	return &PlanHandler{stripe: sc, plans: plans, logger: logger}
}

type createPlanRequest struct {
	Name     string  `json:"name"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Interval string  `json:"interval"`
	Addon    bool    `json:"addon"`
}

// Create builds an upstream product, a recurring price under it, and
// the local mirror row, in that order. A local insert failure after the
// upstream calls leaves an orphaned upstream product; the error is
// surfaced, not compensated.
func (h *PlanHandler) Create(w http.ResponseWriter, r *http.Request) {
	coachID := PersonIDFromContext(r.Context())
	if coachID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Amount <= 0 {
		respondError(w, http.StatusBadRequest, "amount must be positive")
		return
	}
	interval := req.Interval
	if interval == "" {
		interval = "month"
	}
	if interval != "month" && interval != "year" && interval != "week" {
		respondError(w, http.StatusBadRequest, "interval must be week, month or year")
		return
	}

	currency := money.NormalizeCurrency(req.Currency)
	amountCents := money.ToCents(req.Amount)

	productID, err := h.stripe.CreateProduct(req.Name)
	if err != nil {
		h.logger.Error("create product", "coach_id", coachID, "error", err)
		respondProviderError(w, err)
		return
	}
	priceID, err := h.stripe.CreateRecurringPrice(productID, amountCents, currency, interval)
	if err != nil {
		h.logger.Error("create price", "product_id", productID, "error", err)
		respondProviderError(w, err)
		return
	}

	plan, err := h.plans.Create(coachID, req.Name, amountCents, currency, interval, req.Addon, productID, priceID)
	if err != nil {
		h.logger.Error("persist plan mirror", "product_id", productID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to save plan")
		return
	}

	h.logger.Info("plan created", "plan_id", plan.ID, "coach_id", coachID, "price_id", priceID)
	respondJSON(w, http.StatusOK, plan)
}

// List returns the coach's active plans.
func (h *PlanHandler) List(w http.ResponseWriter, r *http.Request) {
	coachID := PersonIDFromContext(r.Context())
	if coachID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	plans, err := h.plans.ListActiveByCoach(coachID)
	if err != nil {
		h.logger.Error("list plans", "coach_id", coachID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"plans": plans})
}

// Archive deactivates the upstream product and soft-deletes the local
// mirror. Hard deletion is impossible upstream once a price has ever
// been attached to a subscription, so only the active flag moves.
func (h *PlanHandler) Archive(w http.ResponseWriter, r *http.Request) {
	coachID := PersonIDFromContext(r.Context())
	if coachID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	planID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid plan id")
		return
	}

	plan, err := h.plans.GetByID(planID)
	if err != nil {
		h.logger.Error("get plan", "plan_id", planID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if plan == nil || plan.CoachID != coachID {
		respondError(w, http.StatusNotFound, "plan not found")
		return
	}

	if err := h.stripe.DeactivateProduct(plan.StripeProductID); err != nil {
		h.logger.Error("deactivate product", "product_id", plan.StripeProductID, "error", err)
		respondProviderError(w, err)
		return
	}
	if err := h.plans.Archive(plan.ID); err != nil {
		h.logger.Error("archive plan mirror", "plan_id", plan.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to archive plan")
		return
	}

	h.logger.Info("plan archived", "plan_id", plan.ID, "coach_id", coachID)
	respondJSON(w, http.StatusOK, map[string]bool{"archived": true})
}

package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coachware/coachpay/internal/adapty"
	"github.com/coachware/coachpay/internal/model"
	"github.com/coachware/coachpay/internal/store"
)

// EntitlementProvider is the mobile subscription profile lookup the
// sync handler consumes. *adapty.Client satisfies it.
type EntitlementProvider interface {
	GetProfile(ctx context.Context, personID int64) (*adapty.Profile, error)
}

var _ EntitlementProvider = (*adapty.Client)(nil)

// EntitlementHandler merges mobile in-app-purchase state into the
// coach's subscription record. The app calls it after purchase,
// restore, and on launch.
type EntitlementHandler struct {
	mobile  EntitlementProvider
	persons *store.PersonStore
	subs    *store.SubscriptionStore
	logger  *slog.Logger
}

func NewEntitlementHandler(mobile EntitlementProvider, persons *store.PersonStore, subs *store.SubscriptionStore, logger *slog.Logger) *EntitlementHandler {
	return &EntitlementHandler{mobile: mobile, persons: persons, subs: subs, logger: logger}
}

type entitlementResponse struct {
	Tier         string     `json:"tier"`
	ClientLimit  *int64     `json:"client_limit"`
	ExpiresAt    *time.Time `json:"expires_at"`
	MobileActive bool       `json:"mobile_active"`
}

// Sync handles POST /api/entitlement/sync. The authenticated coach's
// own profile is fetched; there is no way to sync another person.
func (h *EntitlementHandler) Sync(w http.ResponseWriter, r *http.Request) {
	personID := PersonIDFromContext(r.Context())
	if personID == 0 {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	coach, err := h.persons.GetByID(personID)
	if err != nil {
		h.logger.Error("load person", "person_id", personID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if coach == nil || coach.Role != model.RoleCoach {
		respondError(w, http.StatusForbidden, "coach account required")
		return
	}

	profile, err := h.mobile.GetProfile(r.Context(), coach.ID)
	if err != nil {
		h.logger.Error("fetch mobile profile", "coach_id", coach.ID, "error", err)
		respondProviderError(w, err)
		return
	}

	active := false
	var expiresAt *time.Time
	if lvl, ok := profile.Premium(); ok {
		active = true
		switch {
		case lvl.IsLifetime:
			expiresAt = &model.LifetimeExpiry
		case lvl.ExpiresAt != nil:
			t := lvl.ExpiresAt.UTC()
			expiresAt = &t
		}
	}

	sub, err := h.subs.SetMobileState(coach.ID, active, expiresAt)
	if err != nil {
		h.logger.Error("set mobile subscription state", "coach_id", coach.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.logger.Info("mobile entitlement synced",
		"coach_id", coach.ID, "mobile_active", active, "tier", sub.Tier)

	respondJSON(w, http.StatusOK, entitlementResponse{
		Tier:         sub.Tier,
		ClientLimit:  sub.ClientLimit,
		ExpiresAt:    sub.ExpiresAt,
		MobileActive: sub.MobileActive,
	})
}

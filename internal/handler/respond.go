package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	stripe "github.com/stripe/stripe-go/v82"

	"github.com/coachware/coachpay/internal/adapty"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// respondProviderError maps an upstream failure to the API taxonomy:
// a provider rejection surfaces its message verbatim with 400 so an
// operator can diagnose it; transport failures are 502.
func respondProviderError(w http.ResponseWriter, err error) {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		respondError(w, http.StatusBadRequest, stripeErr.Msg)
		return
	}
	if errors.Is(err, adapty.ErrUnavailable) {
		respondError(w, http.StatusBadGateway, "subscription provider unavailable")
		return
	}
	respondError(w, http.StatusBadGateway, "payment provider unavailable")
}

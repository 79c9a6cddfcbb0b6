package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"app/internal/media"
	"app/internal/repository"
	"app/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeDomainError maps known failures to HTTP statuses; anything unmapped is
// a 500 with a generic body so internals never leak to clients.
func writeDomainError(w http.ResponseWriter, err error) bool {
	var verr *media.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Reason, "kind": string(verr.Kind)})
		return true
	}

	var lerr *service.LimitError
	if errors.As(err, &lerr) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": lerr.Message, "kind": string(lerr.Kind)})
		return true
	}

	switch {
	case errors.Is(err, service.ErrInsufficientCredits):
		writeJSON(w, http.StatusPaymentRequired, map[string]string{"error": err.Error(), "kind": "insufficient_credits"})
	case errors.Is(err, service.ErrNoCachedTranscript):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no cached transcript for this fingerprint", "kind": "no_cached_transcript"})
	case errors.Is(err, service.ErrUnknownPackage), errors.Is(err, service.ErrUnknownTier):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrNotPurchaseOwner):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "purchase belongs to another user"})
	case errors.Is(err, repository.ErrPurchaseAlreadyProcessed):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "purchase was already processed"})
	case errors.Is(err, media.ErrToolMissing):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "audio conversion is unavailable"})
	default:
		return false
	}
	return true
}

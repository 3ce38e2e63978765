package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vendafacil/api/internal/database"
)

// EntitlementStore defines the database methods needed by entitlement handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type EntitlementStore interface {
	GetSubscriptionByStore(ctx context.Context, storeID uuid.UUID) (database.Subscription, error)
}

// EntitlementHandler reports the store's subscription standing. Billing
// itself lives elsewhere; this endpoint only projects what the frontend
// needs to decide whether to lock the UI.
type EntitlementHandler struct {
	store EntitlementStore
	now   func() time.Time
}

// NewEntitlementHandler creates a new EntitlementHandler.
func NewEntitlementHandler(store EntitlementStore) *EntitlementHandler {
	return &EntitlementHandler{store: store, now: time.Now}
}

// RegisterRoutes registers entitlement endpoints on the given Chi router.
// Expected to be mounted inside a store-scoped subrouter: /stores/{sid}
func (h *EntitlementHandler) RegisterRoutes(r chi.Router) {
	r.Get("/access-status", h.AccessStatus)
}

type accessStatusResponse struct {
	Plan      string     `json:"plan"`
	Active    bool       `json:"active"`
	ExpiresAt *time.Time `json:"expires_at"`
	Blocked   bool       `json:"blocked"`
}

// AccessStatus handles GET /stores/{sid}/access-status.
// A store with no subscription row, an inactive one, or an expired one is
// blocked.
func (h *EntitlementHandler) AccessStatus(w http.ResponseWriter, r *http.Request) {
	storeID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid store ID"})
		return
	}

	sub, err := h.store.GetSubscriptionByStore(r.Context(), storeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusOK, accessStatusResponse{Blocked: true})
			return
		}
		log.Printf("ERROR: get subscription: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := accessStatusResponse{
		Plan:   sub.Plan,
		Active: sub.Active,
	}
	if sub.ExpiresAt.Valid {
		resp.ExpiresAt = &sub.ExpiresAt.Time
	}
	resp.Blocked = !sub.Active || (sub.ExpiresAt.Valid && sub.ExpiresAt.Time.Before(h.now()))

	writeJSON(w, http.StatusOK, resp)
}

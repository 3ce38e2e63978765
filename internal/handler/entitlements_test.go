package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/vendafacil/api/internal/database"
	"github.com/vendafacil/api/internal/enum"
	"github.com/vendafacil/api/internal/handler"
)

type mockEntitlementStore struct {
	getSubscriptionFn func(ctx context.Context, storeID uuid.UUID) (database.Subscription, error)
}

func (m *mockEntitlementStore) GetSubscriptionByStore(ctx context.Context, storeID uuid.UUID) (database.Subscription, error) {
	if m.getSubscriptionFn != nil {
		return m.getSubscriptionFn(ctx, storeID)
	}
	return database.Subscription{}, pgx.ErrNoRows
}

func setupEntitlementRouter(store *mockEntitlementStore) *chi.Mux {
	h := handler.NewEntitlementHandler(store)
	r := chi.NewRouter()
	r.Route("/stores/{sid}", h.RegisterRoutes)
	return r
}

func decodeAccessStatusResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func makeSubscription(storeID uuid.UUID, plan string, active bool, expiresAt time.Time) database.Subscription {
	sub := database.Subscription{
		ID:        uuid.New(),
		StoreID:   storeID,
		Plan:      plan,
		Active:    active,
		CreatedAt: time.Now(),
	}
	if !expiresAt.IsZero() {
		sub.ExpiresAt = pgtype.Timestamptz{Time: expiresAt, Valid: true}
	}
	return sub
}

func TestAccessStatus_ActiveSubscription(t *testing.T) {
	storeID := uuid.New()
	store := &mockEntitlementStore{
		getSubscriptionFn: func(_ context.Context, id uuid.UUID) (database.Subscription, error) {
			if id != storeID {
				return database.Subscription{}, pgx.ErrNoRows
			}
			return makeSubscription(storeID, enum.PlanMensal, true, time.Now().Add(20*24*time.Hour)), nil
		},
	}
	router := setupEntitlementRouter(store)

	rr := doRequest(t, router, "GET", "/stores/"+storeID.String()+"/access-status", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeAccessStatusResponse(t, rr)
	if resp["plan"] != "mensal" {
		t.Errorf("plan: got %v, want mensal", resp["plan"])
	}
	if resp["blocked"] != false {
		t.Errorf("blocked: got %v, want false", resp["blocked"])
	}
	if resp["expires_at"] == nil {
		t.Error("expected expires_at to be set")
	}
}

func TestAccessStatus_TrialWithoutExpiry(t *testing.T) {
	storeID := uuid.New()
	store := &mockEntitlementStore{
		getSubscriptionFn: func(_ context.Context, _ uuid.UUID) (database.Subscription, error) {
			return makeSubscription(storeID, enum.PlanTrial, true, time.Time{}), nil
		},
	}
	router := setupEntitlementRouter(store)

	rr := doRequest(t, router, "GET", "/stores/"+storeID.String()+"/access-status", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}

	resp := decodeAccessStatusResponse(t, rr)
	if resp["blocked"] != false {
		t.Errorf("blocked: got %v, want false", resp["blocked"])
	}
	if resp["expires_at"] != nil {
		t.Errorf("expires_at: got %v, want null", resp["expires_at"])
	}
}

func TestAccessStatus_ExpiredSubscription(t *testing.T) {
	storeID := uuid.New()
	store := &mockEntitlementStore{
		getSubscriptionFn: func(_ context.Context, _ uuid.UUID) (database.Subscription, error) {
			return makeSubscription(storeID, enum.PlanMensal, true, time.Now().Add(-time.Hour)), nil
		},
	}
	router := setupEntitlementRouter(store)

	rr := doRequest(t, router, "GET", "/stores/"+storeID.String()+"/access-status", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}

	resp := decodeAccessStatusResponse(t, rr)
	if resp["blocked"] != true {
		t.Errorf("blocked: got %v, want true for expired subscription", resp["blocked"])
	}
}

func TestAccessStatus_InactiveSubscription(t *testing.T) {
	storeID := uuid.New()
	store := &mockEntitlementStore{
		getSubscriptionFn: func(_ context.Context, _ uuid.UUID) (database.Subscription, error) {
			return makeSubscription(storeID, enum.PlanAnual, false, time.Now().Add(200*24*time.Hour)), nil
		},
	}
	router := setupEntitlementRouter(store)

	rr := doRequest(t, router, "GET", "/stores/"+storeID.String()+"/access-status", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}

	resp := decodeAccessStatusResponse(t, rr)
	if resp["blocked"] != true {
		t.Errorf("blocked: got %v, want true for inactive subscription", resp["blocked"])
	}
}

func TestAccessStatus_NoSubscription(t *testing.T) {
	router := setupEntitlementRouter(&mockEntitlementStore{})

	rr := doRequest(t, router, "GET", "/stores/"+uuid.New().String()+"/access-status", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}

	resp := decodeAccessStatusResponse(t, rr)
	if resp["blocked"] != true {
		t.Errorf("blocked: got %v, want true when no subscription exists", resp["blocked"])
	}
}

func TestAccessStatus_InvalidStoreID(t *testing.T) {
	router := setupEntitlementRouter(&mockEntitlementStore{})

	rr := doRequest(t, router, "GET", "/stores/not-a-uuid/access-status", nil)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

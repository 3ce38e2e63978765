package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vendafacil/api/internal/database"
	"github.com/vendafacil/api/internal/middleware"
	"github.com/vendafacil/api/internal/ws"
)

// CashSessionStore defines the database methods needed by cash session handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type CashSessionStore interface {
	CreateCashSession(ctx context.Context, arg database.CreateCashSessionParams) (database.CashSession, error)
	GetOpenCashSession(ctx context.Context, storeID uuid.UUID) (database.CashSession, error)
	GetCashSession(ctx context.Context, arg database.GetCashSessionParams) (database.CashSession, error)
	CloseCashSession(ctx context.Context, arg database.CloseCashSessionParams) (database.CashSession, error)
	ListCashSessions(ctx context.Context, arg database.ListCashSessionsParams) ([]database.CashSession, error)
	SumCashSalesSince(ctx context.Context, arg database.SumCashSalesSinceParams) (int64, error)
}

// CashSessionHandler handles cash drawer session endpoints.
type CashSessionHandler struct {
	store CashSessionStore
	hub   Broadcaster
}

// NewCashSessionHandler creates a new CashSessionHandler.
func NewCashSessionHandler(store CashSessionStore, hub Broadcaster) *CashSessionHandler {
	return &CashSessionHandler{store: store, hub: hub}
}

// RegisterRoutes registers cash session endpoints on the given Chi router.
// Expected to be mounted inside a store-scoped subrouter: /stores/{sid}/cash-sessions
func (h *CashSessionHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Open)
	r.Get("/", h.List)
	r.Get("/current", h.Current)
	r.Post("/{id}/close", h.Close)
}

// --- Request / Response types ---

type openCashSessionRequest struct {
	OpeningCents int64 `json:"opening_cents"`
}

type closeCashSessionRequest struct {
	ClosingCents int64 `json:"closing_cents"`
}

type cashSessionResponse struct {
	ID           uuid.UUID  `json:"id"`
	StoreID      uuid.UUID  `json:"store_id"`
	OpenedBy     uuid.UUID  `json:"opened_by"`
	OpeningCents int64      `json:"opening_cents"`
	OpenedAt     time.Time  `json:"opened_at"`
	ClosingCents *int64     `json:"closing_cents"`
	ClosedBy     *uuid.UUID `json:"closed_by"`
	ClosedAt     *time.Time `json:"closed_at"`
}

// currentSessionResponse adds the running expectation for the drawer:
// opening float plus every cash sale recorded since the session opened.
type currentSessionResponse struct {
	cashSessionResponse
	ExpectedCents int64 `json:"expected_cents"`
}

// closedSessionResponse reports the difference between the counted drawer
// and the expectation at close time.
type closedSessionResponse struct {
	cashSessionResponse
	ExpectedCents   int64 `json:"expected_cents"`
	DifferenceCents int64 `json:"difference_cents"`
}

func toCashSessionResponse(s database.CashSession) cashSessionResponse {
	resp := cashSessionResponse{
		ID:           s.ID,
		StoreID:      s.StoreID,
		OpenedBy:     s.OpenedBy,
		OpeningCents: s.OpeningCents,
		OpenedAt:     s.OpenedAt,
	}
	if s.ClosingCents.Valid {
		resp.ClosingCents = &s.ClosingCents.Int64
	}
	if s.ClosedBy.Valid {
		id := uuid.UUID(s.ClosedBy.Bytes)
		resp.ClosedBy = &id
	}
	if s.ClosedAt.Valid {
		resp.ClosedAt = &s.ClosedAt.Time
	}
	return resp
}

// --- Handlers ---

// Open handles POST /stores/{sid}/cash-sessions.
func (h *CashSessionHandler) Open(w http.ResponseWriter, r *http.Request) {
	storeID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid store ID"})
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req openCashSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.OpeningCents < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "opening_cents must be >= 0"})
		return
	}

	session, err := h.store.CreateCashSession(r.Context(), database.CreateCashSessionParams{
		StoreID:      storeID,
		OpenedBy:     claims.UserID,
		OpeningCents: req.OpeningCents,
	})
	if err != nil {
		if isOpenSessionConflict(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "a cash session is already open for this store"})
			return
		}
		log.Printf("ERROR: open cash session: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.hub.BroadcastToStore(storeID, ws.NewEvent("cash_session.opened", toCashSessionResponse(session)))
	writeJSON(w, http.StatusCreated, toCashSessionResponse(session))
}

// Current handles GET /stores/{sid}/cash-sessions/current.
func (h *CashSessionHandler) Current(w http.ResponseWriter, r *http.Request) {
	storeID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid store ID"})
		return
	}

	session, err := h.store.GetOpenCashSession(r.Context(), storeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no open cash session"})
			return
		}
		log.Printf("ERROR: get open cash session: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	expected, err := h.expectedCents(r.Context(), session)
	if err != nil {
		log.Printf("ERROR: sum cash sales: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, currentSessionResponse{
		cashSessionResponse: toCashSessionResponse(session),
		ExpectedCents:       expected,
	})
}

// Close handles POST /stores/{sid}/cash-sessions/{id}/close.
func (h *CashSessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	storeID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid store ID"})
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session ID"})
		return
	}

	var req closeCashSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.ClosingCents < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "closing_cents must be >= 0"})
		return
	}

	session, err := h.store.CloseCashSession(r.Context(), database.CloseCashSessionParams{
		ID:           sessionID,
		StoreID:      storeID,
		ClosingCents: req.ClosingCents,
		ClosedBy:     claims.UserID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// The session does not exist or is already closed.
			if _, getErr := h.store.GetCashSession(r.Context(), database.GetCashSessionParams{
				ID:      sessionID,
				StoreID: storeID,
			}); getErr == nil {
				writeJSON(w, http.StatusConflict, map[string]string{"error": "cash session is already closed"})
				return
			}
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "cash session not found"})
			return
		}
		log.Printf("ERROR: close cash session: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	expected, err := h.expectedCents(r.Context(), session)
	if err != nil {
		log.Printf("ERROR: sum cash sales: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := closedSessionResponse{
		cashSessionResponse: toCashSessionResponse(session),
		ExpectedCents:       expected,
		DifferenceCents:     req.ClosingCents - expected,
	}
	h.hub.BroadcastToStore(storeID, ws.NewEvent("cash_session.closed", resp))
	writeJSON(w, http.StatusOK, resp)
}

// List handles GET /stores/{sid}/cash-sessions.
func (h *CashSessionHandler) List(w http.ResponseWriter, r *http.Request) {
	storeID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid store ID"})
		return
	}

	sessions, err := h.store.ListCashSessions(r.Context(), database.ListCashSessionsParams{
		StoreID: storeID,
		Limit:   50,
		Offset:  0,
	})
	if err != nil {
		log.Printf("ERROR: list cash sessions: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]cashSessionResponse, len(sessions))
	for i, s := range sessions {
		resp[i] = toCashSessionResponse(s)
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

// expectedCents is the drawer expectation: opening float plus cash sales
// recorded while the session has been open.
func (h *CashSessionHandler) expectedCents(ctx context.Context, session database.CashSession) (int64, error) {
	cashSales, err := h.store.SumCashSalesSince(ctx, database.SumCashSalesSinceParams{
		StoreID: session.StoreID,
		Since:   session.OpenedAt,
	})
	if err != nil {
		return 0, err
	}
	return session.OpeningCents + cashSales, nil
}

// isOpenSessionConflict checks for a unique violation on the
// one-open-session-per-store partial index.
func isOpenSessionConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "cash_sessions_store_open_idx"
	}
	return false
}

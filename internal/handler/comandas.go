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
	"github.com/vendafacil/api/internal/database"
	"github.com/vendafacil/api/internal/enum"
	"github.com/vendafacil/api/internal/middleware"
	"github.com/vendafacil/api/internal/receipt"
	"github.com/vendafacil/api/internal/service"
	"github.com/vendafacil/api/internal/ws"
)

// ComandaServicer defines the service methods needed by comanda handlers.
// Satisfied by *service.ComandaService; narrow interface for testability.
type ComandaServicer interface {
	GetOrCreateOpen(ctx context.Context, req service.OpenComandaRequest) (database.Comanda, bool, error)
	AddItem(ctx context.Context, req service.AddItemRequest) (database.ComandaItem, error)
	AdvanceItemStatus(ctx context.Context, req service.AdvanceItemStatusRequest) (database.ComandaItem, bool, error)
	Close(ctx context.Context, req service.CloseComandaRequest) (*service.SaleResult, error)
}

// ComandaStore defines the database methods needed by comanda read handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ComandaStore interface {
	GetComanda(ctx context.Context, arg database.GetComandaParams) (database.Comanda, error)
	ListOpenComandas(ctx context.Context, storeID uuid.UUID) ([]database.Comanda, error)
	ListComandaItems(ctx context.Context, comandaID uuid.UUID) ([]database.ComandaItem, error)
	GetStore(ctx context.Context, id uuid.UUID) (database.Store, error)
}

// Broadcaster pushes change events to all terminals watching a store.
// Satisfied by *ws.Hub.
type Broadcaster interface {
	BroadcastToStore(storeID uuid.UUID, event ws.Event)
}

// ComandaHandler handles the open-tab lifecycle endpoints.
type ComandaHandler struct {
	svc   ComandaServicer
	store ComandaStore
	hub   Broadcaster
}

// NewComandaHandler creates a new ComandaHandler.
func NewComandaHandler(svc ComandaServicer, store ComandaStore, hub Broadcaster) *ComandaHandler {
	return &ComandaHandler{svc: svc, store: store, hub: hub}
}

// RegisterRoutes registers comanda endpoints on the given Chi router.
// Expected to be mounted inside a store-scoped subrouter: /stores/{sid}/comandas
func (h *ComandaHandler) RegisterRoutes(r chi.Router) {
	r.Post("/open", h.Open)
	r.Get("/", h.ListOpen)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/items", h.AddItem)
	r.Patch("/items/{itemID}/status", h.AdvanceItemStatus)
	r.Post("/{id}/close", h.Close)
}

// --- Request / Response types ---

type openComandaRequest struct {
	Numero      int32  `json:"numero"`
	Mesa        string `json:"mesa"`
	ClienteNome string `json:"cliente_nome"`
}

type addItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

type advanceItemStatusRequest struct {
	Status string `json:"status"`
}

type closeComandaRequest struct {
	PaymentMethod   string `json:"payment_method"`
	AmountPaidCents int64  `json:"amount_paid_cents"`
}

type comandaResponse struct {
	ID          uuid.UUID  `json:"id"`
	StoreID     uuid.UUID  `json:"store_id"`
	Numero      int32      `json:"numero"`
	Mesa        *string    `json:"mesa"`
	ClienteNome *string    `json:"cliente_nome"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	ClosedAt    *time.Time `json:"closed_at"`
}

type comandaItemResponse struct {
	ID             uuid.UUID `json:"id"`
	ComandaID      uuid.UUID `json:"comanda_id"`
	ProductID      uuid.UUID `json:"product_id"`
	ProductName    string    `json:"product_name"`
	Quantity       int32     `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	SubtotalCents  int64     `json:"subtotal_cents"`
	Status         string    `json:"status"`
	DestinoPreparo string    `json:"destino_preparo"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// comandaDetailResponse extends comandaResponse with items and running total.
type comandaDetailResponse struct {
	comandaResponse
	Items      []comandaItemResponse `json:"items"`
	TotalCents int64                 `json:"total_cents"`
}

type closeComandaResponse struct {
	Sale    saleResponse `json:"sale"`
	Receipt string       `json:"receipt"`
}

func toComandaResponse(c database.Comanda) comandaResponse {
	resp := comandaResponse{
		ID:        c.ID,
		StoreID:   c.StoreID,
		Numero:    c.Numero,
		Status:    c.Status,
		CreatedAt: c.CreatedAt,
	}
	if c.Mesa.Valid {
		resp.Mesa = &c.Mesa.String
	}
	if c.ClienteNome.Valid {
		resp.ClienteNome = &c.ClienteNome.String
	}
	if c.ClosedAt.Valid {
		resp.ClosedAt = &c.ClosedAt.Time
	}
	return resp
}

func toComandaItemResponse(it database.ComandaItem) comandaItemResponse {
	return comandaItemResponse{
		ID:             it.ID,
		ComandaID:      it.ComandaID,
		ProductID:      it.ProductID,
		ProductName:    it.ProductNameSnapshot,
		Quantity:       it.Quantity,
		UnitPriceCents: it.UnitPriceCents,
		SubtotalCents:  it.SubtotalCents,
		Status:         it.Status,
		DestinoPreparo: it.DestinoPreparo,
		CreatedAt:      it.CreatedAt,
		UpdatedAt:      it.UpdatedAt,
	}
}

// --- Handlers ---

// Open handles POST /stores/{sid}/comandas/open.
// Returns 200 with the existing comanda when the numero is already open,
// 201 when a new one was created.
func (h *ComandaHandler) Open(w http.ResponseWriter, r *http.Request) {
	storeID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid store ID"})
		return
	}

	var req openComandaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	comanda, created, err := h.svc.GetOrCreateOpen(r.Context(), service.OpenComandaRequest{
		StoreID:     storeID,
		Numero:      req.Numero,
		Mesa:        req.Mesa,
		ClienteNome: req.ClienteNome,
	})
	if err != nil {
		if isComandaValidationError(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if errors.Is(err, service.ErrComandaConflict) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "comanda contention, please retry"})
			return
		}
		log.Printf("ERROR: open comanda: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		h.hub.BroadcastToStore(storeID, ws.NewEvent("comanda.created", toComandaResponse(comanda)))
	}
	writeJSON(w, status, toComandaResponse(comanda))
}

// ListOpen handles GET /stores/{sid}/comandas.
func (h *ComandaHandler) ListOpen(w http.ResponseWriter, r *http.Request) {
	storeID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid store ID"})
		return
	}

	comandas, err := h.store.ListOpenComandas(r.Context(), storeID)
	if err != nil {
		log.Printf("ERROR: list open comandas: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]comandaResponse, len(comandas))
	for i, c := range comandas {
		resp[i] = toComandaResponse(c)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /stores/{sid}/comandas/{id}.
func (h *ComandaHandler) Get(w http.ResponseWriter, r *http.Request) {
	storeID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid store ID"})
		return
	}

	comandaID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid comanda ID"})
		return
	}

	comanda, err := h.store.GetComanda(r.Context(), database.GetComandaParams{
		ID:      comandaID,
		StoreID: storeID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "comanda not found"})
			return
		}
		log.Printf("ERROR: get comanda: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items, err := h.store.ListComandaItems(r.Context(), comandaID)
	if err != nil {
		log.Printf("ERROR: list comanda items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	var total int64
	itemResps := make([]comandaItemResponse, len(items))
	for i, it := range items {
		itemResps[i] = toComandaItemResponse(it)
		if it.Status != enum.ItemStatusCanceled {
			total += it.SubtotalCents
		}
	}

	writeJSON(w, http.StatusOK, comandaDetailResponse{
		comandaResponse: toComandaResponse(comanda),
		Items:           itemResps,
		TotalCents:      total,
	})
}

// AddItem handles POST /stores/{sid}/comandas/{id}/items.
func (h *ComandaHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	storeID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid store ID"})
		return
	}

	comandaID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid comanda ID"})
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product_id"})
		return
	}

	item, err := h.svc.AddItem(r.Context(), service.AddItemRequest{
		StoreID:   storeID,
		ComandaID: comandaID,
		ProductID: productID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		switch {
		case isComandaValidationError(err):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrComandaNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "comanda not found"})
		case errors.Is(err, service.ErrProductNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
		case errors.Is(err, service.ErrComandaClosed):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "comanda is closed"})
		default:
			log.Printf("ERROR: add comanda item: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	h.hub.BroadcastToStore(storeID, ws.NewEvent("comanda_item.created", toComandaItemResponse(item)))
	writeJSON(w, http.StatusCreated, toComandaItemResponse(item))
}

// AdvanceItemStatus handles PATCH /stores/{sid}/comandas/items/{itemID}/status.
// KDS and BDS screens call this to walk items through preparation. Repeating
// a transition that already happened answers 200 with the current row.
func (h *ComandaHandler) AdvanceItemStatus(w http.ResponseWriter, r *http.Request) {
	storeID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid store ID"})
		return
	}

	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return
	}

	var req advanceItemStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	item, changed, err := h.svc.AdvanceItemStatus(r.Context(), service.AdvanceItemStatusRequest{
		StoreID: storeID,
		ItemID:  itemID,
		Status:  req.Status,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidItemStatus):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		case errors.Is(err, service.ErrItemNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "item not found"})
		case errors.Is(err, service.ErrItemTerminal):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: advance item status: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	if changed {
		h.hub.BroadcastToStore(storeID, ws.NewEvent("comanda_item.updated", toComandaItemResponse(item)))
	}
	writeJSON(w, http.StatusOK, toComandaItemResponse(item))
}

// Close handles POST /stores/{sid}/comandas/{id}/close.
// Converts the open tab into a sale and returns the printable receipt.
func (h *ComandaHandler) Close(w http.ResponseWriter, r *http.Request) {
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

	comandaID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid comanda ID"})
		return
	}

	var req closeComandaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	// Read the comanda first: the receipt needs numero and mesa, and a miss
	// here answers 404 before any transaction starts.
	comanda, err := h.store.GetComanda(r.Context(), database.GetComandaParams{
		ID:      comandaID,
		StoreID: storeID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "comanda not found"})
			return
		}
		log.Printf("ERROR: get comanda for close: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	result, err := h.svc.Close(r.Context(), service.CloseComandaRequest{
		StoreID:         storeID,
		ComandaID:       comandaID,
		PaymentMethod:   req.PaymentMethod,
		AmountPaidCents: req.AmountPaidCents,
		CreatedBy:       claims.UserID,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidPayment), errors.Is(err, service.ErrInvalidAmountPaid):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrComandaNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "comanda not found"})
		case errors.Is(err, service.ErrComandaClosed):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "comanda is already closed"})
		case errors.Is(err, service.ErrInsufficientStock):
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: close comanda: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	tenant, err := h.store.GetStore(r.Context(), storeID)
	if err != nil {
		log.Printf("ERROR: get store for receipt: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	receiptText := receipt.Render(receipt.Data{
		Store:         tenant,
		Sale:          result.Sale,
		Items:         result.Items,
		ComandaNumero: comanda.Numero,
		Mesa:          mesaOrEmpty(comanda),
	})

	saleResp := toSaleResponse(result.Sale, result.Items)
	h.hub.BroadcastToStore(storeID, ws.NewEvent("comanda.closed", toComandaResponse(result.Comanda)))
	h.hub.BroadcastToStore(storeID, ws.NewEvent("sale.created", saleResp))

	writeJSON(w, http.StatusCreated, closeComandaResponse{
		Sale:    saleResp,
		Receipt: receiptText,
	})
}

// --- Helpers ---

func mesaOrEmpty(c database.Comanda) string {
	if c.Mesa.Valid {
		return c.Mesa.String
	}
	return ""
}

// isComandaValidationError checks if the error is a known validation error
// from the service layer that should result in 400 Bad Request.
func isComandaValidationError(err error) bool {
	return errors.Is(err, service.ErrInvalidStoreID) ||
		errors.Is(err, service.ErrInvalidNumero) ||
		errors.Is(err, service.ErrInvalidQuantity) ||
		errors.Is(err, service.ErrInvalidProductID)
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/vendafacil/api/internal/database"
	"github.com/vendafacil/api/internal/middleware"
	"github.com/vendafacil/api/internal/receipt"
	"github.com/vendafacil/api/internal/service"
	"github.com/vendafacil/api/internal/ws"
)

// SaleServicer defines the service methods needed by sale handlers.
// Satisfied by *service.SaleService; narrow interface for testability.
type SaleServicer interface {
	ProcessDirectSale(ctx context.Context, req service.DirectSaleRequest) (*service.SaleResult, error)
}

// SaleStore defines the database methods needed by sale read handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type SaleStore interface {
	GetSale(ctx context.Context, arg database.GetSaleParams) (database.Sale, error)
	ListSales(ctx context.Context, arg database.ListSalesParams) ([]database.Sale, error)
	ListSaleItems(ctx context.Context, saleID uuid.UUID) ([]database.SaleItem, error)
	DailySummary(ctx context.Context, arg database.DailySummaryParams) ([]database.DailySummaryRow, error)
	GetStore(ctx context.Context, id uuid.UUID) (database.Store, error)
}

// SaleHandler handles balcão sales and sale history endpoints.
type SaleHandler struct {
	svc   SaleServicer
	store SaleStore
	hub   Broadcaster
}

// NewSaleHandler creates a new SaleHandler.
func NewSaleHandler(svc SaleServicer, store SaleStore, hub Broadcaster) *SaleHandler {
	return &SaleHandler{svc: svc, store: store, hub: hub}
}

// RegisterRoutes registers sale endpoints on the given Chi router.
// Expected to be mounted inside a store-scoped subrouter: /stores/{sid}/sales
func (h *SaleHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/summary", h.DailySummary)
	r.Get("/{id}", h.Get)
}

// --- Request / Response types ---

type directSaleItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

type directSaleRequest struct {
	PaymentMethod   string                  `json:"payment_method"`
	AmountPaidCents int64                   `json:"amount_paid_cents"`
	CustomerID      string                  `json:"customer_id"`
	Items           []directSaleItemRequest `json:"items"`
}

type saleResponse struct {
	ID              uuid.UUID          `json:"id"`
	StoreID         uuid.UUID          `json:"store_id"`
	ComandaID       *uuid.UUID         `json:"comanda_id"`
	CustomerID      *uuid.UUID         `json:"customer_id"`
	TotalCents      int64              `json:"total_cents"`
	PaymentMethod   string             `json:"payment_method"`
	AmountPaidCents *int64             `json:"amount_paid_cents"`
	ChangeCents     *int64             `json:"change_cents"`
	CreatedBy       uuid.UUID          `json:"created_by"`
	CreatedAt       time.Time          `json:"created_at"`
	Items           []saleItemResponse `json:"items"`
}

type saleItemResponse struct {
	ID             uuid.UUID `json:"id"`
	ProductID      uuid.UUID `json:"product_id"`
	ProductName    string    `json:"product_name"`
	Quantity       int32     `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	SubtotalCents  int64     `json:"subtotal_cents"`
	Status         string    `json:"status"`
	DestinoPreparo string    `json:"destino_preparo"`
}

type directSaleResponse struct {
	Sale    saleResponse `json:"sale"`
	Receipt string       `json:"receipt"`
}

type dailySummaryResponse struct {
	Date       string               `json:"date"`
	TotalCents int64                `json:"total_cents"`
	SaleCount  int64                `json:"sale_count"`
	ByMethod   []summaryMethodEntry `json:"by_method"`
}

type summaryMethodEntry struct {
	PaymentMethod string `json:"payment_method"`
	SaleCount     int64  `json:"sale_count"`
	TotalCents    int64  `json:"total_cents"`
}

func toSaleResponse(s database.Sale, items []database.SaleItem) saleResponse {
	resp := saleResponse{
		ID:            s.ID,
		StoreID:       s.StoreID,
		TotalCents:    s.TotalCents,
		PaymentMethod: s.PaymentMethod,
		CreatedBy:     s.CreatedBy,
		CreatedAt:     s.CreatedAt,
		Items:         make([]saleItemResponse, len(items)),
	}
	if s.ComandaID.Valid {
		id := uuid.UUID(s.ComandaID.Bytes)
		resp.ComandaID = &id
	}
	if s.CustomerID.Valid {
		id := uuid.UUID(s.CustomerID.Bytes)
		resp.CustomerID = &id
	}
	if s.AmountPaidCents.Valid {
		resp.AmountPaidCents = &s.AmountPaidCents.Int64
	}
	if s.ChangeCents.Valid {
		resp.ChangeCents = &s.ChangeCents.Int64
	}
	for i, it := range items {
		resp.Items[i] = saleItemResponse{
			ID:             it.ID,
			ProductID:      it.ProductID,
			ProductName:    it.ProductNameSnapshot,
			Quantity:       it.Quantity,
			UnitPriceCents: it.UnitPriceCents,
			SubtotalCents:  it.SubtotalCents,
			Status:         it.Status,
			DestinoPreparo: it.DestinoPreparo,
		}
	}
	return resp
}

// --- Handlers ---

// Create handles POST /stores/{sid}/sales: a balcão sale with no comanda.
func (h *SaleHandler) Create(w http.ResponseWriter, r *http.Request) {
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

	var req directSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "items are required"})
		return
	}

	items := make([]service.CartItem, len(req.Items))
	for i, item := range req.Items {
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "items[" + strconv.Itoa(i) + "]: invalid product_id",
			})
			return
		}
		items[i] = service.CartItem{ProductID: productID, Quantity: item.Quantity}
	}

	customerID := uuid.Nil
	if req.CustomerID != "" {
		customerID, err = uuid.Parse(req.CustomerID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid customer_id"})
			return
		}
	}

	result, err := h.svc.ProcessDirectSale(r.Context(), service.DirectSaleRequest{
		StoreID:         storeID,
		CustomerID:      customerID,
		PaymentMethod:   req.PaymentMethod,
		AmountPaidCents: req.AmountPaidCents,
		CreatedBy:       claims.UserID,
		Items:           items,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyCart),
			errors.Is(err, service.ErrInvalidPayment),
			errors.Is(err, service.ErrInvalidAmountPaid):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrProductNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
		case errors.Is(err, service.ErrInsufficientStock):
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: process direct sale: %v", err)
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
		Store: tenant,
		Sale:  result.Sale,
		Items: result.Items,
	})

	saleResp := toSaleResponse(result.Sale, result.Items)
	h.hub.BroadcastToStore(storeID, ws.NewEvent("sale.created", saleResp))

	writeJSON(w, http.StatusCreated, directSaleResponse{
		Sale:    saleResp,
		Receipt: receiptText,
	})
}

// List handles GET /stores/{sid}/sales with optional date range and pagination.
func (h *SaleHandler) List(w http.ResponseWriter, r *http.Request) {
	storeID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid store ID"})
		return
	}

	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	params := database.ListSalesParams{
		StoreID: storeID,
		Limit:   int32(limit),
		Offset:  int32(offset),
	}

	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid start_date format, use YYYY-MM-DD"})
			return
		}
		params.StartDate = pgtype.Timestamptz{Time: t, Valid: true}
	}
	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid end_date format, use YYYY-MM-DD"})
			return
		}
		params.EndDate = pgtype.Timestamptz{Time: t.AddDate(0, 0, 1), Valid: true}
	}

	sales, err := h.store.ListSales(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list sales: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]saleResponse, len(sales))
	for i, s := range sales {
		resp[i] = toSaleResponse(s, nil)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /stores/{sid}/sales/{id}.
func (h *SaleHandler) Get(w http.ResponseWriter, r *http.Request) {
	storeID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid store ID"})
		return
	}

	saleID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid sale ID"})
		return
	}

	sale, err := h.store.GetSale(r.Context(), database.GetSaleParams{
		ID:      saleID,
		StoreID: storeID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "sale not found"})
			return
		}
		log.Printf("ERROR: get sale: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items, err := h.store.ListSaleItems(r.Context(), saleID)
	if err != nil {
		log.Printf("ERROR: list sale items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toSaleResponse(sale, items))
}

// DailySummary handles GET /stores/{sid}/sales/summary?date=YYYY-MM-DD.
// Defaults to today.
func (h *SaleHandler) DailySummary(w http.ResponseWriter, r *http.Request) {
	storeID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid store ID"})
		return
	}

	day := time.Now().UTC().Truncate(24 * time.Hour)
	if s := r.URL.Query().Get("date"); s != "" {
		day, err = time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date format, use YYYY-MM-DD"})
			return
		}
	}

	rows, err := h.store.DailySummary(r.Context(), database.DailySummaryParams{
		StoreID: storeID,
		Start:   day,
		End:     day.AddDate(0, 0, 1),
	})
	if err != nil {
		log.Printf("ERROR: daily summary: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := dailySummaryResponse{
		Date:     day.Format("2006-01-02"),
		ByMethod: make([]summaryMethodEntry, len(rows)),
	}
	for i, row := range rows {
		resp.ByMethod[i] = summaryMethodEntry{
			PaymentMethod: row.PaymentMethod,
			SaleCount:     row.SaleCount,
			TotalCents:    row.TotalCents,
		}
		resp.TotalCents += row.TotalCents
		resp.SaleCount += row.SaleCount
	}
	writeJSON(w, http.StatusOK, resp)
}

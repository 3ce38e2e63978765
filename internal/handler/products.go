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
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/vendafacil/api/internal/database"
	"github.com/vendafacil/api/internal/enum"
)

// ProductStore defines the database methods needed by product handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ProductStore interface {
	ListProducts(ctx context.Context, arg database.ListProductsParams) ([]database.Product, error)
	ListLowStockProducts(ctx context.Context, storeID uuid.UUID) ([]database.Product, error)
	GetProduct(ctx context.Context, arg database.GetProductParams) (database.Product, error)
	CreateProduct(ctx context.Context, arg database.CreateProductParams) (database.Product, error)
	UpdateProduct(ctx context.Context, arg database.UpdateProductParams) (database.Product, error)
	DeactivateProduct(ctx context.Context, arg database.DeactivateProductParams) (database.Product, error)
}

// ProductHandler handles product catalog endpoints.
type ProductHandler struct {
	store ProductStore
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(store ProductStore) *ProductHandler {
	return &ProductHandler{store: store}
}

// RegisterRoutes registers read endpoints on the given Chi router.
// Expected to be mounted inside a store-scoped subrouter: /stores/{sid}/products
func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/low-stock", h.ListLowStock)
	r.Get("/{id}", h.Get)
}

// RegisterAdminRoutes registers catalog mutations. The router gates these to
// owner and manager roles.
func (h *ProductHandler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type productRequest struct {
	Name            string `json:"name"`
	Category        string `json:"category"`
	PriceCents      int64  `json:"price_cents"`
	CostCents       int64  `json:"cost_cents"`
	StockQuantity   int32  `json:"stock_quantity"`
	MinStock        int32  `json:"min_stock"`
	DestinoPreparo  string `json:"destino_preparo"`
	PrepTimeMinutes int32  `json:"prep_time_minutes"`
}

type productResponse struct {
	ID              uuid.UUID `json:"id"`
	StoreID         uuid.UUID `json:"store_id"`
	Name            string    `json:"name"`
	Category        *string   `json:"category"`
	PriceCents      int64     `json:"price_cents"`
	CostCents       int64     `json:"cost_cents"`
	StockQuantity   int32     `json:"stock_quantity"`
	MinStock        int32     `json:"min_stock"`
	DestinoPreparo  string    `json:"destino_preparo"`
	PrepTimeMinutes int32     `json:"prep_time_minutes"`
	LowStock        bool      `json:"low_stock"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toProductResponse(p database.Product) productResponse {
	resp := productResponse{
		ID:              p.ID,
		StoreID:         p.StoreID,
		Name:            p.Name,
		PriceCents:      p.PriceCents,
		CostCents:       p.CostCents,
		StockQuantity:   p.StockQuantity,
		MinStock:        p.MinStock,
		DestinoPreparo:  p.DestinoPreparo,
		PrepTimeMinutes: p.PrepTimeMinutes,
		LowStock:        p.StockQuantity <= p.MinStock,
		Active:          p.Active,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
	if p.Category.Valid {
		resp.Category = &p.Category.String
	}
	return resp
}

func validateProductRequest(req productRequest) string {
	if req.Name == "" {
		return "name is required"
	}
	if req.PriceCents < 0 {
		return "price_cents must be >= 0"
	}
	if req.CostCents < 0 {
		return "cost_cents must be >= 0"
	}
	if req.StockQuantity < 0 {
		return "stock_quantity must be >= 0"
	}
	if !isValidDestino(req.DestinoPreparo) {
		return "destino_preparo must be kitchen, bar or none"
	}
	return ""
}

func isValidDestino(destino string) bool {
	switch destino {
	case enum.DestinoKitchen, enum.DestinoBar, enum.DestinoNone:
		return true
	}
	return false
}

// --- Handlers ---

// List handles GET /stores/{sid}/products.
// ?active=true limits the list to sellable products.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	storeID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid store ID"})
		return
	}

	products, err := h.store.ListProducts(r.Context(), database.ListProductsParams{
		StoreID:    storeID,
		OnlyActive: r.URL.Query().Get("active") == "true",
	})
	if err != nil {
		log.Printf("ERROR: list products: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = toProductResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListLowStock handles GET /stores/{sid}/products/low-stock.
func (h *ProductHandler) ListLowStock(w http.ResponseWriter, r *http.Request) {
	storeID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid store ID"})
		return
	}

	products, err := h.store.ListLowStockProducts(r.Context(), storeID)
	if err != nil {
		log.Printf("ERROR: list low stock products: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = toProductResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /stores/{sid}/products/{id}.
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	storeID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid store ID"})
		return
	}

	productID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product ID"})
		return
	}

	product, err := h.store.GetProduct(r.Context(), database.GetProductParams{
		ID:      productID,
		StoreID: storeID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		log.Printf("ERROR: get product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toProductResponse(product))
}

// Create handles POST /stores/{sid}/products.
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	storeID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid store ID"})
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.DestinoPreparo == "" {
		req.DestinoPreparo = enum.DestinoNone
	}
	if msg := validateProductRequest(req); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	product, err := h.store.CreateProduct(r.Context(), database.CreateProductParams{
		StoreID:         storeID,
		Name:            req.Name,
		Category:        textOrNull(req.Category),
		PriceCents:      req.PriceCents,
		CostCents:       req.CostCents,
		StockQuantity:   req.StockQuantity,
		MinStock:        req.MinStock,
		DestinoPreparo:  req.DestinoPreparo,
		PrepTimeMinutes: req.PrepTimeMinutes,
	})
	if err != nil {
		log.Printf("ERROR: create product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toProductResponse(product))
}

// Update handles PUT /stores/{sid}/products/{id}.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	storeID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid store ID"})
		return
	}

	productID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product ID"})
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.DestinoPreparo == "" {
		req.DestinoPreparo = enum.DestinoNone
	}
	if msg := validateProductRequest(req); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	product, err := h.store.UpdateProduct(r.Context(), database.UpdateProductParams{
		ID:              productID,
		StoreID:         storeID,
		Name:            req.Name,
		Category:        textOrNull(req.Category),
		PriceCents:      req.PriceCents,
		CostCents:       req.CostCents,
		StockQuantity:   req.StockQuantity,
		MinStock:        req.MinStock,
		DestinoPreparo:  req.DestinoPreparo,
		PrepTimeMinutes: req.PrepTimeMinutes,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		log.Printf("ERROR: update product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toProductResponse(product))
}

// Delete handles DELETE /stores/{sid}/products/{id}.
// Products referenced by past sales are never hard-deleted; this flips
// active off so the product stops being sellable.
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	storeID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid store ID"})
		return
	}

	productID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product ID"})
		return
	}

	if _, err := h.store.DeactivateProduct(r.Context(), database.DeactivateProductParams{
		ID:      productID,
		StoreID: storeID,
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		log.Printf("ERROR: deactivate product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

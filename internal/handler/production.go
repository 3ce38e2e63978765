package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/vendafacil/api/internal/database"
	"github.com/vendafacil/api/internal/enum"
)

// ProductionStore defines the database methods needed by production handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ProductionStore interface {
	ListProductionItems(ctx context.Context, arg database.ListProductionItemsParams) ([]database.ProductionItemRow, error)
}

// ProductionHandler serves the kitchen and bar display queues.
type ProductionHandler struct {
	store ProductionStore
	now   func() time.Time
}

// NewProductionHandler creates a new ProductionHandler.
func NewProductionHandler(store ProductionStore) *ProductionHandler {
	return &ProductionHandler{store: store, now: time.Now}
}

// RegisterRoutes registers production endpoints on the given Chi router.
// Expected to be mounted inside a store-scoped subrouter: /stores/{sid}/production
func (h *ProductionHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
}

// --- Response types ---

type productionItemResponse struct {
	ID             uuid.UUID `json:"id"`
	ComandaID      uuid.UUID `json:"comanda_id"`
	ComandaNumero  int32     `json:"comanda_numero"`
	Mesa           *string   `json:"mesa"`
	ProductID      uuid.UUID `json:"product_id"`
	ProductName    string    `json:"product_name"`
	Quantity       int32     `json:"quantity"`
	Status         string    `json:"status"`
	DestinoPreparo string    `json:"destino_preparo"`
	ElapsedSeconds int64     `json:"elapsed_seconds"`
	Late           bool      `json:"late"`
	CreatedAt      time.Time `json:"created_at"`
}

// --- Handlers ---

// List handles GET /stores/{sid}/production?destino=kitchen|bar.
// Items come back oldest first so displays show the queue in arrival order.
// An item is late once it has waited longer than the product's expected
// preparation time.
func (h *ProductionHandler) List(w http.ResponseWriter, r *http.Request) {
	storeID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid store ID"})
		return
	}

	destino := r.URL.Query().Get("destino")
	if destino != enum.DestinoKitchen && destino != enum.DestinoBar {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "destino must be kitchen or bar"})
		return
	}

	items, err := h.store.ListProductionItems(r.Context(), database.ListProductionItemsParams{
		StoreID: storeID,
		Destino: destino,
	})
	if err != nil {
		log.Printf("ERROR: list production items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	now := h.now()
	resp := make([]productionItemResponse, len(items))
	for i, it := range items {
		elapsed := int64(now.Sub(it.CreatedAt) / time.Second)
		if elapsed < 0 {
			elapsed = 0
		}
		entry := productionItemResponse{
			ID:             it.ID,
			ComandaID:      it.ComandaID,
			ComandaNumero:  it.ComandaNumero,
			ProductID:      it.ProductID,
			ProductName:    it.ProductNameSnapshot,
			Quantity:       it.Quantity,
			Status:         it.Status,
			DestinoPreparo: it.DestinoPreparo,
			ElapsedSeconds: elapsed,
			Late:           it.PrepTimeMinutes > 0 && elapsed > int64(it.PrepTimeMinutes)*60,
			CreatedAt:      it.CreatedAt,
		}
		if it.Mesa.Valid {
			entry.Mesa = &it.Mesa.String
		}
		resp[i] = entry
	}
	writeJSON(w, http.StatusOK, resp)
}

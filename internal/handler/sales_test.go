package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vendafacil/api/internal/database"
	"github.com/vendafacil/api/internal/enum"
	"github.com/vendafacil/api/internal/handler"
	"github.com/vendafacil/api/internal/middleware"
	"github.com/vendafacil/api/internal/service"
)

// --- Mock SaleServicer ---

type mockSaleService struct {
	processDirectSaleFn func(ctx context.Context, req service.DirectSaleRequest) (*service.SaleResult, error)
}

func (m *mockSaleService) ProcessDirectSale(ctx context.Context, req service.DirectSaleRequest) (*service.SaleResult, error) {
	return m.processDirectSaleFn(ctx, req)
}

// --- Mock SaleStore ---

type mockSaleReadStore struct {
	getSaleFn       func(ctx context.Context, arg database.GetSaleParams) (database.Sale, error)
	listSalesFn     func(ctx context.Context, arg database.ListSalesParams) ([]database.Sale, error)
	listSaleItemsFn func(ctx context.Context, saleID uuid.UUID) ([]database.SaleItem, error)
	dailySummaryFn  func(ctx context.Context, arg database.DailySummaryParams) ([]database.DailySummaryRow, error)
	getStoreFn      func(ctx context.Context, id uuid.UUID) (database.Store, error)
}

func (m *mockSaleReadStore) GetSale(ctx context.Context, arg database.GetSaleParams) (database.Sale, error) {
	if m.getSaleFn != nil {
		return m.getSaleFn(ctx, arg)
	}
	return database.Sale{}, pgx.ErrNoRows
}

func (m *mockSaleReadStore) ListSales(ctx context.Context, arg database.ListSalesParams) ([]database.Sale, error) {
	if m.listSalesFn != nil {
		return m.listSalesFn(ctx, arg)
	}
	return []database.Sale{}, nil
}

func (m *mockSaleReadStore) ListSaleItems(ctx context.Context, saleID uuid.UUID) ([]database.SaleItem, error) {
	if m.listSaleItemsFn != nil {
		return m.listSaleItemsFn(ctx, saleID)
	}
	return []database.SaleItem{}, nil
}

func (m *mockSaleReadStore) DailySummary(ctx context.Context, arg database.DailySummaryParams) ([]database.DailySummaryRow, error) {
	if m.dailySummaryFn != nil {
		return m.dailySummaryFn(ctx, arg)
	}
	return []database.DailySummaryRow{}, nil
}

func (m *mockSaleReadStore) GetStore(ctx context.Context, id uuid.UUID) (database.Store, error) {
	if m.getStoreFn != nil {
		return m.getStoreFn(ctx, id)
	}
	return database.Store{ID: id, Name: "Lanchonete Central"}, nil
}

// --- Helpers ---

func setupSaleRouter(svc *mockSaleService, store *mockSaleReadStore, hub *mockBroadcaster) *chi.Mux {
	h := handler.NewSaleHandler(svc, store, hub)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.Route("/stores/{sid}/sales", h.RegisterRoutes)
	return r
}

func decodeSaleResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func makeSale(storeID uuid.UUID, totalCents int64, method string) database.Sale {
	return database.Sale{
		ID:            uuid.New(),
		StoreID:       storeID,
		TotalCents:    totalCents,
		PaymentMethod: method,
		CreatedBy:     uuid.New(),
		CreatedAt:     time.Now(),
	}
}

// --- Create tests ---

func TestCreateDirectSale_Valid(t *testing.T) {
	storeID := uuid.New()
	claims := makeClaims(storeID)
	productID := uuid.New()

	sale := makeSale(storeID, 3100, enum.PaymentMethodCard)
	saleItems := []database.SaleItem{
		{
			ID:                  uuid.New(),
			SaleID:              sale.ID,
			ProductID:           productID,
			ProductNameSnapshot: "Café",
			Quantity:            2,
			UnitPriceCents:      800,
			SubtotalCents:       1600,
			Status:              enum.ItemStatusDone,
			DestinoPreparo:      enum.DestinoNone,
		},
		{
			ID:                  uuid.New(),
			SaleID:              sale.ID,
			ProductID:           uuid.New(),
			ProductNameSnapshot: "Pastel",
			Quantity:            1,
			UnitPriceCents:      1500,
			SubtotalCents:       1500,
			Status:              enum.ItemStatusDone,
			DestinoPreparo:      enum.DestinoKitchen,
		},
	}

	svc := &mockSaleService{
		processDirectSaleFn: func(_ context.Context, req service.DirectSaleRequest) (*service.SaleResult, error) {
			if req.CreatedBy != claims.UserID {
				t.Errorf("created by: got %v, want %v", req.CreatedBy, claims.UserID)
			}
			if req.CustomerID != uuid.Nil {
				t.Errorf("customer ID: got %v, want Nil for anonymous sale", req.CustomerID)
			}
			if len(req.Items) != 2 {
				t.Fatalf("expected 2 cart items, got %d", len(req.Items))
			}
			if req.Items[0].ProductID != productID || req.Items[0].Quantity != 2 {
				t.Errorf("cart item 0: got %+v", req.Items[0])
			}
			return &service.SaleResult{Sale: sale, Items: saleItems}, nil
		},
	}
	hub := &mockBroadcaster{}
	router := setupSaleRouter(svc, &mockSaleReadStore{}, hub)

	rr := doAuthRequest(t, router, "POST", "/stores/"+storeID.String()+"/sales", map[string]interface{}{
		"payment_method": "card",
		"items": []map[string]interface{}{
			{"product_id": productID.String(), "quantity": 2},
			{"product_id": uuid.New().String(), "quantity": 1},
		},
	}, claims)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	resp := decodeSaleResponse(t, rr)
	saleResp, ok := resp["sale"].(map[string]interface{})
	if !ok {
		t.Fatal("expected sale object in response")
	}
	if saleResp["total_cents"] != float64(3100) {
		t.Errorf("total_cents: got %v, want 3100", saleResp["total_cents"])
	}
	if saleResp["comanda_id"] != nil {
		t.Errorf("comanda_id: got %v, want null for balcão sale", saleResp["comanda_id"])
	}

	receiptText, _ := resp["receipt"].(string)
	if !strings.Contains(receiptText, "Lanchonete Central") {
		t.Errorf("receipt missing store name:\n%s", receiptText)
	}
	if strings.Contains(receiptText, "Comanda") {
		t.Errorf("balcão receipt must not mention a comanda:\n%s", receiptText)
	}

	if len(hub.events) != 1 || hub.events[0].Type != "sale.created" {
		t.Errorf("events: got %v, want [sale.created]", hub.eventTypes())
	}
}

func TestCreateDirectSale_WithCustomer(t *testing.T) {
	storeID := uuid.New()
	customerID := uuid.New()

	svc := &mockSaleService{
		processDirectSaleFn: func(_ context.Context, req service.DirectSaleRequest) (*service.SaleResult, error) {
			if req.CustomerID != customerID {
				t.Errorf("customer ID: got %v, want %v", req.CustomerID, customerID)
			}
			return &service.SaleResult{Sale: makeSale(storeID, 800, enum.PaymentMethodCash)}, nil
		},
	}
	router := setupSaleRouter(svc, &mockSaleReadStore{}, &mockBroadcaster{})

	rr := doAuthRequest(t, router, "POST", "/stores/"+storeID.String()+"/sales", map[string]interface{}{
		"payment_method": "cash",
		"customer_id":    customerID.String(),
		"items": []map[string]interface{}{
			{"product_id": uuid.New().String(), "quantity": 1},
		},
	}, makeClaims(storeID))

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
}

func TestCreateDirectSale_EmptyItems(t *testing.T) {
	storeID := uuid.New()
	router := setupSaleRouter(&mockSaleService{}, &mockSaleReadStore{}, &mockBroadcaster{})

	rr := doAuthRequest(t, router, "POST", "/stores/"+storeID.String()+"/sales", map[string]interface{}{
		"payment_method": "cash",
		"items":          []map[string]interface{}{},
	}, makeClaims(storeID))

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestCreateDirectSale_InvalidItemProductID(t *testing.T) {
	storeID := uuid.New()
	router := setupSaleRouter(&mockSaleService{}, &mockSaleReadStore{}, &mockBroadcaster{})

	rr := doAuthRequest(t, router, "POST", "/stores/"+storeID.String()+"/sales", map[string]interface{}{
		"payment_method": "cash",
		"items": []map[string]interface{}{
			{"product_id": "not-a-uuid", "quantity": 1},
		},
	}, makeClaims(storeID))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}

	resp := decodeSaleResponse(t, rr)
	if resp["error"] != "items[0]: invalid product_id" {
		t.Errorf("error: got %v, want 'items[0]: invalid product_id'", resp["error"])
	}
}

func TestCreateDirectSale_ProductNotFound(t *testing.T) {
	storeID := uuid.New()
	svc := &mockSaleService{
		processDirectSaleFn: func(_ context.Context, _ service.DirectSaleRequest) (*service.SaleResult, error) {
			return nil, service.ErrProductNotFound
		},
	}
	hub := &mockBroadcaster{}
	router := setupSaleRouter(svc, &mockSaleReadStore{}, hub)

	rr := doAuthRequest(t, router, "POST", "/stores/"+storeID.String()+"/sales", map[string]interface{}{
		"payment_method": "cash",
		"items": []map[string]interface{}{
			{"product_id": uuid.New().String(), "quantity": 1},
		},
	}, makeClaims(storeID))

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
	if len(hub.events) != 0 {
		t.Errorf("expected no events, got %v", hub.eventTypes())
	}
}

func TestCreateDirectSale_InsufficientStock(t *testing.T) {
	storeID := uuid.New()
	svc := &mockSaleService{
		processDirectSaleFn: func(_ context.Context, _ service.DirectSaleRequest) (*service.SaleResult, error) {
			return nil, service.ErrInsufficientStock
		},
	}
	hub := &mockBroadcaster{}
	router := setupSaleRouter(svc, &mockSaleReadStore{}, hub)

	rr := doAuthRequest(t, router, "POST", "/stores/"+storeID.String()+"/sales", map[string]interface{}{
		"payment_method": "cash",
		"items": []map[string]interface{}{
			{"product_id": uuid.New().String(), "quantity": 5},
		},
	}, makeClaims(storeID))

	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnprocessableEntity)
	}
	if len(hub.events) != 0 {
		t.Errorf("expected no events on failure, got %v", hub.eventTypes())
	}
}

// --- List tests ---

func TestListSales_DefaultPagination(t *testing.T) {
	storeID := uuid.New()
	var captured database.ListSalesParams
	store := &mockSaleReadStore{
		listSalesFn: func(_ context.Context, arg database.ListSalesParams) ([]database.Sale, error) {
			captured = arg
			return []database.Sale{makeSale(storeID, 1000, enum.PaymentMethodCash)}, nil
		},
	}
	router := setupSaleRouter(&mockSaleService{}, store, &mockBroadcaster{})

	rr := doAuthRequest(t, router, "GET", "/stores/"+storeID.String()+"/sales", nil, makeClaims(storeID))

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if captured.Limit != 20 {
		t.Errorf("limit: got %d, want 20", captured.Limit)
	}
	if captured.Offset != 0 {
		t.Errorf("offset: got %d, want 0", captured.Offset)
	}
	if captured.StartDate.Valid || captured.EndDate.Valid {
		t.Error("expected no date filters by default")
	}
}

func TestListSales_ClampsLimit(t *testing.T) {
	storeID := uuid.New()
	var captured database.ListSalesParams
	store := &mockSaleReadStore{
		listSalesFn: func(_ context.Context, arg database.ListSalesParams) ([]database.Sale, error) {
			captured = arg
			return nil, nil
		},
	}
	router := setupSaleRouter(&mockSaleService{}, store, &mockBroadcaster{})

	rr := doAuthRequest(t, router, "GET", "/stores/"+storeID.String()+"/sales?limit=500&offset=40", nil, makeClaims(storeID))

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	if captured.Limit != 100 {
		t.Errorf("limit: got %d, want 100", captured.Limit)
	}
	if captured.Offset != 40 {
		t.Errorf("offset: got %d, want 40", captured.Offset)
	}
}

func TestListSales_DateRange(t *testing.T) {
	storeID := uuid.New()
	var captured database.ListSalesParams
	store := &mockSaleReadStore{
		listSalesFn: func(_ context.Context, arg database.ListSalesParams) ([]database.Sale, error) {
			captured = arg
			return nil, nil
		},
	}
	router := setupSaleRouter(&mockSaleService{}, store, &mockBroadcaster{})

	rr := doAuthRequest(t, router, "GET", "/stores/"+storeID.String()+"/sales?start_date=2026-08-01&end_date=2026-08-31", nil, makeClaims(storeID))

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	if !captured.StartDate.Valid {
		t.Fatal("expected start date filter")
	}
	if !captured.EndDate.Valid {
		t.Fatal("expected end date filter")
	}
	// end_date is exclusive: the filter covers through the end of the named day.
	wantEnd := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	if !captured.EndDate.Time.Equal(wantEnd) {
		t.Errorf("end date: got %v, want %v", captured.EndDate.Time, wantEnd)
	}
}

func TestListSales_InvalidStartDate(t *testing.T) {
	storeID := uuid.New()
	router := setupSaleRouter(&mockSaleService{}, &mockSaleReadStore{}, &mockBroadcaster{})

	rr := doAuthRequest(t, router, "GET", "/stores/"+storeID.String()+"/sales?start_date=31-08-2026", nil, makeClaims(storeID))

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

// --- Get tests ---

func TestGetSale_WithItems(t *testing.T) {
	storeID := uuid.New()
	sale := makeSale(storeID, 2400, enum.PaymentMethodPix)

	store := &mockSaleReadStore{
		getSaleFn: func(_ context.Context, arg database.GetSaleParams) (database.Sale, error) {
			if arg.ID == sale.ID && arg.StoreID == storeID {
				return sale, nil
			}
			return database.Sale{}, pgx.ErrNoRows
		},
		listSaleItemsFn: func(_ context.Context, _ uuid.UUID) ([]database.SaleItem, error) {
			return []database.SaleItem{
				{ID: uuid.New(), SaleID: sale.ID, ProductID: uuid.New(), ProductNameSnapshot: "Chopp 500ml", Quantity: 2, UnitPriceCents: 1200, SubtotalCents: 2400, Status: enum.ItemStatusDone, DestinoPreparo: enum.DestinoBar},
			}, nil
		},
	}
	router := setupSaleRouter(&mockSaleService{}, store, &mockBroadcaster{})

	rr := doAuthRequest(t, router, "GET", "/stores/"+storeID.String()+"/sales/"+sale.ID.String(), nil, makeClaims(storeID))

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeSaleResponse(t, rr)
	items, ok := resp["items"].([]interface{})
	if !ok || len(items) != 1 {
		t.Fatalf("expected 1 item, got %v", resp["items"])
	}
}

func TestGetSale_NotFound(t *testing.T) {
	storeID := uuid.New()
	router := setupSaleRouter(&mockSaleService{}, &mockSaleReadStore{}, &mockBroadcaster{})

	rr := doAuthRequest(t, router, "GET", "/stores/"+storeID.String()+"/sales/"+uuid.New().String(), nil, makeClaims(storeID))

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

// --- Daily summary tests ---

func TestDailySummary_AggregatesMethods(t *testing.T) {
	storeID := uuid.New()
	store := &mockSaleReadStore{
		dailySummaryFn: func(_ context.Context, arg database.DailySummaryParams) ([]database.DailySummaryRow, error) {
			if arg.End.Sub(arg.Start) != 24*time.Hour {
				t.Errorf("expected one-day window, got %v to %v", arg.Start, arg.End)
			}
			return []database.DailySummaryRow{
				{PaymentMethod: "cash", SaleCount: 3, TotalCents: 9000},
				{PaymentMethod: "pix", SaleCount: 2, TotalCents: 5400},
			}, nil
		},
	}
	router := setupSaleRouter(&mockSaleService{}, store, &mockBroadcaster{})

	rr := doAuthRequest(t, router, "GET", "/stores/"+storeID.String()+"/sales/summary?date=2026-08-30", nil, makeClaims(storeID))

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeSaleResponse(t, rr)
	if resp["date"] != "2026-08-30" {
		t.Errorf("date: got %v, want 2026-08-30", resp["date"])
	}
	if resp["total_cents"] != float64(14400) {
		t.Errorf("total_cents: got %v, want 14400", resp["total_cents"])
	}
	if resp["sale_count"] != float64(5) {
		t.Errorf("sale_count: got %v, want 5", resp["sale_count"])
	}
	byMethod, ok := resp["by_method"].([]interface{})
	if !ok || len(byMethod) != 2 {
		t.Fatalf("expected 2 method entries, got %v", resp["by_method"])
	}
}

func TestDailySummary_InvalidDate(t *testing.T) {
	storeID := uuid.New()
	router := setupSaleRouter(&mockSaleService{}, &mockSaleReadStore{}, &mockBroadcaster{})

	rr := doAuthRequest(t, router, "GET", "/stores/"+storeID.String()+"/sales/summary?date=agosto", nil, makeClaims(storeID))

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

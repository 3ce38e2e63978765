//go:build integration

package handler_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/vendafacil/api/internal/config"
	"github.com/vendafacil/api/internal/database"
	"github.com/vendafacil/api/internal/router"
	"github.com/vendafacil/api/internal/ws"
	"golang.org/x/crypto/bcrypt"
)

// TestIntegrationFlow exercises the full API lifecycle against a real PostgreSQL database.
// This is the first test that runs the full stack with all handlers wired through the router.
func TestIntegrationFlow(t *testing.T) {
	ctx := context.Background()

	// Start PostgreSQL container
	pgContainer, connStr, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	// Run migrations
	runMigrations(t, connStr)

	// Create pgxpool connection
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	defer pool.Close()

	// Initialize dependencies
	cfg := &config.Config{
		Port:        "8081",
		DatabaseURL: connStr,
		JWTSecret:   "integration-test-secret",
	}
	queries := database.New(pool)
	hub := ws.NewHub()
	// NOTE: hub.Run() goroutine leaks on test exit — Hub has no shutdown mechanism.
	// Acceptable for tests; production should add context-based shutdown.
	go hub.Run()

	// Build router
	r := router.New(cfg, queries, pool, hub)

	// Create HTTP test server
	server := httptest.NewServer(r)
	defer server.Close()

	// --- 1. Create store with subscription (manual DB insert to bootstrap) ---
	storeID := createStore(t, ctx, pool)

	// --- 2. Create owner user (manual DB insert to bootstrap) ---
	ownerID := createOwnerUser(t, ctx, pool, storeID)

	// --- 3. Login as owner ---
	token := login(t, server, "dono@teste.com.br", "senha123")

	// --- 4. Subscription standing is unblocked ---
	accessResp := httpGetJSON(t, server, fmt.Sprintf("/stores/%s/access-status", storeID), token)
	if accessResp["blocked"].(bool) {
		t.Fatalf("access-status blocked for active trial: %+v", accessResp)
	}

	// --- 5. Open cash session ---
	sessionResp := httpPostJSON(t, server, fmt.Sprintf("/stores/%s/cash-sessions", storeID),
		map[string]interface{}{"opening_cents": 10000}, token)
	sessionID := uuid.MustParse(sessionResp["id"].(string))

	// --- 6. Create products through API ---
	pastelResp := createIntegrationProduct(t, server, storeID, token, "Pastel de Carne", 800, 10, "kitchen")
	pastelID := uuid.MustParse(pastelResp["id"].(string))
	choppResp := createIntegrationProduct(t, server, storeID, token, "Chopp 500ml", 1200, 50, "bar")
	choppID := uuid.MustParse(choppResp["id"].(string))

	// --- 7. Open comanda 15 ---
	comandaResp := httpPostJSON(t, server, fmt.Sprintf("/stores/%s/comandas/open", storeID),
		map[string]interface{}{"numero": 15, "mesa": "Mesa 4"}, token)
	comandaID := uuid.MustParse(comandaResp["id"].(string))
	if comandaResp["status"].(string) != "aberta" {
		t.Fatalf("comanda status: got %s, want aberta", comandaResp["status"])
	}

	// Reopening the same numero returns the same comanda, not a duplicate
	comandaAgain := httpPostJSON(t, server, fmt.Sprintf("/stores/%s/comandas/open", storeID),
		map[string]interface{}{"numero": 15}, token)
	if comandaAgain["id"].(string) != comandaID.String() {
		t.Fatalf("reopening numero 15: got %s, want existing %s", comandaAgain["id"], comandaID)
	}

	// --- 8. Add items to comanda ---
	item1Resp := httpPostJSON(t, server, fmt.Sprintf("/stores/%s/comandas/%s/items", storeID, comandaID),
		map[string]interface{}{"product_id": pastelID.String(), "quantity": 2}, token)
	item1ID := uuid.MustParse(item1Resp["id"].(string))
	if item1Resp["subtotal_cents"].(float64) != 1600 {
		t.Fatalf("item subtotal: got %v, want 1600", item1Resp["subtotal_cents"])
	}
	if item1Resp["status"].(string) != "pending" {
		t.Fatalf("new item status: got %s, want pending", item1Resp["status"])
	}

	httpPostJSON(t, server, fmt.Sprintf("/stores/%s/comandas/%s/items", storeID, comandaID),
		map[string]interface{}{"product_id": choppID.String(), "quantity": 1}, token)

	// --- 9. Item shows up on the kitchen display ---
	kitchenQueue := httpGetJSONList(t, server, fmt.Sprintf("/stores/%s/production?destino=kitchen", storeID), token)
	if len(kitchenQueue) != 1 {
		t.Fatalf("kitchen queue: got %d items, want 1", len(kitchenQueue))
	}
	if kitchenQueue[0]["product_name"].(string) != "Pastel de Carne" {
		t.Fatalf("kitchen queue item: got %s, want Pastel de Carne", kitchenQueue[0]["product_name"])
	}

	// --- 10. Advance item through the production state machine ---
	advanceItemStatus(t, server, storeID, item1ID, "in_progress", token)
	advanceItemStatus(t, server, storeID, item1ID, "done", token)

	// Done items leave the display
	kitchenQueue = httpGetJSONList(t, server, fmt.Sprintf("/stores/%s/production?destino=kitchen", storeID), token)
	if len(kitchenQueue) != 0 {
		t.Fatalf("kitchen queue after done: got %d items, want 0", len(kitchenQueue))
	}

	// --- 11. Close comanda: pay cash with change ---
	closeResp := httpPostJSON(t, server, fmt.Sprintf("/stores/%s/comandas/%s/close", storeID, comandaID),
		map[string]interface{}{"payment_method": "cash", "amount_paid_cents": 5000}, token)
	sale, ok := closeResp["sale"].(map[string]interface{})
	if !ok {
		t.Fatalf("close response missing 'sale' field: %+v", closeResp)
	}
	// 2x Pastel 800 + 1x Chopp 1200 = 2800
	if sale["total_cents"].(float64) != 2800 {
		t.Fatalf("sale total: got %v, want 2800", sale["total_cents"])
	}
	if sale["change_cents"].(float64) != 2200 {
		t.Fatalf("change: got %v, want 2200", sale["change_cents"])
	}
	receiptText, _ := closeResp["receipt"].(string)
	if !strings.Contains(receiptText, "Comanda 15") {
		t.Fatalf("receipt missing comanda number:\n%s", receiptText)
	}

	// Closing again conflicts
	httpPostExpectStatus(t, server, fmt.Sprintf("/stores/%s/comandas/%s/close", storeID, comandaID),
		map[string]interface{}{"payment_method": "cash", "amount_paid_cents": 5000}, token, http.StatusConflict)

	// --- 12. Stock was decremented by the close ---
	pastelAfter := httpGetJSON(t, server, fmt.Sprintf("/stores/%s/products/%s", storeID, pastelID), token)
	if pastelAfter["stock_quantity"].(float64) != 8 {
		t.Fatalf("pastel stock after close: got %v, want 8", pastelAfter["stock_quantity"])
	}

	// --- 13. Catalog edits never rewrite sold snapshots ---
	saleID := uuid.MustParse(sale["id"].(string))
	httpPutJSON(t, server, fmt.Sprintf("/stores/%s/products/%s", storeID, pastelID),
		map[string]interface{}{
			"name":              "Pastel Especial",
			"price_cents":       1100,
			"stock_quantity":    8,
			"min_stock":         2,
			"destino_preparo":   "kitchen",
			"prep_time_minutes": 5,
		}, token)

	soldPastel := findSaleItem(t, httpGetJSON(t, server, fmt.Sprintf("/stores/%s/sales/%s", storeID, saleID), token), pastelID)
	if soldPastel["product_name"].(string) != "Pastel de Carne" {
		t.Fatalf("snapshot name after catalog edit: got %s, want Pastel de Carne", soldPastel["product_name"])
	}
	if soldPastel["unit_price_cents"].(float64) != 800 {
		t.Fatalf("snapshot price after catalog edit: got %v, want 800", soldPastel["unit_price_cents"])
	}

	// --- 14. Direct balcão sale, pix, anonymous customer ---
	directResp := httpPostJSON(t, server, fmt.Sprintf("/stores/%s/sales", storeID),
		map[string]interface{}{
			"payment_method": "pix",
			"items": []map[string]interface{}{
				{"product_id": choppID.String(), "quantity": 2},
			},
		}, token)
	directSale := directResp["sale"].(map[string]interface{})
	if directSale["total_cents"].(float64) != 2400 {
		t.Fatalf("direct sale total: got %v, want 2400", directSale["total_cents"])
	}
	if directSale["comanda_id"] != nil {
		t.Fatalf("direct sale comanda_id: got %v, want null", directSale["comanda_id"])
	}

	// --- 15. Daily summary covers both sales ---
	today := time.Now().UTC().Format("2006-01-02")
	summary := httpGetJSON(t, server, fmt.Sprintf("/stores/%s/sales/summary?date=%s", storeID, today), token)
	if summary["sale_count"].(float64) != 2 {
		t.Fatalf("summary sale_count: got %v, want 2", summary["sale_count"])
	}
	if summary["total_cents"].(float64) != 5200 {
		t.Fatalf("summary total: got %v, want 5200", summary["total_cents"])
	}

	// --- 16. Close cash session: expected = opening + cash sales ---
	closeSessionResp := httpPostJSON(t, server, fmt.Sprintf("/stores/%s/cash-sessions/%s/close", storeID, sessionID),
		map[string]interface{}{"closing_cents": 12800}, token)
	if closeSessionResp["expected_cents"].(float64) != 12800 {
		t.Fatalf("session expected: got %v, want 12800 (10000 opening + 2800 cash)", closeSessionResp["expected_cents"])
	}
	if closeSessionResp["difference_cents"].(float64) != 0 {
		t.Fatalf("session difference: got %v, want 0", closeSessionResp["difference_cents"])
	}

	t.Logf("Integration test passed: container=%s, store=%s, owner=%s, comanda=%s",
		pgContainer.GetContainerID(), storeID, ownerID, comandaID)
}

// --- Setup helpers ---

func setupPostgresContainer(t *testing.T, ctx context.Context) (testcontainers.Container, string, func()) {
	t.Helper()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("venda_test"),
		tcpostgres.WithUsername("venda"),
		tcpostgres.WithPassword("venda"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	cleanup := func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	}

	return pgContainer, connStr, cleanup
}

func runMigrations(t *testing.T, connStr string) {
	t.Helper()

	// Connect with stdlib for migrate
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("open db for migrations: %v", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		t.Fatalf("create migrate driver: %v", err)
	}

	// Path relative to this test file's package directory (api/internal/handler/).
	// Go test sets cwd to the package directory.
	m, err := migrate.NewWithDatabaseInstance(
		"file://../../migrations",
		"postgres", driver)
	if err != nil {
		t.Fatalf("create migrate instance: %v", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("run migrations: %v", err)
	}
}

func createStore(t *testing.T, ctx context.Context, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	err := pool.QueryRow(ctx,
		`INSERT INTO stores (name, cnpj, address, block_sale_without_stock)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		"Bar do Teste", "12.345.678/0001-90", "Rua das Flores, 100", true,
	).Scan(&id)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}

	_, err = pool.Exec(ctx,
		`INSERT INTO subscriptions (store_id, plan, active, expires_at)
		 VALUES ($1, 'trial', true, now() + interval '14 days')`,
		id,
	)
	if err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	return id
}

func createOwnerUser(t *testing.T, ctx context.Context, pool *pgxpool.Pool, storeID uuid.UUID) uuid.UUID {
	t.Helper()
	// Hash password using bcrypt
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("senha123"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	var id uuid.UUID
	err = pool.QueryRow(ctx,
		`INSERT INTO users (store_id, email, hashed_password, full_name, role)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		storeID, "dono@teste.com.br", string(hashedPassword), "Dono do Bar", "owner",
	).Scan(&id)
	if err != nil {
		t.Fatalf("create owner user: %v", err)
	}
	return id
}

// --- API call helpers ---

func login(t *testing.T, server *httptest.Server, email, password string) string {
	t.Helper()
	body := map[string]interface{}{
		"email":    email,
		"password": password,
	}
	resp := httpPostJSON(t, server, "/auth/login", body, "")
	token, ok := resp["access_token"].(string)
	if !ok || token == "" {
		t.Fatalf("login failed: no access_token in response: %+v", resp)
	}
	return token
}

func createIntegrationProduct(t *testing.T, server *httptest.Server, storeID uuid.UUID, token, name string, priceCents int64, stock int32, destino string) map[string]interface{} {
	t.Helper()
	body := map[string]interface{}{
		"name":              name,
		"price_cents":       priceCents,
		"stock_quantity":    stock,
		"min_stock":         2,
		"destino_preparo":   destino,
		"prep_time_minutes": 5,
	}
	return httpPostJSON(t, server, fmt.Sprintf("/stores/%s/products", storeID), body, token)
}

func advanceItemStatus(t *testing.T, server *httptest.Server, storeID, itemID uuid.UUID, status, token string) {
	t.Helper()
	b, _ := json.Marshal(map[string]interface{}{"status": status})
	req, err := http.NewRequest("PATCH",
		fmt.Sprintf("%s/stores/%s/comandas/items/%s/status", server.URL, storeID, itemID),
		bytes.NewReader(b))
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		t.Fatalf("advance item to %s: status %d, body: %v", status, resp.StatusCode, errResp)
	}
}

// --- HTTP helpers ---

func httpPostJSON(t *testing.T, server *httptest.Server, path string, body map[string]interface{}, token string) map[string]interface{} {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}

	req, err := http.NewRequest("POST", server.URL+path, bytes.NewReader(b))
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		t.Fatalf("POST %s: status %d, body: %v", path, resp.StatusCode, errResp)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return result
}

func findSaleItem(t *testing.T, saleResp map[string]interface{}, productID uuid.UUID) map[string]interface{} {
	t.Helper()
	items, ok := saleResp["items"].([]interface{})
	if !ok {
		t.Fatalf("sale response missing items: %+v", saleResp)
	}
	for _, raw := range items {
		item := raw.(map[string]interface{})
		if item["product_id"].(string) == productID.String() {
			return item
		}
	}
	t.Fatalf("no sale item for product %s in %v", productID, items)
	return nil
}

func httpPutJSON(t *testing.T, server *httptest.Server, path string, body map[string]interface{}, token string) map[string]interface{} {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}

	req, err := http.NewRequest("PUT", server.URL+path, bytes.NewReader(b))
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		t.Fatalf("PUT %s: status %d, body: %v", path, resp.StatusCode, errResp)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return result
}

func httpPostExpectStatus(t *testing.T, server *httptest.Server, path string, body map[string]interface{}, token string, wantStatus int) {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}

	req, err := http.NewRequest("POST", server.URL+path, bytes.NewReader(b))
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		var errResp map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		t.Fatalf("POST %s: status %d, want %d, body: %v", path, resp.StatusCode, wantStatus, errResp)
	}
}

func httpGetJSON(t *testing.T, server *httptest.Server, path string, token string) map[string]interface{} {
	t.Helper()
	req, err := http.NewRequest("GET", server.URL+path, nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		t.Fatalf("GET %s: status %d, body: %v", path, resp.StatusCode, errResp)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return result
}

func httpGetJSONList(t *testing.T, server *httptest.Server, path string, token string) []map[string]interface{} {
	t.Helper()
	req, err := http.NewRequest("GET", server.URL+path, nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		t.Fatalf("GET %s: status %d, body: %v", path, resp.StatusCode, errResp)
	}

	var result []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return result
}

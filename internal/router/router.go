package router

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vendafacil/api/internal/config"
	"github.com/vendafacil/api/internal/database"
	"github.com/vendafacil/api/internal/enum"
	"github.com/vendafacil/api/internal/handler"
	mw "github.com/vendafacil/api/internal/middleware"
	"github.com/vendafacil/api/internal/service"
	"github.com/vendafacil/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication and store scoping middleware as needed.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173",         // Vite dev server
			"https://app.vendafacil.com.br", // Production frontend
			"https://stg.vendafacil.com.br", // Staging frontend
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/stores/{sid}", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Store-scoped routes
		r.Route("/stores/{sid}", func(r chi.Router) {
			r.Use(mw.RequireStore)

			// Subscription standing
			entitlementHandler := handler.NewEntitlementHandler(queries)
			entitlementHandler.RegisterRoutes(r)

			// Products (catalog writes are owner/manager only)
			productHandler := handler.NewProductHandler(queries)
			r.Route("/products", func(r chi.Router) {
				productHandler.RegisterRoutes(r)
				r.Group(func(r chi.Router) {
					r.Use(mw.RequireRole(enum.UserRoleOwner, enum.UserRoleManager))
					productHandler.RegisterAdminRoutes(r)
				})
			})

			// Customers
			customerHandler := handler.NewCustomerHandler(queries)
			r.Route("/customers", customerHandler.RegisterRoutes)

			// Comandas
			newComandaStore := func(db database.DBTX) service.ComandaStore {
				return database.New(db)
			}
			comandaService := service.NewComandaService(queries, pool, newComandaStore)
			comandaHandler := handler.NewComandaHandler(comandaService, queries, hub)
			r.Route("/comandas", comandaHandler.RegisterRoutes)

			// Kitchen and bar displays
			productionHandler := handler.NewProductionHandler(queries)
			r.Route("/production", productionHandler.RegisterRoutes)

			// Balcão sales and history
			newSaleStore := func(db database.DBTX) service.SaleStore {
				return database.New(db)
			}
			saleService := service.NewSaleService(pool, newSaleStore)
			saleHandler := handler.NewSaleHandler(saleService, queries, hub)
			r.Route("/sales", saleHandler.RegisterRoutes)

			// Cash drawer sessions
			cashSessionHandler := handler.NewCashSessionHandler(queries, hub)
			r.Route("/cash-sessions", cashSessionHandler.RegisterRoutes)
		})
	})

	log.Println("Router initialized with all handlers")
	return r
}

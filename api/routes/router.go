// Package routes mounts every HTTP endpoint on a chi router.
package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

// RouterParams bundles what NewRouter mounts. Nil readiness pingers are
// reported as disabled.
type RouterParams struct {
	Config      *config.Config
	Logger      *logger.Logger
	HTTPMetrics *metrics.HTTPMetrics
	Metrics     http.Handler

	Readiness   map[string]controllers.Pinger
	Sessions    session.AccessSessionChecker
	RateLimiter middleware.RateLimitStore
	Idempotency middleware.IdempotencyStore

	Catalog      Catalog
	Carts        controllers.CartRegistry
	Checkout     controllers.CheckoutService
	DeviceOrders controllers.DeviceOrderService
	AdminOrders  controllers.AdminOrderService
	Donations    controllers.DonationService
	ProductAdmin controllers.ProductAdmin
	AdminAuth    controllers.AdminAuth
	DeadLetters  controllers.DeadLetterReader
}

// Catalog is read by shoppers and refreshed after admin edits.
type Catalog interface {
	controllers.CatalogReader
	controllers.CatalogRefresher
}

func NewRouter(p RouterParams) http.Handler {
	cfg, logg := p.Config, p.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(p.HTTPMetrics),
		middleware.CORS(cfg.HTTP.AllowedOrigins),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy("login", cfg.AuthRateLimit.LoginWindow, cfg.AuthRateLimit.LoginIPLimit)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.Readiness))
	})
	if p.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", p.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", controllers.ProductsList(p.Catalog, logg))
		r.Get("/products/suggest", controllers.ProductsSuggest(p.Catalog, logg))
		r.Get("/products/{productId}", controllers.ProductGet(p.Catalog, logg))
		r.Get("/categories", controllers.Categories(p.Catalog))

		// Idempotency matches on the full route pattern, which chi only
		// knows once the leaf route is resolved, so it wraps each
		// submission route rather than a group or a mounted subrouter.
		idempotent := middleware.Idempotency(p.Idempotency, logg)

		r.With(idempotent).Post("/donations", controllers.DonationCreate(p.Donations, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.DeviceID(logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartGet(p.Carts, logg))
				r.Delete("/", controllers.CartClear(p.Carts, logg))
				r.Post("/items", controllers.CartAddItem(p.Carts, p.Catalog, logg))
				r.Get("/items/{productId}", controllers.CartItemStatus(p.Carts, logg))
				r.Put("/items/{productId}", controllers.CartUpdateItem(p.Carts, logg))
				r.Delete("/items/{productId}", controllers.CartRemoveItem(p.Carts, logg))
				r.Post("/items/{productId}/increment", controllers.CartIncrement(p.Carts, logg))
				r.Post("/items/{productId}/decrement", controllers.CartDecrement(p.Carts, logg))
			})

			r.With(idempotent).Post("/checkout", controllers.CheckoutSubmit(p.Checkout, logg))
			r.Get("/checkout/summary", controllers.CheckoutSummary(p.Checkout, logg))

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.MyOrders(p.DeviceOrders, logg))
				r.Get("/{orderId}", controllers.MyOrderGet(p.DeviceOrders, logg))
				r.With(idempotent).Post("/{orderId}/reorder", controllers.Reorder(p.DeviceOrders, logg))
			})
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, p.RateLimiter, logg)).Post("/auth/login", controllers.AdminLogin(p.AdminAuth, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, p.Sessions, logg))
			r.Use(middleware.RequireRole(string(enums.ActorRoleAdmin), logg))

			r.Post("/auth/logout", controllers.AdminLogout(p.AdminAuth, logg))
			r.Get("/dashboard", controllers.AdminDashboard(p.ProductAdmin, p.AdminOrders, logg))

			r.Route("/products", func(r chi.Router) {
				r.Get("/", controllers.AdminProductsList(p.ProductAdmin, logg))
				r.Post("/", controllers.AdminProductCreate(p.ProductAdmin, p.Catalog, logg))
				r.Put("/{productId}", controllers.AdminProductUpdate(p.ProductAdmin, p.Catalog, logg))
				r.Delete("/{productId}", controllers.AdminProductDelete(p.ProductAdmin, p.Catalog, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.AdminOrdersList(p.AdminOrders, logg))
				r.Get("/counts", controllers.AdminOrderCounts(p.AdminOrders, logg))
				r.Get("/{orderId}", controllers.AdminOrderGet(p.AdminOrders, logg))
				r.Put("/{orderId}/status", controllers.AdminOrderUpdateStatus(p.AdminOrders, logg))
			})

			if p.DeadLetters != nil {
				r.Get("/outbox/dead-letters", controllers.AdminDeadLetters(p.DeadLetters, logg))
				r.Get("/outbox/dead-letters/{eventId}", controllers.AdminDeadLetterGet(p.DeadLetters, logg))
			}
		})
	})

	return r
}

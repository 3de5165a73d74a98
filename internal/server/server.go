// Package server assembles the REST API routes and middleware.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/zaymazone/marketplace/internal/auth"
	"github.com/zaymazone/marketplace/internal/domain"
	"github.com/zaymazone/marketplace/internal/httpx"
	"github.com/zaymazone/marketplace/internal/orders"
	"github.com/zaymazone/marketplace/internal/products"
	"github.com/zaymazone/marketplace/internal/telemetry"
	"github.com/zaymazone/marketplace/internal/users"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

type Deps struct {
	Products products.Store
	Users    users.Store
	Orders   orders.Store
	Tokens   *auth.Tokens
	Logger   *slog.Logger

	// Optional.
	Publisher      orders.Publisher
	Pinger         Pinger
	Metrics        http.Handler
	AllowedOrigins []string
}

func NewRouter(d Deps) (http.Handler, error) {
	mw := auth.NewMiddleware(d.Tokens, d.Users, d.Logger)
	productHandler := products.NewHandler(d.Products, d.Logger)
	userHandler := users.NewHandler(d.Users, d.Tokens, d.Logger)
	orderHandler, err := orders.NewHandler(d.Orders, d.Publisher, d.Logger)
	if err != nil {
		return nil, fmt.Errorf("create orders handler: %w", err)
	}

	sellers := func(h http.HandlerFunc) http.HandlerFunc {
		return mw.Authorize(h, domain.RoleSeller, domain.RoleAdmin)
	}

	mux := http.NewServeMux()
	route := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, telemetry.WithHTTPRoute(h))
	}

	route("GET /api/products", productHandler.HandleList)
	route("GET /api/products/{id}", productHandler.HandleGet)
	route("GET /api/products/artisan/{artisanId}", productHandler.HandleListByArtisan)
	route("POST /api/products", sellers(productHandler.HandleCreate))
	route("PUT /api/products/{id}", sellers(productHandler.HandleUpdate))
	route("DELETE /api/products/{id}", sellers(productHandler.HandleDelete))

	route("POST /api/users", userHandler.HandleRegister)
	route("POST /api/users/login", userHandler.HandleLogin)
	route("GET /api/users/profile", mw.Authenticate(userHandler.HandleProfile))
	route("GET /api/users/artisans/all", userHandler.HandleListSellers)
	route("GET /api/users/top-artisans/list", userHandler.HandleTopSellers)
	route("GET /api/users/{id}", userHandler.HandleGet)
	route("PUT /api/users/{id}", mw.Authenticate(userHandler.HandleUpdate))

	route("POST /api/orders", mw.Authenticate(orderHandler.HandleCreate))
	route("GET /api/orders/{id}", mw.Authenticate(orderHandler.HandleGet))
	route("GET /api/orders/user/{userId}", mw.Authenticate(orderHandler.HandleListByBuyer))
	route("GET /api/orders/seller/{sellerId}", sellers(orderHandler.HandleListBySeller))
	route("GET /api/orders/recent/{sellerId}", sellers(orderHandler.HandleListRecent))
	route("PUT /api/orders/{id}", mw.Authenticate(orderHandler.HandleUpdateStatus))

	route("GET /api/health", healthHandler(d.Pinger, d.Logger))
	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics)
	}

	var handler http.Handler = mux
	handler = logRequests(d.Logger, handler)
	handler = cors(d.AllowedOrigins, handler)
	handler = otelhttp.NewHandler(handler, "zaymazone",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			if r.Pattern != "" {
				return r.Pattern
			}
			return r.Method + " " + r.URL.Path
		}),
	)
	return handler, nil
}

func healthHandler(pinger Pinger, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pinger != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := pinger.PingContext(ctx); err != nil {
				logger.Error("health check failed", "error", err)
				httpx.WriteJSON(w, logger, http.StatusServiceUnavailable, map[string]string{
					"status":  "error",
					"message": "database unavailable",
				})
				return
			}
		}
		httpx.WriteJSON(w, logger, http.StatusOK, map[string]string{
			"status":  "ok",
			"message": "Server is running",
		})
	}
}

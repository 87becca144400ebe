// Package handler exposes the HTTP API surface.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/bmbank/bmbank-api/internal/domain"
	"github.com/bmbank/bmbank-api/internal/infra/observability"
	"github.com/bmbank/bmbank-api/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pinger reports storage reachability for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services bundles everything the router serves.
type Services struct {
	Auth         *service.AuthService
	Ledger       *service.LedgerService
	Transactions *service.TransactionService
	Directory    *service.DirectoryService
	Reporting    *service.ReportingService
	Store        Pinger
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svcs Services, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(requestDurationMiddleware(metrics))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svcs.Store, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API ---
	r.Route("/api", func(r chi.Router) {

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", loginHandler(svcs.Auth, logger))
			r.Post("/verify", verifyHandler(svcs.Auth, logger))
		})

		r.Route("/customer", func(r chi.Router) {
			r.Use(Authenticate(svcs.Auth))
			r.Use(RequireRole(domain.RoleCustomer))

			r.Get("/accounts", customerAccountsHandler(svcs.Ledger, logger))
			r.Get("/accounts/{accountID}", customerAccountHandler(svcs.Ledger, logger))
			r.Get("/transactions", customerTransactionsHandler(svcs.Transactions, logger))
			r.Get("/profile", customerProfileHandler(svcs.Directory, logger))
			r.Put("/profile", updateProfileHandler(svcs.Directory, logger))
		})

		r.Route("/staff", func(r chi.Router) {
			r.Use(Authenticate(svcs.Auth))
			r.Use(RequireRole(domain.RoleStaff))

			r.Get("/customers", listCustomersHandler(svcs.Directory, logger))
			r.Post("/customers", createCustomerHandler(svcs.Directory, logger))
			r.Get("/customers/{username}/accounts", customerAccountsByUsernameHandler(svcs.Ledger, logger))
			r.Get("/accounts", listAccountsHandler(svcs.Ledger, logger))
			r.Post("/accounts", createAccountHandler(svcs.Ledger, logger))
			r.Get("/transactions", listTransactionsHandler(svcs.Transactions, logger))
			r.Post("/transactions", createTransactionHandler(svcs.Transactions, logger))
			r.Get("/profile", staffProfileHandler(svcs.Directory, logger))
		})

		r.Route("/director", func(r chi.Router) {
			r.Use(Authenticate(svcs.Auth))
			r.Use(RequireRole(domain.RoleDirector))

			r.Get("/stats", statsHandler(svcs.Reporting, logger))
			r.Get("/customers", listCustomersHandler(svcs.Directory, logger))
			r.Get("/transactions/pending", pendingApprovalsHandler(svcs.Transactions, logger))
			r.Put("/transactions/{transactionID}/approve", approveTransactionHandler(svcs.Transactions, logger))
			r.Put("/transactions/{transactionID}/reject", rejectTransactionHandler(svcs.Transactions, logger))
			r.Get("/accounts", listAccountsHandler(svcs.Ledger, logger))
			r.Put("/accounts/{accountID}/lock", setAccountLockHandler(svcs.Ledger, true, logger))
			r.Put("/accounts/{accountID}/unlock", setAccountLockHandler(svcs.Ledger, false, logger))
			r.Get("/employees", listEmployeesHandler(svcs.Directory, logger))
			r.Put("/employees/{username}", updateEmployeeHandler(svcs.Directory, logger))
			r.Get("/audit", auditTrailHandler(svcs.Reporting, logger))
			r.Get("/metrics", opsSnapshotHandler(svcs.Reporting))
		})
	})

	return r
}

// requestDurationMiddleware observes per-route latencies, labeled by the
// chi route pattern so path parameters do not explode the cardinality.
func requestDurationMiddleware(metrics *observability.Metrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					metrics.RecordRequestDuration(r.Method+" "+pattern, time.Since(start))
				}
			}
		})
	}
}

// healthzHandler reports liveness plus storage reachability.
func healthzHandler(store Pinger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := "ok"
		dbStatus := "ok"
		code := http.StatusOK
		if err := store.Ping(ctx); err != nil {
			logger.Warn("health check: database unreachable", zap.Error(err))
			status = "degraded"
			dbStatus = "unreachable"
			code = http.StatusServiceUnavailable
		}

		writeJSON(w, code, map[string]string{"status": status, "database": dbStatus})
	}
}

// readyzHandler reports readiness to accept traffic.
func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

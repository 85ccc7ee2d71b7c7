// Package handler exposes the HTTP surface: the public intake wizard, the
// serviceability probe and the JWT-protected attendant backend.
package handler

import (
	"net/http"

	"github.com/velonet/lead-intake-api/internal/infra/observability"
	"github.com/velonet/lead-intake-api/internal/port"
	"github.com/velonet/lead-intake-api/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Services bundles everything the router wires up.
type Services struct {
	Intake    *service.IntakeService
	Viability *service.ViabilityService
	Admin     *service.AdminService
	Auth      *service.AuthService
	Configs   port.ConfigStore
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svcs Services, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svcs.Configs, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// Public intake wizard
		r.Route("/intake/sessions", func(r chi.Router) {
			r.Post("/", startSessionHandler(svcs.Intake, logger))
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", getSessionHandler(svcs.Intake, logger))
				r.Post("/lead", submitLeadHandler(svcs.Intake, logger))
				r.Post("/cep", submitCEPHandler(svcs.Intake, logger))
				r.Post("/address", submitAddressHandler(svcs.Intake, logger))
				r.Post("/waitlist", submitWaitlistHandler(svcs.Intake, logger))
				r.Delete("/notification", dismissNotificationHandler(svcs.Intake, logger))
			})
		})

		// Public marketing content and serviceability probe
		r.Get("/plans", plansHandler(svcs.Configs, logger))
		r.Get("/viability/{cep}", viabilityProbeHandler(svcs.Viability, logger))

		// Attendant/admin login
		r.Post("/auth/login", authLoginHandler(svcs.Auth, logger))

		// Attendant backend
		r.Route("/admin", func(r chi.Router) {
			r.Use(JWTAuthMiddleware(svcs.Auth, logger))

			// Routes open to both roles
			r.Group(func(r chi.Router) {
				r.Use(staff(logger))

				r.Get("/leads", listLeadsHandler(svcs.Admin, logger))
				r.Get("/leads/{leadID}", getLeadHandler(svcs.Admin, logger))
				r.Patch("/leads/{leadID}/status", updateLeadStatusHandler(svcs.Admin, logger))
				r.Post("/leads/{leadID}/assign", assignLeadHandler(svcs.Admin, logger))
				r.Post("/leads/{leadID}/convert", convertLeadHandler(svcs.Admin, logger))

				r.Get("/customers", listCustomersHandler(svcs.Admin, logger))

				r.Get("/viability", listViabilityHandler(svcs.Admin, logger))

				r.Get("/dashboard/summary", dashboardSummaryHandler(svcs.Admin, logger))
				r.Get("/metrics/intake", intakeMetricsHandler(svcs.Admin, logger))
			})

			// Admin-only: coverage writes, configuration and roles
			r.Group(func(r chi.Router) {
				r.Use(adminOnly(logger))

				r.Put("/viability/{cep}", upsertViabilityHandler(svcs.Admin, logger))
				r.Post("/viability/import", importViabilityHandler(svcs.Admin, logger))
				r.Get("/viability/imports", listImportLogsHandler(svcs.Admin, logger))

				r.Get("/config/webhook", getWebhookConfigHandler(svcs.Admin, logger))
				r.Put("/config/webhook", updateWebhookConfigHandler(svcs.Admin, logger))
				r.Post("/config/webhook/test", testWebhookHandler(svcs.Admin, logger))
				r.Get("/config/marketing", getMarketingConfigHandler(svcs.Admin, logger))
				r.Put("/config/marketing", updateMarketingConfigHandler(svcs.Admin, logger))

				r.Get("/users/{userID}/role", getUserRoleHandler(svcs.Admin, logger))
				r.Put("/users/{userID}/role", upsertUserRoleHandler(svcs.Admin, logger))
			})
		})
	})

	return r
}

// healthzHandler probes the persistence backend with a cheap config read.
func healthzHandler(configs port.ConfigStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "healthy"
		backend := "healthy"

		if configs != nil {
			if _, err := configs.GetWebhookConfig(r.Context()); err != nil {
				logger.Warn("healthz: backend probe failed", zap.Error(err))
				backend = "degraded"
				status = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, map[string]string{
			"status":  status,
			"backend": backend,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

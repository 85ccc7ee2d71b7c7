package handler

import (
	"net/http"

	"github.com/velonet/lead-intake-api/internal/domain"
	"github.com/velonet/lead-intake-api/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Authentication — POST /v1/auth/login
// ============================================================

func authLoginHandler(svc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/login")
		defer span.End()

		var req domain.LoginRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		resp, err := svc.Login(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// ============================================================
// Leads
// ============================================================

func listLeadsHandler(svc *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/leads")
		defer span.End()

		page, pageSize := parsePagination(r)
		status := r.URL.Query().Get("status")

		leads, err := svc.ListLeads(ctx, status, page, pageSize)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if leads == nil {
			leads = []service.LeadSummary{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"leads": leads})
	}
}

func getLeadHandler(svc *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/leads/{leadID}")
		defer span.End()

		lead, err := svc.GetLead(ctx, chi.URLParam(r, "leadID"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, lead)
	}
}

func updateLeadStatusHandler(svc *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/admin/leads/{leadID}/status")
		defer span.End()

		var req struct {
			Status string `json:"status"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		span.SetAttributes(attribute.String("status", req.Status))

		if err := svc.UpdateLeadStatus(ctx, chi.URLParam(r, "leadID"), req.Status); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func assignLeadHandler(svc *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/leads/{leadID}/assign")
		defer span.End()

		var req struct {
			UserID string `json:"user_id"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		// Assigning to yourself is the common case; an empty body means that.
		if req.UserID == "" {
			req.UserID = UserIDFromContext(ctx)
		}

		if err := svc.AssignLead(ctx, chi.URLParam(r, "leadID"), req.UserID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func convertLeadHandler(svc *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/leads/{leadID}/convert")
		defer span.End()

		customer, err := svc.ConvertLead(ctx, chi.URLParam(r, "leadID"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, customer)
	}
}

// ============================================================
// Customers
// ============================================================

func listCustomersHandler(svc *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/customers")
		defer span.End()

		page, pageSize := parsePagination(r)
		customers, err := svc.ListCustomers(ctx, page, pageSize)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if customers == nil {
			customers = []domain.Customer{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"customers": customers})
	}
}

// ============================================================
// Viability records (coverage data)
// ============================================================

func listViabilityHandler(svc *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/viability")
		defer span.End()

		page, pageSize := parsePagination(r)
		records, err := svc.ListViability(ctx, page, pageSize)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if records == nil {
			records = []domain.ViabilityRecord{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"records": records})
	}
}

func upsertViabilityHandler(svc *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/admin/viability/{cep}")
		defer span.End()

		var req struct {
			Viable  bool            `json:"viable"`
			Address *domain.Address `json:"address,omitempty"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		rec := &domain.ViabilityRecord{
			CEP:     chi.URLParam(r, "cep"),
			Viable:  req.Viable,
			Address: req.Address,
		}
		if err := svc.UpsertViability(ctx, rec); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func importViabilityHandler(svc *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/viability/import")
		defer span.End()

		var req struct {
			Rows []service.ImportRow `json:"rows"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		log, err := svc.ImportViability(ctx, UserIDFromContext(ctx), req.Rows)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, log)
	}
}

func listImportLogsHandler(svc *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/viability/imports")
		defer span.End()

		page, pageSize := parsePagination(r)
		logs, err := svc.ListImportLogs(ctx, page, pageSize)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if logs == nil {
			logs = []domain.ImportLog{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"imports": logs})
	}
}

// ============================================================
// Configuration (admin only)
// ============================================================

func getWebhookConfigHandler(svc *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/config/webhook")
		defer span.End()

		cfg, err := svc.GetWebhookConfig(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	}
}

func updateWebhookConfigHandler(svc *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/admin/config/webhook")
		defer span.End()

		var cfg domain.WebhookConfig
		if err := decodeJSON(r, &cfg); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := svc.UpdateWebhookConfig(ctx, &cfg); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	}
}

func testWebhookHandler(svc *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/config/webhook/test")
		defer span.End()

		if err := svc.TestWebhook(ctx); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"delivered": true})
	}
}

func getMarketingConfigHandler(svc *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/config/marketing")
		defer span.End()

		cfg, err := svc.GetMarketingConfig(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	}
}

func updateMarketingConfigHandler(svc *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/admin/config/marketing")
		defer span.End()

		var cfg domain.MarketingConfig
		if err := decodeJSON(r, &cfg); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := svc.UpdateMarketingConfig(ctx, &cfg); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	}
}

// ============================================================
// User roles (admin only)
// ============================================================

func getUserRoleHandler(svc *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/users/{userID}/role")
		defer span.End()

		role, err := svc.GetUserRole(ctx, chi.URLParam(r, "userID"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, role)
	}
}

func upsertUserRoleHandler(svc *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/admin/users/{userID}/role")
		defer span.End()

		var req struct {
			Role string `json:"role"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := svc.UpsertUserRole(ctx, chi.URLParam(r, "userID"), req.Role); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ============================================================
// Dashboard & metrics
// ============================================================

func dashboardSummaryHandler(svc *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/dashboard/summary")
		defer span.End()

		summary, err := svc.DashboardSummary(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

func intakeMetricsHandler(svc *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.IntakeMetrics())
	}
}

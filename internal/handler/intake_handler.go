package handler

import (
	"net/http"

	"github.com/velonet/lead-intake-api/internal/domain"
	"github.com/velonet/lead-intake-api/internal/port"
	"github.com/velonet/lead-intake-api/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Intake wizard — POST /v1/intake/sessions/...
// ============================================================

func startSessionHandler(svc *service.IntakeService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/intake/sessions")
		defer span.End()

		snap := svc.Start(ctx)
		writeJSON(w, http.StatusCreated, snap)
	}
}

func getSessionHandler(svc *service.IntakeService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "GET /v1/intake/sessions/{sessionID}")
		defer span.End()

		snap, err := svc.Get(chi.URLParam(r, "sessionID"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func submitLeadHandler(svc *service.IntakeService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/intake/sessions/{sessionID}/lead")
		defer span.End()

		var in domain.LeadCaptureInput
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		snap, err := svc.SubmitLead(ctx, chi.URLParam(r, "sessionID"), &in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func submitCEPHandler(svc *service.IntakeService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/intake/sessions/{sessionID}/cep")
		defer span.End()

		var in struct {
			CEP string `json:"cep"`
		}
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		snap, err := svc.SubmitCEP(ctx, chi.URLParam(r, "sessionID"), in.CEP)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func submitAddressHandler(svc *service.IntakeService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/intake/sessions/{sessionID}/address")
		defer span.End()

		var in domain.AddressConfirmInput
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		snap, err := svc.SubmitAddress(ctx, chi.URLParam(r, "sessionID"), &in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func submitWaitlistHandler(svc *service.IntakeService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/intake/sessions/{sessionID}/waitlist")
		defer span.End()

		var in struct {
			Action string `json:"action"`
		}
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		span.SetAttributes(attribute.String("action", in.Action))

		snap, err := svc.SubmitWaitlist(ctx, chi.URLParam(r, "sessionID"), in.Action)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func dismissNotificationHandler(svc *service.IntakeService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "DELETE /v1/intake/sessions/{sessionID}/notification")
		defer span.End()

		snap, err := svc.DismissNotification(chi.URLParam(r, "sessionID"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

// ============================================================
// Public serviceability probe — GET /v1/viability/{cep}
// ============================================================

// probeScope namespaces the shared cache used by the public probe, so the
// endpoint benefits from caching without touching any session's entries.
const probeScope = "probe"

func viabilityProbeHandler(svc *service.ViabilityService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/viability/{cep}")
		defer span.End()

		result, err := svc.Check(ctx, probeScope, chi.URLParam(r, "cep"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// ============================================================
// Public marketing content — GET /v1/plans
// ============================================================

func plansHandler(configs port.ConfigStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/plans")
		defer span.End()

		cfg, err := configs.GetMarketingConfig(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	}
}

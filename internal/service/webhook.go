package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/velonet/lead-intake-api/internal/domain"
	"github.com/velonet/lead-intake-api/internal/infra/observability"
	"github.com/velonet/lead-intake-api/internal/infra/resilience"
	"github.com/velonet/lead-intake-api/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var webhookTracer = otel.Tracer("service/webhook")

// WebhookService delivers lead events to the endpoint configured in the
// configurations table. POST carries the JSON payload; GET flattens it
// into lead_-prefixed query parameters. Deliveries never block the intake
// flow and are not retried; the next lead fires the next attempt.
type WebhookService struct {
	configs    port.ConfigStore
	httpClient *http.Client
	bulkhead   *resilience.Bulkhead
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewWebhookService creates a webhook dispatcher with the given cap on
// concurrent deliveries.
func NewWebhookService(configs port.ConfigStore, httpClient *http.Client, maxConcurrent int, metrics *observability.Metrics, logger *zap.Logger) *WebhookService {
	return &WebhookService{
		configs:    configs,
		httpClient: httpClient,
		bulkhead:   resilience.NewBulkhead(maxConcurrent),
		metrics:    metrics,
		logger:     logger,
	}
}

// webhookPayload is the fixed wire shape.
type webhookPayload struct {
	Test      bool        `json:"test"`
	Lead      webhookLead `json:"lead"`
	Timestamp string      `json:"timestamp"`
}

type webhookLead struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Email        string         `json:"email"`
	WhatsApp     string         `json:"whatsapp"`
	CPF          string         `json:"cpf"`
	RG           string         `json:"rg"`
	PlanType     string         `json:"planType"`
	BusinessType string         `json:"businessType"`
	CEP          string         `json:"cep"`
	Address      webhookAddress `json:"address"`
	Status       string         `json:"status"`
}

type webhookAddress struct {
	Street       string `json:"street"`
	Number       string `json:"number"`
	Complement   string `json:"complement"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
	Reference    string `json:"reference"`
}

func buildPayload(lead *domain.Lead, test bool) webhookPayload {
	return webhookPayload{
		Test: test,
		Lead: webhookLead{
			ID:           lead.ID,
			Name:         lead.Name,
			Email:        lead.Email,
			WhatsApp:     lead.WhatsApp,
			CPF:          lead.CPF,
			RG:           lead.RG,
			PlanType:     string(lead.PlanType),
			BusinessType: lead.BusinessType,
			CEP:          lead.CEP,
			Address: webhookAddress{
				Street:       lead.Address.Street,
				Number:       lead.Address.Number,
				Complement:   lead.Address.Complement,
				Neighborhood: lead.Address.Neighborhood,
				City:         lead.Address.City,
				State:        lead.Address.State,
				Reference:    lead.Address.Reference,
			},
			Status: lead.Status,
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// flattenQuery converts the payload to GET query parameters. Lead fields
// get a lead_ prefix; nested address fields become lead_address_<field>.
func flattenQuery(p webhookPayload) url.Values {
	q := url.Values{}
	q.Set("test", fmt.Sprintf("%t", p.Test))
	q.Set("timestamp", p.Timestamp)

	q.Set("lead_id", p.Lead.ID)
	q.Set("lead_name", p.Lead.Name)
	q.Set("lead_email", p.Lead.Email)
	q.Set("lead_whatsapp", p.Lead.WhatsApp)
	q.Set("lead_cpf", p.Lead.CPF)
	q.Set("lead_rg", p.Lead.RG)
	q.Set("lead_planType", p.Lead.PlanType)
	q.Set("lead_businessType", p.Lead.BusinessType)
	q.Set("lead_cep", p.Lead.CEP)
	q.Set("lead_status", p.Lead.Status)

	q.Set("lead_address_street", p.Lead.Address.Street)
	q.Set("lead_address_number", p.Lead.Address.Number)
	q.Set("lead_address_complement", p.Lead.Address.Complement)
	q.Set("lead_address_neighborhood", p.Lead.Address.Neighborhood)
	q.Set("lead_address_city", p.Lead.Address.City)
	q.Set("lead_address_state", p.Lead.Address.State)
	q.Set("lead_address_reference", p.Lead.Address.Reference)

	return q
}

// NotifyLead implements LeadNotifier. It reads the current config, skips
// silently when webhooks are disabled, and logs delivery failures without
// surfacing them to the intake flow.
func (s *WebhookService) NotifyLead(ctx context.Context, lead *domain.Lead) {
	ctx, span := webhookTracer.Start(ctx, "WebhookService.NotifyLead")
	defer span.End()

	cfg, err := s.configs.GetWebhookConfig(ctx)
	if err != nil {
		s.logger.Warn("webhook: config read failed", zap.Error(err))
		return
	}
	if !cfg.Enabled || cfg.URL == "" {
		return
	}

	if err := s.Send(ctx, cfg, lead, false); err != nil {
		s.logger.Warn("webhook: delivery failed",
			zap.String("lead_id", lead.ID),
			zap.String("url", cfg.URL),
			zap.Error(err),
		)
	}
}

// SendTest fires a synthetic delivery with test=true, used by the admin
// config screen to verify an endpoint before enabling it.
func (s *WebhookService) SendTest(ctx context.Context, cfg *domain.WebhookConfig) error {
	ctx, span := webhookTracer.Start(ctx, "WebhookService.SendTest")
	defer span.End()

	sample := &domain.Lead{
		ID:       "test-lead",
		Name:     "Lead de Teste",
		Email:    "teste@example.com",
		WhatsApp: "21987654321",
		PlanType: domain.PlanResidential,
		CEP:      "01310100",
		Address: domain.Address{
			Street:       "Avenida Paulista",
			Number:       "1000",
			Neighborhood: "Bela Vista",
			City:         "São Paulo",
			State:        "SP",
		},
		Status: domain.LeadStatusNew,
	}
	return s.Send(ctx, cfg, sample, true)
}

// Send performs one delivery with the given config.
func (s *WebhookService) Send(ctx context.Context, cfg *domain.WebhookConfig, lead *domain.Lead, test bool) error {
	if err := s.bulkhead.Acquire(ctx); err != nil {
		return err
	}
	defer s.bulkhead.Release()

	payload := buildPayload(lead, test)

	var req *http.Request
	var err error

	switch cfg.Method {
	case http.MethodGet:
		target := cfg.URL
		if flat := flattenQuery(payload).Encode(); flat != "" {
			sep := "?"
			if strings.Contains(target, "?") {
				sep = "&"
			}
			target += sep + flat
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	default:
		var body []byte
		body, err = json.Marshal(payload)
		if err == nil {
			req, err = http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
			if req != nil {
				req.Header.Set("Content-Type", "application/json")
			}
		}
	}
	if err != nil {
		s.metrics.IncrWebhookDelivery("error")
		return err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.metrics.IncrWebhookDelivery("error")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.metrics.IncrWebhookDelivery("error")
		return fmt.Errorf("webhook endpoint returned status %d", resp.StatusCode)
	}

	s.metrics.IncrWebhookDelivery("ok")
	s.logger.Info("webhook delivered",
		zap.String("lead_id", lead.ID),
		zap.String("method", cfg.Method),
		zap.Bool("test", test),
	)
	return nil
}

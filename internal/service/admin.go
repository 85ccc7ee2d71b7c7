package service

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/velonet/lead-intake-api/internal/domain"
	"github.com/velonet/lead-intake-api/internal/format"
	"github.com/velonet/lead-intake-api/internal/infra/observability"
	"github.com/velonet/lead-intake-api/internal/port"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var adminTracer = otel.Tracer("service/admin")

// AdminService is the attendant/admin backend: lead management, coverage
// data, configuration and roles. Callers are authenticated upstream; the
// handlers enforce the role boundary before any method here runs, and the
// role-sensitive methods double-check it.
type AdminService struct {
	leads     port.LeadStore
	customers port.CustomerStore
	viability port.ViabilityStore
	configs   port.ConfigStore
	roles     port.RoleStore
	imports   port.ImportLogStore
	webhooks  *WebhookService
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewAdminService creates the admin service.
func NewAdminService(leads port.LeadStore, customers port.CustomerStore, viability port.ViabilityStore, configs port.ConfigStore, roles port.RoleStore, imports port.ImportLogStore, webhooks *WebhookService, metrics *observability.Metrics, logger *zap.Logger) *AdminService {
	return &AdminService{
		leads:     leads,
		customers: customers,
		viability: viability,
		configs:   configs,
		roles:     roles,
		imports:   imports,
		webhooks:  webhooks,
		metrics:   metrics,
		logger:    logger,
	}
}

// LeadSummary is the list-view projection of a lead, with identifiers
// masked for display.
type LeadSummary struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	WhatsApp   string    `json:"whatsapp"`
	PlanType   string    `json:"plan_type"`
	CEP        string    `json:"cep"`
	City       string    `json:"city"`
	State      string    `json:"state"`
	Status     string    `json:"status"`
	Waitlist   bool      `json:"waitlist"`
	AssignedTo string    `json:"assigned_to,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ListLeads pages through leads, optionally filtered by status.
func (s *AdminService) ListLeads(ctx context.Context, status string, page, pageSize int) ([]LeadSummary, error) {
	ctx, span := adminTracer.Start(ctx, "AdminService.ListLeads")
	defer span.End()

	if status != "" && !validLeadStatus(status) {
		return nil, &domain.ErrValidation{Field: "status", Message: "status desconhecido"}
	}

	leads, err := s.leads.ListLeads(ctx, status, page, pageSize)
	if err != nil {
		return nil, err
	}

	return lo.Map(leads, func(l domain.Lead, _ int) LeadSummary {
		return LeadSummary{
			ID:         l.ID,
			Name:       l.Name,
			Email:      l.Email,
			WhatsApp:   format.Phone(l.WhatsApp),
			PlanType:   string(l.PlanType),
			CEP:        format.CEP(l.CEP),
			City:       l.Address.City,
			State:      l.Address.State,
			Status:     l.Status,
			Waitlist:   l.Waitlist,
			AssignedTo: l.AssignedTo,
			CreatedAt:  l.CreatedAt,
		}
	}), nil
}

// GetLead fetches one lead in full.
func (s *AdminService) GetLead(ctx context.Context, id string) (*domain.Lead, error) {
	ctx, span := adminTracer.Start(ctx, "AdminService.GetLead")
	defer span.End()

	return s.leads.GetLead(ctx, id)
}

func validLeadStatus(status string) bool {
	switch status {
	case domain.LeadStatusNew, domain.LeadStatusContacted, domain.LeadStatusConverted, domain.LeadStatusWaitlisted:
		return true
	}
	return false
}

// UpdateLeadStatus changes a lead's workflow status.
func (s *AdminService) UpdateLeadStatus(ctx context.Context, id, status string) error {
	ctx, span := adminTracer.Start(ctx, "AdminService.UpdateLeadStatus")
	defer span.End()

	if !validLeadStatus(status) {
		return &domain.ErrValidation{Field: "status", Message: "status desconhecido"}
	}
	if _, err := s.leads.GetLead(ctx, id); err != nil {
		return err
	}

	if err := s.leads.UpdateLeadStatus(ctx, id, status); err != nil {
		return err
	}

	s.logger.Info("lead status updated",
		zap.String("lead_id", id),
		zap.String("status", status),
	)
	return nil
}

// AssignLead sets the attendant responsible for a lead.
func (s *AdminService) AssignLead(ctx context.Context, id, userID string) error {
	ctx, span := adminTracer.Start(ctx, "AdminService.AssignLead")
	defer span.End()

	if userID == "" {
		return &domain.ErrValidation{Field: "user_id", Message: "user_id é obrigatório"}
	}
	if _, err := s.leads.GetLead(ctx, id); err != nil {
		return err
	}
	return s.leads.AssignLead(ctx, id, userID)
}

// ConvertLead turns a lead into a customer and marks it converted.
func (s *AdminService) ConvertLead(ctx context.Context, id string) (*domain.Customer, error) {
	ctx, span := adminTracer.Start(ctx, "AdminService.ConvertLead")
	defer span.End()

	lead, err := s.leads.GetLead(ctx, id)
	if err != nil {
		return nil, err
	}
	if lead.Status == domain.LeadStatusConverted {
		return nil, &domain.ErrConflict{Message: "Lead já convertido"}
	}

	customer, err := s.customers.CreateCustomer(ctx, &domain.Customer{
		LeadID:   lead.ID,
		Name:     lead.Name,
		Email:    lead.Email,
		WhatsApp: lead.WhatsApp,
		PlanType: lead.PlanType,
		CEP:      lead.CEP,
		Address:  lead.Address,
		CPF:      lead.CPF,
	})
	if err != nil {
		return nil, err
	}

	if err := s.leads.UpdateLeadStatus(ctx, lead.ID, domain.LeadStatusConverted); err != nil {
		// Customer row exists but the lead kept its status; surfaced so
		// the attendant can fix it by updating the status manually.
		s.logger.Error("convert: status update failed after customer insert",
			zap.String("lead_id", lead.ID),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("lead converted",
		zap.String("lead_id", lead.ID),
		zap.String("customer_id", customer.ID),
	)
	return customer, nil
}

// ListCustomers pages through converted customers.
func (s *AdminService) ListCustomers(ctx context.Context, page, pageSize int) ([]domain.Customer, error) {
	ctx, span := adminTracer.Start(ctx, "AdminService.ListCustomers")
	defer span.End()

	return s.customers.ListCustomers(ctx, page, pageSize)
}

// ListViability pages through the coverage table.
func (s *AdminService) ListViability(ctx context.Context, page, pageSize int) ([]domain.ViabilityRecord, error) {
	ctx, span := adminTracer.Start(ctx, "AdminService.ListViability")
	defer span.End()

	return s.viability.ListViability(ctx, page, pageSize)
}

// UpsertViability writes one coverage row. This is the production path
// that replaces the placeholder fallback rule for the given CEP.
func (s *AdminService) UpsertViability(ctx context.Context, rec *domain.ViabilityRecord) error {
	ctx, span := adminTracer.Start(ctx, "AdminService.UpsertViability")
	defer span.End()

	cep := format.Digits(rec.CEP)
	if len(cep) != 8 {
		return &domain.ErrValidation{Field: "cep", Message: "CEP deve ter 8 dígitos"}
	}
	rec.CEP = cep

	return s.viability.UpsertViability(ctx, rec)
}

// ImportRow is one line of a bulk coverage import.
type ImportRow struct {
	CEP    string `json:"cep"`
	Viable bool   `json:"viable"`
}

// ImportViability upserts a batch of coverage rows and records the result
// in import_logs. Malformed CEPs are counted as rejected, not fatal.
func (s *AdminService) ImportViability(ctx context.Context, userID string, rows []ImportRow) (*domain.ImportLog, error) {
	ctx, span := adminTracer.Start(ctx, "AdminService.ImportViability")
	defer span.End()

	if len(rows) == 0 {
		return nil, &domain.ErrValidation{Field: "rows", Message: "importação vazia"}
	}

	accepted, rejected := 0, 0
	for _, row := range rows {
		cep := format.Digits(row.CEP)
		if len(cep) != 8 {
			rejected++
			continue
		}
		if err := s.viability.UpsertViability(ctx, &domain.ViabilityRecord{CEP: cep, Viable: row.Viable}); err != nil {
			return nil, fmt.Errorf("import row %s: %w", cep, err)
		}
		accepted++
	}

	log, err := s.imports.CreateImportLog(ctx, &domain.ImportLog{
		UserID:   userID,
		Rows:     len(rows),
		Accepted: accepted,
		Rejected: rejected,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("viability import finished",
		zap.String("user_id", userID),
		zap.Int("accepted", accepted),
		zap.Int("rejected", rejected),
	)
	return log, nil
}

// GetWebhookConfig reads the webhook configuration.
func (s *AdminService) GetWebhookConfig(ctx context.Context) (*domain.WebhookConfig, error) {
	return s.configs.GetWebhookConfig(ctx)
}

// UpdateWebhookConfig validates and stores the webhook configuration.
func (s *AdminService) UpdateWebhookConfig(ctx context.Context, cfg *domain.WebhookConfig) error {
	ctx, span := adminTracer.Start(ctx, "AdminService.UpdateWebhookConfig")
	defer span.End()

	if cfg.Method != "POST" && cfg.Method != "GET" {
		return &domain.ErrValidation{Field: "method", Message: "método deve ser POST ou GET"}
	}
	if cfg.Enabled {
		u, err := url.Parse(cfg.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return &domain.ErrValidation{Field: "url", Message: "URL inválida"}
		}
	}

	return s.configs.UpdateWebhookConfig(ctx, cfg)
}

// TestWebhook sends a test payload with the stored configuration.
func (s *AdminService) TestWebhook(ctx context.Context) error {
	ctx, span := adminTracer.Start(ctx, "AdminService.TestWebhook")
	defer span.End()

	cfg, err := s.configs.GetWebhookConfig(ctx)
	if err != nil {
		return err
	}
	if cfg.URL == "" {
		return &domain.ErrValidation{Field: "url", Message: "webhook não configurado"}
	}
	return s.webhooks.SendTest(ctx, cfg)
}

// GetMarketingConfig reads the public marketing content.
func (s *AdminService) GetMarketingConfig(ctx context.Context) (*domain.MarketingConfig, error) {
	return s.configs.GetMarketingConfig(ctx)
}

// UpdateMarketingConfig stores the public marketing content.
func (s *AdminService) UpdateMarketingConfig(ctx context.Context, cfg *domain.MarketingConfig) error {
	ctx, span := adminTracer.Start(ctx, "AdminService.UpdateMarketingConfig")
	defer span.End()

	for _, p := range cfg.Plans {
		if !p.Type.Valid() {
			return &domain.ErrValidation{Field: "plans", Message: "tipo de plano inválido: " + string(p.Type)}
		}
	}
	return s.configs.UpdateMarketingConfig(ctx, cfg)
}

// GetUserRole reads a backend user's role row.
func (s *AdminService) GetUserRole(ctx context.Context, userID string) (*domain.UserRole, error) {
	ctx, span := adminTracer.Start(ctx, "AdminService.GetUserRole")
	defer span.End()

	role, err := s.roles.GetUserRole(ctx, userID)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, &domain.ErrNotFound{Resource: "user role", ID: userID}
	}
	return role, nil
}

// UpsertUserRole assigns a role to a backend user.
func (s *AdminService) UpsertUserRole(ctx context.Context, userID, role string) error {
	ctx, span := adminTracer.Start(ctx, "AdminService.UpsertUserRole")
	defer span.End()

	if role != domain.RoleAdmin && role != domain.RoleAttendant {
		return &domain.ErrValidation{Field: "role", Message: "perfil deve ser admin ou attendant"}
	}
	return s.roles.UpsertUserRole(ctx, &domain.UserRole{UserID: userID, Role: role})
}

// DashboardSummary aggregates counts for the attendant dashboard. The four
// reads are independent, so they fan out concurrently.
func (s *AdminService) DashboardSummary(ctx context.Context) (*domain.DashboardSummary, error) {
	ctx, span := adminTracer.Start(ctx, "AdminService.DashboardSummary")
	defer span.End()

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("dashboard_summary", time.Since(start))
	}()

	summary := &domain.DashboardSummary{}
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := s.leads.CountLeads(gCtx, false)
		summary.TotalLeads = n
		return err
	})
	g.Go(func() error {
		n, err := s.leads.CountLeads(gCtx, true)
		summary.WaitlistedLeads = n
		return err
	})
	g.Go(func() error {
		n, err := s.customers.CountCustomers(gCtx)
		summary.TotalCustomers = n
		return err
	})
	g.Go(func() error {
		n, err := s.viability.CountViability(gCtx)
		summary.ViabilityRows = n
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summary, nil
}

// IntakeMetrics returns the current intake counters.
func (s *AdminService) IntakeMetrics() *domain.IntakeMetrics {
	return s.metrics.IntakeSnapshot()
}

// ListImportLogs pages through past coverage imports.
func (s *AdminService) ListImportLogs(ctx context.Context, page, pageSize int) ([]domain.ImportLog, error) {
	ctx, span := adminTracer.Start(ctx, "AdminService.ListImportLogs")
	defer span.End()

	return s.imports.ListImportLogs(ctx, page, pageSize)
}

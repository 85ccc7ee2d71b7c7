// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations, so the hosted backend can be swapped
// for in-memory fakes in tests.
package port

import (
	"context"

	"github.com/velonet/lead-intake-api/internal/domain"
)

// LeadStore persists lead records in the hosted backend.
type LeadStore interface {
	CreateLead(ctx context.Context, lead *domain.Lead) (*domain.Lead, error)
	ListLeads(ctx context.Context, status string, page, pageSize int) ([]domain.Lead, error)
	GetLead(ctx context.Context, id string) (*domain.Lead, error)
	UpdateLeadStatus(ctx context.Context, id, status string) error
	AssignLead(ctx context.Context, id, userID string) error
	CountLeads(ctx context.Context, waitlistOnly bool) (int, error)
}

// ViabilityStore reads and writes coverage records. A stored record is
// authoritative over the lookup fallback.
type ViabilityStore interface {
	GetViability(ctx context.Context, cep string) (*domain.ViabilityRecord, error)
	UpsertViability(ctx context.Context, rec *domain.ViabilityRecord) error
	ListViability(ctx context.Context, page, pageSize int) ([]domain.ViabilityRecord, error)
	CountViability(ctx context.Context) (int, error)
}

// AddressLookup is the external CEP address API.
type AddressLookup interface {
	Lookup(ctx context.Context, cep string) (*domain.Address, error)
}

// CustomerStore persists converted customers.
type CustomerStore interface {
	CreateCustomer(ctx context.Context, c *domain.Customer) (*domain.Customer, error)
	ListCustomers(ctx context.Context, page, pageSize int) ([]domain.Customer, error)
	CountCustomers(ctx context.Context) (int, error)
}

// ConfigStore reads and writes the configuration rows.
type ConfigStore interface {
	GetWebhookConfig(ctx context.Context) (*domain.WebhookConfig, error)
	UpdateWebhookConfig(ctx context.Context, cfg *domain.WebhookConfig) error
	GetMarketingConfig(ctx context.Context) (*domain.MarketingConfig, error)
	UpdateMarketingConfig(ctx context.Context, cfg *domain.MarketingConfig) error
}

// RoleStore resolves and assigns backend user roles.
type RoleStore interface {
	GetUserRole(ctx context.Context, userID string) (*domain.UserRole, error)
	UpsertUserRole(ctx context.Context, role *domain.UserRole) error
}

// CredentialStore looks up attendant logins.
type CredentialStore interface {
	GetCredentialByEmail(ctx context.Context, email string) (*domain.AttendantCredential, error)
}

// ImportLogStore records bulk viability imports.
type ImportLogStore interface {
	CreateImportLog(ctx context.Context, log *domain.ImportLog) (*domain.ImportLog, error)
	ListImportLogs(ctx context.Context, page, pageSize int) ([]domain.ImportLog, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

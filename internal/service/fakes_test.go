package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/velonet/lead-intake-api/internal/domain"
)

// In-memory fakes standing in for the hosted backend and the address API.

type fakeLeadStore struct {
	mu      sync.Mutex
	leads   map[string]*domain.Lead
	seq     int
	creates int
	failOn  error
}

func newFakeLeadStore() *fakeLeadStore {
	return &fakeLeadStore{leads: map[string]*domain.Lead{}}
}

func (f *fakeLeadStore) CreateLead(_ context.Context, lead *domain.Lead) (*domain.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.failOn != nil {
		return nil, f.failOn
	}
	f.seq++
	stored := *lead
	stored.ID = fmt.Sprintf("lead-%d", f.seq)
	f.leads[stored.ID] = &stored
	return &stored, nil
}

func (f *fakeLeadStore) ListLeads(_ context.Context, status string, _, _ int) ([]domain.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Lead
	for _, l := range f.leads {
		if status == "" || l.Status == status {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (f *fakeLeadStore) GetLead(_ context.Context, id string) (*domain.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.leads[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "lead", ID: id}
	}
	cp := *l
	return &cp, nil
}

func (f *fakeLeadStore) UpdateLeadStatus(_ context.Context, id, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.leads[id]
	if !ok {
		return &domain.ErrNotFound{Resource: "lead", ID: id}
	}
	l.Status = status
	return nil
}

func (f *fakeLeadStore) AssignLead(_ context.Context, id, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.leads[id]
	if !ok {
		return &domain.ErrNotFound{Resource: "lead", ID: id}
	}
	l.AssignedTo = userID
	return nil
}

func (f *fakeLeadStore) CountLeads(_ context.Context, waitlistOnly bool) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, l := range f.leads {
		if !waitlistOnly || l.Waitlist {
			n++
		}
	}
	return n, nil
}

type fakeViabilityStore struct {
	mu      sync.Mutex
	records map[string]*domain.ViabilityRecord
	reads   int
	failOn  error
}

func newFakeViabilityStore() *fakeViabilityStore {
	return &fakeViabilityStore{records: map[string]*domain.ViabilityRecord{}}
}

func (f *fakeViabilityStore) GetViability(_ context.Context, cep string) (*domain.ViabilityRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.failOn != nil {
		return nil, f.failOn
	}
	rec, ok := f.records[cep]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeViabilityStore) UpsertViability(_ context.Context, rec *domain.ViabilityRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *rec
	f.records[rec.CEP] = &cp
	return nil
}

func (f *fakeViabilityStore) ListViability(_ context.Context, _, _ int) ([]domain.ViabilityRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ViabilityRecord
	for _, r := range f.records {
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakeViabilityStore) CountViability(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records), nil
}

// fakeLookup answers address lookups from a fixed table and can block to
// simulate a slow upstream.
type fakeLookup struct {
	mu        sync.Mutex
	addresses map[string]*domain.Address
	calls     int
	failOn    error

	entered chan struct{}
	release chan struct{}
}

func newFakeLookup() *fakeLookup {
	return &fakeLookup{addresses: map[string]*domain.Address{}}
}

func (f *fakeLookup) Lookup(_ context.Context, cep string) (*domain.Address, error) {
	f.mu.Lock()
	f.calls++
	entered, release := f.entered, f.release
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
		<-release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn != nil {
		return nil, f.failOn
	}
	if addr, ok := f.addresses[cep]; ok {
		cp := *addr
		return &cp, nil
	}
	return nil, &domain.ErrCEPNotFound{CEP: cep}
}

func (f *fakeLookup) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeCustomerStore struct {
	mu        sync.Mutex
	customers []domain.Customer
	seq       int
}

func (f *fakeCustomerStore) CreateCustomer(_ context.Context, c *domain.Customer) (*domain.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	stored := *c
	stored.ID = fmt.Sprintf("customer-%d", f.seq)
	f.customers = append(f.customers, stored)
	return &stored, nil
}

func (f *fakeCustomerStore) ListCustomers(_ context.Context, _, _ int) ([]domain.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Customer(nil), f.customers...), nil
}

func (f *fakeCustomerStore) CountCustomers(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.customers), nil
}

type fakeConfigStore struct {
	mu        sync.Mutex
	webhook   domain.WebhookConfig
	marketing domain.MarketingConfig
	failOn    error
}

func (f *fakeConfigStore) GetWebhookConfig(_ context.Context) (*domain.WebhookConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn != nil {
		return nil, f.failOn
	}
	cp := f.webhook
	return &cp, nil
}

func (f *fakeConfigStore) UpdateWebhookConfig(_ context.Context, cfg *domain.WebhookConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.webhook = *cfg
	return nil
}

func (f *fakeConfigStore) GetMarketingConfig(_ context.Context) (*domain.MarketingConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := f.marketing
	return &cp, nil
}

func (f *fakeConfigStore) UpdateMarketingConfig(_ context.Context, cfg *domain.MarketingConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marketing = *cfg
	return nil
}

type fakeRoleStore struct {
	mu    sync.Mutex
	roles map[string]string
}

func newFakeRoleStore() *fakeRoleStore {
	return &fakeRoleStore{roles: map[string]string{}}
}

func (f *fakeRoleStore) GetUserRole(_ context.Context, userID string) (*domain.UserRole, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	role, ok := f.roles[userID]
	if !ok {
		return nil, nil
	}
	return &domain.UserRole{UserID: userID, Role: role}, nil
}

func (f *fakeRoleStore) UpsertUserRole(_ context.Context, role *domain.UserRole) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles[role.UserID] = role.Role
	return nil
}

type fakeCredentialStore struct {
	creds map[string]*domain.AttendantCredential
}

func (f *fakeCredentialStore) GetCredentialByEmail(_ context.Context, email string) (*domain.AttendantCredential, error) {
	cred, ok := f.creds[email]
	if !ok {
		return nil, nil
	}
	cp := *cred
	return &cp, nil
}

type fakeImportLogStore struct {
	mu   sync.Mutex
	logs []domain.ImportLog
}

func (f *fakeImportLogStore) CreateImportLog(_ context.Context, log *domain.ImportLog) (*domain.ImportLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *log
	stored.ID = fmt.Sprintf("import-%d", len(f.logs)+1)
	f.logs = append(f.logs, stored)
	return &stored, nil
}

func (f *fakeImportLogStore) ListImportLogs(_ context.Context, _, _ int) ([]domain.ImportLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ImportLog(nil), f.logs...), nil
}

var errStoreDown = errors.New("store unavailable")

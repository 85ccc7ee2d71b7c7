package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/velonet/lead-intake-api/internal/domain"
	"github.com/velonet/lead-intake-api/internal/infra/cache"
	"github.com/velonet/lead-intake-api/internal/infra/observability"
	"github.com/velonet/lead-intake-api/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// ---- in-memory stores ----

type memStores struct {
	mu        sync.Mutex
	leads     map[string]*domain.Lead
	leadSeq   int
	viability map[string]*domain.ViabilityRecord
	customers []domain.Customer
	webhook   domain.WebhookConfig
	marketing domain.MarketingConfig
	roles     map[string]string
	creds     map[string]*domain.AttendantCredential
	imports   []domain.ImportLog
	addresses map[string]*domain.Address
}

func newMemStores() *memStores {
	return &memStores{
		leads:     map[string]*domain.Lead{},
		viability: map[string]*domain.ViabilityRecord{},
		roles:     map[string]string{},
		creds:     map[string]*domain.AttendantCredential{},
		addresses: map[string]*domain.Address{},
	}
}

func (m *memStores) CreateLead(_ context.Context, lead *domain.Lead) (*domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leadSeq++
	stored := *lead
	stored.ID = fmt.Sprintf("lead-%d", m.leadSeq)
	m.leads[stored.ID] = &stored
	return &stored, nil
}

func (m *memStores) ListLeads(_ context.Context, status string, _, _ int) ([]domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Lead
	for _, l := range m.leads {
		if status == "" || l.Status == status {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (m *memStores) GetLead(_ context.Context, id string) (*domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "lead", ID: id}
	}
	cp := *l
	return &cp, nil
}

func (m *memStores) UpdateLeadStatus(_ context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.leads[id]; ok {
		l.Status = status
		return nil
	}
	return &domain.ErrNotFound{Resource: "lead", ID: id}
}

func (m *memStores) AssignLead(_ context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.leads[id]; ok {
		l.AssignedTo = userID
		return nil
	}
	return &domain.ErrNotFound{Resource: "lead", ID: id}
}

func (m *memStores) CountLeads(_ context.Context, waitlistOnly bool) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, l := range m.leads {
		if !waitlistOnly || l.Waitlist {
			n++
		}
	}
	return n, nil
}

func (m *memStores) GetViability(_ context.Context, cep string) (*domain.ViabilityRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.viability[cep]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (m *memStores) UpsertViability(_ context.Context, rec *domain.ViabilityRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.viability[rec.CEP] = &cp
	return nil
}

func (m *memStores) ListViability(_ context.Context, _, _ int) ([]domain.ViabilityRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ViabilityRecord
	for _, r := range m.viability {
		out = append(out, *r)
	}
	return out, nil
}

func (m *memStores) CountViability(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.viability), nil
}

func (m *memStores) CreateCustomer(_ context.Context, c *domain.Customer) (*domain.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *c
	stored.ID = fmt.Sprintf("customer-%d", len(m.customers)+1)
	m.customers = append(m.customers, stored)
	return &stored, nil
}

func (m *memStores) ListCustomers(_ context.Context, _, _ int) ([]domain.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Customer(nil), m.customers...), nil
}

func (m *memStores) CountCustomers(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.customers), nil
}

func (m *memStores) GetWebhookConfig(_ context.Context) (*domain.WebhookConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := m.webhook
	return &cp, nil
}

func (m *memStores) UpdateWebhookConfig(_ context.Context, cfg *domain.WebhookConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.webhook = *cfg
	return nil
}

func (m *memStores) GetMarketingConfig(_ context.Context) (*domain.MarketingConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := m.marketing
	return &cp, nil
}

func (m *memStores) UpdateMarketingConfig(_ context.Context, cfg *domain.MarketingConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marketing = *cfg
	return nil
}

func (m *memStores) GetUserRole(_ context.Context, userID string) (*domain.UserRole, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	role, ok := m.roles[userID]
	if !ok {
		return nil, nil
	}
	return &domain.UserRole{UserID: userID, Role: role}, nil
}

func (m *memStores) UpsertUserRole(_ context.Context, role *domain.UserRole) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roles[role.UserID] = role.Role
	return nil
}

func (m *memStores) GetCredentialByEmail(_ context.Context, email string) (*domain.AttendantCredential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cred, ok := m.creds[email]
	if !ok {
		return nil, nil
	}
	cp := *cred
	return &cp, nil
}

func (m *memStores) CreateImportLog(_ context.Context, log *domain.ImportLog) (*domain.ImportLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *log
	stored.ID = fmt.Sprintf("import-%d", len(m.imports)+1)
	m.imports = append(m.imports, stored)
	return &stored, nil
}

func (m *memStores) ListImportLogs(_ context.Context, _, _ int) ([]domain.ImportLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ImportLog(nil), m.imports...), nil
}

func (m *memStores) Lookup(_ context.Context, cep string) (*domain.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	addr, ok := m.addresses[cep]
	if !ok {
		return nil, &domain.ErrCEPNotFound{CEP: cep}
	}
	cp := *addr
	return &cp, nil
}

// ---- fixture ----

type apiFixture struct {
	srv    *httptest.Server
	stores *memStores
	auth   *service.AuthService
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	stores := newMemStores()
	stores.addresses["01310100"] = &domain.Address{
		Street:       "Avenida Paulista",
		Neighborhood: "Bela Vista",
		City:         "São Paulo",
		State:        "SP",
	}
	stores.addresses["01310101"] = &domain.Address{City: "São Paulo", State: "SP"}

	hash, err := bcrypt.GenerateFromPassword([]byte("senha123"), bcrypt.MinCost)
	require.NoError(t, err)
	stores.creds["admin@velonet.com.br"] = &domain.AttendantCredential{
		UserID: "user-admin", Email: "admin@velonet.com.br", PasswordHash: string(hash), Active: true,
	}
	stores.creds["atendente@velonet.com.br"] = &domain.AttendantCredential{
		UserID: "user-att", Email: "atendente@velonet.com.br", PasswordHash: string(hash), Active: true,
	}
	stores.roles["user-admin"] = domain.RoleAdmin
	stores.roles["user-att"] = domain.RoleAttendant

	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	viability := service.NewViabilityService(
		stores, stores, cache.New[*domain.ViabilityResult](time.Minute), metrics, logger,
	)
	intake := service.NewIntakeService(time.Minute, viability, stores, nil, metrics, logger)
	webhooks := service.NewWebhookService(stores, &http.Client{Timeout: time.Second}, 2, metrics, logger)
	admin := service.NewAdminService(stores, stores, stores, stores, stores, stores, webhooks, metrics, logger)
	auth := service.NewAuthService(stores, stores, "test-secret", time.Hour, logger)

	router := NewRouter(Services{
		Intake:    intake,
		Viability: viability,
		Admin:     admin,
		Auth:      auth,
		Configs:   stores,
	}, metrics, logger)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &apiFixture{srv: srv, stores: stores, auth: auth}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, f.srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()

	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (f *apiFixture) login(t *testing.T, email string) string {
	t.Helper()

	resp := f.do(t, http.MethodPost, "/v1/auth/login", "", domain.LoginRequest{
		Email: email, Password: "senha123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decodeBody[domain.LoginResponse](t, resp).AccessToken
}

// ---- tests ----

func TestIntakeFlowOverHTTP(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/v1/intake/sessions", "", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	snap := decodeBody[domain.IntakeSnapshot](t, resp)
	require.NotEmpty(t, snap.SessionID)
	assert.Equal(t, domain.StepLeadCapture, snap.Step)

	base := "/v1/intake/sessions/" + snap.SessionID

	resp = f.do(t, http.MethodPost, base+"/lead", "", domain.LeadCaptureInput{
		Name: "Maria Silva", Email: "maria@example.com",
		WhatsApp: "(21) 98765-4321", PlanType: domain.PlanResidential,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap = decodeBody[domain.IntakeSnapshot](t, resp)
	assert.Equal(t, domain.StepCepCheck, snap.Step)

	resp = f.do(t, http.MethodPost, base+"/cep", "", map[string]string{"cep": "01310-100"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap = decodeBody[domain.IntakeSnapshot](t, resp)
	assert.Equal(t, domain.StepAddressConfirm, snap.Step)
	assert.Equal(t, "Avenida Paulista", snap.Draft.Address.Street)

	resp = f.do(t, http.MethodPost, base+"/address", "", domain.AddressConfirmInput{
		Street: "Avenida Paulista", Number: "1000", Neighborhood: "Bela Vista",
		City: "São Paulo", State: "SP",
		CPF: "529.982.247-25", RG: "12.345.678-9", BirthDate: "1990-05-20",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap = decodeBody[domain.IntakeSnapshot](t, resp)
	assert.Equal(t, domain.StepDone, snap.Step)
	assert.NotEmpty(t, snap.LeadID)
}

func TestIntake_WrongStepIsConflict(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/v1/intake/sessions", "", nil)
	snap := decodeBody[domain.IntakeSnapshot](t, resp)

	resp = f.do(t, http.MethodPost, "/v1/intake/sessions/"+snap.SessionID+"/cep", "",
		map[string]string{"cep": "01310-100"})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestIntake_UnknownSessionIs404(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodGet, "/v1/intake/sessions/nope", "", nil)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestViabilityProbe(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodGet, "/v1/viability/01310-100", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decodeBody[domain.ViabilityResult](t, resp)
	assert.True(t, result.Viable)
	assert.Equal(t, "01310100", result.CEP)

	resp = f.do(t, http.MethodGet, "/v1/viability/123", "", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/v1/viability/99999999", "", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestAdmin_RequiresToken(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodGet, "/v1/admin/leads", "", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/v1/admin/leads", "garbage-token", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdmin_RoleGate(t *testing.T) {
	f := newAPIFixture(t)
	adminToken := f.login(t, "admin@velonet.com.br")
	attToken := f.login(t, "atendente@velonet.com.br")

	cfg := domain.WebhookConfig{URL: "https://hooks.example.com/leads", Method: "POST", Enabled: true}

	// Attendants can work leads but not touch configuration.
	resp := f.do(t, http.MethodGet, "/v1/admin/leads", attToken, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodPut, "/v1/admin/config/webhook", attToken, cfg)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = f.do(t, http.MethodPut, "/v1/admin/config/webhook", adminToken, cfg)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAdmin_LeadLifecycle(t *testing.T) {
	f := newAPIFixture(t)
	token := f.login(t, "admin@velonet.com.br")

	lead, err := f.stores.CreateLead(context.Background(), &domain.Lead{
		Name: "Maria Silva", Email: "maria@example.com", WhatsApp: "21987654321",
		PlanType: domain.PlanResidential, CEP: "01310100", Status: domain.LeadStatusNew,
	})
	require.NoError(t, err)

	resp := f.do(t, http.MethodPatch, "/v1/admin/leads/"+lead.ID+"/status", token,
		map[string]string{"status": "contacted"})
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/v1/admin/leads/"+lead.ID+"/convert", token, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	customer := decodeBody[domain.Customer](t, resp)
	assert.Equal(t, lead.ID, customer.LeadID)

	// Second convert conflicts.
	resp = f.do(t, http.MethodPost, "/v1/admin/leads/"+lead.ID+"/convert", token, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAdmin_ViabilityImport(t *testing.T) {
	f := newAPIFixture(t)
	token := f.login(t, "admin@velonet.com.br")

	resp := f.do(t, http.MethodPost, "/v1/admin/viability/import", token, map[string]any{
		"rows": []map[string]any{
			{"cep": "01310-100", "viable": true},
			{"cep": "bad", "viable": true},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	log := decodeBody[domain.ImportLog](t, resp)
	assert.Equal(t, 1, log.Accepted)
	assert.Equal(t, 1, log.Rejected)
	assert.Equal(t, "user-admin", log.UserID)
}

func TestPublicPlans(t *testing.T) {
	f := newAPIFixture(t)
	f.stores.marketing = domain.MarketingConfig{
		Headline: "Internet de verdade",
		Plans:    []domain.Plan{{Name: "Residencial", Type: domain.PlanResidential, SpeedMbs: 500}},
	}

	resp := f.do(t, http.MethodGet, "/v1/plans", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cfg := decodeBody[domain.MarketingConfig](t, resp)
	assert.Equal(t, "Internet de verdade", cfg.Headline)
	require.Len(t, cfg.Plans, 1)
}

func TestOperationalEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	for _, path := range []string{"/healthz", "/readyz", "/ping", "/metrics"} {
		resp := f.do(t, http.MethodGet, path, "", nil)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

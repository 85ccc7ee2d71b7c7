package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/velonet/lead-intake-api/internal/domain"
	"github.com/velonet/lead-intake-api/internal/infra/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// capturingEndpoint records the requests a webhook target receives.
type capturingEndpoint struct {
	mu       sync.Mutex
	requests []capturedRequest
	status   int
}

type capturedRequest struct {
	method string
	query  map[string]string
	body   []byte
}

func (c *capturingEndpoint) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := capturedRequest{method: r.Method, query: map[string]string{}}
		for k, v := range r.URL.Query() {
			req.query[k] = v[0]
		}
		body, _ := io.ReadAll(r.Body)
		req.body = body

		c.mu.Lock()
		c.requests = append(c.requests, req)
		status := c.status
		c.mu.Unlock()

		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
	}
}

func (c *capturingEndpoint) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

func (c *capturingEndpoint) last() capturedRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requests[len(c.requests)-1]
}

func sampleLead() *domain.Lead {
	return &domain.Lead{
		ID:           "lead-1",
		Name:         "Maria Silva",
		Email:        "maria@example.com",
		WhatsApp:     "21987654321",
		CPF:          "52998224725",
		RG:           "12.345.678-9",
		PlanType:     domain.PlanSemi,
		BusinessType: "comércio",
		CEP:          "01310100",
		Address: domain.Address{
			Street:       "Avenida Paulista",
			Number:       "1000",
			Neighborhood: "Bela Vista",
			City:         "São Paulo",
			State:        "SP",
		},
		Status: domain.LeadStatusNew,
	}
}

func newWebhookFixture(configs *fakeConfigStore) *WebhookService {
	return NewWebhookService(configs, &http.Client{Timeout: 5 * time.Second}, 4, observability.NewMetrics(), zap.NewNop())
}

func TestSend_PostDeliversJSONPayload(t *testing.T) {
	endpoint := &capturingEndpoint{}
	srv := httptest.NewServer(endpoint.handler())
	defer srv.Close()

	svc := newWebhookFixture(&fakeConfigStore{})
	cfg := &domain.WebhookConfig{URL: srv.URL, Method: "POST", Enabled: true}

	err := svc.Send(context.Background(), cfg, sampleLead(), false)
	require.NoError(t, err)

	req := endpoint.last()
	assert.Equal(t, http.MethodPost, req.method)

	var payload webhookPayload
	require.NoError(t, json.Unmarshal(req.body, &payload))
	assert.False(t, payload.Test)
	assert.Equal(t, "lead-1", payload.Lead.ID)
	assert.Equal(t, "Maria Silva", payload.Lead.Name)
	assert.Equal(t, "semi", payload.Lead.PlanType)
	assert.Equal(t, "comércio", payload.Lead.BusinessType)
	assert.Equal(t, "São Paulo", payload.Lead.Address.City)
	assert.NotEmpty(t, payload.Timestamp)
}

func TestSend_GetFlattensPayloadIntoQuery(t *testing.T) {
	endpoint := &capturingEndpoint{}
	srv := httptest.NewServer(endpoint.handler())
	defer srv.Close()

	svc := newWebhookFixture(&fakeConfigStore{})
	cfg := &domain.WebhookConfig{URL: srv.URL, Method: "GET", Enabled: true}

	err := svc.Send(context.Background(), cfg, sampleLead(), false)
	require.NoError(t, err)

	req := endpoint.last()
	assert.Equal(t, http.MethodGet, req.method)
	assert.Empty(t, req.body)

	assert.Equal(t, "false", req.query["test"])
	assert.Equal(t, "lead-1", req.query["lead_id"])
	assert.Equal(t, "Maria Silva", req.query["lead_name"])
	assert.Equal(t, "semi", req.query["lead_planType"])
	assert.Equal(t, "Avenida Paulista", req.query["lead_address_street"])
	assert.Equal(t, "1000", req.query["lead_address_number"])
	assert.Equal(t, "SP", req.query["lead_address_state"])
	assert.NotEmpty(t, req.query["timestamp"])
}

func TestSend_GetPreservesExistingQuery(t *testing.T) {
	endpoint := &capturingEndpoint{}
	srv := httptest.NewServer(endpoint.handler())
	defer srv.Close()

	svc := newWebhookFixture(&fakeConfigStore{})
	cfg := &domain.WebhookConfig{URL: srv.URL + "/hook?source=intake", Method: "GET", Enabled: true}

	err := svc.Send(context.Background(), cfg, sampleLead(), false)
	require.NoError(t, err)

	req := endpoint.last()
	assert.Equal(t, "intake", req.query["source"])
	assert.Equal(t, "lead-1", req.query["lead_id"])
}

func TestSend_NonSuccessStatusIsError(t *testing.T) {
	endpoint := &capturingEndpoint{status: http.StatusInternalServerError}
	srv := httptest.NewServer(endpoint.handler())
	defer srv.Close()

	svc := newWebhookFixture(&fakeConfigStore{})
	cfg := &domain.WebhookConfig{URL: srv.URL, Method: "POST", Enabled: true}

	err := svc.Send(context.Background(), cfg, sampleLead(), false)

	require.Error(t, err)
	assert.Equal(t, 1, endpoint.count(), "no retry on delivery failure")
}

func TestNotifyLead_SkipsWhenDisabled(t *testing.T) {
	endpoint := &capturingEndpoint{}
	srv := httptest.NewServer(endpoint.handler())
	defer srv.Close()

	configs := &fakeConfigStore{webhook: domain.WebhookConfig{URL: srv.URL, Method: "POST", Enabled: false}}
	svc := newWebhookFixture(configs)

	svc.NotifyLead(context.Background(), sampleLead())

	assert.Zero(t, endpoint.count())
}

func TestNotifyLead_DeliversWhenEnabled(t *testing.T) {
	endpoint := &capturingEndpoint{}
	srv := httptest.NewServer(endpoint.handler())
	defer srv.Close()

	configs := &fakeConfigStore{webhook: domain.WebhookConfig{URL: srv.URL, Method: "POST", Enabled: true}}
	svc := newWebhookFixture(configs)

	svc.NotifyLead(context.Background(), sampleLead())

	require.Equal(t, 1, endpoint.count())

	var payload webhookPayload
	require.NoError(t, json.Unmarshal(endpoint.last().body, &payload))
	assert.False(t, payload.Test)
}

func TestSendTest_MarksPayloadAsTest(t *testing.T) {
	endpoint := &capturingEndpoint{}
	srv := httptest.NewServer(endpoint.handler())
	defer srv.Close()

	svc := newWebhookFixture(&fakeConfigStore{})
	cfg := &domain.WebhookConfig{URL: srv.URL, Method: "POST", Enabled: true}

	err := svc.SendTest(context.Background(), cfg)
	require.NoError(t, err)

	var payload webhookPayload
	require.NoError(t, json.Unmarshal(endpoint.last().body, &payload))
	assert.True(t, payload.Test)
}

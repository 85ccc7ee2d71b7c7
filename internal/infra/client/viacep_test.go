package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/velonet/lead-intake-api/internal/domain"
	"github.com/velonet/lead-intake-api/internal/infra/client"
	"github.com/velonet/lead-intake-api/internal/infra/resilience"
)

func testConfig() resilience.Config {
	return resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond}
}

func TestLookup_Found(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws/01310100/json/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"cep":"01310-100","logradouro":"Avenida Paulista","bairro":"Bela Vista","localidade":"São Paulo","uf":"SP"}`))
	}))
	defer srv.Close()

	c := client.NewViaCEPClient(srv.Client(), srv.URL, resilience.NewCircuitBreaker("test"), testConfig())

	addr, err := c.Lookup(context.Background(), "01310100")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if addr.Street != "Avenida Paulista" {
		t.Errorf("expected street 'Avenida Paulista', got %q", addr.Street)
	}
	if addr.City != "São Paulo" || addr.State != "SP" {
		t.Errorf("unexpected city/state: %q/%q", addr.City, addr.State)
	}
}

func TestLookup_NotFound(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"erro": true}`))
	}))
	defer srv.Close()

	c := client.NewViaCEPClient(srv.Client(), srv.URL, resilience.NewCircuitBreaker("test"), testConfig())

	_, err := c.Lookup(context.Background(), "99999999")
	var notFound *domain.ErrCEPNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrCEPNotFound, got %v", err)
	}
	if calls != 1 {
		t.Errorf("not-found must not be retried, got %d calls", calls)
	}
}

func TestLookup_NotFoundStringErro(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"erro": "true"}`))
	}))
	defer srv.Close()

	c := client.NewViaCEPClient(srv.Client(), srv.URL, resilience.NewCircuitBreaker("test"), testConfig())

	_, err := c.Lookup(context.Background(), "99999999")
	var notFound *domain.ErrCEPNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrCEPNotFound, got %v", err)
	}
}

func TestLookup_ServerErrorRetriesThenFails(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := client.NewViaCEPClient(srv.Client(), srv.URL, resilience.NewCircuitBreaker("test"), testConfig())

	_, err := c.Lookup(context.Background(), "01310100")
	var external *domain.ErrExternalService
	if !errors.As(err, &external) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts (1 + 2 retries), got %d", calls)
	}
}

func TestLookup_RecoversAfterRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"cep":"20040-020","logradouro":"Rua da Assembleia","bairro":"Centro","localidade":"Rio de Janeiro","uf":"RJ"}`))
	}))
	defer srv.Close()

	c := client.NewViaCEPClient(srv.Client(), srv.URL, resilience.NewCircuitBreaker("test"), testConfig())

	addr, err := c.Lookup(context.Background(), "20040020")
	if err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if addr.City != "Rio de Janeiro" {
		t.Errorf("expected Rio de Janeiro, got %q", addr.City)
	}
}

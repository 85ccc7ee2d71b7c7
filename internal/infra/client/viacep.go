// Package client holds HTTP clients for external collaborators.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/velonet/lead-intake-api/internal/domain"
	"github.com/velonet/lead-intake-api/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("client")

// ViaCEPClient resolves a normalized CEP to an address using the public
// ViaCEP-style lookup API.
type ViaCEPClient struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
}

// NewViaCEPClient creates a new address lookup client.
func NewViaCEPClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *ViaCEPClient {
	return &ViaCEPClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		cb:         cb,
		cfg:        cfg,
	}
}

// viaCEPResponse maps the lookup API payload. The API signals an unknown
// CEP with {"erro": true} (older deployments send the string "true").
type viaCEPResponse struct {
	CEP          string          `json:"cep"`
	Street       string          `json:"logradouro"`
	Neighborhood string          `json:"bairro"`
	City         string          `json:"localidade"`
	State        string          `json:"uf"`
	Erro         json.RawMessage `json:"erro"`
}

func (r *viaCEPResponse) notFound() bool {
	return len(r.Erro) > 0 && !bytes.Equal(r.Erro, []byte("false")) && !bytes.Equal(r.Erro, []byte(`"false"`))
}

// Lookup fetches the address for a normalized 8-digit CEP. An unknown CEP
// returns ErrCEPNotFound without retrying; transport and decode errors are
// retried under the shared policy and surface as ErrExternalService.
func (c *ViaCEPClient) Lookup(ctx context.Context, cep string) (*domain.Address, error) {
	ctx, span := tracer.Start(ctx, "ViaCEPClient.Lookup")
	defer span.End()
	span.SetAttributes(attribute.String("cep", cep))

	var addr *domain.Address

	_, err := c.cb.Execute(func() (any, error) {
		innerErr := resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			url := fmt.Sprintf("%s/ws/%s/json/", c.baseURL, cep)
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return err
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			// ViaCEP answers 400 for malformed CEPs; those never
			// recover on retry.
			if resp.StatusCode == http.StatusBadRequest {
				return resilience.Abort(&domain.ErrCEPNotFound{CEP: cep})
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("cep lookup returned status %d", resp.StatusCode)
			}

			var decoded viaCEPResponse
			if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
				return fmt.Errorf("failed to decode cep lookup response: %w", err)
			}

			if decoded.notFound() {
				return resilience.Abort(&domain.ErrCEPNotFound{CEP: cep})
			}

			addr = &domain.Address{
				Street:       decoded.Street,
				Neighborhood: decoded.Neighborhood,
				City:         decoded.City,
				State:        decoded.State,
			}
			return nil
		})
		if innerErr != nil {
			return nil, innerErr
		}
		return addr, nil
	})

	if err != nil {
		var notFound *domain.ErrCEPNotFound
		if errors.As(err, &notFound) {
			return nil, notFound
		}
		return nil, &domain.ErrExternalService{Service: "viacep", Err: err}
	}

	return addr, nil
}

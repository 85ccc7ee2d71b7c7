// Package service implements the intake flow: serviceability checks, the
// multi-step lead wizard, webhook notifications and the attendant backend.
package service

import (
	"context"
	"time"

	"github.com/velonet/lead-intake-api/internal/domain"
	"github.com/velonet/lead-intake-api/internal/format"
	"github.com/velonet/lead-intake-api/internal/infra/observability"
	"github.com/velonet/lead-intake-api/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var viabilityTracer = otel.Tracer("service/viability")

// ViabilityService decides whether a CEP is serviceable. Resolution order:
// session cache, stored coverage record (authoritative), external address
// lookup plus the deterministic fallback rule.
type ViabilityService struct {
	store   port.ViabilityStore
	lookup  port.AddressLookup
	cache   port.Cache[*domain.ViabilityResult]
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewViabilityService creates a viability service.
func NewViabilityService(store port.ViabilityStore, lookup port.AddressLookup, cache port.Cache[*domain.ViabilityResult], metrics *observability.Metrics, logger *zap.Logger) *ViabilityService {
	return &ViabilityService{
		store:   store,
		lookup:  lookup,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
	}
}

// Check resolves the viability of rawCEP. scope namespaces the cache so
// each intake session reuses only its own previous answers; the public
// probe endpoint passes a shared scope.
//
// Errors: ErrValidation for a malformed CEP (no collaborator contacted),
// ErrCEPNotFound when the lookup API does not know the code, and
// ErrExternalService when a collaborator is unreachable. None are retried
// here; the user retries by resubmitting.
func (s *ViabilityService) Check(ctx context.Context, scope, rawCEP string) (*domain.ViabilityResult, error) {
	ctx, span := viabilityTracer.Start(ctx, "ViabilityService.Check")
	defer span.End()

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("viability_check", time.Since(start))
	}()

	cep := format.Digits(rawCEP)
	if len(cep) != 8 {
		return nil, &domain.ErrValidation{Field: "cep", Message: "CEP deve ter 8 dígitos"}
	}
	span.SetAttributes(attribute.String("cep", cep))

	cacheKey := scope + ":" + cep
	if cached, ok := s.cache.Get(cacheKey); ok {
		s.metrics.IncrCacheHit("viability")
		return cached, nil
	}
	s.metrics.IncrCacheMiss("viability")

	rec, err := s.store.GetViability(ctx, cep)
	if err != nil {
		s.logger.Error("viability: store read failed",
			zap.String("cep", cep),
			zap.Error(err),
		)
		s.metrics.IncrExternalError("supabase")
		return nil, err
	}

	var result *domain.ViabilityResult

	if rec != nil {
		// Stored coverage record wins over the fallback rule.
		result = &domain.ViabilityResult{
			CEP:     cep,
			Viable:  rec.Viable,
			Address: rec.Address,
			Source:  domain.ViabilitySourceRecord,
		}
	} else {
		addr, err := s.lookup.Lookup(ctx, cep)
		if err != nil {
			s.logger.Warn("viability: address lookup failed",
				zap.String("cep", cep),
				zap.Error(err),
			)
			s.metrics.IncrExternalError("viacep")
			return nil, err
		}

		result = &domain.ViabilityResult{
			CEP:     cep,
			Viable:  fallbackViable(cep),
			Address: addr,
			Source:  domain.ViabilitySourceFallback,
		}
	}

	s.metrics.IncrViabilityLookup(result.Source)
	s.cache.Set(cacheKey, result)

	s.logger.Info("viability decided",
		zap.String("cep", cep),
		zap.Bool("viable", result.Viable),
		zap.String("source", result.Source),
	)

	return result, nil
}

// fallbackViable is the placeholder coverage rule used when no stored
// record exists: the CEP is serviceable when its last digit is even.
// It keeps demos and tests deterministic and is NOT a business rule;
// production coverage comes from the viability table, managed through
// the admin import endpoints.
func fallbackViable(cep string) bool {
	last := cep[len(cep)-1]
	return (last-'0')%2 == 0
}

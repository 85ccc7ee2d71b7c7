package observability

import (
	"time"

	"github.com/velonet/lead-intake-api/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the intake API.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration   *prometheus.HistogramVec
	externalErrors    *prometheus.CounterVec
	cacheHits         *prometheus.CounterVec
	cacheMisses       *prometheus.CounterVec
	sessionsStarted   prometheus.Counter
	stepTransitions   *prometheus.CounterVec
	leadsCreated      *prometheus.CounterVec
	viabilityLookups  *prometheus.CounterVec
	webhookDeliveries *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "intake_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "intake_external_errors_total",
				Help: "Errors calling external collaborators.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "intake_cache_hits_total",
				Help: "Cache hits by cache name.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "intake_cache_misses_total",
				Help: "Cache misses by cache name.",
			},
			[]string{"cache"},
		),
		sessionsStarted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "intake_sessions_started_total",
				Help: "Intake sessions created.",
			},
		),
		stepTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "intake_step_transitions_total",
				Help: "State machine transitions by target step.",
			},
			[]string{"to"},
		),
		leadsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "intake_leads_created_total",
				Help: "Persisted leads by kind (lead or waitlist).",
			},
			[]string{"kind"},
		),
		viabilityLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "intake_viability_lookups_total",
				Help: "Viability decisions by source (record, fallback).",
			},
			[]string{"source"},
		),
		webhookDeliveries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "intake_webhook_deliveries_total",
				Help: "Outbound webhook deliveries by result.",
			},
			[]string{"result"},
		),
	}
}

// RecordRequestDuration observes the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError counts an external collaborator failure.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit counts a cache hit.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss counts a cache miss.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrSessionStarted counts a new intake session.
func (m *Metrics) IncrSessionStarted() {
	m.sessionsStarted.Inc()
}

// IncrStepTransition counts a transition into the given step.
func (m *Metrics) IncrStepTransition(to domain.Step) {
	m.stepTransitions.WithLabelValues(string(to)).Inc()
}

// IncrLeadCreated counts a persisted lead. kind is "lead" or "waitlist".
func (m *Metrics) IncrLeadCreated(kind string) {
	m.leadsCreated.WithLabelValues(kind).Inc()
}

// IncrViabilityLookup counts a viability decision by source.
func (m *Metrics) IncrViabilityLookup(source string) {
	m.viabilityLookups.WithLabelValues(source).Inc()
}

// IncrWebhookDelivery counts a webhook delivery result ("ok" or "error").
func (m *Metrics) IncrWebhookDelivery(result string) {
	m.webhookDeliveries.WithLabelValues(result).Inc()
}

// IntakeSnapshot reads back the current counter values for the attendant
// dashboard. Reading a CounterVec requires going through the client_model
// protobuf, same trick the /metrics endpoint uses internally.
func (m *Metrics) IntakeSnapshot() *domain.IntakeMetrics {
	hits := getCounterValue(m.cacheHits, "viability")
	misses := getCounterValue(m.cacheMisses, "viability")

	hitRate := 0.0
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	lookups := getCounterValue(m.viabilityLookups, domain.ViabilitySourceRecord) +
		getCounterValue(m.viabilityLookups, domain.ViabilitySourceFallback)

	return &domain.IntakeMetrics{
		SessionsStarted:   int64(getCounter(m.sessionsStarted)),
		LeadsCreated:      int64(getCounterValue(m.leadsCreated, "lead")),
		WaitlistJoins:     int64(getCounterValue(m.leadsCreated, "waitlist")),
		ViabilityLookups:  int64(lookups),
		ViabilityCacheHit: hitRate,
		WebhooksDelivered: int64(getCounterValue(m.webhookDeliveries, "ok")),
		WebhookFailures:   int64(getCounterValue(m.webhookDeliveries, "error")),
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

func getCounter(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
